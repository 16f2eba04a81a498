// backend/src/parsers/value_parser.go
package parsers

import (
	"strconv"
	"strings"
	"time"
)

// Currency markers stripped before numeric parsing. Longer markers come first
// so "US$" is removed as a unit rather than leaving "US" behind.
var currencyMarkers = []string{"US$", "Bs.", "Bs", "$", "€", "¢"}

// ToNumber converts a free-form numeric string to a float, resolving the
// ambiguity between thousands and decimal separators:
//
//	exactly one comma and at least one period -> the one right of the other
//	is the decimal point ("1.234,56" -> 1234.56, "1,234.56" -> 1234.56)
//	exactly one comma and no period           -> the comma is the decimal point
//	anything else                             -> commas are thousands separators
//
// The heuristic is lossy: a rare decimal-only locale writing "1,234" for a
// value near one is read as one thousand two hundred thirty-four. That is a
// known limitation of the source format, kept as-is.
//
// Returns nil when the value is empty or does not parse.
func ToNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, marker := range currencyMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.ReplaceAll(s, " ", "")

	commas := strings.Count(s, ",")
	periods := strings.Count(s, ".")
	switch {
	case commas == 1 && periods > 0:
		if strings.LastIndex(s, ".") > strings.Index(s, ",") {
			// Comma sits left of the decimal period ("1,234.56"):
			// US-style grouping, drop the comma.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
	case commas == 1:
		s = strings.ReplaceAll(s, ",", ".")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &val
}

// Day-first layouts tried in order for FechaVta values. The export mixes
// separators and sometimes carries a time component.
var saleDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// ParseSaleDate parses a date string with day-before-month convention.
// The bool result is false when no layout matches; the caller records the
// failure as a data-quality flag rather than an error.
func ParseSaleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range saleDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExtractLatLon pulls a coordinate pair out of a free-text geo field holding
// "lat,lon" or "lat lon". The comma split is tried first; when it does not
// yield exactly two parseable floats, the value is re-split on whitespace and
// the first two tokens are used. Any failure yields (nil, nil) — never a
// partial pair.
func ExtractLatLon(val string) (*float64, *float64) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}

	if strings.Contains(val, ",") {
		parts := strings.Split(val, ",")
		if len(parts) == 2 {
			lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if errLat == nil && errLon == nil {
				return &lat, &lon
			}
		}
	}

	fields := strings.Fields(val)
	if len(fields) >= 2 {
		lat, errLat := strconv.ParseFloat(fields[0], 64)
		lon, errLon := strconv.ParseFloat(fields[1], 64)
		if errLat == nil && errLon == nil {
			return &lat, &lon
		}
	}

	return nil, nil
}
