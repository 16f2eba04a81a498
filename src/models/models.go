package models

import "time"

// Source column names recognized in the sales export. All of them are
// optional; derived fields depending on a missing column stay absent.
const (
	ColSaleDate        = "FechaVta"
	ColUnits           = "Unidades"
	ColRevenueInvoiced = "VtaFacturada"
	ColCost            = "Costo"
	ColRevenueLine     = "ValVentaLi"
	ColGeo             = "Georeferenciado"
	ColClient          = "NombreComercial"
	ColProduct         = "DescMaterial"
	ColCategory        = "DescGrArticulo"
	ColCity            = "Ciudad"
	ColZone            = "ZonaVenta"
)

// RawTable is the source file exactly as read: every cell a string, header
// names trimmed. Parsing is ambiguous until normalized, so nothing is coerced
// at this stage.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of a column, or -1 when the source file
// does not carry it.
func (t *RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the source file carries the named column.
func (t *RawTable) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Cell returns the raw value at (row, column index), or "" when the row is
// shorter than the header.
func (t *RawTable) Cell(row, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// RevenueField selects the monetary measure used for a given view.
type RevenueField string

const (
	RevenueInvoiced RevenueField = "revenue_invoiced" // VtaFacturada
	RevenueLine     RevenueField = "revenue_line"     // ValVentaLi
	RevenueDefault  RevenueField = "revenue_default"  // invoiced, else line
)

// ClusterKey identifies a geographic bucket: both coordinates rounded to the
// clustering precision.
type ClusterKey struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SalesRecord is one normalized transaction. Nil pointer fields mean the
// source value was absent or unparseable; parsing failures are data-quality
// facts, not errors. Records are never mutated after normalization.
type SalesRecord struct {
	SaleDate    *time.Time `json:"sale_date,omitempty"`
	SaleDateRaw string     `json:"sale_date_raw,omitempty"`
	DateValid   bool       `json:"date_valid"`

	Units *float64 `json:"units,omitempty"`
	Cost  *float64 `json:"cost,omitempty"`

	RevenueInvoiced *float64 `json:"revenue_invoiced,omitempty"`
	RevenueLine     *float64 `json:"revenue_line,omitempty"`
	RevenueDefault  *float64 `json:"revenue_default,omitempty"`

	Latitude   *float64    `json:"latitude,omitempty"`
	Longitude  *float64    `json:"longitude,omitempty"`
	ClusterKey *ClusterKey `json:"cluster_key,omitempty"`

	Client   *string `json:"client,omitempty"`
	Product  *string `json:"product,omitempty"`
	Category *string `json:"category,omitempty"`
	City     *string `json:"city,omitempty"`
	Zone     *string `json:"zone,omitempty"`

	Margin    *float64 `json:"margin,omitempty"`
	MarginPct *float64 `json:"margin_pct,omitempty"`
}

// Revenue returns the record's value for the chosen revenue field, or nil for
// an unknown field name. Unknown fields are tolerated so aggregations over
// arbitrary caller-supplied names degrade to empty sums instead of failing.
func (r *SalesRecord) Revenue(field RevenueField) *float64 {
	switch field {
	case RevenueInvoiced:
		return r.RevenueInvoiced
	case RevenueLine:
		return r.RevenueLine
	case RevenueDefault:
		return r.RevenueDefault
	}
	return nil
}

// HasCoordinates reports whether both latitude and longitude were extracted.
// Extraction is all-or-nothing: both present or both nil.
func (r *SalesRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// SalesTable is the normalized table for a single load: records in source row
// order plus the original raw cells, kept for lossless export. Records[i]
// corresponds to Raw[i]. The table produced by a load is the immutable
// baseline; every filter produces a fresh SalesTable with copied slices.
type SalesTable struct {
	Columns []string
	Raw     [][]string
	Records []SalesRecord

	// Precision used for the convenience cluster-key column at load time.
	Precision int
}

// Len returns the number of records.
func (t *SalesTable) Len() int { return len(t.Records) }

// HasColumn reports whether the original source carried the named column.
func (t *SalesTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// InvalidDateCount counts records whose date text did not parse. Consumers
// surface this count instead of hiding degraded rows.
func (t *SalesTable) InvalidDateCount() int {
	n := 0
	for i := range t.Records {
		if !t.Records[i].DateValid {
			n++
		}
	}
	return n
}

// GeocodedCount counts records with both coordinates extracted.
func (t *SalesTable) GeocodedCount() int {
	n := 0
	for i := range t.Records {
		if t.Records[i].HasCoordinates() {
			n++
		}
	}
	return n
}

// ClusterBucket summarizes one geographic bucket: the rounded key, the
// centroid of the raw member coordinates, the summed revenue and the member
// count.
type ClusterBucket struct {
	Cluster   ClusterKey `json:"cluster"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Revenue   float64    `json:"revenue"`
	Count     int        `json:"count"`
}

// DimensionRow is one row of a per-dimension revenue summary (by product,
// client, city, zone or category).
type DimensionRow struct {
	Value   string  `json:"value"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// MonthlyPoint is one month of the revenue time series.
type MonthlyPoint struct {
	Month   time.Time `json:"month"`
	Revenue float64   `json:"revenue"`
}

// Summary holds the headline figures for a (possibly filtered) table.
type Summary struct {
	TotalRevenue     float64 `json:"total_revenue"`
	TotalUnits       float64 `json:"total_units"`
	RecordCount      int     `json:"record_count"`
	AverageTicket    float64 `json:"average_ticket"`
	TotalMargin      float64 `json:"total_margin"`
	MarginPct        float64 `json:"margin_pct"`
	InvalidDateCount int     `json:"invalid_date_count"`
}
