// backend/src/processors/normalizer.go
package processors

import (
	"github.com/username/farmadash/backend/src/models"
	"github.com/username/farmadash/backend/src/parsers"
)

// Normalizer turns a raw string table into the normalized sales table:
// numeric and date coercion, coordinate extraction, categorical aliases and
// derived revenue/margin fields. Every source column is optional; a derived
// field whose source column is missing stays uniformly absent.
type Normalizer struct {
	// Decimal precision for the convenience cluster-key column. The
	// aggregator recomputes keys itself through the same rounding helper.
	precision int
}

func NewNormalizer(precision int) *Normalizer {
	return &Normalizer{precision: precision}
}

// Normalize produces the immutable baseline table for one load. Per-cell
// parsing failures degrade to nil fields; Normalize itself never fails on
// data content.
func (n *Normalizer) Normalize(raw *models.RawTable) *models.SalesTable {
	idxDate := raw.ColumnIndex(models.ColSaleDate)
	idxUnits := raw.ColumnIndex(models.ColUnits)
	idxInvoiced := raw.ColumnIndex(models.ColRevenueInvoiced)
	idxCost := raw.ColumnIndex(models.ColCost)
	idxLine := raw.ColumnIndex(models.ColRevenueLine)
	idxGeo := raw.ColumnIndex(models.ColGeo)
	idxClient := raw.ColumnIndex(models.ColClient)
	idxProduct := raw.ColumnIndex(models.ColProduct)
	idxCategory := raw.ColumnIndex(models.ColCategory)
	idxCity := raw.ColumnIndex(models.ColCity)
	idxZone := raw.ColumnIndex(models.ColZone)

	table := &models.SalesTable{
		Columns:   append([]string(nil), raw.Columns...),
		Raw:       raw.Rows,
		Records:   make([]models.SalesRecord, 0, len(raw.Rows)),
		Precision: n.precision,
	}

	for i := range raw.Rows {
		var rec models.SalesRecord

		if idxDate >= 0 {
			rec.SaleDateRaw = raw.Cell(i, idxDate)
			if t, ok := parsers.ParseSaleDate(rec.SaleDateRaw); ok {
				rec.SaleDate = &t
				rec.DateValid = true
			}
		}

		if idxUnits >= 0 {
			rec.Units = parsers.ToNumber(raw.Cell(i, idxUnits))
		}
		if idxCost >= 0 {
			rec.Cost = parsers.ToNumber(raw.Cell(i, idxCost))
		}
		if idxInvoiced >= 0 {
			rec.RevenueInvoiced = parsers.ToNumber(raw.Cell(i, idxInvoiced))
		}
		if idxLine >= 0 {
			rec.RevenueLine = parsers.ToNumber(raw.Cell(i, idxLine))
		}

		// Default revenue prefers the invoiced amount, falling back to the
		// line amount. Only ever populated from source-present columns.
		if rec.RevenueInvoiced != nil {
			v := *rec.RevenueInvoiced
			rec.RevenueDefault = &v
		} else if rec.RevenueLine != nil {
			v := *rec.RevenueLine
			rec.RevenueDefault = &v
		}

		if idxGeo >= 0 {
			rec.Latitude, rec.Longitude = parsers.ExtractLatLon(raw.Cell(i, idxGeo))
			if rec.HasCoordinates() {
				key := ClusterKeyFor(*rec.Latitude, *rec.Longitude, n.precision)
				rec.ClusterKey = &key
			}
		}

		rec.Client = aliasCell(raw, i, idxClient)
		rec.Product = aliasCell(raw, i, idxProduct)
		rec.Category = aliasCell(raw, i, idxCategory)
		rec.City = aliasCell(raw, i, idxCity)
		rec.Zone = aliasCell(raw, i, idxZone)

		// Margin requires both cost and the line revenue; the percentage
		// additionally requires a non-zero denominator. Division never
		// reaches a zero or absent denominator.
		if idxCost >= 0 && idxLine >= 0 && rec.Cost != nil && rec.RevenueLine != nil {
			margin := *rec.RevenueLine - *rec.Cost
			rec.Margin = &margin
			if *rec.RevenueLine != 0 {
				pct := margin / *rec.RevenueLine
				rec.MarginPct = &pct
			}
		}

		table.Records = append(table.Records, rec)
	}

	return table
}

// aliasCell copies a categorical source cell, or returns nil when the column
// is missing entirely.
func aliasCell(raw *models.RawTable, row, col int) *string {
	if col < 0 {
		return nil
	}
	v := raw.Cell(row, col)
	return &v
}
