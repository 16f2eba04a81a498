// backend/src/processors/summary.go
package processors

import (
	"sort"
	"time"

	"github.com/username/farmadash/backend/src/models"
)

// Dimension names a categorical axis for per-dimension revenue summaries.
type Dimension string

const (
	DimProduct  Dimension = "product"
	DimClient   Dimension = "client"
	DimCategory Dimension = "category"
	DimCity     Dimension = "city"
	DimZone     Dimension = "zone"
)

// sourceColumn maps a dimension to the source column that must exist for the
// summary to be computable.
func (d Dimension) sourceColumn() string {
	switch d {
	case DimProduct:
		return models.ColProduct
	case DimClient:
		return models.ColClient
	case DimCategory:
		return models.ColCategory
	case DimCity:
		return models.ColCity
	case DimZone:
		return models.ColZone
	}
	return ""
}

func (d Dimension) recordValue(rec *models.SalesRecord) *string {
	switch d {
	case DimProduct:
		return rec.Product
	case DimClient:
		return rec.Client
	case DimCategory:
		return rec.Category
	case DimCity:
		return rec.City
	case DimZone:
		return rec.Zone
	}
	return nil
}

// Summarize computes the headline figures over a table using the chosen
// revenue field. Nil revenue, units and margin values contribute zero. The
// average ticket divides by the record count and short-circuits to zero on an
// empty table. InvalidDateCount is filled by the caller from the unfiltered
// baseline, so the degraded-row count stays visible whatever filters are
// active.
func Summarize(table *models.SalesTable, field models.RevenueField) models.Summary {
	var s models.Summary
	if table == nil {
		return s
	}
	s.RecordCount = table.Len()
	for i := range table.Records {
		rec := &table.Records[i]
		if rev := rec.Revenue(field); rev != nil {
			s.TotalRevenue += *rev
		}
		if rec.Units != nil {
			s.TotalUnits += *rec.Units
		}
		if rec.Margin != nil {
			s.TotalMargin += *rec.Margin
		}
	}
	if s.RecordCount > 0 {
		s.AverageTicket = s.TotalRevenue / float64(s.RecordCount)
	}
	if s.TotalRevenue != 0 {
		s.MarginPct = s.TotalMargin / s.TotalRevenue
	}
	return s
}

// ByDimension sums the chosen revenue field per value of a categorical
// dimension, sorted by revenue descending with first-encountered tie order.
// The second result is false when the source file never carried the
// dimension's column; callers skip the summary instead of failing on a
// half-defined grouping. Records with a nil value for the dimension are
// excluded. limit > 0 caps the number of rows returned.
func ByDimension(table *models.SalesTable, dim Dimension, field models.RevenueField, limit int) ([]models.DimensionRow, bool) {
	col := dim.sourceColumn()
	if table == nil || col == "" || !table.HasColumn(col) {
		return nil, false
	}

	totals := make(map[string]*models.DimensionRow)
	var order []string
	for i := range table.Records {
		rec := &table.Records[i]
		val := dim.recordValue(rec)
		if val == nil {
			continue
		}
		row, ok := totals[*val]
		if !ok {
			row = &models.DimensionRow{Value: *val}
			totals[*val] = row
			order = append(order, *val)
		}
		if rev := rec.Revenue(field); rev != nil {
			row.Revenue += *rev
		}
		row.Count++
	}

	rows := make([]models.DimensionRow, 0, len(order))
	for _, v := range order {
		rows = append(rows, *totals[v])
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Revenue > rows[j].Revenue
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, true
}

// MonthlySeries buckets valid-dated records by calendar month and sums the
// chosen revenue field per month, sorted chronologically. Records without a
// valid date are skipped.
func MonthlySeries(table *models.SalesTable, field models.RevenueField) []models.MonthlyPoint {
	if table == nil {
		return []models.MonthlyPoint{}
	}

	totals := make(map[time.Time]float64)
	for i := range table.Records {
		rec := &table.Records[i]
		if rec.SaleDate == nil {
			continue
		}
		month := time.Date(rec.SaleDate.Year(), rec.SaleDate.Month(), 1, 0, 0, 0, 0, time.UTC)
		if rev := rec.Revenue(field); rev != nil {
			totals[month] += *rev
		} else {
			totals[month] += 0
		}
	}

	points := make([]models.MonthlyPoint, 0, len(totals))
	for month, revenue := range totals {
		points = append(points, models.MonthlyPoint{Month: month, Revenue: revenue})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Month.Before(points[j].Month)
	})
	return points
}
