package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/farmadash/backend/src/models"
)

func fullRawTable() *models.RawTable {
	return &models.RawTable{
		Columns: []string{
			models.ColSaleDate, models.ColUnits, models.ColRevenueInvoiced,
			models.ColCost, models.ColRevenueLine, models.ColGeo,
			models.ColClient, models.ColProduct, models.ColCategory,
			models.ColCity, models.ColZone,
		},
		Rows: [][]string{
			{"05/03/2024", "2", "1.234,56", "800", "1000", "10.5,-66.9", "Farmacia Central", "Paracetamol 500mg", "Analgésicos", "Caracas", "Zona Este"},
			{"not-a-date", "abc", "", "0", "0", "garbage", "Botica del Sur", "Ibuprofeno", "Analgésicos", "Valencia", "Zona Oeste"},
			{"15/03/2024", "1", "", "50", "200", "10.5 -66.9", "Farmacia Central", "Amoxicilina", "Antibióticos", "Caracas", "Zona Este"},
		},
	}
}

func TestNormalizeDerivedFields(t *testing.T) {
	table := NewNormalizer(3).Normalize(fullRawTable())
	require.Equal(t, 3, table.Len())

	rec := table.Records[0]
	require.True(t, rec.DateValid)
	require.NotNil(t, rec.SaleDate)
	assert.Equal(t, "05/03/2024", rec.SaleDateRaw)

	require.NotNil(t, rec.RevenueInvoiced)
	assert.InDelta(t, 1234.56, *rec.RevenueInvoiced, 1e-9)
	require.NotNil(t, rec.RevenueDefault)
	assert.InDelta(t, 1234.56, *rec.RevenueDefault, 1e-9)

	require.NotNil(t, rec.Margin)
	assert.InDelta(t, 200, *rec.Margin, 1e-9) // 1000 - 800
	require.NotNil(t, rec.MarginPct)
	assert.InDelta(t, 0.2, *rec.MarginPct, 1e-9)

	require.True(t, rec.HasCoordinates())
	require.NotNil(t, rec.ClusterKey)
	assert.Equal(t, models.ClusterKey{Lat: 10.5, Lon: -66.9}, *rec.ClusterKey)

	require.NotNil(t, rec.Client)
	assert.Equal(t, "Farmacia Central", *rec.Client)
}

func TestNormalizeDateValidityInvariant(t *testing.T) {
	table := NewNormalizer(3).Normalize(fullRawTable())
	for i, rec := range table.Records {
		assert.Equal(t, rec.SaleDate != nil, rec.DateValid, "record %d", i)
	}
	assert.Equal(t, 1, table.InvalidDateCount())
}

func TestNormalizeDegradedRow(t *testing.T) {
	table := NewNormalizer(3).Normalize(fullRawTable())
	rec := table.Records[1]

	assert.False(t, rec.DateValid)
	assert.Nil(t, rec.SaleDate)
	assert.Equal(t, "not-a-date", rec.SaleDateRaw)
	assert.Nil(t, rec.Units)
	assert.Nil(t, rec.RevenueInvoiced)

	// Revenue default falls back to the line amount when invoiced is absent.
	require.NotNil(t, rec.RevenueDefault)
	assert.InDelta(t, 0, *rec.RevenueDefault, 1e-9)

	// Malformed geo text yields neither coordinate and no cluster key.
	assert.Nil(t, rec.Latitude)
	assert.Nil(t, rec.Longitude)
	assert.Nil(t, rec.ClusterKey)

	// Zero line revenue: margin defined, percentage not.
	require.NotNil(t, rec.Margin)
	assert.InDelta(t, 0, *rec.Margin, 1e-9)
	assert.Nil(t, rec.MarginPct)
}

func TestNormalizeWhitespaceCoordinatePair(t *testing.T) {
	table := NewNormalizer(3).Normalize(fullRawTable())
	rec := table.Records[2]
	require.True(t, rec.HasCoordinates())
	assert.InDelta(t, 10.5, *rec.Latitude, 1e-9)
	assert.InDelta(t, -66.9, *rec.Longitude, 1e-9)
}

func TestNormalizeMissingColumnsStayAbsent(t *testing.T) {
	raw := &models.RawTable{
		Columns: []string{models.ColRevenueLine},
		Rows:    [][]string{{"150,5"}},
	}
	table := NewNormalizer(3).Normalize(raw)
	require.Equal(t, 1, table.Len())
	rec := table.Records[0]

	assert.False(t, rec.DateValid)
	assert.Nil(t, rec.SaleDate)
	assert.Nil(t, rec.Units)
	assert.Nil(t, rec.Cost)
	assert.Nil(t, rec.RevenueInvoiced)
	assert.Nil(t, rec.Latitude)
	assert.Nil(t, rec.Client)
	assert.Nil(t, rec.Product)

	// Margin needs the cost column; with it missing the margin stays absent
	// even though line revenue parsed.
	assert.Nil(t, rec.Margin)
	assert.Nil(t, rec.MarginPct)

	require.NotNil(t, rec.RevenueLine)
	require.NotNil(t, rec.RevenueDefault)
	assert.InDelta(t, 150.5, *rec.RevenueDefault, 1e-9)
}

func TestNormalizeRevenueDefaultNeverInvented(t *testing.T) {
	raw := &models.RawTable{
		Columns: []string{models.ColSaleDate},
		Rows:    [][]string{{"01/01/2024"}},
	}
	table := NewNormalizer(3).Normalize(raw)
	assert.Nil(t, table.Records[0].RevenueDefault)
}

func TestNormalizeEmptyTable(t *testing.T) {
	raw := &models.RawTable{Columns: []string{models.ColSaleDate}}
	table := NewNormalizer(3).Normalize(raw)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, 0, table.InvalidDateCount())
	assert.Equal(t, 0, table.GeocodedCount())
}
