// backend/src/services/interfaces.go
package services

import (
	"errors"
	"io"
	"time"

	"github.com/username/farmadash/backend/src/models"
	"github.com/username/farmadash/backend/src/processors"
)

var (
	// ErrNoDataset is returned when a view is requested before any sales
	// export has been loaded.
	ErrNoDataset = errors.New("no dataset loaded")

	// ErrParsingFailed wraps structural CSV failures during a load.
	ErrParsingFailed = errors.New("failed to parse sales file")

	// ErrDimensionUnavailable is returned when a per-dimension summary is
	// requested for a column the source file never carried.
	ErrDimensionUnavailable = errors.New("dimension column not present in dataset")
)

// FilterOptions are the predicates the presentation layer applies to the
// baseline table before any aggregation. Zero values mean "no constraint";
// empty membership slices filter nothing.
type FilterOptions struct {
	StartDate           *time.Time
	EndDate             *time.Time
	IncludeInvalidDates bool

	Categories []string
	Products   []string
	Clients    []string
	Cities     []string
	Zones      []string
}

// LoadResult reports what a load produced, including the degraded-row counts
// that consumers must surface.
type LoadResult struct {
	DatasetID        string   `json:"dataset_id"`
	Columns          []string `json:"columns"`
	RecordCount      int      `json:"record_count"`
	InvalidDateCount int      `json:"invalid_date_count"`
	GeocodedCount    int      `json:"geocoded_count"`
}

// DatasetService is the core pipeline boundary: load once, then serve
// filtered views, summaries and cluster aggregates from the immutable
// in-memory table.
type DatasetService interface {
	LoadDataset(fileReader io.Reader) (*LoadResult, error)
	LoadDatasetFromFile(path string) (*LoadResult, error)

	// Baseline returns the canonical loaded table. Callers must treat it as
	// read-only; all mutation-like operations go through FilteredTable.
	Baseline() (*models.SalesTable, error)

	FilteredTable(filter FilterOptions) (*models.SalesTable, error)
	Summary(filter FilterOptions, field models.RevenueField) (*models.Summary, error)
	DimensionSummary(filter FilterOptions, dim processors.Dimension, field models.RevenueField, limit int) ([]models.DimensionRow, error)
	MonthlySeries(filter FilterOptions, field models.RevenueField) ([]models.MonthlyPoint, error)
	ClusterAggregate(filter FilterOptions, precision int, field models.RevenueField) ([]models.ClusterBucket, error)
	ExportCSV(w io.Writer, filter FilterOptions) error
}
