// backend/src/services/dataset_service.go
package services

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/farmadash/backend/src/logger"
	"github.com/username/farmadash/backend/src/models"
	"github.com/username/farmadash/backend/src/parsers"
	"github.com/username/farmadash/backend/src/processors"
	"github.com/username/farmadash/backend/src/utils"
)

const (
	// Cluster-aggregate cache, keyed on filtered-table fingerprint,
	// precision and revenue field.
	ckClusterAgg = "agg_clusters_%s_p%d_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type datasetServiceImpl struct {
	csvParser  *parsers.CSVParser
	normalizer *processors.Normalizer
	aggregator *processors.GeoClusterAggregator
	aggCache   *cache.Cache

	mu          sync.RWMutex
	baseline    *models.SalesTable
	datasetID   string
	fingerprint string
}

func NewDatasetService(
	csvParser *parsers.CSVParser,
	normalizer *processors.Normalizer,
	aggregator *processors.GeoClusterAggregator,
	aggCache *cache.Cache,
) DatasetService {
	return &datasetServiceImpl{
		csvParser:  csvParser,
		normalizer: normalizer,
		aggregator: aggregator,
		aggCache:   aggCache,
	}
}

func (s *datasetServiceImpl) LoadDataset(fileReader io.Reader) (*LoadResult, error) {
	raw, err := s.csvParser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return s.install(raw), nil
}

func (s *datasetServiceImpl) LoadDatasetFromFile(path string) (*LoadResult, error) {
	raw, err := s.csvParser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return s.install(raw), nil
}

// install normalizes a freshly parsed table and swaps it in as the new
// baseline. The previous dataset's cached aggregations are flushed; they were
// keyed on the old content fingerprint and would only go stale.
func (s *datasetServiceImpl) install(raw *models.RawTable) *LoadResult {
	startTime := time.Now()
	table := s.normalizer.Normalize(raw)
	datasetID := uuid.NewString()
	fingerprint := utils.TableFingerprint(table.Columns, table.Raw)

	s.mu.Lock()
	s.baseline = table
	s.datasetID = datasetID
	s.fingerprint = fingerprint
	s.mu.Unlock()

	s.aggCache.Flush()

	result := &LoadResult{
		DatasetID:        datasetID,
		Columns:          table.Columns,
		RecordCount:      table.Len(),
		InvalidDateCount: table.InvalidDateCount(),
		GeocodedCount:    table.GeocodedCount(),
	}
	logger.L.Info("Dataset loaded",
		"datasetID", datasetID,
		"records", result.RecordCount,
		"invalidDates", result.InvalidDateCount,
		"geocoded", result.GeocodedCount,
		"duration", time.Since(startTime))
	return result
}

func (s *datasetServiceImpl) Baseline() (*models.SalesTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.baseline == nil {
		return nil, ErrNoDataset
	}
	return s.baseline, nil
}

// FilteredTable applies the presentation layer's predicates to a copy of the
// baseline. The baseline itself is never touched, so repeated filter changes
// cannot corrupt the loaded data.
func (s *datasetServiceImpl) FilteredTable(filter FilterOptions) (*models.SalesTable, error) {
	baseline, err := s.Baseline()
	if err != nil {
		return nil, err
	}
	return applyFilter(baseline, filter), nil
}

func (s *datasetServiceImpl) Summary(filter FilterOptions, field models.RevenueField) (*models.Summary, error) {
	filtered, err := s.FilteredTable(filter)
	if err != nil {
		return nil, err
	}
	summary := processors.Summarize(filtered, field)

	// The invalid-date count is reported over the unfiltered baseline: the
	// point is to show how many rows degraded on load, not how many survived
	// the current filters.
	baseline, err := s.Baseline()
	if err != nil {
		return nil, err
	}
	summary.InvalidDateCount = baseline.InvalidDateCount()
	return &summary, nil
}

func (s *datasetServiceImpl) DimensionSummary(filter FilterOptions, dim processors.Dimension, field models.RevenueField, limit int) ([]models.DimensionRow, error) {
	filtered, err := s.FilteredTable(filter)
	if err != nil {
		return nil, err
	}
	rows, ok := processors.ByDimension(filtered, dim, field, limit)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDimensionUnavailable, dim)
	}
	return rows, nil
}

func (s *datasetServiceImpl) MonthlySeries(filter FilterOptions, field models.RevenueField) ([]models.MonthlyPoint, error) {
	filtered, err := s.FilteredTable(filter)
	if err != nil {
		return nil, err
	}
	return processors.MonthlySeries(filtered, field), nil
}

// ClusterAggregate computes (or fetches) the geo-cluster buckets for the
// filtered table. Results are memoized keyed on the filtered content
// fingerprint plus the call arguments; the aggregator itself stays stateless.
func (s *datasetServiceImpl) ClusterAggregate(filter FilterOptions, precision int, field models.RevenueField) ([]models.ClusterBucket, error) {
	filtered, err := s.FilteredTable(filter)
	if err != nil {
		return nil, err
	}

	fingerprint := utils.TableFingerprint(filtered.Columns, filtered.Raw)
	cacheKey := fmt.Sprintf(ckClusterAgg, fingerprint, precision, field)
	if cached, found := s.aggCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for cluster aggregation", "precision", precision, "field", field)
		return cached.([]models.ClusterBucket), nil
	}

	buckets := s.aggregator.Aggregate(filtered, precision, field)
	s.aggCache.Set(cacheKey, buckets, DefaultCacheExpiration)
	logger.L.Info("Computed cluster aggregation",
		"precision", precision, "field", field,
		"inputRecords", filtered.Len(), "buckets", len(buckets))
	return buckets, nil
}

// ExportCSV writes the filtered table back out in the source's ';'-delimited
// format. Only original raw cells are written, so a round trip through load
// and export is lossless.
func (s *datasetServiceImpl) ExportCSV(w io.Writer, filter FilterOptions) error {
	filtered, err := s.FilteredTable(filter)
	if err != nil {
		return err
	}
	return s.csvParser.Write(w, filtered.Columns, filtered.Raw)
}

// applyFilter builds a new table holding the records (and their raw rows)
// that pass every predicate.
func applyFilter(baseline *models.SalesTable, filter FilterOptions) *models.SalesTable {
	filtered := &models.SalesTable{
		Columns:   append([]string(nil), baseline.Columns...),
		Precision: baseline.Precision,
	}

	for i := range baseline.Records {
		rec := &baseline.Records[i]
		if !matchesFilter(rec, filter) {
			continue
		}
		filtered.Records = append(filtered.Records, *rec)
		filtered.Raw = append(filtered.Raw, baseline.Raw[i])
	}
	return filtered
}

func matchesFilter(rec *models.SalesRecord, filter FilterOptions) bool {
	if !filter.IncludeInvalidDates && !rec.DateValid {
		return false
	}
	if filter.StartDate != nil || filter.EndDate != nil {
		if rec.SaleDate == nil {
			return false
		}
		if filter.StartDate != nil && rec.SaleDate.Before(*filter.StartDate) {
			return false
		}
		if filter.EndDate != nil && rec.SaleDate.After(*filter.EndDate) {
			return false
		}
	}

	return matchesMembership(rec.Category, filter.Categories) &&
		matchesMembership(rec.Product, filter.Products) &&
		matchesMembership(rec.Client, filter.Clients) &&
		matchesMembership(rec.City, filter.Cities) &&
		matchesMembership(rec.Zone, filter.Zones)
}

// matchesMembership checks a categorical value against a selection. An empty
// selection filters nothing; a record with no value never matches a non-empty
// selection.
func matchesMembership(val *string, selection []string) bool {
	if len(selection) == 0 {
		return true
	}
	if val == nil {
		return false
	}
	for _, s := range selection {
		if *val == s {
			return true
		}
	}
	return false
}
