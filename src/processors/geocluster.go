// backend/src/processors/geocluster.go
package processors

import (
	"sort"

	"github.com/username/farmadash/backend/src/models"
	"github.com/username/farmadash/backend/src/utils"
)

// ClusterKeyFor rounds a coordinate pair to the clustering precision. The
// normalizer's convenience column and the aggregator both call this, so the
// two representations cannot diverge.
func ClusterKeyFor(lat, lon float64, precision int) models.ClusterKey {
	return models.ClusterKey{
		Lat: utils.RoundTo(lat, precision),
		Lon: utils.RoundTo(lon, precision),
	}
}

// GeoClusterAggregator groups coordinate-bearing records into rounded buckets
// with summed revenue and centroid coordinates. It keeps no state across
// calls; every invocation recomputes from its input.
type GeoClusterAggregator struct{}

func NewGeoClusterAggregator() *GeoClusterAggregator {
	return &GeoClusterAggregator{}
}

type clusterGroup struct {
	revenue float64
	lats    []float64
	lons    []float64
	count   int
}

// Aggregate buckets the records of a table that carry both coordinates.
// Records missing either coordinate are skipped — a normal filtering step,
// not an error — so the buckets partition exactly the coordinate-present
// subset. Revenue is summed over the chosen field, with nil values
// contributing zero; the bucket coordinates are the mean of the raw member
// coordinates, not the rounded key. Output is sorted by revenue descending
// with ties kept in first-encountered order, so repeated calls on an
// unchanged table are byte-for-byte identical.
//
// An empty table, or one whose source had no geo column, yields an empty
// slice. Precision may be any integer, including negative.
func (a *GeoClusterAggregator) Aggregate(table *models.SalesTable, precision int, field models.RevenueField) []models.ClusterBucket {
	if table == nil || table.Len() == 0 {
		return []models.ClusterBucket{}
	}

	groups := make(map[models.ClusterKey]*clusterGroup)
	var order []models.ClusterKey

	for i := range table.Records {
		rec := &table.Records[i]
		if !rec.HasCoordinates() {
			continue
		}
		key := ClusterKeyFor(*rec.Latitude, *rec.Longitude, precision)
		g, ok := groups[key]
		if !ok {
			g = &clusterGroup{}
			groups[key] = g
			order = append(order, key)
		}
		if rev := rec.Revenue(field); rev != nil {
			g.revenue += *rev
		}
		g.lats = append(g.lats, *rec.Latitude)
		g.lons = append(g.lons, *rec.Longitude)
		g.count++
	}

	buckets := make([]models.ClusterBucket, 0, len(order))
	for _, key := range order {
		g := groups[key]
		buckets = append(buckets, models.ClusterBucket{
			Cluster:   key,
			Latitude:  utils.Mean(g.lats),
			Longitude: utils.Mean(g.lons),
			Revenue:   g.revenue,
			Count:     g.count,
		})
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Revenue > buckets[j].Revenue
	})

	return buckets
}
