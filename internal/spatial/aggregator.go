// Package spatial assigns station points to administrative polygons and
// aggregates station statistics per polygon. Both reference datasets are
// WGS-84 (RFC 7946 GeoJSON); the load-time range validation in the geodata
// adapter is the coordinate-system reconciliation this package relies on.
package spatial

import (
	"log/slog"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/observability"
)

// Polygon is one administrative unit of a layer.
type Polygon struct {
	ID       string
	Name     string
	Geometry orb.Geometry // Polygon or MultiPolygon
}

// Layer is a set of administrative polygons at one granularity. The pipeline
// runs two structurally identical layers, coarse regions and fine districts;
// layers never interact.
type Layer struct {
	Name     string
	Polygons []Polygon
}

// Locate returns the first polygon of the layer containing the point. A point
// inside no polygon returns ok=false; such stations are excluded from this
// layer's aggregation only.
func (l Layer) Locate(point orb.Point) (Polygon, bool) {
	for _, poly := range l.Polygons {
		if contains(poly.Geometry, point) {
			return poly, true
		}
	}
	return Polygon{}, false
}

func contains(geometry orb.Geometry, point orb.Point) bool {
	switch g := geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, point)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, point)
	default:
		return false
	}
}

// Aggregator joins station statistics onto a polygon layer.
type Aggregator struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAggregator creates an Aggregator. Metrics may be nil.
func NewAggregator(logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{logger: logger, metrics: metrics}
}

type adminKey struct {
	adminID string
	date    time.Time
	period  domain.Period
}

type adminGroup struct {
	means    []float64
	medians  []float64
	trimmeds []float64
	count    int
}

// AggregateByLayer assigns each StationDayStat row to the polygon containing
// its station and aggregates per (admin, date, period):
//
//	mean_of_means         = mean of per-station means
//	mean_of_medians       = mean of per-station medians
//	mean_of_trimmed_means = mean of per-station trimmed means
//	total_count           = sum of per-station counts
//
// This is a mean of means over station statistics, not a mean over raw
// observations. Stations missing from the reference map, stations without a
// location, and stations outside every polygon of the layer are excluded
// from this layer, counted, and logged. Returns domain.ErrNoPolygons when
// the layer is empty.
func (a *Aggregator) AggregateByLayer(stationStats []domain.StationDayStat, stations map[string]domain.Station, layer Layer) ([]domain.AdminAggregateStat, error) {
	if len(layer.Polygons) == 0 {
		return nil, domain.ErrNoPolygons
	}

	// Station-to-polygon assignment is date-independent; resolve each station
	// once rather than per row.
	assigned := make(map[string]string) // station id -> admin id
	missing := make(map[string]bool)    // station ids excluded from this layer

	groups := make(map[adminKey]*adminGroup)
	var unknown, outside int

	for _, row := range stationStats {
		adminID, ok := assigned[row.StationID]
		if !ok && !missing[row.StationID] {
			adminID, ok = a.assign(row.StationID, stations, layer, &unknown, &outside)
			if ok {
				assigned[row.StationID] = adminID
			} else {
				missing[row.StationID] = true
			}
		}
		if !ok {
			continue
		}

		key := adminKey{adminID: adminID, date: row.Date, period: row.Period}
		g := groups[key]
		if g == nil {
			g = &adminGroup{}
			groups[key] = g
		}
		g.means = append(g.means, row.Mean)
		g.medians = append(g.medians, row.Median)
		g.trimmeds = append(g.trimmeds, row.TrimmedMean)
		g.count += row.Count
	}

	if unknown > 0 || outside > 0 {
		a.logger.Warn("stations excluded from layer",
			"layer", layer.Name,
			"unknown_station", unknown,
			"outside_all_polygons", outside,
		)
	}

	out := make([]domain.AdminAggregateStat, 0, len(groups))
	for key, g := range groups {
		out = append(out, domain.AdminAggregateStat{
			AdminID:            key.adminID,
			Layer:              layer.Name,
			Date:               key.date,
			Period:             key.period,
			MeanOfMeans:        mean(g.means),
			MeanOfMedians:      mean(g.medians),
			MeanOfTrimmedMeans: mean(g.trimmeds),
			TotalCount:         g.count,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AdminID != out[j].AdminID {
			return out[i].AdminID < out[j].AdminID
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Period < out[j].Period
	})
	return out, nil
}

func (a *Aggregator) assign(stationID string, stations map[string]domain.Station, layer Layer, unknown, outside *int) (string, bool) {
	station, ok := stations[stationID]
	if !ok || station.Location == nil {
		*unknown++
		if a.metrics != nil {
			a.metrics.UnknownStations.WithLabelValues("spatial").Inc()
		}
		return "", false
	}

	point := orb.Point{station.Location.Lon, station.Location.Lat}
	poly, ok := layer.Locate(point)
	if !ok {
		*outside++
		return "", false
	}
	return poly.ID, true
}

// mean over a non-empty slice; groups are built append-first so the slice is
// never empty here.
func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
