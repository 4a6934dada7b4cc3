package spatial_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/spatial"
)

// square returns a closed square polygon spanning [minLon,maxLon]x[minLat,maxLat].
func square(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

var testDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func stat(station string, period domain.Period, count int, mean, median, trimmed float64) domain.StationDayStat {
	return domain.StationDayStat{
		StationID: station, Date: testDate, Period: period,
		Count: count, Mean: mean, Median: median, TrimmedMean: trimmed,
	}
}

func TestLayer_Locate(t *testing.T) {
	layer := spatial.Layer{
		Name: "region",
		Polygons: []spatial.Polygon{
			{ID: "P1", Geometry: square(20, 50, 21, 51)},
			{ID: "P2", Geometry: orb.MultiPolygon{square(22, 50, 23, 51)}},
		},
	}

	t.Run("polygon containment", func(t *testing.T) {
		got, ok := layer.Locate(orb.Point{20.5, 50.5})
		require.True(t, ok)
		assert.Equal(t, "P1", got.ID)
	})

	t.Run("multipolygon containment", func(t *testing.T) {
		got, ok := layer.Locate(orb.Point{22.5, 50.5})
		require.True(t, ok)
		assert.Equal(t, "P2", got.ID)
	})

	t.Run("outside all polygons", func(t *testing.T) {
		_, ok := layer.Locate(orb.Point{0, 0})
		assert.False(t, ok)
	})
}

func TestAggregator_AggregateByLayer(t *testing.T) {
	agg := spatial.NewAggregator(slog.Default(), nil)

	stations := map[string]domain.Station{
		"A": {ID: "A", Location: &domain.Geo{Lat: 50.5, Lon: 20.5}}, // inside P1
		"B": {ID: "B", Location: &domain.Geo{Lat: 50.6, Lon: 20.6}}, // inside P1
		"C": {ID: "C", Location: &domain.Geo{Lat: 10.0, Lon: 10.0}}, // outside all
		"D": {ID: "D"}, // no location
	}

	layer := spatial.Layer{
		Name:     "region",
		Polygons: []spatial.Polygon{{ID: "P1", Geometry: square(20, 50, 21, 51)}},
	}

	t.Run("single station polygon reproduces station values", func(t *testing.T) {
		rows := []domain.StationDayStat{stat("A", domain.PeriodDay, 3, 12.5, 12.0, 12.25)}

		got, err := agg.AggregateByLayer(rows, stations, layer)

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "P1", got[0].AdminID)
		assert.Equal(t, "region", got[0].Layer)
		assert.Equal(t, 12.5, got[0].MeanOfMeans)
		assert.Equal(t, 12.0, got[0].MeanOfMedians)
		assert.Equal(t, 12.25, got[0].MeanOfTrimmedMeans)
		assert.Equal(t, 3, got[0].TotalCount)
	})

	t.Run("two-level aggregation and count conservation", func(t *testing.T) {
		rows := []domain.StationDayStat{
			stat("A", domain.PeriodDay, 4, 10.0, 9.0, 9.5),
			stat("B", domain.PeriodDay, 6, 20.0, 21.0, 20.5),
			stat("C", domain.PeriodDay, 99, 1000.0, 1000.0, 1000.0), // outside the layer
		}

		got, err := agg.AggregateByLayer(rows, stations, layer)

		require.NoError(t, err)
		require.Len(t, got, 1)
		// Mean of per-station statistics, not pooled raw values.
		assert.InDelta(t, 15.0, got[0].MeanOfMeans, 1e-9)
		assert.InDelta(t, 15.0, got[0].MeanOfMedians, 1e-9)
		assert.InDelta(t, 15.0, got[0].MeanOfTrimmedMeans, 1e-9)
		// total_count = sum over exactly the contained stations.
		assert.Equal(t, 10, got[0].TotalCount)
	})

	t.Run("periods and dates group independently", func(t *testing.T) {
		rows := []domain.StationDayStat{
			stat("A", domain.PeriodDay, 1, 10.0, 10.0, 10.0),
			stat("A", domain.PeriodNight, 2, -3.0, -3.0, -3.0),
			stat("A", domain.PeriodUnknown, 1, 0.0, 0.0, 0.0),
		}

		got, err := agg.AggregateByLayer(rows, stations, layer)

		require.NoError(t, err)
		require.Len(t, got, 3)
		periods := []domain.Period{got[0].Period, got[1].Period, got[2].Period}
		assert.ElementsMatch(t, []domain.Period{domain.PeriodDay, domain.PeriodNight, domain.PeriodUnknown}, periods)
	})

	t.Run("unknown and unlocated stations are excluded not fatal", func(t *testing.T) {
		rows := []domain.StationDayStat{
			stat("D", domain.PeriodDay, 1, 5.0, 5.0, 5.0),
			stat("ZZZ", domain.PeriodDay, 1, 5.0, 5.0, 5.0),
		}

		got, err := agg.AggregateByLayer(rows, stations, layer)

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty layer is a configuration error", func(t *testing.T) {
		_, err := agg.AggregateByLayer(nil, stations, spatial.Layer{Name: "empty"})
		assert.ErrorIs(t, err, domain.ErrNoPolygons)
	})

	t.Run("empty stats yield empty relation", func(t *testing.T) {
		got, err := agg.AggregateByLayer(nil, stations, layer)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
