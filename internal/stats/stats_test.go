package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/stats"
)

func classified(station, ts string, value float64, period domain.Period) domain.ClassifiedObservation {
	parsed, _ := time.Parse(time.RFC3339, ts)
	return domain.ClassifiedObservation{
		Observation: domain.Observation{StationID: station, Parameter: "B00300S", Timestamp: parsed, Value: value},
		Period:      period,
	}
}

func TestAggregate(t *testing.T) {
	t.Run("round trip scenario groups", func(t *testing.T) {
		input := []domain.ClassifiedObservation{
			classified("A", "2024-05-10T05:00:00Z", 10.0, domain.PeriodNight),
			classified("A", "2024-05-10T12:00:00Z", 10.0, domain.PeriodDay),
			classified("A", "2024-05-10T19:00:00Z", 10.0, domain.PeriodNight),
			classified("B", "2024-05-10T12:00:00Z", 10.0, domain.PeriodUnknown),
		}

		got := stats.Aggregate(input, domain.DefaultTrimFraction)

		require.Len(t, got, 3)

		day := got[0] // sorted: A/day, A/night, B/unknown
		assert.Equal(t, "A", day.StationID)
		assert.Equal(t, domain.PeriodDay, day.Period)
		assert.Equal(t, 1, day.Count)
		assert.Equal(t, 10.0, day.Mean)

		night := got[1]
		assert.Equal(t, domain.PeriodNight, night.Period)
		assert.Equal(t, 2, night.Count)
		assert.Equal(t, 10.0, night.Mean)
		assert.Equal(t, 10.0, night.Median)

		unknown := got[2]
		assert.Equal(t, "B", unknown.StationID)
		assert.Equal(t, domain.PeriodUnknown, unknown.Period)
		assert.Equal(t, 1, unknown.Count)
	})

	t.Run("computes all four statistics", func(t *testing.T) {
		var input []domain.ClassifiedObservation
		// 10 values 1..10 with one outlier replaced: 1..9 plus 100.
		values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100}
		base := time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)
		for i, v := range values {
			input = append(input, domain.ClassifiedObservation{
				Observation: domain.Observation{
					StationID: "A",
					Timestamp: base.Add(time.Duration(i) * time.Minute),
					Value:     v,
				},
				Period: domain.PeriodDay,
			})
		}

		got := stats.Aggregate(input, 0.1)

		require.Len(t, got, 1)
		row := got[0]
		assert.Equal(t, 10, row.Count)
		assert.InDelta(t, 14.5, row.Mean, 1e-9)
		assert.InDelta(t, 5.5, row.Median, 1e-9)
		// k=1: drop 1 and 100 from the sorted values, mean of 2..9.
		assert.InDelta(t, 5.5, row.TrimmedMean, 1e-9)
	})

	t.Run("splits groups by date across midnight", func(t *testing.T) {
		input := []domain.ClassifiedObservation{
			classified("A", "2024-05-10T23:50:00Z", 1.0, domain.PeriodNight),
			classified("A", "2024-05-11T00:10:00Z", 3.0, domain.PeriodNight),
		}

		got := stats.Aggregate(input, 0.1)

		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Count)
		assert.Equal(t, 1, got[1].Count)
		assert.True(t, got[0].Date.Before(got[1].Date))
	})

	t.Run("empty input yields empty relation", func(t *testing.T) {
		got := stats.Aggregate(nil, 0.1)
		assert.Empty(t, got)
	})
}
