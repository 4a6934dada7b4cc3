// Package stats computes robust per-station daily statistics from classified
// observations.
package stats

import (
	"sort"
	"time"

	mfstats "github.com/montanaflynn/stats"

	"github.com/meteosight/imgw-analytics/internal/domain"
)

type groupKey struct {
	stationID string
	date      time.Time
	period    domain.Period
}

// Aggregate groups classified observations by (station, date, period) and
// computes count, mean, median, and the trimmed mean for each group. Groups
// with the unknown period are reported like any other, so location-resolution
// gaps stay visible downstream. An empty input yields an empty relation.
//
// Output rows are ordered by (station, date, period) for deterministic
// downstream consumption; input order is insignificant.
func Aggregate(observations []domain.ClassifiedObservation, trimFraction float64) []domain.StationDayStat {
	groups := make(map[groupKey][]float64)
	for _, obs := range observations {
		key := groupKey{stationID: obs.StationID, date: obs.Date(), period: obs.Period}
		groups[key] = append(groups[key], obs.Value)
	}

	out := make([]domain.StationDayStat, 0, len(groups))
	for key, values := range groups {
		// Every group has count >= 1, so the stats calls cannot see empty input.
		mean, _ := mfstats.Mean(values)
		median, _ := mfstats.Median(values)
		trimmed, _ := domain.TrimmedMean(values, trimFraction)

		out = append(out, domain.StationDayStat{
			StationID:   key.stationID,
			Date:        key.date,
			Period:      key.period,
			Count:       len(values),
			Mean:        mean,
			Median:      median,
			TrimmedMean: trimmed,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StationID != out[j].StationID {
			return out[i].StationID < out[j].StationID
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Period < out[j].Period
	})
	return out
}
