// Package change resamples admin aggregate series onto a fixed cadence and
// derives period-over-period deltas.
package change

import (
	"sort"
	"time"

	"github.com/meteosight/imgw-analytics/internal/domain"
)

// DefaultCadence is the resampling window width.
const DefaultCadence = 7 * 24 * time.Hour

type partitionKey struct {
	adminID string
	layer   string
	period  domain.Period
}

type windowAccum struct {
	means   []float64
	medians []float64
}

// Compute partitions the aggregate series by (admin, period), resamples each
// partition onto fixed non-overlapping windows of the given cadence anchored
// at the partition's earliest date, and emits one ChangeRecord per window
// with the delta against the immediately preceding window. The first window
// of every partition carries nil deltas, as does the first populated window
// after any empty cadence window; a partition with a single window still
// produces one record. An empty input yields an empty relation.
func Compute(aggregates []domain.AdminAggregateStat, cadence time.Duration) []domain.ChangeRecord {
	if cadence <= 0 {
		cadence = DefaultCadence
	}

	partitions := make(map[partitionKey][]domain.AdminAggregateStat)
	for _, agg := range aggregates {
		key := partitionKey{adminID: agg.AdminID, layer: agg.Layer, period: agg.Period}
		partitions[key] = append(partitions[key], agg)
	}

	keys := make([]partitionKey, 0, len(partitions))
	for key := range partitions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].adminID != keys[j].adminID {
			return keys[i].adminID < keys[j].adminID
		}
		if keys[i].layer != keys[j].layer {
			return keys[i].layer < keys[j].layer
		}
		return keys[i].period < keys[j].period
	})

	var out []domain.ChangeRecord
	for _, key := range keys {
		out = append(out, computePartition(key, partitions[key], cadence)...)
	}
	return out
}

func computePartition(key partitionKey, rows []domain.AdminAggregateStat, cadence time.Duration) []domain.ChangeRecord {
	start := rows[0].Date
	for _, row := range rows[1:] {
		if row.Date.Before(start) {
			start = row.Date
		}
	}

	// Resample: each row falls into the window floor((date-start)/cadence).
	windows := make(map[int]*windowAccum)
	maxIdx := 0
	for _, row := range rows {
		idx := int(row.Date.Sub(start) / cadence)
		w := windows[idx]
		if w == nil {
			w = &windowAccum{}
			windows[idx] = w
		}
		w.means = append(w.means, row.MeanOfMeans)
		w.medians = append(w.medians, row.MeanOfMedians)
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	// Windows with no data produce no record, but they still break the
	// delta chain: a populated window following one or more empty windows
	// has nothing adjacent to diff against, so its deltas stay nil.
	records := make([]domain.ChangeRecord, 0, len(windows))
	var prev *domain.ChangeRecord
	for idx := 0; idx <= maxIdx; idx++ {
		w, ok := windows[idx]
		if !ok {
			prev = nil
			continue
		}

		rec := domain.ChangeRecord{
			AdminID:     key.adminID,
			Layer:       key.layer,
			Period:      key.period,
			WindowStart: start.Add(time.Duration(idx) * cadence),
			Mean:        mean(w.means),
			Median:      mean(w.medians),
		}
		if prev != nil {
			meanDelta := rec.Mean - prev.Mean
			medianDelta := rec.Median - prev.Median
			rec.MeanDelta = &meanDelta
			rec.MedianDelta = &medianDelta
		}

		records = append(records, rec)
		prev = &records[len(records)-1]
	}
	return records
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
