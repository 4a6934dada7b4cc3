package mongo

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosight/imgw-analytics/internal/domain"
)

func TestStationStatDoc(t *testing.T) {
	fixed := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	defer domain.SetClock(nil)

	row := domain.StationDayStat{
		StationID:   "100",
		Date:        time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Period:      domain.PeriodDay,
		Count:       12,
		Mean:        20.5,
		Median:      20.0,
		TrimmedMean: 20.25,
	}

	doc := stationStatDoc("B00300S", row)
	assert.Equal(t, "B00300S", doc["parameter"])
	assert.Equal(t, "day", doc["period"])
	assert.Equal(t, 12, doc["count"])
	assert.Equal(t, fixed, doc["updated_at"])
}

func TestChangeDoc_OmitsNilDeltas(t *testing.T) {
	row := domain.ChangeRecord{
		AdminID:     "14",
		Layer:       "region",
		Period:      domain.PeriodNight,
		WindowStart: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Mean:        4.5,
		Median:      4.0,
	}

	doc := changeDoc("B00702A", row)
	_, hasMeanDelta := doc["mean_delta"]
	_, hasMedianDelta := doc["median_delta"]
	assert.False(t, hasMeanDelta)
	assert.False(t, hasMedianDelta)
}

func TestChangeDoc_IncludesDeltas(t *testing.T) {
	meanDelta, medianDelta := 1.5, -0.5
	row := domain.ChangeRecord{
		AdminID:     "14",
		Layer:       "region",
		Period:      domain.PeriodDay,
		WindowStart: time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC),
		Mean:        6.0,
		Median:      3.5,
		MeanDelta:   &meanDelta,
		MedianDelta: &medianDelta,
	}

	doc := changeDoc("B00300S", row)
	require.Contains(t, doc, "mean_delta")
	assert.Equal(t, 1.5, doc["mean_delta"])
	assert.Equal(t, -0.5, doc["median_delta"])
}
