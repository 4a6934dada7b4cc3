package domain

import (
	"testing"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimmedMean(t *testing.T) {
	t.Run("trims one value from each end", func(t *testing.T) {
		// n=10, frac=0.1 -> k=1: drop min and max.
		values := []float64{100, 2, 3, 4, 5, 6, 7, 8, 9, -50}
		got, err := TrimmedMean(values, 0.1)

		require.NoError(t, err)
		assert.InDelta(t, 5.5, got, 1e-9)
	})

	t.Run("falls back to plain mean when group is too small", func(t *testing.T) {
		// n=4, frac=0.5 -> 2k=4 >= n: trimming would remove everything.
		values := []float64{1, 2, 3, 4}
		got, err := TrimmedMean(values, 0.5)

		require.NoError(t, err)
		mean, _ := stats.Mean(values)
		assert.Equal(t, mean, got)
	})

	t.Run("equals untrimmed mean for small counts", func(t *testing.T) {
		// Property: count <= 2/frac implies floor(n*frac)*2 >= n only when
		// trimming is degenerate; for n < 1/frac, k=0 and the trimmed mean
		// equals the plain mean exactly.
		values := []float64{3, 1, 2}
		got, err := TrimmedMean(values, 0.1)

		require.NoError(t, err)
		assert.InDelta(t, 2.0, got, 1e-9)
	})

	t.Run("stays within min and max", func(t *testing.T) {
		cases := [][]float64{
			{1},
			{10, 20},
			{-5, 0, 5, 100},
			{2.5, 2.5, 2.5, 2.5, 2.5},
			{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, -1, 40},
		}
		for _, values := range cases {
			got, err := TrimmedMean(values, 0.1)
			require.NoError(t, err)

			lo, _ := stats.Min(values)
			hi, _ := stats.Max(values)
			assert.GreaterOrEqual(t, got, lo)
			assert.LessOrEqual(t, got, hi)
		}
	})

	t.Run("does not reorder the input", func(t *testing.T) {
		values := []float64{5, 1, 4, 2, 3, 9, 0, 8, 7, 6}
		_, err := TrimmedMean(values, 0.1)

		require.NoError(t, err)
		assert.Equal(t, []float64{5, 1, 4, 2, 3, 9, 0, 8, 7, 6}, values)
	})

	t.Run("empty input errors", func(t *testing.T) {
		_, err := TrimmedMean(nil, 0.1)
		require.Error(t, err)
	})
}

func TestDaylightWindowClassify(t *testing.T) {
	window := DaylightWindow{
		StationID: "249200160",
		Sunrise:   mustTime(t, "2024-06-01T04:00:00Z"),
		Sunset:    mustTime(t, "2024-06-01T19:00:00Z"),
		Resolved:  true,
	}

	tests := []struct {
		name string
		at   string
		want Period
	}{
		{"before sunrise", "2024-06-01T03:59:59Z", PeriodNight},
		{"exactly sunrise", "2024-06-01T04:00:00Z", PeriodDay},
		{"midday", "2024-06-01T12:00:00Z", PeriodDay},
		{"exactly sunset", "2024-06-01T19:00:00Z", PeriodDay},
		{"after sunset", "2024-06-01T19:00:01Z", PeriodNight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, window.Classify(mustTime(t, tt.at)))
		})
	}

	t.Run("unresolved window is always unknown", func(t *testing.T) {
		w := DaylightWindow{StationID: "x"}
		assert.Equal(t, PeriodUnknown, w.Classify(mustTime(t, "2024-06-01T12:00:00Z")))
	})
}

func TestDateOf(t *testing.T) {
	got := DateOf(mustTime(t, "2024-03-31T23:59:59Z"))
	assert.Equal(t, mustTime(t, "2024-03-31T00:00:00Z"), got)
	assert.Equal(t, "UTC", got.Location().String())
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
