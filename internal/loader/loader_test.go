package loader_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosight/imgw-analytics/internal/loader"
	"github.com/meteosight/imgw-analytics/internal/observability"
)

func stringSource(name, data string) loader.Source {
	return loader.Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(data)), nil
		},
	}
}

func TestLoader_Load(t *testing.T) {
	l := loader.New(slog.Default(), nil)

	t.Run("filters to the requested parameter", func(t *testing.T) {
		src := stringSource("jan.csv",
			"249200160;B00300S;2024-01-01 00:10;12,5;\n"+
				"249200160;B00702A;2024-01-01 00:10;3,2;\n"+
				"249200170;B00300S;2024-01-01 00:20;-1,0;\n")

		res, err := l.Load([]loader.Source{src}, "B00300S")

		require.NoError(t, err)
		require.Len(t, res.Observations, 2)
		assert.Equal(t, 0, res.Dropped)

		first := res.Observations[0]
		assert.Equal(t, "249200160", first.StationID)
		assert.Equal(t, "B00300S", first.Parameter)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC), first.Timestamp)
		assert.Equal(t, 12.5, first.Value)
	})

	t.Run("accepts both decimal separators", func(t *testing.T) {
		src := stringSource("mix.csv",
			"A;P1;2024-01-01 06:00;7,25;\n"+
				"A;P1;2024-01-01 06:10;7.75;\n")

		res, err := l.Load([]loader.Source{src}, "P1")

		require.NoError(t, err)
		require.Len(t, res.Observations, 2)
		assert.Equal(t, 7.25, res.Observations[0].Value)
		assert.Equal(t, 7.75, res.Observations[1].Value)
	})

	t.Run("drops malformed rows without failing", func(t *testing.T) {
		src := stringSource("bad.csv",
			"A;P1;not-a-date;1,0;\n"+
				"A;P1;2024-01-01 06:00;garbage;\n"+
				"A;P1;2024-01-01 06:10\n"+ // too few fields
				";P1;2024-01-01 06:20;2,0;\n"+ // empty station
				"A;P1;2024-01-01 06:30;3,0;\n")

		res, err := l.Load([]loader.Source{src}, "P1")

		require.NoError(t, err)
		require.Len(t, res.Observations, 1)
		assert.Equal(t, 3.0, res.Observations[0].Value)
		assert.Equal(t, 4, res.Dropped)
	})

	t.Run("every drop is counted in the metric with its reason", func(t *testing.T) {
		m := observability.NewMetricsForTesting()
		ml := loader.New(slog.Default(), m)
		src := stringSource("bad.csv",
			"A;P1;not-a-date;1,0;\n"+
				"A;P1;2024-01-01 06:00;garbage;\n"+
				"A;P1;2024-01-01 06:10\n"+ // too few fields
				";P1;2024-01-01 06:20;2,0;\n"+ // empty station
				"A;P1;2024-01-01 06:30;3,0;\n")

		res, err := ml.Load([]loader.Source{src}, "P1")

		require.NoError(t, err)
		assert.Equal(t, 4, res.Dropped)
		for _, reason := range []string{"timestamp", "value", "fields", "station"} {
			assert.Equal(t, 1.0,
				testutil.ToFloat64(m.RowsDropped.WithLabelValues("P1", reason)),
				"reason %s", reason)
		}
	})

	t.Run("concatenates multiple sources", func(t *testing.T) {
		a := stringSource("a.csv", "A;P1;2024-01-01 06:00;1,0;\n")
		b := stringSource("b.csv", "B;P1;2024-01-01 06:00;2,0;\n")

		res, err := l.Load([]loader.Source{a, b}, "P1")

		require.NoError(t, err)
		require.Len(t, res.Observations, 2)
		assert.Equal(t, "A", res.Observations[0].StationID)
		assert.Equal(t, "B", res.Observations[1].StationID)
	})

	t.Run("reload yields the same relation", func(t *testing.T) {
		src := stringSource("jan.csv", "A;P1;2024-01-01 06:00;1,5;\n")

		first, err := l.Load([]loader.Source{src}, "P1")
		require.NoError(t, err)
		second, err := l.Load([]loader.Source{src}, "P1")
		require.NoError(t, err)

		assert.Equal(t, first.Observations, second.Observations)
	})

	t.Run("unopenable source is fatal", func(t *testing.T) {
		_, err := l.Load([]loader.Source{loader.FileSource("/nonexistent/file.csv")}, "P1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open source")
	})

	t.Run("comma delimiter", func(t *testing.T) {
		cl := loader.New(slog.Default(), nil)
		cl.Delimiter = ','
		src := stringSource("comma.csv", "A,P1,2024-01-01 06:00,4.5\n")

		res, err := cl.Load([]loader.Source{src}, "P1")

		require.NoError(t, err)
		require.Len(t, res.Observations, 1)
		assert.Equal(t, 4.5, res.Observations[0].Value)
	})
}
