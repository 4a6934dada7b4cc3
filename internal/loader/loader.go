// Package loader reads raw IMGW telemetry CSV files into the canonical
// observation relation. Files are fixed-position delimited text:
//
//	KodSH;ParametrSH;Data;Value
//	249200160;B00300S;2024-01-01 00:10;12,5;
//
// Rows for other parameters are skipped silently; rows whose timestamp or
// value fail to parse are dropped and counted, never fatal.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/observability"
)

// Source is one raw tabular input. Open returns a fresh reader each call, so
// repeated Load invocations re-read the source instead of rewinding a single
// pass.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource wraps a file path as a Source.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// DirSources lists every CSV file under dir (one level of month folders, the
// layout the archive fetcher produces) as sources in stable path order.
func DirSources(dir string) ([]Source, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*", "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}
	flat, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}
	paths = append(paths, flat...)
	sort.Strings(paths)

	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, FileSource(p))
	}
	return sources, nil
}

// timestampLayouts are tried in order; all are interpreted as UTC.
var timestampLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Loader parses observation sources. The zero delimiter means ';', the IMGW
// export default; comma-delimited exports set Delimiter to ','.
type Loader struct {
	Delimiter rune
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Loader. Metrics may be nil.
func New(logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{logger: logger, metrics: metrics}
}

// Result carries the loaded relation and the per-source drop counts.
type Result struct {
	Observations []domain.Observation
	Dropped      int
}

// Load reads every source, filters to parameterCode, and returns the
// concatenated observation relation. Sources are concatenated, not merged by
// key; ordering is insignificant to downstream stages. A source that cannot
// be opened fails the load; malformed rows inside an open source do not.
func (l *Loader) Load(sources []Source, parameterCode string) (Result, error) {
	var res Result
	for _, src := range sources {
		if err := l.loadSource(src, parameterCode, &res); err != nil {
			return Result{}, err
		}
	}

	if l.metrics != nil {
		l.metrics.RowsRead.WithLabelValues(parameterCode).Add(float64(len(res.Observations)))
	}
	l.logger.Info("observations loaded",
		"parameter", parameterCode,
		"sources", len(sources),
		"rows", len(res.Observations),
		"dropped", res.Dropped,
	)
	return res, nil
}

func (l *Loader) loadSource(src Source, parameterCode string, res *Result) error {
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("open source %s: %w", src.Name, err)
	}
	defer rc.Close()

	delim := l.Delimiter
	if delim == 0 {
		delim = ';'
	}

	r := csv.NewReader(rc)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// Structurally broken line: drop it like any other malformed row.
			l.drop(res, parameterCode, "syntax")
			continue
		}
		if len(record) < 4 {
			l.drop(res, parameterCode, "fields")
			continue
		}
		if strings.TrimSpace(record[1]) != parameterCode {
			continue
		}

		obs, reason, ok := parseRow(record, parameterCode)
		if !ok {
			l.drop(res, parameterCode, reason)
			continue
		}
		res.Observations = append(res.Observations, obs)
	}
}

func (l *Loader) drop(res *Result, parameterCode, reason string) {
	res.Dropped++
	if l.metrics != nil {
		l.metrics.RowsDropped.WithLabelValues(parameterCode, reason).Inc()
	}
}

// parseRow converts a raw record into an Observation. The second return value
// names the failing field for drop accounting.
func parseRow(record []string, parameterCode string) (domain.Observation, string, bool) {
	stationID := strings.TrimSpace(record[0])
	if stationID == "" {
		return domain.Observation{}, "station", false
	}

	ts, ok := parseTimestamp(record[2])
	if !ok {
		return domain.Observation{}, "timestamp", false
	}

	value, ok := parseValue(record[3])
	if !ok {
		return domain.Observation{}, "value", false
	}

	return domain.Observation{
		StationID: stationID,
		Parameter: parameterCode,
		Timestamp: ts,
		Value:     value,
	}, "", true
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseValue normalizes the decimal separator to '.' before parsing. IMGW
// exports use ',' in most months and '.' in others.
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
