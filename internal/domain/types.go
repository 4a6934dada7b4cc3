package domain

import (
	"errors"
	"time"
)

// Period classifies an observation relative to the daylight window of its
// station and date.
type Period string

const (
	PeriodDay     Period = "day"
	PeriodNight   Period = "night"
	PeriodUnknown Period = "unknown"
)

// Configuration errors. These are the only fatal class: without reference
// data no meaningful output relation can be produced for the affected
// parameter or layer. Everything else in the pipeline recovers locally.
var (
	ErrNoStations = errors.New("station reference data is empty")
	ErrNoPolygons = errors.New("administrative layer contains no polygons")
	ErrNoIDField  = errors.New("no recognized identifier property in reference data")
)

// Geo is a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Station is immutable reference data: a fixed-location sensor identified by
// a code. Location is nil when the reference dataset carries no usable
// geometry for the station.
type Station struct {
	ID       string `json:"station_id"`
	Name     string `json:"name,omitempty"`
	Location *Geo   `json:"location,omitempty"`
}

// Observation is a single raw point sample produced by the loader. Malformed
// source rows are dropped before an Observation is ever created.
type Observation struct {
	StationID string    `json:"station_id"`
	Parameter string    `json:"parameter"`
	Timestamp time.Time `json:"timestamp"` // UTC
	Value     float64   `json:"value"`
}

// Date returns the observation's calendar date, midnight UTC.
func (o Observation) Date() time.Time {
	return DateOf(o.Timestamp)
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaylightWindow is the sunrise-sunset interval for one station and date.
// Resolved is false for the "unresolvable" sentinel: the station has no known
// location or the solar computation has no well-defined sunrise/sunset for
// that date (polar day or polar night).
type DaylightWindow struct {
	StationID string    `json:"station_id"`
	Date      time.Time `json:"date"`
	Sunrise   time.Time `json:"sunrise"` // UTC
	Sunset    time.Time `json:"sunset"`  // UTC
	Resolved  bool      `json:"resolved"`
}

// Classify labels an instant relative to the window. The comparison is
// inclusive on both ends; both sides are UTC instants.
func (w DaylightWindow) Classify(t time.Time) Period {
	if !w.Resolved {
		return PeriodUnknown
	}
	t = t.UTC()
	if !t.Before(w.Sunrise) && !t.After(w.Sunset) {
		return PeriodDay
	}
	return PeriodNight
}

// ClassifiedObservation is an Observation extended with its period label.
type ClassifiedObservation struct {
	Observation
	Period Period `json:"period"`
}

// StationDayStat holds the per-station daily statistics for one period.
// One row exists per distinct (station, date, period) with Count >= 1.
type StationDayStat struct {
	StationID   string    `json:"station_id"`
	Date        time.Time `json:"date"`
	Period      Period    `json:"period"`
	Count       int       `json:"count"`
	Mean        float64   `json:"mean"`
	Median      float64   `json:"median"`
	TrimmedMean float64   `json:"trimmed_mean"`
}

// AdminAggregateStat is the polygon-level aggregate of station statistics.
// The aggregation is deliberately two-level: means are taken over the
// per-station statistics, not re-derived from raw observations.
type AdminAggregateStat struct {
	AdminID            string    `json:"admin_id"`
	Layer              string    `json:"layer"`
	Date               time.Time `json:"date"`
	Period             Period    `json:"period"`
	MeanOfMeans        float64   `json:"mean_of_means"`
	MeanOfMedians      float64   `json:"mean_of_medians"`
	MeanOfTrimmedMeans float64   `json:"mean_of_trimmed_means"`
	TotalCount         int       `json:"total_count"`
}

// ChangeRecord is one resampled window of an admin aggregate series together
// with its delta against the previous window. Deltas are nil for the first
// window of each (admin, period) partition.
type ChangeRecord struct {
	AdminID     string    `json:"admin_id"`
	Layer       string    `json:"layer"`
	Period      Period    `json:"period"`
	WindowStart time.Time `json:"window_start"`
	Mean        float64   `json:"mean"`
	Median      float64   `json:"median"`
	MeanDelta   *float64  `json:"mean_delta"`
	MedianDelta *float64  `json:"median_delta"`
}
