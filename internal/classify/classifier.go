// Package classify labels observations as day, night, or unknown relative to
// the daylight window of their station and date.
package classify

import (
	"log/slog"
	"time"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/observability"
)

// WindowResolver resolves the daylight window for one station and date.
// Implemented by sun.Resolver.
type WindowResolver interface {
	Resolve(stationID string, location *domain.Geo, date time.Time) domain.DaylightWindow
}

// Classifier joins observations to their stations and labels each with a
// period. Stations absent from the reference map yield unknown without
// touching the resolver; unknown is a distinct, visible label and is never
// folded into night.
type Classifier struct {
	resolver WindowResolver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Classifier. Metrics may be nil.
func New(resolver WindowResolver, logger *slog.Logger, metrics *observability.Metrics) *Classifier {
	return &Classifier{resolver: resolver, logger: logger, metrics: metrics}
}

type stationDate struct {
	stationID string
	date      time.Time
}

// Classify labels every observation. The resolver is invoked at most once per
// distinct (station, date) pair present in the input, however many
// observations share that pair; this is what keeps the astronomical
// computation off the per-row path.
//
// Both the observation timestamps and the window instants are UTC, so the
// inclusive sunrise <= t <= sunset comparison never mixes time references.
func (c *Classifier) Classify(observations []domain.Observation, stations map[string]domain.Station) []domain.ClassifiedObservation {
	windows := make(map[stationDate]domain.DaylightWindow)
	out := make([]domain.ClassifiedObservation, 0, len(observations))

	var unknownStations int
	for _, obs := range observations {
		key := stationDate{stationID: obs.StationID, date: obs.Date()}

		window, seen := windows[key]
		if !seen {
			station, ok := stations[obs.StationID]
			if !ok {
				// Unknown station: sentinel window, resolver not consulted.
				window = domain.DaylightWindow{StationID: obs.StationID, Date: key.date}
				unknownStations++
				if c.metrics != nil {
					c.metrics.UnknownStations.WithLabelValues("classify").Inc()
				}
			} else {
				window = c.resolver.Resolve(obs.StationID, station.Location, key.date)
			}
			windows[key] = window
		}

		out = append(out, domain.ClassifiedObservation{
			Observation: obs,
			Period:      window.Classify(obs.Timestamp),
		})
	}

	if unknownStations > 0 {
		c.logger.Warn("observations from stations missing in reference data",
			"station_dates", unknownStations)
	}
	return out
}
