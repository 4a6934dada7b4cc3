// Package sun resolves daylight windows (sunrise, sunset) per station and
// calendar date. For high-latitude dates without a well-defined sunrise or
// sunset (polar day, polar night) the resolver returns the unresolvable
// sentinel instead of failing, so callers can propagate an unknown period.
package sun

import (
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/observability"
)

type key struct {
	stationID string
	date      string // time.DateOnly
}

// Resolver computes and memoizes daylight windows keyed by (station, date).
// Each pipeline run owns its own Resolver instance; concurrent parameter runs
// must not share one, so cache population never races across runs. Within a
// run the Resolver is safe for concurrent use.
type Resolver struct {
	mu      sync.Mutex
	cache   map[key]domain.DaylightWindow
	metrics *observability.Metrics
}

// NewResolver creates an empty per-run resolver. Metrics may be nil.
func NewResolver(metrics *observability.Metrics) *Resolver {
	return &Resolver{
		cache:   make(map[key]domain.DaylightWindow),
		metrics: metrics,
	}
}

// Resolve returns the daylight window for the station's location on the given
// calendar date. The window is computed at most once per (station, date) per
// run; subsequent calls return the cached value, including cached sentinels.
// Sunrise and sunset are UTC instants.
func (r *Resolver) Resolve(stationID string, location *domain.Geo, date time.Time) domain.DaylightWindow {
	day := domain.DateOf(date)
	k := key{stationID: stationID, date: day.Format(time.DateOnly)}

	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.cache[k]; ok {
		if r.metrics != nil {
			r.metrics.SunCacheHits.Inc()
		}
		return w
	}

	w := compute(stationID, location, day)
	r.cache[k] = w

	if r.metrics != nil {
		r.metrics.SunCacheMisses.Inc()
		if !w.Resolved {
			r.metrics.SunUnresolved.Inc()
		}
	}
	return w
}

// Len reports how many (station, date) windows the cache holds.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func compute(stationID string, location *domain.Geo, day time.Time) domain.DaylightWindow {
	sentinel := domain.DaylightWindow{StationID: stationID, Date: day}
	if location == nil {
		return sentinel
	}

	observer := astral.Observer{Latitude: location.Lat, Longitude: location.Lon}

	sunrise, err := astral.Sunrise(observer, day)
	if err != nil {
		return sentinel
	}
	sunset, err := astral.Sunset(observer, day)
	if err != nil {
		return sentinel
	}

	return domain.DaylightWindow{
		StationID: stationID,
		Date:      day,
		Sunrise:   sunrise.UTC(),
		Sunset:    sunset.UTC(),
		Resolved:  true,
	}
}
