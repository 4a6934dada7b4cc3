// Package pipeline orchestrates one analysis run: for each observed
// parameter it loads the raw rows, classifies them against daylight windows,
// computes station statistics, aggregates them over both administrative
// layers, and derives the periodic change series. Parameters are independent
// and run on their own goroutines; a failure in one parameter never aborts
// its siblings.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meteosight/imgw-analytics/internal/change"
	"github.com/meteosight/imgw-analytics/internal/classify"
	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/loader"
	"github.com/meteosight/imgw-analytics/internal/observability"
	"github.com/meteosight/imgw-analytics/internal/spatial"
	"github.com/meteosight/imgw-analytics/internal/stats"
)

// SourceProvider yields the raw observation sources for one parameter.
// Implemented over the data directory and over the IMGW download client.
type SourceProvider interface {
	Sources(ctx context.Context, parameterCode string) ([]loader.Source, error)
}

// DirProvider serves CSV sources straight from a local data directory. Every
// parameter reads the same source set; the loader does the per-parameter
// filtering.
type DirProvider struct {
	Dir string
}

// Sources implements SourceProvider.
func (p DirProvider) Sources(_ context.Context, _ string) ([]loader.Source, error) {
	return loader.DirSources(p.Dir)
}

// Options carries the fixed inputs of a run.
type Options struct {
	Parameters []string // IMGW parameter codes to analyse

	// TrimFraction of 0 is a valid setting (no trimming); a negative
	// value selects the default.
	TrimFraction float64
	Cadence      time.Duration
	Workers      int // concurrent parameter pipelines; 0 means 1
}

// ParameterResult is everything one parameter run produced.
type ParameterResult struct {
	Parameter    string
	StationStats []domain.StationDayStat
	Aggregates   map[string][]domain.AdminAggregateStat // keyed by layer name
	Changes      map[string][]domain.ChangeRecord       // keyed by layer name
	RowsLoaded   int
	RowsDropped  int
}

// Result collects the per-parameter outcomes of a run. Failed carries the
// error of every parameter whose pipeline aborted; successful siblings are
// still present in Parameters.
type Result struct {
	Parameters []ParameterResult
	Failed     map[string]error
}

// Runner wires the pipeline stages together and fans runs out over
// parameters.
type Runner struct {
	provider SourceProvider
	stations map[string]domain.Station
	layers   []spatial.Layer
	sinks    []domain.RelationSink
	cache    domain.AggregateCache
	resolver func() classify.WindowResolver

	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	ready   atomic.Bool
}

// NewRunner creates a Runner. The cache may be nil; sinks may be empty, in
// which case the run only returns its relations. Each parameter run gets its
// own window resolver from the factory so cache contention stays per-run.
func NewRunner(
	provider SourceProvider,
	stations map[string]domain.Station,
	layers []spatial.Layer,
	sinks []domain.RelationSink,
	cache domain.AggregateCache,
	resolver func() classify.WindowResolver,
	logger *slog.Logger,
	metrics *observability.Metrics,
	opts Options,
) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.TrimFraction < 0 {
		opts.TrimFraction = domain.DefaultTrimFraction
	}
	if opts.Cadence <= 0 {
		opts.Cadence = change.DefaultCadence
	}
	return &Runner{
		provider: provider,
		stations: stations,
		layers:   layers,
		sinks:    sinks,
		cache:    cache,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// CheckReadiness returns nil once at least one parameter run has completed.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no parameter run has completed yet")
	}
	return nil
}

// Run analyses every configured parameter, at most opts.Workers at a time.
// It returns an error only when every parameter failed; partial failures are
// reported in Result.Failed and in the pipeline_failures metric.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.logger.Info("analysis run started",
		"parameters", len(r.opts.Parameters), "workers", r.opts.Workers)

	type outcome struct {
		res ParameterResult
		err error
	}

	outcomes := make(map[string]outcome, len(r.opts.Parameters))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.opts.Workers)

	for _, param := range r.opts.Parameters {
		wg.Add(1)
		go func(param string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				outcomes[param] = outcome{err: ctx.Err()}
				mu.Unlock()
				return
			}

			r.metrics.PipelinesRunning.Inc()
			defer r.metrics.PipelinesRunning.Dec()

			res, err := r.runParameter(ctx, param)
			mu.Lock()
			outcomes[param] = outcome{res: res, err: err}
			mu.Unlock()
		}(param)
	}
	wg.Wait()

	result := Result{Failed: map[string]error{}}
	for _, param := range r.opts.Parameters {
		o := outcomes[param]
		if o.err != nil {
			r.metrics.PipelineFailures.WithLabelValues(param).Inc()
			r.logger.Error("parameter pipeline failed", "parameter", param, "error", o.err)
			result.Failed[param] = o.err
			continue
		}
		result.Parameters = append(result.Parameters, o.res)
	}

	if len(result.Parameters) == 0 && len(result.Failed) > 0 {
		return result, errors.New("all parameter pipelines failed")
	}
	r.ready.Store(true)
	r.logger.Info("analysis run finished",
		"succeeded", len(result.Parameters), "failed", len(result.Failed))
	return result, nil
}

// runParameter executes the six stages for a single parameter.
func (r *Runner) runParameter(ctx context.Context, param string) (ParameterResult, error) {
	log := r.logger.With("parameter", param)

	sources, err := r.provider.Sources(ctx, param)
	if err != nil {
		return ParameterResult{}, err
	}

	loaded, err := r.timedLoad(sources, param)
	if err != nil {
		return ParameterResult{}, err
	}
	log.Info("rows loaded", "rows", len(loaded.Observations), "dropped", loaded.Dropped)

	classifier := classify.New(r.resolver(), log, r.metrics)
	classified := timedStage(r.metrics, "classify", func() []domain.ClassifiedObservation {
		return classifier.Classify(loaded.Observations, r.stations)
	})

	stationStats := timedStage(r.metrics, "stats", func() []domain.StationDayStat {
		return stats.Aggregate(classified, r.opts.TrimFraction)
	})

	res := ParameterResult{
		Parameter:    param,
		StationStats: stationStats,
		Aggregates:   make(map[string][]domain.AdminAggregateStat, len(r.layers)),
		Changes:      make(map[string][]domain.ChangeRecord, len(r.layers)),
		RowsLoaded:   len(loaded.Observations),
		RowsDropped:  loaded.Dropped,
	}

	aggregator := spatial.NewAggregator(log, r.metrics)
	for _, layer := range r.layers {
		start := time.Now()
		aggs, err := aggregator.AggregateByLayer(stationStats, r.stations, layer)
		if err != nil {
			return ParameterResult{}, err
		}
		r.metrics.StageDuration.WithLabelValues("spatial").Observe(time.Since(start).Seconds())

		res.Aggregates[layer.Name] = aggs
		res.Changes[layer.Name] = timedStage(r.metrics, "change", func() []domain.ChangeRecord {
			return change.Compute(aggs, r.opts.Cadence)
		})
	}

	if err := r.persist(ctx, res); err != nil {
		return ParameterResult{}, err
	}
	return res, nil
}

func (r *Runner) timedLoad(sources []loader.Source, param string) (loader.Result, error) {
	start := time.Now()
	res, err := loader.New(r.logger, r.metrics).Load(sources, param)
	r.metrics.StageDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	return res, err
}

func timedStage[T any](metrics *observability.Metrics, stage string, fn func() T) T {
	start := time.Now()
	out := fn()
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out
}

// persist writes the relations to every sink and warms the aggregate cache.
// Cache failures are logged and swallowed per key, so one bad write does not
// abandon the rest of the warm-up; a sink failure aborts the parameter.
func (r *Runner) persist(ctx context.Context, res ParameterResult) error {
	for _, sink := range r.sinks {
		if err := sink.SaveStationStats(ctx, res.Parameter, res.StationStats); err != nil {
			return err
		}
		for layer, aggs := range res.Aggregates {
			if err := sink.SaveAdminAggregates(ctx, res.Parameter, layer, aggs); err != nil {
				return err
			}
		}
		for layer, changes := range res.Changes {
			if err := sink.SaveChangeSeries(ctx, res.Parameter, layer, changes); err != nil {
				return err
			}
		}
	}

	if r.cache == nil {
		return nil
	}
	var cacheFailures int
	for _, aggs := range res.Aggregates {
		for _, agg := range aggs {
			if err := r.cache.CacheAggregate(ctx, res.Parameter, agg); err != nil {
				if cacheFailures == 0 {
					r.logger.Warn("aggregate cache write failed",
						"parameter", res.Parameter, "admin", agg.AdminID, "error", err)
				}
				cacheFailures++
			}
		}
	}
	if cacheFailures > 0 {
		r.logger.Warn("aggregate cache warming incomplete",
			"parameter", res.Parameter, "failed_writes", cacheFailures)
	}
	return nil
}
