// Command analyze runs the observation analysis service: it loads the
// reference data, analyses every configured parameter, persists the relations
// to the enabled sinks, and serves health and metrics endpoints while doing
// so.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/meteosight/imgw-analytics/internal/adapter/geodata"
	"github.com/meteosight/imgw-analytics/internal/adapter/httpadapter"
	"github.com/meteosight/imgw-analytics/internal/adapter/imgw"
	kafkaadapter "github.com/meteosight/imgw-analytics/internal/adapter/kafka"
	mongoadapter "github.com/meteosight/imgw-analytics/internal/adapter/mongo"
	"github.com/meteosight/imgw-analytics/internal/adapter/rediscache"
	"github.com/meteosight/imgw-analytics/internal/classify"
	"github.com/meteosight/imgw-analytics/internal/config"
	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/observability"
	"github.com/meteosight/imgw-analytics/internal/pipeline"
	"github.com/meteosight/imgw-analytics/internal/spatial"
	"github.com/meteosight/imgw-analytics/internal/sun"
)

func main() {
	var (
		fetchYear  = flag.Int("year", 0, "fetch this year's archive before analysing (requires -month)")
		fetchMonth = flag.Int("month", 0, "fetch this month's archive before analysing (requires -year)")
		params     = flag.String("params", "", "comma-separated parameter codes (overrides PARAMETERS)")
		serve      = flag.Bool("serve", false, "keep the HTTP endpoints up after the run until signalled")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *params != "" {
		cfg.Parameters = strings.Split(*params, ",")
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *fetchYear != 0 || *fetchMonth != 0 {
		if *fetchYear == 0 || *fetchMonth == 0 {
			logger.Error("-year and -month must be given together")
			os.Exit(1)
		}
		client := imgw.NewClient(cfg.IMGWBaseURL, cfg.FetchTimeout, logger)
		if _, err := client.FetchMonth(ctx, *fetchYear, *fetchMonth, cfg.DataDir); err != nil {
			logger.Error("archive fetch failed", "error", err)
			os.Exit(1)
		}
	}

	stations, err := geodata.LoadStations(cfg.StationsPath, logger)
	if err != nil {
		logger.Error("failed to load stations", "error", err)
		os.Exit(1)
	}

	var layers []spatial.Layer
	for _, ref := range []struct{ path, name string }{
		{cfg.RegionsPath, "region"},
		{cfg.DistrictsPath, "district"},
	} {
		layer, err := geodata.LoadLayer(ref.path, ref.name, logger)
		if err != nil {
			logger.Error("failed to load admin layer", "layer", ref.name, "error", err)
			os.Exit(1)
		}
		layers = append(layers, layer)
	}

	sinks, cache, closers := buildSinks(ctx, cfg, stations, layers, logger)

	runner := pipeline.NewRunner(
		pipeline.DirProvider{Dir: cfg.DataDir},
		stations, layers, sinks, cache,
		func() classify.WindowResolver { return sun.NewResolver(metrics) },
		logger, metrics,
		pipeline.Options{
			Parameters:   cfg.Parameters,
			TrimFraction: cfg.TrimFraction,
			Cadence:      cfg.ChangeCadence,
			Workers:      cfg.ParamWorkers,
		},
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx)
		done <- err
	}()

	exitCode := 0
	select {
	case err := <-done:
		if err != nil {
			logger.Error("analysis run failed", "error", err)
			exitCode = 1
		} else if *serve {
			logger.Info("run complete, serving until signalled")
			<-ctx.Done()
		}
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(shutdownCtx); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	os.Exit(exitCode)
}

// buildSinks wires the feature-flagged persistence adapters. A sink that is
// enabled but unreachable is fatal; a disabled sink is simply skipped.
func buildSinks(
	ctx context.Context,
	cfg *config.Config,
	stations map[string]domain.Station,
	layers []spatial.Layer,
	logger *slog.Logger,
) ([]domain.RelationSink, domain.AggregateCache, []func(context.Context) error) {
	var (
		sinks   []domain.RelationSink
		cache   domain.AggregateCache
		closers []func(context.Context) error
	)

	if cfg.MongoEnabled {
		store, err := mongoadapter.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Error("mongo connection failed", "error", err)
			os.Exit(1)
		}
		if err := store.ImportStations(ctx, stations); err != nil {
			logger.Error("station import failed", "error", err)
			os.Exit(1)
		}
		for _, layer := range layers {
			if err := store.ImportAdminUnits(ctx, layer); err != nil {
				logger.Error("admin unit import failed", "layer", layer.Name, "error", err)
				os.Exit(1)
			}
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
	} else {
		logger.Info("mongo sink disabled")
	}

	if cfg.RedisEnabled {
		c, err := rediscache.Connect(ctx, cfg.RedisAddr, logger)
		if err != nil {
			logger.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		for _, layer := range layers {
			if err := c.CacheAdminList(ctx, layer); err != nil {
				logger.Warn("admin list caching failed", "layer", layer.Name, "error", err)
			}
		}
		cache = c
		closers = append(closers, func(context.Context) error { return c.Close() })
	} else {
		logger.Info("redis cache disabled")
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks = append(sinks, writer)
		closers = append(closers, func(context.Context) error { return writer.Close() })
	} else {
		logger.Info("kafka export disabled")
	}

	return sinks, cache, closers
}
