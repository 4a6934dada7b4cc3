package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultParameters maps the analyzed IMGW parameter codes to readable names.
var DefaultParameters = map[string]string{
	"B00300S": "air_temperature",
	"B00305A": "ground_temperature",
	"B00202A": "wind_direction",
	"B00702A": "wind_speed_10min",
	"B00703A": "wind_max",
	"B00608S": "precip_10min",
	"B00604S": "precip_daily",
	"B00606S": "precip_hour",
	"B00802A": "relative_humidity",
	"B00714A": "max_gust_10min",
	"B00910A": "snow_water_equivalent",
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir       string
	StationsPath  string
	RegionsPath   string
	DistrictsPath string

	Parameters    []string
	TrimFraction  float64
	ChangeCadence time.Duration
	ParamWorkers  int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// IMGW archive fetcher.
	IMGWBaseURL  string
	FetchTimeout time.Duration

	// Sinks; each is feature-flagged independently.
	MongoEnabled  bool
	MongoURI      string
	MongoDatabase string

	RedisEnabled bool
	RedisAddr    string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	trimFraction, err := parseFloat("TRIM_FRACTION", 0.10)
	if err != nil {
		return nil, err
	}
	if trimFraction < 0 || trimFraction >= 0.5 {
		return nil, errors.New("TRIM_FRACTION must be in [0, 0.5)")
	}

	cadence, err := parseDuration("CHANGE_CADENCE", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("PARAM_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, errors.New("PARAM_WORKERS must be >= 1")
	}

	cfg := &Config{
		DataDir:       envOrDefault("DATA_DIR", "dane_meteo"),
		StationsPath:  envOrDefault("STATIONS_PATH", "reference/effacility.geojson"),
		RegionsPath:   envOrDefault("REGIONS_PATH", "reference/regions.geojson"),
		DistrictsPath: envOrDefault("DISTRICTS_PATH", "reference/districts.geojson"),

		Parameters:    parseList(envOrDefault("PARAMETERS", "")),
		TrimFraction:  trimFraction,
		ChangeCadence: cadence,
		ParamWorkers:  workers,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		IMGWBaseURL:  envOrDefault("IMGW_BASE_URL", "https://danepubliczne.imgw.pl/datastore/getfiledown/Arch/Telemetria/Meteo"),
		FetchTimeout: fetchTimeout,

		MongoURI:      envOrDefault("MONGO_URI", ""),
		MongoDatabase: envOrDefault("MONGO_DATABASE", "meteo_db"),
		RedisAddr:     envOrDefault("REDIS_ADDR", ""),
		KafkaBrokers:  parseList(envOrDefault("KAFKA_BROKERS", "")),
		KafkaTopic:    envOrDefault("KAFKA_TOPIC", "admin-aggregates"),
	}

	if len(cfg.Parameters) == 0 {
		for code := range DefaultParameters {
			cfg.Parameters = append(cfg.Parameters, code)
		}
		sort.Strings(cfg.Parameters)
	}

	cfg.MongoEnabled = cfg.MongoURI != ""
	if v := os.Getenv("MONGO_ENABLED"); v != "" {
		cfg.MongoEnabled = v == "true"
	}
	cfg.RedisEnabled = cfg.RedisAddr != ""
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisEnabled = v == "true"
	}
	cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "true"
	}

	if cfg.MongoEnabled && cfg.MongoURI == "" {
		return nil, errors.New("MONGO_ENABLED is true but MONGO_URI is not set")
	}
	if cfg.RedisEnabled && cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ENABLED is true but REDIS_ADDR is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.StationsPath == "" {
		return nil, errors.New("STATIONS_PATH is required")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseList splits a comma-separated value, dropping empty items.
func parseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
