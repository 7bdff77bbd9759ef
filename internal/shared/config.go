package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"solar_price/internal/app"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	LogFile     string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	UseML           bool
	CacheEnabled    bool
	CacheTTLHours   int
	SearchRadiusM   float64
	BatchSize       int
	ListingsTimeout time.Duration
	DefaultMarket   string

	ModelPath        string
	ModelURL         string
	ModelKey         string
	CoefficientsFile string

	EstimatorRegions []string
	EstimatorSource  string // db|osm
	EstimatorLimit   int
	EstimatorWorkers int
	OverpassURL      string
}

// Load reads the environment. A .env file in the working directory (or the
// one named by ENV_FILE) is applied first without overriding real variables.
func Load() Config {
	loadDotEnv(env("ENV_FILE", ".env"))

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		LogFile:     env("LOG_FILE", ""),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/solar?parseTime=true&charset=utf8mb4&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),

		UseML:           boolean("USE_ML", false),
		CacheEnabled:    boolean("CACHE_ENABLED", true),
		CacheTTLHours:   atoi("CACHE_TTL_HOURS", 24),
		SearchRadiusM:   float("SEARCH_RADIUS_M", 500),
		BatchSize:       atoi("BATCH_SIZE", 10),
		ListingsTimeout: time.Duration(atoi("LISTINGS_TIMEOUT_MS", 800)) * time.Millisecond,
		DefaultMarket:   strings.ToLower(env("DEFAULT_MARKET", "ch")),

		ModelPath:        env("MODEL_PATH", ""),
		ModelURL:         env("MODEL_URL", ""),
		ModelKey:         env("MODEL_API_KEY", ""),
		CoefficientsFile: env("COEFFICIENTS_FILE", ""),

		EstimatorRegions: list("ESTIMATOR_REGIONS"),
		EstimatorSource:  strings.ToLower(env("ESTIMATOR_SOURCE", "db")),
		EstimatorLimit:   atoi("ESTIMATOR_LIMIT", 1000),
		EstimatorWorkers: atoi("ESTIMATOR_WORKERS", 4),
		OverpassURL:      env("OVERPASS_URL", ""),
	}
	if c.UseML && c.ModelPath == "" && c.ModelURL == "" {
		log.Warn().Msg("USE_ML is on but neither MODEL_PATH nor MODEL_URL is set; the placeholder model will be used")
	}
	return c
}

// EngineOptions maps the estimation settings onto the engine.
func (c Config) EngineOptions() app.Options {
	return app.Options{
		UseML:           c.UseML,
		CacheEnabled:    c.CacheEnabled,
		CacheTTLHours:   c.CacheTTLHours,
		SearchRadiusM:   c.SearchRadiusM,
		BatchSize:       c.BatchSize,
		ListingsTimeout: c.ListingsTimeout,
		DefaultMarket:   c.DefaultMarket,
	}
}

func (c Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLHours) * time.Hour }

func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("file", path).Msg("env file not loaded")
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
	}
	return def
}

func float(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
	}
	return def
}

func boolean(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		log.Warn().Str("key", k).Str("value", v).Msg("not a boolean, using default")
	}
	return def
}

func list(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
