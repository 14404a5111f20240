// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// upstream statistics API, the period cache, formatting, the HTTP server,
// logging, and observability.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-bot-dashboard")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // copied from APP_ENV
}

// UpstreamConfig points at the bot backend that computes the statistics.
type UpstreamConfig struct {
	BaseURL  string        // STATS_API_URL
	Username string        // STATS_API_USERNAME; basic auth only when set
	Password string        // STATS_API_PASSWORD
	Timeout  time.Duration // STATS_API_TIMEOUT
}

// QueryConfig tunes the period cache and its retry/breaker policy.
type QueryConfig struct {
	StaleTime       time.Duration // QUERY_STALE_TIME
	RefetchInterval time.Duration // QUERY_REFETCH_INTERVAL
	MaxEntries      int           // QUERY_MAX_ENTRIES, 0 = unbounded
	Retry           int           // QUERY_RETRY
	RetryDelay      time.Duration // QUERY_RETRY_DELAY
	RetryMaxDelay   time.Duration // QUERY_RETRY_MAX_DELAY

	BreakerEnabled  bool          // BREAKER_ENABLED
	BreakerFailures int           // BREAKER_FAILURES
	BreakerCooldown time.Duration // BREAKER_COOLDOWN
}

// FormatConfig selects how values are rendered for the dashboard.
type FormatConfig struct {
	Locale   string // LOCALE: ru|en
	Timezone string // TIMEZONE (IANA name)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // 0 disables; needed for long-lived streams
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogFile        string // optional rotating log file
	LogRedact      bool   // redact query strings in access logs
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	Env      string // development|production
	Upstream UpstreamConfig
	Query    QueryConfig
	Format   FormatConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// Development reports whether formatting failures should panic.
func (c Config) Development() bool { return c.Env == "development" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		LogFile:        getenv("LOG_FILE", ""),
		LogRedact:      getbool("LOG_REDACT", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		Env: strings.ToLower(getenv("APP_ENV", "production")),
		Upstream: UpstreamConfig{
			BaseURL:  strings.TrimSpace(getenv("STATS_API_URL", "http://localhost:8000")),
			Username: getenv("STATS_API_USERNAME", ""),
			Password: getenv("STATS_API_PASSWORD", ""),
			Timeout:  getdur("STATS_API_TIMEOUT", 30*time.Second),
		},
		Query: QueryConfig{
			StaleTime:       getdur("QUERY_STALE_TIME", 5*time.Minute),
			RefetchInterval: getdur("QUERY_REFETCH_INTERVAL", 60*time.Second),
			MaxEntries:      getint("QUERY_MAX_ENTRIES", 0),
			Retry:           getint("QUERY_RETRY", 3),
			RetryDelay:      getdur("QUERY_RETRY_DELAY", time.Second),
			RetryMaxDelay:   getdur("QUERY_RETRY_MAX_DELAY", 30*time.Second),
			BreakerEnabled:  getbool("BREAKER_ENABLED", true),
			BreakerFailures: getint("BREAKER_FAILURES", 5),
			BreakerCooldown: getdur("BREAKER_COOLDOWN", 30*time.Second),
		},
		Format: FormatConfig{
			Locale:   strings.ToLower(getenv("LOCALE", "ru")),
			Timezone: getenv("TIMEZONE", "UTC"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-bot-dashboard"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.Env {
	case "dev":
		cfg.Env = "development"
	case "prod":
		cfg.Env = "production"
	}
	cfg.OTEL.Environment = cfg.Env

	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once, joined with errors.Join.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(false, "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.IdleTimeout > 0, "timeouts must be positive durations")
	check(c.WriteTimeout >= 0, "WRITE_TIMEOUT must be >= 0")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(c.Env == "development" || c.Env == "production", "APP_ENV must be one of: development, production")

	u, err := url.Parse(c.Upstream.BaseURL)
	check(err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "", "STATS_API_URL must be an absolute http(s) URL")
	check(c.Upstream.Timeout > 0, "STATS_API_TIMEOUT must be > 0")

	q := c.Query
	check(q.StaleTime > 0, "QUERY_STALE_TIME must be > 0")
	check(q.RefetchInterval >= 0, "QUERY_REFETCH_INTERVAL must be >= 0")
	check(q.MaxEntries >= 0, "QUERY_MAX_ENTRIES must be >= 0")
	check(q.Retry >= 0, "QUERY_RETRY must be >= 0")
	check(q.RetryDelay >= 0 && q.RetryMaxDelay >= q.RetryDelay, "QUERY_RETRY_DELAY must be >= 0 and <= QUERY_RETRY_MAX_DELAY")
	check(!q.BreakerEnabled || (q.BreakerFailures >= 1 && q.BreakerCooldown > 0), "BREAKER_FAILURES must be >= 1 and BREAKER_COOLDOWN > 0")

	check(c.Format.Locale == "ru" || c.Format.Locale == "en", "LOCALE must be one of: ru, en")
	_, err = time.LoadLocation(c.Format.Timezone)
	check(err == nil, "TIMEZONE must be a valid IANA zone name")

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// MarshalZerologObject logs the effective settings. Upstream credentials are
// reduced to whether they are set.
func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("env", c.Env).
		Str("port", c.Port).
		Str("api_base_path", c.APIBasePath).
		Str("upstream", c.Upstream.BaseURL).
		Bool("upstream_auth", c.Upstream.Username != "").
		Dur("upstream_timeout", c.Upstream.Timeout).
		Dur("stale_time", c.Query.StaleTime).
		Dur("refetch_interval", c.Query.RefetchInterval).
		Int("max_entries", c.Query.MaxEntries).
		Int("retry", c.Query.Retry).
		Bool("breaker", c.Query.BreakerEnabled).
		Str("locale", c.Format.Locale).
		Str("timezone", c.Format.Timezone).
		Bool("otel", c.OTEL.Enabled)
}

// ---- env helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
