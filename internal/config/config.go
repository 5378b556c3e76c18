// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, persistence, the completion service, the WhatsApp transport, the
// CRM sink, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS and the
// bearer token that guards the lead administration routes.
type SecurityConfig struct {
	EnableHSTS    bool
	HSTSMaxAge    time.Duration
	AdminAPIToken string // ADMIN_API_TOKEN; empty disables /leads
	WebhookSecret string // WEBHOOK_SECRET; empty disables signature checks
}

// DBConfig selects the relational backend.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	URL    string // Postgres DSN
}

// LockConfig controls per-conversation serialization.
type LockConfig struct {
	RedisURL string        // empty => in-process lock
	TTL      time.Duration // lease held in Redis
	Wait     time.Duration // max time spent waiting for a busy conversation
}

// OpenAIConfig holds completion service settings.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// EvolutionConfig holds the WhatsApp transport (Evolution API) settings.
type EvolutionConfig struct {
	BaseURL      string
	APIKey       string
	InstanceName string
	Timeout      time.Duration
}

// Enabled reports whether enough is configured to talk to Evolution.
func (e EvolutionConfig) Enabled() bool {
	return e.BaseURL != "" && e.InstanceName != ""
}

// MauticConfig holds the CRM form sink settings.
type MauticConfig struct {
	URL      string
	FormID   int
	FormName string
	Timeout  time.Duration
}

// RateConfig is a token bucket definition.
type RateConfig struct {
	RPS   float64
	Burst int
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	Env               string // development|production
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration // must exceed RequestTimeout
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test
	RequestTimeout    time.Duration

	// Logging / Docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Persistence and locking
	DB   DBConfig
	Lock LockConfig

	// Collaborators
	OpenAI          OpenAIConfig
	Evolution       EvolutionConfig
	Mautic          MauticConfig
	SubscriptionURL string

	// ExtractUserTurnsOnly restricts transcript extraction to user messages.
	ExtractUserTurnsOnly bool

	// Rate limiting (web by client IP, WhatsApp by phone)
	WebRate      RateConfig
	WhatsAppRate RateConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration

	// Observability
	OTEL OTELConfig
}

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
		Port:              getenv("PORT", "8080"),
		Env:               strings.ToLower(getenv("ENV", "development")),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 75*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		RequestTimeout:    getdur("REQUEST_TIMEOUT", 60*time.Second),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "leads.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		Lock: LockConfig{
			RedisURL: getenv("REDIS_URL", ""),
			TTL:      getdur("LOCK_TTL", 90*time.Second),
			Wait:     getdur("LOCK_WAIT", 30*time.Second),
		},

		OpenAI: OpenAIConfig{
			APIKey:      getenv("OPENAI_API_KEY", ""),
			BaseURL:     getenv("OPENAI_BASE_URL", ""),
			Model:       getenv("OPENAI_MODEL", "gpt-4-turbo-preview"),
			Temperature: getfloat("OPENAI_TEMPERATURE", 0.7),
			MaxTokens:   getint("OPENAI_MAX_TOKENS", 2000),
		},
		Evolution: EvolutionConfig{
			BaseURL:      strings.TrimRight(getenv("EVOLUTION_API_URL", ""), "/"),
			APIKey:       getenv("EVOLUTION_API_KEY", ""),
			InstanceName: getenv("EVOLUTION_INSTANCE_NAME", ""),
			Timeout:      getdur("EVOLUTION_TIMEOUT", 30*time.Second),
		},
		Mautic: MauticConfig{
			URL:      strings.TrimRight(getenv("MAUTIC_URL", ""), "/"),
			FormID:   getint("MAUTIC_FORM_ID", 3),
			FormName: getenv("MAUTIC_FORM_NAME", "formagenteia"),
			Timeout:  getdur("MAUTIC_TIMEOUT", 15*time.Second),
		},
		SubscriptionURL: getenv("SUBSCRIPTION_URL", "https://assinatura.vivaacademy.app/subscribe/9fd960f8-4d3b-4cf4-b1ea-6e2cf5b4c88c"),

		ExtractUserTurnsOnly: getbool("EXTRACT_USER_TURNS_ONLY", false),

		WebRate: RateConfig{
			RPS:   getfloat("RATE_LIMIT_WEB_RPS", 20.0/60.0),
			Burst: getint("RATE_LIMIT_WEB_BURST", 20),
		},
		WhatsAppRate: RateConfig{
			RPS:   getfloat("RATE_LIMIT_WHATSAPP_RPS", 50.0/60.0),
			Burst: getint("RATE_LIMIT_WHATSAPP_BURST", 50),
		},

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS:    getbool("ENABLE_HSTS", false),
			HSTSMaxAge:    getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			AdminAPIToken: getenv("ADMIN_API_TOKEN", ""),
			WebhookSecret: getenv("WEBHOOK_SECRET", ""),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "lead-qualifier"),
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
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "pg" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic")
	}
	if p, err := strconv.Atoi(strings.TrimSpace(cfg.Port)); err != nil || p < 1 || p > 65535 {
		return cfg, errors.New("PORT must be a number in [1,65535]")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.RequestTimeout <= 0 {
		return cfg, errors.New("REQUEST_TIMEOUT must be > 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Lock.TTL <= 0 || cfg.Lock.Wait <= 0 {
		return cfg, errors.New("LOCK_TTL and LOCK_WAIT must be > 0")
	}
	if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
		return cfg, errors.New("OPENAI_TEMPERATURE must be in [0,2]")
	}
	if cfg.OpenAI.MaxTokens < 1 {
		return cfg, errors.New("OPENAI_MAX_TOKENS must be >= 1")
	}
	if strings.TrimSpace(cfg.OpenAI.Model) == "" {
		return cfg, errors.New("OPENAI_MODEL must not be empty")
	}
	if cfg.Evolution.Timeout <= 0 || cfg.Mautic.Timeout <= 0 {
		return cfg, errors.New("client timeouts must be > 0")
	}
	for _, r := range []RateConfig{cfg.WebRate, cfg.WhatsAppRate} {
		if r.RPS < 0 {
			return cfg, errors.New("rate limit RPS must be >= 0")
		}
		if r.Burst < 1 {
			return cfg, errors.New("rate limit burst must be >= 1")
		}
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Production reports whether ENV selects a production deployment.
func (c Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ---- helpers ----

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
