// Package config holds the server-side configuration of the lawconnect
// services. Values are read once at startup and injected into every
// component; handler code never consults the environment itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvClientID             = "GOOGLE_CLIENT_ID"
	EnvClientSecret         = "GOOGLE_CLIENT_SECRET"
	EnvTokenURL             = "GOOGLE_TOKEN_URL"
	EnvStoreURL             = "DATABASE_URL"
	EnvPrivilegedCredential = "DATABASE_PRIVILEGED_CREDENTIAL"
	EnvPrivilegedUser       = "DATABASE_PRIVILEGED_USER"
	EnvAuthJWTSecret        = "AUTH_JWT_SECRET"
	EnvAuthUserInfoURL      = "AUTH_USERINFO_URL"
	EnvAuthAPIKey           = "AUTH_API_KEY"
	EnvTokenEncryptionKey   = "TOKEN_ENCRYPTION_KEY"
	EnvHTTPAddr             = "HTTP_ADDR"
	EnvAllowedOrigins       = "CORS_ALLOWED_ORIGINS"
	EnvRateLimit            = "RATE_LIMIT_RPS"
	EnvRateLimitBurst       = "RATE_LIMIT_BURST"
	EnvRedisURL             = "REDIS_URL"
	EnvMailFrom             = "MAIL_FROM"
	EnvMailEndpoint         = "GMAIL_ENDPOINT"
	EnvFilePath             = "ENV_FILE_PATH"

	EnvMetricsAddr           = "METRICS_ADDR"
	EnvTelemetryEnabled      = "INSTRUMENTATION_ENABLED"
	EnvMetricsExporter       = "METRICS_EXPORTER"
	EnvTracingExporter       = "TRACING_EXPORTER"
	EnvOTLPEndpoint          = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPInsecure          = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvTraceSamplingRate     = "OTEL_TRACES_SAMPLER_ARG"
	EnvMetricsDetailedLabels = "METRICS_DETAILED_LABELS"
	EnvAuditEnabled          = "AUDIT_LOGGING_ENABLED"
	EnvAuditIncludePII       = "AUDIT_LOGGING_INCLUDE_PII"
)

// Defaults.
const (
	DefaultHTTPAddr       = ":8080"
	DefaultPrivilegedUser = "postgres"
	DefaultRateLimit      = 10
	DefaultRateLimitBurst = 20

	DefaultMetricsAddr       = ":9090"
	DefaultMetricsExporter   = "prometheus"
	DefaultTracingExporter   = "none"
	DefaultTraceSamplingRate = 0.1
)

// Config is the process configuration. Secrets in here never leave the server.
type Config struct {
	// Identity provider OAuth client
	ProviderClientID     string
	ProviderClientSecret string
	TokenURL             string // optional override of the provider token endpoint

	// Relational store
	StoreURL                  string
	StorePrivilegedUser       string
	StorePrivilegedCredential string

	// Bearer validation for the dispatch endpoint
	AuthJWTSecret   string
	AuthUserInfoURL string
	AuthAPIKey      string

	// TokenEncryptionKey is the base64 AES-256 key for tokens at rest. Empty disables encryption.
	TokenEncryptionKey string

	HTTPAddr       string
	AllowedOrigins []string
	RateLimit      int
	RateLimitBurst int
	RedisURL       string

	MailFrom     string
	MailEndpoint string

	Telemetry Telemetry
}

// Telemetry configures metrics, tracing and the audit trail.
type Telemetry struct {
	Enabled           bool
	MetricsAddr       string
	MetricsExporter   string
	TracingExporter   string
	OTLPEndpoint      string
	OTLPInsecure      bool
	TraceSamplingRate float64
	DetailedLabels    bool
	AuditEnabled      bool
	AuditIncludePII   bool
}

// Load reads a .env file (if present) and then the process environment.
// Variables already set in the environment win over the .env file.
func Load() (*Config, error) {
	loadDotEnv(".env")
	return FromLookup(os.LookupEnv)
}

func loadDotEnv(defaultPath string) {
	envFile := os.Getenv(EnvFilePath)
	if envFile == "" {
		envFile = defaultPath
	}
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	// godotenv.Load never overrides variables that are already set
	_ = godotenv.Load(envFile)
}

// FromLookup builds a Config from a lookup function such as os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	rate, err := parseIntOrDefault(get(EnvRateLimit, ""), DefaultRateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvRateLimit, err)
	}
	burst, err := parseIntOrDefault(get(EnvRateLimitBurst, ""), DefaultRateLimitBurst)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvRateLimitBurst, err)
	}

	telemetry, err := telemetryFromLookup(get)
	if err != nil {
		return nil, err
	}

	return &Config{
		ProviderClientID:          get(EnvClientID, ""),
		ProviderClientSecret:      get(EnvClientSecret, ""),
		TokenURL:                  get(EnvTokenURL, ""),
		StoreURL:                  get(EnvStoreURL, ""),
		StorePrivilegedUser:       get(EnvPrivilegedUser, DefaultPrivilegedUser),
		StorePrivilegedCredential: get(EnvPrivilegedCredential, ""),
		AuthJWTSecret:             get(EnvAuthJWTSecret, ""),
		AuthUserInfoURL:           get(EnvAuthUserInfoURL, ""),
		AuthAPIKey:                get(EnvAuthAPIKey, ""),
		TokenEncryptionKey:        get(EnvTokenEncryptionKey, ""),
		HTTPAddr:                  get(EnvHTTPAddr, DefaultHTTPAddr),
		AllowedOrigins:            ParseCommaSeparatedList(get(EnvAllowedOrigins, "*")),
		RateLimit:                 rate,
		RateLimitBurst:            burst,
		RedisURL:                  get(EnvRedisURL, ""),
		MailFrom:                  get(EnvMailFrom, ""),
		MailEndpoint:              get(EnvMailEndpoint, ""),
		Telemetry:                 telemetry,
	}, nil
}

func telemetryFromLookup(get func(key, def string) string) (Telemetry, error) {
	t := Telemetry{
		MetricsAddr:     get(EnvMetricsAddr, DefaultMetricsAddr),
		MetricsExporter: get(EnvMetricsExporter, DefaultMetricsExporter),
		TracingExporter: get(EnvTracingExporter, DefaultTracingExporter),
		OTLPEndpoint:    get(EnvOTLPEndpoint, ""),
	}

	bools := []struct {
		key  string
		def  bool
		dest *bool
	}{
		{EnvTelemetryEnabled, true, &t.Enabled},
		{EnvOTLPInsecure, false, &t.OTLPInsecure},
		{EnvMetricsDetailedLabels, false, &t.DetailedLabels},
		{EnvAuditEnabled, true, &t.AuditEnabled},
		{EnvAuditIncludePII, false, &t.AuditIncludePII},
	}
	for _, b := range bools {
		v, err := parseBoolOrDefault(get(b.key, ""), b.def)
		if err != nil {
			return Telemetry{}, fmt.Errorf("invalid %s: %w", b.key, err)
		}
		*b.dest = v
	}

	rate := get(EnvTraceSamplingRate, "")
	t.TraceSamplingRate = DefaultTraceSamplingRate
	if rate != "" {
		v, err := strconv.ParseFloat(rate, 64)
		if err != nil {
			return Telemetry{}, fmt.Errorf("invalid %s: %w", EnvTraceSamplingRate, err)
		}
		t.TraceSamplingRate = v
	}
	return t, nil
}

func parseBoolOrDefault(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}

func parseIntOrDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative, got %d", n)
	}
	return n, nil
}

// Validate reports every missing or malformed required setting in one error.
func (c *Config) Validate() error {
	var errs []error

	if c.ProviderClientID == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvClientID))
	}
	if c.ProviderClientSecret == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvClientSecret))
	}
	if c.StoreURL == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvStoreURL))
	} else if err := c.validateStoreURL(); err != nil {
		errs = append(errs, err)
	}
	if c.AuthJWTSecret == "" && c.AuthUserInfoURL == "" {
		errs = append(errs, fmt.Errorf("one of %s or %s is required", EnvAuthJWTSecret, EnvAuthUserInfoURL))
	}

	return errors.Join(errs...)
}

func (c *Config) validateStoreURL() error {
	scheme, _, ok := strings.Cut(c.StoreURL, "://")
	if !ok {
		return fmt.Errorf("invalid %s: missing scheme", EnvStoreURL)
	}
	switch scheme {
	case "postgres", "postgresql":
		if c.StorePrivilegedCredential == "" {
			return fmt.Errorf("%s is required for postgres stores", EnvPrivilegedCredential)
		}
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported %s scheme %q", EnvStoreURL, scheme)
	}
	return nil
}

// ParseCommaSeparatedList splits s on commas, trimming blanks.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
