package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, DefaultPrivilegedUser, cfg.StorePrivilegedUser)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.Equal(t, DefaultRateLimitBurst, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, Telemetry{
		Enabled:           true,
		MetricsAddr:       DefaultMetricsAddr,
		MetricsExporter:   DefaultMetricsExporter,
		TracingExporter:   DefaultTracingExporter,
		TraceSamplingRate: DefaultTraceSamplingRate,
		AuditEnabled:      true,
	}, cfg.Telemetry)
}

func TestFromLookup_Telemetry(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		EnvTelemetryEnabled:      "false",
		EnvMetricsAddr:           "127.0.0.1:9191",
		EnvTracingExporter:       "otlp",
		EnvOTLPEndpoint:          "collector:4318",
		EnvOTLPInsecure:          "true",
		EnvTraceSamplingRate:     "0.5",
		EnvMetricsDetailedLabels: "1",
		EnvAuditIncludePII:       "true",
	}))
	require.NoError(t, err)

	tel := cfg.Telemetry
	assert.False(t, tel.Enabled)
	assert.Equal(t, "127.0.0.1:9191", tel.MetricsAddr)
	assert.Equal(t, "otlp", tel.TracingExporter)
	assert.Equal(t, "collector:4318", tel.OTLPEndpoint)
	assert.True(t, tel.OTLPInsecure)
	assert.InDelta(t, 0.5, tel.TraceSamplingRate, 1e-9)
	assert.True(t, tel.DetailedLabels)
	assert.True(t, tel.AuditEnabled)
	assert.True(t, tel.AuditIncludePII)
}

func TestFromLookup_InvalidTelemetry(t *testing.T) {
	for key, value := range map[string]string{
		EnvTelemetryEnabled:  "sometimes",
		EnvTraceSamplingRate: "half",
	} {
		_, err := FromLookup(lookupFrom(map[string]string{key: value}))
		require.Error(t, err, key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestFromLookup_ReadsValues(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		EnvClientID:             "client-id",
		EnvClientSecret:         " secret ",
		EnvStoreURL:             "postgres://app@db:5432/lawconnect",
		EnvPrivilegedCredential: "service-role",
		EnvAuthJWTSecret:        "jwt-secret",
		EnvAllowedOrigins:       "https://app.lawconnect.es, http://localhost:5173",
		EnvRateLimit:            "0",
		EnvRedisURL:             "redis://localhost:6379/0",
	}))
	require.NoError(t, err)

	assert.Equal(t, "client-id", cfg.ProviderClientID)
	assert.Equal(t, "secret", cfg.ProviderClientSecret)
	assert.Equal(t, "service-role", cfg.StorePrivilegedCredential)
	assert.Equal(t, []string{"https://app.lawconnect.es", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, 0, cfg.RateLimit)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.NoError(t, cfg.Validate())
}

func TestFromLookup_InvalidRateLimit(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{EnvRateLimit: "fast"}))
	assert.Error(t, err)

	_, err = FromLookup(lookupFrom(map[string]string{EnvRateLimitBurst: "-1"}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ProviderClientID:     "id",
			ProviderClientSecret: "secret",
			StoreURL:             "sqlite:///tmp/lawconnect.db",
			AuthJWTSecret:        "jwt",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid sqlite", func(*Config) {}, ""},
		{"missing client id", func(c *Config) { c.ProviderClientID = "" }, EnvClientID},
		{"missing client secret", func(c *Config) { c.ProviderClientSecret = "" }, EnvClientSecret},
		{"missing store url", func(c *Config) { c.StoreURL = "" }, EnvStoreURL},
		{"postgres without privileged credential", func(c *Config) {
			c.StoreURL = "postgres://db/lawconnect"
		}, EnvPrivilegedCredential},
		{"unsupported scheme", func(c *Config) { c.StoreURL = "mysql://db" }, "unsupported"},
		{"no bearer validation", func(c *Config) { c.AuthJWTSecret = "" }, EnvAuthUserInfoURL},
		{"userinfo only", func(c *Config) {
			c.AuthJWTSecret = ""
			c.AuthUserInfoURL = "https://auth.example.com/auth/v1/user"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllMissing(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvClientID)
	assert.Contains(t, err.Error(), EnvClientSecret)
	assert.Contains(t, err.Error(), EnvStoreURL)
}

func TestLoad_ReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GOOGLE_CLIENT_ID=from-file\nMAIL_FROM=despacho@lawconnect.es\n"), 0o600))

	t.Setenv(EnvFilePath, path)
	t.Setenv(EnvClientID, "from-env")
	t.Setenv(EnvMailFrom, "")
	require.NoError(t, os.Unsetenv(EnvMailFrom))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ProviderClientID)
	assert.Equal(t, "despacho@lawconnect.es", cfg.MailFrom)
}

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single value", "https://app.lawconnect.es", []string{"https://app.lawconnect.es"}},
		{"spaces around comma", "a, b", []string{"a", "b"}},
		{"leading and trailing spaces", "  a  ,  b  ", []string{"a", "b"}},
		{"trailing comma", "a,b,", []string{"a", "b"}},
		{"consecutive commas", "a,,b", []string{"a", "b"}},
		{"only commas and spaces", ",  , , ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCommaSeparatedList(tt.input))
		})
	}
}
