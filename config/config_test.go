package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSSOConfigSanitize(t *testing.T) {
	cfg := SSOConfig{
		SUL2Domain:  " Login.SUL2.Example ",
		SUL3Domain:  "login.sul3.example",
		TokenTTL:    -1,
		SessionTTL:  0,
		RememberTTL: time.Hour,
		Wikis: map[string]string{
			" enwiki ": " https://en.example/ ",
			"":         "https://nameless.example",
			"dewiki":   "",
		},
	}
	cfg.Sanitize()

	assert.Equal(t, "login.sul2.example", cfg.SUL2Domain)
	assert.Equal(t, 60*time.Second, cfg.TokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.RememberTTL,
		"remember lifetime must never undercut the session lifetime")
	assert.Equal(t, map[string]string{"enwiki": "https://en.example"}, cfg.Wikis)
}

func TestHTTPConfigSanitize(t *testing.T) {
	cfg := HTTPConfig{Scheme: "gopher", ReadTimeout: -1, WriteTimeout: 0}
	cfg.Sanitize()

	assert.Equal(t, "https", cfg.Scheme)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)

	dev := HTTPConfig{Scheme: "http"}
	dev.Sanitize()
	assert.Equal(t, "http", dev.Scheme, "plain http stays available for development")
}

func TestMetricsConfigSanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	cfg.Sanitize()
	assert.False(t, cfg.IsEnabled(), "no address means no emission regardless of the flag")

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "127.0.0.1:8125"}
	cfg.Sanitize()
	assert.True(t, cfg.IsEnabled())
}

func TestDetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()
	assert.True(t, cfg.IsDev)

	t.Setenv("NODE_ENV", "production")
	cfg = AppConfig{}
	cfg.Sanitize()
	assert.False(t, cfg.IsDev)
}
