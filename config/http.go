package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to. One listener serves
	// every origin; the domain classifier routes by Host.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Scheme is the external scheme redirect URLs are built with. Use "http"
	// only in development.
	Scheme string `env:"HTTP_SCHEME" envDefault:"https"`

	// ReadTimeout and WriteTimeout bound slow clients.
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"  envDefault:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Scheme != "http" {
		h.Scheme = "https"
	}
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 10 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 10 * time.Second
	}
}
