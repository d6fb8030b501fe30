package config

import (
	"strings"
	"time"
)

// SSOConfig describes the domain topology of the wiki farm and the handshake
// tuning knobs. The central domains and the wiki map are the static,
// server-side whitelist every redirect target is resolved against; nothing in
// the handshake ever redirects to a URL built from unvalidated input.
type SSOConfig struct {
	// SUL2Domain and SUL3Domain are the hostnames of the two central-session
	// generations. Both are live during protocol migration.
	SUL2Domain string `env:"SUL2_DOMAIN" envDefault:"sul2.ssohub.test"`
	SUL3Domain string `env:"SUL3_DOMAIN" envDefault:"sul3.ssohub.test"`

	// AutologinDomain is the dedicated cookieless domain used for the
	// cache-friendly early autologin steps.
	AutologinDomain string `env:"AUTOLOGIN_DOMAIN" envDefault:"autologin.ssohub.test"`

	// LoginWikiID is the wiki that hosts the interactive login form and
	// therefore runs the login-start step.
	LoginWikiID string `env:"LOGIN_WIKI" envDefault:"loginwiki"`

	// Wikis maps wiki IDs to their external base URLs,
	// e.g. "enwiki=https://en.ssohub.test,dewiki=https://de.ssohub.test".
	Wikis map[string]string `env:"WIKIS" envSeparator:"," envKeyValSeparator:"="`

	// TokenTTL bounds each handshake hop. An abandoned chain simply expires.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"60s"`

	// SessionTTL is the lifetime of a central session without "remember me".
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// RememberTTL is the lifetime with "remember me" set.
	RememberTTL time.Duration `env:"REMEMBER_TTL" envDefault:"720h"`

	// IconPath optionally points at a PNG served for type=icon responses.
	// Empty falls back to the embedded 1x1 transparent pixel.
	IconPath string `env:"ICON_PATH" envDefault:""`
}

// Sanitize applies guardrails to SSO configuration values.
func (c *SSOConfig) Sanitize() {
	c.SUL2Domain = normalizeHost(c.SUL2Domain)
	c.SUL3Domain = normalizeHost(c.SUL3Domain)
	c.AutologinDomain = normalizeHost(c.AutologinDomain)

	if c.TokenTTL <= 0 {
		c.TokenTTL = 60 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.RememberTTL < c.SessionTTL {
		c.RememberTTL = c.SessionTTL
	}

	cleaned := make(map[string]string, len(c.Wikis))
	for id, base := range c.Wikis {
		id = strings.TrimSpace(id)
		base = strings.TrimRight(strings.TrimSpace(base), "/")
		if id == "" || base == "" {
			continue
		}
		cleaned[id] = base
	}
	c.Wikis = cleaned
}

func normalizeHost(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
