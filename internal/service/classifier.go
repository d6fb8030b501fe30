package service

import (
	"net/url"
	"strings"

	"github.com/wikimesh/ssohub/config"
	"github.com/wikimesh/ssohub/internal/domain/sso"
)

// DomainClassifier decides which domain role the current request's origin
// plays and resolves logical wiki IDs to whitelisted URLs. Every state-machine
// step begins by asserting its expected role; that assertion is the primary
// defense against a step being tricked into running on the wrong origin and
// leaking a token meant for a different audience.
//
// All configuration is passed in at construction; there is no ambient global
// state.
type DomainClassifier struct {
	cfg    config.SSOConfig
	scheme string

	// wikiByHost is the reverse of cfg.Wikis, keyed by lowercased hostname.
	wikiByHost map[string]string
}

// NewDomainClassifier builds a classifier from static configuration.
func NewDomainClassifier(cfg config.SSOConfig, scheme string) *DomainClassifier {
	byHost := make(map[string]string, len(cfg.Wikis))
	for id, base := range cfg.Wikis {
		if u, err := url.Parse(base); err == nil && u.Host != "" {
			byHost[strings.ToLower(u.Hostname())] = id
		}
	}
	return &DomainClassifier{cfg: cfg, scheme: scheme, wikiByHost: byHost}
}

// NormalizeHost lowercases and strips any port from a request Host header.
func NormalizeHost(host string) string {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// RoleOf classifies a request host. Total: hosts that are not a configured
// central domain are local, including unknown ones (they fail later when a
// wiki ID must resolve).
func (c *DomainClassifier) RoleOf(host string) sso.DomainRole {
	switch NormalizeHost(host) {
	case c.cfg.SUL2Domain:
		return sso.RoleCentralSUL2
	case c.cfg.SUL3Domain:
		return sso.RoleCentralSUL3
	case c.cfg.AutologinDomain:
		return sso.RoleCentralAutologin
	default:
		return sso.RoleLocal
	}
}

// IsCentralDomain reports whether the host plays any central role.
func (c *DomainClassifier) IsCentralDomain(host string) bool {
	return c.RoleOf(host).IsCentral()
}

// IsLocalDomain reports whether the host is a local origin.
func (c *DomainClassifier) IsLocalDomain(host string) bool {
	return !c.IsCentralDomain(host)
}

// AssertCentral fails unless the host is a session-bearing central domain
// (SUL2 or SUL3). The cookieless autologin domain does not qualify: it never
// holds the central session.
func (c *DomainClassifier) AssertCentral(host string) error {
	switch c.RoleOf(host) {
	case sso.RoleCentralSUL2, sso.RoleCentralSUL3:
		return nil
	default:
		return Protocol(sso.StatusNotCentral)
	}
}

// AssertLocal fails unless the host is a local origin.
func (c *DomainClassifier) AssertLocal(host string) error {
	if c.IsCentralDomain(host) {
		return Protocol(sso.StatusNotLocal)
	}
	return nil
}

// WikiIDOf resolves a local request host to its configured wiki ID.
func (c *DomainClassifier) WikiIDOf(host string) (string, bool) {
	id, ok := c.wikiByHost[NormalizeHost(host)]
	return id, ok
}

// GenerationOf returns the central-session generation a host belongs to.
func (c *DomainClassifier) GenerationOf(host string) sso.Generation {
	if c.RoleOf(host) == sso.RoleCentralSUL3 {
		return sso.GenSUL3
	}
	return sso.GenSUL2
}

// ResolveWikiURL turns a logical wiki ID into a fully-qualified URL under that
// wiki's configured base. Wiki IDs are resolved against the static server-side
// map only; no redirect target is ever built from unvalidated input.
func (c *DomainClassifier) ResolveWikiURL(wikiID, subpage string, params url.Values) (string, error) {
	base, ok := c.cfg.Wikis[wikiID]
	if !ok {
		return "", Protocol(sso.StatusWikiNotFound)
	}
	return buildURL(base, subpage, params), nil
}

// CentralURL builds a URL on the given central-session generation's domain.
func (c *DomainClassifier) CentralURL(gen sso.Generation, subpage string, params url.Values) string {
	host := c.cfg.SUL2Domain
	if gen == sso.GenSUL3 {
		host = c.cfg.SUL3Domain
	}
	return buildURL(c.scheme+"://"+host, subpage, params)
}

func buildURL(base, subpage string, params url.Values) string {
	u := base + subpage
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}
