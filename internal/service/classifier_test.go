package service

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/testutil"
)

func newTestClassifier() *DomainClassifier {
	return NewDomainClassifier(testutil.TestSSOConfig(), "https")
}

func TestDomainClassifier_RoleOf(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()

	tests := []struct {
		host string
		want sso.DomainRole
	}{
		{"login.sul2.example", sso.RoleCentralSUL2},
		{"login.sul3.example", sso.RoleCentralSUL3},
		{"auth.example", sso.RoleCentralAutologin},
		{"alpha.example", sso.RoleLocal},
		{"LOGIN.SUL2.EXAMPLE", sso.RoleCentralSUL2},
		{"login.sul2.example:443", sso.RoleCentralSUL2},
		{"unknown.example", sso.RoleLocal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.RoleOf(tt.host), tt.host)
	}
}

func TestDomainClassifier_AssertCentral(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()

	assert.NoError(t, c.AssertCentral("login.sul2.example"))
	assert.NoError(t, c.AssertCentral("login.sul3.example"))

	// The cookieless autologin domain never holds the central session, so it
	// does not satisfy the central assertion either.
	err := c.AssertCentral("auth.example")
	assert.Equal(t, sso.StatusNotCentral, StatusOf(err))

	err = c.AssertCentral("alpha.example")
	assert.Equal(t, sso.StatusNotCentral, StatusOf(err))
}

func TestDomainClassifier_AssertLocal(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()

	assert.NoError(t, c.AssertLocal("alpha.example"))
	assert.NoError(t, c.AssertLocal("unknown.example"))

	err := c.AssertLocal("login.sul2.example")
	assert.Equal(t, sso.StatusNotLocal, StatusOf(err))
}

func TestDomainClassifier_WikiIDOf(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()

	id, ok := c.WikiIDOf("alpha.example")
	require.True(t, ok)
	assert.Equal(t, "alphawiki", id)

	id, ok = c.WikiIDOf("Alpha.Example:8443")
	require.True(t, ok)
	assert.Equal(t, "alphawiki", id)

	_, ok = c.WikiIDOf("evil.example")
	assert.False(t, ok)
}

func TestDomainClassifier_ResolveWikiURL_WhitelistOnly(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()

	params := url.Values{}
	params.Set("token", "abc")
	got, err := c.ResolveWikiURL("alphawiki", "/sso/autologin/createSession", params)
	require.NoError(t, err)
	assert.Equal(t, "https://alpha.example/sso/autologin/createSession?token=abc", got)

	_, err = c.ResolveWikiURL("evilwiki", "/", nil)
	assert.Equal(t, sso.StatusWikiNotFound, StatusOf(err))
}

func TestDomainClassifier_CentralURL(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()

	assert.Equal(t, "https://login.sul2.example/sso/autologin/checkLoggedIn",
		c.CentralURL(sso.GenSUL2, "/sso/autologin/checkLoggedIn", nil))
	assert.Equal(t, "https://login.sul3.example/x",
		c.CentralURL(sso.GenSUL3, "/x", nil))
}

func TestDomainClassifier_GenerationOf(t *testing.T) {
	t.Parallel()
	c := newTestClassifier()

	assert.Equal(t, sso.GenSUL3, c.GenerationOf("login.sul3.example"))
	assert.Equal(t, sso.GenSUL2, c.GenerationOf("login.sul2.example"))
	assert.Equal(t, sso.GenSUL2, c.GenerationOf("alpha.example"))
}
