package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/service"
)

func shape(t *testing.T, in shapeInput) *httptest.ResponseRecorder {
	t.Helper()
	rs := &ResponseShaper{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "https://alpha.example/sso/autologin/start", nil)
	rs.Write(rec, req, in)
	return rec
}

func TestShaper_RedirectHopWinsOverShape(t *testing.T) {
	t.Parallel()
	rec := shape(t, shapeInput{
		typ:    sso.TypeScript,
		status: sso.StatusOK,
		result: &service.StepResult{RedirectURL: "https://login.sul2.example/sso/autologin/checkLoggedIn"},
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://login.sul2.example/sso/autologin/checkLoggedIn", rec.Header().Get("Location"))
	assert.Equal(t, "okay", rec.Header().Get("X-SSO-Status"))
}

func TestShaper_Script(t *testing.T) {
	t.Parallel()
	rec := shape(t, shapeInput{
		typ:    sso.TypeScript,
		status: sso.StatusNotLoggedIn,
		result: &service.StepResult{Script: "doSomething();"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "/* Not centrally logged in */\ndoSomething();\n", rec.Body.String())
	assert.Equal(t, "not-centrally-logged-in", rec.Header().Get("X-SSO-Status"))
}

func TestShaper_JSON(t *testing.T) {
	t.Parallel()
	rec := shape(t, shapeInput{
		typ:    sso.TypeJSON,
		status: sso.StatusOK,
		result: &service.StepResult{UserName: "Alice", ToolsList: "<ul></ul>"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","username":"Alice","toolslist":"<ul></ul>"}`, rec.Body.String())

	rec = shape(t, shapeInput{typ: sso.TypeJSON, status: sso.StatusLostSession})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"Lost session"}`, rec.Body.String())
}

func TestShaper_PixelBodyNeverVariesByOutcome(t *testing.T) {
	t.Parallel()
	ok := shape(t, shapeInput{typ: sso.TypePixel, status: sso.StatusOK, result: &service.StepResult{UserName: "Alice"}})
	failed := shape(t, shapeInput{typ: sso.TypePixel, status: sso.StatusLostSession})

	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, http.StatusOK, failed.Code)
	assert.Equal(t, "image/png", ok.Header().Get("Content-Type"))
	assert.Equal(t, ok.Body.Bytes(), failed.Body.Bytes(), "outcome must only be visible in the header")
	assert.Equal(t, "okay", ok.Header().Get("X-SSO-Status"))
	assert.Equal(t, "lost-session", failed.Header().Get("X-SSO-Status"))

	// The embedded pixel is a real PNG.
	require.Greater(t, len(ok.Body.Bytes()), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, ok.Body.Bytes()[:4])
}

func TestShaper_RedirectTerminal(t *testing.T) {
	t.Parallel()

	// Success: straight to the verified return target.
	rec := shape(t, shapeInput{
		typ:    sso.TypeRedirect,
		status: sso.StatusOK,
		result: &service.StepResult{ReturnURL: "https://alpha.example/wiki/Main_Page"},
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://alpha.example/wiki/Main_Page", rec.Header().Get("Location"))

	// Recoverable failure with a target: outcome appended for the page.
	rec = shape(t, shapeInput{
		typ:    sso.TypeRedirect,
		status: sso.StatusLostSession,
		result: &service.StepResult{ReturnURL: "https://alpha.example/wiki/Main_Page?a=b"},
	})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://alpha.example/wiki/Main_Page?a=b&sso_error=lost-session", rec.Header().Get("Location"))

	// No target at all: minimal HTML fallback with a real error code.
	rec = shape(t, shapeInput{typ: sso.TypeRedirect, status: sso.StatusWikiNotFound})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Specified local wiki not found")
	assert.Contains(t, rec.Body.String(), "history.back()")
}

func TestShaper_CacheHeaders(t *testing.T) {
	t.Parallel()

	rec := shape(t, shapeInput{
		typ:    sso.TypeScript,
		status: sso.StatusOK,
		result: &service.StepResult{RedirectURL: "https://example.org/x", Cacheable: true},
	})
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Cookie", rec.Header().Get("Vary"))

	rec = shape(t, shapeInput{typ: sso.TypeJSON, status: sso.StatusOK, result: &service.StepResult{UserName: "Alice"}})
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestStatusHTTPCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusOK, statusHTTPCode(sso.StatusOK))
	assert.Equal(t, http.StatusInternalServerError, statusHTTPCode(sso.StatusInternalError))
	assert.Equal(t, http.StatusInternalServerError, statusHTTPCode(sso.StatusInconsistency))
	assert.Equal(t, http.StatusUnauthorized, statusHTTPCode(sso.StatusBadCredentials))
	assert.Equal(t, http.StatusUnauthorized, statusHTTPCode(sso.StatusWrongAttempt))
	assert.Equal(t, http.StatusNotFound, statusHTTPCode(sso.StatusWikiNotFound))
	assert.Equal(t, http.StatusBadRequest, statusHTTPCode(sso.StatusInvalidParams))
}
