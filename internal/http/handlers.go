package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/ports"
	"github.com/wikimesh/ssohub/internal/service"
)

// Cookie names are part of the wire contract with the frontend snippets.
const (
	localSessionCookie   = "wikiSession"
	centralSessionCookie = "ssoSession"
)

// HandshakeHandlers serves the autologin and central-login endpoints.
type HandshakeHandlers struct {
	Autologin *service.AutologinService
	Login     *service.CentralLoginService
	Shaper    *ResponseShaper
	Metrics   ports.MetricsSink
	Secure    bool
	// RememberTTL is the cookie lifetime applied when a step asks for
	// persistent cookies; it must match the session store's remember TTL.
	RememberTTL time.Duration
	Logger      *slog.Logger
}

// AutologinStep handles GET /sso/autologin/{step}.
func (h *HandshakeHandlers) AutologinStep(w http.ResponseWriter, r *http.Request) {
	stepName, ok := sso.ParseStep(r.PathValue("step"))
	if !ok {
		h.Shaper.Write(w, r, shapeInput{
			typ:    sso.ParseResponseType(r.URL.Query().Get("type")),
			status: sso.StatusInvalidParams,
		})
		return
	}
	step, ok := h.Autologin.HandlerFor(stepName)
	if !ok {
		http.NotFound(w, r)
		return
	}

	req := stepRequestFrom(r)
	started := time.Now()
	result, err := step.Run(r.Context(), req)
	status := service.StatusOf(err)
	if err == nil && result != nil {
		// Terminal non-error outcomes (e.g. anonymous) carry their own status.
		status = result.Status
	}
	if err != nil {
		h.logFailure(r, string(stepName), status, err)
	}

	h.count("autologin."+string(stepName), status, r)
	if stepName == sso.StepSetCookies && status.OK() {
		h.timing("autologin.set_cookies.duration", time.Since(started), r)
	}

	h.applyCookies(w, cookieChanges{
		local:      resultLocalCookie(result),
		central:    resultCentralCookie(result),
		clearLocal: result != nil && result.ClearLocalSession,
		remember:   result != nil && result.Remember,
	})

	typ := sso.ParseResponseType(r.URL.Query().Get("type"))
	if typ == sso.TypeRedirect && !status.OK() {
		// A failed chain still bounces the browser back to the parked return
		// URL, with the outcome appended; the HTML fallback is only for
		// requests where no return URL can be redeemed.
		if result == nil {
			result = &service.StepResult{Status: status}
		}
		if result.ReturnURL == "" {
			result.ReturnURL = h.Autologin.ResolveReturnURL(r.Context(), r.URL.Query())
		}
	}
	h.Shaper.Write(w, r, shapeInput{typ: typ, status: status, result: result})
}

// LoginStart handles GET /sso/login/start on the central domain.
func (h *HandshakeHandlers) LoginStart(w http.ResponseWriter, r *http.Request) {
	h.loginStep(w, r, "login.start", h.Login.Start)
}

// LoginComplete handles GET /sso/login/complete on the originating wiki.
func (h *HandshakeHandlers) LoginComplete(w http.ResponseWriter, r *http.Request) {
	h.loginStep(w, r, "login.complete", h.Login.Complete)
}

type loginFunc func(ctx context.Context, req *service.LoginRequest) (*service.LoginResult, error)

func (h *HandshakeHandlers) loginStep(w http.ResponseWriter, r *http.Request, metric string, run loginFunc) {
	req := &service.LoginRequest{
		Host:             r.Host,
		Query:            r.URL.Query(),
		LocalSessionID:   cookieValue(r, localSessionCookie),
		CentralSessionID: cookieValue(r, centralSessionCookie),
	}

	result, err := run(r.Context(), req)
	status := service.StatusOf(err)
	if err == nil && result != nil {
		status = result.Status
	}
	if err != nil {
		h.logFailure(r, metric, status, err)
	}
	h.count(metric, status, r)

	h.applyCookies(w, cookieChanges{
		local:    loginLocalCookie(result),
		central:  loginCentralCookie(result),
		remember: result != nil && result.Remember,
	})

	if result != nil && result.RedirectURL != "" && status.OK() {
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
		return
	}
	w.Header().Set(statusHeader, status.Slug())
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, statusHTTPCode(status), statusPayload{Status: status.String()})
}

// beginLoginRequest is the JSON body the login form's backend posts after it
// has collected credentials.
type beginLoginRequest struct {
	WikiID    string `json:"wiki_id"`
	UserName  string `json:"username"`
	AuthToken string `json:"auth_token"`
	Remember  bool   `json:"remember"`
	ReturnTo  string `json:"return_to"`
}

type beginLoginResponse struct {
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// BeginLogin handles POST /sso/login/begin.
func (h *HandshakeHandlers) BeginLogin(w http.ResponseWriter, r *http.Request) {
	var body beginLoginRequest
	if !DecodeJSON(w, r, &body) {
		return
	}

	result, err := h.Login.BeginLogin(r.Context(), service.BeginLoginInput{
		WikiID:         body.WikiID,
		LocalSessionID: cookieValue(r, localSessionCookie),
		UserName:       body.UserName,
		AuthToken:      body.AuthToken,
		Remember:       body.Remember,
		ReturnTo:       body.ReturnTo,
	})
	status := service.StatusOf(err)
	if err != nil {
		h.logFailure(r, "login.begin", status, err)
	}
	h.count("login.begin", status, r)

	if result == nil {
		w.Header().Set(statusHeader, status.Slug())
		WriteJSON(w, statusHTTPCode(status), statusPayload{Status: status.String()})
		return
	}

	h.applyCookies(w, cookieChanges{
		local: &sessionCookie{name: localSessionCookie, value: result.LocalSessionID},
	})
	w.Header().Set(statusHeader, status.Slug())
	WriteJSON(w, http.StatusOK, beginLoginResponse{
		Status:      status.String(),
		RedirectURL: result.RedirectURL,
	})
}

// Health handles GET /healthz.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func stepRequestFrom(r *http.Request) *service.StepRequest {
	return &service.StepRequest{
		Host:             r.Host,
		Query:            r.URL.Query(),
		LocalSessionID:   cookieValue(r, localSessionCookie),
		CentralSessionID: cookieValue(r, centralSessionCookie),
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type sessionCookie struct {
	name  string
	value string
}

type cookieChanges struct {
	local      *sessionCookie
	central    *sessionCookie
	clearLocal bool
	remember   bool
}

func resultLocalCookie(res *service.StepResult) *sessionCookie {
	if res == nil || res.SetLocalSessionID == "" {
		return nil
	}
	return &sessionCookie{name: localSessionCookie, value: res.SetLocalSessionID}
}

func resultCentralCookie(res *service.StepResult) *sessionCookie {
	if res == nil || res.SetCentralSessionID == "" {
		return nil
	}
	return &sessionCookie{name: centralSessionCookie, value: res.SetCentralSessionID}
}

func loginLocalCookie(res *service.LoginResult) *sessionCookie {
	if res == nil || res.SetLocalSessionID == "" {
		return nil
	}
	return &sessionCookie{name: localSessionCookie, value: res.SetLocalSessionID}
}

func loginCentralCookie(res *service.LoginResult) *sessionCookie {
	if res == nil || res.SetCentralSessionID == "" {
		return nil
	}
	return &sessionCookie{name: centralSessionCookie, value: res.SetCentralSessionID}
}

// applyCookies writes the cookie mutations a step asked for. Handshake
// requests arrive as cross-site subresources, so cookies must be
// SameSite=None, which browsers only accept together with Secure.
func (h *HandshakeHandlers) applyCookies(w http.ResponseWriter, ch cookieChanges) {
	sameSite := http.SameSiteLaxMode
	if h.Secure {
		sameSite = http.SameSiteNoneMode
	}

	set := func(c *sessionCookie) {
		cookie := &http.Cookie{
			Name:     c.name,
			Value:    c.value,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.Secure,
			SameSite: sameSite,
		}
		if ch.remember {
			ttl := h.RememberTTL
			if ttl <= 0 {
				ttl = 30 * 24 * time.Hour
			}
			cookie.MaxAge = int(ttl.Seconds())
		}
		http.SetCookie(w, cookie)
	}

	if ch.local != nil {
		set(ch.local)
	}
	if ch.central != nil {
		set(ch.central)
	}
	if ch.clearLocal {
		http.SetCookie(w, &http.Cookie{
			Name:     localSessionCookie,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   h.Secure,
			SameSite: sameSite,
			MaxAge:   -1,
		})
	}
}

func (h *HandshakeHandlers) count(metric string, status sso.Status, r *http.Request) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.Count("sso."+metric+"."+status.Slug(), 1, requestTags(r))
}

func (h *HandshakeHandlers) timing(metric string, d time.Duration, r *http.Request) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.Timing("sso."+metric, d, requestTags(r))
}

// requestTags derives the flow-kind tags every handshake metric carries.
func requestTags(r *http.Request) map[string]string {
	q := r.URL.Query()
	flow := "central"
	if strings.HasPrefix(q.Get("from"), "edge") {
		flow = "edge"
	}
	return map[string]string{
		"flow":    flow,
		"usesul3": boolTag(q.Get("usesul3") == "1"),
	}
}

func boolTag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (h *HandshakeHandlers) logFailure(r *http.Request, op string, status sso.Status, err error) {
	if h.Logger == nil {
		return
	}
	level := slog.LevelInfo
	if status == sso.StatusInternalError || status == sso.StatusInconsistency {
		level = slog.LevelError
	}
	h.Logger.Log(r.Context(), level, "handshake step failed",
		slog.String("op", op),
		slog.String("status", status.Slug()),
		slog.String("host", r.Host),
		slog.String("error", err.Error()),
	)
}
