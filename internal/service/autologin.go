package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wikimesh/ssohub/config"
	"github.com/wikimesh/ssohub/internal/domain/sso"
	apperrors "github.com/wikimesh/ssohub/internal/errors"
	"github.com/wikimesh/ssohub/internal/ports"
)

// Endpoint paths for the two state machines.
const (
	AutologinBasePath = "/sso/autologin/"
	LoginBasePath     = "/sso/login/"
)

// Query parameter names threaded through the handshake.
const (
	paramType           = "type"
	paramFrom           = "from"
	paramUseSUL3        = "usesul3"
	paramReturnTo       = "returnto"
	paramReturnToQuery  = "returntoquery"
	paramReturnURLToken = "returnUrlToken"
	paramWikiID         = "wikiid"
	paramToken          = "token"
	paramRetry          = "retry"
)

// anonymousNotice is the script payload emitted for the genuine not-logged-in
// terminal state; it clears any stale client-side "logged in" indicator.
const anonymousNotice = "if (window.ssoClearLoggedInHint) { window.ssoClearLoggedInHint(); }"

// StepRequest is the per-request view a step executes against. The HTTP layer
// fills it from the request; steps never see cookies or writers directly.
type StepRequest struct {
	// Host is the request's Host header, as received.
	Host string
	// Query holds the request's query parameters.
	Query url.Values
	// LocalSessionID is the local wiki session cookie value, if any.
	LocalSessionID string
	// CentralSessionID is the central-domain session cookie value, if any.
	CentralSessionID string
}

// StepResult is what a step hands back to the HTTP layer.
type StepResult struct {
	Status sso.Status

	// RedirectURL, when set, is the next hop of the chain.
	RedirectURL string

	// Cacheable marks responses that carry no per-user data beyond varying
	// by cookie; the HTTP layer disables caching for everything else.
	Cacheable bool

	// UserName is the identity the terminal step authenticated, for logs.
	UserName string

	// Script is the extra payload for type=script terminal responses.
	Script string

	// ToolsList is the personalized HTML fragment for the toolslist step.
	ToolsList string

	// ReturnURL is the resolved, token-verified return target for terminal
	// type=redirect responses.
	ReturnURL string

	// SetLocalSessionID asks the HTTP layer to (re)set the local session
	// cookie. SetCentralSessionID does the same for the central cookie.
	SetLocalSessionID   string
	SetCentralSessionID string

	// Remember makes the cookies persistent instead of session-scoped.
	Remember bool

	// ClearLocalSession asks the HTTP layer to expire the local SSO cookies.
	ClearLocalSession bool
}

// Step is one state of the autologin machine: a name plus its execution
// function. Preconditions live inside Run, colocated with the step logic.
type Step struct {
	Name sso.StepName
	Run  func(ctx context.Context, req *StepRequest) (*StepResult, error)
}

// AutologinService runs the edge/central autologin state machine.
type AutologinService struct {
	classifier *DomainClassifier
	tokens     ports.TokenStore
	central    ports.CentralSessionStore
	local      ports.LocalSessionStore
	directory  ports.UserDirectory
	cfg        config.SSOConfig
	logger     *slog.Logger

	steps map[sso.StepName]Step
}

// AutologinServiceOptions groups dependencies for AutologinService.
type AutologinServiceOptions struct {
	Classifier *DomainClassifier
	Tokens     ports.TokenStore
	Central    ports.CentralSessionStore
	Local      ports.LocalSessionStore
	Directory  ports.UserDirectory
	Config     config.SSOConfig
	Logger     *slog.Logger
}

// NewAutologinService constructs the service and its step table.
func NewAutologinService(opts AutologinServiceOptions) *AutologinService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &AutologinService{
		classifier: opts.Classifier,
		tokens:     opts.Tokens,
		central:    opts.Central,
		local:      opts.Local,
		directory:  opts.Directory,
		cfg:        opts.Config,
		logger:     logger,
	}

	s.steps = map[sso.StepName]Step{
		sso.StepStart:           {Name: sso.StepStart, Run: s.start},
		sso.StepCheckLoggedIn:   {Name: sso.StepCheckLoggedIn, Run: s.checkLoggedIn},
		sso.StepCreateSession:   {Name: sso.StepCreateSession, Run: s.createSession},
		sso.StepValidateSession: {Name: sso.StepValidateSession, Run: s.validateSession},
		sso.StepSetCookies:      {Name: sso.StepSetCookies, Run: s.setCookies},
		sso.StepRefreshCookies:  {Name: sso.StepRefreshCookies, Run: s.refreshCookies},
		sso.StepDeleteCookies:   {Name: sso.StepDeleteCookies, Run: s.deleteCookies},
		sso.StepToolsList:       {Name: sso.StepToolsList, Run: s.toolsList},
	}
	return s
}

// HandlerFor returns the step registered under name.
func (s *AutologinService) HandlerFor(name sso.StepName) (Step, bool) {
	step, ok := s.steps[name]
	return step, ok
}

// threadCommon copies the query parameters every hop carries forward.
func threadCommon(q url.Values) url.Values {
	out := url.Values{}
	for _, k := range []string{paramType, paramFrom, paramUseSUL3, paramReturnURLToken} {
		if v := q.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}

func generationFromQuery(q url.Values) sso.Generation {
	if q.Get(paramUseSUL3) == "1" {
		return sso.GenSUL3
	}
	return sso.GenSUL2
}

func stepPath(name sso.StepName) string {
	return AutologinBasePath + string(name)
}

// start begins the chain on the local wiki. For pixel/script/json chains it
// writes nothing and varies by cookie only, so CDN caching is safe; redirect
// chains park a single-use return URL and opt out of caching.
func (s *AutologinService) start(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if err := s.classifier.AssertLocal(req.Host); err != nil {
		return nil, err
	}
	wikiID, ok := s.classifier.WikiIDOf(req.Host)
	if !ok {
		return nil, Protocol(sso.StatusWikiNotFound)
	}

	params := threadCommon(req.Query)
	params.Set(paramWikiID, wikiID)

	// For redirect-type chains, park the return URL server-side now so only
	// a short opaque token travels through the remaining hops. The minted
	// token is single-use, so the response carrying it must never be served
	// from a shared cache.
	cacheable := true
	if sso.ParseResponseType(req.Query.Get(paramType)) == sso.TypeRedirect &&
		params.Get(paramReturnURLToken) == "" {
		returnURL, err := s.localReturnURL(wikiID, req.Query)
		if err != nil {
			return nil, err
		}
		id, err := s.tokens.Put(ctx, sso.PurposeReturnURL,
			sso.TokenPayload{sso.PayloadReturnURL: returnURL}, s.cfg.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("park return url: %w", err)
		}
		params.Set(paramReturnURLToken, id)
		cacheable = false
	}

	gen := generationFromQuery(req.Query)
	return &StepResult{
		Status:      sso.StatusOK,
		RedirectURL: s.classifier.CentralURL(gen, stepPath(sso.StepCheckLoggedIn), params),
		Cacheable:   cacheable,
	}, nil
}

// localReturnURL validates returnto against open redirects: only a relative
// path on the originating wiki is accepted.
func (s *AutologinService) localReturnURL(wikiID string, q url.Values) (string, error) {
	returnTo := q.Get(paramReturnTo)
	if returnTo == "" {
		returnTo = "/"
	}
	u, err := url.Parse(returnTo)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "", Protocol(sso.StatusInvalidParams)
	}

	var params url.Values
	if rq := q.Get(paramReturnToQuery); rq != "" {
		if params, err = url.ParseQuery(rq); err != nil {
			return "", Protocol(sso.StatusInvalidParams)
		}
	}
	return s.classifier.ResolveWikiURL(wikiID, u.Path, params)
}

// checkLoggedIn decides, on a central domain, whether the browser holds an
// authenticated central session. An anonymous answer retries exactly once
// against the other central generation; the retry flag baked into that
// redirect is what guarantees termination.
func (s *AutologinService) checkLoggedIn(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if err := s.classifier.AssertCentral(req.Host); err != nil {
		return nil, err
	}

	wikiID := req.Query.Get(paramWikiID)
	if _, err := s.classifier.ResolveWikiURL(wikiID, "/", nil); err != nil {
		return nil, err
	}

	central, authed := s.centralSession(ctx, req)
	if !authed {
		if req.Query.Get(paramRetry) == "1" {
			// Second (fallback) attempt also anonymous: a genuine
			// not-logged-in, a first-class terminal state.
			return &StepResult{
				Status:    sso.StatusNotLoggedIn,
				Script:    anonymousNotice,
				Cacheable: true,
			}, nil
		}

		params := threadCommon(req.Query)
		params.Set(paramWikiID, wikiID)
		params.Set(paramRetry, "1")
		gen := s.classifier.GenerationOf(req.Host).Other()
		return &StepResult{
			Status:      sso.StatusOK,
			RedirectURL: s.classifier.CentralURL(gen, stepPath(sso.StepCheckLoggedIn), params),
			Cacheable:   true,
		}, nil
	}

	// Per-user data from here on; the rest of the chain is uncacheable.
	user, err := s.directory.Lookup(ctx, central.UserName)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			// The central session names an account the directory does not
			// know. Retrying cannot fix that.
			return nil, apperrors.FatalInconsistencyf("central session user %q missing from directory", central.UserName)
		}
		return nil, err
	}
	if !user.CanAuthenticate() {
		return nil, Protocol(sso.StatusNotLoggedIn)
	}

	attached, err := s.directory.IsAttached(ctx, central.UserName, wikiID)
	if err != nil {
		return nil, err
	}
	if !attached {
		return nil, apperrors.FatalInconsistencyf("user %q exists but is not attached to %q", central.UserName, wikiID)
	}

	payload := sso.TokenPayload{}
	payload.SetInt64(sso.PayloadUserID, user.ID)
	tokenID, err := s.tokens.Put(ctx, sso.PurposeCheckLoggedIn, payload, s.cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue login token: %w", err)
	}

	params := threadCommon(req.Query)
	params.Set(paramToken, tokenID)
	next, err := s.classifier.ResolveWikiURL(wikiID, stepPath(sso.StepCreateSession), params)
	if err != nil {
		return nil, err
	}
	return &StepResult{Status: sso.StatusOK, RedirectURL: next}, nil
}

// createSession consumes the checkLoggedIn token on the local wiki, persists
// an anonymous session stub, and issues the second token. The second token's
// ID is stored inside the local session as well as the redirect so that the
// final hop back needs nothing from its URL.
func (s *AutologinService) createSession(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if err := s.classifier.AssertLocal(req.Host); err != nil {
		return nil, err
	}
	wikiID, ok := s.classifier.WikiIDOf(req.Host)
	if !ok {
		return nil, Protocol(sso.StatusWikiNotFound)
	}

	payload, err := s.tokens.TakeOnce(ctx, req.Query.Get(paramToken), sso.PurposeCheckLoggedIn)
	if err != nil {
		return nil, err
	}
	centralUserID := payload.Int64(sso.PayloadUserID)
	if centralUserID == 0 {
		return nil, Protocol(sso.StatusInvalidParams)
	}

	sess, err := s.localSession(ctx, wikiID, req.LocalSessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsAnonymous() {
		return nil, Protocol(sso.StatusAlreadyLogged)
	}

	second := sso.TokenPayload{sso.PayloadWikiID: wikiID}
	second.SetInt64(sso.PayloadUserID, centralUserID)
	secondID, err := s.tokens.Put(ctx, sso.PurposeValidateSession, second, s.cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	mut := BeginMutation(s.local, sess)
	mut.SetData(sso.DataKeyAutologinToken, secondID)
	if err := mut.Commit(ctx); err != nil {
		return nil, fmt.Errorf("persist session stub: %w", err)
	}

	params := threadCommon(req.Query)
	params.Set(paramWikiID, wikiID)
	params.Set(paramToken, secondID)
	gen := generationFromQuery(req.Query)
	return &StepResult{
		Status:            sso.StatusOK,
		RedirectURL:       s.classifier.CentralURL(gen, stepPath(sso.StepValidateSession), params),
		SetLocalSessionID: sess.ID,
	}, nil
}

// validateSession re-checks the central session against the second token and
// enriches the token in place with everything setCookies needs. The redirect
// it emits carries no token value; the receiver already holds the ID in its
// own session.
func (s *AutologinService) validateSession(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if err := s.classifier.AssertCentral(req.Host); err != nil {
		return nil, err
	}

	central, authed := s.centralSession(ctx, req)
	if !authed {
		return nil, Protocol(sso.StatusNotLoggedIn)
	}

	tokenID := req.Query.Get(paramToken)
	payload, err := s.tokens.TakeOnce(ctx, tokenID, sso.PurposeValidateSession)
	if err != nil {
		return nil, err
	}

	wikiID := req.Query.Get(paramWikiID)
	if payload[sso.PayloadWikiID] != wikiID {
		return nil, Protocol(sso.StatusInvalidParams)
	}
	if payload.Int64(sso.PayloadUserID) != central.UserID {
		return nil, Protocol(sso.StatusInvalidParams)
	}

	var (
		user      sso.User
		authToken string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var lookupErr error
		user, lookupErr = s.directory.Lookup(gctx, central.UserName)
		return lookupErr
	})
	g.Go(func() error {
		var tokenErr error
		authToken, tokenErr = s.directory.GetAuthToken(gctx, central.UserName)
		return tokenErr
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperrors.FatalInconsistencyf("central session user %q missing from directory", central.UserName)
		}
		return nil, err
	}
	if !user.CanAuthenticate() {
		return nil, Protocol(sso.StatusNotLoggedIn)
	}

	enriched := sso.TokenPayload{
		sso.PayloadUserName:  central.UserName,
		sso.PayloadWikiID:    wikiID,
		sso.PayloadAuthToken: authToken,
		sso.PayloadSessionID: central.ID,
	}
	enriched.SetInt64(sso.PayloadUserID, central.UserID)
	enriched.SetBool(sso.PayloadRemember, central.Remember)
	if err := s.tokens.Reissue(ctx, tokenID, sso.PurposeValidateSession, enriched, s.cfg.TokenTTL); err != nil {
		return nil, fmt.Errorf("enrich session token: %w", err)
	}

	params := threadCommon(req.Query)
	next, err := s.classifier.ResolveWikiURL(wikiID, stepPath(sso.StepSetCookies), params)
	if err != nil {
		return nil, err
	}
	return &StepResult{Status: sso.StatusOK, RedirectURL: next}, nil
}

// setCookies is the terminal step: it redeems the enriched token referenced by
// its own session, verifies the auth token against the directory, and
// promotes the local session. Even a leaked validateSession→setCookies URL
// grants nothing without the victim's local session cookie.
func (s *AutologinService) setCookies(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if err := s.classifier.AssertLocal(req.Host); err != nil {
		return nil, err
	}
	wikiID, ok := s.classifier.WikiIDOf(req.Host)
	if !ok {
		return nil, Protocol(sso.StatusWikiNotFound)
	}

	sess, err := s.local.Get(ctx, wikiID, req.LocalSessionID)
	if err != nil {
		return nil, err
	}
	tokenID := sess.GetData(sso.DataKeyAutologinToken)
	if tokenID == "" {
		return nil, Protocol(sso.StatusLostSession)
	}

	payload, err := s.tokens.TakeOnce(ctx, tokenID, sso.PurposeValidateSession)
	if err != nil {
		return nil, err
	}
	userName := payload[sso.PayloadUserName]
	if userName == "" || payload[sso.PayloadWikiID] != wikiID {
		// Token was never enriched by validateSession, or it belongs to a
		// different wiki's chain.
		return nil, Protocol(sso.StatusLostSession)
	}

	authed, err := s.directory.AuthenticateWithToken(ctx, userName, payload[sso.PayloadAuthToken])
	if err != nil {
		return nil, err
	}
	if !authed {
		return nil, Protocol(sso.StatusBadCredentials)
	}

	remember := payload.Bool(sso.PayloadRemember)
	mut := BeginMutation(s.local, sess)
	mut.SetUser(userName, payload.Int64(sso.PayloadUserID))
	mut.SetRememberUser(remember)
	mut.DeleteData(sso.DataKeyAutologinToken)
	mut.SetData(sso.PayloadSessionID, payload[sso.PayloadSessionID])
	mut.SetData(sso.DataKeyEdgeLoginDue, "1")
	if remember {
		mut.SetExpiry(time.Now().Add(s.cfg.RememberTTL))
	}
	if err := mut.Commit(ctx); err != nil {
		return nil, fmt.Errorf("promote session: %w", err)
	}

	result := &StepResult{
		Status:            sso.StatusOK,
		UserName:          userName,
		SetLocalSessionID: sess.ID,
		Remember:          remember,
	}
	if sso.ParseResponseType(req.Query.Get(paramType)) == sso.TypeRedirect {
		result.ReturnURL = s.ResolveReturnURL(ctx, req.Query)
	}
	return result, nil
}

// refreshCookies re-applies the "remember me" preference to an already-valid
// local session. Detached from the chain; independently domain-asserted.
func (s *AutologinService) refreshCookies(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if err := s.classifier.AssertLocal(req.Host); err != nil {
		return nil, err
	}
	wikiID, ok := s.classifier.WikiIDOf(req.Host)
	if !ok {
		return nil, Protocol(sso.StatusWikiNotFound)
	}

	sess, err := s.local.Get(ctx, wikiID, req.LocalSessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsAnonymous() {
		return nil, Protocol(sso.StatusLostSession)
	}

	mut := BeginMutation(s.local, sess)
	ttl := s.cfg.SessionTTL
	if sess.Remember {
		ttl = s.cfg.RememberTTL
	}
	mut.SetExpiry(time.Now().Add(ttl))
	if err := mut.Commit(ctx); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	return &StepResult{
		Status:            sso.StatusOK,
		UserName:          sess.UserName,
		SetLocalSessionID: sess.ID,
		Remember:          sess.Remember,
	}, nil
}

// deleteCookies clears local SSO cookies, but only once the local session is
// already anonymous; it refuses to log anyone out.
func (s *AutologinService) deleteCookies(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if err := s.classifier.AssertLocal(req.Host); err != nil {
		return nil, err
	}
	wikiID, ok := s.classifier.WikiIDOf(req.Host)
	if !ok {
		return nil, Protocol(sso.StatusWikiNotFound)
	}

	if req.LocalSessionID != "" {
		sess, err := s.local.Get(ctx, wikiID, req.LocalSessionID)
		if err == nil && !sess.IsAnonymous() {
			return nil, Protocol(sso.StatusAlreadyLogged)
		}
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			if delErr := s.local.Delete(ctx, wikiID, sess.ID); delErr != nil {
				return nil, delErr
			}
		}
	}

	return &StepResult{Status: sso.StatusOK, ClearLocalSession: true}, nil
}

// toolsList returns the personalized toolbar fragment for a centrally
// authenticated user, consumed by frontends as {"toolslist": "<html>"}.
func (s *AutologinService) toolsList(ctx context.Context, req *StepRequest) (*StepResult, error) {
	if err := s.classifier.AssertCentral(req.Host); err != nil {
		return nil, err
	}

	central, authed := s.centralSession(ctx, req)
	if !authed {
		return nil, Protocol(sso.StatusNotLoggedIn)
	}

	name := html.EscapeString(central.UserName)
	fragment := fmt.Sprintf(
		`<ul class="sso-tools"><li class="sso-username">%s</li><li><a href="%s">Log out</a></li></ul>`,
		name, LoginBasePath+"logout")
	return &StepResult{Status: sso.StatusOK, UserName: central.UserName, ToolsList: fragment}, nil
}

// ResolveReturnURL redeems the parked return URL referenced by the
// returnUrlToken parameter. Consumption is destructive like every other token;
// a missing token simply yields no redirect target.
func (s *AutologinService) ResolveReturnURL(ctx context.Context, q url.Values) string {
	id := q.Get(paramReturnURLToken)
	if id == "" {
		return ""
	}
	payload, err := s.tokens.TakeOnce(ctx, id, sso.PurposeReturnURL)
	if err != nil {
		return ""
	}
	return payload[sso.PayloadReturnURL]
}

// centralSession loads the central session named by the request's central
// cookie. Stubs never count as authenticated.
func (s *AutologinService) centralSession(ctx context.Context, req *StepRequest) (sso.CentralSession, bool) {
	if req.CentralSessionID == "" {
		return sso.CentralSession{}, false
	}
	central, err := s.central.Get(ctx, req.CentralSessionID)
	if err != nil {
		return sso.CentralSession{}, false
	}
	return central, central.IsAuthenticated()
}

// localSession loads the request's local session, or creates a fresh
// anonymous one when the cookie is absent or stale.
func (s *AutologinService) localSession(ctx context.Context, wikiID, id string) (sso.LocalSession, error) {
	if id != "" {
		sess, err := s.local.Get(ctx, wikiID, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return sso.LocalSession{}, err
		}
	}
	return newLocalSession(wikiID, s.cfg.SessionTTL), nil
}
