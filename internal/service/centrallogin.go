package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/wikimesh/ssohub/config"
	"github.com/wikimesh/ssohub/internal/domain/sso"
	apperrors "github.com/wikimesh/ssohub/internal/errors"
	"github.com/wikimesh/ssohub/internal/ports"
)

// CentralLoginService completes a freshly-performed interactive login on the
// central domain and propagates it back to the wiki where the login form was
// submitted. It runs once per interactive login and populates the central
// session that the autologin machine later consumes.
type CentralLoginService struct {
	classifier *DomainClassifier
	tokens     ports.TokenStore
	central    ports.CentralSessionStore
	local      ports.LocalSessionStore
	directory  ports.UserDirectory
	cfg        config.SSOConfig
	logger     *slog.Logger
}

// CentralLoginServiceOptions groups dependencies for CentralLoginService.
type CentralLoginServiceOptions struct {
	Classifier *DomainClassifier
	Tokens     ports.TokenStore
	Central    ports.CentralSessionStore
	Local      ports.LocalSessionStore
	Directory  ports.UserDirectory
	Config     config.SSOConfig
	Logger     *slog.Logger
}

// NewCentralLoginService constructs a new CentralLoginService.
func NewCentralLoginService(opts CentralLoginServiceOptions) *CentralLoginService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CentralLoginService{
		classifier: opts.Classifier,
		tokens:     opts.Tokens,
		central:    opts.Central,
		local:      opts.Local,
		directory:  opts.Directory,
		cfg:        opts.Config,
		logger:     logger,
	}
}

// BeginLoginInput is what the login form's backend hands over after the user
// submitted credentials on a local wiki.
type BeginLoginInput struct {
	WikiID         string
	LocalSessionID string
	UserName       string
	AuthToken      string
	Remember       bool
	ReturnTo       string
}

// BeginLoginResult carries the redirect the browser must follow next.
type BeginLoginResult struct {
	RedirectURL    string
	LocalSessionID string
}

// BeginLogin validates the submitted credential, mints the per-attempt secret,
// stashes the attempt in the local session, and issues the login-start token.
// The secret never appears in any token visible before this point, so only the
// genuine login flow can later produce a matching pair.
func (s *CentralLoginService) BeginLogin(ctx context.Context, in BeginLoginInput) (*BeginLoginResult, error) {
	if in.WikiID == "" {
		// The login form's own wiki is the default origin.
		in.WikiID = s.cfg.LoginWikiID
	}
	if in.UserName == "" || in.WikiID == "" {
		return nil, Protocol(sso.StatusInvalidParams)
	}

	authed, err := s.directory.AuthenticateWithToken(ctx, in.UserName, in.AuthToken)
	if err != nil {
		return nil, err
	}
	if !authed {
		return nil, Protocol(sso.StatusBadCredentials)
	}

	user, err := s.directory.Lookup(ctx, in.UserName)
	if err != nil {
		return nil, err
	}

	returnURL, err := s.validatedReturnURL(in.WikiID, in.ReturnTo)
	if err != nil {
		return nil, err
	}

	sess, err := s.localSession(ctx, in.WikiID, in.LocalSessionID)
	if err != nil {
		return nil, err
	}

	secret := sso.NewLoginSecret()
	mut := BeginMutation(s.local, sess)
	mut.SetData(sso.DataKeyLoginAttempt, encodeLoginAttempt(sso.LoginAttempt{
		Secret:    secret,
		ReturnURL: returnURL,
		Remember:  in.Remember,
	}))
	if err := mut.Commit(ctx); err != nil {
		return nil, fmt.Errorf("stash login attempt: %w", err)
	}

	payload := sso.TokenPayload{
		sso.PayloadUserName: in.UserName,
		sso.PayloadSecret:   secret,
		sso.PayloadWikiID:   in.WikiID,
	}
	payload.SetInt64(sso.PayloadUserID, user.ID)
	payload.SetBool(sso.PayloadRemember, in.Remember)
	tokenID, err := s.tokens.Put(ctx, sso.PurposeLoginStart, payload, s.cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue login token: %w", err)
	}

	params := url.Values{}
	params.Set(paramToken, tokenID)
	return &BeginLoginResult{
		RedirectURL:    s.classifier.CentralURL(sso.GenSUL2, LoginBasePath+"start", params),
		LocalSessionID: sess.ID,
	}, nil
}

// LoginRequest is the per-request view for the start and complete steps.
type LoginRequest struct {
	Host             string
	Query            url.Values
	LocalSessionID   string
	CentralSessionID string
}

// LoginResult mirrors StepResult for the login endpoints.
type LoginResult struct {
	Status              sso.Status
	RedirectURL         string
	UserName            string
	SetLocalSessionID   string
	SetCentralSessionID string
	Remember            bool
}

// Start runs on the central domain. It consumes the login-form token,
// re-validates the identity (retrying once against the primary if a replica
// lagged), reuses an existing matching central session rather than stomping on
// it, or creates a stub, and bounces back to the originating wiki.
func (s *CentralLoginService) Start(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	if err := s.classifier.AssertCentral(req.Host); err != nil {
		return nil, err
	}

	payload, err := s.tokens.TakeOnce(ctx, req.Query.Get(paramToken), sso.PurposeLoginStart)
	if err != nil {
		return nil, err
	}
	userName := payload[sso.PayloadUserName]
	wikiID := payload[sso.PayloadWikiID]
	secret := payload[sso.PayloadSecret]
	if userName == "" || wikiID == "" || secret == "" {
		return nil, Protocol(sso.StatusInvalidParams)
	}

	user, err := s.lookupWithPrimaryRetry(ctx, userName)
	if err != nil {
		return nil, err
	}
	if user.ID != payload.Int64(sso.PayloadUserID) || !user.CanAuthenticate() {
		return nil, Protocol(sso.StatusInvalidParams)
	}

	attached, err := s.directory.IsAttached(ctx, userName, wikiID)
	if err != nil {
		return nil, err
	}
	if !attached {
		return nil, apperrors.FatalInconsistencyf("user %q exists but is not attached to %q", userName, wikiID)
	}

	central, err := s.usableOrStubSession(ctx, req.CentralSessionID, user, payload.Bool(sso.PayloadRemember))
	if err != nil {
		return nil, err
	}

	completion := sso.TokenPayload{
		sso.PayloadSessionID: central.ID,
		sso.PayloadSecret:    secret,
	}
	completionID, err := s.tokens.Put(ctx, sso.PurposeLoginComplete, completion, s.cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue completion token: %w", err)
	}

	params := url.Values{}
	params.Set(paramToken, completionID)
	next, err := s.classifier.ResolveWikiURL(wikiID, LoginBasePath+"complete", params)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Status:              sso.StatusOK,
		RedirectURL:         next,
		UserName:            userName,
		SetCentralSessionID: central.ID,
		Remember:            payload.Bool(sso.PayloadRemember),
	}, nil
}

// Complete runs on the wiki that started the login. The interactive login
// attempt is re-derived from the local session, never from the URL, and its
// secret must match the token's secret: only the browser that performed the
// original login holds the matching pair, which is what makes a crafted
// complete URL worthless to an attacker.
func (s *CentralLoginService) Complete(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
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
	attempt, ok := decodeLoginAttempt(sess.GetData(sso.DataKeyLoginAttempt))
	if !ok {
		return nil, Protocol(sso.StatusLostSession)
	}

	payload, err := s.tokens.TakeOnce(ctx, req.Query.Get(paramToken), sso.PurposeLoginComplete)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(attempt.Secret), []byte(payload[sso.PayloadSecret])) != 1 {
		return nil, Protocol(sso.StatusWrongAttempt)
	}

	central, err := s.central.Get(ctx, payload[sso.PayloadSessionID])
	if err != nil {
		return nil, err
	}

	switch {
	case central.IsStub():
		central.Promote(central.PendingName, central.UserID)
		central.Remember = attempt.Remember
		ttl := s.cfg.SessionTTL
		if attempt.Remember {
			ttl = s.cfg.RememberTTL
		}
		central.ExpiresAt = time.Now().Add(ttl)
		if err := s.central.Save(ctx, central); err != nil {
			return nil, fmt.Errorf("promote central session: %w", err)
		}
	case central.IsAuthenticated():
		// Already validated (a concurrent completion or a reused session);
		// nothing to promote.
	default:
		return nil, Protocol(sso.StatusLostSession)
	}

	mut := BeginMutation(s.local, sess)
	mut.SetUser(central.UserName, central.UserID)
	mut.SetRememberUser(attempt.Remember)
	mut.DeleteData(sso.DataKeyLoginAttempt)
	mut.SetData(sso.PayloadSessionID, central.ID)
	mut.SetData(sso.DataKeyEdgeLoginDue, "1")
	if attempt.Remember {
		mut.SetExpiry(time.Now().Add(s.cfg.RememberTTL))
	}
	if err := mut.Commit(ctx); err != nil {
		return nil, fmt.Errorf("promote local session: %w", err)
	}

	return &LoginResult{
		Status:            sso.StatusOK,
		RedirectURL:       attempt.ReturnURL,
		UserName:          central.UserName,
		SetLocalSessionID: sess.ID,
		Remember:          attempt.Remember,
	}, nil
}

// lookupWithPrimaryRetry resolves the identity, falling back to the primary
// exactly once when a replica has not caught up with a fresh account.
func (s *CentralLoginService) lookupWithPrimaryRetry(ctx context.Context, name string) (sso.User, error) {
	user, err := s.directory.Lookup(ctx, name)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return sso.User{}, err
	}

	s.logger.InfoContext(ctx, "user missing on replica, retrying against primary", "user", name)
	user, err = s.directory.LookupPrimary(ctx, name)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return sso.User{}, apperrors.FatalInconsistencyf("user %q vanished between login and completion", name)
		}
		return sso.User{}, err
	}
	return user, nil
}

// usableOrStubSession reuses an existing full central session for the same
// identity ("don't stomp on login") or creates a fresh stub.
func (s *CentralLoginService) usableOrStubSession(ctx context.Context, centralSessionID string, user sso.User, remember bool) (sso.CentralSession, error) {
	if centralSessionID != "" {
		existing, err := s.central.Get(ctx, centralSessionID)
		if err == nil && existing.IsAuthenticated() && existing.UserName == user.Name {
			return existing, nil
		}
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return sso.CentralSession{}, err
		}
	}

	stub := newCentralSession(user.Name, user.ID, s.cfg.SessionTTL)
	stub.Remember = remember
	if err := s.central.Save(ctx, stub); err != nil {
		return sso.CentralSession{}, fmt.Errorf("save stub session: %w", err)
	}
	return stub, nil
}

// validatedReturnURL accepts only a relative path on the originating wiki.
func (s *CentralLoginService) validatedReturnURL(wikiID, returnTo string) (string, error) {
	if returnTo == "" {
		returnTo = "/"
	}
	u, err := url.Parse(returnTo)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "", Protocol(sso.StatusInvalidParams)
	}
	return s.classifier.ResolveWikiURL(wikiID, u.Path, u.Query())
}

// localSession loads or creates the local session for the login form's wiki.
func (s *CentralLoginService) localSession(ctx context.Context, wikiID, id string) (sso.LocalSession, error) {
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
