package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wikimesh/ssohub/internal/adapters/memory"
	"github.com/wikimesh/ssohub/internal/domain/sso"
	"github.com/wikimesh/ssohub/internal/mocks"
	"github.com/wikimesh/ssohub/internal/testutil"
)

type autologinFixture struct {
	svc       *AutologinService
	tokens    *memory.TokenStore
	central   *memory.CentralSessionStore
	local     *memory.LocalSessionStore
	directory *mocks.MockUserDirectory
}

func newAutologinFixture(t *testing.T) *autologinFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &autologinFixture{
		tokens:    memory.NewTokenStore(),
		central:   memory.NewCentralSessionStore(),
		local:     memory.NewLocalSessionStore(),
		directory: mocks.NewMockUserDirectory(ctrl),
	}
	f.svc = NewAutologinService(AutologinServiceOptions{
		Classifier: NewDomainClassifier(testutil.TestSSOConfig(), "https"),
		Tokens:     f.tokens,
		Central:    f.central,
		Local:      f.local,
		Directory:  f.directory,
		Config:     testutil.TestSSOConfig(),
	})
	return f
}

// loggedInCentral seeds an authenticated central session and returns its ID.
func (f *autologinFixture) loggedInCentral(t *testing.T, name string, userID int64) string {
	t.Helper()
	sess := sso.CentralSession{
		ID:        sso.NewTokenID(),
		UserName:  name,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, f.central.Save(context.Background(), sess))
	return sess.ID
}

// run executes a step and requires it to be registered.
func (f *autologinFixture) run(t *testing.T, name sso.StepName, req *StepRequest) (*StepResult, error) {
	t.Helper()
	step, ok := f.svc.HandlerFor(name)
	require.True(t, ok, "step %s not registered", name)
	return step.Run(context.Background(), req)
}

// followRedirect re-derives the next StepRequest from a redirect URL,
// carrying the given cookies, the way a browser would.
func followRedirect(t *testing.T, redirectURL, localSessionID, centralSessionID string) (*StepRequest, sso.StepName) {
	t.Helper()
	u, err := url.Parse(redirectURL)
	require.NoError(t, err)

	name, ok := sso.ParseStep(u.Path[len("/sso/autologin/"):])
	require.True(t, ok, "redirect target %s is not a step", u.Path)
	return &StepRequest{
		Host:             u.Host,
		Query:            u.Query(),
		LocalSessionID:   localSessionID,
		CentralSessionID: centralSessionID,
	}, name
}

func TestAutologin_FullChain(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)
	user := sso.User{ID: 7, Name: "Alice"}
	centralID := f.loggedInCentral(t, "Alice", 7)

	f.directory.EXPECT().Lookup(gomock.Any(), "Alice").Return(user, nil).Times(2)
	f.directory.EXPECT().IsAttached(gomock.Any(), "Alice", "alphawiki").Return(true, nil)
	f.directory.EXPECT().GetAuthToken(gomock.Any(), "Alice").Return("dir-token", nil)
	f.directory.EXPECT().AuthenticateWithToken(gomock.Any(), "Alice", "dir-token").Return(true, nil)

	// start on the local wiki.
	res, err := f.run(t, sso.StepStart, &StepRequest{
		Host:  "alpha.example",
		Query: url.Values{"type": {"script"}, "from": {"edge-pixel"}},
	})
	require.NoError(t, err)
	assert.True(t, res.Cacheable)
	assert.Contains(t, res.RedirectURL, "https://login.sul2.example/sso/autologin/checkLoggedIn")
	assert.Contains(t, res.RedirectURL, "wikiid=alphawiki")

	// checkLoggedIn on the central domain.
	req, name := followRedirect(t, res.RedirectURL, "", centralID)
	require.Equal(t, sso.StepCheckLoggedIn, name)
	res, err = f.run(t, name, req)
	require.NoError(t, err)
	assert.Contains(t, res.RedirectURL, "https://alpha.example/sso/autologin/createSession")
	assert.Contains(t, res.RedirectURL, "token=")

	// createSession back on the local wiki; no local cookie yet.
	req, name = followRedirect(t, res.RedirectURL, "", centralID)
	require.Equal(t, sso.StepCreateSession, name)
	res, err = f.run(t, name, req)
	require.NoError(t, err)
	require.NotEmpty(t, res.SetLocalSessionID)
	localID := res.SetLocalSessionID
	assert.Contains(t, res.RedirectURL, "https://login.sul2.example/sso/autologin/validateSession")

	// validateSession on the central domain.
	req, name = followRedirect(t, res.RedirectURL, localID, centralID)
	require.Equal(t, sso.StepValidateSession, name)
	res, err = f.run(t, name, req)
	require.NoError(t, err)
	assert.Contains(t, res.RedirectURL, "https://alpha.example/sso/autologin/setCookies")

	// The final hop must not carry the session token in its URL.
	nextURL, parseErr := url.Parse(res.RedirectURL)
	require.NoError(t, parseErr)
	assert.Empty(t, nextURL.Query().Get("token"),
		"validateSession redirect must not expose the second token")

	// setCookies terminal on the local wiki, keyed by the session cookie.
	req, name = followRedirect(t, res.RedirectURL, localID, centralID)
	require.Equal(t, sso.StepSetCookies, name)
	res, err = f.run(t, name, req)
	require.NoError(t, err)
	assert.Equal(t, sso.StatusOK, res.Status)
	assert.Equal(t, "Alice", res.UserName)

	// The local session is now a full login.
	sess, err := f.local.Get(context.Background(), "alphawiki", localID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", sess.UserName)
	assert.Equal(t, int64(7), sess.UserID)
	assert.Empty(t, sess.GetData(sso.DataKeyAutologinToken), "consumed token reference must be gone")
	assert.Equal(t, "1", sess.GetData(sso.DataKeyEdgeLoginDue))

	// Replaying the terminal hop fails closed: the token reference is gone.
	_, err = f.run(t, sso.StepSetCookies, req)
	assert.Equal(t, sso.StatusLostSession, StatusOf(err))
}

func TestAutologin_CheckLoggedIn_FallbackBounded(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)

	// Anonymous on SUL2: one retry against the other generation.
	res, err := f.run(t, sso.StepCheckLoggedIn, &StepRequest{
		Host:  "login.sul2.example",
		Query: url.Values{"wikiid": {"alphawiki"}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.RedirectURL, "login.sul3.example")
	assert.Contains(t, res.RedirectURL, "retry=1")

	// Anonymous again with the retry flag: terminal, no further bouncing.
	req, name := followRedirect(t, res.RedirectURL, "", "")
	require.Equal(t, sso.StepCheckLoggedIn, name)
	res, err = f.run(t, name, req)
	require.NoError(t, err)
	assert.Equal(t, sso.StatusNotLoggedIn, res.Status)
	assert.Empty(t, res.RedirectURL)
	assert.NotEmpty(t, res.Script)
}

func TestAutologin_CheckLoggedIn_LockedUserNeverProceeds(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)
	centralID := f.loggedInCentral(t, "Eve", 13)

	f.directory.EXPECT().Lookup(gomock.Any(), "Eve").Return(sso.User{ID: 13, Name: "Eve", Locked: true}, nil)

	_, err := f.run(t, sso.StepCheckLoggedIn, &StepRequest{
		Host:             "login.sul2.example",
		Query:            url.Values{"wikiid": {"alphawiki"}},
		CentralSessionID: centralID,
	})
	assert.Equal(t, sso.StatusNotLoggedIn, StatusOf(err))
}

func TestAutologin_CheckLoggedIn_UnattachedIsInconsistent(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)
	centralID := f.loggedInCentral(t, "Alice", 7)

	f.directory.EXPECT().Lookup(gomock.Any(), "Alice").Return(sso.User{ID: 7, Name: "Alice"}, nil)
	f.directory.EXPECT().IsAttached(gomock.Any(), "Alice", "alphawiki").Return(false, nil)

	_, err := f.run(t, sso.StepCheckLoggedIn, &StepRequest{
		Host:             "login.sul2.example",
		Query:            url.Values{"wikiid": {"alphawiki"}},
		CentralSessionID: centralID,
	})
	assert.Equal(t, sso.StatusInconsistency, StatusOf(err))
}

func TestAutologin_WrongDomainRejectedBeforeStores(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)

	// A token that must survive the misrouted attempt untouched.
	id, err := f.tokens.Put(context.Background(), sso.PurposeCheckLoggedIn,
		sso.TokenPayload{sso.PayloadUserID: "7"}, time.Minute)
	require.NoError(t, err)

	// createSession belongs on a local wiki; running it on the central
	// domain fails before any token is consumed.
	_, err = f.run(t, sso.StepCreateSession, &StepRequest{
		Host:  "login.sul2.example",
		Query: url.Values{"token": {id}},
	})
	assert.Equal(t, sso.StatusNotLocal, StatusOf(err))

	// The domain assertion ran first: the token is still redeemable.
	_, err = f.tokens.TakeOnce(context.Background(), id, sso.PurposeCheckLoggedIn)
	assert.NoError(t, err)
}

func TestAutologin_CreateSession_ConsumedTokenIsLostSession(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)

	_, err := f.run(t, sso.StepCreateSession, &StepRequest{
		Host:  "alpha.example",
		Query: url.Values{"token": {"nonexistent"}},
	})
	assert.Equal(t, sso.StatusLostSession, StatusOf(err))
}

func TestAutologin_CreateSession_RefusesLoggedInSession(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)
	ctx := context.Background()

	payload := sso.TokenPayload{}
	payload.SetInt64(sso.PayloadUserID, 7)
	id, err := f.tokens.Put(ctx, sso.PurposeCheckLoggedIn, payload, time.Minute)
	require.NoError(t, err)

	existing := sso.LocalSession{
		ID: "s1", WikiID: "alphawiki", UserName: "Bob", UserID: 2,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, f.local.Save(ctx, existing))

	_, err = f.run(t, sso.StepCreateSession, &StepRequest{
		Host:           "alpha.example",
		Query:          url.Values{"token": {id}},
		LocalSessionID: "s1",
	})
	assert.Equal(t, sso.StatusAlreadyLogged, StatusOf(err))
}

func TestAutologin_ValidateSession_WikiMismatch(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)
	ctx := context.Background()
	centralID := f.loggedInCentral(t, "Alice", 7)

	second := sso.TokenPayload{sso.PayloadWikiID: "alphawiki"}
	second.SetInt64(sso.PayloadUserID, 7)
	id, err := f.tokens.Put(ctx, sso.PurposeValidateSession, second, time.Minute)
	require.NoError(t, err)

	_, err = f.run(t, sso.StepValidateSession, &StepRequest{
		Host:             "login.sul2.example",
		Query:            url.Values{"token": {id}, "wikiid": {"betawiki"}},
		CentralSessionID: centralID,
	})
	assert.Equal(t, sso.StatusInvalidParams, StatusOf(err))
}

func TestAutologin_ValidateSession_UserIDMismatch(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)
	ctx := context.Background()
	centralID := f.loggedInCentral(t, "Alice", 7)

	second := sso.TokenPayload{sso.PayloadWikiID: "alphawiki"}
	second.SetInt64(sso.PayloadUserID, 999)
	id, err := f.tokens.Put(ctx, sso.PurposeValidateSession, second, time.Minute)
	require.NoError(t, err)

	_, err = f.run(t, sso.StepValidateSession, &StepRequest{
		Host:             "login.sul2.example",
		Query:            url.Values{"token": {id}, "wikiid": {"alphawiki"}},
		CentralSessionID: centralID,
	})
	assert.Equal(t, sso.StatusInvalidParams, StatusOf(err))
}

func TestAutologin_Start_RejectsAbsoluteReturnTo(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)

	_, err := f.run(t, sso.StepStart, &StepRequest{
		Host: "alpha.example",
		Query: url.Values{
			"type":     {"redirect"},
			"returnto": {"https://evil.example/phish"},
		},
	})
	assert.Equal(t, sso.StatusInvalidParams, StatusOf(err))
}

func TestAutologin_Start_ParksReturnURLToken(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)

	res, err := f.run(t, sso.StepStart, &StepRequest{
		Host: "alpha.example",
		Query: url.Values{
			"type":          {"redirect"},
			"returnto":      {"/wiki/Main_Page"},
			"returntoquery": {"action=view"},
		},
	})
	require.NoError(t, err)

	assert.False(t, res.Cacheable, "a response carrying a single-use token must not be shared")

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	tokenID := u.Query().Get("returnUrlToken")
	require.NotEmpty(t, tokenID)

	resolved := f.svc.ResolveReturnURL(context.Background(), u.Query())
	assert.Equal(t, "https://alpha.example/wiki/Main_Page?action=view", resolved)

	// Resolution is destructive, like every other token redemption.
	assert.Empty(t, f.svc.ResolveReturnURL(context.Background(), u.Query()))
}

func TestAutologin_RefreshCookies_AnonymousIsLostSession(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)

	_, err := f.run(t, sso.StepRefreshCookies, &StepRequest{
		Host: "alpha.example",
	})
	assert.Equal(t, sso.StatusLostSession, StatusOf(err))
}

func TestAutologin_DeleteCookies_RefusesToLogOut(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)
	ctx := context.Background()

	existing := sso.LocalSession{
		ID: "s1", WikiID: "alphawiki", UserName: "Alice", UserID: 7,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, f.local.Save(ctx, existing))

	_, err := f.run(t, sso.StepDeleteCookies, &StepRequest{
		Host:           "alpha.example",
		LocalSessionID: "s1",
	})
	assert.Equal(t, sso.StatusAlreadyLogged, StatusOf(err))

	// Anonymous session: cleanup proceeds.
	anon := sso.LocalSession{ID: "s2", WikiID: "alphawiki", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, f.local.Save(ctx, anon))

	res, err := f.run(t, sso.StepDeleteCookies, &StepRequest{
		Host:           "alpha.example",
		LocalSessionID: "s2",
	})
	require.NoError(t, err)
	assert.True(t, res.ClearLocalSession)
}

func TestAutologin_ToolsList(t *testing.T) {
	t.Parallel()
	f := newAutologinFixture(t)
	centralID := f.loggedInCentral(t, "Alice <script>", 7)

	res, err := f.run(t, sso.StepToolsList, &StepRequest{
		Host:             "login.sul2.example",
		CentralSessionID: centralID,
	})
	require.NoError(t, err)
	assert.Contains(t, res.ToolsList, "Alice &lt;script&gt;")
	assert.NotContains(t, res.ToolsList, "<script>")

	// Anonymous browsers get nothing personalized.
	_, err = f.run(t, sso.StepToolsList, &StepRequest{Host: "login.sul2.example"})
	assert.Equal(t, sso.StatusNotLoggedIn, StatusOf(err))
}
