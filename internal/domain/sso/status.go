package sso

// Status is the short machine-readable outcome of a handshake step, surfaced in
// the X-SSO-Status response header and in logs. Values are part of the wire
// contract consumed by the frontend script.
type Status string

const (
	StatusOK             Status = "success"
	StatusNotLoggedIn    Status = "Not centrally logged in"
	StatusLostSession    Status = "Lost session"
	StatusInvalidParams  Status = "Invalid parameters"
	StatusNotCentral     Status = "Not central wiki"
	StatusNotLocal       Status = "Is central wiki, should be local"
	StatusWikiNotFound   Status = "Specified local wiki not found"
	StatusWrongAttempt   Status = "Wrong login attempt"
	StatusAlreadyLogged  Status = "Already logged in"
	StatusInconsistency  Status = "Account state inconsistent"
	StatusBadCredentials Status = "Invalid credentials"
	StatusInternalError  Status = "Internal error"
)

// OK reports whether the status is the success outcome.
func (s Status) OK() bool { return s == StatusOK }

// String implements fmt.Stringer.
func (s Status) String() string { return string(s) }

var statusSlugs = map[Status]string{
	StatusOK:             "okay",
	StatusNotLoggedIn:    "not-centrally-logged-in",
	StatusLostSession:    "lost-session",
	StatusInvalidParams:  "invalid-params",
	StatusNotCentral:     "wrong-domain",
	StatusNotLocal:       "wrong-domain",
	StatusWikiNotFound:   "wiki-not-found",
	StatusWrongAttempt:   "wrong-attempt",
	StatusAlreadyLogged:  "already-logged-in",
	StatusInconsistency:  "inconsistent",
	StatusBadCredentials: "bad-credentials",
	StatusInternalError:  "internal-error",
}

// Slug returns the hyphenated form used in the X-SSO-Status header and in
// metric names. Unknown statuses collapse to "internal-error".
func (s Status) Slug() string {
	if slug, ok := statusSlugs[s]; ok {
		return slug
	}
	return "internal-error"
}
