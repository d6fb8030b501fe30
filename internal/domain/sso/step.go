package sso

// StepName identifies one state of the autologin state machine. Each step is a
// separate HTTP endpoint; transitions are 302 redirects carrying exactly one
// single-use token when they cross a trust boundary.
type StepName string

const (
	StepStart           StepName = "start"
	StepCheckLoggedIn   StepName = "checkLoggedIn"
	StepCreateSession   StepName = "createSession"
	StepValidateSession StepName = "validateSession"
	StepSetCookies      StepName = "setCookies"
	StepRefreshCookies  StepName = "refreshCookies"
	StepDeleteCookies   StepName = "deleteCookies"
	StepToolsList       StepName = "toolslist"
)

// ParseStep validates a subpage string against the known steps.
func ParseStep(s string) (StepName, bool) {
	switch StepName(s) {
	case StepStart, StepCheckLoggedIn, StepCreateSession, StepValidateSession,
		StepSetCookies, StepRefreshCookies, StepDeleteCookies, StepToolsList:
		return StepName(s), true
	}
	return "", false
}

// ResponseType controls the shape of the terminal response, threaded through
// every hop as the `type` query parameter.
type ResponseType string

const (
	TypeScript   ResponseType = "script"
	TypeJSON     ResponseType = "json"
	TypePixel    ResponseType = "1x1"
	TypeIcon     ResponseType = "icon"
	TypeRedirect ResponseType = "redirect"
)

// ParseResponseType returns the response type for s, defaulting to TypePixel
// for unknown values so a malformed request still gets a harmless response.
func ParseResponseType(s string) ResponseType {
	switch ResponseType(s) {
	case TypeScript, TypeJSON, TypePixel, TypeIcon, TypeRedirect:
		return ResponseType(s)
	}
	return TypePixel
}

// DomainRole is the role the classifier assigns to the current request's
// origin. It is recomputed per request from configuration plus request hints,
// never persisted.
type DomainRole int

const (
	RoleLocal DomainRole = iota
	RoleCentralSUL2
	RoleCentralSUL3
	RoleCentralAutologin
)

// IsCentral reports whether the role is one of the central-domain roles.
func (r DomainRole) IsCentral() bool { return r != RoleLocal }

func (r DomainRole) String() string {
	switch r {
	case RoleCentralSUL2:
		return "central-sul2"
	case RoleCentralSUL3:
		return "central-sul3"
	case RoleCentralAutologin:
		return "central-autologin"
	default:
		return "local"
	}
}

// Generation selects which central-domain generation a hop targets. The
// `usesul3` query flag picks SUL3 deterministically so CDN-cached steps do not
// vary by user.
type Generation string

const (
	GenSUL2 Generation = "sul2"
	GenSUL3 Generation = "sul3"
)

// Other returns the fallback generation, used by the single bounded
// checkLoggedIn retry.
func (g Generation) Other() Generation {
	if g == GenSUL3 {
		return GenSUL2
	}
	return GenSUL3
}
