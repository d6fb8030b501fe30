package sso

// User is a global account as resolved by the user directory.
type User struct {
	ID     int64
	Name   string
	Locked bool
	Hidden bool
}

// CanAuthenticate reports whether the account is usable as an SSO identity.
// Locked and hidden accounts resolve but never authenticate.
func (u User) CanAuthenticate() bool { return !u.Locked && !u.Hidden }
