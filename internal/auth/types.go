package auth

import "time"

// User is a persisted account, read at login and created at registration.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	RoleID       int
}

// TwoFactorSecret is the at-most-one-per-user TOTP enrollment. Login gates
// on a one-time code only once Verified is true.
type TwoFactorSecret struct {
	UserID       int64
	SecretBase32 string
	Verified     bool
}

// Identity is the ephemeral result of credential verification or token
// verification. It lives only for the duration of a request; the token
// encoding is its sole persistence.
type Identity struct {
	SubjectID int64
	Username  string
	Role      Role
	CSRFHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Anonymous reports whether the identity represents an unauthenticated
// caller.
func (id Identity) Anonymous() bool {
	return id.Role == RoleAnonymous || id.SubjectID == 0
}
