package auth

import "context"

// Store describes the persistence operations the auth core depends on.
// Implementations return ErrNotFound for missing rows and ErrAlreadyExists
// on unique-constraint violations; any other error is treated as a store
// outage by the Service.
type Store interface {
	// FindUserByIdentifier looks a user up by username or email.
	FindUserByIdentifier(ctx context.Context, identifier string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)

	// CreateUser inserts a new account. Uniqueness of username and email
	// is enforced by database constraints, not application checks.
	CreateUser(ctx context.Context, u *User) error

	// RoleOf resolves the persisted role id for a user.
	RoleOf(ctx context.Context, userID int64) (int, error)

	// TwoFactor returns the user's TOTP enrollment, ErrNotFound when the
	// user never enrolled.
	TwoFactor(ctx context.Context, userID int64) (*TwoFactorSecret, error)
	UpsertTwoFactor(ctx context.Context, sec *TwoFactorSecret) error
	MarkTwoFactorVerified(ctx context.Context, userID int64) error
}
