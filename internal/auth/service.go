package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultAccessTTL    = 15 * time.Minute
	defaultSessionTTL   = 24 * time.Hour
	defaultStoreTimeout = 3 * time.Second
	defaultIssuer       = "skyface-api"
)

// Service owns credential verification, token issuance and token
// verification. It is safe for concurrent use; all mutable state lives in
// the store.
type Service struct {
	store Store
	now   func() time.Time

	secret       []byte
	issuer       string
	accessTTL    time.Duration
	sessionTTL   time.Duration
	storeTimeout time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSecret sets the HS256 signing secret. Required.
func WithSecret(secret string) ServiceOption {
	return func(s *Service) error {
		if strings.TrimSpace(secret) == "" {
			return errors.New("auth: signing secret is empty")
		}
		s.secret = []byte(secret)
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures the bearer access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithSessionTTL configures the cookie session token lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
		return nil
	}
}

// WithStoreTimeout bounds every credential store call.
func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d > 0 {
			s.storeTimeout = d
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service. A signing secret must be provided.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &Service{
		store:        store,
		now:          time.Now,
		issuer:       defaultIssuer,
		accessTTL:    defaultAccessTTL,
		sessionTTL:   defaultSessionTTL,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if len(svc.secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	return svc, nil
}

// SessionTTL exposes the session lifetime for cookie attributes.
func (s *Service) SessionTTL() time.Duration { return s.sessionTTL }

// Login verifies credentials and, on success, mints the full token bundle.
// Unknown identifier and wrong password collapse to ErrInvalidCredentials;
// so does a missing or wrong one-time code for 2FA-enabled accounts. Store
// failures surface as ErrServiceUnavailable and never grant access.
func (s *Service) Login(ctx context.Context, identifier, password, totpCode string) (Identity, TokenBundle, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return Identity{}, TokenBundle{}, ErrInvalidCredentials
	}

	user, err := s.findUser(ctx, identifier)
	if err != nil {
		return Identity{}, TokenBundle{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Identity{}, TokenBundle{}, ErrInvalidCredentials
	}

	if err := s.checkSecondFactor(ctx, user.ID, totpCode); err != nil {
		return Identity{}, TokenBundle{}, err
	}

	role, err := s.roleOf(ctx, user.ID)
	if err != nil {
		return Identity{}, TokenBundle{}, err
	}

	identity := Identity{
		SubjectID: user.ID,
		Username:  user.Username,
		Role:      role,
	}
	bundle, err := s.Issue(&identity)
	if err != nil {
		return Identity{}, TokenBundle{}, err
	}
	return identity, bundle, nil
}

// Issue mints an access token, a session token and the CSRF token bound to
// both. The CSRF value is generated independently of the signed payloads
// and only its digest enters them.
func (s *Service) Issue(identity *Identity) (TokenBundle, error) {
	csrfToken, csrfDigest, err := NewCSRFToken()
	if err != nil {
		return TokenBundle{}, err
	}
	now := s.now().UTC()
	identity.CSRFHash = csrfDigest
	identity.IssuedAt = now
	identity.ExpiresAt = now.Add(s.sessionTTL)

	access, accessExp, err := s.signToken(*identity, TokenUseAccess, s.accessTTL, now)
	if err != nil {
		return TokenBundle{}, err
	}
	session, sessionExp, err := s.signToken(*identity, TokenUseSession, s.sessionTTL, now)
	if err != nil {
		return TokenBundle{}, err
	}
	return TokenBundle{
		AccessToken:      access,
		SessionToken:     session,
		CSRFToken:        csrfToken,
		AccessExpiresAt:  accessExp,
		SessionExpiresAt: sessionExp,
	}, nil
}

// Register creates a new account with the default user role. Duplicate
// usernames and emails are rejected by database uniqueness constraints and
// reported as ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		RoleID:       RoleUser.ID(),
	}
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.CreateUser(cctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, ErrServiceUnavailable
	}
	return user, nil
}

// SetupTwoFactor generates and stores an unverified TOTP secret for the
// user, replacing any previous unconfirmed enrollment.
func (s *Service) SetupTwoFactor(ctx context.Context, userID int64, account string) (secret, provisioningURL string, err error) {
	secret, err = NewTOTPSecret()
	if err != nil {
		return "", "", err
	}
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	sec := &TwoFactorSecret{UserID: userID, SecretBase32: secret}
	if err := s.store.UpsertTwoFactor(cctx, sec); err != nil {
		return "", "", ErrServiceUnavailable
	}
	return secret, OTPAuthURL(s.issuer, account, secret), nil
}

// ConfirmTwoFactor validates a code against the pending enrollment and
// marks it verified, activating the login gate.
func (s *Service) ConfirmTwoFactor(ctx context.Context, userID int64, code string) error {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	sec, err := s.store.TwoFactor(cctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrServiceUnavailable
	}
	if !VerifyTOTP(sec.SecretBase32, code, s.now()) {
		return ErrInvalidCredentials
	}
	if sec.Verified {
		return nil
	}
	mctx, cancel2 := s.storeCtx(ctx)
	defer cancel2()
	if err := s.store.MarkTwoFactorVerified(mctx, userID); err != nil {
		return ErrServiceUnavailable
	}
	return nil
}

func (s *Service) findUser(ctx context.Context, identifier string) (*User, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	user, err := s.store.FindUserByIdentifier(cctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Collapsed with the wrong-password case: lookup misses must
			// not be distinguishable from hash mismatches.
			return nil, ErrInvalidCredentials
		}
		return nil, ErrServiceUnavailable
	}
	return user, nil
}

func (s *Service) checkSecondFactor(ctx context.Context, userID int64, totpCode string) error {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	sec, err := s.store.TwoFactor(cctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return ErrServiceUnavailable
	}
	if !sec.Verified {
		// Enrollment exists but was never confirmed; password alone
		// still authenticates.
		return nil
	}
	if !VerifyTOTP(sec.SecretBase32, totpCode, s.now()) {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *Service) roleOf(ctx context.Context, userID int64) (Role, error) {
	cctx, cancel := s.storeCtx(ctx)
	defer cancel()
	roleID, err := s.store.RoleOf(cctx, userID)
	if err != nil {
		return RoleAnonymous, ErrServiceUnavailable
	}
	role, err := RoleFromID(roleID)
	if err != nil {
		return RoleAnonymous, ErrServiceUnavailable
	}
	return role, nil
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}
