package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenUseAccess marks the short-lived bearer token, TokenUseSession
	// the cookie-delivered day-scale token. Both carry the same payload
	// shape; the use claim keeps one from standing in for the other's
	// lifetime expectations while verification treats them alike.
	TokenUseAccess  = "access"
	TokenUseSession = "session"
)

// Claims is the signed payload shared by access and session tokens.
type Claims struct {
	Username string `json:"username"`
	Role     int    `json:"role"`
	CSRF     string `json:"csrf"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenBundle is everything a successful login hands back: both signed
// transports plus the raw CSRF token bound to them.
type TokenBundle struct {
	AccessToken      string
	SessionToken     string
	CSRFToken        string
	AccessExpiresAt  time.Time
	SessionExpiresAt time.Time
}

func (s *Service) signToken(identity Identity, use string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Username: identity.Username,
		Role:     identity.Role.ID(),
		CSRF:     identity.CSRFHash,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", identity.SubjectID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyToken validates a signed token from either transport and
// reconstructs the identity it encodes. Verification is a pure function of
// the token bytes, the server secret and the clock; calling it twice on
// the same unexpired token yields the same identity.
func (s *Service) VerifyToken(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if err := s.validateClaims(claims); err != nil {
		return Identity{}, ErrInvalidToken
	}

	var subjectID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &subjectID); err != nil || subjectID <= 0 {
		return Identity{}, ErrInvalidToken
	}
	role, err := RoleFromID(claims.Role)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		SubjectID: subjectID,
		Username:  claims.Username,
		Role:      role,
		CSRFHash:  claims.CSRF,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) validateClaims(claims *Claims) error {
	if s.issuer != "" && claims.Issuer != s.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.TokenUse != TokenUseAccess && claims.TokenUse != TokenUseSession {
		return fmt.Errorf("unexpected token use: %s", claims.TokenUse)
	}
	if strings.TrimSpace(claims.Username) == "" {
		return errors.New("username missing")
	}
	if claims.CSRF == "" {
		return errors.New("csrf binding missing")
	}
	now := s.now().UTC()
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}
