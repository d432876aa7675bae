package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

// nopStore satisfies Store for tests that never touch persistence.
type nopStore struct{}

func (nopStore) FindUserByIdentifier(context.Context, string) (*User, error) {
	return nil, ErrNotFound
}
func (nopStore) FindUserByID(context.Context, int64) (*User, error) { return nil, ErrNotFound }
func (nopStore) CreateUser(context.Context, *User) error            { return nil }
func (nopStore) RoleOf(context.Context, int64) (int, error)         { return 0, ErrNotFound }
func (nopStore) TwoFactor(context.Context, int64) (*TwoFactorSecret, error) {
	return nil, ErrNotFound
}
func (nopStore) UpsertTwoFactor(context.Context, *TwoFactorSecret) error { return nil }
func (nopStore) MarkTwoFactorVerified(context.Context, int64) error      { return nil }

func testService(t *testing.T, clock func() time.Time, opts ...ServiceOption) *Service {
	t.Helper()
	base := []ServiceOption{WithSecret("test-secret"), WithClock(clock)}
	svc, err := NewService(nopStore{}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, func() time.Time { return now })

	identity := Identity{SubjectID: 42, Username: "skyface", Role: RoleAdmin}
	bundle, err := svc.Issue(&identity)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if bundle.AccessToken == "" || bundle.SessionToken == "" || bundle.CSRFToken == "" {
		t.Fatal("expected all three tokens to be minted")
	}
	if bundle.AccessToken == bundle.SessionToken {
		t.Fatal("access and session tokens must differ")
	}
	if !MatchCSRF(identity.CSRFHash, bundle.CSRFToken) {
		t.Fatal("csrf token should match the digest bound to the identity")
	}

	for _, raw := range []string{bundle.AccessToken, bundle.SessionToken} {
		got, err := svc.VerifyToken(raw)
		if err != nil {
			t.Fatalf("VerifyToken: %v", err)
		}
		if got.SubjectID != 42 || got.Username != "skyface" || got.Role != RoleAdmin {
			t.Fatalf("unexpected identity: %+v", got)
		}
		if got.CSRFHash != identity.CSRFHash {
			t.Fatal("csrf binding was not preserved")
		}
	}
}

func TestVerifyTokenIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, func() time.Time { return now })

	identity := Identity{SubjectID: 7, Username: "justANormalUser", Role: RoleUser}
	bundle, err := svc.Issue(&identity)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	first, err := svc.VerifyToken(bundle.AccessToken)
	if err != nil {
		t.Fatalf("first VerifyToken: %v", err)
	}
	second, err := svc.VerifyToken(bundle.AccessToken)
	if err != nil {
		t.Fatalf("second VerifyToken: %v", err)
	}
	if first != second {
		t.Fatalf("idempotence violated: %+v vs %+v", first, second)
	}
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, func() time.Time { return now })

	identity := Identity{SubjectID: 7, Username: "justANormalUser", Role: RoleUser}
	bundle, err := svc.Issue(&identity)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip the payload so the role claims admin; the signature no longer
	// matches.
	parts := strings.Split(bundle.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d segments", len(parts))
	}
	tampered := parts[0] + "." + parts[1][:len(parts[1])-2] + "xx" + "." + parts[2]
	if _, err := svc.VerifyToken(tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}

	for _, raw := range []string{"", "garbage", "a.b.c", bundle.AccessToken + "x"} {
		if _, err := svc.VerifyToken(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuerSvc := testService(t, func() time.Time { return now })
	otherSvc, err := NewService(nopStore{},
		WithSecret("a-completely-different-secret"),
		WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	identity := Identity{SubjectID: 1, Username: "skyface", Role: RoleAdmin}
	bundle, err := issuerSvc.Issue(&identity)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := otherSvc.VerifyToken(bundle.AccessToken); err == nil {
		t.Fatal("expected foreign-secret token to be rejected")
	}
}

func TestVerifyTokenHonorsExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, func() time.Time { return now },
		WithAccessTTL(5*time.Minute), WithSessionTTL(time.Hour))

	identity := Identity{SubjectID: 9, Username: "justANormalUser", Role: RoleUser}
	bundle, err := svc.Issue(&identity)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Past the access TTL the bearer token dies while the session token,
	// minted from the same identity, is still valid.
	now = now.Add(10 * time.Minute)
	if _, err := svc.VerifyToken(bundle.AccessToken); err == nil {
		t.Fatal("expected expired access token to be rejected")
	}
	if _, err := svc.VerifyToken(bundle.SessionToken); err != nil {
		t.Fatalf("session token should outlive the access token: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := svc.VerifyToken(bundle.SessionToken); err == nil {
		t.Fatal("expected expired session token to be rejected")
	}
}

func TestIssueBindsFreshCSRFPerLogin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, func() time.Time { return now })

	a := Identity{SubjectID: 5, Username: "skyface", Role: RoleAdmin}
	b := Identity{SubjectID: 5, Username: "skyface", Role: RoleAdmin}
	bundleA, err := svc.Issue(&a)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	bundleB, err := svc.Issue(&b)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if bundleA.CSRFToken == bundleB.CSRFToken {
		t.Fatal("csrf tokens must be unique per issuance")
	}
	// Cross-binding must fail: each csrf token belongs to exactly one
	// token pair.
	if MatchCSRF(a.CSRFHash, bundleB.CSRFToken) {
		t.Fatal("csrf token from another session must not match")
	}
}
