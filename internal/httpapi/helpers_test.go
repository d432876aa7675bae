package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/skyface-app/server/internal/auth"
)

// stubStore is an in-memory auth.Store for handler tests. Setting err makes
// every call fail with it, which is how the fail-closed paths are exercised.
type stubStore struct {
	mu     sync.Mutex
	users  map[int64]*auth.User
	twofa  map[int64]*auth.TwoFactorSecret
	nextID int64
	err    error
}

func newStubStore() *stubStore {
	return &stubStore{
		users: map[int64]*auth.User{},
		twofa: map[int64]*auth.TwoFactorSecret{},
	}
}

func (s *stubStore) FindUserByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	identifier = strings.TrimSpace(identifier)
	for _, u := range s.users {
		if u.Username == identifier || u.Email == strings.ToLower(identifier) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *stubStore) FindUserByID(_ context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubStore) CreateUser(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return auth.ErrAlreadyExists
		}
	}
	s.nextID++
	u.ID = s.nextID
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *stubStore) RoleOf(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	u, ok := s.users[userID]
	if !ok {
		return 0, auth.ErrNotFound
	}
	return u.RoleID, nil
}

func (s *stubStore) TwoFactor(_ context.Context, userID int64) (*auth.TwoFactorSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	sec, ok := s.twofa[userID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *sec
	return &cp, nil
}

func (s *stubStore) UpsertTwoFactor(_ context.Context, sec *auth.TwoFactorSecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *sec
	s.twofa[sec.UserID] = &cp
	return nil
}

func (s *stubStore) MarkTwoFactorVerified(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	sec, ok := s.twofa[userID]
	if !ok {
		return auth.ErrNotFound
	}
	sec.Verified = true
	return nil
}

func (s *stubStore) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubStore) addUser(t *testing.T, username, email, password string, roleID int) int64 {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &auth.User{Username: username, Email: strings.ToLower(email), PasswordHash: hash, RoleID: roleID}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u.ID
}

type testEnv struct {
	api     *API
	svc     *auth.Service
	store   *stubStore
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newStubStore()
	svc, err := auth.NewService(store, auth.WithSecret("handler-test-secret"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	api := New(svc, ReadyProbe{}, Options{
		Version:     "test",
		CORSOrigins: []string{"http://localhost:3000"},
		RateBurst:   10_000,
		RatePerSec:  10_000,
	})
	return &testEnv{api: api, svc: svc, store: store, handler: api.Handler()}
}

// login runs a credential check through the service and returns the freshly
// minted bundle, sparing every test an HTTP round trip for setup.
func (e *testEnv) login(t *testing.T, username, password string) auth.TokenBundle {
	t.Helper()
	_, bundle, err := e.svc.Login(context.Background(), username, password, "")
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return bundle
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID string          `json:"request_id"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not the standard envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return env
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set(authHeader, bearerPrefix+token)
	return req
}

func withSessionCookie(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	return req
}

func withCSRF(req *http.Request, token string) *http.Request {
	req.Header.Set(csrfHeader, token)
	return req
}
