package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/skyface-app/server/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
	csrfHeader   = "X-CSRF-Token"

	// SessionCookieName carries the longer-lived session token for
	// browser clients.
	SessionCookieName = "session"
)

// A stage is one step of the request authorization pipeline. It either
// enriches the request context and lets the request continue, or produces
// a terminal failure response. Stages never mutate the request they
// receive.
type stage func(r *http.Request) stageResult

type stageResult struct {
	ctx      context.Context
	terminal *terminal
}

type terminal struct {
	status  int
	message string
}

func next(ctx context.Context) stageResult {
	return stageResult{ctx: ctx}
}

func halt(status int, message string) stageResult {
	return stageResult{terminal: &terminal{status: status, message: message}}
}

// guard composes the fixed pipeline (token verifier, CSRF guard, role
// gate) in front of a handler. The ordering is the authorization
// contract: the verifier runs exactly once per request, the guard only
// sees verified identities, and the gate decides 401 vs 403.
func (a *API) guard(required auth.Role, handler http.HandlerFunc) http.Handler {
	stages := []stage{
		a.verifyIdentity,
		a.guardCSRF(required),
		a.gateRole(required),
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, s := range stages {
			res := s(r)
			if res.terminal != nil {
				writeFailure(w, r, res.terminal.status, res.terminal.message)
				return
			}
			if res.ctx != nil {
				r = r.WithContext(res.ctx)
			}
		}
		handler(w, r)
	})
}

// verifyIdentity resolves the caller's identity from either transport.
// Bearer tokens take precedence over the session cookie. Every validation
// failure, whether absent, malformed, expired or tampered, lands on the anonymous
// identity; turning that into an error is the role gate's job.
func (a *API) verifyIdentity(r *http.Request) stageResult {
	var identity auth.Identity
	if raw := extractToken(r); raw != "" {
		if verified, err := a.auth.VerifyToken(raw); err == nil {
			identity = verified
		}
	}
	return next(auth.ContextWithIdentity(r.Context(), identity))
}

// guardCSRF requires proof of same-origin intent on protected routes. A
// valid session without the matching CSRF header is treated as not
// properly authenticated, hence 401 rather than 403.
func (a *API) guardCSRF(required auth.Role) stage {
	return func(r *http.Request) stageResult {
		if required == auth.RoleAnonymous {
			return next(nil)
		}
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok || identity.Anonymous() {
			return next(nil)
		}
		if !auth.MatchCSRF(identity.CSRFHash, r.Header.Get(csrfHeader)) {
			return halt(http.StatusUnauthorized, "missing or invalid csrf token")
		}
		return next(nil)
	}
}

// gateRole enforces the route's minimum role. Unauthenticated callers get
// 401, authenticated callers below the requirement get 403.
func (a *API) gateRole(required auth.Role) stage {
	return func(r *http.Request) stageResult {
		identity, _ := auth.IdentityFromContext(r.Context())
		if identity.Role.Satisfies(required) {
			return next(nil)
		}
		if identity.Anonymous() {
			return halt(http.StatusUnauthorized, "authentication required")
		}
		return halt(http.StatusForbidden, "insufficient role")
	}
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header != "" && strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		if token := strings.TrimSpace(header[len(bearerPrefix):]); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
