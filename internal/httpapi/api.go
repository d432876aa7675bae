package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/skyface-app/server/api/spec"
	"github.com/skyface-app/server/internal/auth"
	"github.com/skyface-app/server/internal/obs"
)

// ReadyProbe reports whether downstream dependencies answer.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the HTTP-layer knobs the config resolves at startup.
type Options struct {
	Version       string
	SecureCookies bool
	AvatarsDir    string
	CORSOrigins   []string
	MaxBodyBytes  int64
	RateBurst     int
	RatePerSec    int
}

// API is the HTTP layer. Routing is a plain ServeMux; every application
// route goes through the guard pipeline with its declared minimum role.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	readyProbe ReadyProbe
	opts       Options
}

func New(svc *auth.Service, rp ReadyProbe, opts Options) *API {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 25
	}
	a := &API{
		mux:        http.NewServeMux(),
		auth:       svc,
		readyProbe: rp,
		opts:       opts,
	}

	// Auth: login and register create what the pipeline later checks, so
	// they run under the anonymous gate. Logout and 2FA management need a
	// live session.
	a.mux.Handle("/api/auth/login", a.guard(auth.RoleAnonymous, a.handleLogin))
	a.mux.Handle("/api/auth/register", a.guard(auth.RoleAnonymous, a.handleRegister))
	a.mux.Handle("/api/auth/logout", a.guard(auth.RoleUser, a.handleLogout))
	a.mux.Handle("/api/auth/2fa/setup", a.guard(auth.RoleUser, a.handleTwoFactorSetup))
	a.mux.Handle("/api/auth/2fa/verify", a.guard(auth.RoleUser, a.handleTwoFactorVerify))

	// Contract probes for the pipeline.
	a.mux.Handle("/api/test/anonym", a.guard(auth.RoleAnonymous, a.handleProbeAnonymous))
	a.mux.Handle("/api/test/user", a.guard(auth.RoleUser, a.handleProbeIdentity))
	a.mux.Handle("/api/test/admin", a.guard(auth.RoleAdmin, a.handleProbeIdentity))

	// Static avatar files produced by the upload feature.
	if opts.AvatarsDir != "" {
		a.mux.Handle("/files/avatars/",
			http.StripPrefix("/files/avatars/", http.FileServer(http.Dir(opts.AvatarsDir))))
	}

	// Operational endpoints.
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the fully wrapped http.Handler: request id, logging,
// hardening headers, CORS, body limits and rate limiting run before the
// router dispatches into the guard pipeline.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSec)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = CORS(h, a.opts.CORSOrigins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "skyface-api",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}
