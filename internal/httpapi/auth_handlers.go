package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/skyface-app/server/internal/audit"
	"github.com/skyface-app/server/internal/auth"
	"github.com/skyface-app/server/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTP     string `json:"totp"`
}

func (req *loginRequest) fromForm(values map[string][]string) {
	v := url.Values(values)
	req.Username = v.Get("username")
	req.Password = v.Get("password")
	req.TOTP = v.Get("totp")
}

func (req *loginRequest) validate() error {
	if strings.TrimSpace(req.Username) == "" {
		return errors.New("username is required")
	}
	if req.Password == "" {
		return errors.New("password is required")
	}
	if len(req.Username) > 100 || len(req.Password) > 250 {
		return errors.New("credential fields exceed maximum length")
	}
	return nil
}

type loginUser struct {
	Username string `json:"username"`
	RoleFK   int    `json:"rolefk"`
}

type loginData struct {
	User        loginUser `json:"user"`
	AccessToken string    `json:"accessToken"`
	CSRFToken   string    `json:"csrfToken"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}

	identity, bundle, err := a.auth.Login(r.Context(), req.Username, req.Password, req.TOTP)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.CountLogin("invalid")
			writeFailure(w, r, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrServiceUnavailable):
			obs.CountLogin("error")
			writeFailure(w, r, http.StatusServiceUnavailable, "service unavailable")
		default:
			obs.CountLogin("error")
			writeFailure(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}

	obs.CountLogin("success")
	http.SetCookie(w, a.sessionCookie(bundle.SessionToken, int(a.auth.SessionTTL().Seconds())))

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":  identity.SubjectID,
		"username": identity.Username,
		"role":     identity.Role.String(),
	})

	writeSuccess(w, http.StatusOK, loginData{
		User: loginUser{
			Username: identity.Username,
			RoleFK:   identity.Role.ID(),
		},
		AccessToken: bundle.AccessToken,
		CSRFToken:   bundle.CSRFToken,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	http.SetCookie(w, a.sessionCookie("", -1))
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeSuccess(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *registerRequest) fromForm(values map[string][]string) {
	v := url.Values(values)
	req.Username = v.Get("username")
	req.Email = v.Get("email")
	req.Password = v.Get("password")
}

func (req *registerRequest) validate() error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || len(req.Username) > 100 {
		return errors.New("username must be 1-100 characters")
	}
	if req.Email == "" || len(req.Email) > 100 {
		return errors.New("email must be 1-100 characters")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errors.New("email is not a valid address")
	}
	if len(req.Password) < 8 || len(req.Password) > 250 {
		return errors.New("password must be 8-250 characters")
	}
	return nil
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyExists):
			writeFailure(w, r, http.StatusConflict, "username or email already taken")
		case errors.Is(err, auth.ErrInvalidInput):
			writeFailure(w, r, http.StatusBadRequest, "invalid registration data")
		case errors.Is(err, auth.ErrServiceUnavailable):
			writeFailure(w, r, http.StatusServiceUnavailable, "service unavailable")
		default:
			writeFailure(w, r, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})

	writeSuccess(w, http.StatusCreated, map[string]any{
		"user": loginUser{Username: user.Username, RoleFK: user.RoleID},
	})
}

func (a *API) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	secret, otpauthURL, err := a.auth.SetupTwoFactor(r.Context(), identity.SubjectID, identity.Username)
	if err != nil {
		writeFailure(w, r, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.2fa.setup", nil)
	writeSuccess(w, http.StatusOK, map[string]any{
		"secret":  secret,
		"otpauth": otpauthURL,
	})
}

type twoFactorVerifyRequest struct {
	TOTP string `json:"totp"`
}

func (req *twoFactorVerifyRequest) fromForm(values map[string][]string) {
	req.TOTP = url.Values(values).Get("totp")
}

func (a *API) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())

	var req twoFactorVerifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeFailure(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TOTP) == "" {
		writeFailure(w, r, http.StatusBadRequest, "totp code is required")
		return
	}

	if err := a.auth.ConfirmTwoFactor(r.Context(), identity.SubjectID, req.TOTP); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeFailure(w, r, http.StatusNotFound, "no pending 2fa enrollment")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeFailure(w, r, http.StatusUnauthorized, "invalid totp code")
		default:
			writeFailure(w, r, http.StatusServiceUnavailable, "service unavailable")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.2fa.verified", nil)
	writeSuccess(w, http.StatusOK, map[string]any{"verified": true})
}

func (a *API) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
