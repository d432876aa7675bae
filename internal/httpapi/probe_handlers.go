package httpapi

import (
	"net/http"

	"github.com/skyface-app/server/internal/auth"
)

// Contract probes. They exist so the authorization pipeline has endpoints
// whose only behavior is the pipeline itself: one per minimum role.

func (a *API) handleProbeAnonymous(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"message": "Anonymous"})
}

func (a *API) handleProbeIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	writeSuccess(w, http.StatusOK, map[string]any{
		"user": loginUser{
			Username: identity.Username,
			RoleFK:   identity.Role.ID(),
		},
	})
}
