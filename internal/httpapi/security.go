package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"krafti/internal/users"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusUnprocessableEntity, "Email and password are required")
		return
	}

	ctx := r.Context()
	user, err := a.users.Authenticate(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	case err != nil:
		respondFailure(w, r, err)
		return
	}

	token, err := a.sessions.Issue(ctx, user.ID, clientIP(r), a.now())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Uint("user_id", user.ID).Msg("session issued")
	respondJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Revoke(r.Context(), tokenFrom(r.Context())); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"user": ViewerFrom(r.Context())})
}
