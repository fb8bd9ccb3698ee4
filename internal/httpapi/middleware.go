package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"krafti/internal/models"
	"krafti/internal/pipeline"
	"krafti/internal/session"
)

type ctxKey int

const (
	viewerKey ctxKey = iota
	tokenKey
)

// ViewerFrom returns the authenticated user stored on ctx, or nil.
func ViewerFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(viewerKey).(*models.User)
	return u
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// authenticate attaches the viewer behind the request credential, if any.
// Requests without a valid session continue anonymously.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := session.ExtractCredential(r, a.config.AuthCookie)
		if !ok || token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, tokenKey, token)

		ownerID, valid, err := a.sessions.Resolve(ctx, token, a.now())
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("resolve session")
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if valid {
			user, err := a.users.Active(ctx, ownerID)
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Uint("user_id", ownerID).Msg("load viewer")
				respondError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if user != nil {
				ctx = context.WithValue(ctx, viewerKey, user)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFrom(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireScope checks the viewer's role against the scope the admin entity
// declares. Unscoped entities only need an authenticated viewer.
func (a *API) requireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := a.admin.Scope(chi.URLParam(r, "entity"))
		if !ok {
			respondFailure(w, r, pipeline.ErrUnknownEntity)
			return
		}
		if scope != "" && !ViewerFrom(r.Context()).HasScope(scope) {
			respondError(w, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}
