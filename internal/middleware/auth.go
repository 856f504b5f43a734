package middleware

import (
	"log/slog"
	"net/http"

	"github.com/householdhq/budget/internal/ctxkeys"
	"github.com/householdhq/budget/internal/response"
	"github.com/householdhq/budget/internal/service"
)

// AuthMiddleware checks for a session token and adds the identity to the context if valid
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := authService.SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := authService.VerifyJWT(token)
			if err != nil {
				// Invalid or expired, clear cookie and continue anonymously
				slog.DebugContext(r.Context(), "rejected session token", "error", err)
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with a 401
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.Identity(r.Context()) == nil {
			response.RenderUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	}
}
