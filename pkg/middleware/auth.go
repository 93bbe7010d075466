package middleware

import (
	"errors"
	"net/http"

	"skedit/pkg/auth"
	apperrors "skedit/pkg/errors"
	httputil "skedit/pkg/http"
	"skedit/pkg/logger"
)

type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

// Authenticate resolves the bearer token into a principal stored on the
// request context. Requests without a valid token get 401.
func Authenticate(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := verifier.Verify(httputil.BearerToken(r))
			if err != nil {
				message := "Authentication required"
				if errors.Is(err, auth.ErrTokenExpired) {
					message = "Token has expired"
				} else if !errors.Is(err, auth.ErrMissingToken) {
					message = "Invalid token"
				}
				log.Warn("Request rejected",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
					"reason", err.Error(),
				)
				writeFailure(w, apperrors.Unauthorized(message))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.FromContext(r.Context())
		if !ok {
			writeFailure(w, apperrors.Unauthorized("Authentication required"))
			return
		}
		if !principal.IsAdmin() {
			writeFailure(w, apperrors.Forbidden("Admin permission required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
