package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gosuda/prime/internal/domain"
)

// Authorizer enforces a permission and records denials. *access.Enforcer
// satisfies it.
type Authorizer interface {
	Require(ctx context.Context, u domain.User, p domain.Permission, requestID, op string) error
}

// RequirePermission returns middleware that admits only callers holding p.
// It must be chained after the Auth middleware.
//
// Returns 401 Unauthorized when no user is found in context, 403 Forbidden
// when the permission is missing, and 500 when the denial could not be
// audited.
func RequirePermission(authz Authorizer, p domain.Permission, op string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			err := authz.Require(r.Context(), u, p, "", op)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, domain.ErrPermissionDenied):
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"insufficient permissions"}`, http.StatusForbidden)
			default:
				http.Error(w, `{"title":"Internal Server Error","status":500,"detail":"authorization failed"}`, http.StatusInternalServerError)
			}
		})
	}
}
