package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/vkarpenko/gpushare/internal/handlers/render"
	"github.com/vkarpenko/gpushare/internal/handlers/userctx"
	"github.com/vkarpenko/gpushare/internal/models"
)

// HeaderUserID carries the caller identity resolved by the gateway in
// front of the service
const HeaderUserID = "X-User-ID"

type userService interface {
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// IdentityMiddleware resolves the user from the gateway-injected header
// and stores it in the request context
func IdentityMiddleware(us userService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := uuid.Parse(r.Header.Get(HeaderUserID))
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := us.GetUser(r.Context(), userID)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
