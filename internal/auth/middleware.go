package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-registration/internal/utils"
)

type contextKey string

const adminKey contextKey = "admin"

// Middleware admits requests carrying a live admin bearer token.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
				return
			}

			claims, err := a.Verify(r.Context(), rawToken)
			if err != nil {
				status := http.StatusUnauthorized
				msg := "Unauthorized"
				if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrSessionRevoked) {
					status = http.StatusServiceUnavailable
					msg = "Session store unavailable"
				}
				a.Logger.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, status, utils.ErrorResponse(msg, err.Error()))
				return
			}

			ctx := context.WithValue(r.Context(), adminKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Admin returns the authenticated admin's username.
func Admin(ctx context.Context) string {
	if name, ok := ctx.Value(adminKey).(string); ok {
		return name
	}
	return ""
}
