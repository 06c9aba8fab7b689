package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"sarathi/pkg/domerrors"
	"sarathi/pkg/platform/httputil"
)

type ctxKey struct{}

var supervisorKey = ctxKey{}

// RequireSupervisor rejects requests without a valid supervisor bearer token.
// The supervisor id travels in the token subject and is exposed through
// SupervisorFrom for audit attribution.
func RequireSupervisor(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				httputil.WriteError(w, domerrors.New(domerrors.CodeUnauthorized, "supervisor token required"))
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(signingKey), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				logger.Warn("rejected supervisor token", "path", r.URL.Path, "err", err)
				httputil.WriteError(w, domerrors.New(domerrors.CodeUnauthorized, "invalid supervisor token"))
				return
			}

			ctx := context.WithValue(r.Context(), supervisorKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SupervisorFrom returns the authenticated supervisor id, if any.
func SupervisorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(supervisorKey).(string)
	return id, ok
}
