package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/trafficlens/trafficlens/internal/api/models"
	"github.com/trafficlens/trafficlens/internal/auth"
)

type operatorKey struct{}

// Auth validates operator bearer tokens. Applied to mutating routes only;
// reads stay open.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, r, "missing or malformed authorization header")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "operator token has expired")
				case errors.Is(err, auth.ErrInvalidToken):
					writeUnauthorized(w, r, "invalid operator token")
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, claims.Operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header. The
// "Bearer" scheme matches case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "

	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

// writeUnauthorized writes the 401 problem document here rather than via
// the response package, which would import back into middleware.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	models.NewUnauthorized(GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}

// GetOperator returns the authenticated operator, or an empty string when
// the request carried no valid token.
func GetOperator(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}
