package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/agrorecords/internal/auth"
	"github.com/JonMunkholm/agrorecords/internal/core"
	"github.com/JonMunkholm/agrorecords/internal/logging"
)

// ErrorResponder writes err to the client.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate returns middleware that resolves the Authorization bearer
// token to a principal. Requests without a valid token are answered with
// core.ErrUnauthenticated through onError; authenticated requests carry the
// principal (core.PrincipalFromContext) and user_id/role log attributes.
func Authenticate(a auth.Authenticator, onError ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				slog.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				onError(w, r, fmt.Errorf("authorization header: %w", core.ErrUnauthenticated))
				return
			}

			p, err := a.Authenticate(r.Context(), token)
			if err != nil {
				slog.Warn("auth: invalid bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				onError(w, r, err)
				return
			}

			ctx := core.ContextWithPrincipal(r.Context(), p)
			ctx = logging.ContextWithAttrs(ctx, "user_id", p.ID, "role", string(p.Role))
			r = r.WithContext(ctx)
			if h := holderFrom(ctx); h != nil {
				h.r = r
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requestHolder lets Logger see the request as seen by the innermost
// middleware that replaced it.
type requestHolder struct {
	r *http.Request
}

type holderKey struct{}

func withHolder(ctx context.Context, h *requestHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func holderFrom(ctx context.Context) *requestHolder {
	h, _ := ctx.Value(holderKey{}).(*requestHolder)
	return h
}
