package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/agrorecords/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already resolved by middleware.TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

// principal returns the caller set by middleware.Authenticate. Every /api
// route runs behind it, so a missing principal is a wiring bug and is
// reported as unauthenticated.
func principal(r *http.Request) (core.Principal, error) {
	p, ok := core.PrincipalFromContext(r.Context())
	if !ok {
		return core.Principal{}, core.ErrUnauthenticated
	}
	return p, nil
}
