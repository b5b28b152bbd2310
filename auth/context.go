package auth

import (
	"context"
	"net/http"
)

// Context is the opaque identity an Authenticator produces once a
// request is authenticated — the one contract between authentication and
// the rest of the gateway. Every authenticator that can derive more than
// a bare pass/fail (JWT claims, a resolved username) produces one
// uniformly, instead of each reaching into context.WithValue with its
// own private key.
type Context struct {
	Subject string
	Claims  map[string]any
}

type ctxKey int

const authContextKey ctxKey = iota

// WithContext attaches c to ctx.
func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, authContextKey, c)
}

// FromContext retrieves the Context attached by WithContext, if any.
func FromContext(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(authContextKey).(Context)
	return c, ok
}

// ContextAuthenticator is implemented by authenticators that can resolve
// an identity beyond pass/fail — BasicAuthenticator resolves its
// configured username as the subject, JWTAuthenticator resolves the
// token's "sub" claim plus the full claim set. Authenticators that only
// gate access (NoAuth, BearerAuthenticator) do not implement it; Middleware falls back to Authenticate.
type ContextAuthenticator interface {
	AuthenticateContext(r *http.Request) (Context, error)
}
