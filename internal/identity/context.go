package identity

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const (
	tokenKey ctxKey = iota
	headerIdentityKey
)

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func TokenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey).(string)
	return s
}

func WithHeaderIdentity(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, headerIdentityKey, user)
}

func HeaderIdentityFromContext(ctx context.Context) string {
	s, _ := ctx.Value(headerIdentityKey).(string)
	return s
}

// Middleware copies the caller's credentials onto the request context. It
// never rejects a request: identity is resolved lazily, and only where needed.
func Middleware(identityHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
				ctx = WithToken(ctx, strings.TrimSpace(h[7:]))
			}
			if identityHeader != "" {
				if user := strings.TrimSpace(r.Header.Get(identityHeader)); user != "" {
					ctx = WithHeaderIdentity(ctx, user)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
