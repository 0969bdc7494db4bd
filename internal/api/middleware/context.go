package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const keyPrefixKey contextKey = "key_prefix"

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

// KeyPrefix returns the token prefix recorded by Authenticate.
func KeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

// WithKeyPrefix is setKeyPrefix for callers outside the package, mainly tests.
func WithKeyPrefix(r *http.Request, prefix string) *http.Request {
	return r.WithContext(setKeyPrefix(r.Context(), prefix))
}
