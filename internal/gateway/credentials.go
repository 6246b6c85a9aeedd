package gateway

import (
	"context"
	"strings"

	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

// CredentialProvider supplies the bearer token attached to backend requests.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticCredentials always returns the same token. The CLI builds one from its flags.
type StaticCredentials string

// Token implements CredentialProvider.
func (s StaticCredentials) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", appErrors.Clone(appErrors.ErrAuthMissing, "gateway token not configured")
	}
	return token, nil
}

type tokenKey struct{}

// WithToken returns a context carrying the caller's bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token stored by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

// ForwardedCredentials reads the token forwarded from the incoming request.
type ForwardedCredentials struct{}

// Token implements CredentialProvider.
func (ForwardedCredentials) Token(ctx context.Context) (string, error) {
	token, ok := TokenFromContext(ctx)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrAuthMissing, "no bearer token forwarded")
	}
	return token, nil
}
