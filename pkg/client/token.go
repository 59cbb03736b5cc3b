package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrOIDCNotImplemented is returned by OIDCToken.Apply. Full OIDC
// refresh-token handling is out of scope per spec.md's non-goal on "the
// specifics of any one authentication provider" — this type exists only
// to satisfy TokenManager for callers that want to wire their own OIDC
// flow in through the same interface.
var ErrOIDCNotImplemented = errors.New("client: OIDC token refresh is not implemented")

// TokenManager attaches credentials to an outgoing request. Implementors
// should refresh or validate the token as part of Apply, grounded on
// original_source/src/client/tokens.rs's TokenManager trait
// (apply_auth_header).
type TokenManager interface {
	Apply(req *http.Request) error
}

// NoToken is a TokenManager that adds no credentials, for anonymous
// access.
type NoToken struct{}

// Apply implements TokenManager.
func (NoToken) Apply(req *http.Request) error { return nil }

// StaticToken is a TokenManager for long-lived bearer tokens (service
// account or personal access tokens).
type StaticToken struct {
	token string
}

// NewStaticToken returns a StaticToken carrying the given bearer token.
func NewStaticToken(token string) StaticToken {
	return StaticToken{token: token}
}

// Apply sets the Authorization header to "Bearer <token>".
func (t StaticToken) Apply(req *http.Request) error {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.token))
	return nil
}

// BasicAuth is a TokenManager for HTTP Basic credentials.
type BasicAuth struct {
	username, password string
}

// NewBasicAuth returns a BasicAuth TokenManager.
func NewBasicAuth(username, password string) BasicAuth {
	return BasicAuth{username: username, password: password}
}

// Apply sets HTTP Basic credentials on the request.
func (b BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.username, b.password)
	return nil
}

// OIDCToken is an interface satisfier for a token manager backed by an
// OIDC refresh token. Only the shape is modeled here; refresh, expiry
// tracking, and token-file persistence are left to a real deployment's
// own identity provider integration.
type OIDCToken struct {
	RefreshToken string
	TokenURL     string
}

// Apply always fails: see ErrOIDCNotImplemented.
func (OIDCToken) Apply(req *http.Request) error {
	return ErrOIDCNotImplemented
}
