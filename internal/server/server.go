// Package server implements the HTTP surface (C10): a stdlib
// net/http.ServeMux router exposing the provider/search/signature
// subsystems over the wire protocol in SPEC_FULL.md §4.9. Grounded on
// original_source/src/server/routes.rs and src/server/filters.rs (ported
// from warp filters to the teacher's plain net/http routing idiom in
// main.go), with handler/test style from pkg/server/proof_handlers.go.
package server

import (
	"net/http"

	"github.com/bindleproject/bindle/internal/httplog"
	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/search"
	"github.com/bindleproject/bindle/internal/signature"
)

// Identity is the authenticated caller of a request. Name is empty for
// anonymous callers.
type Identity struct {
	Name string
}

// Authenticator validates a request's credentials. Server treats
// authentication as an external collaborator per spec.md §1 — only an
// anonymous-allow default is built in full; real deployments supply their
// own implementation (Basic, OIDC, mTLS, ...).
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// Authorizer decides whether an authenticated identity may perform
// method on path.
type Authorizer interface {
	Authorize(identity Identity, method, path string) error
}

// AnonymousAuthenticator accepts every request as an anonymous caller.
type AnonymousAuthenticator struct{}

// Authenticate implements Authenticator.
func (AnonymousAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	return Identity{}, nil
}

// AllowAllAuthorizer permits every request.
type AllowAllAuthorizer struct{}

// Authorize implements Authorizer.
func (AllowAllAuthorizer) Authorize(identity Identity, method, path string) error {
	return nil
}

// Server bundles the collaborators needed to serve the bindle HTTP API.
type Server struct {
	provider provider.Provider
	index    *search.Index
	keyring  *signature.Keyring
	strategy signature.VerificationStrategy
	authn    Authenticator
	authz    Authorizer
	metrics  *Metrics
	health   *HealthStatus
	logger   *httplog.Logger
}

// Option configures a Server, following the teacher's functional-options
// idiom (pkg/database/client.go's ClientOption).
type Option func(*Server)

// WithAuthenticator overrides the default anonymous-allow authenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.authn = a }
}

// WithAuthorizer overrides the default allow-all authorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Server) { s.authz = a }
}

// WithMetrics attaches a Metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server's logger, used both for error-path messages
// and for the per-request log line emitted by Routes' middleware chain.
func WithLogger(logger *httplog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHealthStatus attaches a HealthStatus for the /health endpoint.
func WithHealthStatus(h *HealthStatus) Option {
	return func(s *Server) { s.health = h }
}

// New builds a Server over the given provider, search index, keyring, and
// verification strategy.
func New(p provider.Provider, index *search.Index, keyring *signature.Keyring, strategy signature.VerificationStrategy, opts ...Option) *Server {
	s := &Server{
		provider: p,
		index:    index,
		keyring:  keyring,
		strategy: strategy,
		authn:    AnonymousAuthenticator{},
		authz:    AllowAllAuthorizer{},
		metrics:  NewMetrics(),
		health:   NewHealthStatus(),
		logger:   httplog.New("[BindleServer] "),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) writeTOMLError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", tomlMIMEType)
	w.WriteHeader(status)
	if _, err := w.Write(marshalErrorTOML(message)); err != nil {
		s.logger.Printf("error writing error body: %v", err)
	}
}

func marshalErrorTOML(message string) []byte {
	escaped := make([]byte, 0, len(message))
	for _, r := range message {
		if r == '"' || r == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, string(r)...)
	}
	return []byte("error = \"" + string(escaped) + "\"\n")
}
