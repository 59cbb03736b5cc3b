package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	basePath     = "/v1"
	invoicePath  = "/v1/_i"
	queryPath    = "/v1/_q"
	missingPath  = "/v1/_r/missing/"
	tomlMIMEType = "application/toml"
	// parcelIDSeparator delimits a bindle id from a parcel sha in a path
	// segment, e.g. "/v1/_i/enterprise.com/warpcore/1.0.0@<sha>". Ported
	// from original_source/src/server/filters.rs's PARCEL_ID_SEPARATOR.
	parcelIDSeparator = "@"
)

// Routes builds the full HTTP handler, wrapping every registered route
// with authentication/authorization and metrics middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(invoicePath, s.handleCreateInvoice)
	mux.HandleFunc(invoicePath+"/", s.handleInvoiceTail)
	mux.HandleFunc(queryPath, s.handleQuery)
	mux.HandleFunc(missingPath, s.handleMissing)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())

	return s.requestIDMiddleware(s.logger.Middleware(s.authMiddleware(s.metricsMiddleware(mux))))
}

// requestIDMiddleware assigns a request ID (reusing one the caller
// already supplied) so every log line and error response for a request can
// be correlated, following the client SDK's X-Request-Id convention and
// pkg/attestation/service.go's uuid.New() idiom.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.authn.Authenticate(r)
		if err != nil {
			s.writeTOMLError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err := s.authz.Authorize(identity, r.Method, r.URL.Path); err != nil {
			s.writeTOMLError(w, http.StatusForbidden, "access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := s.metrics.StartRequest(r.Method, r.URL.Path)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveStatus(rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// splitTail splits the portion of the path after "/v1/_i/" into an
// invoice-id segment and an optional parcel-sha segment, mirroring
// handle_tail in the Rust reference: exactly one "@" is allowed.
func splitTail(tail string) (invoiceID string, parcelSha string, ok bool) {
	parts := strings.Split(tail, parcelIDSeparator)
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}
