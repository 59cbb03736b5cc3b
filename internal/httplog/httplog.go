// Package httplog provides structured per-request logging for the HTTP
// surface (A5), wrapping the teacher's stdlib *log.Logger idiom
// (log.New(log.Writer(), "[Component] ", log.LstdFlags), injected via
// functional options) the same way internal/server.Server's own logger
// field is built, rather than reaching for a third-party structured
// logger the teacher's own code never imports (see SPEC_FULL.md §10).
package httplog

import (
	"log"
	"net/http"
	"time"
)

// Logger wraps a *log.Logger with an HTTP middleware that records one line
// per request: method, path, status, duration, and request ID.
type Logger struct {
	*log.Logger
}

// New builds a Logger with the given prefix, matching
// internal/server.New's log.New(log.Writer(), prefix, log.LstdFlags) call.
func New(prefix string) *Logger {
	return &Logger{log.New(log.Writer(), prefix, log.LstdFlags)}
}

// statusRecorder captures the status code passed to WriteHeader so it can
// be logged after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware logs one line per request after next has served it. It
// expects to run after any request-ID middleware has already set the
// X-Request-Id response header, so that header is read back for the log
// line rather than generated here.
func (l *Logger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		l.Printf("%s %s %d %s reqid=%s", r.Method, r.URL.Path, rec.status, time.Since(start), w.Header().Get("X-Request-Id"))
	})
}
