package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mycoding/go-session/guard"
)

// Middleware wraps a handler func with extra behaviour.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// ChainMiddleware applies middlewares right-to-left, so the first in the
// list is the outermost.
func ChainMiddleware(handler http.HandlerFunc, middlewares ...Middleware) http.HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs each request and records the request counter.
func (s *Server) LoggingMiddleware() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next(recorder, r)

			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Msg("request")

			if s.metrics != nil {
				s.metrics.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(recorder.status)).Inc()
			}
		}
	}
}

// RecoverMiddleware converts handler panics into a 500 response.
func (s *Server) RecoverMiddleware() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next(w, r)
		}
	}
}

// GuardMiddleware evaluates the route policy against the current session
// state before letting the page render. While the session is still
// initializing the client is told to retry rather than being bounced to
// the wrong place.
func (s *Server) GuardMiddleware(cfg guard.Config) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			decision := guard.Evaluate(s.manager.State(), r.URL.Path, cfg)
			switch decision.Outcome {
			case guard.OutcomeLoading:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session is loading", http.StatusServiceUnavailable)
			case guard.OutcomeRedirect:
				http.Redirect(w, r, decision.Target, http.StatusSeeOther)
			default:
				next(w, r)
			}
		}
	}
}

func (s *Server) apiMiddleware() []Middleware {
	return []Middleware{s.LoggingMiddleware(), s.RecoverMiddleware()}
}
