package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mycoding/go-session/credentials"
	"github.com/mycoding/go-session/internal/config"
	"github.com/mycoding/go-session/internal/metrics"
	"github.com/mycoding/go-session/lifecycle"
	"github.com/mycoding/go-session/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Server exposes the session actions over HTTP plus the guard-protected
// demo pages. It is a thin consumer of the lifecycle manager: forms
// post to the action endpoints and read the resulting session state.
type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	manager  *lifecycle.Manager
	service  *session.Service
	creds    *credentials.Store
	validate *validator.Validate
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

func New(cfg config.Config, manager *lifecycle.Manager, service *session.Service, creds *credentials.Store, bundle *metrics.Metrics, gatherer prometheus.Gatherer, logger zerolog.Logger) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("[Server New] lifecycle manager is required")
	}
	if service == nil {
		return nil, fmt.Errorf("[Server New] session service is required")
	}
	if creds == nil {
		return nil, fmt.Errorf("[Server New] credential store is required")
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		manager:  manager,
		service:  service,
		creds:    creds,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  bundle,
		gatherer: gatherer,
		logger:   logger,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
