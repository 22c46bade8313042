package server

import (
	"fmt"
	"net/http"

	"github.com/mycoding/go-session/guard"
	"github.com/mycoding/go-session/identity"
	"github.com/mycoding/go-session/internal/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	LoginRoute          = "GET /login"
	SettingsRoute       = "GET /settings"
	AdminRoute          = "GET /admin"
	MetricsRoute        = "GET /metrics"
	SessionStateRoute   = "GET /api/session"
	MeRoute             = "GET /api/auth/me"
	LoginActionRoute    = "POST /api/auth/login"
	RegisterActionRoute = "POST /api/auth/register"
	LogoutActionRoute   = "POST /api/auth/logout"
	RefreshActionRoute  = "POST /api/auth/refresh"
	ForgotActionRoute   = "POST /api/auth/forgot-password"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc(LoginActionRoute, ChainMiddleware(s.LoginHandler(), s.apiMiddleware()...))
	s.RegisterRouteFunc(RegisterActionRoute, ChainMiddleware(s.RegisterHandler(), s.apiMiddleware()...))
	s.RegisterRouteFunc(LogoutActionRoute, ChainMiddleware(s.LogoutHandler(), s.apiMiddleware()...))
	s.RegisterRouteFunc(RefreshActionRoute, ChainMiddleware(s.RefreshHandler(), s.apiMiddleware()...))
	s.RegisterRouteFunc(ForgotActionRoute, ChainMiddleware(s.ForgotPasswordHandler(), s.apiMiddleware()...))
	s.RegisterRouteFunc(MeRoute, ChainMiddleware(s.MeHandler(), s.apiMiddleware()...))
	s.RegisterRouteFunc(SessionStateRoute, ChainMiddleware(s.SessionStateHandler(), s.apiMiddleware()...))

	// Demo pages exercising the route guard. /login is public but bounces
	// authenticated users; /settings needs a session; /admin needs the
	// admin role on top.
	s.RegisterRouteFunc(LoginRoute, ChainMiddleware(s.LoginPageHandler(),
		append(s.apiMiddleware(), s.GuardMiddleware(guard.Config{}))...))
	s.RegisterRouteFunc(SettingsRoute, ChainMiddleware(s.SettingsPageHandler(),
		append(s.apiMiddleware(), s.GuardMiddleware(guard.Config{RequireAuth: true}))...))
	s.RegisterRouteFunc(AdminRoute, ChainMiddleware(s.AdminPageHandler(),
		append(s.apiMiddleware(), s.GuardMiddleware(guard.Config{RequireAuth: true, RequireRole: identity.RoleAdmin}))...))

	s.RegisterRouteHandler(MetricsRoute, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Sign In", "<p>Post credentials to /api/auth/login.</p>")
	}
}

func (s *Server) SettingsPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := utils.Value(s.manager.State().User).Name
		writePage(w, "Settings", fmt.Sprintf("<p>Signed in as %s.</p>", name))
	}
}

func (s *Server) AdminPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "Admin", "<p>Administrator console.</p>")
	}
}

func writePage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1>%s</body></html>", title, title, body)
}
