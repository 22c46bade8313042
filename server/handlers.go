package server

import (
	"encoding/json"
	"net/http"

	"github.com/mycoding/go-session/identity"
	"github.com/mycoding/go-session/internal/utils"
	"github.com/mycoding/go-session/lifecycle"
	"github.com/mycoding/go-session/session"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionResponse struct {
	User            *identity.Profile `json:"user"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	IsLoading       bool              `json:"isLoading"`
	Error           *string           `json:"error"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		s.manager.Login(session.Credentials{Email: req.Email, Password: req.Password})
		s.writeActionResult(w)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		// A confirmation mismatch takes precedence over strength feedback.
		if req.Password == req.ConfirmPassword {
			if err := identity.ValidatePasswordStrength(req.Password); err != nil {
				s.writeJSON(w, http.StatusBadRequest, errorResponse{
					Code:    "VALIDATION_ERROR",
					Message: err.Error(),
				})
				return
			}
		}

		s.manager.Register(session.Registration{
			Email:           req.Email,
			Name:            req.Name,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
		})
		s.writeActionResult(w)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.manager.Logout()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The manager swallows the typed error on its silent-logout
		// path, so the absent-token case is distinguished up front.
		if s.creds.GetRefreshToken() == "" {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{
				Code:    string(session.ErrNoRefreshToken.Code),
				Message: session.ErrNoRefreshToken.Message,
			})
			return
		}

		s.manager.RefreshToken()

		state := s.manager.State()
		if !state.IsAuthenticated() {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{
				Code:    string(session.CodeInvalidRefreshToken),
				Message: session.ErrInvalidRefreshToken.Message,
			})
			return
		}
		s.writeJSON(w, http.StatusOK, sessionResponseFor(state))
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.service.GetCurrentUser()
		if err != nil {
			s.writeAuthError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, profile)
	}
}

func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		if err := s.service.ForgotPassword(session.ForgotPasswordRequest{Email: req.Email}); err != nil {
			s.writeAuthError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"message": "password reset email sent"})
	}
}

// SessionStateHandler reports the current session snapshot, mirroring
// what a client would read before deciding which view to render.
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, sessionResponseFor(s.manager.State()))
	}
}

// writeActionResult translates the post-action session state into an HTTP
// response. The lifecycle actions themselves never return errors; failures
// surface as state, so the handler reads it back.
func (s *Server) writeActionResult(w http.ResponseWriter) {
	state := s.manager.State()
	if state.ErrCode != "" && !state.IsAuthenticated() {
		s.writeJSON(w, statusForCode(state.ErrCode), errorResponse{
			Code:    string(state.ErrCode),
			Message: state.Err,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponseFor(state))
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	if authErr, ok := session.AsAuthError(err); ok {
		s.writeJSON(w, statusForCode(authErr.Code), errorResponse{
			Code:    string(authErr.Code),
			Message: authErr.Message,
		})
		return
	}
	s.logger.Error().Err(err).Msg("unexpected handler error")
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "INVALID_REQUEST",
			Message: "request body is not valid JSON",
		})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("writing response body")
	}
}

func sessionResponseFor(state lifecycle.State) sessionResponse {
	resp := sessionResponse{
		User:            state.User,
		IsAuthenticated: state.IsAuthenticated(),
		IsLoading:       state.IsLoading,
	}
	if state.Err != "" {
		resp.Error = utils.Ptr(state.Err)
	}
	return resp
}

func statusForCode(code session.ErrorCode) int {
	switch code {
	case session.CodeInvalidCredentials,
		session.CodeNoToken,
		session.CodeInvalidToken,
		session.CodeNoRefreshToken,
		session.CodeInvalidRefreshToken:
		return http.StatusUnauthorized
	case session.CodeEmailExists:
		return http.StatusConflict
	case session.CodePasswordMismatch:
		return http.StatusBadRequest
	case session.CodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
