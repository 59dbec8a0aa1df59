package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"expensetracker/internal/auth"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(healthResponse{
		Status:  "ok",
		Version: s.opts.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}).Write(w, r)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ready.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("database unavailable").Write(w, r)
			return
		}
	}
	OK(map[string]string{"status": "ready"}).Write(w, r)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwd"`
	Currency string `json:"currency" validate:"omitempty,currency"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.svc.Auth.Register(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Email), req.Password, sanitizeInput(req.Currency))
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(session).Write(w, r)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.svc.Auth.Login(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(session).Write(w, r)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Auth.Me(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(u).Write(w, r)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Profile.Get(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(u).Write(w, r)
}

type profileRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Currency *string `json:"currency" validate:"omitempty,currency"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=500"`
}

func (p profileRequest) update() services.ProfileUpdate {
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		c := sanitizeInput(*v)
		return &c
	}
	return services.ProfileUpdate{
		Name:     clean(p.Name),
		Email:    clean(p.Email),
		Currency: clean(p.Currency),
		Avatar:   clean(p.Avatar),
	}
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Profile.Update(r.Context(), currentUser(r), req.update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(u).Write(w, r)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,pwd"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := bindJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.svc.Profile.ChangePassword(r.Context(), currentUser(r), req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		// The caller is authenticated; a wrong current password is a field error.
		UnprocessableEntityError("validation failed", map[string]string{"current_password": "is incorrect"}).Write(w, r)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(map[string]bool{"changed": true}).Write(w, r)
}
