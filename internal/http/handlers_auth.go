package http

import (
	"errors"
	"log/slog"
	"net/http"

	"spendtrack/internal/services"
)

type authViewModel struct {
	Error    string
	Username string
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "register.html", authViewModel{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "register.html", authViewModel{Error: "Invalid form submission"})
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	user, err := s.auth.Register(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTooShort),
			errors.Is(err, services.ErrPasswordTooWeak),
			errors.Is(err, services.ErrUsernameTaken):
			s.render(w, r, "register.html", authViewModel{Error: err.Error(), Username: username})
		default:
			slog.ErrorContext(r.Context(), "Registration failed", "error", err)
			http.Error(w, "registration failed", http.StatusInternalServerError)
		}
		return
	}

	s.startSessionAndRedirect(w, r, user.ID, "/")
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	// Already logged in users go straight to the dashboard.
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if _, err := s.auth.SessionUser(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}
	s.render(w, r, "login.html", authViewModel{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "login.html", authViewModel{Error: "Invalid form submission"})
		return
	}

	username := sanitizeInput(r.Form.Get("username"))
	password := r.Form.Get("password")

	user, err := s.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			s.render(w, r, "login.html", authViewModel{Error: err.Error(), Username: username})
			return
		}
		slog.ErrorContext(r.Context(), "Login failed", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	s.startSessionAndRedirect(w, r, user.ID, "/")
}

// startSessionAndRedirect issues a fresh session token, never reusing an
// existing one, and sends the browser on.
func (s *Server) startSessionAndRedirect(w http.ResponseWriter, r *http.Request, userID int64, target string) {
	token, _, err := s.auth.StartSession(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to start session", "error", err, "user_id", userID)
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, token)
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "Failed to delete session", "error", err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}
