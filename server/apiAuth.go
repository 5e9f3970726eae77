package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/sightd/sightd/server/auth"
)

func (s *Server) httpHome(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.renderPage(w, "home.html", &pageData{Flash: takeFlash(w, r)})
}

func (s *Server) httpSignupPage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.renderPage(w, "signup.html", &pageData{Flash: takeFlash(w, r)})
}

func (s *Server) httpSignup(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	email, password := formCredentials(r)
	if email == "" || password == "" {
		flashAndRedirect(w, r, "Email and password are required", "/signup")
		return
	}
	if err := s.auth.SignUp(email, password); err != nil {
		flashAndRedirect(w, r, userMessage(err), "/signup")
		return
	}
	flashAndRedirect(w, r, "Account created. Please log in.", "/login")
}

func (s *Server) httpLoginPage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.renderPage(w, "login.html", &pageData{Flash: takeFlash(w, r)})
}

func (s *Server) httpLogin(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	email, password := formCredentials(r)
	if email == "" || password == "" {
		flashAndRedirect(w, r, "Email and password are required", "/login")
		return
	}
	if err := s.auth.Login(w, email, password); err != nil {
		flashAndRedirect(w, r, userMessage(err), "/login")
		return
	}
	http.Redirect(w, r, "/index", http.StatusSeeOther)
}

func (s *Server) httpForgotPasswordPage(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.renderPage(w, "forgot_password.html", &pageData{Flash: takeFlash(w, r)})
}

func (s *Server) httpForgotPassword(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		flashAndRedirect(w, r, "Email is required", "/forgot_password")
		return
	}
	if err := s.auth.SendPasswordReset(email); err != nil {
		flashAndRedirect(w, r, userMessage(err), "/forgot_password")
		return
	}
	flashAndRedirect(w, r, "Password reset email sent. Check your inbox.", "/login")
}

func (s *Server) httpLogout(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	s.auth.Logout(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func formCredentials(r *http.Request) (email, password string) {
	return strings.TrimSpace(r.FormValue("email")), r.FormValue("password")
}

// userMessage decides what the user gets to see. Identity provider
// rejections are shown verbatim; anything else is generic, with the detail
// kept in the logs.
func userMessage(err error) string {
	idErr := &auth.IdentityError{}
	if errors.As(err, &idErr) {
		return idErr.Message
	}
	return "Something went wrong. Please try again."
}
