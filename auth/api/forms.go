package api

import (
	"net/http"

	"github.com/andrebq/healthtrack/auth"
	"github.com/andrebq/healthtrack/internal/views"
)

func (s *SecurityRealm) page(r *http.Request, title string) views.Page {
	p := views.Page{Title: title, Username: Username(r.Context())}
	if s.gateway.CaptchaEnabled() {
		p.SiteKey = s.siteKey
	}
	return p
}

func (s *SecurityRealm) renderError(w http.ResponseWriter, r *http.Request, name string, page views.Page, err error) {
	status := StatusCode(err)
	logFailure(r, status, err)
	retryAfter(w, err)
	page.Error = Message(err)
	s.views.Render(w, r, status, name, page)
}

func (s *SecurityRealm) setSession(w http.ResponseWriter, id auth.Identity) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id.SessionCookie,
		Path:     "/",
		MaxAge:   int(s.gateway.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *SecurityRealm) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *SecurityRealm) loginForm(w http.ResponseWriter, r *http.Request) {
	if _, err := s.checkSession(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	p := s.page(r, "Log in")
	p.Mode = "login"
	s.views.Render(w, r, http.StatusOK, views.LoginPage, p)
}

func (s *SecurityRealm) loginSubmit(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "Log in")
	p.Mode = "login"
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, views.LoginPage, p, auth.ValidationError{Reason: "Invalid form"})
		return
	}
	id, err := s.gateway.LoginSession(r.Context(), auth.Credentials{
		Username:     r.PostForm.Get("username"),
		Password:     r.PostForm.Get("password"),
		CaptchaToken: r.PostForm.Get("g-recaptcha-response"),
		RemoteIP:     remoteIP(r),
	})
	if err != nil {
		s.renderError(w, r, views.LoginPage, p, err)
		return
	}
	s.setSession(w, id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *SecurityRealm) registerForm(w http.ResponseWriter, r *http.Request) {
	if _, err := s.checkSession(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	p := s.page(r, "Register")
	p.Mode = "register"
	s.views.Render(w, r, http.StatusOK, views.LoginPage, p)
}

func (s *SecurityRealm) registerSubmit(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "Register")
	p.Mode = "register"
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, views.LoginPage, p, auth.ValidationError{Reason: "Invalid form"})
		return
	}
	password := r.PostForm.Get("password")
	if password != r.PostForm.Get("confirmPassword") {
		s.renderError(w, r, views.LoginPage, p, auth.ValidationError{Reason: "Passwords do not match"})
		return
	}
	id, err := s.gateway.RegisterSession(r.Context(), r.PostForm.Get("username"), password)
	if err != nil {
		s.renderError(w, r, views.LoginPage, p, err)
		return
	}
	s.setSession(w, id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *SecurityRealm) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := s.gateway.Logout(r.Context(), c.Value); err != nil {
			logFailure(r, http.StatusInternalServerError, err)
		}
	}
	s.clearSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *SecurityRealm) settingsForm(w http.ResponseWriter, r *http.Request) {
	s.views.Render(w, r, http.StatusOK, views.SettingsPage, s.page(r, "Settings"))
}

func (s *SecurityRealm) changePasswordSubmit(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "Settings")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, views.SettingsPage, p, auth.ValidationError{Reason: "Invalid form"})
		return
	}
	next := r.PostForm.Get("newPassword")
	if next != r.PostForm.Get("confirmPassword") {
		s.renderError(w, r, views.SettingsPage, p, auth.ValidationError{Reason: "Passwords do not match"})
		return
	}
	err := s.gateway.ChangePassword(r.Context(), Username(r.Context()), r.PostForm.Get("currentPassword"), next)
	if err != nil {
		s.renderError(w, r, views.SettingsPage, p, err)
		return
	}
	p.Notice = "Password updated"
	s.views.Render(w, r, http.StatusOK, views.SettingsPage, p)
}

func (s *SecurityRealm) deleteAccountSubmit(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "Settings")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, views.SettingsPage, p, auth.ValidationError{Reason: "Invalid form"})
		return
	}
	err := s.gateway.DeleteAccount(r.Context(), Username(r.Context()), r.PostForm.Get("password"))
	if err != nil {
		s.renderError(w, r, views.SettingsPage, p, err)
		return
	}
	s.clearSession(w)
	http.Redirect(w, r, "/register", http.StatusSeeOther)
}
