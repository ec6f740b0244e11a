package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// Mount registers the JSON endpoints under /api/auth and the HTML login,
// register and settings pages.
func (s *SecurityRealm) Mount(router *httprouter.Router) {
	router.HandlerFunc("POST", "/api/auth/register", s.registerJSON)
	router.HandlerFunc("POST", "/api/auth/login", s.loginJSON)
	router.Handler("POST", "/api/auth/verify", s.Protect(http.HandlerFunc(s.verifyJSON)))
	router.Handler("POST", "/api/auth/password", s.Protect(http.HandlerFunc(s.changePasswordJSON)))
	router.Handler("DELETE", "/api/auth/account", s.Protect(http.HandlerFunc(s.deleteAccountJSON)))

	router.HandlerFunc("GET", "/login", s.loginForm)
	router.HandlerFunc("POST", "/login", s.loginSubmit)
	router.HandlerFunc("GET", "/register", s.registerForm)
	router.HandlerFunc("POST", "/register", s.registerSubmit)
	router.HandlerFunc("GET", "/logout", s.logout)
	router.HandlerFunc("POST", "/logout", s.logout)
	router.Handler("GET", "/settings", s.RequireSession(http.HandlerFunc(s.settingsForm)))
	router.Handler("POST", "/settings/change-password", s.RequireSession(http.HandlerFunc(s.changePasswordSubmit)))
	router.Handler("POST", "/settings/delete-account", s.RequireSession(http.HandlerFunc(s.deleteAccountSubmit)))
}
