// Package views renders the server side HTML pages.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/andrebq/healthtrack/internal/logutil"
)

//go:embed templates/*.html
var files embed.FS

type (
	// Page is the view model shared by every template.
	Page struct {
		Title    string
		Username string
		Error    string
		Notice   string
		// Mode switches login.html between "login" and "register".
		Mode    string
		SiteKey string
		Data    interface{}
	}

	Set struct {
		tmpl *template.Template
	}
)

const (
	LoginPage     = "login.html"
	SettingsPage  = "settings.html"
	DashboardPage = "dashboard.html"
)

func Load() (*Set, error) {
	tmpl, err := template.ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("unable to parse templates, cause %w", err)
	}
	return &Set{tmpl: tmpl}, nil
}

// Render writes page with status. The template is executed into memory
// first so a failing template never produces half a page.
func (s *Set) Render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	var buf bytes.Buffer
	err := s.tmpl.ExecuteTemplate(&buf, name, page)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("template", name).Msg("Unable to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
