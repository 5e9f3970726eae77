package server

import (
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/cyclopcam/www"
)

//go:embed www/templates
var templateWWW embed.FS

var pageTemplates = template.Must(template.ParseFS(templateWWW, "www/templates/*.html"))

// flashCookie carries one-shot notices across a redirect. Base64 because
// cookie values can't hold spaces.
const flashCookie = "sightd-flash"

type pageData struct {
	Email    string
	Flash    string
	Summary  []string
	MediaURL string
	JobID    int64
	JobState string
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data *pageData) {
	if data == nil {
		data = &pageData{}
	}
	www.CacheNever(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		s.Log.Errorf("Failed to render %v: %v", name, err)
	}
}

func setFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.URLEncoding.EncodeToString([]byte(message)),
		Path:     "/",
		HttpOnly: true,
	})
}

// takeFlash returns the pending notice, if any, and clears it
func takeFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, _ := r.Cookie(flashCookie)
	if cookie == nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:   flashCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	raw, err := base64.URLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(raw)
}

// flashAndRedirect is our uniform failure path: the user sees the message on
// the page they came from.
func flashAndRedirect(w http.ResponseWriter, r *http.Request, message, target string) {
	setFlash(w, message)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
