package server

import (
	"embed"
	"net/http"
	"path/filepath"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sightd/sightd/server/auth"
)

//go:embed www/static
var staticWWW embed.FS

type authenticatedHandler func(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials)

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	// protectedPage creates an HTML page handler that is accessible only with
	// authentication. Unauthenticated requests are redirected to the login
	// page before any other work happens.
	protectedPage := func(method, route string, handle authenticatedHandler) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			cred := s.auth.AuthenticateRequest(r)
			if cred == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			handle(w, r, params, cred)
		})
	}

	// protectedAPI is the JSON flavor: unauthenticated requests get a 401
	protectedAPI := func(method, route string, handle authenticatedHandler) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			cred := s.auth.AuthenticateRequest(r)
			if cred == nil {
				www.SendError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}
			handle(w, r, params, cred)
		})
	}

	// unprotected creates an HTTP handler that is accessible without authentication
	unprotected := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	unprotected("GET", "/", s.httpHome)
	unprotected("GET", "/signup", s.httpSignupPage)
	unprotected("POST", "/signup", s.httpSignup)
	unprotected("GET", "/login", s.httpLoginPage)
	unprotected("POST", "/login", s.httpLogin)
	unprotected("GET", "/forgot_password", s.httpForgotPasswordPage)
	unprotected("POST", "/forgot_password", s.httpForgotPassword)

	protectedPage("GET", "/index", s.httpIndex)
	protectedPage("GET", "/image_upload", s.httpImageUploadPage)
	protectedPage("POST", "/image_upload", s.httpImageUpload)
	protectedPage("GET", "/video_upload", s.httpVideoUploadPage)
	protectedPage("POST", "/video_upload", s.httpVideoUpload)
	protectedPage("GET", "/video_feed", s.httpVideoFeed)
	protectedPage("GET", "/logout", s.httpLogout)

	protectedAPI("GET", "/video_status/:id", s.httpVideoStatus)

	unprotected("GET", "/public/:filename", s.httpPublicFile)
	unprotected("GET", "/healthz", s.httpHealth)
	router.Handler("GET", "/metrics", promhttp.Handler())

	static, err := staticfiles.NewCachedStaticFileServer(staticWWW, "www/static", nil, s.Log, true, nil)
	if err != nil {
		return err
	}
	router.NotFound = static

	s.httpRouter = router
	return nil
}

func (s *Server) httpHealth(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendOK(w)
}

// httpPublicFile serves a published artifact. The name is reduced to its
// base so the public dir is the only thing reachable.
func (s *Server) httpPublicFile(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	name := filepath.Base(params.ByName("filename"))
	www.CacheNever(w)
	www.SendFile(w, r, s.pipeline.PublicPath(name), "")
}
