// Package auth gates access to the protected pages. Passwords never touch
// this process: credential checks are delegated to the identity provider,
// and we keep only our own session table.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/sightd/sightd/pkg/rando"
	"gorm.io/gorm"
)

const SessionCookie = "sightd-session"

const sessionLifetime = 30 * 24 * time.Hour

// Session is a server-side login session. Key is the hash of the cookie
// token, never the token itself.
type Session struct {
	Key           string `gorm:"primaryKey"`
	Email         string
	IdentityToken string // opaque token issued by the identity provider
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Credentials identify the authenticated caller of one request
type Credentials struct {
	Email      string
	SessionKey string
}

type Server struct {
	db       *gorm.DB
	log      logs.Log
	provider IdentityProvider
}

func NewServer(db *gorm.DB, log logs.Log, provider IdentityProvider) *Server {
	return &Server{
		db:       db,
		log:      log,
		provider: provider,
	}
}

func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return base64.StdEncoding.EncodeToString(h[:])
}

// AuthenticateRequest returns the caller's credentials, or nil if the
// request carries no valid session. It never writes to the response; the
// caller decides between a redirect (HTML pages) and a 401 (API endpoints).
func (a *Server) AuthenticateRequest(r *http.Request) *Credentials {
	cookie, _ := r.Cookie(SessionCookie)
	if cookie == nil || cookie.Value == "" {
		return nil
	}
	key := HashSessionToken(cookie.Value)
	session := Session{}
	a.db.Where("key = ?", key).Find(&session)
	if session.Email == "" {
		return nil
	}
	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(time.Now()) {
		return nil
	}
	return &Credentials{
		Email:      session.Email,
		SessionKey: key,
	}
}

// Login verifies the credentials against the identity provider and, on
// success, creates a session and sets the session cookie.
// Provider rejections come back as *IdentityError, with the provider's own
// message, which is shown to the user verbatim.
func (a *Server) Login(w http.ResponseWriter, email, password string) error {
	idToken, err := a.provider.SignIn(email, password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(sessionLifetime)
	token := rando.StrongRandomAlphaNumChars(30)
	session := Session{
		Key:           HashSessionToken(token),
		Email:         email,
		IdentityToken: idToken,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}
	if err := a.db.Create(&session).Error; err != nil {
		return err
	}
	a.purgeExpiredSessions()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
	})
	a.log.Infof("Logged in %v", email)
	return nil
}

// SignUp creates the account at the identity provider. It does not log the
// user in; the caller sends them to the login form afterwards.
func (a *Server) SignUp(email, password string) error {
	_, err := a.provider.SignUp(email, password)
	return err
}

func (a *Server) SendPasswordReset(email string) error {
	return a.provider.SendPasswordReset(email)
}

// Logout deletes the caller's session and clears the cookie
func (a *Server) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, _ := r.Cookie(SessionCookie)
	if cookie != nil && cookie.Value != "" {
		a.db.Where("key = ?", HashSessionToken(cookie.Value)).Delete(&Session{})
	}
	http.SetCookie(w, &http.Cookie{
		Name:    SessionCookie,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
	})
}

func (a *Server) purgeExpiredSessions() {
	if err := a.db.Where("expires_at < ?", time.Now()).Delete(&Session{}).Error; err != nil {
		a.log.Warnf("Failed to purge expired sessions: %v", err)
	}
}
