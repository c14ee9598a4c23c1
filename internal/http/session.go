package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/orenccl/next-todolist/internal/domain"
	sessiontoken "github.com/orenccl/next-todolist/pkg/session"
)

// SessionCookieName is the cookie carrying the signed session payload.
const SessionCookieName = "session"

// Sessions issues, reads and revokes the session cookie. The cookie
// value is a signed token holding {userId,email,name}; the server keeps
// no session state of its own.
type Sessions struct {
	Secret string
	TTL    time.Duration
	Secure bool
}

// Issue signs the payload and sets the cookie on the response.
func (s Sessions) Issue(w http.ResponseWriter, sess domain.Session) error {
	token, err := sessiontoken.Generate(sess.UserID, sess.Email, sess.Name, s.Secret, s.TTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.TTL / time.Second),
	})
	return nil
}

// Read parses and validates the session cookie. An absent, malformed
// or expired cookie is "no session", never an error.
func (s Sessions) Read(r *http.Request) (domain.Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie == nil {
		return domain.Session{}, false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return domain.Session{}, false
	}
	claims, err := sessiontoken.Parse(value, s.Secret)
	if err != nil {
		return domain.Session{}, false
	}
	return domain.Session{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, true
}

// Revoke expires the session cookie.
func (s Sessions) Revoke(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
