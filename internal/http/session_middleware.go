package httpx

import (
	"context"
	"net/http"

	"github.com/orenccl/next-todolist/internal/domain"
)

type sessionContextKey string

const contextKeySession sessionContextKey = "todolist-session"

type contextSetter interface {
	SetContext(context.Context)
}

// requireSession ensures the request carries a valid session cookie
// before invoking the handler.
func (r *Router) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sess, ok := r.sessions.Read(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(req.Context(), contextKeySession, sess)
		if setter, ok := w.(contextSetter); ok {
			setter.SetContext(ctx)
		}
		next(w, req.WithContext(ctx))
	}
}

// sessionFromContext extracts the authenticated session from context.
func sessionFromContext(ctx context.Context) (domain.Session, bool) {
	value := ctx.Value(contextKeySession)
	if value == nil {
		return domain.Session{}, false
	}
	sess, ok := value.(domain.Session)
	return sess, ok
}
