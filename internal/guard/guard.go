// Package guard gates pages on the restored session: loading sessions get a
// polling placeholder, anonymous visitors go to login and non-admins are
// kept out of admin pages.
package guard

import (
	"context"
	"net/http"
	"time"

	"expensia/internal/core"
	"expensia/internal/log"
	"expensia/internal/session"
)

const (
	LoginPath        = "/auth/login"
	UnauthorizedPath = "/unauthorized"
)

// Decision is the outcome of evaluating a guarded request.
type Decision int

const (
	Loading Decision = iota
	Authorized
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Authorized:
		return "authorized"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Decide evaluates one request. It holds no state, so every navigation
// reflects the current user, loading flag and admin requirement.
func Decide(loading bool, user *core.User, requireAdmin bool) Decision {
	switch {
	case loading:
		return Loading
	case user == nil:
		return RedirectLogin
	case requireAdmin && !user.IsAdmin():
		return RedirectUnauthorized
	default:
		return Authorized
	}
}

// Restorer resolves a session cookie into request state.
type Restorer interface {
	Restore(ctx context.Context, id string) (*session.State, error)
}

// Cookie describes the session cookie.
type Cookie struct {
	Name   string
	Secure bool
}

// Set writes the session cookie for id, living for ttl.
func (c Cookie) Set(w http.ResponseWriter, id string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func (c Cookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the session id carried by r, or "".
func (c Cookie) Read(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

type Guard struct {
	sessions Restorer
	cookie   Cookie
	loading  http.Handler
	logger   *log.Logger
}

// New creates a guard. loading renders the placeholder page shown while a
// session is still being restored.
func New(sessions Restorer, cookie Cookie, loading http.Handler, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Guard{
		sessions: sessions,
		cookie:   cookie,
		loading:  loading,
		logger:   logger.WithComponent(log.ComponentGuard),
	}
}

// Attach restores the session of every request and stores it in the
// request context. A cookie that no longer resolves is cleared.
func (g *Guard) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := g.cookie.Read(r)
		st, err := g.sessions.Restore(r.Context(), id)
		if err != nil {
			// the client went away mid restore
			g.logger.DebugContext(r.Context(), "Session restore aborted", "error", err)
			return
		}
		if id != "" && !st.Loading && !st.Authenticated() {
			g.cookie.Clear(w)
		}
		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), st)))
	})
}

// Require enforces Decide on the wrapped handler. It must run after Attach.
func (g *Guard) Require(requireAdmin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := session.FromContext(r.Context())
			loading := st != nil && st.Loading

			switch d := Decide(loading, User(r.Context()), requireAdmin); d {
			case Authorized:
				next.ServeHTTP(w, r)
			case Loading:
				w.Header().Set("Cache-Control", "no-store")
				g.loading.ServeHTTP(w, r)
			case RedirectUnauthorized:
				g.logger.InfoContext(r.Context(), "Admin page refused", log.FieldPath, r.URL.Path)
				Redirect(w, r, UnauthorizedPath)
			default:
				Redirect(w, r, LoginPath)
			}
		})
	}
}

// User returns the signed-in user of the request, or nil.
func User(ctx context.Context) *core.User {
	st := session.FromContext(ctx)
	if !st.Authenticated() {
		return nil
	}
	return st.User
}

// IsHTMX reports whether r was issued by htmx.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// Redirect sends the browser to url. htmx requests get HX-Redirect so the
// whole page navigates instead of swapping the target.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	if IsHTMX(r) {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
