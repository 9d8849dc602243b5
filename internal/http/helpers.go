package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"expensia/internal/api"
	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/guard"
	"expensia/internal/log"
	"expensia/internal/session"
)

const (
	// contentTarget is the element id page content is refreshed into.
	contentTarget = "page-content"

	flashCookie = "expensia_flash"

	msgSessionExpired = "Your session has expired. Please log in again."
	msgUnexpected     = "Something went wrong. Please try again."
)

type notice struct {
	Type    NotificationType
	Message string
}

// page is the data every page template receives.
type page struct {
	Title    string
	Nav      string
	User     *core.User
	Currency string
	OAuthURL string
	// Now is the request time in the user's timezone.
	Now      time.Time
	Data     any

	mu      sync.Mutex
	Notices []notice
}

func (s *Server) newPage(r *http.Request, title, nav string) *page {
	user := guard.User(r.Context())
	return &page{
		Title:    title,
		Nav:      nav,
		User:     user,
		Currency: user.CurrencyOrDefault(),
		OAuthURL: s.oauthURL,
		Now:      s.userNow(r),
	}
}

// userNow is the current time in the signed-in user's timezone, so "today"
// is the user's calendar day rather than the server's.
func (s *Server) userNow(r *http.Request) time.Time {
	return s.now().In(guard.User(r.Context()).Location())
}

// notify queues a notification. Safe to call from concurrent fetches.
func (p *page) notify(t NotificationType, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Notices = append(p.Notices, notice{Type: t, Message: msg})
}

// render writes a full page, or only its content block when htmx refreshes
// the content in place.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, p *page) {
	if f := takeFlash(w, r); f != nil {
		p.Notices = append([]notice{*f}, p.Notices...)
	}

	tmpl := name + "_page"
	if guard.IsHTMX(r) && r.Header.Get("HX-Target") == contentTarget {
		tmpl = name + "_content"
	}
	if guard.IsHTMX(r) && len(p.Notices) > 0 {
		first := p.Notices[0]
		b := NewHTMXResponse()
		if first.Type == NotificationError {
			b.TriggerErrorNotification(first.Message)
		} else {
			b.TriggerNotification(first.Type, first.Message, 3000)
		}
		b.applyTriggers(w)
	}
	s.execute(w, r, http.StatusOK, tmpl, p)
}

// execute renders a named template into a buffer first so a failing
// template never leaves a half written page.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed", log.FieldError, err, "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// listFailed reports a failed list fetch on the page. A 404 means the list
// is empty, and a 401 is handled once every fetch has settled.
func (s *Server) listFailed(ctx context.Context, p *page, err error, fallback string) {
	switch {
	case errors.Is(err, api.ErrNotFound), errors.Is(err, api.ErrUnauthorized):
		return
	case errors.Is(err, context.Canceled):
		return
	}
	log.FromContext(ctx).WarnContext(ctx, "List fetch failed", log.FieldError, err, "fallback", fallback)
	p.notify(NotificationError, api.MessageOr(err, fallback))
}

// sessionEnded reports whether a backend 401 tore the session down during
// this request, and if so sends the browser to login.
func (s *Server) sessionEnded(w http.ResponseWriter, r *http.Request) bool {
	if !session.FromContext(r.Context()).TornDown() {
		return false
	}
	s.endSession(w, r)
	return true
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	s.cookie.Clear(w)
	setFlash(w, NotificationError, msgSessionExpired)
	guard.Redirect(w, r, guard.LoginPath)
}

// mutated answers a successful create, update or delete: the form resets,
// the page content refetches and a notification is shown.
func (s *Server) mutated(w http.ResponseWriter, msg string) {
	NewHTMXResponse().
		TriggerFormReset().
		TriggerModalClose().
		TriggerPageRefresh().
		TriggerSuccessNotification(msg).
		Write(w)
}

// mutationFailed maps a failed mutation to its response. Validation errors
// and backend rejections give 422, an unreachable or failing backend 502,
// and a 401 ends the session. The form stays open in every case.
func (s *Server) mutationFailed(w http.ResponseWriter, r *http.Request, op string, err error, fallback string) {
	if errors.Is(err, api.ErrUnauthorized) || session.FromContext(r.Context()).TornDown() {
		s.endSession(w, r)
		return
	}

	var fe *forms.Error
	if errors.As(err, &fe) {
		UnprocessableEntityError(fe.Message).TriggerErrorNotification(fe.Message).Write(w)
		return
	}

	status := http.StatusBadGateway
	if code := api.StatusCode(err); code >= 400 && code < 500 {
		status = http.StatusUnprocessableEntity
	}
	msg := api.MessageOr(err, fallback)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Backend mutation failed",
		log.FieldOperation, op,
		log.FieldError, err,
		log.FieldStatusCode, status)
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

// currentUser returns the guarded request's user. Guarded routes always
// carry one.
func currentUser(r *http.Request) *core.User {
	return guard.User(r.Context())
}

// setFlash stores a notification to show on the next rendered page, used
// when the response itself is a redirect.
func setFlash(w http.ResponseWriter, t NotificationType, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(string(t) + "|" + msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns and clears the pending flash notification.
func takeFlash(w http.ResponseWriter, r *http.Request) *notice {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(raw, "|")
	if !ok || msg == "" {
		return nil
	}
	switch t := NotificationType(kind); t {
	case NotificationSuccess, NotificationError, NotificationWarning, NotificationInfo:
		return &notice{Type: t, Message: msg}
	}
	return nil
}
