package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"expensia/internal/amqp"
	"expensia/internal/api"
	"expensia/internal/cache"
	"expensia/internal/core"
	"expensia/internal/log"
	"expensia/internal/metrics"
)

// User facing outcomes of the session operations.
const (
	MsgLoginSuccess    = "Login successful!"
	MsgLoginFailed     = "Login failed"
	MsgLoggedOut       = "Logged out successfully"
	MsgOAuthSuccess    = "Successfully logged in with Google!"
	MsgOAuthUserFailed = "Failed to fetch user details"

	LoginPath = "/auth/login"
)

const (
	defaultRestoreTimeout   = 2 * time.Second
	defaultReconcileTimeout = 10 * time.Second
	publishTimeout          = 5 * time.Second
)

var (
	ErrTokenExpired = errors.New("token already expired")
	ErrNoSession    = errors.New("no session")
)

// Backend is the part of the REST client the session lifecycle calls.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (*api.AuthResponse, error)
	GetPreferences(ctx context.Context, email string) (*core.Preferences, error)
}

// EventPublisher receives session lifecycle events.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *amqp.SessionEvent) error
}

// State is the session as seen by one request.
type State struct {
	ID      string
	Token   string
	User    *core.User
	Loading bool

	tornDown atomic.Bool
}

// Authenticated reports whether the request carries a usable session.
func (s *State) Authenticated() bool {
	return s != nil && s.User != nil && s.Token != "" && !s.tornDown.Load()
}

// TornDown reports whether a backend 401 ended the session during this request.
func (s *State) TornDown() bool {
	return s != nil && s.tornDown.Load()
}

type stateKey struct{}

// NewContext attaches the session state and its bearer token to ctx.
func NewContext(ctx context.Context, st *State) context.Context {
	ctx = context.WithValue(ctx, stateKey{}, st)
	if st != nil && st.Token != "" {
		ctx = api.WithToken(ctx, st.Token)
	}
	return ctx
}

// FromContext returns the state attached by NewContext, or nil.
func FromContext(ctx context.Context) *State {
	st, _ := ctx.Value(stateKey{}).(*State)
	return st
}

// LoginResult is returned by a successful sign in.
type LoginResult struct {
	SessionID string
	User      core.User
	Redirect  string
	Message   string
	// TTL is how long the session and its cookie live.
	TTL time.Duration
}

// Options configures a Manager.
type Options struct {
	TTL              time.Duration
	RestoreTimeout   time.Duration
	ReconcileTimeout time.Duration
	Publisher        EventPublisher
	Metrics          *metrics.Metrics
	Logger           *log.Logger
}

// Manager runs the session lifecycle on top of a Store.
type Manager struct {
	store     Store
	backend   Backend
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *log.Logger
	events    *log.StructuredLogger

	ttl              time.Duration
	restoreTimeout   time.Duration
	reconcileTimeout time.Duration

	// session ids whose preferences were already reconciled by this process
	reconciled *cache.LRUCache[struct{}]
	wg         sync.WaitGroup
	now        func() time.Time
}

func NewManager(store Store, backend Backend, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.RestoreTimeout <= 0 {
		opts.RestoreTimeout = defaultRestoreTimeout
	}
	if opts.ReconcileTimeout <= 0 {
		opts.ReconcileTimeout = defaultReconcileTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentSession)

	return &Manager{
		store:            store,
		backend:          backend,
		publisher:        opts.Publisher,
		metrics:          opts.Metrics,
		logger:           logger,
		events:           log.NewStructuredLogger(logger),
		ttl:              opts.TTL,
		restoreTimeout:   opts.RestoreTimeout,
		reconcileTimeout: opts.ReconcileTimeout,
		reconciled:       cache.NewLRUCache[struct{}](defaultMemorySessions, opts.TTL),
		now:              time.Now,
	}
}

// Restore resolves a session id into the request state. Missing, expired
// and unreadable sessions yield a logged out state; a store slower than the
// restore timeout yields a loading state.
func (m *Manager) Restore(ctx context.Context, id string) (*State, error) {
	if id == "" {
		return &State{}, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, m.restoreTimeout)
	defer cancel()

	rec, err := m.store.Load(loadCtx, id)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return &State{}, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		m.logger.WarnContext(ctx, "Session restore timed out", log.FieldSessionID, shortID(id))
		return &State{ID: id, Loading: true}, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		m.logger.WarnContext(ctx, "Session restore failed", log.FieldSessionID, shortID(id), "error", err)
		return &State{}, nil
	}

	if m.reconciled.SetIfAbsent(id, struct{}{}) {
		m.wg.Add(1)
		go m.reconcile(id, rec.Token, rec.User.Email)
	}

	user := rec.User
	return &State{ID: id, Token: rec.Token, User: &user}, nil
}

// reconcile refreshes the stored preferences once per session per process.
// Failures are dropped.
func (m *Manager) reconcile(id, token, email string) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), m.reconcileTimeout)
	defer cancel()

	prefs, err := m.backend.GetPreferences(api.WithToken(ctx, token), email)
	if err != nil {
		m.logger.DebugContext(ctx, "Preference reconciliation skipped", "error", err)
		return
	}
	if _, err := m.UpdateUser(ctx, id, core.User{Timezone: prefs.Timezone, Currency: prefs.Currency}); err != nil {
		m.logger.DebugContext(ctx, "Preference reconciliation not saved", "error", err)
	}
}

// Wait blocks until background reconciliations have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Login signs in against the backend and persists a new session. Preference
// lookup is best effort. Nothing is stored when sign in fails.
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	auth, err := m.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	user := auth.User()
	if prefs, err := m.backend.GetPreferences(api.WithToken(ctx, auth.Token), auth.Email); err != nil {
		m.logger.DebugContext(ctx, "Preferences unavailable at login", "error", err)
	} else {
		user.Timezone = prefs.Timezone
		user.Currency = prefs.Currency
	}

	id, ttl, err := m.create(ctx, auth.Token, user)
	if err != nil {
		return nil, err
	}
	m.emit(ctx, amqp.EventLogin, id, &user, "")

	return &LoginResult{
		SessionID: id,
		User:      user,
		Redirect:  user.DashboardPath(),
		Message:   MsgLoginSuccess,
		TTL:       ttl,
	}, nil
}

// OAuthLogin completes the Google sign in. Unlike Login, a failed
// preference lookup fails the whole flow and nothing is stored.
func (m *Manager) OAuthLogin(ctx context.Context, token, email string) (*LoginResult, error) {
	if token == "" || email == "" {
		return nil, fmt.Errorf("oauth login: %w", ErrNoSession)
	}

	prefs, err := m.backend.GetPreferences(api.WithToken(ctx, token), email)
	if err != nil {
		return nil, fmt.Errorf("oauth login: fetch preferences: %w", err)
	}

	user := core.User{
		Username: core.UsernameFromEmail(email),
		Email:    email,
		Roles:    []string{core.RoleUser},
		Timezone: prefs.Timezone,
		Currency: prefs.Currency,
	}
	if user.Timezone == "" {
		user.Timezone = core.DefaultTimezone
	}
	if user.Currency == "" {
		user.Currency = core.DefaultCurrency
	}

	id, ttl, err := m.create(ctx, token, user)
	if err != nil {
		return nil, err
	}
	m.emit(ctx, amqp.EventOAuthLogin, id, &user, "")

	return &LoginResult{
		SessionID: id,
		User:      user,
		Redirect:  "/dashboard",
		Message:   MsgOAuthSuccess,
		TTL:       ttl,
	}, nil
}

func (m *Manager) create(ctx context.Context, token string, user core.User) (string, time.Duration, error) {
	ttl, err := m.sessionTTL(token)
	if err != nil {
		return "", 0, err
	}
	id := uuid.NewString()
	if err := m.store.Save(ctx, id, &Record{Token: token, User: user}, ttl); err != nil {
		return "", 0, fmt.Errorf("save session: %w", err)
	}
	return id, ttl, nil
}

// sessionTTL caps the configured TTL at the token's exp claim. The token
// is issued by the backend and is not verified here.
func (m *Manager) sessionTTL(token string) (time.Duration, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return m.ttl, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return m.ttl, nil
	}
	left := exp.Sub(m.now())
	if left <= 0 {
		return 0, ErrTokenExpired
	}
	if left < m.ttl {
		return left, nil
	}
	return m.ttl, nil
}

// Logout ends the session without calling the backend. It returns where
// to send the user and the notification to show.
func (m *Manager) Logout(ctx context.Context, id string) (redirect, message string) {
	var user *core.User
	if id != "" {
		if rec, err := m.store.Load(ctx, id); err == nil {
			user = &rec.User
		}
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.WarnContext(ctx, "Failed to delete session", "error", err)
		}
		m.reconciled.Delete(id)
		m.emit(ctx, amqp.EventLogout, id, user, "")
	}
	return LoginPath, MsgLoggedOut
}

// Teardown is the 401 path: the session is removed in one delete.
func (m *Manager) Teardown(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.ErrorContext(ctx, "Failed to tear down session", "error", err)
	}
	m.reconciled.Delete(id)
	m.metrics.IncSessionTeardown()

	var user *core.User
	if st := FromContext(ctx); st != nil && st.ID == id {
		user = st.User
	}
	m.emit(ctx, amqp.EventTeardown, id, user, "unauthorized")
}

// UnauthorizedHook returns the callback for api.WithUnauthorizedHook. It
// tears down the session of the request that received the 401 and marks
// the request state so the handler redirects to login.
func (m *Manager) UnauthorizedHook() api.UnauthorizedHook {
	return func(ctx context.Context) {
		st := FromContext(ctx)
		if st == nil || st.ID == "" {
			return
		}
		if st.tornDown.CompareAndSwap(false, true) {
			m.Teardown(ctx, st.ID)
		}
	}
}

// IsAdmin reports membership of ROLE_ADMIN.
func (m *Manager) IsAdmin(user *core.User) bool { return user.IsAdmin() }

// IsUser reports membership of ROLE_USER.
func (m *Manager) IsUser(user *core.User) bool { return user.IsUser() }

// UpdateUser merges the non-empty fields of patch into the session user
// and persists the record again. A session that ends between the read and
// the write stays ended and ErrNotFound is returned.
func (m *Manager) UpdateUser(ctx context.Context, id string, patch core.User) (*core.User, error) {
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.User.Merge(patch)

	ttl, err := m.sessionTTL(rec.Token)
	if err != nil {
		return nil, err
	}
	if err := m.store.Replace(ctx, id, rec, ttl); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	return &rec.User, nil
}

// RefreshPreferences reloads timezone and currency from the backend. It
// returns the updated user, or nil when anything failed; failures are only
// logged.
func (m *Manager) RefreshPreferences(ctx context.Context, id string) *core.User {
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		m.logger.WarnContext(ctx, "Preference refresh without session", "error", err)
		return nil
	}
	prefs, err := m.backend.GetPreferences(api.WithToken(ctx, rec.Token), rec.User.Email)
	if err != nil {
		m.logger.WarnContext(ctx, "Preference refresh failed", "error", err)
		return nil
	}
	user, err := m.UpdateUser(ctx, id, core.User{Timezone: prefs.Timezone, Currency: prefs.Currency})
	if err != nil {
		m.logger.WarnContext(ctx, "Preference refresh not saved", "error", err)
		return nil
	}
	return user
}

// emit logs the lifecycle transition and publishes it when a publisher is
// configured. Publishing is detached from request cancellation.
func (m *Manager) emit(ctx context.Context, eventType amqp.EventType, id string, user *core.User, reason string) {
	var (
		userID int64
		email  string
	)
	if user != nil {
		userID, email = user.ID, user.Email
	}
	m.events.LogSessionEvent(ctx, string(eventType), shortID(id), userID, email)
	m.metrics.IncSessionEvent(string(eventType))

	if m.publisher == nil {
		m.logger.DebugContext(ctx, "No event publisher configured, skipping session event", "type", eventType)
		return
	}

	event := amqp.NewSessionEvent(eventType, id, userID, email)
	event.Reason = reason

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := m.publisher.PublishSessionEvent(pubCtx, event); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish session event", "type", eventType, "error", err)
	}
}

// shortID keeps session ids out of logs in full.
func shortID(id string) string {
	return amqp.HashSessionID(id)
}
