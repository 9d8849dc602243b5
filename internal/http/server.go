package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expensia/internal/guard"
	"expensia/internal/log"
	"expensia/internal/metrics"
	"expensia/internal/middleware/ratelimit"
	"expensia/internal/middleware/security"
	"expensia/internal/middleware/trace"
	"expensia/internal/verify"
	appweb "expensia/web"
)

const (
	readTimeout    = 15 * time.Second
	writeTimeout   = 15 * time.Second
	idleTimeout    = 60 * time.Second
	maxHeaderBytes = 64 << 10

	staticMaxAge = 3600
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators the server is built from.
type Deps struct {
	Addr         string
	Backend      Backend
	Sessions     Sessions
	Cookie       guard.Cookie
	Verifier     *verify.Tracker
	Limiter      *ratelimit.Limiter
	Detector     *security.Detector
	Metrics      *metrics.Metrics
	Logger       *log.Logger
	// OAuthBaseURL hosts the Google authorization endpoint.
	OAuthBaseURL string
	Checks       map[string]ReadinessCheck
	Now          func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template

	backend  Backend
	sessions Sessions
	guard    *guard.Guard
	cookie   guard.Cookie
	verifier *verify.Tracker
	limiter  *ratelimit.Limiter
	detector *security.Detector
	trace    *trace.Middleware
	metrics  *metrics.Metrics
	logger   *log.Logger

	oauthURL string
	checks   map[string]ReadinessCheck
	started  time.Time
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Verifier == nil {
		deps.Verifier = verify.NewTracker(verify.WithClock(deps.Now))
	}
	if deps.Detector == nil {
		deps.Detector = security.NewDetector()
	}

	s := &Server{
		backend:  deps.Backend,
		sessions: deps.Sessions,
		cookie:   deps.Cookie,
		verifier: deps.Verifier,
		limiter:  deps.Limiter,
		detector: deps.Detector,
		metrics:  deps.Metrics,
		logger:   deps.Logger.WithComponent(log.ComponentHTTP),
		oauthURL: deps.OAuthBaseURL + "/oauth2/authorization/google",
		checks:   deps.Checks,
		started:  deps.Now(),
		now:      deps.Now,
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	s.guard = guard.New(deps.Sessions, deps.Cookie, http.HandlerFunc(s.handleLoading), deps.Logger)
	s.trace = trace.NewMiddleware(deps.Logger, s.detector.ClientIP, deps.Metrics)

	mux := http.NewServeMux()
	s.routes(mux)

	// trace wraps the mux directly so the matched pattern is visible to it
	var handler http.Handler = s.trace.Middleware(mux)
	handler = s.detector.Middleware(deps.Logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:           deps.Addr,
		Handler:        handler,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		MaxHeaderBytes: maxHeaderBytes,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	public := s.public
	user := s.protected(false)
	admin := s.protected(true)

	mux.Handle("GET /{$}", public(s.handleIndex))
	mux.Handle("GET /unauthorized", public(s.handleUnauthorized))

	// Authentication
	mux.Handle("GET /auth/login", public(s.handleLoginPage))
	mux.Handle("POST /auth/login", s.limited(public(s.handleLogin)))
	mux.Handle("GET /auth/signup", public(s.handleSignupPage))
	mux.Handle("POST /auth/signup", s.limited(http.HandlerFunc(s.handleSignup)))
	mux.HandleFunc("GET /auth/callback", s.handleOAuthCallback)
	mux.HandleFunc("GET /auth/verify-email", s.handleVerifyEmailPage)
	mux.Handle("POST /auth/verify-email", s.limited(http.HandlerFunc(s.handleVerifyEmail)))
	mux.Handle("POST /auth/verify-email/resend", s.limited(http.HandlerFunc(s.handleResendVerification)))
	mux.HandleFunc("GET /auth/forgot-password", s.handleForgotPasswordPage)
	mux.Handle("POST /auth/forgot-password", s.limited(http.HandlerFunc(s.handleForgotPassword)))
	mux.HandleFunc("GET /auth/reset-password", s.handleResetPasswordPage)
	mux.Handle("POST /auth/reset-password/verify", s.limited(http.HandlerFunc(s.handleVerifyResetCode)))
	mux.Handle("POST /auth/reset-password/resend", s.limited(http.HandlerFunc(s.handleResendResetCode)))
	mux.Handle("POST /auth/reset-password", s.limited(http.HandlerFunc(s.handleResetPassword)))
	mux.Handle("/auth/logout", public(s.handleLogout))

	// User pages
	mux.Handle("GET /dashboard", user(s.handleDashboard))
	mux.Handle("POST /dashboard/budget", user(s.handleCreateMonthlyBudget))

	mux.Handle("GET /transactions", user(s.handleTransactions))
	mux.Handle("POST /transactions", user(s.handleCreateTransaction))
	mux.Handle("GET /transactions/{id}/edit", user(s.handleEditTransaction))
	mux.Handle("PUT /transactions/{id}", user(s.handleUpdateTransaction))
	mux.Handle("DELETE /transactions/{id}", user(s.handleDeleteTransaction))

	mux.Handle("GET /accounts", user(s.handleAccounts))
	mux.Handle("POST /accounts", user(s.handleCreateAccount))
	mux.Handle("GET /accounts/{id}/edit", user(s.handleEditAccount))
	mux.Handle("PUT /accounts/{id}", user(s.handleUpdateAccount))
	mux.Handle("DELETE /accounts/{id}", user(s.handleDeleteAccount))

	mux.Handle("GET /budgets", user(s.handleBudgets))
	mux.Handle("POST /budgets", user(s.handleCreateBudget))
	mux.Handle("GET /budgets/{id}/edit", user(s.handleEditBudget))
	mux.Handle("PUT /budgets/{id}", user(s.handleUpdateBudget))
	mux.Handle("DELETE /budgets/{id}", user(s.handleDeleteBudget))

	mux.Handle("GET /saved-transactions", user(s.handleSavedTransactions))
	mux.Handle("POST /saved-transactions", user(s.handleCreateSaved))
	mux.Handle("GET /saved-transactions/{id}/edit", user(s.handleEditSaved))
	mux.Handle("PUT /saved-transactions/{id}", user(s.handleUpdateSaved))
	mux.Handle("DELETE /saved-transactions/{id}", user(s.handleDeleteSaved))
	mux.Handle("POST /saved-transactions/{id}/confirm", user(s.handleConfirmSaved))
	mux.Handle("POST /saved-transactions/{id}/skip", user(s.handleSkipSaved))

	mux.Handle("GET /statistics", user(s.handleStatistics))

	mux.Handle("GET /settings", user(s.handleSettings))
	mux.Handle("POST /settings/preferences", user(s.handleUpdatePreferences))
	mux.Handle("POST /settings/password", user(s.handleChangePassword))
	mux.Handle("POST /settings/profile-image", user(s.handleUploadProfileImage))
	mux.Handle("DELETE /settings/profile-image", user(s.handleDeleteProfileImage))

	// Admin pages
	mux.Handle("GET /admin/dashboard", admin(s.handleAdminDashboard))
	mux.Handle("GET /admin/users", admin(s.handleAdminUsers))
	mux.Handle("POST /admin/users/{id}/enable", admin(s.handleEnableUser))
	mux.Handle("POST /admin/users/{id}/disable", admin(s.handleDisableUser))
	mux.Handle("GET /admin/transactions", admin(s.handleAdminTransactions))
	mux.Handle("GET /admin/categories", admin(s.handleAdminCategories))
	mux.Handle("POST /admin/categories", admin(s.handleCreateCategory))
	mux.Handle("GET /admin/categories/{id}/edit", admin(s.handleEditCategory))
	mux.Handle("PUT /admin/categories/{id}", admin(s.handleUpdateCategory))
	mux.Handle("POST /admin/categories/{id}/toggle", admin(s.handleToggleCategory))
	mux.Handle("GET /admin/settings", admin(s.handleAdminSettings))
	mux.Handle("POST /admin/settings/password", admin(s.handleChangePassword))
	mux.Handle("POST /admin/settings/profile-image", admin(s.handleUploadProfileImage))
	mux.Handle("DELETE /admin/settings/profile-image", admin(s.handleDeleteProfileImage))
}

// public restores the session so the page knows who is signed in, without
// requiring anyone to be.
func (s *Server) public(h http.HandlerFunc) http.Handler {
	return s.guard.Attach(h)
}

// protected restores the session and enforces the guard decision.
func (s *Server) protected(requireAdmin bool) func(http.HandlerFunc) http.Handler {
	require := s.guard.Require(requireAdmin)
	return func(h http.HandlerFunc) http.Handler {
		return s.guard.Attach(require(security.NoStore(h)))
	}
}

// limited applies the per-client token bucket.
func (s *Server) limited(h http.Handler) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(s.detector.ClientIP, s.metrics, s.handleRateLimited)(h)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request, wait time.Duration) {
	msg := "Too many requests. Please try again later."
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		"retry_after", ratelimit.RetryAfterSeconds(wait))
	ErrorResponse(http.StatusTooManyRequests, msg).
		TriggerErrorNotification(msg).
		Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
