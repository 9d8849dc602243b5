package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"expensia/internal/guard"
	"expensia/internal/log"
	"expensia/internal/session"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).String(),
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	// Check templates
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	if s.limiter != nil {
		checks["rate_limiter"] = map[string]interface{}{
			"active_clients": s.limiter.ActiveClients(),
			"status":         "ok",
		}
	}
	checks["security"] = map[string]interface{}{
		"suspicious_requests": s.detector.SuspiciousRequests(),
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// handleIndex sends a signed-in user to their dashboard and anyone else to
// the landing page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if user := guard.User(r.Context()); user != nil {
		http.Redirect(w, r, user.DashboardPath(), http.StatusSeeOther)
		return
	}
	s.render(w, r, "landing", s.newPage(r, "Expensia", ""))
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Access denied", "")
	if p.User != nil {
		p.Data = p.User.DashboardPath()
	}
	w.Header().Set("Cache-Control", "no-store")
	s.execute(w, r, http.StatusForbidden, "unauthorized_page", p)
}

// handleLoading is shown while a session is still being restored. The page
// polls its own URL until the guard can decide.
func (s *Server) handleLoading(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())
	log.FromContext(r.Context()).DebugContext(r.Context(), "Session still loading", "has_session", st != nil && st.ID != "")

	p := s.newPage(r, "Loading", "")
	p.Data = r.URL.RequestURI()
	s.execute(w, r, http.StatusOK, "loading_page", p)
}
