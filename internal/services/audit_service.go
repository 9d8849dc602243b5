package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expensia/internal/amqp"
	"expensia/internal/log"
	"expensia/internal/metrics"
	"expensia/internal/storage"
)

// Audit outcomes, used as the metrics label.
const (
	AuditRecorded  = "recorded"
	AuditDuplicate = "duplicate"
	AuditInvalid   = "invalid"
	AuditFailed    = "failed"
)

var ErrInvalidEvent = errors.New("invalid session event")

// AuditStore persists audit events.
type AuditStore interface {
	InsertAuditEvent(ctx context.Context, e storage.AuditEvent) (bool, error)
	ListAuditEvents(ctx context.Context, email string, limit int) ([]storage.AuditEvent, error)
}

// AuditService records session lifecycle events consumed from AMQP.
type AuditService struct {
	store   AuditStore
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewAuditService(store AuditStore, m *metrics.Metrics, logger *log.Logger) *AuditService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AuditService{
		store:   store,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentAudit),
	}
}

func validateEvent(ev *amqp.SessionEvent) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if strings.TrimSpace(ev.EventID) == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	}
	switch ev.Type {
	case amqp.EventLogin, amqp.EventLogout, amqp.EventTeardown, amqp.EventOAuthLogin:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	return nil
}

// Record stores ev. Events that can never be stored are logged and dropped
// so they do not bounce on the queue forever; storage failures are returned
// and the message is redelivered.
func (s *AuditService) Record(ctx context.Context, ev *amqp.SessionEvent) error {
	if err := validateEvent(ev); err != nil {
		s.logger.WarnContext(ctx, "Dropping session event", log.FieldError, err)
		s.metrics.IncAuditEvent("unknown", AuditInvalid)
		return nil
	}

	occurred := ev.Timestamp
	if occurred.IsZero() {
		occurred = time.Now()
	}
	inserted, err := s.store.InsertAuditEvent(ctx, storage.AuditEvent{
		EventID:     ev.EventID,
		EventType:   string(ev.Type),
		SessionHash: ev.SessionHash,
		UserID:      ev.UserID,
		UserEmail:   ev.UserEmail,
		Reason:      ev.Reason,
		OccurredAt:  occurred,
	})
	if err != nil {
		s.metrics.IncAuditEvent(string(ev.Type), AuditFailed)
		return fmt.Errorf("record %s event: %w", ev.Type, err)
	}

	outcome := AuditRecorded
	if !inserted {
		outcome = AuditDuplicate
	}
	s.metrics.IncAuditEvent(string(ev.Type), outcome)
	s.logger.InfoContext(ctx, "Session event recorded",
		log.FieldEvent, ev.Type,
		log.FieldSessionID, ev.SessionHash,
		log.FieldUserEmail, ev.UserEmail,
		"outcome", outcome,
		"reason", ev.Reason)
	return nil
}

// Recent lists the latest events of email, or of every user when email is
// empty.
func (s *AuditService) Recent(ctx context.Context, email string, limit int) ([]storage.AuditEvent, error) {
	events, err := s.store.ListAuditEvents(ctx, email, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

const (
	defaultRecentEvents = 50
	maxRecentEvents     = 500
)

type auditEventView struct {
	EventID     string    `json:"eventId"`
	Type        string    `json:"type"`
	SessionHash string    `json:"sessionHash"`
	UserID      int64     `json:"userId,omitempty"`
	UserEmail   string    `json:"userEmail,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// EventsHandler serves Recent as JSON. The email query value narrows the
// list to one user and limit caps its length.
func (s *AuditService) EventsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultRecentEvents
		}
		limit = min(limit, maxRecentEvents)

		events, err := s.Recent(r.Context(), strings.TrimSpace(q.Get("email")), limit)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Audit event listing failed", log.FieldError, err)
			http.Error(w, "failed to list audit events", http.StatusInternalServerError)
			return
		}

		out := make([]auditEventView, 0, len(events))
		for _, e := range events {
			out = append(out, auditEventView{
				EventID:     e.EventID,
				Type:        e.EventType,
				SessionHash: e.SessionHash,
				UserID:      e.UserID,
				UserEmail:   e.UserEmail,
				Reason:      e.Reason,
				OccurredAt:  e.OccurredAt.UTC(),
				RecordedAt:  e.RecordedAt.UTC(),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"events": out}); err != nil {
			s.logger.WarnContext(r.Context(), "Failed to write audit events", log.FieldError, err)
		}
	})
}
