package amqp

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType names a session lifecycle transition.
type EventType string

const (
	EventLogin      EventType = "login"
	EventLogout     EventType = "logout"
	EventTeardown   EventType = "teardown"
	EventOAuthLogin EventType = "oauth_login"
)

// SessionEvent is published whenever a session is created or destroyed.
// It carries a hash of the session id, never the id or the token itself.
type SessionEvent struct {
	EventID     string    `json:"eventId"`
	Type        EventType `json:"type"`
	SessionHash string    `json:"sessionHash,omitempty"`
	UserID      int64     `json:"userId,omitempty"`
	UserEmail   string    `json:"userEmail,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewSessionEvent creates an event with a fresh id and the current time.
func NewSessionEvent(eventType EventType, sessionID string, userID int64, email string) *SessionEvent {
	return &SessionEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		SessionHash: HashSessionID(sessionID),
		UserID:      userID,
		UserEmail:   email,
		Timestamp:   time.Now().UTC(),
	}
}

// HashSessionID returns a short, stable fingerprint of a session id.
func HashSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:8])
}

// ToJSON converts the message to JSON bytes
func (m *SessionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SessionEventFromJSON decodes and validates a message.
func SessionEventFromJSON(data []byte) (*SessionEvent, error) {
	var msg SessionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EventID == "" || msg.Type == "" {
		return nil, errors.New("session event missing id or type")
	}
	return &msg, nil
}
