// Package session keeps the signed-in user server side. The browser only
// holds an opaque session id; the bearer token and the user live together
// in one record so neither can exist without the other.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expensia/internal/core"
)

var (
	// ErrNotFound is returned for unknown, expired and half-written sessions.
	ErrNotFound = errors.New("session not found")

	errInvalidRecord = errors.New("session record is incomplete")
)

// Record is what a session id resolves to.
type Record struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

// Valid reports whether both halves of the record are present.
func (r *Record) Valid() bool {
	return r != nil && r.Token != "" && r.User.Valid()
}

// Store persists session records. Implementations must be safe for
// concurrent use and must write a record as a single unit.
type Store interface {
	Load(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, id string, rec *Record, ttl time.Duration) error
	// Replace overwrites an existing record. It writes nothing and returns
	// ErrNotFound when the session was deleted or has expired.
	Replace(ctx context.Context, id string, rec *Record, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// pingID never names a real session; ids are random UUIDs.
const pingID = "readiness-check"

// Ping reports whether store answers reads. A missing session is a
// healthy answer.
func Ping(ctx context.Context, store Store) error {
	if _, err := store.Load(ctx, pingID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func encodeRecord(rec *Record) ([]byte, error) {
	if !rec.Valid() {
		return nil, errInvalidRecord
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRecord, err)
	}
	if !rec.Valid() {
		return nil, errInvalidRecord
	}
	return &rec, nil
}
