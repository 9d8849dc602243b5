package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or has expired.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// SessionRow is a persisted session blob.
type SessionRow struct {
	ID        string
	Data      []byte
	UserEmail string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuditEvent is one recorded session lifecycle event.
type AuditEvent struct {
	ID          int64
	EventID     string
	EventType   string
	SessionHash string
	UserID      int64
	UserEmail   string
	Reason      string
	OccurredAt  time.Time
	RecordedAt  time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// modernc sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetSession returns the session row for id. Expired rows are reported as
// ErrNotFound and removed.
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*SessionRow, error) {
	var (
		row                            SessionRow
		expiresAt, createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, data, user_email, expires_at, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&row.ID, &row.Data, &row.UserEmail, &expiresAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	row.ExpiresAt = time.Unix(expiresAt, 0)
	row.CreatedAt = time.Unix(createdAt, 0)
	row.UpdatedAt = time.Unix(updatedAt, 0)

	if !r.now().Before(row.ExpiresAt) {
		if err := r.DeleteSession(ctx, id); err != nil {
			slog.WarnContext(ctx, "Failed to remove expired session", "error", err)
		}
		return nil, ErrNotFound
	}

	return &row, nil
}

// PutSession inserts or replaces the session blob in a single statement.
func (r *SQLiteRepository) PutSession(ctx context.Context, id string, data []byte, userEmail string, expiresAt time.Time) error {
	now := r.now().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, data, user_email, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			user_email = excluded.user_email,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		id, data, userEmail, expiresAt.Unix(), now, now)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// ReplaceSession overwrites a live session row. It returns ErrNotFound
// when the row was deleted or has expired, and never inserts.
func (r *SQLiteRepository) ReplaceSession(ctx context.Context, id string, data []byte, userEmail string, expiresAt time.Time) error {
	now := r.now().Unix()
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET data = ?, user_email = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND expires_at > ?`,
		data, userEmail, expiresAt.Unix(), now, id, now)
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session past its expiry.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.InfoContext(ctx, "Expired sessions removed", "count", n)
	}
	return n, nil
}

// InsertAuditEvent records an event. Redelivered events with a known
// event id are ignored and reported with inserted=false.
func (r *SQLiteRepository) InsertAuditEvent(ctx context.Context, e AuditEvent) (inserted bool, err error) {
	if e.EventID == "" {
		return false, errors.New("insert audit event: empty event id")
	}
	recordedAt := e.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = r.now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO audit_events
			(event_id, event_type, session_hash, user_id, user_email, reason, occurred_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.EventType, e.SessionHash, e.UserID, e.UserEmail, e.Reason,
		e.OccurredAt.UnixMilli(), recordedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert audit event: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListAuditEvents returns the most recent events, newest first. An empty
// email lists events of every user.
func (r *SQLiteRepository) ListAuditEvents(ctx context.Context, email string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, event_id, event_type, session_hash, user_id, user_email, reason, occurred_at, recorded_at
		FROM audit_events`
	args := []any{}
	if email != "" {
		query += ` WHERE user_email = ?`
		args = append(args, email)
	}
	query += ` ORDER BY occurred_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			e                      AuditEvent
			occurredAt, recordedAt int64
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.SessionHash, &e.UserID,
			&e.UserEmail, &e.Reason, &occurredAt, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.OccurredAt = time.UnixMilli(occurredAt)
		e.RecordedAt = time.UnixMilli(recordedAt)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
