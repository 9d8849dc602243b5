package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"expensia/internal/storage"
)

// SQLiteStore persists each session as one JSON blob row.
type SQLiteStore struct {
	repo *storage.SQLiteRepository
	now  func() time.Time
}

func NewSQLiteStore(repo *storage.SQLiteRepository) *SQLiteStore {
	return &SQLiteStore{repo: repo, now: time.Now}
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Record, error) {
	row, err := s.repo.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec, err := decodeRecord(row.Data)
	if err != nil {
		if delErr := s.repo.DeleteSession(ctx, id); delErr != nil {
			slog.WarnContext(ctx, "Failed to remove unreadable session", "error", delErr)
		}
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.repo.PutSession(ctx, id, data, rec.User.Email, s.now().Add(ttl))
}

func (s *SQLiteStore) Replace(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	err = s.repo.ReplaceSession(ctx, id, data, rec.User.Email, s.now().Add(ttl))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// CleanExpired removes expired rows. It satisfies cache.Cleaner so the
// cache manager's ticker sweeps the table too.
func (s *SQLiteStore) CleanExpired() int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := s.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		slog.Warn("Failed to sweep expired sessions", "error", err)
		return 0
	}
	return int(n)
}

func (s *SQLiteStore) Close() error {
	return s.repo.Close()
}
