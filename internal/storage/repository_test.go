package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "expensia.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_SessionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	expires := time.Now().Add(time.Hour)
	require.NoError(t, repo.PutSession(ctx, "s1", []byte(`{"token":"t"}`), "ann@example.com", expires))

	row, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"t"}`, string(row.Data))
	assert.Equal(t, "ann@example.com", row.UserEmail)
	assert.Equal(t, expires.Unix(), row.ExpiresAt.Unix())

	// Upsert replaces the blob in place.
	require.NoError(t, repo.PutSession(ctx, "s1", []byte(`{"token":"u"}`), "ann@example.com", expires))
	row, err = repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"u"}`, string(row.Data))

	require.NoError(t, repo.ReplaceSession(ctx, "s1", []byte(`{"token":"v"}`), "ann@example.com", expires))
	row, err = repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"v"}`, string(row.Data))

	require.NoError(t, repo.DeleteSession(ctx, "s1"))
	require.NoError(t, repo.DeleteSession(ctx, "s1"))
	_, err = repo.GetSession(ctx, "s1")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Replace only updates rows that still exist.
	assert.ErrorIs(t, repo.ReplaceSession(ctx, "s1", []byte(`{"token":"w"}`), "ann@example.com", expires), ErrNotFound)
	_, err = repo.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository_ExpiredSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.PutSession(ctx, "old", []byte("{}"), "", now.Add(-time.Minute)))
	require.NoError(t, repo.PutSession(ctx, "stale", []byte("{}"), "", now.Add(-time.Second)))
	require.NoError(t, repo.PutSession(ctx, "live", []byte("{}"), "", now.Add(time.Hour)))

	_, err := repo.GetSession(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := repo.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "the expired row read above is already gone")

	_, err = repo.GetSession(ctx, "live")
	assert.NoError(t, err)
}

func TestSQLiteRepository_AuditEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	events := []AuditEvent{
		{EventID: "e1", EventType: "login", UserID: 1, UserEmail: "ann@example.com", OccurredAt: base},
		{EventID: "e2", EventType: "logout", UserID: 1, UserEmail: "ann@example.com", OccurredAt: base.Add(time.Minute)},
		{EventID: "e3", EventType: "teardown", UserEmail: "bob@example.com", Reason: "unauthorized", OccurredAt: base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		inserted, err := repo.InsertAuditEvent(ctx, e)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	inserted, err := repo.InsertAuditEvent(ctx, events[0])
	require.NoError(t, err)
	assert.False(t, inserted, "redelivered event must be ignored")

	_, err = repo.InsertAuditEvent(ctx, AuditEvent{EventType: "login"})
	assert.Error(t, err)

	all, err := repo.ListAuditEvents(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e3", all[0].EventID)
	assert.Equal(t, "unauthorized", all[0].Reason)

	ann, err := repo.ListAuditEvents(ctx, "ann@example.com", 1)
	require.NoError(t, err)
	require.Len(t, ann, 1)
	assert.Equal(t, "logout", ann[0].EventType)
	assert.True(t, ann[0].OccurredAt.Equal(base.Add(time.Minute)))
}
