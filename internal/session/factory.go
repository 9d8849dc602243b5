package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"expensia/internal/cache"
	"expensia/internal/config"
	"expensia/internal/storage"
)

// BackendType names a session store implementation.
type BackendType string

const (
	MemoryBackend BackendType = config.BackendMemory
	SQLiteBackend BackendType = config.BackendSQLite
	RedisBackend  BackendType = config.BackendRedis
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, RedisBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases the resources behind a store.
type CleanupFunc func() error

// StoreResult contains the store instance and its cleanup function
type StoreResult struct {
	Store   Store
	Backend BackendType
	Cleanup CleanupFunc
}

// Factory creates session stores based on configuration
type Factory interface {
	CreateStore(ctx context.Context, cfg *config.Config) (*StoreResult, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	caches *cache.Manager
}

// NewFactory creates a store factory. Stores that need periodic expiry are
// registered with caches when it is non-nil.
func NewFactory(logger *slog.Logger, caches *cache.Manager) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger, caches: caches}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, cfg *config.Config) (*StoreResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}
	backend := BackendType(cfg.SessionBackend)
	if !backend.IsValid() {
		return nil, fmt.Errorf("invalid session backend: %s", cfg.SessionBackend)
	}

	switch backend {
	case SQLiteBackend:
		return f.createSQLiteStore(cfg)
	case RedisBackend:
		return f.createRedisStore(ctx, cfg)
	default:
		return f.createMemoryStore(cfg)
	}
}

func (f *DefaultFactory) createMemoryStore(cfg *config.Config) (*StoreResult, error) {
	store := NewMemoryStore(defaultMemorySessions, cfg.SessionTTL, f.caches)

	f.logger.Info("Initialized memory session store", "max_sessions", defaultMemorySessions)

	return &StoreResult{Store: store, Backend: MemoryBackend, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createSQLiteStore(cfg *config.Config) (*StoreResult, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	store := NewSQLiteStore(repo)
	if f.caches != nil {
		f.caches.Register("sqlite_sessions", store)
	}

	f.logger.Info("Initialized SQLite session store", "db_path", cfg.SQLiteDBPath)

	return &StoreResult{Store: store, Backend: SQLiteBackend, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createRedisStore(ctx context.Context, cfg *config.Config) (*StoreResult, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	store := NewRedisStore(client)

	f.logger.Info("Initialized redis session store", "addr", cfg.RedisAddr, "db", cfg.RedisDB)

	return &StoreResult{Store: store, Backend: RedisBackend, Cleanup: store.Close}, nil
}
