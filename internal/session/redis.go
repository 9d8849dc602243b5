package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"expensia/internal/core"
)

const (
	redisKeyPrefix = "expensia:session:"
	fieldToken     = "token"
	fieldUser      = "user"
)

// hashStore is the part of redis the session store needs. It exists so the
// store can be tested without a server.
type hashStore interface {
	// SetHash writes every field and the expiry in one MULTI/EXEC.
	SetHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	// ReplaceHash writes like SetHash but only while key exists. It reports
	// false when the key is gone.
	ReplaceHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) (bool, error)
	GetHash(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// RedisStore keeps each session as a hash holding the token and the
// encoded user.
type RedisStore struct {
	hashes hashStore
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{hashes: redisHashes{client: client}}
}

func newRedisStoreWith(h hashStore) *RedisStore {
	return &RedisStore{hashes: h}
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Record, error) {
	key := redisKeyPrefix + id
	fields, err := s.hashes.GetHash(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec := &Record{Token: fields[fieldToken]}
	user, err := decodeUser(fields[fieldUser])
	if err == nil {
		rec.User = user
	}
	if err != nil || !rec.Valid() {
		if delErr := s.hashes.Del(ctx, key); delErr != nil {
			return nil, fmt.Errorf("delete incomplete session: %w", delErr)
		}
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	if !rec.Valid() {
		return errInvalidRecord
	}
	user, err := encodeUser(rec.User)
	if err != nil {
		return err
	}
	return s.hashes.SetHash(ctx, redisKeyPrefix+id, map[string]string{
		fieldToken: rec.Token,
		fieldUser:  user,
	}, ttl)
}

func (s *RedisStore) Replace(ctx context.Context, id string, rec *Record, ttl time.Duration) error {
	if !rec.Valid() {
		return errInvalidRecord
	}
	user, err := encodeUser(rec.User)
	if err != nil {
		return err
	}
	ok, err := s.hashes.ReplaceHash(ctx, redisKeyPrefix+id, map[string]string{
		fieldToken: rec.Token,
		fieldUser:  user,
	}, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.hashes.Del(ctx, redisKeyPrefix+id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.hashes.Close()
}

func encodeUser(u core.User) (string, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode session user: %w", err)
	}
	return string(data), nil
}

func decodeUser(s string) (core.User, error) {
	var u core.User
	if s == "" {
		return u, errInvalidRecord
	}
	if err := json.Unmarshal([]byte(s), &u); err != nil {
		return u, fmt.Errorf("%w: %v", errInvalidRecord, err)
	}
	return u, nil
}

// redisHashes adapts go-redis to hashStore.
type redisHashes struct {
	client *redis.Client
}

func (r redisHashes) SetHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// maxReplaceAttempts bounds retries when another writer touches the key
// between WATCH and EXEC.
const maxReplaceAttempts = 3

func (r redisHashes) ReplaceHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) (bool, error) {
	for range maxReplaceAttempts {
		replaced := false
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, fields)
				pipe.Expire(ctx, key, ttl)
				return nil
			})
			if err == nil {
				replaced = true
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("replace session: %w", err)
		}
		return replaced, nil
	}
	return false, fmt.Errorf("replace session: %w", redis.TxFailedErr)
}

func (r redisHashes) GetHash(ctx context.Context, key string) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return fields, err
}

func (r redisHashes) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r redisHashes) Close() error {
	return r.client.Close()
}
