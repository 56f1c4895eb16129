package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"streakbot/core"
	"streakbot/leaderboard"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// maxTxRetries bounds the optimistic WATCH retry loop.
const maxTxRetries = 5

// Store implements engine.Storage on Redis.
// Data structure:
// - user:{id}:record -> JSON blob of core.UserRecord
// - users            -> set of known user ids
// Atomic updates use WATCH plus a transactional pipeline, retried on
// conflict, so concurrent same-user actions never lose an increment.
type Store struct {
	client *redis.Client
}

// New creates a Redis-backed store with the provided configuration.
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing).
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func userKey(id core.UserID) string {
	return fmt.Sprintf("user:%s:record", id)
}

const usersKey = "users"

func decodeRecord(data []byte) (core.UserRecord, error) {
	var rec core.UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.UserRecord{}, fmt.Errorf("decode user record: %w", err)
	}
	return rec, nil
}

func (s *Store) Find(ctx context.Context, id core.UserID) (core.UserRecord, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.UserRecord{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return decodeRecord(data)
}

func (s *Store) Ensure(ctx context.Context, id core.UserID, displayName, handle string) (core.UserRecord, error) {
	var out core.UserRecord
	err := s.withTx(ctx, id, func(tx *redis.Tx) error {
		rec := core.UserRecord{ID: id, Updated: time.Now().UTC()}
		data, err := tx.Get(ctx, userKey(id)).Bytes()
		if err == nil {
			if rec, err = decodeRecord(data); err != nil {
				return err
			}
		} else if !errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
		if displayName != "" {
			rec.DisplayName = displayName
		}
		if handle != "" {
			rec.Handle = handle
		}
		if err := s.writeRecord(ctx, tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return core.UserRecord{}, err
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id core.UserID, fn func(*core.UserRecord) error) (core.UserRecord, error) {
	var out core.UserRecord
	err := s.withTx(ctx, id, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, userKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return core.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
		if err := s.writeRecord(ctx, tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return core.UserRecord{}, err
	}
	return out, nil
}

func (s *Store) Reset(ctx context.Context, id core.UserID) (bool, error) {
	existed := false
	err := s.withTx(ctx, id, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, userKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		existed = true
		return s.writeRecord(ctx, tx, core.ResetRecord(rec, time.Now()))
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

func (s *Store) TopN(ctx context.Context, n int) ([]core.UserRecord, error) {
	ids, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(core.UserID(id))
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	recs := make([]core.UserRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // member without a record, skip
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			continue
		}
		recs = append(recs, rec)
	}

	leaderboard.Sort(recs)
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs, nil
}

// withTx runs fn under WATCH on the user's record key, retrying on
// transaction conflicts. Mutator errors pass through untouched.
func (s *Store) withTx(ctx context.Context, id core.UserID, fn func(*redis.Tx) error) error {
	key := userKey(id)
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: transaction retries exhausted", core.ErrStoreUnavailable)
}

// writeRecord persists rec inside the watched transaction.
func (s *Store) writeRecord(ctx context.Context, tx *redis.Tx, rec core.UserRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(rec.ID), data, 0)
		pipe.SAdd(ctx, usersKey, string(rec.ID))
		return nil
	})
	return err
}
