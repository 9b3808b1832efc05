package checkpoint

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists checkpoints to Redis.
//
// Layout: each checkpoint lives at <prefix><thread_id>:<step> as a
// JSON blob, with a per-thread ZSET at <prefix><thread_id>:index
// scoring members by step, so Latest and History are single range
// reads. An optional TTL bounds how long paused runs stay resumable.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the expiration for checkpoint records.
// Zero (the default) means no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for checkpoint records.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed checkpoint store.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient creates a store from an existing client.
func NewRedisStoreFromClient(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "stategraph:checkpoint:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(threadID string, step int) string {
	return s.prefix + threadID + ":" + strconv.Itoa(step)
}

func (s *RedisStore) indexKey(threadID string) string {
	return s.prefix + threadID + ":index"
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, cp *Checkpoint) error {
	data, err := cp.Marshal()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// SETNX enforces append-only semantics per (thread, step).
	ok, err := s.client.SetNX(ctx, s.key(cp.ThreadID, cp.Step), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	if !ok {
		return ErrDuplicateStep
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.indexKey(cp.ThreadID), redis.Z{
		Score:  float64(cp.Step),
		Member: strconv.Itoa(cp.Step),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(cp.ThreadID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index checkpoint: %w", err)
	}
	return nil
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, cp *Checkpoint) error {
	data, err := cp.Marshal()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// XX: only overwrite an existing record.
	res, err := s.client.SetXX(ctx, s.key(cp.ThreadID, cp.Step), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	if !res {
		return ErrNotFound
	}
	return nil
}

// Latest implements Store.
func (s *RedisStore) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	steps, err := s.client.ZRevRange(ctx, s.indexKey(threadID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("read checkpoint index: %w", err)
	}
	if len(steps) == 0 {
		return nil, ErrNotFound
	}

	step, err := strconv.Atoi(steps[0])
	if err != nil {
		return nil, fmt.Errorf("corrupt checkpoint index: %w", err)
	}
	return s.load(ctx, threadID, step)
}

// History implements Store.
func (s *RedisStore) History(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	steps, err := s.client.ZRange(ctx, s.indexKey(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read checkpoint index: %w", err)
	}

	history := make([]*Checkpoint, 0, len(steps))
	for _, member := range steps {
		step, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("corrupt checkpoint index: %w", err)
		}
		cp, err := s.load(ctx, threadID, step)
		if err != nil {
			return nil, err
		}
		history = append(history, cp)
	}
	return history, nil
}

func (s *RedisStore) load(ctx context.Context, threadID string, step int) (*Checkpoint, error) {
	val, err := s.client.Get(ctx, s.key(threadID, step)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	cp, err := Unmarshal([]byte(val))
	if err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// DeleteThread implements Store.
func (s *RedisStore) DeleteThread(ctx context.Context, threadID string) error {
	steps, err := s.client.ZRange(ctx, s.indexKey(threadID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("read checkpoint index: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, member := range steps {
		step, err := strconv.Atoi(member)
		if err != nil {
			continue
		}
		pipe.Del(ctx, s.key(threadID, step))
	}
	pipe.Del(ctx, s.indexKey(threadID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
