package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
)

// RedisConfig configures the Redis-backed Task Store (spec.md §6's
// task-store TTL/prefix knobs).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces task keys so one Redis instance can back
	// multiple gateway deployments.
	KeyPrefix string
	// TTL expires stored tasks after inactivity; zero means no expiry.
	TTL time.Duration
}

// RedisStore implements a2asrv.TaskStore on top of a Redis string per
// task id, JSON-encoded, with an optional TTL.
type RedisStore struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedisStore validates connectivity with a Ping and returns the
// store as an a2asrv.TaskStore.
func NewRedisStore(cfg RedisConfig) (a2asrv.TaskStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis store: ping failed: %w", err)
	}

	return &RedisStore{client: client, cfg: cfg}, nil
}

func (s *RedisStore) key(taskID a2a.TaskID) string {
	return s.cfg.KeyPrefix + string(taskID)
}

// Save serializes the task as JSON and stores it under its key,
// resetting the TTL on every write.
func (s *RedisStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("redis store: task is required")
	}
	encoded, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("redis store: marshal task %s: %w", task.ID, err)
	}
	if err := s.client.Set(ctx, s.key(task.ID), encoded, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis store: save task %s: %w", task.ID, err)
	}
	return nil
}

// Get loads and decodes a task by id.
func (s *RedisStore) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	encoded, err := s.client.Get(ctx, s.key(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, a2a.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get task %s: %w", taskID, err)
	}

	var task a2a.Task
	if err := json.Unmarshal(encoded, &task); err != nil {
		return nil, fmt.Errorf("redis store: unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ a2asrv.TaskStore = (*RedisStore)(nil)
