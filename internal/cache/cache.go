// Package cache 保存异步规划任务的状态与结果
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
)

// Entry 一个任务的缓存内容
type Entry struct {
	RunID     string          `json:"run_id"`
	Status    model.RunStatus `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store 任务结果存储
type Store interface {
	Put(ctx context.Context, e *Entry) error
	Get(ctx context.Context, runID string) (*Entry, error)
}

// RedisStore 基于 Redis 的结果存储，条目在 ttl 后过期
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 结果存储
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "caidan:plan:", ttl: ttl}
}

func (s *RedisStore) key(runID string) string {
	return s.prefix + runID
}

// Put 写入条目
func (s *RedisStore) Put(ctx context.Context, e *Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("序列化任务结果失败: %w", err)
	}
	if err := s.client.Set(ctx, s.key(e.RunID), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "写入结果缓存失败").WithField("run_id", e.RunID)
	}
	return nil
}

// Get 读取条目，不存在或已过期时返回 NOT_FOUND
func (s *RedisStore) Get(ctx context.Context, runID string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err == redis.Nil {
		return nil, errors.NotFound("规划任务", runID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "读取结果缓存失败").WithField("run_id", runID)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "解析任务结果失败").WithField("run_id", runID)
	}
	return &e, nil
}

// MemoryStore 进程内结果存储，未配置 Redis 时使用
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore 创建进程内存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Put(_ context.Context, e *Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.RunID] = *e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[runID]
	if !ok {
		return nil, errors.NotFound("规划任务", runID)
	}
	return &e, nil
}
