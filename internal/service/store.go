package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/locate"
)

// SessionRecord is the persisted part of a session. Everything else is
// derived from the catalog on restore.
type SessionRecord struct {
	Selected string         `json:"selected"`
	Marker   *locate.Marker `json:"marker,omitempty"`
}

// SessionStore persists session records across restarts and replicas.
type SessionStore interface {
	Load(ctx context.Context, id string) (SessionRecord, bool, error)
	Save(ctx context.Context, id string, rec SessionRecord) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps records in process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]SessionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]SessionRecord)}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok, nil
}

func (s *MemoryStore) Save(ctx context.Context, id string, rec SessionRecord) error {
	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

// RedisConfig locates the Redis server backing RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps records as JSON strings under "tmap:session:<id>".
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenRedisStore connects to Redis and pings it once.
func OpenRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedisStore(client, cfg.TTL), nil
}

// NewRedisStore wraps an existing client. A zero ttl keeps records forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string { return "tmap:session:" + id }

func (s *RedisStore) Load(ctx context.Context, id string) (SessionRecord, bool, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return SessionRecord{}, false, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return rec, true, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, rec SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(id), data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
