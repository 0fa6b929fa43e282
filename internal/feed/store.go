package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vadimtrunov/CineScroll/internal/cache"
	"github.com/vadimtrunov/CineScroll/internal/metadata/tmdb"
)

// Store holds resolved listing pages by request identity.
type Store interface {
	Get(ctx context.Context, key string) (*tmdb.MoviePage, bool, error)
	Set(ctx context.Context, key string, page *tmdb.MoviePage) error
}

// MemoryStore keeps pages in process memory.
type MemoryStore struct {
	pages *cache.TTL[*tmdb.MoviePage]
}

// NewMemoryStore creates an in-memory store whose pages expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{pages: cache.New[*tmdb.MoviePage](ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*tmdb.MoviePage, bool, error) {
	p, ok := s.pages.Get(key)
	return p, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, page *tmdb.MoviePage) error {
	s.pages.Set(key, page)
	return nil
}

const redisKeyPrefix = "cinescroll:page:"

// RedisStore shares resolved pages between processes, e.g. several API
// server replicas behind one TMDb quota.
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*tmdb.MoviePage, bool, error) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var page tmdb.MoviePage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, false, fmt.Errorf("decode cached page: %w", err)
	}
	return &page, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, page *tmdb.MoviePage) error {
	if s.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
