package crm

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/goccy/go-json"
	extErrors "github.com/pkg/errors"
)

// DefaultRedisKey is where RedisCache keeps the shared token
const DefaultRedisKey = "crm:access_token"

// TokenCache stores at most one Token. Get returns nil, nil on a miss.
type TokenCache interface {
	Get(ctx context.Context) (*Token, error)
	Set(ctx context.Context, tok *Token) error
	Delete(ctx context.Context) error
}

// MemoryCache keeps the token in process memory
type MemoryCache struct {
	mu  sync.RWMutex
	tok *Token
}

var _ TokenCache = &MemoryCache{}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) Get(ctx context.Context) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tok == nil {
		return nil, nil
	}
	tok := *m.tok
	return &tok, nil
}

func (m *MemoryCache) Set(ctx context.Context, tok *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok == nil {
		m.tok = nil
		return nil
	}
	cp := *tok
	m.tok = &cp
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context) error {
	m.mu.Lock()
	m.tok = nil
	m.mu.Unlock()
	return nil
}

// RedisCache shares the token between replicas. The key expires together with the token.
type RedisCache struct {
	rdb redis.UniversalClient
	key string
}

var _ TokenCache = &RedisCache{}

func NewRedisCache(rdb redis.UniversalClient, key string) *RedisCache {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCache{
		rdb: rdb,
		key: key,
	}
}

// cmd binds ctx to the client so deadlines and cancellation reach redis
func (c *RedisCache) cmd(ctx context.Context) redis.Cmdable {
	switch rdb := c.rdb.(type) {
	case *redis.Client:
		return rdb.WithContext(ctx)
	case *redis.ClusterClient:
		return rdb.WithContext(ctx)
	case *redis.Ring:
		return rdb.WithContext(ctx)
	}
	return c.rdb
}

func (c *RedisCache) Get(ctx context.Context) (*Token, error) {
	b, err := c.cmd(ctx).Get(c.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot get token from redis")
	}
	var tok Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, extErrors.Wrap(err, "Cannot decode cached token")
	}
	return &tok, nil
}

func (c *RedisCache) Set(ctx context.Context, tok *Token) error {
	if tok == nil {
		return c.Delete(ctx)
	}
	var ttl time.Duration
	if !tok.ExpiresAt.IsZero() {
		ttl = time.Until(tok.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode token")
	}
	if err := c.cmd(ctx).Set(c.key, b, ttl).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot set token in redis")
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context) error {
	if err := c.cmd(ctx).Del(c.key).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot delete token from redis")
	}
	return nil
}
