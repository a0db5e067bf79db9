package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Skufu/vetdiag/internal/model"
)

// ErrCacheMiss means the key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// KV is the key/value surface the prediction cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// RedisKV adapts a go-redis client to KV.
type RedisKV struct {
	Client *redis.Client
}

// OpenRedis parses a redis:// URL and returns a connected KV.
func OpenRedis(url string) (*RedisKV, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisKV{Client: redis.NewClient(opts)}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisKV) Close() error {
	return r.Client.Close()
}

// MemoryKV is an in-process KV used in tests and when Redis is not configured.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.values[key]
	if !ok || (!e.expires.IsZero() && m.now().After(e.expires)) {
		delete(m.values, key)
		return "", ErrCacheMiss
	}
	return e.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.values[key] = e
	return nil
}

func (m *MemoryKV) Ping(context.Context) error { return nil }

// CachedClassifier answers repeated inputs from a KV before calling the model.
// Cache failures never fail a prediction.
type CachedClassifier struct {
	next       model.Classifier
	kv         KV
	ttl        time.Duration
	generation func() int64
	logger     *zap.Logger
}

// NewCachedClassifier wraps next. generation namespaces keys so a model reload
// stops serving answers from the previous model; nil means a fixed namespace.
func NewCachedClassifier(next model.Classifier, kv KV, ttl time.Duration, generation func() int64, logger *zap.Logger) *CachedClassifier {
	if generation == nil {
		generation = func() int64 { return 0 }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClassifier{next: next, kv: kv, ttl: ttl, generation: generation, logger: logger.Named("cache")}
}

// CacheKey derives the key for in under model generation gen. Only runs of
// whitespace are collapsed; case is kept because a vectorizer exported with
// lowercase=false scores "Kembung" and "kembung" differently.
func CacheKey(in model.Input, gen int64) string {
	norm := strings.Join(strings.Fields(in.Species), " ") + "\x00" +
		strings.Join(strings.Fields(in.Symptoms), " ")
	sum := sha256.Sum256([]byte(norm))
	return "vetdiag:pred:" + strconv.FormatInt(gen, 10) + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedClassifier) Predict(ctx context.Context, in model.Input) (model.Prediction, error) {
	key := CacheKey(in, c.generation())

	if raw, err := c.kv.Get(ctx, key); err == nil {
		var p model.Prediction
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			CacheLookups.WithLabelValues("hit").Inc()
			return p, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache get failed", zap.Error(err))
	} else {
		CacheLookups.WithLabelValues("miss").Inc()
	}

	p, err := c.next.Predict(ctx, in)
	if err != nil {
		return p, err
	}
	if raw, err := json.Marshal(p); err == nil {
		if err := c.kv.Set(ctx, key, string(raw), c.ttl); err != nil {
			c.logger.Warn("cache set failed", zap.Error(err))
		}
	}
	return p, nil
}
