package relay

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore reserves room codes. A shared store lets several relay replicas
// hand out codes without collisions.
type CodeStore interface {
	// Reserve claims code. It reports false if the code is already taken.
	Reserve(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

// MemoryCodes is a CodeStore local to one relay process.
type MemoryCodes struct {
	mu    sync.Mutex
	codes map[string]struct{}
}

func NewMemoryCodes() *MemoryCodes {
	return &MemoryCodes{codes: make(map[string]struct{})}
}

func (m *MemoryCodes) Reserve(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[code]; ok {
		return false, nil
	}
	m.codes[code] = struct{}{}
	return true, nil
}

func (m *MemoryCodes) Release(ctx context.Context, code string) error {
	m.mu.Lock()
	delete(m.codes, code)
	m.mu.Unlock()
	return nil
}

// RedisCodes stores reservations in Redis with a TTL, so codes held by a
// crashed replica eventually become available again.
type RedisCodes struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// DefaultCodeTTL bounds how long a room code stays reserved.
const DefaultCodeTTL = 24 * time.Hour

// ConnectRedis opens a client for addr and checks it with a ping.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (r *RedisCodes) key(code string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "multiplay:room:"
	}
	return prefix + code
}

func (r *RedisCodes) Reserve(ctx context.Context, code string) (bool, error) {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return r.Client.SetNX(ctx, r.key(code), time.Now().Unix(), ttl).Result()
}

func (r *RedisCodes) Release(ctx context.Context, code string) error {
	return r.Client.Del(ctx, r.key(code)).Err()
}
