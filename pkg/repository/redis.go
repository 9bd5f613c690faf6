package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type RedisRepository struct {
	client   *redis.Client
	config   *config.RedisConfig
	orderTTL time.Duration
}

func NewRedisRepository(cfg *config.RedisConfig, orderTTL time.Duration) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config:   cfg,
		orderTTL: orderTTL,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON decodes key into dest. It reports false, nil on a cache miss.
func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Order cache

func orderKey(id string) string { return fmt.Sprintf("order:%s", id) }

func (r *RedisRepository) SetOrder(ctx context.Context, o *models.Order) error {
	return r.SetJSON(ctx, orderKey(o.ID.Hex()), o, r.orderTTL)
}

func (r *RedisRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	ok, err := r.GetJSON(ctx, orderKey(id), &o)
	if err != nil || !ok {
		return nil, err
	}
	return &o, nil
}

func (r *RedisRepository) InvalidateOrders(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = orderKey(id)
	}
	return r.Del(ctx, keys...)
}

// Sessions

func sessionKey(token string) string { return fmt.Sprintf("session:%s", token) }

func (r *RedisRepository) SaveSession(ctx context.Context, s *models.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", s.UserID)
	}
	return r.SetJSON(ctx, sessionKey(s.Token), s, ttl)
}

func (r *RedisRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	ok, err := r.GetJSON(ctx, sessionKey(token), &s)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

func (r *RedisRepository) DeleteSession(ctx context.Context, token string) error {
	return r.Del(ctx, sessionKey(token))
}

// Locks

func lockKey(name string) string { return fmt.Sprintf("lock:%s", name) }

// releaseLock deletes the key only while it still holds the caller's token.
var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Acquire takes a best-effort lock that expires after ttl. The returned
// token identifies this holder and must be passed to Release.
func (r *RedisRepository) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// Release frees the lock if token still owns it. A lock that expired and
// was taken by someone else is left alone.
func (r *RedisRepository) Release(ctx context.Context, name, token string) error {
	return releaseLock.Run(ctx, r.client, []string{lockKey(name)}, token).Err()
}
