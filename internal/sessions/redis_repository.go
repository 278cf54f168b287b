package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each session as JSON under <prefix><refresh token>
// and indexes a user's refresh tokens in the set <prefix>user:<id>.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(refresh string) string { return r.prefix + refresh }

func (r *RedisRepository) userKey(userID string) string { return r.prefix + "user:" + userID }

func (r *RedisRepository) Create(ctx context.Context, s *models.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(s.RefreshToken), b, ttl)
	pipe.SAdd(ctx, r.userKey(s.UserID), s.RefreshToken)
	// sessions share one TTL, so the index follows the newest
	pipe.Expire(ctx, r.userKey(s.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*models.Session, error) {
	b, err := r.client.Get(ctx, r.key(refresh)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if models.Now().After(s.ExpiresAt) {
		return nil, r.DeleteByRefresh(ctx, refresh)
	}
	return &s, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	s, err := r.peek(ctx, refresh)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(refresh))
	if s != nil {
		pipe.SRem(ctx, r.userKey(s.UserID), refresh)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteByUser drops every session of userID and returns how many existed.
func (r *RedisRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	refresh, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	keys := []string{r.userKey(userID)}
	for _, t := range refresh {
		keys = append(keys, r.key(t))
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	// the index key itself is not a session
	if len(refresh) > 0 {
		n--
	}
	return int(n), nil
}

func (r *RedisRepository) peek(ctx context.Context, refresh string) (*models.Session, error) {
	b, err := r.client.Get(ctx, r.key(refresh)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s models.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
