package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoked access tokens live in Redis until their own expiry. Without a
// client the blacklist is disabled and every token is accepted.
var blacklistClient *redis.Client

func SetBlacklistClient(c *redis.Client) {
	blacklistClient = c
}

// blacklistKey stores a digest so keys stay short and raw JWTs never sit in Redis.
func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "blacklist:access:" + hex.EncodeToString(sum[:])
}

// BlacklistAccessToken revokes token for ttl. A non-positive ttl means the
// token has already expired and nothing is stored.
func BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	if blacklistClient == nil || ttl <= 0 {
		return nil
	}
	return blacklistClient.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

func IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if blacklistClient == nil {
		return false, nil
	}
	n, err := blacklistClient.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
