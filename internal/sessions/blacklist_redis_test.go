package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestBlacklistExpiresWithToken(t *testing.T) {
	m := mr.RunT(t)
	SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	t.Cleanup(func() { SetBlacklistClient(nil) })

	ctx := context.Background()
	require.NoError(t, BlacklistAccessToken(ctx, "eyJhbGciOi.payload.sig", 2*time.Second))

	black, err := IsAccessTokenBlacklisted(ctx, "eyJhbGciOi.payload.sig")
	require.NoError(t, err)
	require.True(t, black)

	for _, k := range m.Keys() {
		require.True(t, strings.HasPrefix(k, "blacklist:access:"))
		require.NotContains(t, k, "payload")
	}

	m.FastForward(3 * time.Second)
	black, err = IsAccessTokenBlacklisted(ctx, "eyJhbGciOi.payload.sig")
	require.NoError(t, err)
	require.False(t, black)

	// already expired tokens are not stored
	require.NoError(t, BlacklistAccessToken(ctx, "old", 0))
	require.Empty(t, m.Keys())
}

func TestBlacklistWithoutRedis(t *testing.T) {
	SetBlacklistClient(nil)
	ctx := context.Background()
	require.NoError(t, BlacklistAccessToken(ctx, "token", time.Second))
	black, err := IsAccessTokenBlacklisted(ctx, "token")
	require.NoError(t, err)
	require.False(t, black)
}
