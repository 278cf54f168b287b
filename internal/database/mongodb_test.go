package database

import (
	"context"
	"testing"
	"time"

	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexModels(t *testing.T) {
	doc := models.DocumentSpec{
		Name: "X", Collection: "x",
		Indexes: []models.Index{
			{Keys: []string{"email"}, Unique: true},
			{Keys: []string{"group_id", "user_id"}},
		},
	}
	ims := IndexModels(doc)
	require.Len(t, ims, 2)
	require.Equal(t, bson.D{{Key: "email", Value: 1}}, ims[0].Keys)
	require.NotNil(t, ims[0].Options)
	require.True(t, *ims[0].Options.Unique)
	require.Equal(t, bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}}, ims[1].Keys)
	require.Nil(t, ims[1].Options)
}

func TestConnectWithRetry_Fails(t *testing.T) {
	// nothing listens on this port; every attempt fails fast
	ctx := context.Background()
	_, err := ConnectWithRetry(ctx, "mongodb://127.0.0.1:1/?connect=direct", Options{Timeout: 50 * time.Millisecond}, 2, time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 2 attempts")
}
