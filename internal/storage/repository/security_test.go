package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

func TestStorage_LoginAttempts(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	now := time.Now()

	factory.CreateLoginAttempt(t, "10.0.0.1", models.LoginTypeAdmin, false, now.Add(-time.Minute))
	factory.CreateLoginAttempt(t, "10.0.0.1", models.LoginTypeAdmin, false, now.Add(-2*time.Minute))
	factory.CreateLoginAttempt(t, "10.0.0.1", models.LoginTypeAdmin, true, now.Add(-3*time.Minute))
	factory.CreateLoginAttempt(t, "10.0.0.1", models.LoginTypeAdmin, false, now.Add(-time.Hour))
	factory.CreateLoginAttempt(t, "10.0.0.1", "user", false, now.Add(-time.Minute))
	factory.CreateLoginAttempt(t, "10.0.0.2", models.LoginTypeAdmin, false, now.Add(-time.Minute))
	factory.CreateLoginAttempt(t, "10.0.0.1", models.LoginTypeAdmin, false, now.Add(-25*time.Hour))

	count, err := storage.CountFailedAttempts(ctx, "10.0.0.1", models.LoginTypeAdmin, now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only failures of this ip and login type inside the window")

	purged, err := storage.PurgeLoginAttempts(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	require.NoError(t, storage.RecordLoginAttempt(ctx, models.LoginAttempt{
		IPAddress: "10.0.0.1", Username: "admin", LoginType: models.LoginTypeAdmin,
	}))
	count, err = storage.CountFailedAttempts(ctx, "10.0.0.1", models.LoginTypeAdmin, now.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStorage_UserUUIDs(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	now := time.Now()

	_, err := storage.GetLatestUUID(ctx, "alice")
	require.ErrorIs(t, err, models.ErrNotFound)

	factory.CreateUUID(t, "alice", "old-uuid", now.Add(-time.Hour))
	factory.CreateUUID(t, "alice", "new-uuid", now.Add(-time.Minute))

	uuid, err := storage.GetLatestUUID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new-uuid", uuid, "latest created_at wins")

	require.NoError(t, storage.SaveUUID(ctx, "alice", "old-uuid"))
	uuid, err = storage.GetLatestUUID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "old-uuid", uuid, "re-saving refreshes created_at")

	all, err := storage.ListUUIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, storage.DeleteUUIDs(ctx, "alice"))
	_, err = storage.GetLatestUUID(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
