package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BatmanBruc/file-share-bot/types"
)

// setupPostgres starts a throwaway Postgres and returns a migrated store.
func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("set TEST_INTEGRATION to run Postgres integration tests")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("filebot_test"),
		postgres.WithUsername("filebot"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestPostgresAdCycle(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	const user = int64(10)

	require.NoError(t, s.TouchFileAccess(ctx, user, now))
	require.NoError(t, s.BeginAdAttempt(ctx, user, "p1", now))

	ok, err := s.MarkAdClicked(ctx, user, "other", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkAdClicked(ctx, user, "p1", now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkAdVerified(ctx, user, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := s.GetAdClickState(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, types.AdStatusVerified, st.Status)
	assert.Equal(t, 1, st.TotalViews)
	require.Len(t, st.History, 1)
	assert.NotNil(t, st.History[0].ClickTime)
	assert.NotNil(t, st.History[0].VerifiedTime)

	_, err = s.GetAdClickState(ctx, 999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPostgresDeletions(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.ScheduleDeletion(ctx, &types.ScheduledDeletion{
			FileID:    "f",
			ChatID:    7,
			MessageID: i,
			DeleteAt:  now.Add(-time.Duration(4-i) * time.Minute),
		}))
	}
	require.NoError(t, s.ScheduleDeletion(ctx, &types.ScheduledDeletion{
		ChatID: 7, MessageID: 99, DeleteAt: now.Add(time.Hour),
	}))

	due, remaining, err := s.DueDeletions(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, 1, due[0].MessageID)
	assert.NotEmpty(t, due[0].ID)

	require.NoError(t, s.RemoveDeletion(ctx, due[0].ID))
	require.NoError(t, s.RemoveDeletion(ctx, due[0].ID), "second removal is a no-op")

	n, err := s.CountPendingDeletions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPostgresUsersAndFiles(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateFile(ctx, &types.FileRecord{
		MessageID: 5, Name: "a.pdf", Size: 10, UploadedBy: 1, UploadMethod: types.UploadMethodBot, CreatedAt: now,
	}))
	f, err := s.GetFile(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", f.Name)

	require.NoError(t, s.BanUser(ctx, types.BannedUser{UserID: 3, BannedAt: now}))
	banned, err := s.IsBanned(ctx, 3)
	require.NoError(t, err)
	assert.True(t, banned)
	was, err := s.UnbanUser(ctx, 3)
	require.NoError(t, err)
	assert.True(t, was)

	require.NoError(t, s.TouchUser(ctx, types.BotUser{UserID: 3, FirstName: "A", LastActive: now}))
	require.NoError(t, s.TouchUser(ctx, types.BotUser{UserID: 3, FirstName: "B", LastActive: now}))
	users, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)

	require.NoError(t, s.SaveSettings(ctx, map[string]any{"autoDeleteTime": 30}))
	got, err := s.LoadSettings(ctx, types.Settings{AdWaitTime: 10})
	require.NoError(t, err)
	assert.Equal(t, 30, got.AutoDeleteTime)
	assert.Equal(t, 10, got.AdWaitTime)
}
