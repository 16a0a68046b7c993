package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/file-share-bot/store"
	"github.com/BatmanBruc/file-share-bot/types"
)

type flakyStore struct {
	inner *store.MemoryStore
	fail  bool
	loads int
}

func (f *flakyStore) LoadSettings(ctx context.Context, base types.Settings) (types.Settings, error) {
	f.loads++
	if f.fail {
		return base, errors.New("db down")
	}
	return f.inner.LoadSettings(ctx, base)
}

func TestCachedRefreshesAfterTTL(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	fs := &flakyStore{inner: mem}
	defaults := types.Settings{AutoDeleteTime: 60, AdWaitTime: 10}

	c := NewCached(fs, defaults, time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	assert.Equal(t, 60, c.Get(ctx).AutoDeleteTime)

	require.NoError(t, mem.SaveSettings(ctx, map[string]any{"autoDeleteTime": 120}))
	now = now.Add(30 * time.Second)
	assert.Equal(t, 60, c.Get(ctx).AutoDeleteTime, "still cached")

	now = now.Add(31 * time.Second)
	got := c.Get(ctx)
	assert.Equal(t, 120, got.AutoDeleteTime)
	assert.Equal(t, 10, got.AdWaitTime, "unset keys fall back to defaults")
	assert.Equal(t, 2, fs.loads)
}

func TestCachedKeepsLastGoodOnError(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.SaveSettings(ctx, map[string]any{"adEnabled": true}))
	fs := &flakyStore{inner: mem}

	c := NewCached(fs, types.Settings{}, 0, nil)
	assert.True(t, c.Get(ctx).AdEnabled)

	fs.fail = true
	c.Invalidate()
	assert.True(t, c.Get(ctx).AdEnabled)
}

func TestCachedDefaultsWhenNeverLoaded(t *testing.T) {
	fs := &flakyStore{inner: store.NewMemoryStore(), fail: true}
	c := NewCached(fs, types.Settings{AdWaitTime: 7}, time.Minute, nil)
	assert.Equal(t, 7, c.Get(context.Background()).AdWaitTime)
}

func TestListenInvalidates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mem := store.NewMemoryStore()
	fs := &flakyStore{inner: mem}
	c := NewCached(fs, types.Settings{}, 0, nil)
	_ = c.Get(ctx)

	changes := make(chan struct{})
	done := make(chan struct{})
	go func() {
		c.Listen(ctx, changes)
		close(done)
	}()

	require.NoError(t, mem.SaveSettings(ctx, map[string]any{"protectContent": true}))
	changes <- struct{}{}
	close(changes)
	<-done

	assert.True(t, c.Get(ctx).ProtectContent)
}
