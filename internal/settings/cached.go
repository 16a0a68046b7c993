package settings

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/types"
)

// Cached serves the bot settings document from memory. A snapshot is
// reloaded when it is older than ttl or after Invalidate. A ttl of zero
// means only Invalidate triggers a reload.
type Cached struct {
	store    types.SettingsStore
	defaults types.Settings
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	current  types.Settings
	loadedAt time.Time
	loaded   bool
	stale    bool
}

func NewCached(store types.SettingsStore, defaults types.Settings, ttl time.Duration, log *zap.Logger) *Cached {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{
		store:    store,
		defaults: defaults,
		ttl:      ttl,
		log:      log.Named("settings"),
		now:      time.Now,
		current:  defaults,
	}
}

// Get returns the current settings. On a failed reload the last good
// snapshot is kept, or the defaults if nothing was ever loaded.
func (c *Cached) Get(ctx context.Context) types.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.loaded && !c.stale && (c.ttl <= 0 || now.Sub(c.loadedAt) < c.ttl) {
		return c.current
	}

	s, err := c.store.LoadSettings(ctx, c.defaults)
	if err != nil {
		c.log.Warn("reload settings", zap.Error(err))
		return c.current
	}
	c.current = s
	c.loadedAt = now
	c.loaded = true
	c.stale = false
	return c.current
}

func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Listen invalidates the snapshot for every signal on changes until ctx is
// done or changes is closed.
func (c *Cached) Listen(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			c.log.Debug("settings invalidated")
			c.Invalidate()
		}
	}
}
