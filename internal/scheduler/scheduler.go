package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/messages"
	"github.com/BatmanBruc/file-share-bot/internal/metrics"
	"github.com/BatmanBruc/file-share-bot/types"
)

const (
	DefaultBatchSize = 10
	MaxBatchSize     = 100
)

// MessageAPI is the part of the Telegram client the reaper needs.
type MessageAPI interface {
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type SettingsSource interface {
	Get(ctx context.Context) types.Settings
}

// Locker hands out a named lease shared by every running instance.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(context.Context), acquired bool, err error)
}

const leaseName = "reaper"

type Config struct {
	// Interval of the in-process loop. Zero leaves the reaper to the cron
	// endpoint only.
	Interval  time.Duration
	BatchSize int
	// MaxRuns bounds the catch-up batches run back to back on one tick.
	MaxRuns int
}

type ItemError struct {
	ID     string
	FileID string
	Err    error
}

type Result struct {
	Processed int
	Remaining int
	Errors    []ItemError
}

// Reaper deletes delivered messages whose auto-delete time has passed.
type Reaper struct {
	store    types.DeletionStore
	api      MessageAPI
	settings SettingsSource
	locker   Locker
	log      *zap.Logger
	cfg      Config
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	trigger chan struct{}
}

func NewReaper(store types.DeletionStore, api MessageAPI, settings SettingsSource, log *zap.Logger, cfg Config) *Reaper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{
		store:    store,
		api:      api,
		settings: settings,
		log:      log.Named("reaper"),
		cfg:      cfg,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// ClampBatchSize bounds a caller supplied batch size to [1, MaxBatchSize].
func ClampBatchSize(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}

// Schedule stores a deletion. Duplicates for the same message are allowed.
func (r *Reaper) Schedule(ctx context.Context, d *types.ScheduledDeletion) error {
	if err := r.store.ScheduleDeletion(ctx, d); err != nil {
		return errors.Wrapf(err, "schedule deletion of message %d", d.MessageID)
	}
	return nil
}

// ProcessBatch handles up to batchSize overdue deletions. A record is
// removed even when deleting its message fails, so a poisoned record is
// never retried. Only the initial fetch can fail the whole batch.
func (r *Reaper) ProcessBatch(ctx context.Context, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = r.cfg.BatchSize
	}
	due, remaining, err := r.store.DueDeletions(ctx, r.now(), batchSize)
	if err != nil {
		return Result{}, errors.Wrap(err, "load due deletions")
	}
	res := Result{Remaining: remaining}
	if len(due) == 0 {
		metrics.ReaperRemaining.Set(0)
		return res, nil
	}

	successMsg := messages.Multiline(r.settings.Get(ctx).AutoDelSuccessMsg)

	for _, d := range due {
		if err := r.reap(ctx, d, successMsg); err != nil {
			r.log.Warn("reap failed", zap.String("id", d.ID), zap.String("file_id", d.FileID), zap.Error(err))
			res.Errors = append(res.Errors, ItemError{ID: d.ID, FileID: d.FileID, Err: err})
			if rmErr := r.store.RemoveDeletion(ctx, d.ID); rmErr != nil {
				r.log.Error("remove poisoned deletion", zap.String("id", d.ID), zap.Error(rmErr))
			}
			continue
		}
		res.Processed++
	}

	metrics.ReaperProcessedTotal.Add(float64(res.Processed))
	metrics.ReaperErrorsTotal.Add(float64(len(res.Errors)))
	metrics.ReaperRemaining.Set(float64(res.Remaining))
	r.log.Info("batch done",
		zap.Int("processed", res.Processed),
		zap.Int("errors", len(res.Errors)),
		zap.Int("remaining", res.Remaining),
	)
	return res, nil
}

func (r *Reaper) reap(ctx context.Context, d types.ScheduledDeletion, successMsg string) error {
	if _, err := r.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    d.ChatID,
		MessageID: d.MessageID,
	}); err != nil {
		return errors.Wrapf(err, "delete message %d", d.MessageID)
	}

	if d.NotificationMessageID != 0 {
		if _, err := r.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    d.ChatID,
			MessageID: d.NotificationMessageID,
		}); err != nil {
			r.log.Debug("delete notification", zap.Int64("chat_id", d.ChatID), zap.Error(err))
		}
	}

	if successMsg != "" {
		if _, err := r.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:         d.ChatID,
			Text:           successMsg,
			ProtectContent: true,
		}); err != nil {
			r.log.Debug("send success message", zap.Int64("chat_id", d.ChatID), zap.Error(err))
		}
	}

	if err := r.store.RemoveDeletion(ctx, d.ID); err != nil {
		return errors.Wrap(err, "remove deletion")
	}
	return nil
}

// Drain runs batches back to back while overdue records remain, at most
// MaxRuns times.
func (r *Reaper) Drain(ctx context.Context) (Result, error) {
	var total Result
	for i := 0; i < r.cfg.MaxRuns; i++ {
		res, err := r.ProcessBatch(ctx, r.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		total.Processed += res.Processed
		total.Errors = append(total.Errors, res.Errors...)
		total.Remaining = res.Remaining
		if res.Remaining == 0 || ctx.Err() != nil {
			break
		}
	}
	return total, nil
}

// WithLocker makes the periodic loop skip ticks while another instance
// holds the reaper lease. Must be called before Start.
func (r *Reaper) WithLocker(l Locker) *Reaper {
	r.locker = l
	return r
}

// tick drains once, guarded by the lease when a locker is set. A locker
// error does not block reaping.
func (r *Reaper) tick(ctx context.Context) {
	if r.locker != nil {
		unlock, ok, err := r.locker.TryLock(ctx, leaseName, r.cfg.Interval)
		switch {
		case err != nil:
			r.log.Warn("reaper lease unavailable", zap.Error(err))
		case !ok:
			r.log.Debug("reaper lease held elsewhere, skipping tick")
			return
		default:
			defer unlock(context.WithoutCancel(ctx))
		}
	}
	if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("drain", zap.Error(err))
	}
}

// Trigger asks the running loop for an immediate drain.
func (r *Reaper) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.cfg.Interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go r.loop(ctx)
	r.log.Info("reaper started", zap.Duration("interval", r.cfg.Interval), zap.Int("batch_size", r.cfg.BatchSize))
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.trigger:
		}
		r.tick(ctx)
	}
}

func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.log.Info("reaper stopped")
}
