package background

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("background runner is closed")

// Runner executes fire-and-forget work (webhook follow-ups, access
// bookkeeping) on a bounded goroutine pool. Tasks are detached from the
// request context but keep its values.
type Runner struct {
	pool    *ants.Pool
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func New(size int, timeout time.Duration, log *zap.Logger) (*Runner, error) {
	if size <= 0 {
		size = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("background")
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p interface{}) {
		log.Error("task panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}
	return &Runner{pool: pool, log: log, timeout: timeout}, nil
}

// Go schedules fn. It blocks only while the pool is saturated.
func (r *Runner) Go(ctx context.Context, name string, fn func(context.Context) error) error {
	r.wg.Add(1)
	err := r.pool.Submit(func() {
		defer r.wg.Done()
		taskCtx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(taskCtx, r.timeout)
			defer cancel()
		}
		start := time.Now()
		if err := fn(taskCtx); err != nil {
			r.log.Warn("task failed", zap.String("task", name), zap.Duration("took", time.Since(start)), zap.Error(err))
			return
		}
		r.log.Debug("task done", zap.String("task", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		r.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrClosed
		}
		return errors.Wrapf(err, "submit %s", name)
	}
	return nil
}

// Wait blocks until every submitted task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) Running() int {
	return r.pool.Running()
}

// Close waits for in-flight tasks and releases the pool.
func (r *Runner) Close() {
	r.wg.Wait()
	r.pool.Release()
}
