// Package adverify tracks the per-user ad click lifecycle that gates file
// delivery. Decisions are pure functions over a state snapshot (fsm.go);
// Engine loads snapshots and applies transitions through the store.
package adverify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BatmanBruc/file-share-bot/internal/metrics"
	"github.com/BatmanBruc/file-share-bot/types"
)

type Engine struct {
	store types.AdClickStore
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(store types.AdClickStore, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store: store,
		log:   log.Named("adverify"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) state(ctx context.Context, userID int64) (*types.AdClickState, error) {
	st, err := e.store.GetAdClickState(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	return st, err
}

// ShouldShowAd fails open: a store error means no ad.
func (e *Engine) ShouldShowAd(ctx context.Context, userID int64) bool {
	st, err := e.state(ctx, userID)
	if err != nil {
		e.log.Warn("should show ad: state lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return ShouldShowAd(st, e.now())
}

func (e *Engine) HasRecentVerification(ctx context.Context, userID int64) bool {
	st, err := e.state(ctx, userID)
	if err != nil {
		e.log.Warn("verification lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return HasRecentVerification(st, e.now())
}

func (e *Engine) CheckPendingClick(ctx context.Context, userID int64, fileParam string) bool {
	st, err := e.state(ctx, userID)
	if err != nil {
		e.log.Warn("pending click lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return CheckPendingClick(st, fileParam, e.now())
}

// RecordFileAccess is the heartbeat used by the access heuristic.
func (e *Engine) RecordFileAccess(ctx context.Context, userID int64) error {
	return e.store.TouchFileAccess(ctx, userID, e.now())
}

func (e *Engine) BeginAttempt(ctx context.Context, userID int64, fileParam string) error {
	err := e.store.BeginAdAttempt(ctx, userID, fileParam, e.now())
	observe(EventAttempt, err == nil, err)
	return err
}

func observe(ev Event, applied bool, err error) {
	if err != nil {
		return
	}
	metrics.AdEventsTotal.WithLabelValues(ev.String(), metrics.Applied(applied)).Inc()
}

// MarkClicked records the redirect hit. It reports false when no attempt
// for fileParam was waiting.
func (e *Engine) MarkClicked(ctx context.Context, userID int64, fileParam string) (bool, error) {
	ok, err := e.store.MarkAdClicked(ctx, userID, fileParam, e.now())
	observe(EventClick, ok, err)
	return ok, err
}

func (e *Engine) ConfirmVerified(ctx context.Context, userID int64) (bool, error) {
	ok, err := e.store.MarkAdVerified(ctx, userID, e.now())
	observe(EventVerify, ok, err)
	return ok, err
}

// Conversion is an ad network callback payload.
type Conversion struct {
	UserID         int64
	Timestamp      time.Time
	UserAgent      string
	IPAddress      string
	Referrer       string
	ConversionTime *int64
}

// ConfirmConversion verifies the latest clicked history entry and stores the
// conversion details. The details are saved even when nothing was verified.
func (e *Engine) ConfirmConversion(ctx context.Context, c Conversion) (bool, error) {
	now := e.now()
	verified, err := e.store.MarkAdConverted(ctx, c.UserID, now)
	observe(EventConvert, verified, err)
	if err != nil {
		return false, err
	}

	ts := c.Timestamp
	if ts.IsZero() {
		ts = now
	}
	platform, device := ClassifyUserAgent(c.UserAgent)
	detail := types.AdClickDetail{
		UserID:         c.UserID,
		Timestamp:      ts,
		UserAgent:      c.UserAgent,
		IPAddress:      c.IPAddress,
		Referrer:       c.Referrer,
		ConversionTime: c.ConversionTime,
		Platform:       platform,
		Device:         device,
		CreatedAt:      now,
	}
	if err := e.store.SaveAdClickDetail(ctx, detail); err != nil {
		return verified, err
	}
	return verified, nil
}
