package types

import (
	"context"
	"time"
)

type FileStore interface {
	CreateFile(ctx context.Context, file *FileRecord) error
	GetFile(ctx context.Context, messageID int) (*FileRecord, error)
	CountFiles(ctx context.Context) (int, error)
}

type UserStore interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
	BanUser(ctx context.Context, ban BannedUser) error
	UnbanUser(ctx context.Context, userID int64) (bool, error)
	TouchUser(ctx context.Context, user BotUser) error
	RecordFileAccess(ctx context.Context, access FileAccess) error
	CountUsers(ctx context.Context) (int, error)
}

// AdClickStore persists AdClickState. Every mutating method is a single
// atomic statement; the bool results report whether a transition applied.
type AdClickStore interface {
	GetAdClickState(ctx context.Context, userID int64) (*AdClickState, error)
	TouchFileAccess(ctx context.Context, userID int64, at time.Time) error
	BeginAdAttempt(ctx context.Context, userID int64, fileParam string, at time.Time) error
	MarkAdClicked(ctx context.Context, userID int64, fileParam string, at time.Time) (bool, error)
	MarkAdVerified(ctx context.Context, userID int64, at time.Time) (bool, error)
	MarkAdConverted(ctx context.Context, userID int64, at time.Time) (bool, error)
	SaveAdClickDetail(ctx context.Context, detail AdClickDetail) error
}

type DeletionStore interface {
	ScheduleDeletion(ctx context.Context, d *ScheduledDeletion) error
	// DueDeletions returns up to limit records with DeleteAt <= now and the
	// number of overdue records left out of the batch.
	DueDeletions(ctx context.Context, now time.Time, limit int) ([]ScheduledDeletion, int, error)
	RemoveDeletion(ctx context.Context, id string) error
	CountPendingDeletions(ctx context.Context) (int, error)
}

type SettingsStore interface {
	LoadSettings(ctx context.Context, base Settings) (Settings, error)
}
