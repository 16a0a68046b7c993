package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/BatmanBruc/file-share-bot/types"
)

// ScheduleDeletion is a plain insert; duplicates for the same message are
// allowed because the reaper removes rows by id.
func (s *PostgresStore) ScheduleDeletion(ctx context.Context, d *types.ScheduledDeletion) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	var notification *int
	if d.NotificationMessageID != 0 {
		notification = &d.NotificationMessageID
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO scheduled_deletions (id, file_id, chat_id, message_id, delete_at, notification_message_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at
`, d.ID, d.FileID, d.ChatID, d.MessageID, d.DeleteAt, notification).Scan(&d.CreatedAt)
	return errors.Wrap(err, "schedule deletion")
}

func (s *PostgresStore) DueDeletions(ctx context.Context, now time.Time, limit int) ([]types.ScheduledDeletion, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT id::text, file_id, chat_id, message_id, delete_at, notification_message_id, created_at,
       count(*) OVER () AS overdue
FROM scheduled_deletions
WHERE delete_at <= $1
ORDER BY delete_at, created_at
LIMIT $2
`, now, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list due deletions")
	}
	defer rows.Close()

	var (
		out     []types.ScheduledDeletion
		overdue int
	)
	for rows.Next() {
		var (
			d            types.ScheduledDeletion
			notification *int
		)
		if err := rows.Scan(&d.ID, &d.FileID, &d.ChatID, &d.MessageID, &d.DeleteAt, &notification, &d.CreatedAt, &overdue); err != nil {
			return nil, 0, errors.Wrap(err, "scan due deletion")
		}
		if notification != nil {
			d.NotificationMessageID = *notification
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "read due deletions")
	}

	remaining := overdue - len(out)
	if remaining < 0 {
		remaining = 0
	}
	return out, remaining, nil
}

func (s *PostgresStore) RemoveDeletion(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `DELETE FROM scheduled_deletions WHERE id = $1::uuid`, id)
	return errors.Wrapf(err, "remove deletion %s", id)
}

func (s *PostgresStore) CountPendingDeletions(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT count(*) FROM scheduled_deletions")
}
