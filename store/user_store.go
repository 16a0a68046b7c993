package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/BatmanBruc/file-share-bot/types"
)

func (s *PostgresStore) IsBanned(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var banned bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM banned_users WHERE user_id = $1)`, userID).Scan(&banned)
	if err != nil {
		return false, errors.Wrapf(err, "check ban %d", userID)
	}
	return banned, nil
}

func (s *PostgresStore) BanUser(ctx context.Context, ban types.BannedUser) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO banned_users (user_id, banned_at, reason)
VALUES ($1, COALESCE($2, NOW()), $3)
ON CONFLICT (user_id) DO UPDATE SET reason = EXCLUDED.reason
`, ban.UserID, nullTime(ban.BannedAt), strings.TrimSpace(ban.Reason))
	return errors.Wrapf(err, "ban user %d", ban.UserID)
}

func (s *PostgresStore) UnbanUser(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `DELETE FROM banned_users WHERE user_id = $1`, userID)
	if err != nil {
		return false, errors.Wrapf(err, "unban user %d", userID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) TouchUser(ctx context.Context, u types.BotUser) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (user_id, username, first_name, last_name, access_count, first_seen, last_active)
VALUES ($1, $2, $3, $4, 1, $5, $5)
ON CONFLICT (user_id) DO UPDATE SET
  username = EXCLUDED.username,
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  access_count = users.access_count + 1,
  last_active = EXCLUDED.last_active
`, u.UserID, strings.TrimSpace(u.Username), strings.TrimSpace(u.FirstName), strings.TrimSpace(u.LastName), u.LastActive)
	return errors.Wrapf(err, "touch user %d", u.UserID)
}

func (s *PostgresStore) RecordFileAccess(ctx context.Context, a types.FileAccess) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO file_access (user_id, file_id, accessed_at)
VALUES ($1, $2, $3)
`, a.UserID, a.FileID, a.AccessedAt)
	return errors.Wrap(err, "record file access")
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT count(*) FROM users")
}
