package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BatmanBruc/file-share-bot/types"
)

// The statements below mirror adverify.Transition. Each one is a single
// statement so concurrent invocations never interleave a read and a write.

func (s *PostgresStore) GetAdClickState(ctx context.Context, userID int64) (*types.AdClickState, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		st     types.AdClickState
		status string
	)
	err := s.pool.QueryRow(ctx, `
SELECT user_id, status, click_attempt, last_click_time, last_view_time, last_file_access,
       total_views, file_param, created_at
FROM ad_clicks
WHERE user_id = $1
`, userID).Scan(&st.UserID, &status, &st.ClickAttempt, &st.LastClickTime, &st.LastViewTime,
		&st.LastFileAccess, &st.TotalViews, &st.FileParam, &st.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get ad click state %d", userID)
	}
	st.Status = types.AdStatus(status)

	rows, err := s.pool.Query(ctx, `
SELECT view_time, click_time, verified_time, file_param
FROM ad_history
WHERE user_id = $1
ORDER BY id
`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "get ad history %d", userID)
	}
	defer rows.Close()
	for rows.Next() {
		var e types.AdHistoryEntry
		if err := rows.Scan(&e.ViewTime, &e.ClickTime, &e.VerifiedTime, &e.FileParam); err != nil {
			return nil, errors.Wrap(err, "scan ad history")
		}
		st.History = append(st.History, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read ad history")
	}
	return &st, nil
}

func (s *PostgresStore) TouchFileAccess(ctx context.Context, userID int64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO ad_clicks (user_id, last_file_access, created_at)
VALUES ($1, $2, $2)
ON CONFLICT (user_id) DO UPDATE SET last_file_access = EXCLUDED.last_file_access
`, userID, at)
	return errors.Wrap(err, "touch file access")
}

func (s *PostgresStore) BeginAdAttempt(ctx context.Context, userID int64, fileParam string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
WITH entry AS (
  INSERT INTO ad_history (user_id, view_time, file_param)
  VALUES ($1, $2, $3)
)
INSERT INTO ad_clicks (user_id, status, click_attempt, file_param, total_views, created_at)
VALUES ($1, 'pending', $2, $3, 0, $2)
ON CONFLICT (user_id) DO UPDATE SET
  status = 'pending',
  click_attempt = EXCLUDED.click_attempt,
  file_param = EXCLUDED.file_param
`, userID, at, fileParam)
	return errors.Wrap(err, "begin ad attempt")
}

func (s *PostgresStore) MarkAdClicked(ctx context.Context, userID int64, fileParam string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var n int
	err := s.pool.QueryRow(ctx, `
WITH st AS (
  UPDATE ad_clicks
  SET status = 'clicked', last_click_time = $3
  WHERE user_id = $1 AND file_param = $2 AND status IN ('pending', 'clicked')
  RETURNING user_id
), entry AS (
  UPDATE ad_history
  SET click_time = $3
  WHERE id = (
    SELECT h.id FROM ad_history h
    WHERE h.user_id = $1 AND h.file_param = $2 AND h.click_time IS NULL
    ORDER BY h.id DESC
    LIMIT 1
  )
    AND click_time IS NULL
    AND EXISTS (SELECT 1 FROM st)
  RETURNING id
)
SELECT count(*) FROM st
`, userID, fileParam, at).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "mark ad clicked")
	}
	return n > 0, nil
}

func (s *PostgresStore) MarkAdVerified(ctx context.Context, userID int64, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var total int
	err := s.pool.QueryRow(ctx, `
WITH cur AS (
  SELECT user_id, file_param FROM ad_clicks
  WHERE user_id = $1 AND status IN ('clicked', 'verified')
), entry AS (
  UPDATE ad_history
  SET verified_time = $2, click_time = COALESCE(click_time, $2)
  WHERE id = (
    SELECT h.id FROM ad_history h
    JOIN cur ON h.user_id = cur.user_id AND h.file_param = cur.file_param
    WHERE h.verified_time IS NULL
    ORDER BY h.id DESC
    LIMIT 1
  )
    AND verified_time IS NULL
  RETURNING id
)
UPDATE ad_clicks
SET status = 'verified',
    last_view_time = $2,
    last_click_time = $2,
    total_views = total_views + (SELECT count(*) FROM entry)
WHERE user_id = $1 AND status IN ('clicked', 'verified')
RETURNING total_views
`, userID, at).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "mark ad verified")
	}
	return true, nil
}

func (s *PostgresStore) MarkAdConverted(ctx context.Context, userID int64, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var total int
	err := s.pool.QueryRow(ctx, `
WITH entry AS (
  UPDATE ad_history
  SET verified_time = $2
  WHERE id = (
    SELECT h.id FROM ad_history h
    WHERE h.user_id = $1 AND h.click_time IS NOT NULL AND h.verified_time IS NULL
    ORDER BY h.id DESC
    LIMIT 1
  )
    AND verified_time IS NULL
  RETURNING id
)
UPDATE ad_clicks
SET status = 'verified',
    last_view_time = $2,
    total_views = total_views + 1
WHERE user_id = $1 AND EXISTS (SELECT 1 FROM entry)
RETURNING total_views
`, userID, at).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "mark ad converted")
	}
	return true, nil
}

func (s *PostgresStore) SaveAdClickDetail(ctx context.Context, d types.AdClickDetail) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO ad_click_details (user_id, ts, user_agent, ip_address, referrer, conversion_time, platform, device, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, d.UserID, d.Timestamp, d.UserAgent, d.IPAddress, d.Referrer, d.ConversionTime, d.Platform, d.Device, d.CreatedAt)
	return errors.Wrap(err, "save ad click detail")
}
