package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BatmanBruc/file-share-bot/types"
)

const settingsID = "settings"

// LoadSettings overlays the stored settings document on base.
func (s *PostgresStore) LoadSettings(ctx context.Context, base types.Settings) (types.Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM bot_settings WHERE id = $1`, settingsID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return base, nil
	}
	if err != nil {
		return base, errors.Wrap(err, "load settings")
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return base, errors.Wrap(err, "decode settings")
	}
	return base, nil
}

// SaveSettings merges doc into the stored document.
func (s *PostgresStore) SaveSettings(ctx context.Context, doc map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode settings")
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO bot_settings (id, data, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
  data = bot_settings.data || EXCLUDED.data,
  updated_at = EXCLUDED.updated_at
`, settingsID, data, time.Now().UTC())
	return errors.Wrap(err, "save settings")
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
