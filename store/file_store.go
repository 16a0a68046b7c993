package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BatmanBruc/file-share-bot/types"
)

func (s *PostgresStore) CreateFile(ctx context.Context, f *types.FileRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	var category *string
	if c := strings.TrimSpace(f.CategoryID); c != "" {
		category = &c
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO files (message_id, name, size, mime_type, uploaded_by, upload_method, category_id, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (message_id) DO UPDATE SET
  name = EXCLUDED.name,
  size = EXCLUDED.size,
  mime_type = EXCLUDED.mime_type
RETURNING created_at
`, f.MessageID, strings.TrimSpace(f.Name), f.Size, strings.TrimSpace(f.MimeType), f.UploadedBy,
		string(f.UploadMethod), category, tags).Scan(&f.CreatedAt)
	return errors.Wrapf(err, "create file %d", f.MessageID)
}

func (s *PostgresStore) GetFile(ctx context.Context, messageID int) (*types.FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var (
		f        types.FileRecord
		method   string
		category *string
	)
	err := s.pool.QueryRow(ctx, `
SELECT message_id, name, size, mime_type, uploaded_by, upload_method, category_id, tags, created_at
FROM files
WHERE message_id = $1
`, messageID).Scan(&f.MessageID, &f.Name, &f.Size, &f.MimeType, &f.UploadedBy, &method, &category, &f.Tags, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get file %d", messageID)
	}
	f.UploadMethod = types.UploadMethod(method)
	if category != nil {
		f.CategoryID = *category
	}
	return &f, nil
}

func (s *PostgresStore) CountFiles(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT count(*) FROM files")
}

func (s *PostgresStore) count(ctx context.Context, query string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	var n int
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}
