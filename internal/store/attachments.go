package store

import (
	"context"
	"database/sql"
	"fmt"
)

const attachmentColumns = `id, block_id, board_id, type, url, title, object_key, file_name, content_type, size_bytes, target_board_id, created_by, created_at`

func scanAttachment(row interface{ Scan(...any) error }) (Attachment, error) {
	var a Attachment
	var target sql.NullString
	err := row.Scan(&a.ID, &a.BlockID, &a.BoardID, &a.Type, &a.URL, &a.Title, &a.ObjectKey, &a.FileName,
		&a.ContentType, &a.SizeBytes, &target, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		return Attachment{}, err
	}
	if target.Valid {
		id := target.String
		a.TargetBoardID = &id
	}
	return a, nil
}

func queryAttachments(ctx context.Context, q queryer, where string, args ...any) ([]Attachment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM attachments `+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	items := make([]Attachment, 0)
	for rows.Next() {
		item, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, blockID string) ([]Attachment, error) {
	return queryAttachments(ctx, s.db, `WHERE block_id=$1`, blockID)
}

func (s *PostgresStore) GetAttachment(ctx context.Context, attachmentID string) (Attachment, error) {
	return scanAttachment(s.db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id=$1`, attachmentID))
}

func (s *PostgresStore) CreateAttachment(ctx context.Context, a Attachment) (Attachment, error) {
	var target any
	if a.TargetBoardID != nil {
		target = *a.TargetBoardID
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attachments (id, block_id, board_id, type, url, title, object_key, file_name, content_type, size_bytes, target_board_id, created_by)
		SELECT $1, b.id, b.board_id, $3, $4, $5, $6, $7, $8, $9, $10, $11 FROM blocks b WHERE b.id=$2
		RETURNING `+attachmentColumns,
		a.ID, a.BlockID, a.Type, a.URL, a.Title, a.ObjectKey, a.FileName, a.ContentType, a.SizeBytes, target, a.CreatedBy)
	created, err := scanAttachment(row)
	if err != nil {
		return Attachment{}, err
	}
	return created, nil
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id=$1`, attachmentID)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return requireAffected(res)
}
