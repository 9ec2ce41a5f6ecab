package store

import (
	"context"
	"database/sql"
	"fmt"
)

func queryTags(ctx context.Context, q queryer, where string, args ...any) ([]Tag, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, board_id, name, color, created_at FROM tags `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	items := make([]Tag, 0)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.BoardID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListTags(ctx context.Context, boardID string) ([]Tag, error) {
	return queryTags(ctx, s.db, `WHERE board_id=$1 ORDER BY LOWER(name)`, boardID)
}

func (s *PostgresStore) GetTag(ctx context.Context, tagID string) (Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, name, color, created_at FROM tags WHERE id=$1
	`, tagID).Scan(&t.ID, &t.BoardID, &t.Name, &t.Color, &t.CreatedAt)
	return t, err
}

func (s *PostgresStore) CreateTag(ctx context.Context, tag Tag) (Tag, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tags (id, board_id, name, color) VALUES ($1, $2, $3, $4) RETURNING created_at
	`, tag.ID, tag.BoardID, tag.Name, tag.Color).Scan(&tag.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Tag{}, ErrDuplicateTag
		}
		return Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return tag, nil
}

func (s *PostgresStore) UpdateTag(ctx context.Context, tagID, name, color string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tags SET name=$2, color=$3 WHERE id=$1`, tagID, name, color)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTag
		}
		return fmt.Errorf("update tag: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) DeleteTag(ctx context.Context, tagID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, tagID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return requireAffected(res)
}

// AddBlockTag is idempotent.
func (s *PostgresStore) AddBlockTag(ctx context.Context, blockID, tagID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO block_tags (block_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, blockID, tagID)
	if err != nil {
		return fmt.Errorf("add block tag: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveBlockTag(ctx context.Context, blockID, tagID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM block_tags WHERE block_id=$1 AND tag_id=$2`, blockID, tagID)
	if err != nil {
		return fmt.Errorf("remove block tag: %w", err)
	}
	return nil
}

// SetBlockTags replaces the block's tag set.
func (s *PostgresStore) SetBlockTags(ctx context.Context, blockID string, tagIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM block_tags WHERE block_id=$1`, blockID); err != nil {
			return fmt.Errorf("clear block tags: %w", err)
		}
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO block_tags (block_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
			`, blockID, tagID); err != nil {
				return fmt.Errorf("insert block tag: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) ListBlockTags(ctx context.Context, blockID string) ([]Tag, error) {
	return queryTags(ctx, s.db, `WHERE id IN (SELECT tag_id FROM block_tags WHERE block_id=$1) ORDER BY LOWER(name)`, blockID)
}
