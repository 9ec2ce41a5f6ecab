package store

import (
	"context"
	"fmt"
)

const commentSelect = `
	SELECT c.id, c.block_id, c.board_id, c.author_id, u.display_name, c.content, c.created_at, c.updated_at
	FROM comments c
	JOIN users u ON u.id = c.author_id
`

func scanComment(row interface{ Scan(...any) error }) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.BlockID, &c.BoardID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListComments returns the block's comments oldest first.
func (s *PostgresStore) ListComments(ctx context.Context, blockID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, commentSelect+` WHERE c.block_id=$1 ORDER BY c.created_at ASC, c.id ASC`, blockID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	items := make([]Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	return scanComment(s.db.QueryRowContext(ctx, commentSelect+` WHERE c.id=$1`, commentID))
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, block_id, board_id, author_id, content)
		SELECT $1, b.id, b.board_id, $3, $4 FROM blocks b WHERE b.id=$2
	`, comment.ID, comment.BlockID, comment.AuthorID, comment.Content)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return s.GetComment(ctx, comment.ID)
}

func (s *PostgresStore) UpdateComment(ctx context.Context, commentID, content string) (Comment, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET content=$2, updated_at=NOW() WHERE id=$1`, commentID, content)
	if err != nil {
		return Comment{}, fmt.Errorf("update comment: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return Comment{}, err
	}
	return s.GetComment(ctx, commentID)
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) CountComments(ctx context.Context, blockID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments WHERE block_id=$1`, blockID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return n, nil
}
