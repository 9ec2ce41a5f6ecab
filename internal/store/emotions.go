package store

import (
	"context"
	"fmt"
)

func queryEmotions(ctx context.Context, q queryer, boardID string) ([]Emotion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_id, board_id, intensity, label, emoji, updated_at FROM emotions WHERE board_id=$1
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list emotions: %w", err)
	}
	defer rows.Close()
	items := make([]Emotion, 0)
	for rows.Next() {
		var e Emotion
		if err := rows.Scan(&e.ColumnID, &e.BoardID, &e.Intensity, &e.Label, &e.Emoji, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan emotion: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emotions: %w", err)
	}
	return items, nil
}

// ListColumns returns the board's columns in grid order.
func (s *PostgresStore) ListColumns(ctx context.Context, boardID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.board_id, c.phase_id, c.position
		FROM board_columns c
		JOIN phases p ON p.id = c.phase_id
		WHERE c.board_id=$1
		ORDER BY p.position, c.position, c.id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()
	items := make([]Column, 0)
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.PhaseID, &c.Position); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (s *PostgresStore) UpsertEmotion(ctx context.Context, emotion Emotion) (Emotion, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO emotions (column_id, board_id, intensity, label, emoji)
		SELECT c.id, c.board_id, $2, $3, $4 FROM board_columns c WHERE c.id=$1
		ON CONFLICT (column_id) DO UPDATE SET intensity=EXCLUDED.intensity, label=EXCLUDED.label, emoji=EXCLUDED.emoji, updated_at=NOW()
		RETURNING column_id, board_id, intensity, label, emoji, updated_at
	`, emotion.ColumnID, emotion.Intensity, emotion.Label, emotion.Emoji).Scan(
		&emotion.ColumnID, &emotion.BoardID, &emotion.Intensity, &emotion.Label, &emotion.Emoji, &emotion.UpdatedAt,
	)
	if err != nil {
		return Emotion{}, err
	}
	return emotion, nil
}

func (s *PostgresStore) DeleteEmotion(ctx context.Context, columnID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM emotions WHERE column_id=$1`, columnID)
	if err != nil {
		return fmt.Errorf("delete emotion: %w", err)
	}
	return requireAffected(res)
}
