package store

import (
	"context"
	"database/sql"
	"fmt"

	"journeymap/api/internal/journey"
)

const blockColumns = `id, board_id, column_id, type, title, content, note, emoji, color, position, created_by, created_at, updated_at`

func queryBlocks(ctx context.Context, q queryer, where string, args ...any) ([]Block, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()
	items := make([]Block, 0)
	for rows.Next() {
		item, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return items, nil
}

func scanBlock(row interface{ Scan(...any) error }) (Block, error) {
	var b Block
	err := row.Scan(&b.ID, &b.BoardID, &b.ColumnID, &b.Type, &b.Title, &b.Content, &b.Note, &b.Emoji, &b.Color,
		&b.Position, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *PostgresStore) GetBlock(ctx context.Context, blockID string) (Block, error) {
	return scanBlock(s.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id=$1`, blockID))
}

// CreateBlock inserts a block at block.Position (clamped) in its column.
func (s *PostgresStore) CreateBlock(ctx context.Context, block Block) (Block, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT board_id FROM board_columns WHERE id=$1`, block.ColumnID).Scan(&block.BoardID); err != nil {
			return err
		}
		order, err := lockedOrder(ctx, tx, tableBlocks, "column_id", block.ColumnID)
		if err != nil {
			return err
		}
		next := journey.Insert(order, block.ID, block.Position)
		block.Position = journey.IndexOf(next, block.ID)
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO blocks (id, board_id, column_id, type, title, content, note, emoji, color, position, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, updated_at
		`, block.ID, block.BoardID, block.ColumnID, block.Type, block.Title, block.Content, block.Note, block.Emoji,
			block.Color, block.Position, block.CreatedBy).Scan(&block.CreatedAt, &block.UpdatedAt); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}
		if err := writeOrder(ctx, tx, tableBlocks, next); err != nil {
			return err
		}
		return touchBoard(ctx, tx, block.BoardID)
	})
	if err != nil {
		return Block{}, err
	}
	return block, nil
}

// UpdateBlock writes the editable fields of block.
func (s *PostgresStore) UpdateBlock(ctx context.Context, block Block) (Block, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			UPDATE blocks
			SET type=$2, title=$3, content=$4, note=$5, emoji=$6, color=$7, updated_at=NOW()
			WHERE id=$1
			RETURNING `+blockColumns+`
		`, block.ID, block.Type, block.Title, block.Content, block.Note, block.Emoji, block.Color).Scan(
			&block.ID, &block.BoardID, &block.ColumnID, &block.Type, &block.Title, &block.Content, &block.Note,
			&block.Emoji, &block.Color, &block.Position, &block.CreatedBy, &block.CreatedAt, &block.UpdatedAt,
		); err != nil {
			return err
		}
		return touchBoard(ctx, tx, block.BoardID)
	})
	if err != nil {
		return Block{}, err
	}
	return block, nil
}

// MoveBlock places a block at position inside columnID, on the same board.
func (s *PostgresStore) MoveBlock(ctx context.Context, blockID, columnID string, position int) (Block, error) {
	return retryMove(func() (Block, error) { return s.moveBlock(ctx, blockID, columnID, position) })
}

func (s *PostgresStore) moveBlock(ctx context.Context, blockID, columnID string, position int) (Block, error) {
	var moved Block
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanBlock(tx.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id=$1`, blockID))
		if err != nil {
			return err
		}
		if columnID == "" {
			columnID = current.ColumnID
		}
		var targetBoard string
		if err := tx.QueryRowContext(ctx, `SELECT board_id FROM board_columns WHERE id=$1`, columnID).Scan(&targetBoard); err != nil {
			return err
		}
		if targetBoard != current.BoardID {
			return ErrCrossBoard
		}

		if columnID == current.ColumnID {
			order, err := lockedOrder(ctx, tx, tableBlocks, "column_id", columnID)
			if err != nil {
				return err
			}
			if journey.IndexOf(order, blockID) < 0 {
				return errStaleMove
			}
			next := journey.Move(order, blockID, position)
			if err := writeOrder(ctx, tx, tableBlocks, next); err != nil {
				return err
			}
			current.Position = journey.IndexOf(next, blockID)
		} else {
			source, target, err := lockPair(ctx, tx, tableBlocks, "column_id", current.ColumnID, columnID)
			if err != nil {
				return err
			}
			if journey.IndexOf(source, blockID) < 0 {
				return errStaleMove
			}
			source, target = journey.Transfer(source, target, blockID, position)
			if _, err := tx.ExecContext(ctx, `UPDATE blocks SET column_id=$2, updated_at=NOW() WHERE id=$1`, blockID, columnID); err != nil {
				return fmt.Errorf("move block: %w", err)
			}
			if err := writeOrder(ctx, tx, tableBlocks, source); err != nil {
				return err
			}
			if err := writeOrder(ctx, tx, tableBlocks, target); err != nil {
				return err
			}
			current.ColumnID = columnID
			current.Position = journey.IndexOf(target, blockID)
		}
		moved = current
		return touchBoard(ctx, tx, current.BoardID)
	})
	if err != nil {
		return Block{}, err
	}
	return moved, nil
}

// DeleteBlock removes a block and closes the gap in its column.
func (s *PostgresStore) DeleteBlock(ctx context.Context, blockID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var columnID, boardID string
		if err := tx.QueryRowContext(ctx, `SELECT column_id, board_id FROM blocks WHERE id=$1`, blockID).Scan(&columnID, &boardID); err != nil {
			return err
		}
		order, err := lockedOrder(ctx, tx, tableBlocks, "column_id", columnID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE id=$1`, blockID); err != nil {
			return fmt.Errorf("delete block: %w", err)
		}
		if err := writeOrder(ctx, tx, tableBlocks, journey.Remove(order, blockID)); err != nil {
			return err
		}
		return touchBoard(ctx, tx, boardID)
	})
}
