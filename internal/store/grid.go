package store

import (
	"context"
	"database/sql"
	"fmt"

	"journeymap/api/internal/journey"
)

// Positional tables. Values are fixed SQL identifiers, never user input.
const (
	tablePhases  = "phases"
	tableColumns = "board_columns"
	tableBlocks  = "blocks"
)

// lockedOrder returns the ids of one container in display order, locking the rows.
func lockedOrder(ctx context.Context, tx *sql.Tx, table, parentColumn, parentID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM `+table+` WHERE `+parentColumn+`=$1 ORDER BY position, id FOR UPDATE
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("lock %s order: %w", table, err)
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// writeOrder stores slice indexes as positions, keeping the container dense.
func writeOrder(ctx context.Context, tx *sql.Tx, table string, ids []string) error {
	for position, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET position=$2 WHERE id=$1 AND position<>$2`, id, position); err != nil {
			return fmt.Errorf("write %s position: %w", table, err)
		}
	}
	return nil
}

// CreatePhase appends a phase to the board together with its first column.
func (s *PostgresStore) CreatePhase(ctx context.Context, phase Phase, column Column) (Phase, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		order, err := lockedOrder(ctx, tx, tablePhases, "board_id", phase.BoardID)
		if err != nil {
			return err
		}
		phase.Position = len(order)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO phases (id, board_id, name, color, position) VALUES ($1, $2, $3, $4, $5)
		`, phase.ID, phase.BoardID, phase.Name, phase.Color, phase.Position); err != nil {
			return fmt.Errorf("insert phase: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO board_columns (id, board_id, phase_id, position) VALUES ($1, $2, $3, 0)
		`, column.ID, phase.BoardID, phase.ID); err != nil {
			return fmt.Errorf("insert column: %w", err)
		}
		return touchBoard(ctx, tx, phase.BoardID)
	})
	if err != nil {
		return Phase{}, err
	}
	return phase, nil
}

func (s *PostgresStore) GetPhase(ctx context.Context, phaseID string) (Phase, error) {
	var p Phase
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, name, color, position FROM phases WHERE id=$1
	`, phaseID).Scan(&p.ID, &p.BoardID, &p.Name, &p.Color, &p.Position)
	return p, err
}

func (s *PostgresStore) UpdatePhase(ctx context.Context, phaseID, name, color string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE phases SET name=$2, color=$3 WHERE id=$1`, phaseID, name, color)
	if err != nil {
		return fmt.Errorf("update phase: %w", err)
	}
	return requireAffected(res)
}

// DeletePhase removes a phase with its columns and blocks.
func (s *PostgresStore) DeletePhase(ctx context.Context, phaseID string) (Removed, error) {
	var removed Removed
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var boardID string
		if err := tx.QueryRowContext(ctx, `SELECT board_id FROM phases WHERE id=$1`, phaseID).Scan(&boardID); err != nil {
			return err
		}
		order, err := lockedOrder(ctx, tx, tablePhases, "board_id", boardID)
		if err != nil {
			return err
		}
		if len(order) <= 1 {
			return ErrLastPhase
		}
		removed, err = collectRemoved(ctx, tx, `column_id IN (SELECT id FROM board_columns WHERE phase_id=$1)`, phaseID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM phases WHERE id=$1`, phaseID); err != nil {
			return fmt.Errorf("delete phase: %w", err)
		}
		if err := writeOrder(ctx, tx, tablePhases, journey.Remove(order, phaseID)); err != nil {
			return err
		}
		return touchBoard(ctx, tx, boardID)
	})
	if err != nil {
		return Removed{}, err
	}
	return removed, nil
}

// ReorderPhases applies a full ordering; ordered must be a permutation of the board's phases.
func (s *PostgresStore) ReorderPhases(ctx context.Context, boardID string, ordered []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		order, err := lockedOrder(ctx, tx, tablePhases, "board_id", boardID)
		if err != nil {
			return err
		}
		if err := journey.CheckPermutation(order, ordered); err != nil {
			return ErrInvalidOrder
		}
		if err := writeOrder(ctx, tx, tablePhases, ordered); err != nil {
			return err
		}
		return touchBoard(ctx, tx, boardID)
	})
}

func (s *PostgresStore) GetColumn(ctx context.Context, columnID string) (Column, error) {
	var c Column
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, phase_id, position FROM board_columns WHERE id=$1
	`, columnID).Scan(&c.ID, &c.BoardID, &c.PhaseID, &c.Position)
	return c, err
}

// CreateColumn inserts a column at column.Position (clamped) inside its phase.
func (s *PostgresStore) CreateColumn(ctx context.Context, column Column) (Column, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT board_id FROM phases WHERE id=$1`, column.PhaseID).Scan(&column.BoardID); err != nil {
			return err
		}
		order, err := lockedOrder(ctx, tx, tableColumns, "phase_id", column.PhaseID)
		if err != nil {
			return err
		}
		next := journey.Insert(order, column.ID, column.Position)
		column.Position = journey.IndexOf(next, column.ID)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO board_columns (id, board_id, phase_id, position) VALUES ($1, $2, $3, $4)
		`, column.ID, column.BoardID, column.PhaseID, column.Position); err != nil {
			return fmt.Errorf("insert column: %w", err)
		}
		if err := writeOrder(ctx, tx, tableColumns, next); err != nil {
			return err
		}
		return touchBoard(ctx, tx, column.BoardID)
	})
	if err != nil {
		return Column{}, err
	}
	return column, nil
}

// DeleteColumn removes a column and its blocks; the phase must keep one column.
func (s *PostgresStore) DeleteColumn(ctx context.Context, columnID string) (Removed, error) {
	var removed Removed
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var phaseID, boardID string
		if err := tx.QueryRowContext(ctx, `SELECT phase_id, board_id FROM board_columns WHERE id=$1`, columnID).Scan(&phaseID, &boardID); err != nil {
			return err
		}
		order, err := lockedOrder(ctx, tx, tableColumns, "phase_id", phaseID)
		if err != nil {
			return err
		}
		if len(order) <= 1 {
			return ErrLastColumn
		}
		removed, err = collectRemoved(ctx, tx, `column_id=$1`, columnID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM board_columns WHERE id=$1`, columnID); err != nil {
			return fmt.Errorf("delete column: %w", err)
		}
		if err := writeOrder(ctx, tx, tableColumns, journey.Remove(order, columnID)); err != nil {
			return err
		}
		return touchBoard(ctx, tx, boardID)
	})
	if err != nil {
		return Removed{}, err
	}
	return removed, nil
}

// MoveColumn places a column at position inside phaseID, which may be another
// phase of the same board.
func (s *PostgresStore) MoveColumn(ctx context.Context, columnID, phaseID string, position int) (Column, error) {
	return retryMove(func() (Column, error) { return s.moveColumn(ctx, columnID, phaseID, position) })
}

func (s *PostgresStore) moveColumn(ctx context.Context, columnID, phaseID string, position int) (Column, error) {
	var moved Column
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current Column
		if err := tx.QueryRowContext(ctx, `
			SELECT id, board_id, phase_id, position FROM board_columns WHERE id=$1
		`, columnID).Scan(&current.ID, &current.BoardID, &current.PhaseID, &current.Position); err != nil {
			return err
		}
		if phaseID == "" {
			phaseID = current.PhaseID
		}
		var targetBoard string
		if err := tx.QueryRowContext(ctx, `SELECT board_id FROM phases WHERE id=$1`, phaseID).Scan(&targetBoard); err != nil {
			return err
		}
		if targetBoard != current.BoardID {
			return ErrCrossBoard
		}

		if phaseID == current.PhaseID {
			order, err := lockedOrder(ctx, tx, tableColumns, "phase_id", phaseID)
			if err != nil {
				return err
			}
			if journey.IndexOf(order, columnID) < 0 {
				return errStaleMove
			}
			next := journey.Move(order, columnID, position)
			if err := writeOrder(ctx, tx, tableColumns, next); err != nil {
				return err
			}
			current.Position = journey.IndexOf(next, columnID)
		} else {
			source, target, err := lockPair(ctx, tx, tableColumns, "phase_id", current.PhaseID, phaseID)
			if err != nil {
				return err
			}
			if journey.IndexOf(source, columnID) < 0 {
				return errStaleMove
			}
			if len(source) <= 1 {
				return ErrLastColumn
			}
			source, target = journey.Transfer(source, target, columnID, position)
			if _, err := tx.ExecContext(ctx, `UPDATE board_columns SET phase_id=$2 WHERE id=$1`, columnID, phaseID); err != nil {
				return fmt.Errorf("move column: %w", err)
			}
			if err := writeOrder(ctx, tx, tableColumns, source); err != nil {
				return err
			}
			if err := writeOrder(ctx, tx, tableColumns, target); err != nil {
				return err
			}
			current.PhaseID = phaseID
			current.Position = journey.IndexOf(target, columnID)
		}
		moved = current
		return touchBoard(ctx, tx, current.BoardID)
	})
	if err != nil {
		return Column{}, err
	}
	return moved, nil
}

// lockPair locks two containers in a stable order so concurrent cross moves cannot deadlock.
func lockPair(ctx context.Context, tx *sql.Tx, table, parentColumn, sourceID, targetID string) ([]string, []string, error) {
	first, second := sourceID, targetID
	if second < first {
		first, second = second, first
	}
	a, err := lockedOrder(ctx, tx, table, parentColumn, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := lockedOrder(ctx, tx, table, parentColumn, second)
	if err != nil {
		return nil, nil, err
	}
	if first == sourceID {
		return a, b, nil
	}
	return b, a, nil
}
