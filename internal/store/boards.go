package store

import (
	"context"
	"database/sql"
	"fmt"
)

const boardColumns = `id, project_id, name, description, created_by, created_at, updated_at`

func scanBoard(row interface{ Scan(...any) error }) (Board, error) {
	var item Board
	err := row.Scan(&item.ID, &item.ProjectID, &item.Name, &item.Description, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *PostgresStore) ListBoards(ctx context.Context, projectID string) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+boardColumns+` FROM boards WHERE project_id=$1 ORDER BY updated_at DESC, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		item, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	return scanBoard(s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id=$1`, boardID))
}

// CreateBoard inserts the board together with its initial grid.
func (s *PostgresStore) CreateBoard(ctx context.Context, board Board, content BoardContent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO boards (id, project_id, name, description, created_by) VALUES ($1, $2, $3, $4, $5)
		`, board.ID, board.ProjectID, board.Name, board.Description, board.CreatedBy); err != nil {
			return fmt.Errorf("insert board: %w", err)
		}
		if err := upsertContent(ctx, tx, board.ID, content); err != nil {
			return err
		}
		return touchProject(ctx, tx, board.ProjectID)
	})
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, boardID, name, description string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE boards SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, boardID, name, description)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	return requireAffected(res)
}

// DeleteBoard removes the board and everything on it.
func (s *PostgresStore) DeleteBoard(ctx context.Context, boardID string) (Removed, error) {
	var removed Removed
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT id FROM boards WHERE id=$1 FOR UPDATE`, boardID).Scan(new(string)); err != nil {
			return err
		}
		var err error
		removed, err = collectRemoved(ctx, tx, `board_id=$1`, boardID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id=$1`, boardID); err != nil {
			return fmt.Errorf("delete board: %w", err)
		}
		return nil
	})
	if err != nil {
		return Removed{}, err
	}
	return removed, nil
}

// LoadBoardTree reads the board and everything rendered on it, each list in display order.
func (s *PostgresStore) LoadBoardTree(ctx context.Context, boardID string) (BoardTree, error) {
	board, err := s.GetBoard(ctx, boardID)
	if err != nil {
		return BoardTree{}, err
	}
	content, err := loadContent(ctx, s.db, boardID)
	if err != nil {
		return BoardTree{}, err
	}
	tree := BoardTree{Board: board, BoardContent: content, CommentCounts: map[string]int{}}

	attachments, err := queryAttachments(ctx, s.db, `WHERE board_id=$1`, boardID)
	if err != nil {
		return BoardTree{}, err
	}
	tree.Attachments = attachments

	connections, err := querySheetsConnections(ctx, s.db, `WHERE board_id=$1`, boardID)
	if err != nil {
		return BoardTree{}, err
	}
	tree.SheetsConnections = connections

	rows, err := s.db.QueryContext(ctx, `
		SELECT block_id, COUNT(*) FROM comments WHERE board_id=$1 GROUP BY block_id
	`, boardID)
	if err != nil {
		return BoardTree{}, fmt.Errorf("count comments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var blockID string
		var count int
		if err := rows.Scan(&blockID, &count); err != nil {
			return BoardTree{}, fmt.Errorf("scan comment count: %w", err)
		}
		tree.CommentCounts[blockID] = count
	}
	if err := rows.Err(); err != nil {
		return BoardTree{}, fmt.Errorf("iterate comment counts: %w", err)
	}
	return tree, nil
}

// ReplaceBoardContent rewrites the grid of an existing board. Entities whose
// ids survive keep their comments, attachments and sheets bindings; the rest
// are deleted.
func (s *PostgresStore) ReplaceBoardContent(ctx context.Context, boardID string, content BoardContent) (Removed, error) {
	var removed Removed
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT id FROM boards WHERE id=$1 FOR UPDATE`, boardID); err != nil {
			return fmt.Errorf("lock board: %w", err)
		}
		current, err := loadContent(ctx, tx, boardID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM block_tags WHERE block_id IN (SELECT id FROM blocks WHERE board_id=$1)
		`, boardID); err != nil {
			return fmt.Errorf("clear block tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM emotions WHERE board_id=$1`, boardID); err != nil {
			return fmt.Errorf("clear emotions: %w", err)
		}
		keep := map[string]bool{}
		// Tags go first so a restored name cannot collide with a newer tag.
		for _, t := range content.Tags {
			keep[t.ID] = true
		}
		for _, t := range current.Tags {
			if !keep[t.ID] {
				if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, t.ID); err != nil {
					return fmt.Errorf("delete tag %s: %w", t.ID, err)
				}
			}
		}
		if err := upsertContent(ctx, tx, boardID, content); err != nil {
			return err
		}

		for _, b := range content.Blocks {
			keep[b.ID] = true
		}
		for _, b := range current.Blocks {
			if !keep[b.ID] {
				dropped, err := collectRemoved(ctx, tx, `id=$1`, b.ID)
				if err != nil {
					return err
				}
				removed.add(dropped)
				if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE id=$1`, b.ID); err != nil {
					return fmt.Errorf("delete block %s: %w", b.ID, err)
				}
			}
		}
		for _, c := range content.Columns {
			keep[c.ID] = true
		}
		for _, c := range current.Columns {
			if !keep[c.ID] {
				if _, err := tx.ExecContext(ctx, `DELETE FROM board_columns WHERE id=$1`, c.ID); err != nil {
					return fmt.Errorf("delete column %s: %w", c.ID, err)
				}
			}
		}
		for _, p := range content.Phases {
			keep[p.ID] = true
		}
		for _, p := range current.Phases {
			if !keep[p.ID] {
				if _, err := tx.ExecContext(ctx, `DELETE FROM phases WHERE id=$1`, p.ID); err != nil {
					return fmt.Errorf("delete phase %s: %w", p.ID, err)
				}
			}
		}
		return touchBoard(ctx, tx, boardID)
	})
	if err != nil {
		return Removed{}, err
	}
	return removed, nil
}

func loadContent(ctx context.Context, q queryer, boardID string) (BoardContent, error) {
	var content BoardContent

	phases, err := q.QueryContext(ctx, `
		SELECT id, board_id, name, color, position FROM phases WHERE board_id=$1 ORDER BY position, id
	`, boardID)
	if err != nil {
		return content, fmt.Errorf("load phases: %w", err)
	}
	for phases.Next() {
		var p Phase
		if err := phases.Scan(&p.ID, &p.BoardID, &p.Name, &p.Color, &p.Position); err != nil {
			phases.Close()
			return content, fmt.Errorf("scan phase: %w", err)
		}
		content.Phases = append(content.Phases, p)
	}
	phases.Close()
	if err := phases.Err(); err != nil {
		return content, fmt.Errorf("iterate phases: %w", err)
	}

	columns, err := q.QueryContext(ctx, `
		SELECT c.id, c.board_id, c.phase_id, c.position
		FROM board_columns c
		JOIN phases p ON p.id = c.phase_id
		WHERE c.board_id=$1
		ORDER BY p.position, c.position, c.id
	`, boardID)
	if err != nil {
		return content, fmt.Errorf("load columns: %w", err)
	}
	for columns.Next() {
		var c Column
		if err := columns.Scan(&c.ID, &c.BoardID, &c.PhaseID, &c.Position); err != nil {
			columns.Close()
			return content, fmt.Errorf("scan column: %w", err)
		}
		content.Columns = append(content.Columns, c)
	}
	columns.Close()
	if err := columns.Err(); err != nil {
		return content, fmt.Errorf("iterate columns: %w", err)
	}

	blocks, err := queryBlocks(ctx, q, `WHERE board_id=$1 ORDER BY column_id, position, id`, boardID)
	if err != nil {
		return content, err
	}
	content.Blocks = blocks

	tags, err := queryTags(ctx, q, `WHERE board_id=$1 ORDER BY LOWER(name)`, boardID)
	if err != nil {
		return content, err
	}
	content.Tags = tags

	links, err := q.QueryContext(ctx, `
		SELECT bt.block_id, bt.tag_id
		FROM block_tags bt
		JOIN blocks b ON b.id = bt.block_id
		WHERE b.board_id=$1
		ORDER BY bt.block_id, bt.tag_id
	`, boardID)
	if err != nil {
		return content, fmt.Errorf("load block tags: %w", err)
	}
	for links.Next() {
		var link BlockTag
		if err := links.Scan(&link.BlockID, &link.TagID); err != nil {
			links.Close()
			return content, fmt.Errorf("scan block tag: %w", err)
		}
		content.BlockTags = append(content.BlockTags, link)
	}
	links.Close()
	if err := links.Err(); err != nil {
		return content, fmt.Errorf("iterate block tags: %w", err)
	}

	emotions, err := queryEmotions(ctx, q, boardID)
	if err != nil {
		return content, err
	}
	content.Emotions = emotions
	return content, nil
}

func upsertContent(ctx context.Context, tx *sql.Tx, boardID string, content BoardContent) error {
	for _, p := range content.Phases {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO phases (id, board_id, name, color, position) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET board_id=EXCLUDED.board_id, name=EXCLUDED.name, color=EXCLUDED.color, position=EXCLUDED.position
		`, p.ID, boardID, p.Name, p.Color, p.Position); err != nil {
			return fmt.Errorf("upsert phase: %w", err)
		}
	}
	for _, c := range content.Columns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO board_columns (id, board_id, phase_id, position) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET board_id=EXCLUDED.board_id, phase_id=EXCLUDED.phase_id, position=EXCLUDED.position
		`, c.ID, boardID, c.PhaseID, c.Position); err != nil {
			return fmt.Errorf("upsert column: %w", err)
		}
	}
	for _, t := range content.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tags (id, board_id, name, color) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, color=EXCLUDED.color
		`, t.ID, boardID, t.Name, t.Color); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateTag
			}
			return fmt.Errorf("upsert tag: %w", err)
		}
	}
	for _, b := range content.Blocks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (id, board_id, column_id, type, title, content, note, emoji, color, position, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				column_id=EXCLUDED.column_id, type=EXCLUDED.type, title=EXCLUDED.title, content=EXCLUDED.content,
				note=EXCLUDED.note, emoji=EXCLUDED.emoji, color=EXCLUDED.color, position=EXCLUDED.position, updated_at=NOW()
		`, b.ID, boardID, b.ColumnID, b.Type, b.Title, b.Content, b.Note, b.Emoji, b.Color, b.Position, b.CreatedBy); err != nil {
			return fmt.Errorf("upsert block: %w", err)
		}
	}
	for _, link := range content.BlockTags {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO block_tags (block_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, link.BlockID, link.TagID); err != nil {
			return fmt.Errorf("insert block tag: %w", err)
		}
	}
	for _, e := range content.Emotions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO emotions (column_id, board_id, intensity, label, emoji) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (column_id) DO UPDATE SET intensity=EXCLUDED.intensity, label=EXCLUDED.label, emoji=EXCLUDED.emoji, updated_at=NOW()
		`, e.ColumnID, boardID, e.Intensity, e.Label, e.Emoji); err != nil {
			return fmt.Errorf("upsert emotion: %w", err)
		}
	}
	return nil
}

func touchBoard(ctx context.Context, q queryer, boardID string) error {
	if _, err := q.ExecContext(ctx, `UPDATE boards SET updated_at=NOW() WHERE id=$1`, boardID); err != nil {
		return fmt.Errorf("touch board: %w", err)
	}
	return nil
}

func touchProject(ctx context.Context, q queryer, projectID string) error {
	if _, err := q.ExecContext(ctx, `UPDATE projects SET updated_at=NOW() WHERE id=$1`, projectID); err != nil {
		return fmt.Errorf("touch project: %w", err)
	}
	return nil
}
