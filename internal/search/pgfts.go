package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const (
	tsQuery  = "plainto_tsquery('simple', $1)"
	headline = "'MaxFragments=1,MaxWords=30,StartSel=<mark>,StopSel=</mark>'"
)

// pgSubQueries returns one SELECT per requested entity type. $1 is the
// query text and $2 the caller's project ids.
func pgSubQueries(filter ResultType) []string {
	var subQueries []string
	if filter == "" || filter == ResultBoard {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'board'::text AS type, b.id, b.project_id, b.id AS board_id, ''::text AS block_id,
				b.name AS title,
				ts_headline('simple', b.description, %[1]s, %[2]s) AS snippet,
				ts_rank(b.search_vector, %[1]s) AS rank
			FROM boards b
			WHERE b.search_vector @@ %[1]s AND b.project_id = ANY($2)`, tsQuery, headline))
	}
	if filter == "" || filter == ResultBlock {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'block'::text AS type, bl.id, b.project_id, bl.board_id, bl.id AS block_id,
				coalesce(nullif(bl.title, ''), bl.type) AS title,
				ts_headline('simple', bl.content || ' ' || bl.note, %[1]s, %[2]s) AS snippet,
				ts_rank(bl.search_vector, %[1]s) AS rank
			FROM blocks bl
			JOIN boards b ON b.id = bl.board_id
			WHERE bl.search_vector @@ %[1]s AND b.project_id = ANY($2)`, tsQuery, headline))
	}
	if filter == "" || filter == ResultComment {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, b.project_id, c.board_id, c.block_id,
				u.display_name AS title,
				ts_headline('simple', c.content, %[1]s, %[2]s) AS snippet,
				ts_rank(c.search_vector, %[1]s) AS rank
			FROM comments c
			JOIN boards b ON b.id = c.board_id
			JOIN users u ON u.id = c.author_id
			WHERE c.search_vector @@ %[1]s AND b.project_id = ANY($2)`, tsQuery, headline))
	}
	return subQueries
}

// Search runs a UNION ALL across boards, blocks and comments ranked by ts_rank.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || len(q.ProjectIDs) == 0 {
		return nil, 0, nil
	}
	subQueries := pgSubQueries(q.FilterType)
	if len(subQueries) == 0 {
		return nil, 0, nil
	}
	union := strings.Join(subQueries, " UNION ALL ")
	args := []any{q.Text, q.ProjectIDs}

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM ("+union+") sub", args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT type, id, project_id, board_id, block_id, title, snippet
		FROM (%s) sub
		ORDER BY rank DESC, id
		LIMIT %d OFFSET %d`, union, q.limit(), q.offset())
	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.ProjectID, &r.BoardID, &r.BlockID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]BoardRecord, []BlockRecord, []CommentRecord, error) {
	boards := make([]BoardRecord, 0)
	err := p.each(ctx, `SELECT id, project_id, name, description FROM boards`, func(rows *sql.Rows) error {
		var b BoardRecord
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Description); err != nil {
			return err
		}
		boards = append(boards, b)
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load boards: %w", err)
	}

	blocks := make([]BlockRecord, 0)
	err = p.each(ctx, `
		SELECT bl.id, b.project_id, bl.board_id, bl.type, bl.title, bl.content, bl.note
		FROM blocks bl
		JOIN boards b ON b.id = bl.board_id`, func(rows *sql.Rows) error {
		var b BlockRecord
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.BoardID, &b.Type, &b.Title, &b.Content, &b.Note); err != nil {
			return err
		}
		blocks = append(blocks, b)
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load blocks: %w", err)
	}

	comments := make([]CommentRecord, 0)
	err = p.each(ctx, `
		SELECT c.id, b.project_id, c.board_id, c.block_id, c.content, u.display_name
		FROM comments c
		JOIN boards b ON b.id = c.board_id
		JOIN users u ON u.id = c.author_id`, func(rows *sql.Rows) error {
		var c CommentRecord
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.BoardID, &c.BlockID, &c.Content, &c.AuthorName); err != nil {
			return err
		}
		comments = append(comments, c)
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load comments: %w", err)
	}

	return boards, blocks, comments, nil
}

func (p *PgFTS) each(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
