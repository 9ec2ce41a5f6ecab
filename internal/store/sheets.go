package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sheetsColumns = `id, block_id, board_id, spreadsheet_id, gid, sheet_name, cell, label, refresh_seconds,
	last_value, last_fetched_at, last_error, created_by, created_at, updated_at`

func scanSheetsConnection(row interface{ Scan(...any) error }) (SheetsConnection, error) {
	var c SheetsConnection
	var lastValue sql.NullString
	var lastFetched sql.NullTime
	err := row.Scan(&c.ID, &c.BlockID, &c.BoardID, &c.SpreadsheetID, &c.GID, &c.SheetName, &c.Cell, &c.Label,
		&c.RefreshSeconds, &lastValue, &lastFetched, &c.LastError, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return SheetsConnection{}, err
	}
	if lastValue.Valid {
		v := lastValue.String
		c.LastValue = &v
	}
	if lastFetched.Valid {
		t := lastFetched.Time
		c.LastFetchedAt = &t
	}
	return c, nil
}

func querySheetsConnections(ctx context.Context, q queryer, where string, args ...any) ([]SheetsConnection, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+sheetsColumns+` FROM sheets_connections `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list sheets connections: %w", err)
	}
	defer rows.Close()
	items := make([]SheetsConnection, 0)
	for rows.Next() {
		item, err := scanSheetsConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sheets connection: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheets connections: %w", err)
	}
	return items, nil
}

// UpsertSheetsConnection binds a block to a cell, replacing any earlier binding.
func (s *PostgresStore) UpsertSheetsConnection(ctx context.Context, c SheetsConnection) (SheetsConnection, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO sheets_connections (id, block_id, board_id, spreadsheet_id, gid, sheet_name, cell, label, refresh_seconds, created_by)
		SELECT $1, b.id, b.board_id, $3, $4, $5, $6, $7, $8, $9 FROM blocks b WHERE b.id=$2
		ON CONFLICT (block_id) DO UPDATE SET
			spreadsheet_id=EXCLUDED.spreadsheet_id, gid=EXCLUDED.gid, sheet_name=EXCLUDED.sheet_name,
			cell=EXCLUDED.cell, label=EXCLUDED.label, refresh_seconds=EXCLUDED.refresh_seconds,
			last_value=NULL, last_fetched_at=NULL, last_error='', updated_at=NOW()
		RETURNING `+sheetsColumns,
		c.ID, c.BlockID, c.SpreadsheetID, c.GID, c.SheetName, c.Cell, c.Label, c.RefreshSeconds, c.CreatedBy)
	return scanSheetsConnection(row)
}

func (s *PostgresStore) GetSheetsConnectionByBlock(ctx context.Context, blockID string) (SheetsConnection, error) {
	return scanSheetsConnection(s.db.QueryRowContext(ctx, `SELECT `+sheetsColumns+` FROM sheets_connections WHERE block_id=$1`, blockID))
}

func (s *PostgresStore) DeleteSheetsConnectionByBlock(ctx context.Context, blockID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sheets_connections WHERE block_id=$1`, blockID)
	if err != nil {
		return fmt.Errorf("delete sheets connection: %w", err)
	}
	return requireAffected(res)
}

// RecordSheetsFetch stores a fetch outcome. A failed fetch keeps the last good value.
func (s *PostgresStore) RecordSheetsFetch(ctx context.Context, connectionID string, value *string, fetchErr string, fetchedAt time.Time) (SheetsConnection, error) {
	var v any
	if value != nil {
		v = *value
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE sheets_connections
		SET last_value=CASE WHEN $2::text IS NULL THEN last_value ELSE $2::text END,
			last_error=$3,
			last_fetched_at=$4,
			claimed_until=NULL,
			updated_at=NOW()
		WHERE id=$1
		RETURNING `+sheetsColumns,
		connectionID, v, fetchErr, fetchedAt)
	return scanSheetsConnection(row)
}

// ClaimDueSheetsConnections leases up to limit bindings whose refresh interval
// has elapsed, never-fetched first. A claimed row is skipped by other
// instances until its lease ends or its fetch is recorded.
func (s *PostgresStore) ClaimDueSheetsConnections(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]SheetsConnection, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		UPDATE sheets_connections
		SET claimed_until = $1::timestamptz + make_interval(secs => $3)
		WHERE id IN (
			SELECT id FROM sheets_connections
			WHERE (last_fetched_at IS NULL OR last_fetched_at + make_interval(secs => refresh_seconds) <= $1)
				AND (claimed_until IS NULL OR claimed_until <= $1)
			ORDER BY last_fetched_at ASC NULLS FIRST
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+sheetsColumns,
		now, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim sheets connections: %w", err)
	}
	defer rows.Close()
	items := make([]SheetsConnection, 0)
	for rows.Next() {
		item, err := scanSheetsConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sheets connection: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheets connections: %w", err)
	}
	return items, nil
}
