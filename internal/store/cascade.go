package store

import (
	"context"
	"fmt"
)

// collectRemoved reads the blocks selected by blockWhere, plus the uploaded
// objects attached to them. Call it inside the deleting transaction, after the
// parent rows are locked.
func collectRemoved(ctx context.Context, q queryer, blockWhere string, args ...any) (Removed, error) {
	var removed Removed
	ids, err := queryStrings(ctx, q, `SELECT id FROM blocks WHERE `+blockWhere+` ORDER BY id`, args...)
	if err != nil {
		return removed, fmt.Errorf("collect removed blocks: %w", err)
	}
	keys, err := queryStrings(ctx, q, `
		SELECT object_key FROM attachments
		WHERE object_key <> '' AND block_id IN (SELECT id FROM blocks WHERE `+blockWhere+`)
		ORDER BY object_key
	`, args...)
	if err != nil {
		return removed, fmt.Errorf("collect removed objects: %w", err)
	}
	removed.BlockIDs = ids
	removed.ObjectKeys = keys
	return removed, nil
}

func (r *Removed) add(other Removed) {
	r.BlockIDs = append(r.BlockIDs, other.BlockIDs...)
	r.ObjectKeys = append(r.ObjectKeys, other.ObjectKeys...)
}

func queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
