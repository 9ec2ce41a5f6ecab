package sheets

import (
	"context"
	"fmt"
	"time"

	"journeymap/api/internal/store"
)

// ManualRefreshDebounce is the window in which a manual refresh returns the
// stored value instead of calling the API again.
const ManualRefreshDebounce = 10 * time.Second

// Store is the persistence the syncer and poller need.
type Store interface {
	ClaimDueSheetsConnections(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]store.SheetsConnection, error)
	RecordSheetsFetch(ctx context.Context, connectionID string, value *string, fetchErr string, fetchedAt time.Time) (store.SheetsConnection, error)
}

// Syncer fetches a connection's cell and records the outcome.
type Syncer struct {
	store   Store
	fetcher Fetcher
	cache   *Cache
	now     func() time.Time
}

func NewSyncer(st Store, fetcher Fetcher, cache *Cache) *Syncer {
	return &Syncer{store: st, fetcher: fetcher, cache: cache, now: time.Now}
}

// Configured reports whether cells can be fetched at all.
func (s *Syncer) Configured() bool {
	return s != nil && s.fetcher != nil
}

func (s *Syncer) Fetcher() Fetcher {
	if s == nil {
		return nil
	}
	return s.fetcher
}

// Sync fetches conn's cell. Fetch failures are recorded on the connection and
// are not returned as errors; changed reports whether the stored value moved.
func (s *Syncer) Sync(ctx context.Context, conn store.SheetsConnection) (store.SheetsConnection, bool, error) {
	if !s.Configured() {
		return conn, false, ErrNotConfigured
	}
	now := s.now().UTC()
	ref := CellRef{Sheet: conn.SheetName}
	cell, err := ParseCellRef(conn.Cell)
	if err == nil {
		ref.Column, ref.Row = cell.Column, cell.Row
	}

	var value *string
	fetchErr := ""
	if err != nil {
		fetchErr = err.Error()
	} else if raw, err := s.fetcher.FetchCell(ctx, conn.SpreadsheetID, ref.A1()); err != nil {
		fetchErr = err.Error()
	} else {
		value = &raw
	}

	updated, err := s.store.RecordSheetsFetch(ctx, conn.ID, value, fetchErr, now)
	if err != nil {
		return conn, false, fmt.Errorf("record sheets fetch: %w", err)
	}
	changed := value != nil && (conn.LastValue == nil || *conn.LastValue != *value)
	if value != nil {
		ttl := time.Duration(updated.RefreshSeconds) * time.Second * 2
		_ = s.cache.Put(ctx, conn.ID, CachedValue{Raw: *value, FetchedAt: now}, ttl)
	}
	return updated, changed, nil
}

// Refresh is a manual refresh: within the debounce window the stored
// connection is returned unchanged.
func (s *Syncer) Refresh(ctx context.Context, conn store.SheetsConnection) (store.SheetsConnection, bool, error) {
	if conn.LastFetchedAt != nil && s.now().Sub(*conn.LastFetchedAt) < ManualRefreshDebounce {
		return conn, false, nil
	}
	return s.Sync(ctx, conn)
}

// Forget drops the cached value of a removed connection.
func (s *Syncer) Forget(ctx context.Context, connectionID string) {
	if s == nil {
		return
	}
	_ = s.cache.Delete(ctx, connectionID)
}

// Overlay replaces conn's value with a fresher cached one, if any.
func (s *Syncer) Overlay(ctx context.Context, conn store.SheetsConnection) store.SheetsConnection {
	if s == nil {
		return conn
	}
	cached, ok, err := s.cache.Get(ctx, conn.ID)
	if err != nil || !ok {
		return conn
	}
	if conn.LastFetchedAt == nil || cached.FetchedAt.After(*conn.LastFetchedAt) {
		raw := cached.Raw
		fetched := cached.FetchedAt
		conn.LastValue = &raw
		conn.LastFetchedAt = &fetched
		conn.LastError = ""
	}
	return conn
}
