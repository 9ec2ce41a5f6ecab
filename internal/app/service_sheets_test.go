package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"journeymap/api/internal/sheets"
	"journeymap/api/internal/store"
)

const testSpreadsheetID = "1AbCdEfGhIjKlMnOpQrStUvWxYz0123456789"

type fakeFetcher struct {
	value string
	err   error
	calls []string
}

func (f *fakeFetcher) FetchCell(_ context.Context, spreadsheetID, a1 string) (string, error) {
	f.calls = append(f.calls, spreadsheetID+"/"+a1)
	return f.value, f.err
}

func (f *fakeFetcher) SheetTitles(context.Context, string) ([]sheets.SheetInfo, error) {
	return []sheets.SheetInfo{{ID: 0, Title: "Summary"}}, nil
}

// sheetsStore keeps one connection in memory so fetch results round-trip.
func sheetsStore(fs *fakeStore, existing *store.SheetsConnection) *fakeStore {
	fs.resolveScopeFn = boardScope("prj_1", "brd_1")
	fs.upsertSheetsConnFn = func(_ context.Context, c store.SheetsConnection) (store.SheetsConnection, error) {
		*existing = c
		return c, nil
	}
	fs.getSheetsConnFn = func(context.Context, string) (store.SheetsConnection, error) {
		if existing.ID == "" {
			return store.SheetsConnection{}, sql.ErrNoRows
		}
		return *existing, nil
	}
	fs.recordSheetsFetchFn = func(_ context.Context, _ string, value *string, fetchErr string, at time.Time) (store.SheetsConnection, error) {
		existing.LastValue, existing.LastError, existing.LastFetchedAt = value, fetchErr, &at
		return *existing, nil
	}
	fs.deleteSheetsConnFn = func(context.Context, string) error {
		*existing = store.SheetsConnection{}
		return nil
	}
	return fs
}

func TestConnectBlockFetchesImmediately(t *testing.T) {
	var conn store.SheetsConnection
	fs := sheetsStore(&fakeStore{getMemberRoleFn: memberAs("editor")}, &conn)
	fetcher := &fakeFetcher{value: "42"}
	svc := newTestService(fs)
	svc.sheets = sheets.NewSyncer(fs, fetcher, nil)

	view, err := svc.ConnectBlock(context.Background(), avery, "blk_1", SheetsInput{
		SpreadsheetURL: "https://docs.google.com/spreadsheets/d/" + testSpreadsheetID + "/edit#gid=0",
		SheetName:      "Summary",
		Cell:           "b2",
		Label:          "NPS",
		RefreshSeconds: 5,
	})
	if err != nil {
		t.Fatalf("ConnectBlock() error = %v", err)
	}
	if conn.SpreadsheetID != testSpreadsheetID || conn.SheetName != "Summary" || conn.Cell != "B2" || conn.BoardID != "brd_1" {
		t.Fatalf("unexpected connection %+v", conn)
	}
	if conn.RefreshSeconds != sheets.MinRefreshSeconds {
		t.Fatalf("refresh = %d, want the %d second floor", conn.RefreshSeconds, sheets.MinRefreshSeconds)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != testSpreadsheetID+"/Summary!B2" {
		t.Fatalf("fetch calls = %v", fetcher.calls)
	}
	if value := view["lastValue"].(*string); *value != "42" || view["numericValue"] == nil {
		t.Fatalf("unexpected view %v", view)
	}
}

func TestConnectBlockValidatesInput(t *testing.T) {
	var conn store.SheetsConnection
	fs := sheetsStore(&fakeStore{getMemberRoleFn: memberAs("editor")}, &conn)
	svc := newTestService(fs)
	ctx := context.Background()

	_, err := svc.ConnectBlock(ctx, avery, "blk_1", SheetsInput{SpreadsheetURL: testSpreadsheetID, Cell: "B2"})
	if !errors.Is(err, sheets.ErrNotConfigured) {
		t.Fatalf("ConnectBlock() without a fetcher error = %v", err)
	}

	svc.sheets = sheets.NewSyncer(fs, &fakeFetcher{}, nil)
	_, err = svc.ConnectBlock(ctx, avery, "blk_1", SheetsInput{SpreadsheetURL: "https://example.com/sheet", Cell: "B2"})
	if status, code, _, _ := mapError(err); status != http.StatusUnprocessableEntity || code != "INVALID_SHEETS_REFERENCE" {
		t.Fatalf("bad url = %d %s", status, code)
	}
	_, err = svc.ConnectBlock(ctx, avery, "blk_1", SheetsInput{SpreadsheetURL: testSpreadsheetID, Cell: "B2:C3"})
	if status, _, _, _ := mapError(err); status != http.StatusUnprocessableEntity {
		t.Fatalf("range status = %d", status)
	}
	if conn.ID != "" {
		t.Fatalf("invalid input must not be stored: %+v", conn)
	}
}

func TestConnectBlockRecordsFetchFailure(t *testing.T) {
	var conn store.SheetsConnection
	fs := sheetsStore(&fakeStore{getMemberRoleFn: memberAs("editor")}, &conn)
	svc := newTestService(fs)
	svc.sheets = sheets.NewSyncer(fs, &fakeFetcher{err: sheets.ErrAccessDenied}, nil)

	view, err := svc.ConnectBlock(context.Background(), avery, "blk_1", SheetsInput{SpreadsheetURL: testSpreadsheetID, Cell: "B2"})
	if err != nil {
		t.Fatalf("ConnectBlock() error = %v", err)
	}
	if view["lastError"] == "" || conn.LastValue != nil {
		t.Fatalf("fetch failure not recorded: %v", view)
	}
}

func TestRefreshSheetsConnectionIsDebounced(t *testing.T) {
	recent := time.Now().Add(-2 * time.Second)
	old := "10"
	conn := store.SheetsConnection{ID: "sht_1", BlockID: "blk_1", SpreadsheetID: testSpreadsheetID, Cell: "B2", LastValue: &old, LastFetchedAt: &recent}
	fs := sheetsStore(&fakeStore{getMemberRoleFn: memberAs("viewer")}, &conn)
	fetcher := &fakeFetcher{value: "11"}
	svc := newTestService(fs)
	svc.sheets = sheets.NewSyncer(fs, fetcher, nil)
	ctx := context.Background()

	view, err := svc.RefreshSheetsConnection(ctx, avery, "blk_1")
	if err != nil {
		t.Fatalf("RefreshSheetsConnection() error = %v", err)
	}
	if len(fetcher.calls) != 0 || *view["lastValue"].(*string) != "10" {
		t.Fatalf("refresh inside the debounce window fetched: calls=%v view=%v", fetcher.calls, view)
	}

	stale := time.Now().Add(-time.Minute)
	conn.LastFetchedAt = &stale
	view, err = svc.RefreshSheetsConnection(ctx, avery, "blk_1")
	if err != nil {
		t.Fatalf("RefreshSheetsConnection() error = %v", err)
	}
	if len(fetcher.calls) != 1 || *view["lastValue"].(*string) != "11" {
		t.Fatalf("stale refresh did not fetch: calls=%v view=%v", fetcher.calls, view)
	}
}

func TestRefreshWithoutConnectionIsNotFound(t *testing.T) {
	var conn store.SheetsConnection
	fs := sheetsStore(&fakeStore{getMemberRoleFn: memberAs("viewer")}, &conn)
	svc := newTestService(fs)
	svc.sheets = sheets.NewSyncer(fs, &fakeFetcher{}, nil)

	_, err := svc.RefreshSheetsConnection(context.Background(), avery, "blk_1")
	if status, _, _, _ := mapError(err); status != http.StatusNotFound {
		t.Fatalf("status = %d (%v), want 404", status, err)
	}
}

func TestDisconnectBlockRemovesBinding(t *testing.T) {
	conn := store.SheetsConnection{ID: "sht_1", BlockID: "blk_1", SpreadsheetID: testSpreadsheetID, Cell: "B2"}
	fs := sheetsStore(&fakeStore{getMemberRoleFn: memberAs("editor")}, &conn)
	svc := newTestService(fs)
	svc.sheets = sheets.NewSyncer(fs, &fakeFetcher{}, nil)
	ctx := context.Background()

	if err := svc.DisconnectBlock(ctx, avery, "blk_1"); err != nil {
		t.Fatalf("DisconnectBlock() error = %v", err)
	}
	if conn.ID != "" {
		t.Fatalf("binding still stored: %+v", conn)
	}
	err := svc.DisconnectBlock(ctx, avery, "blk_1")
	if status, _, _, _ := mapError(err); status != http.StatusNotFound {
		t.Fatalf("second disconnect status = %d (%v), want 404", status, err)
	}
}

func TestViewerCannotDisconnectBlock(t *testing.T) {
	conn := store.SheetsConnection{ID: "sht_1", BlockID: "blk_1"}
	fs := sheetsStore(&fakeStore{getMemberRoleFn: memberAs("viewer")}, &conn)

	err := newTestService(fs).DisconnectBlock(context.Background(), avery, "blk_1")
	requireStatus(t, err, http.StatusForbidden)
	if conn.ID == "" {
		t.Fatal("a viewer removed the binding")
	}
}
