package app

import (
	"context"
	"strings"

	"journeymap/api/internal/journey"
	"journeymap/api/internal/rbac"
	"journeymap/api/internal/sheets"
	"journeymap/api/internal/store"
	"journeymap/api/internal/util"
)

const eventSheetsValue = "sheets.value"

type SheetsInput struct {
	SpreadsheetURL string `json:"spreadsheetUrl"`
	SheetName      string `json:"sheetName"`
	Cell           string `json:"cell"`
	Label          string `json:"label"`
	RefreshSeconds int    `json:"refreshSeconds"`
}

func (s *Service) sheetsSyncer() (*sheets.Syncer, error) {
	if !s.sheets.Configured() {
		return nil, sheets.ErrNotConfigured
	}
	return s.sheets, nil
}

func (s *Service) GetSheetsConnection(ctx context.Context, current Session, blockID string) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionRead); err != nil {
		return nil, err
	}
	conn, err := s.store.GetSheetsConnectionByBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	return sheetsView(s.sheets.Overlay(ctx, conn)), nil
}

// ConnectBlock binds the block to one cell, replacing any earlier binding,
// and fetches the value right away.
func (s *Service) ConnectBlock(ctx context.Context, current Session, blockID string, input SheetsInput) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	syncer, err := s.sheetsSyncer()
	if err != nil {
		return nil, err
	}
	spreadsheet, err := sheets.ParseSpreadsheetURL(input.SpreadsheetURL)
	if err != nil {
		return nil, err
	}
	ref, err := sheets.Binding(input.SheetName, input.Cell)
	if err != nil {
		return nil, err
	}
	label := strings.TrimSpace(input.Label)
	if err := journey.CheckLength("label", label, 0, journey.MaxTitleLength); err != nil {
		return nil, validationError("%s", err.Error())
	}

	conn, err := s.store.UpsertSheetsConnection(ctx, store.SheetsConnection{
		ID:             util.NewID("sht"),
		BlockID:        blockID,
		BoardID:        scope.BoardID,
		SpreadsheetID:  spreadsheet.ID,
		GID:            spreadsheet.GID,
		SheetName:      ref.Sheet,
		Cell:           ref.Cell(),
		Label:          label,
		RefreshSeconds: sheets.ClampRefresh(input.RefreshSeconds, int(s.cfg.SheetsDefaultRefresh.Seconds())),
		CreatedBy:      current.UserID,
	})
	if err != nil {
		return nil, err
	}
	synced, _, err := syncer.Sync(ctx, conn)
	if err != nil {
		return nil, err
	}
	view := sheetsView(synced)
	s.publish(ctx, scope.BoardID, eventSheetsValue, blockID, current, view)
	return view, nil
}

func (s *Service) DisconnectBlock(ctx context.Context, current Session, blockID string) error {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return err
	}
	conn, err := s.store.GetSheetsConnectionByBlock(ctx, blockID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSheetsConnectionByBlock(ctx, blockID); err != nil {
		return err
	}
	s.sheets.Forget(ctx, conn.ID)
	s.publish(ctx, scope.BoardID, eventSheetsValue, blockID, current, nil)
	return nil
}

// RefreshSheetsConnection is a manual refresh; see sheets.ManualRefreshDebounce.
func (s *Service) RefreshSheetsConnection(ctx context.Context, current Session, blockID string) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	syncer, err := s.sheetsSyncer()
	if err != nil {
		return nil, err
	}
	conn, err := s.store.GetSheetsConnectionByBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	refreshed, changed, err := syncer.Refresh(ctx, conn)
	if err != nil {
		return nil, err
	}
	view := sheetsView(syncer.Overlay(ctx, refreshed))
	if changed {
		s.publish(ctx, scope.BoardID, eventSheetsValue, blockID, current, view)
	}
	return view, nil
}

// InspectSpreadsheet lists the tabs of a spreadsheet for the connector form.
func (s *Service) InspectSpreadsheet(ctx context.Context, rawURL string) (map[string]any, error) {
	syncer, err := s.sheetsSyncer()
	if err != nil {
		return nil, err
	}
	spreadsheet, err := sheets.ParseSpreadsheetURL(rawURL)
	if err != nil {
		return nil, err
	}
	tabs, err := syncer.Fetcher().SheetTitles(ctx, spreadsheet.ID)
	if err != nil {
		return nil, err
	}
	if tabs == nil {
		tabs = []sheets.SheetInfo{}
	}
	return map[string]any{
		"spreadsheetId": spreadsheet.ID,
		"gid":           spreadsheet.GID,
		"sheets":        tabs,
	}, nil
}

// NotifySheetsValue tells a board's room that a polled cell changed.
func (s *Service) NotifySheetsValue(ctx context.Context, conn store.SheetsConnection) {
	s.publish(ctx, conn.BoardID, eventSheetsValue, conn.BlockID, Session{}, sheetsView(conn))
}
