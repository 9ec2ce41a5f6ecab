package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

var (
	ErrNotConfigured = errors.New("google sheets access not configured")
	ErrNotFound      = errors.New("spreadsheet or sheet not found")
	ErrAccessDenied  = errors.New("spreadsheet is not shared with the service")
)

// Fetcher reads cells and tab titles.
type Fetcher interface {
	FetchCell(ctx context.Context, spreadsheetID, a1 string) (string, error)
	SheetTitles(ctx context.Context, spreadsheetID string) ([]SheetInfo, error)
}

type SheetInfo struct {
	ID    int64  `json:"sheetId"`
	Title string `json:"title"`
	Index int64  `json:"index"`
}

type ClientConfig struct {
	APIKey          string
	CredentialsFile string
	// Endpoint overrides the API base URL and disables authentication when
	// neither credential is set.
	Endpoint string
}

// GoogleClient reads values through the Sheets v4 API.
type GoogleClient struct {
	svc *sheetsapi.Service
}

func NewGoogleClient(ctx context.Context, cfg ClientConfig) (*GoogleClient, error) {
	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope)}
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	default:
		return nil, ErrNotConfigured
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleClient{svc: svc}, nil
}

// FetchCell returns the formatted value of a single cell; empty cells yield "".
func (c *GoogleClient) FetchCell(ctx context.Context, spreadsheetID, a1 string) (string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, a1).
		ValueRenderOption("FORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

func (c *GoogleClient) SheetTitles(ctx context.Context, spreadsheetID string) ([]SheetInfo, error) {
	resp, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties(sheetId,title,index)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err)
	}
	out := make([]SheetInfo, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		out = append(out, SheetInfo{ID: sh.Properties.SheetId, Title: sh.Properties.Title, Index: sh.Properties.Index})
	}
	return out, nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAccessDenied, apiErr.Message)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", ErrInvalidCellRef, apiErr.Message)
		}
	}
	return fmt.Errorf("sheets api: %w", err)
}
