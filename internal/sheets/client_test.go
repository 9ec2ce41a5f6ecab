package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewGoogleClient(context.Background(), ClientConfig{Endpoint: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewGoogleClient() error = %v", err)
	}
	return client
}

func TestFetchCell(t *testing.T) {
	var gotPath, gotRender string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRender = r.URL.Query().Get("valueRenderOption")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"'My Sheet'!B2","majorDimension":"ROWS","values":[["$1,234"]]}`))
	})

	value, err := client.FetchCell(context.Background(), sampleID, "'My Sheet'!B2")
	if err != nil {
		t.Fatalf("FetchCell() error = %v", err)
	}
	if value != "$1,234" {
		t.Fatalf("value = %q", value)
	}
	if gotPath != "/v4/spreadsheets/"+sampleID+"/values/'My Sheet'!B2" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotRender != "FORMATTED_VALUE" {
		t.Fatalf("valueRenderOption = %q", gotRender)
	}
}

func TestFetchEmptyCell(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Sheet1!Z99","majorDimension":"ROWS"}`))
	})
	value, err := client.FetchCell(context.Background(), sampleID, "Sheet1!Z99")
	if err != nil || value != "" {
		t.Fatalf("FetchCell() = %q, %v", value, err)
	}
}

func TestFetchCellErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusForbidden, ErrAccessDenied},
		{http.StatusBadRequest, ErrInvalidCellRef},
	}
	for _, tt := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			fmt.Fprintf(w, `{"error":{"code":%d,"message":"upstream says no"}}`, tt.status)
		})
		_, err := client.FetchCell(context.Background(), sampleID, "A1")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}
}

func TestSheetTitles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("fields"), "sheets.properties") {
			t.Errorf("fields = %q", r.URL.Query().Get("fields"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sheets":[
			{"properties":{"sheetId":0,"title":"Summary","index":0}},
			{"properties":{"sheetId":987,"title":"Raw data","index":1}}
		]}`))
	})
	titles, err := client.SheetTitles(context.Background(), sampleID)
	if err != nil {
		t.Fatalf("SheetTitles() error = %v", err)
	}
	if len(titles) != 2 || titles[1].Title != "Raw data" || titles[1].ID != 987 {
		t.Fatalf("titles = %+v", titles)
	}
}

func TestNewGoogleClientNeedsCredentials(t *testing.T) {
	if _, err := NewGoogleClient(context.Background(), ClientConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
