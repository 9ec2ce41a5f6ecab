package sheets

import (
	"errors"
	"testing"
)

const sampleID = "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"

func TestParseSpreadsheetURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantID  string
		wantGID string
		wantErr bool
	}{
		{name: "bare id", in: sampleID, wantID: sampleID},
		{name: "edit url", in: "https://docs.google.com/spreadsheets/d/" + sampleID + "/edit", wantID: sampleID},
		{name: "gid in fragment", in: "https://docs.google.com/spreadsheets/d/" + sampleID + "/edit#gid=1234", wantID: sampleID, wantGID: "1234"},
		{name: "gid in query", in: "https://docs.google.com/spreadsheets/d/" + sampleID + "/edit?gid=42", wantID: sampleID, wantGID: "42"},
		{name: "account path", in: "https://docs.google.com/spreadsheets/u/1/d/" + sampleID + "/view", wantID: sampleID},
		{name: "non numeric gid dropped", in: "https://docs.google.com/spreadsheets/d/" + sampleID + "/edit#gid=abc", wantID: sampleID},
		{name: "other host", in: "https://example.com/spreadsheets/d/" + sampleID, wantErr: true},
		{name: "short id", in: "abc123", wantErr: true},
		{name: "empty", in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpreadsheetURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSpreadsheet) {
					t.Fatalf("expected ErrInvalidSpreadsheet, got %v (%+v)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSpreadsheetURL() error = %v", err)
			}
			if got.ID != tt.wantID || got.GID != tt.wantGID {
				t.Fatalf("got %+v, want id=%s gid=%s", got, tt.wantID, tt.wantGID)
			}
		})
	}
}

func TestParseCellRef(t *testing.T) {
	tests := []struct {
		in      string
		wantA1  string
		wantErr bool
	}{
		{in: "b2", wantA1: "B2"},
		{in: "Sheet1!B2", wantA1: "Sheet1!B2"},
		{in: "'My Sheet'!aa10", wantA1: "'My Sheet'!AA10"},
		{in: "'Bob''s data'!C3", wantA1: "'Bob''s data'!C3"},
		{in: "ZZZ1", wantA1: "ZZZ1"},
		{in: "A1:B2", wantErr: true},
		{in: "A0", wantErr: true},
		{in: "AAAA1", wantErr: true},
		{in: "My Sheet!B2", wantErr: true},
		{in: "'unterminated!B2", wantErr: true},
		{in: "!B2", wantErr: true},
		{in: "B", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		ref, err := ParseCellRef(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCellRef) {
				t.Errorf("ParseCellRef(%q) expected ErrInvalidCellRef, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCellRef(%q) error = %v", tt.in, err)
			continue
		}
		if ref.A1() != tt.wantA1 {
			t.Errorf("ParseCellRef(%q).A1() = %q, want %q", tt.in, ref.A1(), tt.wantA1)
		}
	}
}

func TestQuoteSheetQuotesCellLikeNames(t *testing.T) {
	if got := QuoteSheet("A1"); got != "'A1'" {
		t.Fatalf("QuoteSheet(A1) = %s", got)
	}
	if got := QuoteSheet("Revenue"); got != "Revenue" {
		t.Fatalf("QuoteSheet(Revenue) = %s", got)
	}
}

func TestBindingPrefersQualifiedSheet(t *testing.T) {
	ref, err := Binding("Summary", "Data!C4")
	if err != nil || ref.Sheet != "Data" || ref.Cell() != "C4" {
		t.Fatalf("Binding() = %+v, %v", ref, err)
	}
	ref, err = Binding(" Summary ", "c4")
	if err != nil || ref.A1() != "Summary!C4" {
		t.Fatalf("Binding() = %+v, %v", ref, err)
	}
}

func TestClampRefresh(t *testing.T) {
	tests := []struct{ in, fallback, want int }{
		{0, 0, DefaultRefreshSeconds},
		{0, 120, 120},
		{5, 300, MinRefreshSeconds},
		{600, 300, 600},
		{100000, 300, MaxRefreshSeconds},
	}
	for _, tt := range tests {
		if got := ClampRefresh(tt.in, tt.fallback); got != tt.want {
			t.Errorf("ClampRefresh(%d, %d) = %d, want %d", tt.in, tt.fallback, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"1,234.5", 1234.5, true},
		{"$1,200", 1200, true},
		{"€ 99.90", 99.9, true},
		{"12.5%", 12.5, true},
		{"(1,000)", -1000, true},
		{"-$3", -3, true},
		{"$-3", -3, true},
		{"+7", 7, true},
		{"1,2", 0, false},
		{"NaN", 0, false},
		{"1e5", 0, false},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
