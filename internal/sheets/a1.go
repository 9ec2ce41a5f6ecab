// Package sheets binds blocks to single Google Sheets cells and keeps their
// values fresh.
package sheets

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinRefreshSeconds     = 60
	MaxRefreshSeconds     = 24 * 60 * 60
	DefaultRefreshSeconds = 300

	maxColumn = 18278 // ZZZ
	maxRow    = 10_000_000
)

var (
	ErrInvalidSpreadsheet = errors.New("not a google sheets url or spreadsheet id")
	ErrInvalidCellRef     = errors.New("cell must be a single A1 reference like B2 or Sheet1!B2")
)

var (
	spreadsheetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)
	cellPattern          = regexp.MustCompile(`^([A-Za-z]{1,3})([0-9]{1,8})$`)
)

// Spreadsheet identifies a document and optionally one of its tabs.
type Spreadsheet struct {
	ID  string
	GID string
}

// ParseSpreadsheetURL accepts a docs.google.com/spreadsheets/d/{id} link or
// a bare spreadsheet id.
func ParseSpreadsheetURL(raw string) (Spreadsheet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spreadsheet{}, ErrInvalidSpreadsheet
	}
	if spreadsheetIDPattern.MatchString(raw) {
		return Spreadsheet{ID: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Spreadsheet{}, ErrInvalidSpreadsheet
	}
	if host := strings.ToLower(u.Hostname()); host != "docs.google.com" {
		return Spreadsheet{}, ErrInvalidSpreadsheet
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// /spreadsheets/d/{id} or /spreadsheets/u/{n}/d/{id}
	id := ""
	inSpreadsheets := false
	for i, part := range parts {
		if part == "spreadsheets" {
			inSpreadsheets = true
		}
		if inSpreadsheets && part == "d" && i+1 < len(parts) {
			id = parts[i+1]
			break
		}
	}
	if !spreadsheetIDPattern.MatchString(id) {
		return Spreadsheet{}, ErrInvalidSpreadsheet
	}

	gid := u.Query().Get("gid")
	if gid == "" && u.Fragment != "" {
		if frag, err := url.ParseQuery(u.Fragment); err == nil {
			gid = frag.Get("gid")
		}
	}
	if gid != "" {
		if _, err := strconv.ParseUint(gid, 10, 64); err != nil {
			gid = ""
		}
	}
	return Spreadsheet{ID: id, GID: gid}, nil
}

// CellRef is one cell, optionally qualified by its sheet.
type CellRef struct {
	Sheet  string
	Column string
	Row    int
}

// Cell returns the unqualified reference, e.g. "AA10".
func (c CellRef) Cell() string {
	return c.Column + strconv.Itoa(c.Row)
}

// A1 returns the reference in A1 notation, quoting the sheet name when needed.
func (c CellRef) A1() string {
	if c.Sheet == "" {
		return c.Cell()
	}
	return QuoteSheet(c.Sheet) + "!" + c.Cell()
}

// ParseCellRef parses B2, Sheet1!B2 or 'My Sheet'!AA10. Ranges are rejected.
func ParseCellRef(ref string) (CellRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, ":") {
		return CellRef{}, ErrInvalidCellRef
	}

	var sheet string
	cell := ref
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		var err error
		sheet, err = unquoteSheet(ref[:i])
		if err != nil {
			return CellRef{}, err
		}
		cell = ref[i+1:]
	}

	m := cellPattern.FindStringSubmatch(cell)
	if m == nil {
		return CellRef{}, ErrInvalidCellRef
	}
	column := strings.ToUpper(m[1])
	row, err := strconv.Atoi(m[2])
	if err != nil || row < 1 || row > maxRow || columnNumber(column) > maxColumn {
		return CellRef{}, ErrInvalidCellRef
	}
	return CellRef{Sheet: sheet, Column: column, Row: row}, nil
}

func unquoteSheet(s string) (string, error) {
	if s == "" {
		return "", ErrInvalidCellRef
	}
	if strings.HasPrefix(s, "'") {
		if len(s) < 3 || !strings.HasSuffix(s, "'") {
			return "", ErrInvalidCellRef
		}
		inner := s[1 : len(s)-1]
		if strings.Contains(strings.ReplaceAll(inner, "''", ""), "'") {
			return "", ErrInvalidCellRef
		}
		return strings.ReplaceAll(inner, "''", "'"), nil
	}
	if strings.ContainsAny(s, " '!") {
		return "", fmt.Errorf("%w: quote sheet names containing spaces", ErrInvalidCellRef)
	}
	return s, nil
}

var plainSheetName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteSheet quotes a sheet name for use in a range when it is not a plain identifier.
func QuoteSheet(name string) string {
	if plainSheetName.MatchString(name) && cellPattern.FindStringSubmatch(name) == nil {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func columnNumber(letters string) int {
	n := 0
	for _, r := range letters {
		n = n*26 + int(r-'A'+1)
	}
	return n
}

// ClampRefresh applies the default and the allowed bounds to a refresh interval.
func ClampRefresh(seconds, fallback int) int {
	if seconds <= 0 {
		seconds = fallback
	}
	if seconds <= 0 {
		seconds = DefaultRefreshSeconds
	}
	if seconds < MinRefreshSeconds {
		return MinRefreshSeconds
	}
	if seconds > MaxRefreshSeconds {
		return MaxRefreshSeconds
	}
	return seconds
}

// Binding resolves the sheet and cell a block points at. A sheet named in
// the cell reference wins over the separate sheet name.
func Binding(sheetName, cell string) (CellRef, error) {
	ref, err := ParseCellRef(cell)
	if err != nil {
		return CellRef{}, err
	}
	if ref.Sheet == "" {
		ref.Sheet = strings.TrimSpace(sheetName)
	}
	return ref, nil
}
