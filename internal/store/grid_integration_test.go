package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// openTestStore migrates a fresh schema in JOURNEY_TEST_DATABASE_URL.
func openTestStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("JOURNEY_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("JOURNEY_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn, Pool{MaxOpen: 4})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if _, err := ApplyMigrations(ctx, db, filepath.FromSlash(migrationsPath)); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func seedBoard(t *testing.T, ctx context.Context, s *PostgresStore) {
	t.Helper()
	if err := s.CreateUser(ctx, User{ID: "usr_1", DisplayName: "Avery", Email: "Avery@Example.com"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.CreateProject(ctx, Project{ID: "prj_1", Name: "Checkout", CreatedBy: "usr_1"}); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	err := s.CreateBoard(ctx, Board{ID: "brd_1", ProjectID: "prj_1", Name: "Journey", CreatedBy: "usr_1"}, BoardContent{
		Phases: []Phase{
			{ID: "phs_a", Name: "Awareness", Position: 0},
			{ID: "phs_b", Name: "Purchase", Position: 1},
		},
		Columns: []Column{
			{ID: "col_a1", PhaseID: "phs_a", Position: 0},
			{ID: "col_b1", PhaseID: "phs_b", Position: 0},
		},
	})
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
}

func blockOrder(t *testing.T, ctx context.Context, s *PostgresStore, columnID string) []string {
	t.Helper()
	blocks, err := queryBlocks(ctx, s.db, `WHERE column_id=$1 ORDER BY position`, columnID)
	if err != nil {
		t.Fatalf("queryBlocks() error = %v", err)
	}
	ids := make([]string, len(blocks))
	for i, b := range blocks {
		if b.Position != i {
			t.Fatalf("column %s has position %d at index %d", columnID, b.Position, i)
		}
		ids[i] = b.ID
	}
	return ids
}

func TestBlockMovesKeepPositionsDense(t *testing.T) {
	s, ctx := openTestStore(t)
	seedBoard(t, ctx, s)

	for i, id := range []string{"blk_1", "blk_2", "blk_3"} {
		if _, err := s.CreateBlock(ctx, Block{ID: id, ColumnID: "col_a1", Type: "touchpoint", Position: i, CreatedBy: "usr_1"}); err != nil {
			t.Fatalf("CreateBlock(%s) error = %v", id, err)
		}
	}
	if got := strings.Join(blockOrder(t, ctx, s, "col_a1"), ","); got != "blk_1,blk_2,blk_3" {
		t.Fatalf("initial order = %s", got)
	}

	if _, err := s.MoveBlock(ctx, "blk_3", "col_a1", 0); err != nil {
		t.Fatalf("MoveBlock() error = %v", err)
	}
	if got := strings.Join(blockOrder(t, ctx, s, "col_a1"), ","); got != "blk_3,blk_1,blk_2" {
		t.Fatalf("order after move = %s", got)
	}

	moved, err := s.MoveBlock(ctx, "blk_1", "col_b1", 42)
	if err != nil {
		t.Fatalf("MoveBlock(cross) error = %v", err)
	}
	if moved.ColumnID != "col_b1" || moved.Position != 0 {
		t.Fatalf("unexpected moved block: %+v", moved)
	}
	if got := strings.Join(blockOrder(t, ctx, s, "col_a1"), ","); got != "blk_3,blk_2" {
		t.Fatalf("source order = %s", got)
	}

	if err := s.DeleteBlock(ctx, "blk_3"); err != nil {
		t.Fatalf("DeleteBlock() error = %v", err)
	}
	if got := strings.Join(blockOrder(t, ctx, s, "col_a1"), ","); got != "blk_2" {
		t.Fatalf("order after delete = %s", got)
	}
}

func TestGridKeepsOnePhaseAndColumn(t *testing.T) {
	s, ctx := openTestStore(t)
	seedBoard(t, ctx, s)

	if _, err := s.DeleteColumn(ctx, "col_a1"); !errors.Is(err, ErrLastColumn) {
		t.Fatalf("DeleteColumn(last) error = %v, want ErrLastColumn", err)
	}
	if _, err := s.MoveColumn(ctx, "col_a1", "phs_b", 0); !errors.Is(err, ErrLastColumn) {
		t.Fatalf("MoveColumn(last) error = %v, want ErrLastColumn", err)
	}
	if _, err := s.DeletePhase(ctx, "phs_a"); err != nil {
		t.Fatalf("DeletePhase() error = %v", err)
	}
	if _, err := s.DeletePhase(ctx, "phs_b"); !errors.Is(err, ErrLastPhase) {
		t.Fatalf("DeletePhase(last) error = %v, want ErrLastPhase", err)
	}
	phase, err := s.GetPhase(ctx, "phs_b")
	if err != nil || phase.Position != 0 {
		t.Fatalf("remaining phase = %+v, %v", phase, err)
	}
	if err := s.ReorderPhases(ctx, "brd_1", []string{"phs_b", "phs_a"}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("ReorderPhases(stale) error = %v, want ErrInvalidOrder", err)
	}
}

func TestLastOwnerIsProtected(t *testing.T) {
	s, ctx := openTestStore(t)
	seedBoard(t, ctx, s)

	if err := s.SetMemberRole(ctx, "prj_1", "usr_1", "editor"); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("SetMemberRole(last owner) error = %v", err)
	}
	if err := s.RemoveMember(ctx, "prj_1", "usr_1"); !errors.Is(err, ErrLastOwner) {
		t.Fatalf("RemoveMember(last owner) error = %v", err)
	}
	if _, err := s.GetMemberRole(ctx, "prj_1", "usr_404"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("GetMemberRole(non-member) error = %v", err)
	}
}

func TestDuplicateTagNamesAreRejectedCaseInsensitively(t *testing.T) {
	s, ctx := openTestStore(t)
	seedBoard(t, ctx, s)

	if _, err := s.CreateTag(ctx, Tag{ID: "tag_1", BoardID: "brd_1", Name: "Mobile", Color: "#3B82F6"}); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if _, err := s.CreateTag(ctx, Tag{ID: "tag_2", BoardID: "brd_1", Name: "mobile", Color: "#3B82F6"}); !errors.Is(err, ErrDuplicateTag) {
		t.Fatalf("CreateTag(duplicate) error = %v, want ErrDuplicateTag", err)
	}
}
