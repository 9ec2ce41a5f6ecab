package store

import (
	"errors"
	"sync"
	"testing"
)

func TestConcurrentMovesOfOneBlockKeepItInOneColumn(t *testing.T) {
	s, ctx := openTestStore(t)
	seedBoard(t, ctx, s)

	for i, id := range []string{"blk_1", "blk_2", "blk_3"} {
		if _, err := s.CreateBlock(ctx, Block{ID: id, ColumnID: "col_a1", Type: "touchpoint", Position: i, CreatedBy: "usr_1"}); err != nil {
			t.Fatalf("CreateBlock(%s) error = %v", id, err)
		}
	}

	const movers = 8
	var wg sync.WaitGroup
	errs := make(chan error, movers)
	for i := 0; i < movers; i++ {
		target := "col_a1"
		if i%2 == 0 {
			target = "col_b1"
		}
		wg.Add(1)
		go func(column string, position int) {
			defer wg.Done()
			_, err := s.MoveBlock(ctx, "blk_2", column, position)
			errs <- err
		}(target, i%3)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, ErrMoveConflict) {
			t.Fatalf("MoveBlock() error = %v", err)
		}
	}

	a := blockOrder(t, ctx, s, "col_a1")
	b := blockOrder(t, ctx, s, "col_b1")
	seen := 0
	for _, id := range append(append([]string{}, a...), b...) {
		if id == "blk_2" {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("blk_2 appears %d times across %v and %v", seen, a, b)
	}
	if len(a)+len(b) != 3 {
		t.Fatalf("block count = %d, want 3", len(a)+len(b))
	}
}

func TestConcurrentColumnMovesKeepPhasesDense(t *testing.T) {
	s, ctx := openTestStore(t)
	seedBoard(t, ctx, s)
	if _, err := s.CreateColumn(ctx, Column{ID: "col_a2", PhaseID: "phs_a", Position: 1}); err != nil {
		t.Fatalf("CreateColumn() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		phase := "phs_a"
		if i%2 == 0 {
			phase = "phs_b"
		}
		wg.Add(1)
		go func(phaseID string) {
			defer wg.Done()
			_, err := s.MoveColumn(ctx, "col_a2", phaseID, 0)
			errs <- err
		}(phase)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, ErrMoveConflict) && !errors.Is(err, ErrLastColumn) {
			t.Fatalf("MoveColumn() error = %v", err)
		}
	}

	columns, err := s.ListColumns(ctx, "brd_1")
	if err != nil {
		t.Fatalf("ListColumns() error = %v", err)
	}
	next := map[string]int{}
	for _, c := range columns {
		if c.Position != next[c.PhaseID] {
			t.Fatalf("phase %s has position %d where %d was expected", c.PhaseID, c.Position, next[c.PhaseID])
		}
		next[c.PhaseID]++
	}
	total := len(columns)
	if total != 3 {
		t.Fatalf("column count = %d, want 3", total)
	}
}
