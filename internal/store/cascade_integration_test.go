package store

import (
	"strings"
	"testing"
)

func TestCascadingDeletesReportRemovedBlocksAndObjects(t *testing.T) {
	s, ctx := openTestStore(t)
	seedBoard(t, ctx, s)

	if _, err := s.CreateColumn(ctx, Column{ID: "col_a2", PhaseID: "phs_a", Position: 1}); err != nil {
		t.Fatalf("CreateColumn() error = %v", err)
	}
	blocks := map[string]string{"blk_a1": "col_a1", "blk_a2": "col_a2", "blk_b1": "col_b1"}
	for id, column := range blocks {
		if _, err := s.CreateBlock(ctx, Block{ID: id, ColumnID: column, Type: "touchpoint", CreatedBy: "usr_1"}); err != nil {
			t.Fatalf("CreateBlock(%s) error = %v", id, err)
		}
		if _, err := s.CreateAttachment(ctx, Attachment{ID: "att_" + id, BlockID: id, Type: "file", ObjectKey: "boards/brd_1/" + id, CreatedBy: "usr_1"}); err != nil {
			t.Fatalf("CreateAttachment(%s) error = %v", id, err)
		}
	}
	if _, err := s.CreateAttachment(ctx, Attachment{ID: "att_link", BlockID: "blk_a1", Type: "link", URL: "https://example.com", CreatedBy: "usr_1"}); err != nil {
		t.Fatalf("CreateAttachment(link) error = %v", err)
	}

	removed, err := s.DeleteColumn(ctx, "col_a2")
	if err != nil {
		t.Fatalf("DeleteColumn() error = %v", err)
	}
	if got := strings.Join(removed.BlockIDs, ","); got != "blk_a2" {
		t.Fatalf("column removed blocks = %s", got)
	}
	if got := strings.Join(removed.ObjectKeys, ","); got != "boards/brd_1/blk_a2" {
		t.Fatalf("column removed objects = %s", got)
	}

	removed, err = s.DeletePhase(ctx, "phs_a")
	if err != nil {
		t.Fatalf("DeletePhase() error = %v", err)
	}
	if got := strings.Join(removed.BlockIDs, ","); got != "blk_a1" {
		t.Fatalf("phase removed blocks = %s", got)
	}
	if got := strings.Join(removed.ObjectKeys, ","); got != "boards/brd_1/blk_a1" {
		t.Fatalf("phase removed objects = %s", got)
	}

	removed, err = s.DeleteProject(ctx, "prj_1")
	if err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if got := strings.Join(removed.ObjectKeys, ","); got != "boards/brd_1/blk_b1" {
		t.Fatalf("project removed objects = %s", got)
	}
}

func TestReplaceBoardContentReportsDroppedBlocks(t *testing.T) {
	s, ctx := openTestStore(t)
	seedBoard(t, ctx, s)

	for _, id := range []string{"blk_keep", "blk_drop"} {
		if _, err := s.CreateBlock(ctx, Block{ID: id, ColumnID: "col_a1", Type: "touchpoint", CreatedBy: "usr_1"}); err != nil {
			t.Fatalf("CreateBlock(%s) error = %v", id, err)
		}
	}
	if _, err := s.CreateAttachment(ctx, Attachment{ID: "att_1", BlockID: "blk_drop", Type: "image", ObjectKey: "boards/brd_1/shot.png", CreatedBy: "usr_1"}); err != nil {
		t.Fatalf("CreateAttachment() error = %v", err)
	}
	tree, err := s.LoadBoardTree(ctx, "brd_1")
	if err != nil {
		t.Fatalf("LoadBoardTree() error = %v", err)
	}
	content := tree.BoardContent
	content.Blocks = nil
	for _, b := range tree.Blocks {
		if b.ID == "blk_keep" {
			content.Blocks = append(content.Blocks, b)
		}
	}

	removed, err := s.ReplaceBoardContent(ctx, "brd_1", content)
	if err != nil {
		t.Fatalf("ReplaceBoardContent() error = %v", err)
	}
	if got := strings.Join(removed.BlockIDs, ","); got != "blk_drop" {
		t.Fatalf("dropped blocks = %s", got)
	}
	if got := strings.Join(removed.ObjectKeys, ","); got != "boards/brd_1/shot.png" {
		t.Fatalf("dropped objects = %s", got)
	}
}
