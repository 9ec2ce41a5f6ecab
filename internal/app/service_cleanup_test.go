package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"journeymap/api/internal/history"
	"journeymap/api/internal/search"
	"journeymap/api/internal/store"
)

// fakeIndexer reports index writes on channels since the search service
// applies them in the background.
type fakeIndexer struct {
	indexed chan string
	deleted chan string
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: make(chan string, 64), deleted: make(chan string, 64)}
}

func (f *fakeIndexer) Healthy() bool { return true }
func (f *fakeIndexer) IndexBoard(b search.BoardRecord) error {
	f.indexed <- "board:" + b.ID
	return nil
}
func (f *fakeIndexer) IndexBlock(b search.BlockRecord) error {
	f.indexed <- "block:" + b.ID
	return nil
}
func (f *fakeIndexer) IndexComment(search.CommentRecord) error { return nil }
func (f *fakeIndexer) DeleteBoard(id string) error {
	f.deleted <- "board:" + id
	return nil
}
func (f *fakeIndexer) DeleteBlock(id string) error {
	f.deleted <- "block:" + id
	return nil
}
func (f *fakeIndexer) DeleteComment(string) error { return nil }
func (f *fakeIndexer) Reindex([]search.BoardRecord, []search.BlockRecord, []search.CommentRecord) error {
	return nil
}

// receive collects n values from ch in sorted order.
func receive(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	got := make([]string, 0, n)
	timeout := time.After(3 * time.Second)
	for len(got) < n {
		select {
		case v := <-ch:
			got = append(got, v)
		case <-timeout:
			t.Fatalf("received %v, want %d values", got, n)
		}
	}
	sort.Strings(got)
	return got
}

type fakeObjects struct {
	mu      sync.Mutex
	stored  map[string]string
	removed []string
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{stored: map[string]string{}}
}

func (f *fakeObjects) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.stored[key] = contentType
	return nil
}

func (f *fakeObjects) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key, filename string) (string, error) {
	return "https://files.example.com/" + key + "?filename=" + filename, nil
}

func (f *fakeObjects) removedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := append([]string(nil), f.removed...)
	sort.Strings(keys)
	return keys
}

// withBackends attaches a recording indexer and object store to svc.
func withBackends(svc *Service) (*fakeIndexer, *fakeObjects) {
	indexer, objects := newFakeIndexer(), newFakeObjects()
	svc.search = search.New(search.Backends{Index: indexer}, nil)
	svc.objects = objects
	return indexer, objects
}

var cascade = store.Removed{
	BlockIDs:   []string{"blk_1", "blk_2"},
	ObjectKeys: []string{"projects/prj_1/blocks/blk_1/att_1/journey.png"},
}

func TestDeletePhaseUnindexesRemovedBlocks(t *testing.T) {
	fs := &fakeStore{
		resolveScopeFn:  boardScope("prj_1", "brd_1"),
		getMemberRoleFn: memberAs("editor"),
		deletePhaseFn:   func(context.Context, string) (store.Removed, error) { return cascade, nil },
	}
	svc := newTestService(fs)
	indexer, objects := withBackends(svc)

	if err := svc.DeletePhase(context.Background(), avery, "phs_1"); err != nil {
		t.Fatalf("DeletePhase() error = %v", err)
	}
	if got := strings.Join(receive(t, indexer.deleted, 2), ","); got != "block:blk_1,block:blk_2" {
		t.Fatalf("unindexed %s", got)
	}
	if got := objects.removedKeys(); len(got) != 1 || got[0] != cascade.ObjectKeys[0] {
		t.Fatalf("removed objects %v", got)
	}
}

func TestDeleteColumnUnindexesRemovedBlocks(t *testing.T) {
	fs := &fakeStore{
		resolveScopeFn:  boardScope("prj_1", "brd_1"),
		getMemberRoleFn: memberAs("editor"),
		deleteColumnFn:  func(context.Context, string) (store.Removed, error) { return cascade, nil },
	}
	svc := newTestService(fs)
	indexer, objects := withBackends(svc)

	if err := svc.DeleteColumn(context.Background(), avery, "col_1"); err != nil {
		t.Fatalf("DeleteColumn() error = %v", err)
	}
	if got := strings.Join(receive(t, indexer.deleted, 2), ","); got != "block:blk_1,block:blk_2" {
		t.Fatalf("unindexed %s", got)
	}
	if got := objects.removedKeys(); len(got) != 1 {
		t.Fatalf("removed objects %v", got)
	}
}

func TestFailedColumnDeleteKeepsIndexAndFiles(t *testing.T) {
	fs := &fakeStore{
		resolveScopeFn:  boardScope("prj_1", "brd_1"),
		getMemberRoleFn: memberAs("editor"),
		deleteColumnFn: func(context.Context, string) (store.Removed, error) {
			return store.Removed{}, store.ErrLastColumn
		},
	}
	svc := newTestService(fs)
	indexer, objects := withBackends(svc)

	if err := svc.DeleteColumn(context.Background(), avery, "col_1"); !errors.Is(err, store.ErrLastColumn) {
		t.Fatalf("DeleteColumn() error = %v, want ErrLastColumn", err)
	}
	select {
	case v := <-indexer.deleted:
		t.Fatalf("unexpected unindex %s", v)
	case <-time.After(100 * time.Millisecond):
	}
	if got := objects.removedKeys(); len(got) != 0 {
		t.Fatalf("removed objects %v", got)
	}
}

func TestDeleteBoardRemovesUploadedFiles(t *testing.T) {
	fs := &fakeStore{
		resolveScopeFn:  boardScope("prj_1", "brd_1"),
		getMemberRoleFn: memberAs("owner"),
		deleteBoardFn:   func(context.Context, string) (store.Removed, error) { return cascade, nil },
	}
	svc := newTestService(fs)
	indexer, objects := withBackends(svc)

	if err := svc.DeleteBoard(context.Background(), avery, "brd_1"); err != nil {
		t.Fatalf("DeleteBoard() error = %v", err)
	}
	if got := receive(t, indexer.deleted, 1); got[0] != "board:brd_1" {
		t.Fatalf("unindexed %v", got)
	}
	if got := objects.removedKeys(); len(got) != 1 || got[0] != cascade.ObjectKeys[0] {
		t.Fatalf("removed objects %v", got)
	}
}

func TestDeleteProjectRemovesFilesOfEveryBoard(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: memberAs("owner"),
		listBoardsFn: func(context.Context, string) ([]store.Board, error) {
			return []store.Board{{ID: "brd_1"}, {ID: "brd_2"}}, nil
		},
		deleteProjectFn: func(context.Context, string) (store.Removed, error) {
			return store.Removed{ObjectKeys: []string{"projects/prj_1/a", "projects/prj_1/b"}}, nil
		},
	}
	svc := newTestService(fs)
	indexer, objects := withBackends(svc)

	if err := svc.DeleteProject(context.Background(), avery, "prj_1"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if got := strings.Join(receive(t, indexer.deleted, 2), ","); got != "board:brd_1,board:brd_2" {
		t.Fatalf("unindexed %s", got)
	}
	if got := strings.Join(objects.removedKeys(), ","); got != "projects/prj_1/a,projects/prj_1/b" {
		t.Fatalf("removed objects %s", got)
	}
}

func TestMoveColumnToUnknownPhaseIsValidationError(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: memberAs("editor"),
		resolveScopeFn: func(_ context.Context, kind store.ScopeKind, _ string) (store.Scope, error) {
			if kind == store.ScopePhase {
				return store.Scope{}, sql.ErrNoRows
			}
			return store.Scope{ProjectID: "prj_1", BoardID: "brd_1"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.MoveColumn(context.Background(), avery, "col_1", "phs_missing", 0)
	requireStatus(t, err, http.StatusUnprocessableEntity)
}

func TestMoveColumnSurfacesLookupFailures(t *testing.T) {
	outage := errors.New("connection refused")
	fs := &fakeStore{
		getMemberRoleFn: memberAs("editor"),
		resolveScopeFn: func(_ context.Context, kind store.ScopeKind, _ string) (store.Scope, error) {
			if kind == store.ScopePhase {
				return store.Scope{}, outage
			}
			return store.Scope{ProjectID: "prj_1", BoardID: "brd_1"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.MoveColumn(context.Background(), avery, "col_1", "phs_2", 0)
	if !errors.Is(err, outage) {
		t.Fatalf("MoveColumn() error = %v, want the lookup failure", err)
	}
	if status, _, _, _ := mapError(err); status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
}

func TestMoveColumnRejectsPhaseOfOtherBoard(t *testing.T) {
	fs := &fakeStore{
		getMemberRoleFn: memberAs("editor"),
		resolveScopeFn: func(_ context.Context, kind store.ScopeKind, _ string) (store.Scope, error) {
			if kind == store.ScopePhase {
				return store.Scope{ProjectID: "prj_1", BoardID: "brd_2"}, nil
			}
			return store.Scope{ProjectID: "prj_1", BoardID: "brd_1"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.MoveColumn(context.Background(), avery, "col_1", "phs_9", 0)
	requireStatus(t, err, http.StatusUnprocessableEntity)
}

func TestMoveConflictMapsTo409(t *testing.T) {
	status, code, _, _ := mapError(store.ErrMoveConflict)
	if status != http.StatusConflict || code != "MOVE_CONFLICT" {
		t.Fatalf("mapError(ErrMoveConflict) = %d %s", status, code)
	}
}

func checkoutContent() store.BoardContent {
	return store.BoardContent{
		Phases:    []store.Phase{{ID: "phs_1", Name: "Discover", Position: 0}},
		Columns:   []store.Column{{ID: "col_1", PhaseID: "phs_1", Position: 0}},
		Blocks:    []store.Block{{ID: "blk_1", ColumnID: "col_1", Type: "touchpoint", Content: "Landing page", CreatedBy: "usr_sam"}},
		Tags:      []store.Tag{{ID: "tag_1", Name: "pain", Color: "#EF4444"}},
		BlockTags: []store.BlockTag{{BlockID: "blk_1", TagID: "tag_1"}},
		Emotions:  []store.Emotion{{ColumnID: "col_1", Intensity: 3, Label: "curious"}},
	}
}

func TestDuplicateBoardCopiesGridUnderFreshIDs(t *testing.T) {
	var copied store.BoardContent
	var board store.Board
	fs := &fakeStore{
		resolveScopeFn:  boardScope("prj_1", "brd_1"),
		getMemberRoleFn: memberAs("editor"),
		loadBoardTreeFn: func(_ context.Context, id string) (store.BoardTree, error) {
			return store.BoardTree{Board: store.Board{ID: id, ProjectID: "prj_1", Name: "Checkout"}, BoardContent: checkoutContent()}, nil
		},
		createBoardFn: func(_ context.Context, b store.Board, content store.BoardContent) error {
			board, copied = b, content
			return nil
		},
		getBoardFn: func(context.Context, string) (store.Board, error) { return board, nil },
	}
	svc := newTestService(fs)
	indexer, _ := withBackends(svc)

	view, err := svc.DuplicateBoard(context.Background(), avery, "brd_1", "")
	if err != nil {
		t.Fatalf("DuplicateBoard() error = %v", err)
	}
	if view["name"] != "Checkout (copy)" || view["id"] == "brd_1" {
		t.Fatalf("unexpected copy %v", view)
	}
	if board.ProjectID != "prj_1" || board.CreatedBy != avery.UserID {
		t.Fatalf("unexpected board %+v", board)
	}

	phase, column, block, tag := copied.Phases[0], copied.Columns[0], copied.Blocks[0], copied.Tags[0]
	if phase.ID == "phs_1" || column.ID == "col_1" || block.ID == "blk_1" || tag.ID == "tag_1" {
		t.Fatalf("ids were reused: %+v", copied)
	}
	if column.PhaseID != phase.ID || block.ColumnID != column.ID {
		t.Fatalf("grid references not remapped: %+v", copied)
	}
	if link := copied.BlockTags[0]; link.BlockID != block.ID || link.TagID != tag.ID {
		t.Fatalf("block tag not remapped: %+v", link)
	}
	if copied.Emotions[0].ColumnID != column.ID || block.CreatedBy != avery.UserID {
		t.Fatalf("unexpected copy %+v", copied)
	}
	got := receive(t, indexer.indexed, 2)
	if got[0] != "block:"+block.ID || got[1] != "board:"+board.ID {
		t.Fatalf("indexed %v", got)
	}
}

func TestViewerCannotDuplicateBoard(t *testing.T) {
	fs := &fakeStore{resolveScopeFn: boardScope("prj_1", "brd_1"), getMemberRoleFn: memberAs("viewer")}

	_, err := newTestService(fs).DuplicateBoard(context.Background(), avery, "brd_1", "Copy")
	requireStatus(t, err, http.StatusForbidden)
}

func TestRestoreVersionRewritesBoardAndDropsNewerBlocks(t *testing.T) {
	current := checkoutContent()
	name := "Checkout"
	var replaced store.BoardContent
	fs := &fakeStore{
		resolveScopeFn:  boardScope("prj_1", "brd_1"),
		getMemberRoleFn: memberAs("editor"),
		loadBoardTreeFn: func(_ context.Context, id string) (store.BoardTree, error) {
			return store.BoardTree{Board: store.Board{ID: id, ProjectID: "prj_1", Name: name}, BoardContent: current}, nil
		},
		updateBoardFn: func(_ context.Context, _, newName, _ string) error {
			name = newName
			return nil
		},
	}
	fs.replaceBoardContentFn = func(_ context.Context, _ string, content store.BoardContent) (store.Removed, error) {
		replaced = content
		current = content
		return store.Removed{BlockIDs: []string{"blk_new"}, ObjectKeys: []string{"projects/prj_1/blocks/blk_new/att_9/spec.pdf"}}, nil
	}
	svc := newTestService(fs)
	svc.history = history.New(t.TempDir())
	indexer, objects := withBackends(svc)
	ctx := context.Background()

	first, err := svc.SnapshotBoard(ctx, avery, "brd_1", "Before launch")
	if err != nil {
		t.Fatalf("SnapshotBoard() error = %v", err)
	}
	hash := first["version"].(history.Version).Hash

	name = "Checkout v2"
	current.Blocks = append(current.Blocks, store.Block{ID: "blk_new", ColumnID: "col_1", Type: "touchpoint"})
	if _, err := svc.SnapshotBoard(ctx, avery, "brd_1", ""); err != nil {
		t.Fatalf("SnapshotBoard(v2) error = %v", err)
	}

	restored, err := svc.RestoreVersion(ctx, avery, "brd_1", hash)
	if err != nil {
		t.Fatalf("RestoreVersion() error = %v", err)
	}
	if len(replaced.Blocks) != 1 || replaced.Blocks[0].ID != "blk_1" {
		t.Fatalf("restored content %+v", replaced.Blocks)
	}
	if name != "Checkout" {
		t.Fatalf("board name = %q, want Checkout", name)
	}
	if label := restored["version"].(history.Version).Label; !strings.HasPrefix(label, "Restore ") {
		t.Fatalf("restore version label = %q", label)
	}
	if got := receive(t, indexer.deleted, 1); got[0] != "block:blk_new" {
		t.Fatalf("unindexed %v", got)
	}
	if got := objects.removedKeys(); len(got) != 1 || !strings.Contains(got[0], "blk_new") {
		t.Fatalf("removed objects %v", got)
	}

	versions, err := svc.ListVersions(ctx, avery, "brd_1", 10)
	if err != nil || len(versions) != 3 {
		t.Fatalf("ListVersions() = %d versions, %v; want 3", len(versions), err)
	}
}

func TestRestoreUnknownVersionIsNotFound(t *testing.T) {
	fs := &fakeStore{resolveScopeFn: boardScope("prj_1", "brd_1"), getMemberRoleFn: memberAs("editor")}
	svc := newTestService(fs)
	svc.history = history.New(t.TempDir())

	_, err := svc.RestoreVersion(context.Background(), avery, "brd_1", "0123456789abcdef0123456789abcdef01234567")
	if status, _, _, _ := mapError(err); status != http.StatusNotFound {
		t.Fatalf("RestoreVersion() status = %d (%v), want 404", status, err)
	}
}
