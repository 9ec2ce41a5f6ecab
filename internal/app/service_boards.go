package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"journeymap/api/internal/export"
	"journeymap/api/internal/journey"
	"journeymap/api/internal/rbac"
	"journeymap/api/internal/realtime"
	"journeymap/api/internal/search"
	"journeymap/api/internal/store"
	"journeymap/api/internal/util"
)

const (
	eventBoardUpdated   = "board.updated"
	eventBoardDeleted   = "board.deleted"
	eventBoardRestored  = "board.restored"
	eventPhaseCreated   = "phase.created"
	eventPhaseUpdated   = "phase.updated"
	eventPhaseDeleted   = "phase.deleted"
	eventPhasesReorder  = "phase.reordered"
	eventColumnCreated  = "column.created"
	eventColumnDeleted  = "column.deleted"
	eventColumnMoved    = "column.moved"
	eventEmotionUpdated = "emotion.updated"
	eventEmotionDeleted = "emotion.deleted"
)

type BoardInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Template    string  `json:"template"`
}

type PhaseInput struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type EmotionInput struct {
	Intensity *int   `json:"intensity"`
	Label     string `json:"label"`
	Emoji     string `json:"emoji"`
}

// boardSnapshot is what a saved version holds.
type boardSnapshot struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Content     store.BoardContent `json:"content"`
}

func boardRecord(b store.Board) search.BoardRecord {
	return search.BoardRecord{ID: b.ID, ProjectID: b.ProjectID, Name: b.Name, Description: b.Description}
}

func (s *Service) ListBoards(ctx context.Context, current Session, projectID string) ([]map[string]any, error) {
	if _, err := s.projectRole(ctx, current, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	boards, err := s.store.ListBoards(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(boards))
	for _, b := range boards {
		items = append(items, boardView(b))
	}
	return items, nil
}

// templateContent builds the starting grid: each phase gets one empty column.
func templateContent(template string) (store.BoardContent, error) {
	names, err := journey.TemplatePhases(strings.TrimSpace(template))
	if err != nil {
		return store.BoardContent{}, validationError("%s", err.Error())
	}
	var content store.BoardContent
	for i, name := range names {
		phaseID := util.NewID("phs")
		content.Phases = append(content.Phases, store.Phase{ID: phaseID, Name: name, Color: journey.TagColor(name), Position: i})
		content.Columns = append(content.Columns, store.Column{ID: util.NewID("col"), PhaseID: phaseID, Position: 0})
	}
	return content, nil
}

func (s *Service) CreateBoard(ctx context.Context, current Session, projectID string, input BoardInput) (map[string]any, error) {
	if _, err := s.projectRole(ctx, current, projectID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	var name, description string
	if input.Name != nil {
		name = *input.Name
	}
	name, err := trimmedName("name", name)
	if err != nil {
		return nil, err
	}
	if input.Description != nil {
		description = strings.TrimSpace(*input.Description)
	}
	if err := checkDescription(description); err != nil {
		return nil, err
	}
	content, err := templateContent(input.Template)
	if err != nil {
		return nil, err
	}

	board := store.Board{
		ID:          util.NewID("brd"),
		ProjectID:   projectID,
		Name:        name,
		Description: description,
		CreatedBy:   current.UserID,
	}
	if err := s.store.CreateBoard(ctx, board, content); err != nil {
		return nil, err
	}
	created, err := s.store.GetBoard(ctx, board.ID)
	if err != nil {
		return nil, err
	}
	s.search.IndexBoard(boardRecord(created))
	return boardView(created), nil
}

func (s *Service) GetBoard(ctx context.Context, current Session, boardID string) (map[string]any, error) {
	_, role, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	tree, err := s.store.LoadBoardTree(ctx, boardID)
	if err != nil {
		return nil, err
	}
	connections := make(map[string]store.SheetsConnection, len(tree.SheetsConnections))
	for _, c := range tree.SheetsConnections {
		connections[c.BlockID] = s.sheets.Overlay(ctx, c)
	}
	return boardTreeView(tree, string(role), connections), nil
}

func (s *Service) UpdateBoard(ctx context.Context, current Session, boardID string, input BoardInput) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if board.Name, err = trimmedName("name", *input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		board.Description = strings.TrimSpace(*input.Description)
		if err := checkDescription(board.Description); err != nil {
			return nil, err
		}
	}
	if err := s.store.UpdateBoard(ctx, boardID, board.Name, board.Description); err != nil {
		return nil, err
	}
	updated, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	view := boardView(updated)
	s.search.IndexBoard(boardRecord(updated))
	s.publish(ctx, boardID, eventBoardUpdated, boardID, current, view)
	return view, nil
}

func (s *Service) DeleteBoard(ctx context.Context, current Session, boardID string) error {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionAdmin); err != nil {
		return err
	}
	removed, err := s.store.DeleteBoard(ctx, boardID)
	if err != nil {
		return err
	}
	s.forgetBoard(ctx, current, boardID)
	s.removeObjects(ctx, removed.ObjectKeys)
	return nil
}

// forgetBoard drops everything kept about a deleted board outside Postgres.
func (s *Service) forgetBoard(ctx context.Context, current Session, boardID string) {
	s.search.DeleteBoard(boardID)
	s.publish(ctx, boardID, eventBoardDeleted, boardID, current, nil)
	s.hub.Disconnect(ctx, boardID)
	if s.history != nil {
		if err := s.history.Remove(boardID); err != nil {
			s.log().WithRequest(ctx).Warn("remove board history failed", "board_id", boardID, "error", err)
		}
	}
}

// DuplicateBoard deep-copies the grid, tags and emotions under fresh ids.
// Comments, attachments and sheets bindings stay with the original.
func (s *Service) DuplicateBoard(ctx context.Context, current Session, boardID, name string) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	if _, err := s.projectRole(ctx, current, scope.ProjectID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	tree, err := s.store.LoadBoardTree(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = tree.Board.Name + " (copy)"
		if runes := []rune(name); len(runes) > journey.MaxNameLength {
			name = string(runes[:journey.MaxNameLength])
		}
	}
	if name, err = trimmedName("name", name); err != nil {
		return nil, err
	}

	board := store.Board{
		ID:          util.NewID("brd"),
		ProjectID:   tree.Board.ProjectID,
		Name:        name,
		Description: tree.Board.Description,
		CreatedBy:   current.UserID,
	}
	content := copyContent(tree.BoardContent, current.UserID)
	if err := s.store.CreateBoard(ctx, board, content); err != nil {
		return nil, err
	}
	created, err := s.store.GetBoard(ctx, board.ID)
	if err != nil {
		return nil, err
	}
	s.search.IndexBoard(boardRecord(created))
	for _, b := range content.Blocks {
		s.search.IndexBlock(blockRecord(created.ProjectID, b))
	}
	s.log().WithRequest(ctx).Info("board duplicated", "source_id", boardID, "board_id", board.ID)
	return boardView(created), nil
}

func copyContent(src store.BoardContent, author string) store.BoardContent {
	ids := make(map[string]string)
	mint := func(prefix, old string) string {
		id := util.NewID(prefix)
		ids[old] = id
		return id
	}
	var out store.BoardContent
	for _, p := range src.Phases {
		p.ID = mint("phs", p.ID)
		out.Phases = append(out.Phases, p)
	}
	for _, c := range src.Columns {
		c.ID = mint("col", c.ID)
		c.PhaseID = ids[c.PhaseID]
		out.Columns = append(out.Columns, c)
	}
	for _, b := range src.Blocks {
		b.ID = mint("blk", b.ID)
		b.ColumnID = ids[b.ColumnID]
		b.CreatedBy = author
		out.Blocks = append(out.Blocks, b)
	}
	for _, t := range src.Tags {
		t.ID = mint("tag", t.ID)
		out.Tags = append(out.Tags, t)
	}
	for _, link := range src.BlockTags {
		out.BlockTags = append(out.BlockTags, store.BlockTag{BlockID: ids[link.BlockID], TagID: ids[link.TagID]})
	}
	for _, e := range src.Emotions {
		e.ColumnID = ids[e.ColumnID]
		out.Emotions = append(out.Emotions, e)
	}
	return out
}

// Grid

func (s *Service) CreatePhase(ctx context.Context, current Session, boardID string, input PhaseInput) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	var name string
	if input.Name != nil {
		name = *input.Name
	}
	name, err := trimmedName("name", name)
	if err != nil {
		return nil, err
	}
	color := journey.TagColor(name)
	if input.Color != nil && *input.Color != "" {
		if color, err = journey.NormalizeColor(*input.Color); err != nil {
			return nil, validationError("%s", err.Error())
		}
	}
	column := store.Column{ID: util.NewID("col"), BoardID: boardID}
	phase, err := s.store.CreatePhase(ctx, store.Phase{ID: util.NewID("phs"), BoardID: boardID, Name: name, Color: color}, column)
	if err != nil {
		return nil, err
	}
	column.PhaseID = phase.ID
	view := phaseView(phase)
	view["columns"] = []map[string]any{columnView(column)}
	s.publish(ctx, boardID, eventPhaseCreated, phase.ID, current, view)
	return view, nil
}

func (s *Service) UpdatePhase(ctx context.Context, current Session, phaseID string, input PhaseInput) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopePhase, phaseID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	phase, err := s.store.GetPhase(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if phase.Name, err = trimmedName("name", *input.Name); err != nil {
			return nil, err
		}
	}
	if input.Color != nil {
		if phase.Color, err = journey.NormalizeColor(*input.Color); err != nil {
			return nil, validationError("%s", err.Error())
		}
	}
	if err := s.store.UpdatePhase(ctx, phaseID, phase.Name, phase.Color); err != nil {
		return nil, err
	}
	view := phaseView(phase)
	s.publish(ctx, scope.BoardID, eventPhaseUpdated, phaseID, current, view)
	return view, nil
}

func (s *Service) DeletePhase(ctx context.Context, current Session, phaseID string) error {
	scope, _, err := s.authorize(ctx, current, store.ScopePhase, phaseID, rbac.ActionWrite)
	if err != nil {
		return err
	}
	removed, err := s.store.DeletePhase(ctx, phaseID)
	if err != nil {
		return err
	}
	s.discardRemoved(ctx, removed)
	s.publish(ctx, scope.BoardID, eventPhaseDeleted, phaseID, current, nil)
	return nil
}

// ReorderPhases accepts only a permutation of the board's current phases.
func (s *Service) ReorderPhases(ctx context.Context, current Session, boardID string, phaseIDs []string) error {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	if len(phaseIDs) == 0 {
		return validationError("phaseIds is required")
	}
	if err := s.store.ReorderPhases(ctx, boardID, phaseIDs); err != nil {
		return err
	}
	s.publish(ctx, boardID, eventPhasesReorder, boardID, current, map[string]any{"phaseIds": phaseIDs})
	return nil
}

// CreateColumn inserts at position; nil appends.
func (s *Service) CreateColumn(ctx context.Context, current Session, phaseID string, position *int) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopePhase, phaseID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	at := math.MaxInt
	if position != nil {
		at = *position
	}
	column, err := s.store.CreateColumn(ctx, store.Column{ID: util.NewID("col"), PhaseID: phaseID, Position: at})
	if err != nil {
		return nil, err
	}
	view := columnView(column)
	s.publish(ctx, scope.BoardID, eventColumnCreated, column.ID, current, view)
	return view, nil
}

func (s *Service) DeleteColumn(ctx context.Context, current Session, columnID string) error {
	scope, _, err := s.authorize(ctx, current, store.ScopeColumn, columnID, rbac.ActionWrite)
	if err != nil {
		return err
	}
	removed, err := s.store.DeleteColumn(ctx, columnID)
	if err != nil {
		return err
	}
	s.discardRemoved(ctx, removed)
	s.publish(ctx, scope.BoardID, eventColumnDeleted, columnID, current, nil)
	return nil
}

func (s *Service) MoveColumn(ctx context.Context, current Session, columnID, phaseID string, position int) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeColumn, columnID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	if phaseID == "" {
		column, err := s.store.GetColumn(ctx, columnID)
		if err != nil {
			return nil, err
		}
		phaseID = column.PhaseID
	}
	target, err := s.store.ResolveScope(ctx, store.ScopePhase, phaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError("phase %q is not on this board", phaseID)
		}
		return nil, err
	}
	if target.BoardID != scope.BoardID {
		return nil, validationError("phase %q is not on this board", phaseID)
	}
	column, err := s.store.MoveColumn(ctx, columnID, phaseID, position)
	if err != nil {
		return nil, err
	}
	view := columnView(column)
	s.publish(ctx, scope.BoardID, eventColumnMoved, columnID, current, view)
	return view, nil
}

// Emotions

func (s *Service) UpsertEmotion(ctx context.Context, current Session, columnID string, input EmotionInput) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeColumn, columnID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	if input.Intensity == nil {
		return nil, validationError("intensity is required")
	}
	if !journey.ValidIntensity(*input.Intensity) {
		return nil, validationError("intensity must be between %d and %d", journey.MinIntensity, journey.MaxIntensity)
	}
	label := strings.TrimSpace(input.Label)
	if err := journey.CheckLength("label", label, 0, journey.MaxTitleLength); err != nil {
		return nil, validationError("%s", err.Error())
	}
	emoji, err := journey.NormalizeEmoji(input.Emoji)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}
	emotion, err := s.store.UpsertEmotion(ctx, store.Emotion{
		ColumnID:  columnID,
		BoardID:   scope.BoardID,
		Intensity: *input.Intensity,
		Label:     label,
		Emoji:     emoji,
	})
	if err != nil {
		return nil, err
	}
	view := emotionView(emotion)
	s.publish(ctx, scope.BoardID, eventEmotionUpdated, columnID, current, view)
	return view, nil
}

func (s *Service) DeleteEmotion(ctx context.Context, current Session, columnID string) error {
	scope, _, err := s.authorize(ctx, current, store.ScopeColumn, columnID, rbac.ActionWrite)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEmotion(ctx, columnID); err != nil {
		return err
	}
	s.publish(ctx, scope.BoardID, eventEmotionDeleted, columnID, current, nil)
	return nil
}

// EmotionJourney lists one point per column in grid order, with a nil
// intensity where no emotion is set.
func (s *Service) EmotionJourney(ctx context.Context, current Session, boardID string) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	tree, err := s.store.LoadBoardTree(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return emotionSeries(tree.BoardContent), nil
}

func emotionSeries(content store.BoardContent) map[string]any {
	phaseOrder := make(map[string]int, len(content.Phases))
	phaseNames := make(map[string]string, len(content.Phases))
	for _, p := range content.Phases {
		phaseOrder[p.ID] = p.Position
		phaseNames[p.ID] = p.Name
	}
	columns := append([]store.Column(nil), content.Columns...)
	sort.SliceStable(columns, func(i, j int) bool {
		pi, pj := phaseOrder[columns[i].PhaseID], phaseOrder[columns[j].PhaseID]
		if pi != pj {
			return pi < pj
		}
		return columns[i].Position < columns[j].Position
	})
	emotions := make(map[string]store.Emotion, len(content.Emotions))
	for _, e := range content.Emotions {
		emotions[e.ColumnID] = e
	}

	points := make([]map[string]any, 0, len(columns))
	values := make([]*int, 0, len(columns))
	for _, c := range columns {
		point := map[string]any{
			"columnId":  c.ID,
			"phaseId":   c.PhaseID,
			"phaseName": phaseNames[c.PhaseID],
			"intensity": nil,
			"label":     "",
			"emoji":     "",
		}
		var value *int
		if e, ok := emotions[c.ID]; ok {
			v := e.Intensity
			value = &v
			point["intensity"] = v
			point["label"] = e.Label
			point["emoji"] = e.Emoji
		}
		values = append(values, value)
		points = append(points, point)
	}
	return map[string]any{
		"points":  points,
		"summary": journey.Summarize(values),
	}
}

// Versions

func (s *Service) versionStore() (boardHistory, error) {
	if s.history == nil {
		return nil, unavailable("HISTORY_UNAVAILABLE", "Board versions are not available on this server")
	}
	return s.history, nil
}

func (s *Service) SnapshotBoard(ctx context.Context, current Session, boardID, label string) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	versions, err := s.versionStore()
	if err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	if err := journey.CheckLength("label", label, 0, journey.MaxTitleLength); err != nil {
		return nil, validationError("%s", err.Error())
	}
	tree, err := s.store.LoadBoardTree(ctx, boardID)
	if err != nil {
		return nil, err
	}
	snapshot := boardSnapshot{Name: tree.Board.Name, Description: tree.Board.Description, Content: tree.BoardContent}
	version, created, err := versions.Snapshot(boardID, snapshot, current.UserName, label)
	if err != nil {
		return nil, err
	}
	return map[string]any{"version": version, "created": created}, nil
}

func (s *Service) ListVersions(ctx context.Context, current Session, boardID string, limit int) ([]map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	versions, err := s.versionStore()
	if err != nil {
		return nil, err
	}
	list, err := versions.List(boardID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(list))
	for _, v := range list {
		items = append(items, map[string]any{
			"hash":      v.Hash,
			"shortHash": v.ShortHash,
			"label":     v.Label,
			"author":    v.Author,
			"createdAt": v.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) loadSnapshot(boardID, hash string) (boardSnapshot, map[string]any, error) {
	versions, err := s.versionStore()
	if err != nil {
		return boardSnapshot{}, nil, err
	}
	version, raw, err := versions.Get(boardID, hash)
	if err != nil {
		return boardSnapshot{}, nil, err
	}
	var snapshot boardSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return boardSnapshot{}, nil, fmt.Errorf("decode snapshot %s: %w", version.ShortHash, err)
	}
	return snapshot, map[string]any{
		"hash":      version.Hash,
		"shortHash": version.ShortHash,
		"label":     version.Label,
		"author":    version.Author,
		"createdAt": version.CreatedAt,
	}, nil
}

func (s *Service) GetVersion(ctx context.Context, current Session, boardID, hash string) (map[string]any, error) {
	scope, role, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	snapshot, version, err := s.loadSnapshot(boardID, hash)
	if err != nil {
		return nil, err
	}
	tree := store.BoardTree{
		Board:        store.Board{ID: boardID, ProjectID: scope.ProjectID, Name: snapshot.Name, Description: snapshot.Description},
		BoardContent: snapshot.Content,
	}
	return map[string]any{
		"version": version,
		"board":   boardTreeView(tree, string(role), nil),
	}, nil
}

// RestoreVersion rewrites the board from a snapshot, reusing its ids, and
// records the result as a new version.
func (s *Service) RestoreVersion(ctx context.Context, current Session, boardID, hash string) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	snapshot, version, err := s.loadSnapshot(boardID, hash)
	if err != nil {
		return nil, err
	}
	removed, err := s.store.ReplaceBoardContent(ctx, boardID, snapshot.Content)
	if err != nil {
		return nil, err
	}
	s.discardRemoved(ctx, removed)
	if err := s.store.UpdateBoard(ctx, boardID, snapshot.Name, snapshot.Description); err != nil {
		return nil, err
	}

	short, _ := version["shortHash"].(string)
	restored, _, err := s.history.Snapshot(boardID, snapshot, current.UserName, "Restore "+short)
	if err != nil {
		return nil, err
	}
	s.search.IndexBoard(search.BoardRecord{ID: boardID, ProjectID: scope.ProjectID, Name: snapshot.Name, Description: snapshot.Description})
	for _, b := range snapshot.Content.Blocks {
		s.search.IndexBlock(blockRecord(scope.ProjectID, b))
	}
	s.publish(ctx, boardID, eventBoardRestored, boardID, current, map[string]any{"hash": short})
	s.log().WithRequest(ctx).Info("board restored", "board_id", boardID, "hash", short)

	board, err := s.GetBoard(ctx, current, boardID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"version": restored, "board": board}, nil
}

// Export

func (s *Service) ExportBoard(ctx context.Context, current Session, boardID, rawFormat string) (*export.Result, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(rawFormat)))
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, export.ErrPDFDependencyMissing
	}
	tree, err := s.store.LoadBoardTree(ctx, boardID)
	if err != nil {
		return nil, err
	}
	for i, c := range tree.SheetsConnections {
		tree.SheetsConnections[i] = s.sheets.Overlay(ctx, c)
	}
	project, err := s.store.GetProject(ctx, scope.ProjectID)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, tree, project.Name, format)
}

// Presence

func (s *Service) Presence(ctx context.Context, current Session, boardID string) ([]realtime.Participant, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	if s.hub == nil {
		return []realtime.Participant{}, nil
	}
	participants, err := s.hub.Participants(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if participants == nil {
		participants = []realtime.Participant{}
	}
	return participants, nil
}
