package app

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"

	"journeymap/api/internal/journey"
	"journeymap/api/internal/objectstore"
	"journeymap/api/internal/rbac"
	"journeymap/api/internal/search"
	"journeymap/api/internal/store"
	"journeymap/api/internal/util"
)

const (
	eventBlockCreated   = "block.created"
	eventBlockUpdated   = "block.updated"
	eventBlockMoved     = "block.moved"
	eventBlockDeleted   = "block.deleted"
	eventBlockTags      = "block.tags"
	eventCommentCreated = "comment.created"
	eventCommentUpdated = "comment.updated"
	eventCommentDeleted = "comment.deleted"
	eventTagCreated     = "tag.created"
	eventTagUpdated     = "tag.updated"
	eventTagDeleted     = "tag.deleted"
	eventAttachmentAdd  = "attachment.created"
	eventAttachmentDel  = "attachment.deleted"
)

const (
	attachmentLink  = "link"
	attachmentImage = "image"
	attachmentFile  = "file"
	attachmentVideo = "video"
	attachmentBoard = "board"
)

type BlockInput struct {
	Type     *string `json:"type"`
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Note     *string `json:"note"`
	Emoji    *string `json:"emoji"`
	Color    *string `json:"color"`
	Position *int    `json:"position"`
}

type TagInput struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type AttachmentInput struct {
	Type          string `json:"type"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	TargetBoardID string `json:"targetBoardId"`
}

func blockRecord(projectID string, b store.Block) search.BlockRecord {
	return search.BlockRecord{
		ID:        b.ID,
		ProjectID: projectID,
		BoardID:   b.BoardID,
		Type:      b.Type,
		Title:     b.Title,
		Content:   b.Content,
		Note:      b.Note,
	}
}

// applyBlockInput copies the fields present in input onto block.
func applyBlockInput(block *store.Block, input BlockInput) error {
	if input.Type != nil {
		kind := strings.TrimSpace(*input.Type)
		if !journey.ValidBlockType(kind) {
			return validationError("type must be one of %s", strings.Join(journey.BlockTypes(), ", "))
		}
		block.Type = kind
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := journey.CheckLength("title", title, 0, journey.MaxTitleLength); err != nil {
			return validationError("%s", err.Error())
		}
		block.Title = title
	}
	if input.Content != nil {
		if err := journey.CheckLength("content", *input.Content, 0, journey.MaxContentLength); err != nil {
			return validationError("%s", err.Error())
		}
		block.Content = *input.Content
	}
	if input.Note != nil {
		if err := journey.CheckLength("note", *input.Note, 0, journey.MaxNoteLength); err != nil {
			return validationError("%s", err.Error())
		}
		block.Note = *input.Note
	}
	if input.Emoji != nil {
		emoji, err := journey.NormalizeEmoji(*input.Emoji)
		if err != nil {
			return validationError("%s", err.Error())
		}
		block.Emoji = emoji
	}
	if input.Color != nil {
		color, err := journey.NormalizeColor(*input.Color)
		if err != nil {
			return validationError("%s", err.Error())
		}
		block.Color = color
	}
	return nil
}

func (s *Service) CreateBlock(ctx context.Context, current Session, columnID string, input BlockInput) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeColumn, columnID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	if input.Type == nil {
		return nil, validationError("type is required")
	}
	block := store.Block{
		ID:        util.NewID("blk"),
		BoardID:   scope.BoardID,
		ColumnID:  columnID,
		Position:  math.MaxInt,
		CreatedBy: current.UserID,
	}
	if err := applyBlockInput(&block, input); err != nil {
		return nil, err
	}
	if input.Position != nil {
		block.Position = *input.Position
	}
	created, err := s.store.CreateBlock(ctx, block)
	if err != nil {
		return nil, err
	}
	view := blockView(created)
	view["tags"] = []map[string]any{}
	view["attachments"] = []map[string]any{}
	view["commentCount"] = 0
	view["sheets"] = nil
	s.search.IndexBlock(blockRecord(scope.ProjectID, created))
	s.publish(ctx, scope.BoardID, eventBlockCreated, created.ID, current, view)
	return view, nil
}

func (s *Service) GetBlock(ctx context.Context, current Session, blockID string) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionRead); err != nil {
		return nil, err
	}
	return s.blockDetail(ctx, blockID)
}

func (s *Service) blockDetail(ctx context.Context, blockID string) (map[string]any, error) {
	block, err := s.store.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	tags, err := s.store.ListBlockTags(ctx, blockID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, blockID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.CountComments(ctx, blockID)
	if err != nil {
		return nil, err
	}
	view := blockView(block)
	view["tags"] = tagViews(tags)
	view["attachments"] = attachmentViews(attachments)
	view["commentCount"] = comments
	view["sheets"] = nil
	conn, err := s.store.GetSheetsConnectionByBlock(ctx, blockID)
	switch {
	case err == nil:
		view["sheets"] = sheetsView(s.sheets.Overlay(ctx, conn))
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}
	return view, nil
}

// UpdateBlock changes only the fields present in input.
func (s *Service) UpdateBlock(ctx context.Context, current Session, blockID string, input BlockInput) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	block, err := s.store.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if err := applyBlockInput(&block, input); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateBlock(ctx, block)
	if err != nil {
		return nil, err
	}
	view := blockView(updated)
	s.search.IndexBlock(blockRecord(scope.ProjectID, updated))
	s.publish(ctx, scope.BoardID, eventBlockUpdated, blockID, current, view)
	return view, nil
}

// MoveBlock places the block at position in columnID, which must be on the
// same board.
func (s *Service) MoveBlock(ctx context.Context, current Session, blockID, columnID string, position int) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(columnID) == "" {
		return nil, validationError("columnId is required")
	}
	target, err := s.store.ResolveScope(ctx, store.ScopeColumn, columnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError("column %q does not exist", columnID)
		}
		return nil, err
	}
	if target.BoardID != scope.BoardID {
		return nil, store.ErrCrossBoard
	}
	moved, err := s.store.MoveBlock(ctx, blockID, columnID, position)
	if err != nil {
		return nil, err
	}
	view := blockView(moved)
	s.publish(ctx, scope.BoardID, eventBlockMoved, blockID, current, view)
	return view, nil
}

// DeleteBlock removes the block and, best effort, its uploaded files.
func (s *Service) DeleteBlock(ctx context.Context, current Session, blockID string) error {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return err
	}
	attachments, err := s.store.ListAttachments(ctx, blockID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBlock(ctx, blockID); err != nil {
		return err
	}
	for _, a := range attachments {
		s.removeObject(ctx, a)
	}
	s.search.DeleteBlock(blockID)
	s.publish(ctx, scope.BoardID, eventBlockDeleted, blockID, current, nil)
	return nil
}

// Comments

func checkComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if err := journey.CheckLength("content", content, 1, journey.MaxCommentLength); err != nil {
		return "", validationError("%s", err.Error())
	}
	return content, nil
}

func commentRecord(projectID string, c store.Comment) search.CommentRecord {
	return search.CommentRecord{
		ID:         c.ID,
		ProjectID:  projectID,
		BoardID:    c.BoardID,
		BlockID:    c.BlockID,
		Content:    c.Content,
		AuthorName: c.AuthorName,
	}
}

func (s *Service) ListComments(ctx context.Context, current Session, blockID string) ([]map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionRead); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, blockID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		items = append(items, commentView(c))
	}
	return items, nil
}

func (s *Service) CreateComment(ctx context.Context, current Session, blockID, content string) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionComment)
	if err != nil {
		return nil, err
	}
	content, err = checkComment(content)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateComment(ctx, store.Comment{
		ID:         util.NewID("cmt"),
		BlockID:    blockID,
		BoardID:    scope.BoardID,
		AuthorID:   current.UserID,
		AuthorName: current.UserName,
		Content:    content,
	})
	if err != nil {
		return nil, err
	}
	view := commentView(created)
	s.search.IndexComment(commentRecord(scope.ProjectID, created))
	s.publish(ctx, scope.BoardID, eventCommentCreated, created.ID, current, view)
	return view, nil
}

// UpdateComment is limited to the comment's author.
func (s *Service) UpdateComment(ctx context.Context, current Session, commentID, content string) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeComment, commentID, rbac.ActionComment)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if existing.AuthorID != current.UserID {
		return nil, forbidden()
	}
	content, err = checkComment(content)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateComment(ctx, commentID, content)
	if err != nil {
		return nil, err
	}
	view := commentView(updated)
	s.search.IndexComment(commentRecord(scope.ProjectID, updated))
	s.publish(ctx, scope.BoardID, eventCommentUpdated, commentID, current, view)
	return view, nil
}

// DeleteComment is allowed for the author and for project owners.
func (s *Service) DeleteComment(ctx context.Context, current Session, commentID string) error {
	scope, role, err := s.authorize(ctx, current, store.ScopeComment, commentID, rbac.ActionRead)
	if err != nil {
		return err
	}
	existing, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if existing.AuthorID != current.UserID && !rbac.Can(role, rbac.ActionAdmin) {
		return forbidden()
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.search.DeleteComment(commentID)
	s.publish(ctx, scope.BoardID, eventCommentDeleted, commentID, current, map[string]any{"blockId": existing.BlockID})
	return nil
}

// Tags

func checkTagName(raw string) (string, error) {
	name := journey.NormalizeTagName(raw)
	if err := journey.CheckLength("name", name, 1, journey.MaxTagLength); err != nil {
		return "", validationError("%s", err.Error())
	}
	return name, nil
}

func (s *Service) ListTags(ctx context.Context, current Session, boardID string) ([]map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	tags, err := s.store.ListTags(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return tagViews(tags), nil
}

func (s *Service) CreateTag(ctx context.Context, current Session, boardID string, input TagInput) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBoard, boardID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	var raw string
	if input.Name != nil {
		raw = *input.Name
	}
	name, err := checkTagName(raw)
	if err != nil {
		return nil, err
	}
	color := journey.TagColor(name)
	if input.Color != nil && *input.Color != "" {
		if color, err = journey.NormalizeColor(*input.Color); err != nil {
			return nil, validationError("%s", err.Error())
		}
	}
	tag, err := s.store.CreateTag(ctx, store.Tag{ID: util.NewID("tag"), BoardID: boardID, Name: name, Color: color})
	if err != nil {
		return nil, err
	}
	view := tagView(tag)
	s.publish(ctx, boardID, eventTagCreated, tag.ID, current, view)
	return view, nil
}

func (s *Service) UpdateTag(ctx context.Context, current Session, tagID string, input TagInput) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeTag, tagID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if tag.Name, err = checkTagName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Color != nil {
		color, err := journey.NormalizeColor(*input.Color)
		if err != nil {
			return nil, validationError("%s", err.Error())
		}
		if color == "" {
			color = journey.TagColor(tag.Name)
		}
		tag.Color = color
	}
	if err := s.store.UpdateTag(ctx, tagID, tag.Name, tag.Color); err != nil {
		return nil, err
	}
	view := tagView(tag)
	s.publish(ctx, scope.BoardID, eventTagUpdated, tagID, current, view)
	return view, nil
}

func (s *Service) DeleteTag(ctx context.Context, current Session, tagID string) error {
	scope, _, err := s.authorize(ctx, current, store.ScopeTag, tagID, rbac.ActionWrite)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTag(ctx, tagID); err != nil {
		return err
	}
	s.publish(ctx, scope.BoardID, eventTagDeleted, tagID, current, nil)
	return nil
}

func (s *Service) blockTagsChanged(ctx context.Context, current Session, boardID, blockID string) ([]map[string]any, error) {
	tags, err := s.store.ListBlockTags(ctx, blockID)
	if err != nil {
		return nil, err
	}
	views := tagViews(tags)
	s.publish(ctx, boardID, eventBlockTags, blockID, current, map[string]any{"tags": views})
	return views, nil
}

// AddTagToBlock is idempotent. The tag must belong to the block's board.
func (s *Service) AddTagToBlock(ctx context.Context, current Session, blockID, tagID string) ([]map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if tag.BoardID != scope.BoardID {
		return nil, store.ErrCrossBoard
	}
	if err := s.store.AddBlockTag(ctx, blockID, tagID); err != nil {
		return nil, err
	}
	return s.blockTagsChanged(ctx, current, scope.BoardID, blockID)
}

func (s *Service) RemoveTagFromBlock(ctx context.Context, current Session, blockID, tagID string) ([]map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	if err := s.store.RemoveBlockTag(ctx, blockID, tagID); err != nil {
		return nil, err
	}
	return s.blockTagsChanged(ctx, current, scope.BoardID, blockID)
}

// SetBlockTags replaces the block's tag set.
func (s *Service) SetBlockTags(ctx context.Context, current Session, blockID string, tagIDs []string) ([]map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	boardTags, err := s.store.ListTags(ctx, scope.BoardID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(boardTags))
	for _, t := range boardTags {
		known[t.ID] = true
	}
	seen := make(map[string]bool, len(tagIDs))
	unique := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		if !known[id] {
			return nil, store.ErrCrossBoard
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if err := s.store.SetBlockTags(ctx, blockID, unique); err != nil {
		return nil, err
	}
	return s.blockTagsChanged(ctx, current, scope.BoardID, blockID)
}

// Attachments

func (s *Service) ListAttachments(ctx context.Context, current Session, blockID string) ([]map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionRead); err != nil {
		return nil, err
	}
	items, err := s.store.ListAttachments(ctx, blockID)
	if err != nil {
		return nil, err
	}
	return attachmentViews(items), nil
}

// CreateAttachment adds a link, video or board reference. Files and images
// go through UploadAttachment.
func (s *Service) CreateAttachment(ctx context.Context, current Session, blockID string, input AttachmentInput) (map[string]any, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if err := journey.CheckLength("title", title, 0, journey.MaxTitleLength); err != nil {
		return nil, validationError("%s", err.Error())
	}
	attachment := store.Attachment{
		ID:        util.NewID("att"),
		BlockID:   blockID,
		BoardID:   scope.BoardID,
		Type:      strings.ToLower(strings.TrimSpace(input.Type)),
		Title:     title,
		CreatedBy: current.UserID,
	}
	switch attachment.Type {
	case "", attachmentLink:
		parsed, err := journey.ValidateLink(input.URL)
		if err != nil {
			return nil, err
		}
		attachment.Type, attachment.URL = attachmentLink, parsed.String()
	case attachmentVideo:
		if _, err := journey.ParseVideo(input.URL); err != nil {
			return nil, err
		}
		attachment.URL = strings.TrimSpace(input.URL)
	case attachmentBoard:
		if err := s.checkBoardTarget(ctx, scope, input.TargetBoardID); err != nil {
			return nil, err
		}
		target := input.TargetBoardID
		attachment.TargetBoardID = &target
	case attachmentImage, attachmentFile:
		return nil, validationError("%s attachments must be uploaded", attachment.Type)
	default:
		return nil, validationError("type must be one of link, video, board")
	}
	created, err := s.store.CreateAttachment(ctx, attachment)
	if err != nil {
		return nil, err
	}
	view := attachmentView(created)
	s.publish(ctx, scope.BoardID, eventAttachmentAdd, created.ID, current, view)
	return view, nil
}

// checkBoardTarget requires a board of the same project.
func (s *Service) checkBoardTarget(ctx context.Context, scope store.Scope, targetBoardID string) error {
	if strings.TrimSpace(targetBoardID) == "" {
		return validationError("targetBoardId is required")
	}
	target, err := s.store.ResolveScope(ctx, store.ScopeBoard, targetBoardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return validationError("target board does not exist")
		}
		return err
	}
	if target.ProjectID != scope.ProjectID {
		return validationError("target board must belong to the same project")
	}
	return nil
}

// AuthorizeUpload checks that current may attach files to blockID and that
// object storage is configured.
func (s *Service) AuthorizeUpload(ctx context.Context, current Session, blockID string) (store.Scope, error) {
	scope, _, err := s.authorize(ctx, current, store.ScopeBlock, blockID, rbac.ActionWrite)
	if err != nil {
		return store.Scope{}, err
	}
	if s.objects == nil {
		return store.Scope{}, objectstore.ErrNotConfigured
	}
	return scope, nil
}

// UploadAttachment stores the blob in object storage, then records it.
func (s *Service) UploadAttachment(ctx context.Context, current Session, blockID string, upload objectstore.Upload, title string) (map[string]any, error) {
	scope, err := s.AuthorizeUpload(ctx, current, blockID)
	if err != nil {
		return nil, err
	}
	id := util.NewID("att")
	key := objectstore.ObjectKey(scope.ProjectID, blockID, id, upload.Filename)
	if err := s.objects.Put(ctx, key, upload.Reader(), upload.Size(), upload.ContentType); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = upload.Filename
	}
	created, err := s.store.CreateAttachment(ctx, store.Attachment{
		ID:          id,
		BlockID:     blockID,
		BoardID:     scope.BoardID,
		Type:        objectstore.Kind(upload.ContentType),
		Title:       title,
		ObjectKey:   key,
		FileName:    upload.Filename,
		ContentType: upload.ContentType,
		SizeBytes:   upload.Size(),
		CreatedBy:   current.UserID,
	})
	if err != nil {
		s.removeObject(ctx, store.Attachment{ID: id, ObjectKey: key})
		return nil, err
	}
	view := attachmentView(created)
	s.publish(ctx, scope.BoardID, eventAttachmentAdd, created.ID, current, view)
	s.log().WithRequest(ctx).Info("attachment uploaded", "attachment_id", id, "bytes", upload.Size())
	return view, nil
}

func (s *Service) removeObject(ctx context.Context, a store.Attachment) {
	if a.ObjectKey == "" || s.objects == nil {
		return
	}
	if err := s.objects.Remove(ctx, a.ObjectKey); err != nil {
		s.log().WithRequest(ctx).Warn("remove attachment object failed", "attachment_id", a.ID, "error", err)
	}
}

// removeObjects drops uploaded files whose rows are already deleted. A failure
// only leaves an orphaned object behind.
func (s *Service) removeObjects(ctx context.Context, keys []string) {
	if s.objects == nil || len(keys) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.objects.Remove(ctx, key); err != nil {
			s.log().WithRequest(ctx).Warn("remove attachment object failed", "object_key", key, "error", err)
		}
	}
}

// discardRemoved unindexes the blocks a cascading delete removed and drops
// their uploaded files.
func (s *Service) discardRemoved(ctx context.Context, removed store.Removed) {
	for _, id := range removed.BlockIDs {
		s.search.DeleteBlock(id)
	}
	s.removeObjects(ctx, removed.ObjectKeys)
}

func (s *Service) DeleteAttachment(ctx context.Context, current Session, attachmentID string) error {
	scope, _, err := s.authorize(ctx, current, store.ScopeAttachment, attachmentID, rbac.ActionWrite)
	if err != nil {
		return err
	}
	attachment, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAttachment(ctx, attachmentID); err != nil {
		return err
	}
	s.removeObject(ctx, attachment)
	s.publish(ctx, scope.BoardID, eventAttachmentDel, attachmentID, current, map[string]any{"blockId": attachment.BlockID})
	return nil
}

// AttachmentDownloadURL presigns uploaded blobs; links are returned as is.
func (s *Service) AttachmentDownloadURL(ctx context.Context, current Session, attachmentID string) (map[string]any, error) {
	if _, _, err := s.authorize(ctx, current, store.ScopeAttachment, attachmentID, rbac.ActionRead); err != nil {
		return nil, err
	}
	attachment, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if attachment.ObjectKey == "" {
		return map[string]any{"url": attachment.URL, "expiresAt": nil}, nil
	}
	if s.objects == nil {
		return nil, objectstore.ErrNotConfigured
	}
	url, err := s.objects.PresignGet(ctx, attachment.ObjectKey, attachment.FileName)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": url, "expiresAt": s.clock().Add(objectstore.DownloadTTL).UTC()}, nil
}
