package app

import (
	"sort"

	"journeymap/api/internal/journey"
	"journeymap/api/internal/sheets"
	"journeymap/api/internal/store"
)

func sessionView(current Session) map[string]any {
	return map[string]any{
		"accessToken":  current.Token,
		"refreshToken": current.RefreshToken,
		"userId":       current.UserID,
		"userName":     current.UserName,
		"email":        current.Email,
		"expiresAt":    current.ExpiresAt.Unix(),
	}
}

func userView(user store.User) map[string]any {
	return map[string]any{
		"id":            user.ID,
		"displayName":   user.DisplayName,
		"email":         user.Email,
		"avatarUrl":     user.AvatarURL,
		"emailVerified": user.IsEmailVerified,
		"hasPassword":   user.PasswordHash != "",
		"googleLinked":  user.GoogleSub != "",
		"createdAt":     user.CreatedAt,
	}
}

func projectView(p store.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"createdBy":   p.CreatedBy,
		"role":        p.Role,
		"boardCount":  p.BoardCount,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
}

func memberView(m store.Member) map[string]any {
	return map[string]any{
		"projectId":   m.ProjectID,
		"userId":      m.UserID,
		"displayName": m.DisplayName,
		"email":       m.Email,
		"role":        m.Role,
		"createdAt":   m.CreatedAt,
	}
}

func boardView(b store.Board) map[string]any {
	return map[string]any{
		"id":          b.ID,
		"projectId":   b.ProjectID,
		"name":        b.Name,
		"description": b.Description,
		"createdBy":   b.CreatedBy,
		"createdAt":   b.CreatedAt,
		"updatedAt":   b.UpdatedAt,
	}
}

func phaseView(p store.Phase) map[string]any {
	return map[string]any{
		"id":       p.ID,
		"boardId":  p.BoardID,
		"name":     p.Name,
		"color":    p.Color,
		"position": p.Position,
	}
}

func columnView(c store.Column) map[string]any {
	return map[string]any{
		"id":       c.ID,
		"boardId":  c.BoardID,
		"phaseId":  c.PhaseID,
		"position": c.Position,
	}
}

func blockView(b store.Block) map[string]any {
	return map[string]any{
		"id":        b.ID,
		"boardId":   b.BoardID,
		"columnId":  b.ColumnID,
		"type":      b.Type,
		"title":     b.Title,
		"content":   b.Content,
		"note":      b.Note,
		"emoji":     b.Emoji,
		"color":     b.Color,
		"position":  b.Position,
		"createdBy": b.CreatedBy,
		"createdAt": b.CreatedAt,
		"updatedAt": b.UpdatedAt,
	}
}

func tagView(t store.Tag) map[string]any {
	return map[string]any{
		"id":      t.ID,
		"boardId": t.BoardID,
		"name":    t.Name,
		"color":   t.Color,
	}
}

func tagViews(tags []store.Tag) []map[string]any {
	out := make([]map[string]any, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagView(t))
	}
	return out
}

func commentView(c store.Comment) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"blockId":    c.BlockID,
		"boardId":    c.BoardID,
		"authorId":   c.AuthorID,
		"authorName": c.AuthorName,
		"content":    c.Content,
		"createdAt":  c.CreatedAt,
		"updatedAt":  c.UpdatedAt,
		"edited":     c.UpdatedAt.After(c.CreatedAt),
	}
}

func attachmentView(a store.Attachment) map[string]any {
	view := map[string]any{
		"id":            a.ID,
		"blockId":       a.BlockID,
		"boardId":       a.BoardID,
		"type":          a.Type,
		"url":           a.URL,
		"title":         a.Title,
		"fileName":      a.FileName,
		"contentType":   a.ContentType,
		"sizeBytes":     a.SizeBytes,
		"targetBoardId": a.TargetBoardID,
		"createdBy":     a.CreatedBy,
		"createdAt":     a.CreatedAt,
	}
	if a.Type == attachmentVideo {
		if video, err := journey.ParseVideo(a.URL); err == nil {
			view["video"] = video
		}
	}
	return view
}

func attachmentViews(items []store.Attachment) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, a := range items {
		out = append(out, attachmentView(a))
	}
	return out
}

func emotionView(e store.Emotion) map[string]any {
	return map[string]any{
		"columnId":  e.ColumnID,
		"boardId":   e.BoardID,
		"intensity": e.Intensity,
		"label":     e.Label,
		"emoji":     e.Emoji,
		"updatedAt": e.UpdatedAt,
	}
}

// sheetsView always carries the raw value; numericValue is set only when it
// parses as a number.
func sheetsView(c store.SheetsConnection) map[string]any {
	view := map[string]any{
		"id":             c.ID,
		"blockId":        c.BlockID,
		"boardId":        c.BoardID,
		"spreadsheetId":  c.SpreadsheetID,
		"gid":            c.GID,
		"sheetName":      c.SheetName,
		"cell":           c.Cell,
		"label":          c.Label,
		"refreshSeconds": c.RefreshSeconds,
		"lastValue":      c.LastValue,
		"lastFetchedAt":  c.LastFetchedAt,
		"lastError":      c.LastError,
		"numericValue":   nil,
	}
	if c.LastValue != nil {
		if n, ok := sheets.ParseNumber(*c.LastValue); ok {
			view["numericValue"] = n
		}
	}
	return view
}

// boardTreeView nests blocks under columns under phases, each level ordered
// by position.
func boardTreeView(tree store.BoardTree, role string, connections map[string]store.SheetsConnection) map[string]any {
	phases := append([]store.Phase(nil), tree.Phases...)
	sort.SliceStable(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })
	columns := append([]store.Column(nil), tree.Columns...)
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].Position < columns[j].Position })
	blocks := append([]store.Block(nil), tree.Blocks...)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Position < blocks[j].Position })

	tagsByID := make(map[string]store.Tag, len(tree.Tags))
	for _, t := range tree.Tags {
		tagsByID[t.ID] = t
	}
	blockTags := make(map[string][]map[string]any)
	for _, link := range tree.BlockTags {
		if t, ok := tagsByID[link.TagID]; ok {
			blockTags[link.BlockID] = append(blockTags[link.BlockID], tagView(t))
		}
	}
	attachments := make(map[string][]map[string]any)
	for _, a := range tree.Attachments {
		attachments[a.BlockID] = append(attachments[a.BlockID], attachmentView(a))
	}
	emotions := make(map[string]store.Emotion, len(tree.Emotions))
	for _, e := range tree.Emotions {
		emotions[e.ColumnID] = e
	}

	blocksByColumn := make(map[string][]map[string]any)
	for _, b := range blocks {
		view := blockView(b)
		view["tags"] = nonNilViews(blockTags[b.ID])
		view["attachments"] = nonNilViews(attachments[b.ID])
		view["commentCount"] = tree.CommentCounts[b.ID]
		view["sheets"] = nil
		if conn, ok := connections[b.ID]; ok {
			view["sheets"] = sheetsView(conn)
		}
		blocksByColumn[b.ColumnID] = append(blocksByColumn[b.ColumnID], view)
	}

	columnsByPhase := make(map[string][]map[string]any)
	for _, c := range columns {
		view := columnView(c)
		view["blocks"] = nonNilViews(blocksByColumn[c.ID])
		view["emotion"] = nil
		if e, ok := emotions[c.ID]; ok {
			view["emotion"] = emotionView(e)
		}
		columnsByPhase[c.PhaseID] = append(columnsByPhase[c.PhaseID], view)
	}

	phaseViews := make([]map[string]any, 0, len(phases))
	for _, p := range phases {
		view := phaseView(p)
		view["columns"] = nonNilViews(columnsByPhase[p.ID])
		phaseViews = append(phaseViews, view)
	}

	emotionList := make([]map[string]any, 0, len(tree.Emotions))
	for _, e := range tree.Emotions {
		emotionList = append(emotionList, emotionView(e))
	}

	payload := boardView(tree.Board)
	payload["role"] = role
	payload["phases"] = phaseViews
	payload["tags"] = tagViews(tree.Tags)
	payload["emotions"] = emotionList
	return payload
}

func nonNilViews(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}
