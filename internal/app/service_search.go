package app

import (
	"context"
	"strings"

	"journeymap/api/internal/search"
)

type SearchInput struct {
	Text      string
	Type      string
	ProjectID string
	Limit     int
	Offset    int
}

// Search covers the caller's projects, or one of them when ProjectID is set.
func (s *Service) Search(ctx context.Context, current Session, input SearchInput) (search.Response, error) {
	text := strings.TrimSpace(input.Text)
	filter, ok := search.ParseType(strings.ToLower(strings.TrimSpace(input.Type)))
	if !ok {
		return search.Response{}, validationError("type must be one of board, block, comment")
	}
	empty := search.Response{Results: []search.Result{}, Query: text}
	if text == "" || s.search == nil {
		return empty, nil
	}

	projectIDs, err := s.store.ProjectIDsForUser(ctx, current.UserID)
	if err != nil {
		return search.Response{}, err
	}
	if input.ProjectID != "" {
		scoped := projectIDs[:0:0]
		for _, id := range projectIDs {
			if id == input.ProjectID {
				scoped = append(scoped, id)
			}
		}
		projectIDs = scoped
	}

	return s.search.Search(ctx, search.Query{
		Text:       text,
		FilterType: filter,
		ProjectIDs: projectIDs,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}), nil
}
