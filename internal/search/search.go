// Package search finds boards, blocks and comments across the projects a
// user belongs to.
package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultBoard   ResultType = "board"
	ResultBlock   ResultType = "block"
	ResultComment ResultType = "comment"
)

// ParseType maps a query parameter to a result type. Unknown values yield ok=false.
func ParseType(raw string) (ResultType, bool) {
	switch ResultType(raw) {
	case "":
		return "", true
	case ResultBoard, ResultBlock, ResultComment:
		return ResultType(raw), true
	}
	return "", false
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	BoardID   string     `json:"boardId"`
	BlockID   string     `json:"blockId,omitempty"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
}

// Query describes a search request. ProjectIDs restricts results to the
// caller's projects; an empty list matches nothing.
type Query struct {
	Text       string
	FilterType ResultType
	ProjectIDs []string
	Limit      int
	Offset     int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return 20
	}
	if q.Limit > 100 {
		return 100
	}
	return q.Limit
}

func (q Query) offset() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	Healthy() bool
	IndexBoard(b BoardRecord) error
	IndexBlock(b BlockRecord) error
	IndexComment(c CommentRecord) error
	DeleteBoard(id string) error
	DeleteBlock(id string) error
	DeleteComment(id string) error
	Reindex(boards []BoardRecord, blocks []BlockRecord, comments []CommentRecord) error
}

// BoardRecord is the data we index for a board.
type BoardRecord struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BlockRecord is the data we index for a block.
type BlockRecord struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	BoardID   string `json:"boardId"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Note      string `json:"note"`
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	BoardID    string `json:"boardId"`
	BlockID    string `json:"blockId"`
	Content    string `json:"content"`
	AuthorName string `json:"authorName"`
}
