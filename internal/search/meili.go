package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"journeymap/api/internal/logging"
)

const (
	idxBoards   = "journey_boards"
	idxBlocks   = "journey_blocks"
	idxComments = "journey_comments"

	// cascadeBatch caps how many dependent documents one delete sweeps.
	cascadeBatch = 1000
)

var errUnhealthy = errors.New("meilisearch unhealthy")

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *logging.Logger
	healthy atomic.Bool
	done    chan struct{}
}

type indexSpec struct {
	uid        string
	rtyp       ResultType
	filterable []string
	searchable []string
}

var indexSpecs = []indexSpec{
	{uid: idxBoards, rtyp: ResultBoard, filterable: []string{"projectId"}, searchable: []string{"name", "description"}},
	{uid: idxBlocks, rtyp: ResultBlock, filterable: []string{"projectId", "boardId", "type"}, searchable: []string{"title", "content", "note"}},
	{uid: idxComments, rtyp: ResultComment, filterable: []string{"projectId", "boardId", "blockId"}, searchable: []string{"content", "authorName"}},
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string, logger *logging.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logging.OrNop(logger).Named("meilisearch"),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", "url", url, "error", err)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	for _, idx := range indexSpecs {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			m.logger.Debug("create index (may already exist)", "index", idx.uid, "error", err)
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("update filterable attributes", "index", idx.uid, "error", err)
		}
		searchable := idx.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			m.logger.Warn("update searchable attributes", "index", idx.uid, "error", err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Swap(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the selected indexes in one multi-search and merges the hits.
func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errUnhealthy
	}
	queries := buildQueries(q)
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func buildQueries(q Query) []*meili.SearchRequest {
	if len(q.ProjectIDs) == 0 {
		return nil
	}
	filter := projectFilter(q.ProjectIDs)

	var queries []*meili.SearchRequest
	for _, idx := range indexSpecs {
		if q.FilterType != "" && q.FilterType != idx.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              idx.uid,
			Query:                 q.Text,
			Limit:                 int64(q.limit()),
			Offset:                int64(q.offset()),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
			Filter:                filter,
		})
	}
	return queries
}

// projectFilter renders `projectId IN ["a", "b"]`.
func projectFilter(projectIDs []string) string {
	return fieldIn("projectId", projectIDs)
}

func fieldIn(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("%s IN [%s]", field, strings.Join(quoted, ", "))
}

func indexToResultType(uid string) ResultType {
	for _, idx := range indexSpecs {
		if idx.uid == uid {
			return idx.rtyp
		}
	}
	return ""
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{
		Type:      rtyp,
		ID:        decodeString(hit, "id"),
		ProjectID: decodeString(hit, "projectId"),
		BoardID:   decodeString(hit, "boardId"),
		BlockID:   decodeString(hit, "blockId"),
	}

	switch rtyp {
	case ResultBoard:
		r.BoardID = r.ID
		r.Title = highlighted(hit, "name")
		r.Snippet = highlighted(hit, "description")
	case ResultBlock:
		r.BlockID = r.ID
		r.Title = firstNonBlank(highlighted(hit, "title"), decodeString(hit, "type"))
		r.Snippet = firstNonBlank(highlighted(hit, "content"), highlighted(hit, "note"))
	case ResultComment:
		r.Title = highlighted(hit, "authorName")
		r.Snippet = highlighted(hit, "content")
	}
	return r
}

func highlighted(hit meili.Hit, key string) string {
	return firstNonBlank(decodeFormattedString(hit, key), decodeString(hit, key))
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) add(uid string, docs any) error {
	_, err := m.client.Index(uid).AddDocuments(docs, nil)
	return err
}

func (m *Meili) IndexBoard(b BoardRecord) error {
	return m.add(idxBoards, []BoardRecord{b})
}

func (m *Meili) IndexBlock(b BlockRecord) error {
	return m.add(idxBlocks, []BlockRecord{b})
}

func (m *Meili) IndexComment(c CommentRecord) error {
	return m.add(idxComments, []CommentRecord{c})
}

// DeleteBoard removes the board document and the blocks and comments indexed under it.
func (m *Meili) DeleteBoard(id string) error {
	filter := fieldIn("boardId", []string{id})
	if err := m.sweep(idxComments, filter); err != nil {
		return err
	}
	if err := m.sweep(idxBlocks, filter); err != nil {
		return err
	}
	_, err := m.client.Index(idxBoards).DeleteDocument(id, nil)
	return err
}

// DeleteBlock removes the block document and its comments.
func (m *Meili) DeleteBlock(id string) error {
	if err := m.sweep(idxComments, fieldIn("blockId", []string{id})); err != nil {
		return err
	}
	_, err := m.client.Index(idxBlocks).DeleteDocument(id, nil)
	return err
}

func (m *Meili) DeleteComment(id string) error {
	_, err := m.client.Index(idxComments).DeleteDocument(id, nil)
	return err
}

// sweep deletes every document in uid matching filter.
func (m *Meili) sweep(uid, filter string) error {
	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: []*meili.SearchRequest{{
		IndexUID:             uid,
		Limit:                cascadeBatch,
		Filter:               filter,
		AttributesToRetrieve: []string{"id"},
	}}})
	if err != nil {
		return fmt.Errorf("find %s documents: %w", uid, err)
	}
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			id := decodeString(hit, "id")
			if id == "" {
				continue
			}
			if _, err := m.client.Index(uid).DeleteDocument(id, nil); err != nil {
				return fmt.Errorf("delete %s/%s: %w", uid, id, err)
			}
		}
	}
	return nil
}

// Reindex bulk-loads every record.
func (m *Meili) Reindex(boards []BoardRecord, blocks []BlockRecord, comments []CommentRecord) error {
	if len(boards) > 0 {
		if err := m.add(idxBoards, boards); err != nil {
			return fmt.Errorf("index boards: %w", err)
		}
	}
	if len(blocks) > 0 {
		if err := m.add(idxBlocks, blocks); err != nil {
			return fmt.Errorf("index blocks: %w", err)
		}
	}
	if len(comments) > 0 {
		if err := m.add(idxComments, comments); err != nil {
			return fmt.Errorf("index comments: %w", err)
		}
	}
	return nil
}
