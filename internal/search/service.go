package search

import (
	"context"

	"journeymap/api/internal/logging"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  Searcher
	index    Indexer
	fallback Searcher
	loader   RecordLoader
	logger   *logging.Logger
}

// RecordLoader reads every searchable record for a full reindex.
type RecordLoader interface {
	LoadAllRecords(ctx context.Context) ([]BoardRecord, []BlockRecord, []CommentRecord, error)
}

// Backends are the engines behind a Service. Any of them may be nil.
type Backends struct {
	Primary  Searcher
	Index    Indexer
	Fallback Searcher
	Loader   RecordLoader
}

func New(b Backends, logger *logging.Logger) *Service {
	return &Service{
		primary:  b.Primary,
		index:    b.Index,
		fallback: b.Fallback,
		loader:   b.Loader,
		logger:   logging.OrNop(logger).Named("search"),
	}
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *logging.Logger) *Service {
	var b Backends
	if meili != nil {
		b.Primary, b.Index = meili, meili
	}
	if pgfts != nil {
		b.Fallback, b.Loader = pgfts, pgfts
	}
	return New(b, logger)
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	empty := Response{Results: []Result{}, Total: 0, Query: q.Text}
	if len(q.ProjectIDs) == 0 {
		return empty
	}

	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: restrict(nonNil(results), q.ProjectIDs), Total: total, Query: q.Text}
		}
		s.logger.WithRequest(ctx).Warn("meilisearch error, falling back to pgfts", "error", err)
	}
	if s.fallback == nil {
		return empty
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.WithRequest(ctx).Error("pgfts search failed", "error", err)
		return empty
	}
	return Response{Results: restrict(nonNil(results), q.ProjectIDs), Total: total, Query: q.Text}
}

func (s *Service) indexing() bool {
	return s != nil && s.index != nil && s.index.Healthy()
}

// async runs an index write in the background; failures are only logged.
func (s *Service) async(what, id string, fn func() error) {
	if !s.indexing() {
		return
	}
	go func() {
		if err := fn(); err != nil {
			s.logger.Warn("search index write failed", "op", what, "id", id, "error", err)
		}
	}()
}

func (s *Service) IndexBoard(b BoardRecord) {
	s.async("index board", b.ID, func() error { return s.index.IndexBoard(b) })
}

func (s *Service) IndexBlock(b BlockRecord) {
	s.async("index block", b.ID, func() error { return s.index.IndexBlock(b) })
}

func (s *Service) IndexComment(c CommentRecord) {
	s.async("index comment", c.ID, func() error { return s.index.IndexComment(c) })
}

// DeleteBoard removes the board and everything indexed under it.
func (s *Service) DeleteBoard(id string) {
	s.async("delete board", id, func() error { return s.index.DeleteBoard(id) })
}

func (s *Service) DeleteBlock(id string) {
	s.async("delete block", id, func() error { return s.index.DeleteBlock(id) })
}

func (s *Service) DeleteComment(id string) {
	s.async("delete comment", id, func() error { return s.index.DeleteComment(id) })
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.indexing() || s.loader == nil {
		return
	}
	boards, blocks, comments, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", "error", err)
		return
	}
	if err := s.index.Reindex(boards, blocks, comments); err != nil {
		s.logger.Error("reindex failed", "error", err)
		return
	}
	s.logger.Info("search reindexed", "boards", len(boards), "blocks", len(blocks), "comments", len(comments))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

// restrict drops hits outside the caller's projects. The backends filter
// too; this guards against a stale index.
func restrict(results []Result, projectIDs []string) []Result {
	allowed := make(map[string]struct{}, len(projectIDs))
	for _, id := range projectIDs {
		allowed[id] = struct{}{}
	}
	filtered := make([]Result, 0, len(results))
	for _, result := range results {
		if _, ok := allowed[result.ProjectID]; ok {
			filtered = append(filtered, result)
		}
	}
	return filtered
}
