package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxhive/knowledged/ai"
	"github.com/voxhive/knowledged/cache"
	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/storage"
)

// DefaultTopK is the result count used when the caller asks for none.
const DefaultTopK = 5

// Result is one search hit. It carries everything a caller needs to display
// the hit: the chunk text, source file name and character offsets ride along
// with the score.
type Result struct {
	DocumentId string  `json:"documentId"`
	ChunkIndex int     `json:"chunkIndex"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	FileName   string  `json:"fileName"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// Searcher answers semantic queries over a tenant's ingested documents.
type Searcher struct {
	vectors  storage.VectorRepository
	embedder ai.Embedder
	cache    cache.Cache[[]*Result]
	cacheTTL time.Duration
	logger   *slog.Logger

	// Per-company cache epochs. Bumping an epoch orphans the company's
	// cached entries, which is how deletion invalidates results without
	// prefix scans over the cache.
	epochs sync.Map // companyId -> *atomic.Int64
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCache enables result caching with the given TTL.
func WithCache(c cache.Cache[[]*Result], ttl time.Duration) Option {
	return func(s *Searcher) error {
		s.cache = c
		s.cacheTTL = ttl
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(vectors storage.VectorRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		vectors:  vectors,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search embeds the query and returns up to topK hits within the company's
// vectors, ranked by similarity descending. With agentId set, only that
// agent's documents and company-wide documents are searched. A topK of zero
// or less falls back to DefaultTopK.
func (s *Searcher) Search(ctx context.Context, companyId, agentId, query string, topK int) ([]*Result, error) {
	return s.SearchWithMonitor(ctx, companyId, agentId, query, topK, nil)
}

// SearchWithMonitor searches with monitoring. The monitor receives callbacks
// at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, companyId, agentId, query string, topK int, monitor SearchMonitor) ([]*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if companyId == "" {
		return nil, core.ErrMissingCompany
	}
	if query == "" {
		return nil, core.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	monitor.Start(query)

	cacheKey := s.cacheKey(companyId, agentId, query, topK)
	if s.cache != nil {
		if cached, err := s.cache.Get(cacheKey); err == nil {
			monitor.CacheHit(cached)
			return cached, nil
		}
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "companyId", companyId, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(embedding)

	matches, err := s.vectors.QueryVectors(ctx, embedding, storage.VectorFilter{
		CompanyId: companyId,
		AgentId:   agentId,
	}, topK)
	if err != nil {
		s.logger.Error("error querying for similar vectors", "companyId", companyId, "err", err)
		return nil, err
	}

	results := make([]*Result, 0, len(matches))
	for _, match := range matches {
		results = append(results, &Result{
			DocumentId: match.Record.DocumentId,
			ChunkIndex: match.Record.ChunkIndex,
			Score:      match.Score,
			Text:       match.Record.Text,
			FileName:   match.Record.FileName,
			Start:      match.Record.Start,
			End:        match.Record.End,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(cacheKey, results, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache search results", "err", err)
		}
	}

	monitor.Finish(results)
	return results, nil
}

// Invalidate orphans a company's cached search results. Called when the
// company's document set changes.
func (s *Searcher) Invalidate(companyId string) {
	if s.cache == nil {
		return
	}
	s.epoch(companyId).Add(1)
}

func (s *Searcher) epoch(companyId string) *atomic.Int64 {
	if v, ok := s.epochs.Load(companyId); ok {
		return v.(*atomic.Int64)
	}
	v, _ := s.epochs.LoadOrStore(companyId, &atomic.Int64{})
	return v.(*atomic.Int64)
}

func (s *Searcher) cacheKey(companyId, agentId, query string, topK int) string {
	epoch := s.epoch(companyId).Load()
	return fmt.Sprintf("%s\x00%d\x00%s\x00%s\x00%s", companyId, epoch, agentId, strconv.Itoa(topK), query)
}
