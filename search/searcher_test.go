package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhive/knowledged/ai/mock"
	"github.com/voxhive/knowledged/cache"
	"github.com/voxhive/knowledged/core"
	badgerstore "github.com/voxhive/knowledged/storage/badger"
)

func seedVectors(t *testing.T, stores *badgerstore.MemoryStores, records ...*core.VectorRecord) {
	t.Helper()
	require.NoError(t, stores.Vectors.UpsertVectors(context.Background(), records...))
}

func vec(companyId, agentId, documentId string, chunkIndex int, vector []float32, text string) *core.VectorRecord {
	return &core.VectorRecord{
		DocumentId: documentId,
		CompanyId:  companyId,
		AgentId:    agentId,
		ChunkIndex: chunkIndex,
		Vector:     vector,
		Text:       text,
		FileName:   "notes.txt",
		Start:      0,
		End:        len(text),
	}
}

// fixedEmbedder returns the same vector for every query.
func fixedEmbedder(v []float32) *mock.MockEmbedder {
	return &mock.MockEmbedder{
		Dim: len(v),
		EmbedTextFunc: func(ctx context.Context, text string) ([]float32, error) {
			return v, nil
		},
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	seedVectors(t, stores,
		vec("acme", "", "doc-1", 0, []float32{1, 0, 0}, "exact match"),
		vec("acme", "", "doc-1", 1, []float32{0.7, 0.7, 0}, "partial match"),
		vec("acme", "", "doc-2", 0, []float32{0, 0, 1}, "unrelated"),
	)

	searcher, err := NewSearcher(stores.Vectors, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "acme", "", "anything", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "exact match", results[0].Text)
	assert.Equal(t, "partial match", results[1].Text)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "notes.txt", results[0].FileName)
	assert.Equal(t, len("exact match"), results[0].End)
}

func TestSearchValidation(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	searcher, err := NewSearcher(stores.Vectors, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "", "", "query", 5)
	assert.ErrorIs(t, err, core.ErrMissingCompany)

	_, err = searcher.Search(context.Background(), "acme", "", "", 5)
	assert.ErrorIs(t, err, core.ErrEmptyQuery)
}

func TestSearchDefaultTopK(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	var records []*core.VectorRecord
	for i := 0; i < 10; i++ {
		records = append(records, vec("acme", "", "doc-1", i, []float32{1, 0, float32(i) / 10}, "chunk"))
	}
	seedVectors(t, stores, records...)

	searcher, err := NewSearcher(stores.Vectors, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "acme", "", "query", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestSearchTenantIsolation(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	seedVectors(t, stores,
		vec("acme", "", "doc-1", 0, []float32{1, 0, 0}, "acme chunk"),
		vec("globex", "", "doc-2", 0, []float32{1, 0, 0}, "globex chunk"),
	)

	searcher, err := NewSearcher(stores.Vectors, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "acme", "", "query", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme chunk", results[0].Text)
}

func TestSearchCacheHitSkipsEmbedding(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	seedVectors(t, stores, vec("acme", "", "doc-1", 0, []float32{1, 0, 0}, "chunk"))

	embedder := fixedEmbedder([]float32{1, 0, 0})
	resultCache, err := cache.NewRistrettoCache[[]*Result](128)
	require.NoError(t, err)
	defer resultCache.Close()

	searcher, err := NewSearcher(stores.Vectors, embedder, WithCache(resultCache, time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := searcher.Search(ctx, "acme", "", "query", 5)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, embedder.CallCount())

	second, err := searcher.Search(ctx, "acme", "", "query", 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.CallCount(), "cache hit must not re-embed")

	// Different topK is a different cache entry.
	_, err = searcher.Search(ctx, "acme", "", "query", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestSearchInvalidateOrphansCompanyEntries(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	seedVectors(t, stores,
		vec("acme", "", "doc-1", 0, []float32{1, 0, 0}, "chunk"),
		vec("globex", "", "doc-2", 0, []float32{1, 0, 0}, "chunk"),
	)

	embedder := fixedEmbedder([]float32{1, 0, 0})
	resultCache, err := cache.NewRistrettoCache[[]*Result](128)
	require.NoError(t, err)
	defer resultCache.Close()

	searcher, err := NewSearcher(stores.Vectors, embedder, WithCache(resultCache, time.Minute))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = searcher.Search(ctx, "acme", "", "query", 5)
	require.NoError(t, err)
	_, err = searcher.Search(ctx, "globex", "", "query", 5)
	require.NoError(t, err)
	require.Equal(t, 2, embedder.CallCount())

	searcher.Invalidate("acme")

	// acme misses the cache after invalidation; globex still hits.
	_, err = searcher.Search(ctx, "acme", "", "query", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.CallCount())

	_, err = searcher.Search(ctx, "globex", "", "query", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.CallCount())
}

func TestSearchAgentScope(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	seedVectors(t, stores,
		vec("acme", "", "doc-1", 0, []float32{1, 0, 0}, "company wide"),
		vec("acme", "agent-a", "doc-2", 0, []float32{1, 0, 0}, "agent a"),
		vec("acme", "agent-b", "doc-3", 0, []float32{1, 0, 0}, "agent b"),
	)

	searcher, err := NewSearcher(stores.Vectors, fixedEmbedder([]float32{1, 0, 0}))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "acme", "agent-a", "query", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.NotEqual(t, "agent b", res.Text)
	}
}
