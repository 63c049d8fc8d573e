package reembed

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhive/knowledged/ai/mock"
	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/extract"
	"github.com/voxhive/knowledged/storage"
	badgerstore "github.com/voxhive/knowledged/storage/badger"
)

func storageFilter(companyId string) storage.VectorFilter {
	return storage.VectorFilter{CompanyId: companyId}
}

func testConfig() *Config {
	return &Config{
		BatchSize:      5,
		ReportInterval: 1,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
	}
}

// seedCompleted stores a completed document with its payload and vectors, as
// ingestion would have left it.
func seedCompleted(t *testing.T, stores *badgerstore.MemoryStores, id, companyId, text string) *core.Document {
	t.Helper()
	ctx := context.Background()

	payload := []byte(text)
	doc := &core.Document{
		Id:         id,
		CompanyId:  companyId,
		Name:       id,
		FileName:   id + ".txt",
		MimeType:   "text/plain",
		SizeBytes:  int64(len(payload)),
		StorageKey: core.StorageKeyFromContent(payload),
		Status:     core.StatusPending,
	}
	require.NoError(t, stores.Blobs.PutBlob(ctx, doc.StorageKey, payload))
	require.NoError(t, stores.Documents.CreateDocument(ctx, doc))

	chunker := extract.NewChunker(64)
	chunks := chunker.Split(doc.Id, extract.NormalizeText(text))
	records := make([]*core.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = &core.VectorRecord{
			DocumentId: doc.Id,
			CompanyId:  doc.CompanyId,
			ChunkIndex: chunk.Index,
			Vector:     []float32{1, 0, 0}, // stale model output
			Text:       chunk.Text,
			FileName:   doc.FileName,
			Start:      chunk.Start,
			End:        chunk.End,
		}
	}
	require.NoError(t, stores.Vectors.UpsertVectors(ctx, records...))

	_, err := stores.Documents.TransitionStatus(ctx, doc.Id, core.StatusProcessing, "")
	require.NoError(t, err)
	_, err = stores.Documents.UpdateProgress(ctx, doc.Id, len(chunks), len(chunks))
	require.NoError(t, err)
	_, err = stores.Documents.TransitionStatus(ctx, doc.Id, core.StatusCompleted, "")
	require.NoError(t, err)
	return doc
}

func newReembedder(stores *badgerstore.MemoryStores, embedder *mock.MockEmbedder, out io.Writer) *Reembedder {
	return NewReembedder(
		stores.Documents, stores.Vectors, stores.Blobs,
		extract.NewExtractor(0), extract.NewChunker(64), embedder,
		testConfig(), out,
	)
}

func TestReembedderRefreshesVectors(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	doc := seedCompleted(t, stores, "doc-1", "acme", "Some text to reembed with a newer model.")

	embedder := &mock.MockEmbedder{Dim: 3}
	var buf bytes.Buffer
	require.NoError(t, newReembedder(stores, embedder, &buf).Run(ctx, "acme"))

	// The stale vectors were replaced with fresh embedder output.
	hits, err := stores.Vectors.QueryVectors(ctx, []float32{1, 0, 0},
		storageFilter("acme"), 100)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, hit := range hits {
		assert.NotEqual(t, []float32{1, 0, 0}, hit.Record.Vector)
		assert.Equal(t, doc.Id, hit.Record.DocumentId)
	}
	assert.Contains(t, buf.String(), "Reembedding complete")
}

func TestReembedderSkipsUnfinishedDocuments(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	pending := &core.Document{
		Id: "doc-pending", CompanyId: "acme", Name: "pending",
		FileName: "pending.txt", MimeType: "text/plain",
		SizeBytes: 4, StorageKey: core.StorageKeyFromContent([]byte("text")),
		Status: core.StatusPending,
	}
	require.NoError(t, stores.Documents.CreateDocument(ctx, pending))

	embedder := &mock.MockEmbedder{Dim: 3}
	var buf bytes.Buffer
	require.NoError(t, newReembedder(stores, embedder, &buf).Run(ctx, "acme"))

	assert.Equal(t, 0, embedder.CallCount())
	assert.Contains(t, buf.String(), "No completed documents")
}

func TestReembedderRequiresCompany(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	embedder := &mock.MockEmbedder{Dim: 3}
	err = newReembedder(stores, embedder, io.Discard).Run(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrMissingCompany)
}

func TestReembedderLeavesOtherCompaniesAlone(t *testing.T) {
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	seedCompleted(t, stores, "doc-1", "acme", "acme document text")
	seedCompleted(t, stores, "doc-2", "globex", "globex document text")

	embedder := &mock.MockEmbedder{Dim: 3}
	require.NoError(t, newReembedder(stores, embedder, io.Discard).Run(ctx, "acme"))

	// globex still has its original stale vector.
	hits, err := stores.Vectors.QueryVectors(ctx, []float32{1, 0, 0}, storageFilter("globex"), 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, []float32{1, 0, 0}, hits[0].Record.Vector)
}
