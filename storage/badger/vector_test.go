package badger

import (
	"context"
	"testing"

	"github.com/voxhive/knowledged/core"
	"github.com/voxhive/knowledged/storage"
)

func newTestVector(companyId, agentId, documentId string, chunkIndex int, vector []float32) *core.VectorRecord {
	return &core.VectorRecord{
		DocumentId: documentId,
		CompanyId:  companyId,
		AgentId:    agentId,
		ChunkIndex: chunkIndex,
		Vector:     vector,
		Text:       "chunk text",
		FileName:   "report.pdf",
		Start:      chunkIndex * 10,
		End:        chunkIndex*10 + 10,
	}
}

func TestUpsertVectorsIsIdempotent(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestVector("acme", "", "doc-1", 0, []float32{1, 0, 0}),
		newTestVector("acme", "", "doc-1", 1, []float32{0, 1, 0}),
	}
	if err := stores.Vectors.UpsertVectors(ctx, records...); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	// A retried batch overwrites in place rather than duplicating.
	if err := stores.Vectors.UpsertVectors(ctx, records...); err != nil {
		t.Fatalf("Failed to re-upsert: %v", err)
	}

	count, err := stores.Vectors.CountVectors(ctx, "acme", "doc-1")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 vectors after re-upsert, got %d", count)
	}
}

func TestQueryVectorsOrdering(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestVector("acme", "", "doc-1", 0, []float32{1, 0, 0}),
		newTestVector("acme", "", "doc-1", 1, []float32{0.9, 0.1, 0}),
		newTestVector("acme", "", "doc-1", 2, []float32{0, 0, 1}),
		newTestVector("acme", "", "doc-1", 3, []float32{0.5, 0.5, 0}),
	}
	if err := stores.Vectors.UpsertVectors(ctx, records...); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	results, err := stores.Vectors.QueryVectors(ctx, []float32{1, 0, 0}, storage.VectorFilter{CompanyId: "acme"}, 3)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("Results not sorted by score descending at %d", i)
		}
	}
	if results[0].Record.ChunkIndex != 0 {
		t.Fatalf("Expected chunk 0 first, got %d", results[0].Record.ChunkIndex)
	}
	// The orthogonal vector scores lowest and falls off the topK cut.
	for _, res := range results {
		if res.Record.ChunkIndex == 2 {
			t.Fatal("Expected chunk 2 to be cut by topK")
		}
	}
}

func TestQueryVectorsTenantIsolation(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestVector("acme", "", "doc-1", 0, []float32{1, 0, 0}),
		newTestVector("globex", "", "doc-2", 0, []float32{1, 0, 0}),
	}
	if err := stores.Vectors.UpsertVectors(ctx, records...); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	results, err := stores.Vectors.QueryVectors(ctx, []float32{1, 0, 0}, storage.VectorFilter{CompanyId: "acme"}, 10)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Record.CompanyId != "acme" {
		t.Fatalf("Cross-tenant leak: got company %s", results[0].Record.CompanyId)
	}

	// Missing company is an error, never a global scan.
	if _, err := stores.Vectors.QueryVectors(ctx, []float32{1, 0, 0}, storage.VectorFilter{}, 10); err == nil {
		t.Fatal("Expected error for empty company filter")
	}
}

func TestQueryVectorsTenantIdIsNotAPrefix(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	// "acme" must not see "acme:eu" or "acme-staging" vectors even though
	// their ids share its leading characters.
	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestVector("acme", "", "doc-1", 0, []float32{1, 0, 0}),
		newTestVector("acme:eu", "", "doc-2", 0, []float32{1, 0, 0}),
		newTestVector("acme-staging", "", "doc-3", 0, []float32{1, 0, 0}),
	}
	if err := stores.Vectors.UpsertVectors(ctx, records...); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	results, err := stores.Vectors.QueryVectors(ctx, []float32{1, 0, 0}, storage.VectorFilter{CompanyId: "acme"}, 10)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	for _, res := range results {
		if res.Record.CompanyId != "acme" {
			t.Fatalf("Query for acme returned vector owned by %q", res.Record.CompanyId)
		}
	}

	results, err = stores.Vectors.QueryVectors(ctx, []float32{1, 0, 0}, storage.VectorFilter{CompanyId: "acme:eu"}, 10)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(results) != 1 || results[0].Record.CompanyId != "acme:eu" {
		t.Fatalf("Expected exactly the acme:eu vector, got %d results", len(results))
	}
}

func TestQueryVectorsAgentFilter(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestVector("acme", "", "doc-1", 0, []float32{1, 0, 0}),
		newTestVector("acme", "agent-a", "doc-2", 0, []float32{1, 0, 0}),
		newTestVector("acme", "agent-b", "doc-3", 0, []float32{1, 0, 0}),
	}
	if err := stores.Vectors.UpsertVectors(ctx, records...); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	// Agent scope: agent's own records plus company-wide records.
	results, err := stores.Vectors.QueryVectors(ctx, []float32{1, 0, 0}, storage.VectorFilter{CompanyId: "acme", AgentId: "agent-a"}, 10)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Record.AgentId == "agent-b" {
			t.Fatal("agent-b vector leaked into agent-a query")
		}
	}
}

func TestDeleteVectorsRemovesOnlyTarget(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()
	records := []*core.VectorRecord{
		newTestVector("acme", "", "doc-1", 0, []float32{1, 0, 0}),
		newTestVector("acme", "", "doc-1", 1, []float32{0, 1, 0}),
		newTestVector("acme", "", "doc-2", 0, []float32{0, 0, 1}),
	}
	if err := stores.Vectors.UpsertVectors(ctx, records...); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	deleted, err := stores.Vectors.DeleteVectors(ctx, "acme", "doc-1")
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("Expected 2 deleted, got %d", deleted)
	}

	count, err := stores.Vectors.CountVectors(ctx, "acme", "doc-2")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected doc-2 vectors intact, got %d", count)
	}

	// Deleting an unknown document removes nothing without error.
	deleted, err = stores.Vectors.DeleteVectors(ctx, "acme", "doc-9")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("Expected 0 deleted, got %d", deleted)
	}
}
