package core

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from DocumentStatus
		to   DocumentStatus
		want bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"pending to completed skips processing", StatusPending, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusProcessing, false},
		{"failed is terminal", StatusFailed, StatusPending, false},
		{"no backwards transition", StatusProcessing, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStorageKeyFromContent(t *testing.T) {
	k1 := StorageKeyFromContent([]byte("hello world"))
	k2 := StorageKeyFromContent([]byte("hello world"))
	k3 := StorageKeyFromContent([]byte("hello worlds"))

	if k1 != k2 {
		t.Errorf("same content produced different keys: %s vs %s", k1, k2)
	}
	if k1 == k3 {
		t.Error("different content produced the same key")
	}
	if len(k1) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(k1))
	}
}

func TestJobLease(t *testing.T) {
	now := time.Now().UTC()

	pending := &IngestJob{DocumentId: "d1", State: JobStatePending}
	if !pending.Claimable(now) {
		t.Error("pending job should be claimable")
	}

	held := &IngestJob{DocumentId: "d1", State: JobStateLeased, LeaseExpiry: now.Add(time.Minute)}
	if held.Claimable(now) {
		t.Error("job with live lease should not be claimable")
	}

	lapsed := &IngestJob{DocumentId: "d1", State: JobStateLeased, LeaseExpiry: now.Add(-time.Second)}
	if !lapsed.LeaseExpired(now) {
		t.Error("lapsed lease should report expired")
	}
	if !lapsed.Claimable(now) {
		t.Error("job with lapsed lease should be claimable")
	}
}

func TestValidateChunks(t *testing.T) {
	good := []Chunk{
		{Index: 0, Start: 0, End: 10, Text: "aaaaaaaaaa"},
		{Index: 1, Start: 10, End: 25, Text: "bbbbbbbbbbbbbbb"},
		{Index: 2, Start: 26, End: 30, Text: "cccc"},
	}
	if err := ValidateChunks(good); err != nil {
		t.Errorf("valid chunk sequence rejected: %v", err)
	}

	overlapping := []Chunk{
		{Index: 0, Start: 0, End: 10},
		{Index: 1, Start: 9, End: 20},
	}
	if err := ValidateChunks(overlapping); err == nil {
		t.Error("overlapping chunks accepted")
	}

	misnumbered := []Chunk{
		{Index: 0, Start: 0, End: 10},
		{Index: 2, Start: 10, End: 20},
	}
	if err := ValidateChunks(misnumbered); err == nil {
		t.Error("gap in chunk indexes accepted")
	}
}

func TestValidateDocument(t *testing.T) {
	doc := &Document{Id: "abc", CompanyId: "co-1", Status: StatusPending}
	if err := ValidateDocument(doc); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}

	if err := ValidateDocument(&Document{Id: "abc", Status: StatusPending}); err == nil {
		t.Error("document without company accepted")
	}
	if err := ValidateDocument(&Document{Id: "abc", CompanyId: "co-1", Status: "sideways"}); err == nil {
		t.Error("document with unknown status accepted")
	}
}
