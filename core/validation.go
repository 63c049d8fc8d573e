// Copyright 2025 Voxhive Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Id must not be empty
//   - CompanyId must not be empty
//   - Status must be one of the defined lifecycle states
//
// NOT validated (populated during processing):
//   - ChunkCount / VectorCount (meaningful only once completed)
//   - ProcessedAt (zero until terminal)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.Id == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidDocument)
	}
	if doc.CompanyId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingCompany)
	}
	if err := ValidateStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateStatus validates that a DocumentStatus has a defined value.
func ValidateStatus(status DocumentStatus) error {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidDocument, status)
}

// ValidateChunks checks the ordering invariants of a document's chunk
// sequence: indexes are dense from zero and offsets are non-overlapping and
// strictly increasing.
func ValidateChunks(chunks []Chunk) error {
	prevEnd := 0
	for i, c := range chunks {
		if c.Index != i {
			return fmt.Errorf("chunk %d: unexpected index %d", i, c.Index)
		}
		if c.Start < prevEnd {
			return fmt.Errorf("chunk %d: offset %d overlaps previous end %d", i, c.Start, prevEnd)
		}
		if c.End <= c.Start {
			return fmt.Errorf("chunk %d: empty or inverted offsets [%d,%d)", i, c.Start, c.End)
		}
		prevEnd = c.End
	}
	return nil
}
