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

import "errors"

// Validation errors, rejected synchronously before any document is created.
var (
	// ErrUnsupportedType indicates a MIME type the extractor cannot handle.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrPayloadTooLarge indicates the decoded text exceeds the configured
	// maximum total length.
	ErrPayloadTooLarge = errors.New("document text exceeds maximum length")

	// ErrEmptyDocument indicates the payload decoded to no usable text.
	ErrEmptyDocument = errors.New("document contains no text")

	// ErrExtractionFailed indicates the converter could not decode a payload
	// of a supported type, typically a corrupt or malformed file.
	ErrExtractionFailed = errors.New("document text extraction failed")

	// ErrInvalidDocument indicates a document record failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrMissingCompany indicates an operation was attempted without a
	// company id. Company scoping is a hard isolation boundary.
	ErrMissingCompany = errors.New("company id required")

	// ErrEmptyQuery indicates a search with no query text.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Embedding provider errors, surfaced asynchronously onto the document record.
var (
	// ErrEmbeddingTimeout indicates an embedding call missed its deadline.
	// Retryable at the batch level.
	ErrEmbeddingTimeout = errors.New("embedding call timed out")

	// ErrProviderFailure indicates a non-timeout failure from the embedding
	// backend. Retryable at the batch level.
	ErrProviderFailure = errors.New("embedding provider failure")

	// ErrEmbedderUnconfigured indicates no embedding credentials are
	// available. Never retried; the job fails fast.
	ErrEmbedderUnconfigured = errors.New("embedding provider not configured")

	// ErrDimensionMismatch indicates the provider returned vectors whose
	// dimensionality differs from the configured model dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ErrInvalidTransition indicates an attempt to move a document status
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid document status transition")
