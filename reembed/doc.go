// Package reembed regenerates the vectors of already-ingested documents,
// typically after switching to a new embedding model.
//
// Documents are re-read from blob storage, re-extracted and re-chunked, so
// the refreshed vectors line up with the current chunking configuration.
// Upserts overwrite in place; an interrupted run can simply be repeated.
package reembed
