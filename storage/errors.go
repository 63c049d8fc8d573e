package storage

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a create collided with an existing record.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrJobInFlight indicates an ingestion job already exists for the
	// document. Exactly one job may be in flight per document.
	ErrJobInFlight = errors.New("ingestion job already in flight for document")

	// ErrNoJob indicates no claimable job is currently available.
	ErrNoJob = errors.New("no claimable job available")

	// ErrLeaseLost indicates a lease operation on a job the worker no
	// longer holds.
	ErrLeaseLost = errors.New("job lease no longer held")
)
