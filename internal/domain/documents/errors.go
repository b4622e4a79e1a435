package documents

import "errors"

var (
	// ErrNotFound means no live artifact exists for an identifier: it never
	// existed, expired, was evicted or was lost with the storage.
	ErrNotFound = errors.New("document not found")

	// ErrStorageWrite means an artifact could not be persisted.
	ErrStorageWrite = errors.New("document storage write failed")

	// ErrInvalidID is returned for identifiers that cannot have been minted here.
	ErrInvalidID = errors.New("invalid document identifier")

	// ErrAmbiguousMatch flags more than one stored name for one identifier.
	// It is logged, never surfaced.
	ErrAmbiguousMatch = errors.New("ambiguous document identifier match")

	// ErrValidation wraps malformed create requests.
	ErrValidation = errors.New("invalid document request")
)
