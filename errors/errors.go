package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorpusUnavailable indicates that the document corpus is missing or empty
	ErrCorpusUnavailable = errors.New("document corpus unavailable")

	// ErrStoreUnavailable indicates that the relational store cannot be reached
	ErrStoreUnavailable = errors.New("data store unavailable")

	// ErrBackendUnavailable indicates that the reasoning backend cannot be reached
	ErrBackendUnavailable = errors.New("reasoning backend unavailable")
)
