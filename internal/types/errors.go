package types

import (
	"errors"
	"fmt"
)

// Error taxonomy. Per-document kinds are recovered inside the batch;
// ErrSourceEnumeration is the only one returned to callers.
var (
	ErrMalformedDocument  = errors.New("malformed document")
	ErrUnrecognizedSchema = errors.New("unrecognized schema")
	ErrExtractionFailure  = errors.New("extraction failure")
	ErrSourceEnumeration  = errors.New("source enumeration failed")
)

// DocumentError ties a per-document failure to its source.
type DocumentError struct {
	// Kind is one of the sentinels above.
	Kind   error
	Source string
	Cause  error
}

// NewDocumentError wraps cause under kind for the given source.
func NewDocumentError(kind error, source string, cause error) *DocumentError {
	return &DocumentError{Kind: kind, Source: source, Cause: cause}
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Source, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Source)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *DocumentError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// KindOf returns the taxonomy sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrMalformedDocument, ErrUnrecognizedSchema, ErrExtractionFailure, ErrSourceEnumeration} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
