package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrCorruptStore       = errors.New("corrupt vector store")
	ErrInvalidChunkConfig = errors.New("chunk overlap must be smaller than chunk size")
	ErrEmptyDocument      = errors.New("document has no extractable text")
	ErrInvalidSessionID   = errors.New("invalid session id")
	ErrUnsupportedFormat  = errors.New("unsupported document format")
)

// IngestionError reports which stage of ingesting Path failed.
type IngestionError struct {
	Path  string
	Stage string
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

type QueryError struct {
	Stage string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query: %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// TranslationError carries the zero-based index of the page that failed.
type TranslationError struct {
	Page int
	Err  error
}

func (e *TranslationError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("translate: %v", e.Err)
	}
	return fmt.Sprintf("translate page %d: %v", e.Page+1, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

type SessionReadError struct {
	ID  string
	Err error
}

func (e *SessionReadError) Error() string {
	return fmt.Sprintf("read session %s: %v", e.ID, e.Err)
}

func (e *SessionReadError) Unwrap() error { return e.Err }
