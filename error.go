package bsonkit

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfMemory is returned when a Region cannot grow to satisfy an
	// append.  The append is rejected and prior content is left intact.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrInvalidEncoding is returned when decoding bytes that are not valid
	// BSON, including an attempt to read the document terminator as if it were
	// an element.
	ErrInvalidEncoding = errors.New("invalid BSON encoding")

	// ErrUsedAfterFinalize is returned by any builder call made after the
	// builder was finalized.
	ErrUsedAfterFinalize = errors.New("builder used after finalize")

	// ErrMalformedJSON is matched by every *ParseError.
	ErrMalformedJSON = errors.New("malformed JSON")

	// ErrDuplicateKey is returned by a Converter with unique keys enabled.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrWrongType   = errors.New("element has a different type")
	ErrInvalidKey  = errors.New("key or cstring contains a null byte")
	ErrChildOpen   = errors.New("nested builder not finalized")
	ErrKeyNotFound = errors.New("key not found")
)

// ParseError records JSON parsing errors.  It carries the byte offset of the
// error and a small excerpt of the text at that point.
type ParseError struct {
	Offset  int
	Reason  string
	excerpt string
}

func newParseError(text []byte, offset int, reason string) *ParseError {
	end := offset + 20
	if end > len(text) {
		end = len(text)
	}
	start := offset
	if start > end {
		start = end
	}
	return &ParseError{Offset: offset, Reason: reason, excerpt: string(text[start:end])}
}

func (pe *ParseError) Error() string {
	if pe.excerpt == "" {
		return fmt.Sprintf("parse error: %s at offset %d", pe.Reason, pe.Offset)
	}
	return fmt.Sprintf("parse error: %s at offset %d, near '%s...'", pe.Reason, pe.Offset, pe.excerpt)
}

// Unwrap makes every ParseError match ErrMalformedJSON.
func (pe *ParseError) Unwrap() error { return ErrMalformedJSON }

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidEncoding, format, args...)
}
