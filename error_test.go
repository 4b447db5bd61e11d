package bsonkit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	t.Parallel()

	var buf []byte
	_, err := Unmarshal([]byte(`{,}`), buf)
	require.Error(t, err)
	wrapped := fmt.Errorf("wrapped: %w", err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe), "error wasn't a ParseError")
	require.True(t, errors.As(wrapped, &pe), "wrapped error wasn't a ParseError")
	assert.Equal(t, 1, pe.Offset)
	assert.True(t, errors.Is(wrapped, ErrMalformedJSON))
	assert.Equal(t, "parse error: expecting key or end of object, got ',' at offset 1, near ',}...'", pe.Error())
}

func TestParseErrorAtEnd(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"a":1`))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 6, pe.Offset)
	assert.Equal(t, "parse error: unexpected end of input at offset 6", pe.Error())
}

func TestInvalidEncodingWrapping(t *testing.T) {
	t.Parallel()

	err := invalidf("bad byte at %d", 3)
	assert.True(t, errors.Is(err, ErrInvalidEncoding))
	assert.Equal(t, "bad byte at 3: invalid BSON encoding", err.Error())
}
