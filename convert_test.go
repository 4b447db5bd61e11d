package bsonkit

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Inputs the Go driver's relaxed Extended JSON parser decodes to the same
// bytes.
var driverCorpus = []string{
	`{}`,
	`{"a":1,"b":[true,null,"x"],"c":{"d":2.5}}`,
	`{"a":-2147483648,"b":2147483647,"c":2147483648,"d":-9223372036854775808}`,
	`{"pi":3.14159,"e":2.718e0,"big":1.5e300,"tiny":-4.2E-12}`,
	`{"s":"a\"b\\c\/d\b\f\n\r\t","u":"é☆😀"}`,
	`{"nested":{"a":{"b":{"c":[1,[2,[3,[4]]]]}}}}`,
	`{"arr":[{},[],{"x":[]},[{}]]}`,
	`{"k1":"v1","k2":"v2","k3":"v3","k4":"v4","k5":"v5","k6":"v6","k7":"v7","k8":"v8","k9":"v9","k10":"v10","k11":"v11"}`,
	`{"long":[0,1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16,17,18,19,20,21,22,23,24,25,26,27,28,29,30,31,32,33,34,35,36,37,38,39,40,41,42,43,44,45,46,47,48,49,50,51,52,53,54,55,56,57,58,59,60,61,62,63,64,65,66,67,68,69,70,71,72,73,74,75,76,77,78,79,80,81,82,83,84,85,86,87,88,89,90,91,92,93,94,95,96,97,98,99,100,101,102,103]}`,
	"{ \"ws\" :\t[ true , false ,null ]\r\n}",
	`{"":"empty key"}`,
}

func TestConvertMatchesDriver(t *testing.T) {
	t.Parallel()

	for _, input := range driverCorpus {
		input := input
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			got, err := Parse([]byte(input))
			require.NoError(t, err)
			want, err := convertWithGoDriver([]byte(input))
			require.NoError(t, err, "driver error")
			if !bytes.Equal(want, got.Bytes()) {
				t.Fatalf("bsonkit doesn't match Go driver:\nbsonkit: %v\nDriver:  %v", hex.EncodeToString(got.Bytes()), hex.EncodeToString(want))
			}
			require.NoError(t, got.Validate())
		})
	}
}

func TestConvertReferenceDocument(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`{"a":1,"b":[true,null,"x"],"c":{"d":2.5}}`))
	require.NoError(t, err)
	assert.Equal(t, 55, doc.Size())
	assert.Equal(t,
		"370000001061000100000004620015000000083000010a3100023200020000007800000363001000000001640000000000000004400000",
		hex.EncodeToString(doc.Bytes()))

	a, err := doc.Lookup("a")
	require.NoError(t, err)
	n, err := a.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(1), n)

	b, err := doc.Lookup("b")
	require.NoError(t, err)
	arr, err := b.ArrayValue()
	require.NoError(t, err)
	var keys []string
	var types []Type
	for it := arr.Iterator(); !it.AtEnd(); it.Advance() {
		e, err := it.Element()
		require.NoError(t, err)
		keys = append(keys, e.Key())
		types = append(types, e.Type())
	}
	assert.Equal(t, []string{"0", "1", "2"}, keys)
	assert.Equal(t, []Type{TypeBoolean, TypeNull, TypeString}, types)

	d, err := doc.LookupPath("c", "d")
	require.NoError(t, err)
	f, err := d.Double()
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)
}

func TestConvertRootArray(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`["b","c"]`))
	require.NoError(t, err)
	assert.Equal(t, mustHex(t, "1700000002300002000000620002310002000000630000"), doc.Bytes())
}

func TestConvertDeepNesting(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`{"a":{"b":{"c":{"d":[{"e":"deep"}]}}}}`))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	e, err := doc.LookupPath("a", "b", "c", "d", "0", "e")
	require.NoError(t, err)
	s, err := e.StringValue()
	require.NoError(t, err)
	assert.Equal(t, "deep", s)

	// each embedded length must match the bytes it spans
	c, err := doc.LookupPath("a", "b", "c")
	require.NoError(t, err)
	inner, err := c.DocumentValue()
	require.NoError(t, err)
	assert.Equal(t, len(inner.Bytes()), inner.Size())
}

func TestConvertUniqueKeys(t *testing.T) {
	t.Parallel()

	input := []byte(`{"a":1,"b":{"a":2},"c":[1,1],"a":3}`)

	doc, err := Parse(input)
	require.NoError(t, err, "duplicates allowed by default")
	n, err := doc.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	c := NewConverter()
	c.UniqueKeys(true)
	_, err = c.Convert(input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, err.Error(), `"a"`)

	_, err = c.Convert([]byte(`{"a":{},"a":[]}`))
	assert.ErrorIs(t, err, ErrDuplicateKey, "container keys are checked too")

	doc, err = c.Convert([]byte(`{"a":1,"b":{"a":2},"c":[1,1]}`))
	require.NoError(t, err, "same key in different objects")
	n, err = doc.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestConvertNullInKey(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"a\u0000b" : 1}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Parse([]byte(`{"a\u0000b" : {}}`))
	assert.ErrorIs(t, err, ErrInvalidKey)

	doc, err := Parse([]byte(`{"a" : "b\u0000c"}`))
	require.NoError(t, err, "null bytes are fine in string values")
	e, err := doc.Lookup("a")
	require.NoError(t, err)
	s, err := e.StringValue()
	require.NoError(t, err)
	assert.Equal(t, "b\x00c", s)
}

func TestConvertLimit(t *testing.T) {
	t.Parallel()

	input := []byte(`{"a":"0123456789012345678901234567890123456789"}`)

	c := NewConverter()
	c.InitialCapacity(8)
	c.Limit(32)
	doc, err := c.Convert(input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Nil(t, doc.Bytes(), "no partial document")

	c.Limit(64)
	doc, err = c.Convert(input)
	require.NoError(t, err)
	assert.Equal(t, 53, doc.Size())
}

func TestConvertLimitWithDefaultCapacity(t *testing.T) {
	t.Parallel()

	input := []byte(`{"a":"0123456789012345678901234567890123456789"}`)

	c := NewConverter()
	c.Limit(32)
	_, err := c.Convert(input)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	c.Limit(53)
	doc, err := c.Convert(input)
	require.NoError(t, err)
	assert.Equal(t, 53, doc.Size())

	c.Limit(52)
	_, err = c.Convert(input)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestConvertErrorsReturnNothing(t *testing.T) {
	t.Parallel()

	for _, input := range []string{`{"a":[1,2`, `{"a":1}}`, `{"a":1,"b":}`, `[{"a":1},]`} {
		doc, err := Parse([]byte(input))
		require.Error(t, err, input)
		assert.ErrorIs(t, err, ErrMalformedJSON, input)
		assert.Nil(t, doc.Bytes(), input)
	}
}

func TestUnmarshalAppends(t *testing.T) {
	t.Parallel()

	prefix := []byte{0xde, 0xad, 0xbe, 0xef}
	buf := make([]byte, len(prefix), 8)
	copy(buf, prefix)

	buf, err := Unmarshal([]byte(`{"a":true}`), buf)
	require.NoError(t, err)
	assert.Equal(t, prefix, buf[:4])
	assert.Equal(t, mustHex(t, "0900000008610001"+"00"), buf[4:])

	doc, err := NewDocument(buf[4:])
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
}

func TestUnmarshalFailureKeepsNothing(t *testing.T) {
	t.Parallel()

	buf, err := Unmarshal([]byte(`{"a":tru}`), make([]byte, 0, 16))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Nil(t, buf)
}

func TestConverterReuse(t *testing.T) {
	t.Parallel()

	c := NewConverter()
	first, err := c.Convert([]byte(`{"a":1}`))
	require.NoError(t, err)
	second, err := c.Convert([]byte(`{"b":2}`))
	require.NoError(t, err)

	_, err = first.Lookup("a")
	assert.NoError(t, err, "earlier results stay valid")
	_, err = second.Lookup("a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
