package bsonkit

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type unmarshalTestCase struct {
	label  string
	input  string
	output string
	errStr string
}

func testWithUnmarshal(t *testing.T, cases []unmarshalTestCase) {
	t.Helper()

	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()

			buf := make([]byte, 0, 256)
			buf, err := Unmarshal([]byte(c.input), buf)
			if c.errStr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.errStr)
				assert.ErrorIs(t, err, ErrMalformedJSON)
				assert.Nil(t, buf)
				return
			}
			require.NoError(t, err)
			expect, err := hex.DecodeString(strings.ToLower(c.output))
			require.NoError(t, err, "error decoding test output")
			assert.Equal(t, hex.EncodeToString(expect), hex.EncodeToString(buf), "Unmarshal doesn't match expected")
		})
	}
}

func convertWithGoDriver(input []byte) ([]byte, error) {
	var got bson.Raw
	err := bson.UnmarshalExtJSON(input, false, &got)
	return got, err
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// recorder is a Visitor that logs events as strings.
type recorder struct {
	events []string
	failOn string
	err    error
}

func (r *recorder) record(ev string) error {
	r.events = append(r.events, ev)
	if r.failOn != "" && strings.HasPrefix(ev, r.failOn) {
		return r.err
	}
	return nil
}

func keyLabel(key string, keyed bool) string {
	if !keyed {
		return "-"
	}
	return key
}

func scalarLabel(v Scalar) string {
	switch v.Kind {
	case ScalarNull:
		return "null"
	case ScalarBool:
		return fmt.Sprintf("bool:%v", v.Bool)
	case ScalarInt:
		return fmt.Sprintf("int:%d", v.Int)
	case ScalarDouble:
		return fmt.Sprintf("double:%v", v.Double)
	case ScalarString:
		return fmt.Sprintf("string:%q", v.String)
	case ScalarObjectID:
		return "oid:" + v.OID.Hex()
	}
	return "?"
}

func (r *recorder) StartObject(key string, keyed bool) error {
	return r.record("{" + keyLabel(key, keyed))
}

func (r *recorder) EndObject() error { return r.record("}") }

func (r *recorder) StartArray(key string, keyed bool) error {
	return r.record("[" + keyLabel(key, keyed))
}

func (r *recorder) EndArray() error { return r.record("]") }

func (r *recorder) Pair(key string, v Scalar) error {
	return r.record(key + "=" + scalarLabel(v))
}

func (r *recorder) Value(v Scalar) error {
	return r.record(scalarLabel(v))
}
