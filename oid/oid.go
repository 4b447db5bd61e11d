// Package oid implements 12-byte BSON object identifiers.
//
// An identifier is a fixed byte array.  Its sub-fields are read with explicit
// big-endian accessors rather than by overlaying a struct, so the layout is
// the same on every platform:
//
//	random mode:     | 4 timestamp | 3 machine | 2 pid | 3 counter |
//	sequential mode: | 4 timestamp |        8 sequence            |
package oid

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Size is the length of an identifier in bytes.
const Size = 12

// ID is a 12-byte object identifier.
type ID [Size]byte

// Nil is the zero identifier.
var Nil ID

// ErrInvalidHex is returned when a string is not exactly 24 hex characters.
var ErrInvalidHex = errors.New("invalid object id hex string")

// ErrInvalidLength is returned by FromBytes for a slice that is not 12 bytes.
var ErrInvalidLength = errors.New("invalid object id length")

// FromBytes copies a 12-byte slice into an ID.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Size {
		return Nil, errors.Wrapf(ErrInvalidLength, "got %d bytes", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// FromHex parses the 24 character hex form of an ID.  Upper case digits are
// accepted.
func FromHex(s string) (ID, error) {
	var id ID
	if len(s) != 2*Size {
		return Nil, errors.Wrapf(ErrInvalidHex, "%q has length %d", s, len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return Nil, errors.Wrapf(ErrInvalidHex, "%q: %v", s, err)
	}
	return id, nil
}

// Hex returns the 24 character lowercase hex form.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ID) String() string {
	return id.Hex()
}

// IsZero reports whether id is Nil.
func (id ID) IsZero() bool {
	return id == Nil
}

// Compare orders identifiers byte-wise, returning -1, 0 or +1.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Timestamp returns the creation time, to the second.
func (id ID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0).UTC()
}

// Machine returns the 3-byte machine number of a random-mode ID.
func (id ID) Machine() uint32 {
	return uint32(id[4])<<16 | uint32(id[5])<<8 | uint32(id[6])
}

// Pid returns the 2-byte process id of a random-mode ID.
func (id ID) Pid() uint16 {
	return binary.BigEndian.Uint16(id[7:9])
}

// Counter returns the 3-byte counter of a random-mode ID.
func (id ID) Counter() uint32 {
	return uint32(id[9])<<16 | uint32(id[10])<<8 | uint32(id[11])
}

// Sequence returns the 8-byte counter of a sequential-mode ID.
func (id ID) Sequence() uint64 {
	return binary.BigEndian.Uint64(id[4:12])
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := FromHex(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Primitive converts to the MongoDB driver's ObjectID.
func (id ID) Primitive() primitive.ObjectID {
	return primitive.ObjectID(id)
}

// FromPrimitive converts from the MongoDB driver's ObjectID.
func FromPrimitive(p primitive.ObjectID) ID {
	return ID(p)
}

func putTimestamp(id *ID, t time.Time) {
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
}
