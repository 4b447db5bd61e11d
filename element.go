package bsonkit

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/xdg-go/bsonkit/oid"
)

// Element is a read-only view of one element inside a document: a type byte,
// a key and a value.  The element's total size is computed once, when the
// view is constructed, and never changes because the underlying bytes are
// immutable.
//
// The zero Element is not a valid element.  Use ElementAt, an Iterator or a
// Document accessor to obtain one.
type Element struct {
	data   []byte
	keyEnd int // index of the key's null terminator in data
}

// ElementAt decodes the element starting at buf[off].  It returns
// ErrInvalidEncoding if off points at a document terminator, if the type is
// unknown, or if any length field runs past the end of buf.
func ElementAt(buf []byte, off int) (Element, error) {
	if off < 0 || off >= len(buf) {
		return Element{}, invalidf("element offset %d outside buffer of %d bytes", off, len(buf))
	}
	t := Type(buf[off])
	if t == TypeEOO {
		return Element{}, invalidf("offset %d is the document terminator, not an element", off)
	}
	if !t.Valid() {
		return Element{}, invalidf("unknown element type 0x%02x at offset %d", byte(t), off)
	}

	rest := buf[off+1:]
	keyLen := bytes.IndexByte(rest, nullByte)
	if keyLen < 0 {
		return Element{}, invalidf("unterminated key at offset %d", off+1)
	}

	valueStart := 1 + keyLen + 1
	n, err := valueSize(t, buf[off+valueStart:])
	if err != nil {
		return Element{}, errors.WithMessagef(err, "element %q at offset %d", rest[:keyLen], off)
	}

	total := valueStart + n
	return Element{data: buf[off : off+total : off+total], keyEnd: 1 + keyLen}, nil
}

// valueSize returns the size of a value of type t at the start of v.
func valueSize(t Type, v []byte) (int, error) {
	var n int
	switch t {
	case TypeDouble, TypeInt64, TypeDateTime, TypeTimestamp:
		n = 8
	case TypeInt32:
		n = 4
	case TypeBoolean:
		n = 1
	case TypeObjectID:
		n = oidLength
	case TypeNull, TypeUndefined, TypeMinKey, TypeMaxKey:
		n = 0
	case TypeString, TypeSymbol, TypeJavaScript:
		l, err := stringSize(v)
		if err != nil {
			return 0, err
		}
		n = l
	case TypeDocument, TypeArray:
		l, err := documentSize(v)
		if err != nil {
			return 0, err
		}
		n = l
	case TypeBinary:
		l, err := readLength(v)
		if err != nil {
			return 0, err
		}
		n = 4 + 1 + l
	case TypeRegex:
		p := bytes.IndexByte(v, nullByte)
		if p < 0 {
			return 0, invalidf("unterminated regex pattern")
		}
		o := bytes.IndexByte(v[p+1:], nullByte)
		if o < 0 {
			return 0, invalidf("unterminated regex options")
		}
		n = p + 1 + o + 1
	case TypeDBPointer:
		l, err := stringSize(v)
		if err != nil {
			return 0, err
		}
		n = l + oidLength
	case TypeCodeWithScope:
		l, err := readLength(v)
		if err != nil {
			return 0, err
		}
		if l < 4+5+minDocumentLength {
			return 0, invalidf("code with scope length %d too small", l)
		}
		code, err := stringSize(v[4:])
		if err != nil {
			return 0, err
		}
		scope, err := documentSize(v[4+code:])
		if err != nil {
			return 0, err
		}
		if 4+code+scope != l {
			return 0, invalidf("code with scope length %d does not match contents %d", l, 4+code+scope)
		}
		n = l
	default:
		return 0, invalidf("unknown element type 0x%02x", byte(t))
	}
	if n > len(v) {
		return 0, invalidf("%s value needs %d bytes, only %d remain", t, n, len(v))
	}
	return n, nil
}

func readLength(v []byte) (int, error) {
	if len(v) < 4 {
		return 0, invalidf("length field truncated")
	}
	l := int32(binary.LittleEndian.Uint32(v))
	if l < 0 {
		return 0, invalidf("negative length %d", l)
	}
	return int(l), nil
}

// stringSize returns the size of a length-prefixed, null-terminated string
// including its prefix.
func stringSize(v []byte) (int, error) {
	l, err := readLength(v)
	if err != nil {
		return 0, err
	}
	if l < 1 {
		return 0, invalidf("string length %d too small", l)
	}
	if 4+l > len(v) {
		return 0, invalidf("string needs %d bytes, only %d remain", l, len(v)-4)
	}
	if v[4+l-1] != nullByte {
		return 0, invalidf("string not null terminated")
	}
	return 4 + l, nil
}

// documentSize reads an embedded document's own length prefix.
func documentSize(v []byte) (int, error) {
	l, err := readLength(v)
	if err != nil {
		return 0, err
	}
	if l < minDocumentLength {
		return 0, invalidf("document length %d too small", l)
	}
	if l > len(v) {
		return 0, invalidf("document needs %d bytes, only %d remain", l, len(v))
	}
	if v[l-1] != nullByte {
		return 0, invalidf("document not terminated")
	}
	return l, nil
}

// Type returns the element's type.
func (e Element) Type() Type {
	if len(e.data) == 0 {
		return TypeEOO
	}
	return Type(e.data[0])
}

// Key returns the element's key.
func (e Element) Key() string {
	if len(e.data) == 0 {
		return ""
	}
	return string(e.data[1:e.keyEnd])
}

// Value returns the raw value bytes, without type or key.
func (e Element) Value() []byte {
	if len(e.data) == 0 {
		return nil
	}
	return e.data[e.keyEnd+1:]
}

// TotalSize returns the size of the whole element: type, key and value.
func (e Element) TotalSize() int {
	return len(e.data)
}

// Bytes returns the raw element bytes.
func (e Element) Bytes() []byte {
	return e.data
}

func (e Element) want(t Type) error {
	if len(e.data) == 0 {
		return invalidf("zero Element has no value")
	}
	if e.Type() != t {
		return errors.Wrapf(ErrWrongType, "element %q is %s, not %s", e.Key(), e.Type(), t)
	}
	return nil
}

// Double returns a double value.
func (e Element) Double() (float64, error) {
	if err := e.want(TypeDouble); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(e.Value())), nil
}

func readString(v []byte) string {
	l := binary.LittleEndian.Uint32(v)
	return string(v[4 : 4+l-1])
}

// StringValue returns a UTF-8 string value.
func (e Element) StringValue() (string, error) {
	if err := e.want(TypeString); err != nil {
		return "", err
	}
	return readString(e.Value()), nil
}

// DocumentValue returns an embedded document.  The Document borrows the
// element's bytes.
func (e Element) DocumentValue() (Document, error) {
	if err := e.want(TypeDocument); err != nil {
		return Document{}, err
	}
	return Document{data: e.Value()}, nil
}

// ArrayValue returns an embedded array as a Document keyed "0", "1", ...
func (e Element) ArrayValue() (Document, error) {
	if err := e.want(TypeArray); err != nil {
		return Document{}, err
	}
	return Document{data: e.Value()}, nil
}

// Binary returns the subtype and payload of a binary value.
func (e Element) Binary() (byte, []byte, error) {
	if err := e.want(TypeBinary); err != nil {
		return 0, nil, err
	}
	v := e.Value()
	return v[4], v[5:], nil
}

// ObjectID returns an object id value.
func (e Element) ObjectID() (oid.ID, error) {
	if err := e.want(TypeObjectID); err != nil {
		return oid.Nil, err
	}
	return oid.FromBytes(e.Value())
}

// Boolean returns a boolean value.
func (e Element) Boolean() (bool, error) {
	if err := e.want(TypeBoolean); err != nil {
		return false, err
	}
	switch e.Value()[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, invalidf("boolean %q has byte 0x%02x", e.Key(), e.Value()[0])
}

// DateTime returns a UTC datetime as milliseconds since the Unix epoch.
func (e Element) DateTime() (int64, error) {
	if err := e.want(TypeDateTime); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(e.Value())), nil
}

// Time returns a UTC datetime as a time.Time.
func (e Element) Time() (time.Time, error) {
	ms, err := e.DateTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ms/1e3, ms%1e3*1e6).UTC(), nil
}

// Regex returns the pattern and options of a regular expression.
func (e Element) Regex() (pattern, options string, err error) {
	if err := e.want(TypeRegex); err != nil {
		return "", "", err
	}
	v := e.Value()
	p := bytes.IndexByte(v, nullByte)
	return string(v[:p]), string(v[p+1 : len(v)-1]), nil
}

// DBPointer returns the namespace and id of a DBPointer.
func (e Element) DBPointer() (string, oid.ID, error) {
	if err := e.want(TypeDBPointer); err != nil {
		return "", oid.Nil, err
	}
	v := e.Value()
	id, err := oid.FromBytes(v[len(v)-oidLength:])
	return readString(v), id, err
}

// JavaScript returns JavaScript code.
func (e Element) JavaScript() (string, error) {
	if err := e.want(TypeJavaScript); err != nil {
		return "", err
	}
	return readString(e.Value()), nil
}

// Symbol returns a symbol value.
func (e Element) Symbol() (string, error) {
	if err := e.want(TypeSymbol); err != nil {
		return "", err
	}
	return readString(e.Value()), nil
}

// CodeWithScope returns JavaScript code and its scope document.
func (e Element) CodeWithScope() (string, Document, error) {
	if err := e.want(TypeCodeWithScope); err != nil {
		return "", Document{}, err
	}
	v := e.Value()[4:]
	code := readString(v)
	l := binary.LittleEndian.Uint32(v)
	return code, Document{data: v[4+l:]}, nil
}

// Int32 returns a 32-bit integer.
func (e Element) Int32() (int32, error) {
	if err := e.want(TypeInt32); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(e.Value())), nil
}

// Timestamp returns the seconds and increment of a timestamp.  The increment
// is stored first.
func (e Element) Timestamp() (t, i uint32, err error) {
	if err := e.want(TypeTimestamp); err != nil {
		return 0, 0, err
	}
	v := e.Value()
	return binary.LittleEndian.Uint32(v[4:8]), binary.LittleEndian.Uint32(v[0:4]), nil
}

// Int64 returns a 64-bit integer.
func (e Element) Int64() (int64, error) {
	if err := e.want(TypeInt64); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(e.Value())), nil
}
