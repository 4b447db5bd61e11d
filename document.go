package bsonkit

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Document is a read-only view over an encoded BSON document: a 4-byte
// little-endian length, zero or more elements and a terminating null byte.
//
// A Document does not copy its bytes.  A Document returned by a root
// Builder's Finalize owns the Region storage it views; embedded documents
// borrow from their parent.
type Document struct {
	data []byte
}

// NewDocument validates the length prefix of b and returns a Document over
// the prefixed range.  Bytes after the prefixed length are ignored.  Elements
// are not decoded until they are iterated; call Validate for a full check.
func NewDocument(b []byte) (Document, error) {
	n, err := documentSize(b)
	if err != nil {
		return Document{}, err
	}
	return Document{data: b[:n:n]}, nil
}

// Size returns the length recorded in the document's prefix.
func (d Document) Size() int {
	if len(d.data) < 4 {
		return 0
	}
	return int(int32(binary.LittleEndian.Uint32(d.data)))
}

// Bytes returns the encoded document.
func (d Document) Bytes() []byte {
	return d.data
}

// Empty reports whether the document has no elements.
func (d Document) Empty() bool {
	return len(d.data) <= minDocumentLength
}

// FirstElement decodes the element at offset 4.  An empty document has no
// first element and returns ErrInvalidEncoding.
func (d Document) FirstElement() (Element, error) {
	if len(d.data) < minDocumentLength {
		return Element{}, invalidf("document of %d bytes is truncated", len(d.data))
	}
	if d.data[4] == nullByte {
		return Element{}, invalidf("document is empty, offset 4 is the terminator")
	}
	return ElementAt(d.data[:len(d.data)-1], 4)
}

// Elements decodes every top-level element.
func (d Document) Elements() ([]Element, error) {
	var elems []Element
	it := d.Iterator()
	for ; !it.AtEnd(); it.Advance() {
		e, err := it.Element()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return elems, it.Err()
}

// Len returns the number of top-level elements.
func (d Document) Len() (int, error) {
	var n int
	it := d.Iterator()
	for ; !it.AtEnd(); it.Advance() {
		n++
	}
	return n, it.Err()
}

// Lookup returns the first top-level element with the given key.
func (d Document) Lookup(key string) (Element, error) {
	it := d.Iterator()
	for ; !it.AtEnd(); it.Advance() {
		e, err := it.Element()
		if err != nil {
			return Element{}, err
		}
		if e.Key() == key {
			return e, nil
		}
	}
	if err := it.Err(); err != nil {
		return Element{}, err
	}
	return Element{}, errors.Wrapf(ErrKeyNotFound, "%q", key)
}

// LookupPath follows keys through embedded documents and arrays.
func (d Document) LookupPath(keys ...string) (Element, error) {
	if len(keys) == 0 {
		return Element{}, errors.Wrap(ErrKeyNotFound, "empty path")
	}
	cur := d
	for i, key := range keys {
		e, err := cur.Lookup(key)
		if err != nil {
			return Element{}, err
		}
		if i == len(keys)-1 {
			return e, nil
		}
		switch e.Type() {
		case TypeDocument, TypeArray:
			cur = Document{data: e.Value()}
		default:
			return Element{}, errors.Wrapf(ErrWrongType, "path element %q is %s", key, e.Type())
		}
	}
	return Element{}, errors.Wrap(ErrKeyNotFound, "unreachable")
}

// Validate walks the document, recursing into embedded documents, arrays and
// code scopes, and reports the first encoding error.
func (d Document) Validate() error {
	if _, err := documentSize(d.data); err != nil {
		return err
	}
	if d.Size() != len(d.data) {
		return invalidf("document length %d does not match %d bytes", d.Size(), len(d.data))
	}
	it := d.Iterator()
	for ; !it.AtEnd(); it.Advance() {
		e, err := it.Element()
		if err != nil {
			return err
		}
		switch e.Type() {
		case TypeDocument, TypeArray:
			if err := (Document{data: e.Value()}).Validate(); err != nil {
				return errors.WithMessagef(err, "in %q", e.Key())
			}
		case TypeCodeWithScope:
			_, scope, err := e.CodeWithScope()
			if err != nil {
				return errors.WithMessagef(err, "in %q", e.Key())
			}
			if err := scope.Validate(); err != nil {
				return errors.WithMessagef(err, "in scope of %q", e.Key())
			}
		case TypeBoolean:
			if _, err := e.Boolean(); err != nil {
				return err
			}
		}
	}
	return it.Err()
}

// Raw returns the document as the MongoDB driver's bson.Raw, without copying.
func (d Document) Raw() bson.Raw {
	return bson.Raw(d.data)
}

// String renders the document as relaxed Extended JSON.
func (d Document) String() string {
	return d.Raw().String()
}
