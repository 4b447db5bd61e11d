package bsonkit

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/xdg-go/bsonkit/oid"
)

// Builder appends elements to a document in a Region.  A Builder is used
// once: after Finalize every call returns ErrUsedAfterFinalize.
//
// Nested builders started with StartDocument or StartArray share their
// parent's Region and write at its tail.  A child must be finalized before its
// parent is used again; until then the parent returns ErrChildOpen.
//
// A Builder only records offsets into its Region, never slices of it, so
// growth of the Region never invalidates builder state.  A builder tree is not
// safe for concurrent use.
type Builder struct {
	region *Region
	parent *Builder
	start  int
	index  uint64 // next array key
	open   bool   // a child builder is not yet finalized
	done   bool
}

// ArrayBuilder appends values to an array.  Each value is stored under the
// decimal string of its position: "0", "1", "2", ...
type ArrayBuilder struct {
	b *Builder
}

// maxDocumentSize is the largest length prefix a document may carry.
var maxDocumentSize = math.MaxInt32

// NewBuilder returns a root document builder over a fresh Region.
func NewBuilder() *Builder {
	b, _ := NewBuilderIn(NewRegion(DefaultRegionCapacity))
	return b
}

// NewBuilderIn returns a root document builder that writes at the current
// end of r.
func NewBuilderIn(r *Region) (*Builder, error) {
	start, err := r.Reserve(4)
	if err != nil {
		return nil, err
	}
	return &Builder{region: r, start: start}, nil
}

// NewArrayBuilder returns a root array builder over a fresh Region.
func NewArrayBuilder() *ArrayBuilder {
	return &ArrayBuilder{b: NewBuilder()}
}

// NewArrayBuilderIn returns a root array builder that writes at the current
// end of r.
func NewArrayBuilderIn(r *Region) (*ArrayBuilder, error) {
	b, err := NewBuilderIn(r)
	if err != nil {
		return nil, err
	}
	return &ArrayBuilder{b: b}, nil
}

func (b *Builder) usable() error {
	if b.done {
		return ErrUsedAfterFinalize
	}
	if b.open {
		return ErrChildOpen
	}
	return nil
}

func checkCString(s string) error {
	if strings.IndexByte(s, nullByte) >= 0 {
		return errors.Wrapf(ErrInvalidKey, "%q", s)
	}
	return nil
}

// header checks the builder, reserves room for a whole element and writes its
// type and key.  After a nil return the value bytes can be written without
// further checks.
func (b *Builder) header(t Type, key string, valueLen int) error {
	if err := b.usable(); err != nil {
		return err
	}
	if err := checkCString(key); err != nil {
		return err
	}
	if err := b.region.ensure(1 + len(key) + 1 + valueLen); err != nil {
		return err
	}
	b.region.putByte(byte(t))
	b.region.putCString(key)
	return nil
}

// AppendDouble appends a double.
func (b *Builder) AppendDouble(key string, f float64) error {
	if err := b.header(TypeDouble, key, 8); err != nil {
		return err
	}
	b.region.putInt64(int64(math.Float64bits(f)))
	return nil
}

func (b *Builder) appendStringLike(t Type, key, s string) error {
	if len(s) >= math.MaxInt32-4 {
		return errors.Errorf("%s value of %d bytes is too long", t, len(s))
	}
	if err := b.header(t, key, 4+len(s)+1); err != nil {
		return err
	}
	b.region.putInt32(int32(len(s) + 1))
	b.region.putCString(s)
	return nil
}

// AppendString appends a UTF-8 string.  The length written includes the
// terminating null byte, which the builder adds.
func (b *Builder) AppendString(key, s string) error {
	return b.appendStringLike(TypeString, key, s)
}

// AppendJavaScript appends JavaScript code.
func (b *Builder) AppendJavaScript(key, code string) error {
	return b.appendStringLike(TypeJavaScript, key, code)
}

// AppendSymbol appends a symbol.
func (b *Builder) AppendSymbol(key, symbol string) error {
	return b.appendStringLike(TypeSymbol, key, symbol)
}

func (b *Builder) appendDocumentLike(t Type, key string, doc Document) error {
	if len(doc.data) < minDocumentLength || doc.Size() != len(doc.data) {
		return invalidf("cannot append %s %q: bad document length", t, key)
	}
	if err := b.header(t, key, len(doc.data)); err != nil {
		return err
	}
	b.region.put(doc.data)
	return nil
}

// AppendDocument appends a copy of an encoded document.
func (b *Builder) AppendDocument(key string, doc Document) error {
	return b.appendDocumentLike(TypeDocument, key, doc)
}

// AppendArray appends a copy of an encoded array.
func (b *Builder) AppendArray(key string, arr Document) error {
	return b.appendDocumentLike(TypeArray, key, arr)
}

// AppendBinary appends binary data with the given subtype.
func (b *Builder) AppendBinary(key string, subtype byte, data []byte) error {
	if len(data) > math.MaxInt32-5 {
		return errors.Errorf("binary value of %d bytes is too long", len(data))
	}
	if err := b.header(TypeBinary, key, 4+1+len(data)); err != nil {
		return err
	}
	b.region.putInt32(int32(len(data)))
	b.region.putByte(subtype)
	b.region.put(data)
	return nil
}

// AppendUndefined appends the deprecated undefined value.
func (b *Builder) AppendUndefined(key string) error {
	return b.header(TypeUndefined, key, 0)
}

// AppendObjectID appends an object id.
func (b *Builder) AppendObjectID(key string, id oid.ID) error {
	if err := b.header(TypeObjectID, key, oidLength); err != nil {
		return err
	}
	b.region.put(id[:])
	return nil
}

// AppendBoolean appends a boolean.
func (b *Builder) AppendBoolean(key string, v bool) error {
	if err := b.header(TypeBoolean, key, 1); err != nil {
		return err
	}
	if v {
		b.region.putByte(1)
	} else {
		b.region.putByte(0)
	}
	return nil
}

// AppendDateTime appends a UTC datetime given in milliseconds since the Unix
// epoch.
func (b *Builder) AppendDateTime(key string, ms int64) error {
	if err := b.header(TypeDateTime, key, 8); err != nil {
		return err
	}
	b.region.putInt64(ms)
	return nil
}

// AppendTime appends t as a UTC datetime, truncated to milliseconds.
func (b *Builder) AppendTime(key string, t time.Time) error {
	return b.AppendDateTime(key, t.Unix()*1e3+int64(t.Nanosecond())/1e6)
}

// AppendNull appends a null.
func (b *Builder) AppendNull(key string) error {
	return b.header(TypeNull, key, 0)
}

// AppendRegex appends a regular expression.  Empty options are written as an
// empty cstring.
func (b *Builder) AppendRegex(key, pattern, options string) error {
	if err := checkCString(pattern); err != nil {
		return err
	}
	if err := checkCString(options); err != nil {
		return err
	}
	if err := b.header(TypeRegex, key, len(pattern)+1+len(options)+1); err != nil {
		return err
	}
	b.region.putCString(pattern)
	b.region.putCString(options)
	return nil
}

// AppendDBPointer appends the deprecated DBPointer.
func (b *Builder) AppendDBPointer(key, ns string, id oid.ID) error {
	if err := b.header(TypeDBPointer, key, 4+len(ns)+1+oidLength); err != nil {
		return err
	}
	b.region.putInt32(int32(len(ns) + 1))
	b.region.putCString(ns)
	b.region.put(id[:])
	return nil
}

// AppendCodeWithScope appends JavaScript code with a scope document.
func (b *Builder) AppendCodeWithScope(key, code string, scope Document) error {
	if len(scope.data) < minDocumentLength || scope.Size() != len(scope.data) {
		return invalidf("cannot append code with scope %q: bad scope length", key)
	}
	total := 4 + 4 + len(code) + 1 + len(scope.data)
	if err := b.header(TypeCodeWithScope, key, total); err != nil {
		return err
	}
	b.region.putInt32(int32(total))
	b.region.putInt32(int32(len(code) + 1))
	b.region.putCString(code)
	b.region.put(scope.data)
	return nil
}

// AppendInt32 appends a 32-bit integer.
func (b *Builder) AppendInt32(key string, i int32) error {
	if err := b.header(TypeInt32, key, 4); err != nil {
		return err
	}
	b.region.putInt32(i)
	return nil
}

// AppendTimestamp appends a timestamp.  The increment is written first.
func (b *Builder) AppendTimestamp(key string, t, i uint32) error {
	if err := b.header(TypeTimestamp, key, 8); err != nil {
		return err
	}
	b.region.putInt32(int32(i))
	b.region.putInt32(int32(t))
	return nil
}

// AppendInt64 appends a 64-bit integer.
func (b *Builder) AppendInt64(key string, i int64) error {
	if err := b.header(TypeInt64, key, 8); err != nil {
		return err
	}
	b.region.putInt64(i)
	return nil
}

// AppendMinKey appends the min key.
func (b *Builder) AppendMinKey(key string) error {
	return b.header(TypeMinKey, key, 0)
}

// AppendMaxKey appends the max key.
func (b *Builder) AppendMaxKey(key string) error {
	return b.header(TypeMaxKey, key, 0)
}

// AppendElement copies an existing element's bytes verbatim.
func (b *Builder) AppendElement(e Element) error {
	if len(e.data) == 0 {
		return invalidf("cannot append the zero Element")
	}
	if err := b.usable(); err != nil {
		return err
	}
	if _, err := b.region.Append(e.data); err != nil {
		return err
	}
	return nil
}

// appendValue writes e's value under a new key.
func (b *Builder) appendValue(key string, e Element) error {
	if len(e.data) == 0 {
		return invalidf("cannot append the zero Element")
	}
	v := e.Value()
	if err := b.header(e.Type(), key, len(v)); err != nil {
		return err
	}
	b.region.put(v)
	return nil
}

// nested writes a document or array header under key and starts a child
// builder whose length placeholder follows it.
func (b *Builder) nested(t Type, key string) (*Builder, error) {
	if err := b.header(t, key, 4); err != nil {
		return nil, err
	}
	start := b.region.Len()
	b.region.put(emptyLength)
	b.open = true
	return &Builder{region: b.region, parent: b, start: start}, nil
}

// StartDocument begins an embedded document under key.  The returned builder
// must be finalized before b is used again.
func (b *Builder) StartDocument(key string) (*Builder, error) {
	return b.nested(TypeDocument, key)
}

// StartArray begins an embedded array under key.  The returned builder must
// be finalized before b is used again.
func (b *Builder) StartArray(key string) (*ArrayBuilder, error) {
	child, err := b.nested(TypeArray, key)
	if err != nil {
		return nil, err
	}
	return &ArrayBuilder{b: child}, nil
}

// Finalize writes the terminator, patches the length prefix and returns the
// finished document.  For a nested builder the document is a view into the
// shared Region that is only valid until the parent appends again; the
// parent's own document includes it.
func (b *Builder) Finalize() (Document, error) {
	if err := b.usable(); err != nil {
		return Document{}, err
	}
	length := b.region.Len() + 1 - b.start
	if length > maxDocumentSize {
		return Document{}, errors.Errorf("document of %d bytes exceeds maximum size", length)
	}
	if _, err := b.region.AppendByte(nullByte); err != nil {
		return Document{}, err
	}
	b.region.PutInt32(b.start, int32(length))
	b.done = true
	if b.parent != nil {
		b.parent.open = false
	}
	return Document{data: b.region.View(b.start, length)}, nil
}

// key returns the key for the next array value.
func (a *ArrayBuilder) key() string {
	return indexKey(a.b.index)
}

// advance moves to the next index after a successful append.
func (a *ArrayBuilder) advance(err error) error {
	if err == nil {
		a.b.index++
	}
	return err
}

// Len returns the number of values appended so far.
func (a *ArrayBuilder) Len() int {
	return int(a.b.index)
}

// AppendDouble appends a double.
func (a *ArrayBuilder) AppendDouble(f float64) error {
	return a.advance(a.b.AppendDouble(a.key(), f))
}

// AppendString appends a UTF-8 string.
func (a *ArrayBuilder) AppendString(s string) error {
	return a.advance(a.b.AppendString(a.key(), s))
}

// AppendJavaScript appends JavaScript code.
func (a *ArrayBuilder) AppendJavaScript(code string) error {
	return a.advance(a.b.AppendJavaScript(a.key(), code))
}

// AppendSymbol appends a symbol.
func (a *ArrayBuilder) AppendSymbol(symbol string) error {
	return a.advance(a.b.AppendSymbol(a.key(), symbol))
}

// AppendDocument appends a copy of an encoded document.
func (a *ArrayBuilder) AppendDocument(doc Document) error {
	return a.advance(a.b.AppendDocument(a.key(), doc))
}

// AppendArray appends a copy of an encoded array.
func (a *ArrayBuilder) AppendArray(arr Document) error {
	return a.advance(a.b.AppendArray(a.key(), arr))
}

// AppendBinary appends binary data.
func (a *ArrayBuilder) AppendBinary(subtype byte, data []byte) error {
	return a.advance(a.b.AppendBinary(a.key(), subtype, data))
}

// AppendUndefined appends the deprecated undefined value.
func (a *ArrayBuilder) AppendUndefined() error {
	return a.advance(a.b.AppendUndefined(a.key()))
}

// AppendObjectID appends an object id.
func (a *ArrayBuilder) AppendObjectID(id oid.ID) error {
	return a.advance(a.b.AppendObjectID(a.key(), id))
}

// AppendBoolean appends a boolean.
func (a *ArrayBuilder) AppendBoolean(v bool) error {
	return a.advance(a.b.AppendBoolean(a.key(), v))
}

// AppendDateTime appends a UTC datetime in milliseconds since the epoch.
func (a *ArrayBuilder) AppendDateTime(ms int64) error {
	return a.advance(a.b.AppendDateTime(a.key(), ms))
}

// AppendTime appends t as a UTC datetime.
func (a *ArrayBuilder) AppendTime(t time.Time) error {
	return a.advance(a.b.AppendTime(a.key(), t))
}

// AppendNull appends a null.
func (a *ArrayBuilder) AppendNull() error {
	return a.advance(a.b.AppendNull(a.key()))
}

// AppendRegex appends a regular expression.
func (a *ArrayBuilder) AppendRegex(pattern, options string) error {
	return a.advance(a.b.AppendRegex(a.key(), pattern, options))
}

// AppendDBPointer appends the deprecated DBPointer.
func (a *ArrayBuilder) AppendDBPointer(ns string, id oid.ID) error {
	return a.advance(a.b.AppendDBPointer(a.key(), ns, id))
}

// AppendCodeWithScope appends JavaScript code with a scope document.
func (a *ArrayBuilder) AppendCodeWithScope(code string, scope Document) error {
	return a.advance(a.b.AppendCodeWithScope(a.key(), code, scope))
}

// AppendInt32 appends a 32-bit integer.
func (a *ArrayBuilder) AppendInt32(i int32) error {
	return a.advance(a.b.AppendInt32(a.key(), i))
}

// AppendTimestamp appends a timestamp.
func (a *ArrayBuilder) AppendTimestamp(t, i uint32) error {
	return a.advance(a.b.AppendTimestamp(a.key(), t, i))
}

// AppendInt64 appends a 64-bit integer.
func (a *ArrayBuilder) AppendInt64(i int64) error {
	return a.advance(a.b.AppendInt64(a.key(), i))
}

// AppendMinKey appends the min key.
func (a *ArrayBuilder) AppendMinKey() error {
	return a.advance(a.b.AppendMinKey(a.key()))
}

// AppendMaxKey appends the max key.
func (a *ArrayBuilder) AppendMaxKey() error {
	return a.advance(a.b.AppendMaxKey(a.key()))
}

// AppendElement appends the value of an existing element under the next
// index, discarding its key.
func (a *ArrayBuilder) AppendElement(e Element) error {
	return a.advance(a.b.appendValue(a.key(), e))
}

// StartDocument begins an embedded document at the next index.
func (a *ArrayBuilder) StartDocument() (*Builder, error) {
	child, err := a.b.StartDocument(a.key())
	if err != nil {
		return nil, err
	}
	a.b.index++
	return child, nil
}

// StartArray begins an embedded array at the next index.
func (a *ArrayBuilder) StartArray() (*ArrayBuilder, error) {
	child, err := a.b.StartArray(a.key())
	if err != nil {
		return nil, err
	}
	a.b.index++
	return child, nil
}

// Finalize finishes the array.  See Builder.Finalize.
func (a *ArrayBuilder) Finalize() (Document, error) {
	return a.b.Finalize()
}
