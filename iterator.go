package bsonkit

type iterState int

const (
	iterStart iterState = iota
	iterPositioned
	iterExhausted
)

// Iterator walks the top-level elements of a Document in order.  It never
// modifies the document; any number of iterators may walk the same document
// from different goroutines.
//
//	for it := doc.Iterator(); !it.AtEnd(); it.Advance() {
//		e, err := it.Element()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Iterator struct {
	doc   []byte
	state iterState
	off   int
	cur   Element
	err   error
}

// Iterator returns an iterator positioned on the first element, or already at
// the end for an empty document.
func (d Document) Iterator() *Iterator {
	it := &Iterator{doc: d.data}
	if len(d.data) < minDocumentLength {
		it.fail(invalidf("document of %d bytes is truncated", len(d.data)))
		return it
	}
	it.moveTo(4)
	return it
}

// moveTo positions the iterator on the element at off, or finishes at the
// document's terminator.
func (it *Iterator) moveTo(off int) {
	last := len(it.doc) - 1
	switch {
	case off > last:
		it.fail(invalidf("element at offset %d runs past the document terminator", off))
		return
	case it.doc[off] == nullByte:
		if off != last {
			it.fail(invalidf("document terminator at offset %d precedes end of document at %d", off, last))
			return
		}
		it.state = iterExhausted
		it.cur = Element{}
		return
	}

	// Decoding stops short of the terminator so no element may consume it.
	e, err := ElementAt(it.doc[:last], off)
	if err != nil {
		it.fail(err)
		return
	}
	it.state = iterPositioned
	it.off = off
	it.cur = e
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.state = iterExhausted
	it.cur = Element{}
}

// AtEnd reports whether iteration has finished, either at the terminator or
// because of an error.
func (it *Iterator) AtEnd() bool {
	return it.state == iterExhausted
}

// Element returns the current element.  At the end there is no current
// element: Element returns the error that ended iteration, or
// ErrInvalidEncoding if the iterator reached the terminator.
func (it *Iterator) Element() (Element, error) {
	if it.state != iterPositioned {
		if it.err != nil {
			return Element{}, it.err
		}
		return Element{}, invalidf("iterator is at the document terminator")
	}
	return it.cur, nil
}

// Offset returns the current element's offset within the document.
func (it *Iterator) Offset() int {
	return it.off
}

// Advance moves to the next element.  It is a no-op at the end.
func (it *Iterator) Advance() {
	if it.state != iterPositioned {
		return
	}
	it.moveTo(it.off + it.cur.TotalSize())
}

// Err returns the decoding error that ended iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}
