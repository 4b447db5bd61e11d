package bsonkit

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// DefaultRegionCapacity is the initial capacity used when none is given.
const DefaultRegionCapacity = 256

// Region is an append-only byte arena with geometric growth.  Appends return
// offsets, which stay valid for the life of the Region even though the
// backing storage moves when it grows.  Never hold a slice obtained from View
// or Bytes across another append.
//
// A Region is not safe for concurrent use.
type Region struct {
	buf   []byte
	limit int
}

// NewRegion returns a Region with the given initial capacity.  A capacity of
// less than one uses DefaultRegionCapacity.
func NewRegion(capacity int) *Region {
	if capacity < 1 {
		capacity = DefaultRegionCapacity
	}
	return &Region{buf: make([]byte, 0, capacity)}
}

// SetLimit caps the number of bytes the Region may hold, whatever its current
// capacity.  Zero means no limit.
func (r *Region) SetLimit(max int) {
	r.limit = max
}

// Len returns the number of bytes appended so far.
func (r *Region) Len() int { return len(r.buf) }

// Cap returns the current capacity.
func (r *Region) Cap() int { return cap(r.buf) }

// ensure grows the Region so that n more bytes fit without reallocation.
// On failure nothing changes.
func (r *Region) ensure(n int) error {
	if n < 0 {
		return errors.Errorf("negative region request %d", n)
	}
	need := len(r.buf) + n
	if need < len(r.buf) {
		return errors.Wrapf(ErrOutOfMemory, "region request of %d bytes overflows", n)
	}
	if r.limit > 0 && need > r.limit {
		return errors.Wrapf(ErrOutOfMemory, "region needs %d bytes, limit is %d", need, r.limit)
	}
	if need <= cap(r.buf) {
		return nil
	}

	newCap := cap(r.buf)
	if newCap < 1 {
		newCap = DefaultRegionCapacity
	}
	for newCap < need && newCap > 0 {
		newCap *= 2
	}
	if newCap <= 0 {
		newCap = need
	}
	if r.limit > 0 && newCap > r.limit {
		newCap = r.limit
	}

	buf := make([]byte, len(r.buf), newCap)
	copy(buf, r.buf)
	r.buf = buf
	return nil
}

// Append copies p to the end of the Region and returns the offset of its
// first byte.
func (r *Region) Append(p []byte) (int, error) {
	if err := r.ensure(len(p)); err != nil {
		return 0, err
	}
	off := len(r.buf)
	r.buf = append(r.buf, p...)
	return off, nil
}

// AppendByte appends a single byte and returns its offset.
func (r *Region) AppendByte(b byte) (int, error) {
	if err := r.ensure(1); err != nil {
		return 0, err
	}
	off := len(r.buf)
	r.buf = append(r.buf, b)
	return off, nil
}

// Reserve appends n zero bytes and returns the offset of the first one.
func (r *Region) Reserve(n int) (int, error) {
	if err := r.ensure(n); err != nil {
		return 0, err
	}
	off := len(r.buf)
	r.buf = r.buf[:off+n]
	for i := off; i < off+n; i++ {
		r.buf[i] = 0
	}
	return off, nil
}

// View returns the n bytes at off.  The slice aliases Region storage and is
// only valid until the next append.
func (r *Region) View(off, n int) []byte {
	return r.buf[off : off+n : off+n]
}

// Bytes returns everything appended so far, with the same validity as View.
func (r *Region) Bytes() []byte {
	return r.buf[:len(r.buf):len(r.buf)]
}

// PutInt32 overwrites four bytes at off with v in little-endian order.
func (r *Region) PutInt32(off int, v int32) {
	binary.LittleEndian.PutUint32(r.buf[off:off+4], uint32(v))
}

// Release drops the backing storage.  The Region may be reused afterwards
// and starts again from zero capacity.
func (r *Region) Release() {
	r.buf = nil
}

// Unchecked writers used after ensure has reserved space.

func (r *Region) put(p []byte) {
	r.buf = append(r.buf, p...)
}

func (r *Region) putString(s string) {
	r.buf = append(r.buf, s...)
}

func (r *Region) putByte(b byte) {
	r.buf = append(r.buf, b)
}

func (r *Region) putCString(s string) {
	r.buf = append(r.buf, s...)
	r.buf = append(r.buf, nullByte)
}

func (r *Region) putInt32(v int32) {
	r.buf = binary.LittleEndian.AppendUint32(r.buf, uint32(v))
}

func (r *Region) putInt64(v int64) {
	r.buf = binary.LittleEndian.AppendUint64(r.buf, uint64(v))
}
