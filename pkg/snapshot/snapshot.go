// Package snapshot keeps a node's last-read copy of foreign memory.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/remote"
)

// Snapshot is the byte image of one node's target region as of the last
// refresh. A failed refresh keeps the previous contents and marks the
// snapshot stale; the buffer always has the size last asked for.
type Snapshot struct {
	address    uint64
	data       []byte
	prev       []byte
	stale      bool
	generation uint64
}

func New(size int) *Snapshot {
	return &Snapshot{data: make([]byte, size), stale: true}
}

// Address is the foreign address of the last successful refresh.
func (s *Snapshot) Address() uint64 { return s.address }

// Size is the current buffer length.
func (s *Snapshot) Size() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// Stale reports whether the contents predate the last refresh attempt.
func (s *Snapshot) Stale() bool { return s.stale }

// Generation counts successful refreshes.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Bytes returns the snapshot contents. The slice is reused by Refresh.
func (s *Snapshot) Bytes() []byte { return s.data }

// Refresh resizes the buffer to size and fills it from addr.
func (s *Snapshot) Refresh(p remote.Process, addr uint64, size int) error {
	const op = "refresh snapshot"

	if size < 0 {
		size = 0
	}
	s.resize(size)

	if addr == 0 {
		s.stale = true
		return errors.Newf(errors.NullOrUnresolvedPointer, op, "null address")
	}
	if size == 0 {
		s.address = addr
		s.stale = false
		return nil
	}

	b := p.ReadMemory(addr, size)
	if len(b) < size {
		s.stale = true
		return errors.Newf(errors.ForeignReadFailed, op, "read %d of %d bytes at 0x%x", len(b), size, addr)
	}

	s.prev = append(s.prev[:0], s.data...)
	copy(s.data, b)
	s.address = addr
	s.stale = false
	s.generation++
	return nil
}

// resize keeps the overlapping prefix and zero-fills any growth.
func (s *Snapshot) resize(size int) {
	switch {
	case size == len(s.data):
	case size < len(s.data):
		s.data = s.data[:size]
	default:
		grown := make([]byte, size)
		copy(grown, s.data)
		s.data = grown
	}
}

// in is false for a nil snapshot, so accessors are safe on one.
func (s *Snapshot) in(off, n int) bool {
	return s != nil && off >= 0 && n >= 0 && off+n <= len(s.data)
}

// Slice returns n bytes at off, or nil when the range is outside the buffer.
func (s *Snapshot) Slice(off, n int) []byte {
	if !s.in(off, n) {
		return nil
	}
	return s.data[off : off+n]
}

func (s *Snapshot) Uint32(off int) (uint32, bool) {
	if !s.in(off, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(s.data[off:]), true
}

func (s *Snapshot) Uint64(off int) (uint64, bool) {
	if !s.in(off, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(s.data[off:]), true
}

func (s *Snapshot) Float32(off int) (float32, bool) {
	v, ok := s.Uint32(off)
	return math.Float32frombits(v), ok
}

// Changed reports whether n bytes at off differ from the generation before
// the last successful refresh. The first generation counts as unchanged.
func (s *Snapshot) Changed(off, n int) bool {
	if !s.in(off, n) || s.generation < 2 || off+n > len(s.prev) {
		return false
	}
	return !bytes.Equal(s.data[off:off+n], s.prev[off:off+n])
}
