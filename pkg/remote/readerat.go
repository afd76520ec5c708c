package remote

import (
	"fmt"
	"io"
)

// ModuleReaderAt exposes a module's mapped image as an io.ReaderAt, with
// offsets relative to the module base.
type ModuleReaderAt struct {
	proc Process
	base uint64
	size int64
}

func NewModuleReaderAt(p Process, base uint64, size int64) *ModuleReaderAt {
	return &ModuleReaderAt{proc: p, base: base, size: size}
}

// ReadAt reports io.EOF only for a request running past the image. A page
// inside the image that cannot be read is a read error.
func (r *ModuleReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset 0x%x", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	want := len(p)
	if int64(want) > r.size-off {
		want = int(r.size - off)
	}
	n = copy(p, r.proc.ReadMemory(r.base+uint64(off), want))
	switch {
	case n < want:
		return n, fmt.Errorf("read 0x%x+0x%x: got %d of %d bytes", r.base, off, n, want)
	case n < len(p):
		return n, io.EOF
	}
	return n, nil
}

func (r *ModuleReaderAt) Size() int64 {
	return r.size
}
