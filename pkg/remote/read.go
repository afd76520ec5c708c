package remote

import (
	"encoding/binary"
	"math"

	"github.com/carved4/go-eemem/pkg/errors"
)

func readExact(p Process, addr uint64, size int) ([]byte, error) {
	b := p.ReadMemory(addr, size)
	if len(b) < size {
		return nil, errors.Newf(errors.ForeignReadFailed, "read",
			"got %d of %d bytes at 0x%x", len(b), size, addr)
	}
	return b[:size], nil
}

// ReadBytes reads exactly size bytes.
func ReadBytes(p Process, addr uint64, size int) ([]byte, error) {
	return readExact(p, addr, size)
}

func ReadUint16(p Process, addr uint64) (uint16, error) {
	b, err := readExact(p, addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func ReadUint32(p Process, addr uint64) (uint32, error) {
	b, err := readExact(p, addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func ReadUint64(p Process, addr uint64) (uint64, error) {
	b, err := readExact(p, addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func ReadInt32(p Process, addr uint64) (int32, error) {
	v, err := ReadUint32(p, addr)
	return int32(v), err
}

func ReadInt64(p Process, addr uint64) (int64, error) {
	v, err := ReadUint64(p, addr)
	return int64(v), err
}

func ReadFloat32(p Process, addr uint64) (float32, error) {
	v, err := ReadUint32(p, addr)
	return math.Float32frombits(v), err
}

// ReadCString reads an ASCII string terminated by NUL or by max bytes,
// whichever comes first. A string cut by an unreadable page is returned as
// far as it could be read.
func ReadCString(p Process, addr uint64, max int) (string, error) {
	b := p.ReadMemory(addr, max)
	if len(b) == 0 {
		return "", errors.Newf(errors.ForeignReadFailed, "read string", "nothing readable at 0x%x", addr)
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}

// ReadUint32s reads count little-endian uint32 values.
func ReadUint32s(p Process, addr uint64, count int) ([]uint32, error) {
	b, err := readExact(p, addr, count*4)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out, nil
}

// ReadUint16s reads count little-endian uint16 values.
func ReadUint16s(p Process, addr uint64, count int) ([]uint16, error) {
	b, err := readExact(p, addr, count*2)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return out, nil
}
