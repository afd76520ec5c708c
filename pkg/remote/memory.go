package remote

import (
	"sort"
)

type region struct {
	start uint64
	data  []byte
}

func (r region) end() uint64 {
	return r.start + uint64(len(r.data))
}

// Read records one ReadMemory call made against a Memory process.
type Read struct {
	Addr uint64
	Size int
}

// Memory is a Process backed by regions in local memory. It stands in for a
// live target in tests and when replaying dumped images.
type Memory struct {
	name    string
	pid     int
	valid   bool
	regions []region
	modules []Module
	reads   []Read
}

func NewMemory(name string, pid int) *Memory {
	return &Memory{name: name, pid: pid, valid: true}
}

// Map places a copy of data at addr. Overlapping an existing region is not
// supported; later regions shadow earlier ones only where they do not overlap.
func (m *Memory) Map(addr uint64, data []byte) *Memory {
	m.regions = append(m.regions, region{start: addr, data: append([]byte(nil), data...)})
	sort.Slice(m.regions, func(i, j int) bool {
		return m.regions[i].start < m.regions[j].start
	})
	return m
}

// Write overwrites bytes inside an already mapped region. Bytes outside any
// region are dropped.
func (m *Memory) Write(addr uint64, data []byte) {
	for i, b := range data {
		a := addr + uint64(i)
		for _, r := range m.regions {
			if a >= r.start && a < r.end() {
				r.data[a-r.start] = b
				break
			}
		}
	}
}

func (m *Memory) AddModule(mod Module) *Memory {
	m.modules = append(m.modules, mod)
	return m
}

func (m *Memory) SetValid(valid bool) {
	m.valid = valid
}

// Reads returns the ReadMemory calls made so far.
func (m *Memory) Reads() []Read {
	return append([]Read(nil), m.reads...)
}

func (m *Memory) ResetReads() {
	m.reads = nil
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) PID() int { return m.pid }

func (m *Memory) IsValid() bool { return m.valid }

func (m *Memory) Modules() ([]Module, error) {
	return append([]Module(nil), m.modules...), nil
}

func (m *Memory) ReadMemory(addr uint64, size int) []byte {
	m.reads = append(m.reads, Read{Addr: addr, Size: size})
	if !m.valid || size <= 0 {
		return nil
	}

	out := make([]byte, 0, size)
	cur := addr
	for len(out) < size {
		r, ok := m.regionAt(cur)
		if !ok {
			break
		}
		n := copy(out[len(out):size], r.data[cur-r.start:])
		out = out[:len(out)+n]
		cur += uint64(n)
	}
	return out
}

func (m *Memory) regionAt(addr uint64) (region, bool) {
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].end() > addr
	})
	for ; i < len(m.regions); i++ {
		r := m.regions[i]
		if addr >= r.start && addr < r.end() {
			return r, true
		}
		if r.start > addr {
			break
		}
	}
	return region{}, false
}

func (m *Memory) Close() error {
	m.valid = false
	return nil
}
