// Package remote reads the address space of a foreign process.
//
// Reads never fail loudly: ReadMemory returns whatever prefix of the range
// could be copied, possibly nothing. The typed helpers turn a short read into
// a ForeignReadFailed error so callers can degrade instead of aborting.
package remote

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Module is one executable image mapped into a foreign process.
type Module struct {
	Name  string
	Start uint64
	Size  uint64
}

func (m Module) String() string {
	return fmt.Sprintf("%s@0x%x", m.Name, m.Start)
}

// Process is a handle on a foreign process.
type Process interface {
	// Name returns the image name of the process, e.g. "pcsx2-qtx64.exe".
	Name() string

	// PID returns the process ID.
	PID() int

	// IsValid reports whether the handle still refers to a running process.
	IsValid() bool

	// Modules lists the loaded modules.
	Modules() ([]Module, error)

	// ReadMemory copies up to size bytes starting at addr. The result is
	// shorter than size, possibly empty, when part of the range is unreadable.
	ReadMemory(addr uint64, size int) []byte

	// Close releases the handle.
	Close() error
}

// MainModule returns the module whose name matches the process image name.
func MainModule(p Process) (Module, error) {
	name := p.Name()
	if name == "" {
		return Module{}, fmt.Errorf("process %d has no image name", p.PID())
	}

	modules, err := p.Modules()
	if err != nil {
		return Module{}, fmt.Errorf("failed to list modules of %s: %w", name, err)
	}

	for _, m := range modules {
		if strings.EqualFold(filepath.Base(m.Name), name) && m.Start != 0 {
			return m, nil
		}
	}

	return Module{}, fmt.Errorf("main module %q not found among %d modules", name, len(modules))
}

// OpenByName opens the first process whose image name matches name.
func OpenByName(name string) (Process, error) {
	pid, err := FindPID(name)
	if err != nil {
		return nil, err
	}
	return Open(pid)
}
