//go:build linux

package remote

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

type linuxProcess struct {
	pid  int
	name string
}

// Open opens pid for reading. Reads go through process_vm_readv, so the
// caller needs ptrace access to the target.
func Open(pid int) (Process, error) {
	name, err := commName(pid)
	if err != nil {
		return nil, err
	}
	return &linuxProcess{pid: pid, name: name}, nil
}

func commName(pid int) (string, error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		return "", fmt.Errorf("failed to read comm of %d: %w", pid, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// FindPID returns the ID of the first process whose comm matches name.
// The kernel truncates comm to 15 bytes, so name is truncated the same way.
func FindPID(name string) (int, error) {
	if len(name) > 15 {
		name = name[:15]
	}

	dirs, err := filepath.Glob("/proc/[0-9]*")
	if err != nil {
		return 0, err
	}
	for _, dir := range dirs {
		pid, err := strconv.Atoi(filepath.Base(dir))
		if err != nil {
			continue
		}
		comm, err := commName(pid)
		if err != nil {
			continue
		}
		if strings.EqualFold(comm, name) {
			return pid, nil
		}
	}

	return 0, fmt.Errorf("process %q not found", name)
}

func (p *linuxProcess) Name() string { return p.name }

func (p *linuxProcess) PID() int { return p.pid }

func (p *linuxProcess) IsValid() bool {
	err := unix.Kill(p.pid, 0)
	return err == nil || err == unix.EPERM
}

func (p *linuxProcess) Modules() ([]Module, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", p.pid))
	if err != nil {
		return nil, fmt.Errorf("failed to open maps of %d: %w", p.pid, err)
	}
	defer f.Close()

	return ParseMaps(f)
}

func (p *linuxProcess) ReadMemory(addr uint64, size int) []byte {
	if size <= 0 {
		return nil
	}

	buf := make([]byte, size)
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(size)
	foreign := []unix.RemoteIovec{{Base: uintptr(addr), Len: size}}

	n, err := unix.ProcessVMReadv(p.pid, local, foreign, 0)
	if err != nil || n <= 0 {
		return nil
	}
	return buf[:n]
}

func (p *linuxProcess) Close() error {
	return nil
}
