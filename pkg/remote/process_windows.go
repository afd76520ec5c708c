//go:build windows

package remote

import (
	"fmt"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

const stillActive = 259

type windowsProcess struct {
	handle windows.Handle
	pid    int
	name   string
}

// Open opens pid for reading.
func Open(pid int) (Process, error) {
	h, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("OpenProcess(%d): %w", pid, err)
	}

	name, err := imageName(h)
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}

	return &windowsProcess{handle: h, pid: pid, name: name}, nil
}

func imageName(h windows.Handle) (string, error) {
	buf := make([]uint16, 1024)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("QueryFullProcessImageName: %w", err)
	}
	return filepath.Base(windows.UTF16ToString(buf[:size])), nil
}

// FindPID returns the ID of the first process whose executable matches name.
func FindPID(name string) (int, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err = windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		if strings.EqualFold(windows.UTF16ToString(entry.ExeFile[:]), name) {
			return int(entry.ProcessID), nil
		}
	}

	return 0, fmt.Errorf("process %q not found", name)
}

func (p *windowsProcess) Name() string { return p.name }

func (p *windowsProcess) PID() int { return p.pid }

func (p *windowsProcess) IsValid() bool {
	if p.handle == 0 {
		return false
	}
	var code uint32
	if err := windows.GetExitCodeProcess(p.handle, &code); err != nil {
		return false
	}
	return code == stillActive
}

func (p *windowsProcess) Modules() ([]Module, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(p.pid))
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var modules []Module
	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err = windows.Module32First(snapshot, &entry); err == nil; err = windows.Module32Next(snapshot, &entry) {
		modules = append(modules, Module{
			Name:  windows.UTF16ToString(entry.Module[:]),
			Start: uint64(entry.ModBaseAddr),
			Size:  uint64(entry.ModBaseSize),
		})
	}

	return modules, nil
}

func (p *windowsProcess) ReadMemory(addr uint64, size int) []byte {
	if size <= 0 || p.handle == 0 {
		return nil
	}

	buf := make([]byte, size)
	var read uintptr
	// ERROR_PARTIAL_COPY still reports how much was copied.
	_ = windows.ReadProcessMemory(p.handle, uintptr(addr), &buf[0], uintptr(size), &read)
	return buf[:read]
}

func (p *windowsProcess) Close() error {
	if p.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(p.handle)
	p.handle = 0
	return err
}
