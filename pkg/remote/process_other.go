//go:build !windows && !linux

package remote

import (
	"fmt"
	"runtime"
)

func Open(pid int) (Process, error) {
	return nil, fmt.Errorf("opening foreign processes is not supported on %s", runtime.GOOS)
}

func FindPID(name string) (int, error) {
	return 0, fmt.Errorf("process lookup is not supported on %s", runtime.GOOS)
}
