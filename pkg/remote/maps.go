package remote

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ParseMaps folds the file-backed mappings of a /proc/<pid>/maps listing into
// one Module per mapped file, spanning its lowest to highest address.
func ParseMaps(r io.Reader) ([]Module, error) {
	byPath := make(map[string]*Module)
	var order []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || !strings.HasPrefix(fields[5], "/") {
			continue
		}
		path := strings.Join(fields[5:], " ")

		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("malformed maps range %q", fields[0])
		}
		start, err := strconv.ParseUint(bounds[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed maps start %q: %w", bounds[0], err)
		}
		end, err := strconv.ParseUint(bounds[1], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed maps end %q: %w", bounds[1], err)
		}

		m, ok := byPath[path]
		if !ok {
			byPath[path] = &Module{Name: filepath.Base(path), Start: start, Size: end - start}
			order = append(order, path)
			continue
		}
		last := m.Start + m.Size
		if start < m.Start {
			m.Start = start
		}
		if end > last {
			last = end
		}
		m.Size = last - m.Start
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	modules := make([]Module, 0, len(order))
	for _, path := range order {
		modules = append(modules, *byPath[path])
	}
	sort.SliceStable(modules, func(i, j int) bool {
		return modules[i].Start < modules[j].Start
	})
	return modules, nil
}
