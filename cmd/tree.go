package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carved4/go-eemem/pkg/nodes"
)

// printTree writes one line per row, indented by depth.
func printTree(w io.Writer, root nodes.Row) {
	root.Walk(func(depth int, row nodes.Row) {
		fmt.Fprintln(w, strings.Repeat("  ", depth)+formatRow(row))
	})
}

func formatRow(row nodes.Row) string {
	var sb strings.Builder

	switch {
	case row.Kind == nodes.KindClass:
		sb.WriteString("   ")
	case row.Expanded:
		sb.WriteString("[-]")
	default:
		sb.WriteString("[+]")
	}

	fmt.Fprintf(&sb, " %04X %012X %s", row.Offset, row.Address, row.Kind)
	if row.Name != "" {
		sb.WriteString(" " + row.Name)
	}
	if row.Value != "" {
		sb.WriteString(" = " + row.Value)
	}
	if row.Target != 0 {
		fmt.Fprintf(&sb, " -> 0x%X", row.Target)
	}
	if row.Changed {
		sb.WriteString(" *")
	}
	if row.State == nodes.Invalid {
		sb.WriteString(" [invalid")
		if row.Err != nil {
			sb.WriteString(": " + row.Err.Error())
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// findNode follows a dotted path of child indexes. A wrapper's index
// continues into its inner class.
func findNode(root *nodes.Class, path string) (nodes.Node, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	class := root
	var n nodes.Node
	for _, part := range strings.Split(path, ".") {
		if class == nil {
			return nil, fmt.Errorf("%s has no inner class", n.Name())
		}

		i, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad index %q", part)
		}
		children := class.Children()
		if i < 0 || i >= len(children) {
			return nil, fmt.Errorf("%s has no field %d", class.Name(), i)
		}

		n = children[i]
		class = nil
		if w, ok := n.(interface{ Inner() *nodes.Class }); ok {
			class = w.Inner()
		}
	}
	return n, nil
}
