// Package codegen renders a node tree as C++ class definitions for use in
// external tooling.
package codegen

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap"

	"github.com/carved4/go-eemem/pkg/nodes"
)

// TypeDefinition returns the C++ type a node is declared with.
func TypeDefinition(n nodes.Node) string {
	switch n := n.(type) {
	case *nodes.Class:
		return "class " + n.Name()
	case *nodes.Hex:
		return "char"
	case *nodes.UInt32:
		return "uint32_t"
	case *nodes.Float:
		return "float"
	case *nodes.ClassInstance:
		return "class " + innerName(n.Inner())
	case *nodes.BaseRegister:
		return "int32_t"
	case *nodes.GuestPointer:
		return fmt.Sprintf("class %s *", innerName(n.Inner()))
	}
	panic(fmt.Sprintf("codegen: unhandled node kind %s", n.Kind()))
}

func innerName(c *nodes.Class) string {
	if c == nil {
		return "void"
	}
	return c.Name()
}

// Generate returns definitions for root and every class reachable from it,
// inner classes first. Classes are emitted once each, in first-seen order.
// Two distinct classes sharing a name would produce conflicting C++ and are
// rejected.
func Generate(root *nodes.Class) (string, error) {
	g := &generator{
		classes: orderedmap.NewOrderedMap(),
		names:   make(map[string]*nodes.Class),
		path:    make(map[*nodes.Class]bool),
	}
	if err := g.collect(root); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("// Generated by go-eemem\n\n")
	for el := g.classes.Front(); el != nil; el = el.Next() {
		fmt.Fprintf(&sb, "class %s;\n", el.Value.(*nodes.Class).Name())
	}
	for el := g.classes.Front(); el != nil; el = el.Next() {
		sb.WriteString("\n")
		writeClass(&sb, el.Value.(*nodes.Class))
	}
	return sb.String(), nil
}

type generator struct {
	classes *orderedmap.OrderedMap
	names   map[string]*nodes.Class
	path    map[*nodes.Class]bool
}

// collect walks classes depth first and records each after its inner
// classes. Classes on the current path are skipped, which breaks pointer
// cycles.
func (g *generator) collect(c *nodes.Class) error {
	if c == nil || g.path[c] {
		return nil
	}
	if _, ok := g.classes.Get(c); ok {
		return nil
	}
	if other, ok := g.names[c.Name()]; ok && other != c {
		return fmt.Errorf("codegen: two classes named %q", c.Name())
	}
	g.names[c.Name()] = c

	g.path[c] = true
	for _, n := range c.Children() {
		var inner *nodes.Class
		switch n := n.(type) {
		case *nodes.ClassInstance:
			inner = n.Inner()
		case *nodes.BaseRegister:
			inner = n.Inner()
		case *nodes.GuestPointer:
			inner = n.Inner()
		}
		if err := g.collect(inner); err != nil {
			return err
		}
	}
	delete(g.path, c)

	g.classes.Set(c, c)
	return nil
}

func writeClass(sb *strings.Builder, c *nodes.Class) {
	fmt.Fprintf(sb, "class %s\n{\npublic:\n", c.Name())

	children := c.Children()
	for i := 0; i < len(children); i++ {
		n := children[i]

		// consecutive hex fields collapse into one padding array
		if _, ok := n.(*nodes.Hex); ok {
			size := 0
			j := i
			for ; j < len(children); j++ {
				h, ok := children[j].(*nodes.Hex)
				if !ok {
					break
				}
				size += h.MemorySize()
			}
			fmt.Fprintf(sb, "\tchar pad_%04X[%d]; //0x%04X\n", n.Offset(), size, n.Offset())
			i = j - 1
			continue
		}

		fmt.Fprintf(sb, "\t%s %s; //0x%04X\n", declType(n), fieldName(n), n.Offset())
	}

	fmt.Fprintf(sb, "}; //Size: 0x%04X\n", c.MemorySize())
}

// declType joins pointer types to the name the C++ way.
func declType(n nodes.Node) string {
	return strings.TrimSuffix(TypeDefinition(n), " *") + pointerSuffix(n)
}

func pointerSuffix(n nodes.Node) string {
	if _, ok := n.(*nodes.GuestPointer); ok {
		return "*"
	}
	return ""
}

func fieldName(n nodes.Node) string {
	if n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("field_%04X", n.Offset())
}
