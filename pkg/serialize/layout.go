package serialize

import (
	"fmt"
	"io"

	"github.com/elliotchance/orderedmap"
	"gopkg.in/yaml.v3"

	"github.com/carved4/go-eemem/pkg/nodes"
)

// Layout is the YAML form of a whole node tree: the root class name and
// every class reachable from it.
type Layout struct {
	Root    string      `yaml:"root"`
	Classes []ClassSpec `yaml:"classes"`
}

type ClassSpec struct {
	Name   string      `yaml:"name"`
	Fields []FieldSpec `yaml:"fields"`
}

type FieldSpec struct {
	Type     string `yaml:"type"`
	Name     string `yaml:"name,omitempty"`
	Size     int    `yaml:"size,omitempty"`
	Inner    string `yaml:"inner,omitempty"`
	Expanded *bool  `yaml:"expanded,omitempty"`
}

// LoadLayout decodes a layout and builds its tree. Unknown keys are errors.
func LoadLayout(r io.Reader) (*nodes.Class, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var l Layout
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	return l.Build()
}

// SaveLayout writes the tree under root as YAML.
func SaveLayout(w io.Writer, root *nodes.Class) error {
	l, err := FromTree(root)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	return enc.Close()
}

// Build creates the classes of l and links their fields.
func (l *Layout) Build() (*nodes.Class, error) {
	classes := make(map[string]*nodes.Class, len(l.Classes))
	for _, cs := range l.Classes {
		if cs.Name == "" {
			return nil, fmt.Errorf("layout: class without a name")
		}
		if _, dup := classes[cs.Name]; dup {
			return nil, fmt.Errorf("layout: class %q defined twice", cs.Name)
		}
		classes[cs.Name] = nodes.NewClass(cs.Name)
	}

	for _, cs := range l.Classes {
		c := classes[cs.Name]
		for i, fs := range cs.Fields {
			n, err := buildField(fs, classes)
			if err != nil {
				return nil, fmt.Errorf("layout: %s field %d: %w", cs.Name, i, err)
			}
			if err := c.Add(n); err != nil {
				return nil, fmt.Errorf("layout: %s field %d: %w", cs.Name, i, err)
			}
		}
	}

	root, ok := classes[l.Root]
	if !ok {
		return nil, fmt.Errorf("layout: root class %q not defined", l.Root)
	}
	return root, nil
}

type expander interface {
	Expanded() bool
	SetExpanded(bool)
}

func buildField(fs FieldSpec, classes map[string]*nodes.Class) (nodes.Node, error) {
	var inner *nodes.Class
	if fs.Inner != "" {
		inner = classes[fs.Inner]
		if inner == nil {
			return nil, fmt.Errorf("unknown class %q", fs.Inner)
		}
	}

	var n nodes.Node
	switch fs.Type {
	case TypeHex:
		switch fs.Size {
		case 1, 2, 4, 8:
		default:
			return nil, fmt.Errorf("hex size %d is not 1, 2, 4 or 8", fs.Size)
		}
		n = nodes.NewHex(fs.Name, fs.Size)
	case TypeUInt32:
		n = nodes.NewUInt32(fs.Name)
	case TypeFloat:
		n = nodes.NewFloat(fs.Name)
	case TypeClassInstance:
		if inner == nil {
			return nil, fmt.Errorf("class instance %q needs an inner class", fs.Name)
		}
		n = nodes.NewClassInstance(fs.Name, inner)
	case TypeBaseRegister:
		n = nodes.NewBaseRegister(inner)
		if fs.Name != "" {
			n.SetName(fs.Name)
		}
	case TypeGuestPointer:
		n = nodes.NewGuestPointer(fs.Name, inner)
	default:
		return nil, fmt.Errorf("unknown node type %q", fs.Type)
	}

	if fs.Expanded != nil {
		if e, ok := n.(expander); ok {
			e.SetExpanded(*fs.Expanded)
		}
	}
	return n, nil
}

// FromTree describes root and every class it reaches, root first. Distinct
// classes sharing a name cannot be told apart and are rejected.
func FromTree(root *nodes.Class) (*Layout, error) {
	if root == nil {
		return nil, fmt.Errorf("layout: nil root")
	}

	classes := orderedmap.NewOrderedMap()
	queue := []*nodes.Class{root}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		if seen, ok := classes.Get(c.Name()); ok {
			if seen.(*nodes.Class) != c {
				return nil, fmt.Errorf("layout: two classes named %q", c.Name())
			}
			continue
		}
		classes.Set(c.Name(), c)

		for _, n := range c.Children() {
			if inner := innerOf(n); inner != nil {
				queue = append(queue, inner)
			}
		}
	}

	l := &Layout{Root: root.Name()}
	for el := classes.Front(); el != nil; el = el.Next() {
		c := el.Value.(*nodes.Class)
		cs := ClassSpec{Name: c.Name()}
		for _, n := range c.Children() {
			cs.Fields = append(cs.Fields, fieldSpec(n))
		}
		l.Classes = append(l.Classes, cs)
	}
	return l, nil
}

func fieldSpec(n nodes.Node) FieldSpec {
	fs := FieldSpec{Type: TypeID(n), Name: n.Name()}
	if _, ok := n.(*nodes.Hex); ok {
		fs.Size = n.MemorySize()
	}
	if inner := innerOf(n); inner != nil {
		fs.Inner = inner.Name()
	}
	if e, ok := n.(expander); ok {
		expanded := e.Expanded()
		fs.Expanded = &expanded
	}
	return fs
}
