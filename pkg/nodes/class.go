package nodes

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

var classCounter atomic.Uint32

// Class is a named sequence of fields laid out back to back.
type Class struct {
	base
	children []Node
}

// NewClass returns an empty class. An empty name gets a generated one,
// never one already given to an earlier class.
func NewClass(name string) *Class {
	if name == "" {
		name = fmt.Sprintf("N%08X", classCounter.Add(1))
	} else {
		reserve(name)
	}
	return &Class{base: base{name: name}}
}

// SetName renames the class.
func (c *Class) SetName(name string) {
	reserve(name)
	c.name = name
}

// reserve moves the counter past a name of the generated form, so names
// loaded from a saved layout are not handed out again.
func reserve(name string) {
	if len(name) != 9 || name[0] != 'N' {
		return
	}
	v, err := strconv.ParseUint(name[1:], 16, 32)
	if err != nil {
		return
	}
	for {
		cur := classCounter.Load()
		if cur >= uint32(v) || classCounter.CompareAndSwap(cur, uint32(v)) {
			return
		}
	}
}

func (c *Class) Kind() Kind { return KindClass }

func (c *Class) MemorySize() int {
	size := 0
	for _, n := range c.children {
		size += n.MemorySize()
	}
	return size
}

// Children returns the fields in offset order, with offsets brought up to
// date.
func (c *Class) Children() []Node {
	c.relayout()
	return c.children
}

// Add appends n after the last field. Embedding a class that already
// embeds c is rejected with ErrCycle.
func (c *Class) Add(n Node) error {
	if err := c.accepts(n); err != nil {
		return err
	}
	n.place(c, c.MemorySize())
	c.children = append(c.children, n)
	return nil
}

func (c *Class) accepts(n Node) error {
	if !n.SupportsCycleCheck() {
		return nil
	}
	ci, ok := n.(*ClassInstance)
	if ok && ci.inner != nil && reaches(ci.inner, c, map[*Class]bool{}) {
		return fmt.Errorf("%s %q of %s in %s: %w", n.Kind(), n.Name(), ci.inner.Name(), c.name, ErrCycle)
	}
	return nil
}

// AddBytes appends hex fields covering size bytes, eight at a time.
func (c *Class) AddBytes(size int) {
	for size > 0 {
		width := 8
		for width > size {
			width /= 2
		}
		_ = c.Add(NewHex("", width))
		size -= width
	}
}

// Replace swaps old for n at the same position and lays out the fields
// that follow it again.
func (c *Class) Replace(old, n Node) error {
	for i, child := range c.children {
		if child != old {
			continue
		}
		if err := c.accepts(n); err != nil {
			return err
		}
		c.children[i] = n
		c.relayout()
		return nil
	}
	return fmt.Errorf("%s has no field %q", c.name, old.Name())
}

// Remove drops n and closes the gap.
func (c *Class) Remove(n Node) error {
	for i, child := range c.children {
		if child != n {
			continue
		}
		c.children = append(c.children[:i], c.children[i+1:]...)
		c.relayout()
		return nil
	}
	return fmt.Errorf("%s has no field %q", c.name, n.Name())
}

// relayout recomputes offsets. Embedded instances can change size at
// runtime, so it also runs on every update.
func (c *Class) relayout() {
	offset := 0
	for _, n := range c.children {
		n.place(c, offset)
		offset += n.MemorySize()
	}
}

// Update interprets ctx.Memory as this class and updates every field.
// A field failing never stops its siblings.
func (c *Class) Update(ctx *Context) Row {
	c.relayout()

	row := Row{
		Kind:     KindClass,
		Name:     c.name,
		Offset:   c.offset,
		Address:  ctx.Address,
		Value:    fmt.Sprintf("[%d]", c.MemorySize()),
		State:    SnapshotFresh,
		Expanded: true,
		Children: make([]Row, 0, len(c.children)),
	}
	if ctx.stale() {
		row.State = Invalid
	}

	for _, n := range c.children {
		row.Children = append(row.Children, n.Update(ctx))
	}
	return row
}
