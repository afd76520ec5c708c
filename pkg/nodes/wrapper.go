package nodes

import (
	"errors"
	"fmt"
)

var (
	ErrCycle    = errors.New("class instance would contain itself")
	ErrMaxDepth = errors.New("maximum expansion depth reached")
)

// wrapper is the part shared by nodes that own an inner class.
type wrapper struct {
	base
	inner    *Class
	expanded bool
	last     State
}

// Inner returns the wrapped class.
func (w *wrapper) Inner() *Class { return w.inner }

// Expanded reports the user-controlled expand state. It persists across
// cycles.
func (w *wrapper) Expanded() bool { return w.expanded }

func (w *wrapper) SetExpanded(expanded bool) { w.expanded = expanded }

// setInner replaces the inner class. Cycle detection runs only for nodes
// that opt into it.
func (w *wrapper) setInner(self Node, c *Class) error {
	if c == nil {
		return fmt.Errorf("%s %q: nil inner class", self.Kind(), w.name)
	}
	if self.SupportsCycleCheck() && w.owner != nil && reaches(c, w.owner, map[*Class]bool{}) {
		return fmt.Errorf("%s %q of %s: %w", self.Kind(), w.name, c.Name(), ErrCycle)
	}
	w.inner = c
	return nil
}

func (w *wrapper) invalidate(ctx *Context, row *Row, err error) {
	row.State = Invalid
	row.Err = err
	if w.last != Invalid {
		ctx.logf("nodes: %s %q invalid: %v", row.Kind, row.Name, err)
	}
	w.last = Invalid
}

// reaches reports whether target is from, or is embedded by value anywhere
// below from.
func reaches(from, target *Class, seen map[*Class]bool) bool {
	if from == target {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true

	for _, n := range from.children {
		ci, ok := n.(*ClassInstance)
		if ok && ci.inner != nil && reaches(ci.inner, target, seen) {
			return true
		}
	}
	return false
}

// ClassInstance embeds another class by value.
type ClassInstance struct {
	wrapper
}

func NewClassInstance(name string, inner *Class) *ClassInstance {
	return &ClassInstance{wrapper: wrapper{base: base{name: name}, inner: inner, expanded: true}}
}

func (ci *ClassInstance) Kind() Kind { return KindClassInstance }

func (ci *ClassInstance) SupportsCycleCheck() bool { return true }

func (ci *ClassInstance) SetInner(c *Class) error {
	return ci.setInner(ci, c)
}

func (ci *ClassInstance) MemorySize() int {
	if ci.inner == nil {
		return 0
	}
	return ci.inner.MemorySize()
}

func (ci *ClassInstance) Update(ctx *Context) Row {
	row := Row{
		Kind:     KindClassInstance,
		Name:     ci.name,
		Offset:   ci.offset,
		Address:  ctx.Address + uint64(ci.offset),
		Expanded: ci.expanded,
		State:    Collapsed,
	}
	if ci.inner == nil {
		ci.invalidate(ctx, &row, fmt.Errorf("no inner class"))
		return row
	}
	row.Value = ci.inner.Name()
	if !ci.expanded {
		return row
	}
	if ctx.tooDeep() {
		ci.invalidate(ctx, &row, ErrMaxDepth)
		return row
	}

	inner := ci.inner.Update(ctx.embed(ci.offset))
	row.Children = inner.Children
	row.State = inner.State
	ci.last = row.State
	return row
}
