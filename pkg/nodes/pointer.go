package nodes

import (
	"fmt"

	"github.com/carved4/go-eemem/pkg/snapshot"
)

const (
	pointerSize      = 4
	defaultInnerSize = 64
)

// pointer is shared by the two node kinds that dereference into their own
// snapshot. A pointer's inner class is a reinterpretation of a flat address,
// so it never takes part in cycle detection.
type pointer struct {
	wrapper
	memory *snapshot.Snapshot
}

func newPointer(name string, inner *Class) pointer {
	p := pointer{
		wrapper: wrapper{base: base{name: name}, inner: inner},
		memory:  snapshot.New(0),
	}
	if inner == nil {
		p.Initialize()
	}
	return p
}

// Initialize replaces the inner class with a fresh 64-byte one.
func (p *pointer) Initialize() {
	inner := NewClass("")
	inner.AddBytes(defaultInnerSize)
	p.inner = inner
}

func (p *pointer) MemorySize() int { return pointerSize }

// Snapshot returns the node's own copy of the target region.
func (p *pointer) Snapshot() *snapshot.Snapshot { return p.memory }

// follow finishes the cycle once the target address is known: refresh the
// snapshot at addr and update the inner class over it. Any error leaves the
// snapshot untouched and the node Invalid.
func (p *pointer) follow(ctx *Context, row *Row, addr uint64, err error) {
	if err == nil && ctx.tooDeep() {
		err = ErrMaxDepth
	}
	if err != nil {
		p.invalidate(ctx, row, err)
		return
	}

	row.State = AddressComputed
	row.Target = addr

	if err := p.memory.Refresh(ctx.Process, addr, p.inner.MemorySize()); err != nil {
		p.invalidate(ctx, row, err)
		return
	}

	inner := p.inner.Update(ctx.enter(addr, p.memory))
	row.Children = inner.Children
	row.State = SnapshotFresh
	p.last = SnapshotFresh
}

// BaseRegister shows the emulator's EE memory base and expands into the
// region starting there.
type BaseRegister struct {
	pointer
}

// NewBaseRegister returns a base register node over inner, or over a
// default 64-byte class when inner is nil.
func NewBaseRegister(inner *Class) *BaseRegister {
	return &BaseRegister{pointer: newPointer("EEMem", inner)}
}

func (b *BaseRegister) Kind() Kind { return KindBaseRegister }

func (b *BaseRegister) SetInner(c *Class) error {
	return b.setInner(b, c)
}

func (b *BaseRegister) Update(ctx *Context) Row {
	row := Row{
		Kind:     KindBaseRegister,
		Name:     b.name,
		Offset:   b.offset,
		Address:  ctx.Address + uint64(b.offset),
		Expanded: b.expanded,
		State:    ResolvingBase,
	}

	addr, err := ctx.Translator.Direct(ctx.Process)
	row.Value = fmt.Sprintf("0x%X", addr)
	if !b.expanded {
		row.State = Collapsed
		row.Err = err
		return row
	}

	b.follow(ctx, &row, addr, err)
	return row
}

// GuestPointer holds a 32-bit guest address relative to the EE memory base.
type GuestPointer struct {
	pointer
}

func NewGuestPointer(name string, inner *Class) *GuestPointer {
	return &GuestPointer{pointer: newPointer(name, inner)}
}

func (g *GuestPointer) Kind() Kind { return KindGuestPointer }

func (g *GuestPointer) SetInner(c *Class) error {
	return g.setInner(g, c)
}

func (g *GuestPointer) Update(ctx *Context) Row {
	at := ctx.at(g.offset)
	row := Row{
		Kind:     KindGuestPointer,
		Name:     g.name,
		Offset:   g.offset,
		Address:  ctx.Address + uint64(g.offset),
		Expanded: g.expanded,
		Value:    "??",
		State:    Collapsed,
		Changed:  ctx.Memory.Changed(at, pointerSize),
	}
	if raw, ok := ctx.Memory.Uint32(at); ok {
		row.Value = fmt.Sprintf("0x%X", raw)
	}
	if !g.expanded {
		return row
	}

	row.State = ResolvingBase
	addr, err := ctx.Translator.FromSnapshot(ctx.Process, ctx.Memory, at)
	g.follow(ctx, &row, addr, err)
	return row
}
