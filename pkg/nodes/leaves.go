package nodes

import (
	"fmt"
	"strconv"
	"strings"
)

// Hex shows 1, 2, 4 or 8 raw bytes.
type Hex struct {
	base
	size int
}

func NewHex(name string, size int) *Hex {
	switch size {
	case 1, 2, 4, 8:
	default:
		size = 8
	}
	return &Hex{base: base{name: name}, size: size}
}

func (h *Hex) Kind() Kind      { return KindHex }
func (h *Hex) MemorySize() int { return h.size }

func (h *Hex) Update(ctx *Context) Row {
	row := leafRow(h, ctx)
	b := ctx.Memory.Slice(ctx.at(h.offset), h.size)
	if b == nil {
		row.State = Invalid
		return row
	}

	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	row.Value = strings.Join(parts, " ")
	return row
}

type UInt32 struct {
	base
}

func NewUInt32(name string) *UInt32 {
	return &UInt32{base: base{name: name}}
}

func (u *UInt32) Kind() Kind      { return KindUInt32 }
func (u *UInt32) MemorySize() int { return 4 }

func (u *UInt32) Update(ctx *Context) Row {
	row := leafRow(u, ctx)
	v, ok := ctx.Memory.Uint32(ctx.at(u.offset))
	if !ok {
		row.State = Invalid
		return row
	}
	row.Value = strconv.FormatUint(uint64(v), 10)
	return row
}

type Float struct {
	base
}

func NewFloat(name string) *Float {
	return &Float{base: base{name: name}}
}

func (f *Float) Kind() Kind      { return KindFloat }
func (f *Float) MemorySize() int { return 4 }

func (f *Float) Update(ctx *Context) Row {
	row := leafRow(f, ctx)
	v, ok := ctx.Memory.Float32(ctx.at(f.offset))
	if !ok {
		row.State = Invalid
		return row
	}
	row.Value = strconv.FormatFloat(float64(v), 'g', -1, 32)
	return row
}

func leafRow(n Node, ctx *Context) Row {
	row := Row{
		Kind:    n.Kind(),
		Name:    n.Name(),
		Offset:  n.Offset(),
		Address: ctx.Address + uint64(n.Offset()),
		State:   SnapshotFresh,
		Value:   "??",
	}
	if ctx.stale() {
		row.State = Invalid
	}
	row.Changed = ctx.Memory.Changed(ctx.at(n.Offset()), n.MemorySize())
	return row
}
