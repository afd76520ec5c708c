// Package nodes models the structural tree an operator lays over foreign
// memory. Each poll cycle walks the tree once and produces Rows.
package nodes

import (
	"log"

	"github.com/carved4/go-eemem/pkg/chain"
	"github.com/carved4/go-eemem/pkg/remote"
	"github.com/carved4/go-eemem/pkg/snapshot"
)

// Kind enumerates the node variants. The set is closed.
type Kind int

const (
	KindClass Kind = iota + 1
	KindHex
	KindUInt32
	KindFloat
	KindClassInstance
	KindBaseRegister
	KindGuestPointer
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "Class"
	case KindHex:
		return "Hex"
	case KindUInt32:
		return "UInt32"
	case KindFloat:
		return "Float"
	case KindClassInstance:
		return "ClassInstance"
	case KindBaseRegister:
		return "EEMem"
	case KindGuestPointer:
		return "PS2Ptr"
	}
	return "Unknown"
}

// State is where a node ended up in the current cycle.
type State int

const (
	Collapsed State = iota
	ResolvingBase
	AddressComputed
	SnapshotFresh
	Invalid
)

func (s State) String() string {
	switch s {
	case Collapsed:
		return "collapsed"
	case ResolvingBase:
		return "resolving-base"
	case AddressComputed:
		return "address-computed"
	case SnapshotFresh:
		return "fresh"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Node is implemented only by the types in this package.
type Node interface {
	Kind() Kind
	Name() string
	SetName(name string)
	// Offset is the byte offset inside the enclosing class.
	Offset() int
	// MemorySize is the number of bytes the node occupies in its parent.
	MemorySize() int
	SupportsCycleCheck() bool
	Initialize()
	Update(ctx *Context) Row

	parent() *Class
	place(parent *Class, offset int)
}

type base struct {
	name   string
	offset int
	owner  *Class
}

func (b *base) Name() string             { return b.name }
func (b *base) SetName(name string)      { b.name = name }
func (b *base) Offset() int              { return b.offset }
func (b *base) SupportsCycleCheck() bool { return false }
func (b *base) Initialize()              {}
func (b *base) parent() *Class           { return b.owner }

func (b *base) place(parent *Class, offset int) {
	b.owner = parent
	b.offset = offset
}

// Context is what a node sees while it is updated: the foreign process, the
// enclosing region's address and snapshot, and the tree depth.
type Context struct {
	Process    remote.Process
	Translator *chain.Translator
	Logger     *log.Logger

	// Address is the foreign address of the enclosing class.
	Address uint64
	// Memory holds the enclosing class's bytes starting at MemoryOffset.
	Memory       *snapshot.Snapshot
	MemoryOffset int

	Depth    int
	MaxDepth int
}

// at maps a node offset to a position in ctx.Memory.
func (ctx *Context) at(offset int) int {
	return ctx.MemoryOffset + offset
}

// enter returns the context for a region that lives in its own snapshot.
func (ctx *Context) enter(addr uint64, mem *snapshot.Snapshot) *Context {
	next := *ctx
	next.Address = addr
	next.Memory = mem
	next.MemoryOffset = 0
	next.Depth++
	return &next
}

// embed returns the context for a region stored inline at offset.
func (ctx *Context) embed(offset int) *Context {
	next := *ctx
	next.Address = ctx.Address + uint64(offset)
	next.MemoryOffset = ctx.at(offset)
	next.Depth++
	return &next
}

func (ctx *Context) tooDeep() bool {
	return ctx.MaxDepth > 0 && ctx.Depth >= ctx.MaxDepth
}

func (ctx *Context) stale() bool {
	return ctx.Memory == nil || ctx.Memory.Stale()
}

func (ctx *Context) logf(format string, args ...interface{}) {
	if ctx.Logger != nil {
		ctx.Logger.Printf(format, args...)
	}
}

// Row is one node's outcome for a cycle, in the shape a renderer consumes.
type Row struct {
	Kind    Kind
	Name    string
	Offset  int
	Address uint64
	// Target is the address a pointer node dereferenced, 0 otherwise.
	Target   uint64
	Value    string
	State    State
	Err      error
	Changed  bool
	Expanded bool
	Children []Row
}

// Walk visits r and its descendants depth first.
func (r Row) Walk(fn func(depth int, row Row)) {
	r.walk(0, fn)
}

func (r Row) walk(depth int, fn func(int, Row)) {
	fn(depth, r)
	for _, c := range r.Children {
		c.walk(depth+1, fn)
	}
}
