// Package resolve locates a named export in the main module of a foreign
// process by walking its PE headers through remote reads.
package resolve

import (
	"log"

	"github.com/elastic/go-freelru"

	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/names"
	"github.com/carved4/go-eemem/pkg/remote"
)

// DefaultSymbol is the export PCSX2 publishes for its emulated EE memory.
const DefaultSymbol = "EEmem"

const defaultNameCacheSize = 4096

type nameKey struct {
	base uint64
	rva  uint32
}

func hashNameKey(k nameKey) uint32 {
	return names.Uint64(k.base ^ uint64(k.rva)<<3)
}

// Resolver finds Symbol in a process's main module and dereferences it.
// It is not safe for concurrent use.
type Resolver struct {
	Symbol string
	Logger *log.Logger

	names *freelru.LRU[nameKey, names.Name]
}

// NewResolver returns a Resolver for symbol. cacheSize bounds the number of
// export names remembered between attempts; 0 picks a default.
func NewResolver(symbol string, cacheSize uint32) (*Resolver, error) {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	if cacheSize == 0 {
		cacheSize = defaultNameCacheSize
	}

	cache, err := freelru.New[nameKey, names.Name](cacheSize, hashNameKey)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		Symbol: symbol,
		Logger: log.Default(),
		names:  cache,
	}, nil
}

// Resolve returns the 64-bit value stored at Symbol in p's main module.
// A zero value is reported as SymbolNotFound.
func (r *Resolver) Resolve(p remote.Process) (uint64, error) {
	const op = "resolve"

	if p == nil || !p.IsValid() {
		return 0, errors.Newf(errors.ForeignReadFailed, op, "process handle is not valid")
	}

	mod, err := remote.MainModule(p)
	if err != nil {
		return 0, errors.Wrap(errors.SymbolNotFound, op, err)
	}

	hdr, err := ParseModuleHeader(p, mod.Start)
	if err != nil {
		return 0, err
	}

	candidate, err := r.FindExport(p, mod.Start, hdr, r.Symbol)
	if err != nil {
		return 0, err
	}

	value, err := remote.ReadInt64(p, candidate)
	if err != nil {
		return 0, errors.Wrap(errors.ForeignReadFailed, op, err)
	}
	if value <= 0 {
		return 0, errors.Newf(errors.SymbolNotFound, op, "%s at 0x%x holds %d", r.Symbol, candidate, value)
	}

	return uint64(value), nil
}

// Purge forgets cached export names. Call it when the target may have
// restarted and module bases may have been reused.
func (r *Resolver) Purge() {
	if r.names != nil {
		r.names.Purge()
	}
}

func (r *Resolver) logf(format string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
