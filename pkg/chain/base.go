// Package chain turns guest pointer values into foreign addresses relative
// to the emulator's EE memory base.
package chain

import (
	"log"

	"github.com/carved4/go-eemem/pkg/remote"
)

// Resolver locates the base in a process. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(p remote.Process) (uint64, error)
	Purge()
}

// Base caches the resolved EE memory base for one session. Zero means
// unresolved. A Base is used from the poll goroutine only.
type Base struct {
	Logger *log.Logger

	resolver Resolver
	value    uint64
	failing  bool
	attempts int
}

func NewBase(r Resolver) *Base {
	return &Base{Logger: log.Default(), resolver: r}
}

// Address returns the cached base, or makes one resolution attempt when
// nothing is cached. Once resolved the value is kept until Reset.
func (b *Base) Address(p remote.Process) (uint64, error) {
	if b.value != 0 {
		return b.value, nil
	}

	b.attempts++
	v, err := b.resolver.Resolve(p)
	if err != nil {
		// one line per failure streak, not one per cycle
		if !b.failing {
			b.logf("chain: base unavailable: %v", err)
			b.failing = true
		}
		return 0, err
	}

	if b.failing {
		b.logf("chain: base resolved to 0x%x after %d attempts", v, b.attempts)
	} else {
		b.logf("chain: base resolved to 0x%x", v)
	}
	b.value = v
	b.failing = false
	b.attempts = 0
	return v, nil
}

// Cached returns the current value without resolving.
func (b *Base) Cached() uint64 {
	return b.value
}

// Reset forgets the base and the resolver's caches. The next Address call
// resolves again.
func (b *Base) Reset() {
	if b.value != 0 {
		b.logf("chain: base 0x%x reset", b.value)
	}
	b.value = 0
	b.failing = false
	b.attempts = 0
	if b.resolver != nil {
		b.resolver.Purge()
	}
}

func (b *Base) logf(format string, args ...interface{}) {
	if b.Logger != nil {
		b.Logger.Printf(format, args...)
	}
}
