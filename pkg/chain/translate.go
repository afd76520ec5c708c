package chain

import (
	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/remote"
	"github.com/carved4/go-eemem/pkg/snapshot"
)

// Translator maps guest values to foreign addresses.
type Translator struct {
	Base *Base
}

func NewTranslator(base *Base) *Translator {
	return &Translator{Base: base}
}

// Direct returns the base itself; the node's region starts there.
func (t *Translator) Direct(p remote.Process) (uint64, error) {
	base, err := t.Base.Address(p)
	if err != nil {
		return 0, errors.Wrap(errors.NullOrUnresolvedPointer, "direct", err)
	}
	return base, nil
}

// Offset returns base + raw. A zero raw value is null and is rejected
// before the base is consulted.
func (t *Translator) Offset(p remote.Process, raw uint32) (uint64, error) {
	const op = "offset"

	if raw == 0 {
		return 0, errors.Newf(errors.NullOrUnresolvedPointer, op, "null guest pointer")
	}

	base, err := t.Base.Address(p)
	if err != nil {
		return 0, errors.Wrap(errors.NullOrUnresolvedPointer, op, err)
	}

	// raw is unsigned; it is never sign-extended
	return base + uint64(raw), nil
}

// FromSnapshot reads the guest pointer stored at offset in snap and
// translates it.
func (t *Translator) FromSnapshot(p remote.Process, snap *snapshot.Snapshot, offset int) (uint64, error) {
	raw, ok := snap.Uint32(offset)
	if !ok {
		return 0, errors.Newf(errors.ForeignReadFailed, "offset", "offset %d outside %d-byte snapshot", offset, snap.Size())
	}
	return t.Offset(p, raw)
}
