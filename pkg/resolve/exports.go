package resolve

import (
	"encoding/binary"
	"fmt"

	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/names"
	"github.com/carved4/go-eemem/pkg/remote"
)

const (
	exportDirectorySize = 40

	// Export names longer than this are compared truncated.
	maxNameLength = 64

	// Name ordinals are 16-bit, so a real table never has more entries.
	maxExports = 1 << 16
)

// ExportDirectory is the part of IMAGE_EXPORT_DIRECTORY used to look up
// names. Offsets within the 40-byte record:
//
//	20: NumberOfFunctions
//	24: NumberOfNames
//	28: AddressOfFunctions
//	32: AddressOfNames
//	36: AddressOfNameOrdinals
type ExportDirectory struct {
	NumberOfFunctions uint32
	NumberOfNames     uint32
	NamesRVA          uint32
	FunctionsRVA      uint32
	NameOrdinalsRVA   uint32
}

// DecodeExportDirectory decodes a little-endian IMAGE_EXPORT_DIRECTORY.
func DecodeExportDirectory(b []byte) (ExportDirectory, error) {
	if len(b) < exportDirectorySize {
		return ExportDirectory{}, fmt.Errorf("export directory needs %d bytes, got %d", exportDirectorySize, len(b))
	}
	return ExportDirectory{
		NumberOfFunctions: binary.LittleEndian.Uint32(b[20:]),
		NumberOfNames:     binary.LittleEndian.Uint32(b[24:]),
		FunctionsRVA:      binary.LittleEndian.Uint32(b[28:]),
		NamesRVA:          binary.LittleEndian.Uint32(b[32:]),
		NameOrdinalsRVA:   binary.LittleEndian.Uint32(b[36:]),
	}, nil
}

// Usable reports whether d looks like a name-complete export table.
func (d ExportDirectory) Usable() bool {
	return d.NumberOfNames == d.NumberOfFunctions &&
		d.NamesRVA != 0 && d.FunctionsRVA != 0 && d.NameOrdinalsRVA != 0
}

// ReadExportDirectory reads and decodes the export directory at addr.
func ReadExportDirectory(p remote.Process, addr uint64) (ExportDirectory, error) {
	b, err := remote.ReadBytes(p, addr, exportDirectorySize)
	if err != nil {
		return ExportDirectory{}, err
	}
	return DecodeExportDirectory(b)
}

// FindExport returns the absolute address bound to symbol in the module at
// base. Every data directory is tried as an export table; when more than one
// yields a match the last one wins.
func (r *Resolver) FindExport(p remote.Process, base uint64, hdr *ModuleHeader, symbol string) (uint64, error) {
	var candidate uint64
	var worst error

	for i, dir := range hdr.DataDirectories {
		if dir.VirtualAddress == 0 {
			continue
		}

		addr, err := r.findInDirectory(p, base, base+uint64(dir.VirtualAddress), symbol)
		if err != nil {
			worst = moreSpecific(worst, err)
			continue
		}

		r.logf("resolve: %s found via data directory %d at 0x%x", symbol, i, addr)
		candidate = addr
	}

	if candidate == 0 {
		if worst == nil {
			worst = errors.Newf(errors.ExportTableUnusable, "find export", "module at 0x%x has no data directories", base)
		}
		return 0, worst
	}

	return candidate, nil
}

func (r *Resolver) findInDirectory(p remote.Process, base uint64, dirAddr uint64, symbol string) (uint64, error) {
	const op = "find export"

	dir, err := ReadExportDirectory(p, dirAddr)
	if err != nil {
		return 0, errors.Wrap(errors.ForeignReadFailed, op, err)
	}
	if !dir.Usable() {
		return 0, errors.Newf(errors.ExportTableUnusable, op,
			"directory at 0x%x: %d names, %d functions", dirAddr, dir.NumberOfNames, dir.NumberOfFunctions)
	}
	if dir.NumberOfNames > maxExports {
		return 0, errors.Newf(errors.ExportTableUnusable, op, "directory at 0x%x claims %d names", dirAddr, dir.NumberOfNames)
	}

	count := int(dir.NumberOfNames)
	nameRVAs, err := remote.ReadUint32s(p, base+uint64(dir.NamesRVA), count)
	if err != nil {
		return 0, errors.Wrap(errors.ForeignReadFailed, op, err)
	}
	functionRVAs, err := remote.ReadUint32s(p, base+uint64(dir.FunctionsRVA), int(dir.NumberOfFunctions))
	if err != nil {
		return 0, errors.Wrap(errors.ForeignReadFailed, op, err)
	}
	ordinals, err := remote.ReadUint16s(p, base+uint64(dir.NameOrdinalsRVA), count)
	if err != nil {
		return 0, errors.Wrap(errors.ForeignReadFailed, op, err)
	}

	symbolHash := names.Fold([]byte(symbol))
	index := -1
	for i, nameRVA := range nameRVAs {
		name, err := r.exportName(p, base, nameRVA)
		if err != nil {
			continue
		}
		if name.Matches(symbol, symbolHash) {
			index = i
			break
		}
	}
	if index < 0 {
		return 0, errors.Newf(errors.SymbolNotFound, op, "%q not among %d names at 0x%x", symbol, count, dirAddr)
	}

	// The ordinal indexes AddressOfFunctions; it is not an offset.
	ordinal := int(ordinals[index])
	if ordinal >= len(functionRVAs) {
		return 0, errors.Newf(errors.ExportTableUnusable, op, "ordinal %d out of %d functions", ordinal, len(functionRVAs))
	}

	functionRVA := functionRVAs[ordinal]
	if functionRVA == 0 {
		return 0, errors.Newf(errors.SymbolNotFound, op, "%q has a zero function RVA", symbol)
	}

	return base + uint64(functionRVA), nil
}

func (r *Resolver) exportName(p remote.Process, base uint64, nameRVA uint32) (names.Name, error) {
	key := nameKey{base: base, rva: nameRVA}
	if r.names != nil {
		if name, ok := r.names.Get(key); ok {
			return name, nil
		}
	}

	text, err := remote.ReadCString(p, base+uint64(nameRVA), maxNameLength)
	if err != nil {
		return names.Name{}, err
	}

	name := names.NewName(text)
	if r.names != nil {
		r.names.Add(key, name)
	}
	return name, nil
}

// moreSpecific keeps whichever error says the most about why a lookup
// failed: a table without the name beats a failed read, which beats a
// directory that was never an export table.
func moreSpecific(current, next error) error {
	rank := func(err error) int {
		switch errors.Code(err) {
		case errors.SymbolNotFound:
			return 3
		case errors.ForeignReadFailed:
			return 2
		case errors.ExportTableUnusable:
			return 1
		}
		return 0
	}
	if current == nil || rank(next) >= rank(current) {
		return next
	}
	return current
}
