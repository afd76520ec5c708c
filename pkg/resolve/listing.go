package resolve

import (
	"fmt"
	"sort"

	"github.com/Binject/debug/pe"

	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/remote"
)

// Export is one named or ordinal-only export of a foreign module.
type Export struct {
	Name           string
	Ordinal        uint32
	VirtualAddress uint32
	Address        uint64
}

// ListExports parses the whole export table of mod through its mapped image.
// It is a diagnostic path; the resolver does not depend on it.
func ListExports(p remote.Process, mod remote.Module) ([]Export, error) {
	const op = "list exports"

	hdr, err := ParseModuleHeader(p, mod.Start)
	if err != nil {
		return nil, err
	}
	size := int64(mod.Size)
	if size == 0 {
		size = int64(hdr.SizeOfImage)
	}

	file, err := pe.NewFileFromMemory(remote.NewModuleReaderAt(p, mod.Start, size))
	if err != nil {
		return nil, errors.Wrap(errors.NotAnExecutableImage, op, fmt.Errorf("parse %s: %w", mod.Name, err))
	}
	defer file.Close()

	// Exports picks the optional header layout from the machine type.
	switch file.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		if file.Machine != pe.IMAGE_FILE_MACHINE_AMD64 {
			return nil, errors.Newf(errors.NotAnExecutableImage, op, "%s: PE32+ header for machine 0x%x", mod.Name, file.Machine)
		}
	case *pe.OptionalHeader32:
		if file.Machine == pe.IMAGE_FILE_MACHINE_AMD64 {
			return nil, errors.Newf(errors.NotAnExecutableImage, op, "%s: PE32 header for an amd64 image", mod.Name)
		}
	default:
		return nil, errors.Newf(errors.NotAnExecutableImage, op, "%s: no optional header", mod.Name)
	}

	raw, err := file.Exports()
	if err != nil {
		return nil, fmt.Errorf("exports of %s: %w", mod.Name, err)
	}

	out := make([]Export, 0, len(raw))
	for _, e := range raw {
		out = append(out, Export{
			Name:           e.Name,
			Ordinal:        e.Ordinal,
			VirtualAddress: e.VirtualAddress,
			Address:        mod.Start + uint64(e.VirtualAddress),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Ordinal < out[j].Ordinal
	})
	return out, nil
}
