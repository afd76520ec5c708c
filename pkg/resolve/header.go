package resolve

import (
	"encoding/binary"

	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/remote"
)

const (
	dosSignature = 0x5A4D     // MZ
	ntSignature  = 0x00004550 // PE\0\0

	lfanewOffset   = 0x3C
	fileHeaderSize = 20

	optionalMagicPE32     = 0x10b
	optionalMagicPE32Plus = 0x20b

	// SizeOfImage sits at the same optional header offset in PE32 and PE32+.
	sizeOfImageOffset = 56

	// DataDirectory starts at offset 96 for PE32, 112 for PE32+
	dataDirectoryOffsetPE32     = 96
	dataDirectoryOffsetPE32Plus = 112

	NumDataDirectories = 16
	dataDirectorySize  = 8
)

// DataDirectory is one (RVA, Size) entry of the optional header.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// ModuleHeader holds the few PE header fields needed to reach the data
// directories of a mapped image. It is rebuilt on every resolution attempt.
type ModuleHeader struct {
	SignatureOK     bool
	PEHeaderOffset  int32
	Magic           uint16
	SizeOfImage     uint32
	DataDirectories [NumDataDirectories]DataDirectory
}

// Is64 reports whether the optional header is PE32+.
func (h *ModuleHeader) Is64() bool {
	return h.Magic == optionalMagicPE32Plus
}

// ParseModuleHeader reads the DOS and NT headers of the image mapped at base.
// The DOS magic is checked before anything else is read.
func ParseModuleHeader(p remote.Process, base uint64) (*ModuleHeader, error) {
	const op = "parse module header"

	magic, err := remote.ReadUint16(p, base)
	if err != nil {
		return nil, errors.Wrap(errors.ForeignReadFailed, op, err)
	}
	if magic != dosSignature {
		return nil, errors.Newf(errors.NotAnExecutableImage, op, "bad DOS magic 0x%04x at 0x%x", magic, base)
	}

	lfanew, err := remote.ReadInt32(p, base+lfanewOffset)
	if err != nil {
		return nil, errors.Wrap(errors.ForeignReadFailed, op, err)
	}
	if lfanew < 0 {
		return nil, errors.Newf(errors.NotAnExecutableImage, op, "negative e_lfanew %d", lfanew)
	}

	nt := base + uint64(lfanew)
	signature, err := remote.ReadUint32(p, nt)
	if err != nil {
		return nil, errors.Wrap(errors.ForeignReadFailed, op, err)
	}
	if signature != ntSignature {
		return nil, errors.Newf(errors.NotAnExecutableImage, op, "bad NT signature 0x%08x at 0x%x", signature, nt)
	}

	// Optional header starts after 4-byte Signature and 20-byte COFF header
	optional := nt + 4 + fileHeaderSize
	optMagic, err := remote.ReadUint16(p, optional)
	if err != nil {
		return nil, errors.Wrap(errors.ForeignReadFailed, op, err)
	}

	var ddOff uint64
	switch optMagic {
	case optionalMagicPE32:
		ddOff = dataDirectoryOffsetPE32
	case optionalMagicPE32Plus:
		ddOff = dataDirectoryOffsetPE32Plus
	default:
		return nil, errors.Newf(errors.NotAnExecutableImage, op, "unknown optional header magic 0x%04x", optMagic)
	}

	sizeOfImage, err := remote.ReadUint32(p, optional+sizeOfImageOffset)
	if err != nil {
		return nil, errors.Wrap(errors.ForeignReadFailed, op, err)
	}

	raw, err := remote.ReadBytes(p, optional+ddOff, NumDataDirectories*dataDirectorySize)
	if err != nil {
		return nil, errors.Wrap(errors.ForeignReadFailed, op, err)
	}

	hdr := &ModuleHeader{
		SignatureOK:    true,
		PEHeaderOffset: lfanew,
		Magic:          optMagic,
		SizeOfImage:    sizeOfImage,
	}
	for i := range hdr.DataDirectories {
		entry := raw[i*dataDirectorySize:]
		hdr.DataDirectories[i] = DataDirectory{
			VirtualAddress: binary.LittleEndian.Uint32(entry[0:]),
			Size:           binary.LittleEndian.Uint32(entry[4:]),
		}
	}

	return hdr, nil
}
