package resolve

import (
	"encoding/binary"

	"github.com/carved4/go-eemem/pkg/remote"
)

const (
	testBase   = 0x140000000
	testLfanew = 0x80
	testOpt    = testLfanew + 4 + fileHeaderSize
)

// testImage lays out a minimal mapped PE image: headers at 0, everything
// else allocated upward from 0x1000.
type testImage struct {
	buf   []byte
	next  uint32
	magic uint16
}

func newTestImage(magic uint16) *testImage {
	img := &testImage{buf: make([]byte, 0x4000), next: 0x1000, magic: magic}
	binary.LittleEndian.PutUint16(img.buf[0:], dosSignature)
	binary.LittleEndian.PutUint32(img.buf[lfanewOffset:], testLfanew)
	binary.LittleEndian.PutUint32(img.buf[testLfanew:], ntSignature)
	binary.LittleEndian.PutUint16(img.buf[testOpt:], magic)
	binary.LittleEndian.PutUint32(img.buf[testOpt+sizeOfImageOffset:], uint32(len(img.buf)))
	return img
}

func (img *testImage) directoryTable() int {
	if img.magic == optionalMagicPE32 {
		return testOpt + dataDirectoryOffsetPE32
	}
	return testOpt + dataDirectoryOffsetPE32Plus
}

func (img *testImage) setDirectory(index int, rva, size uint32) {
	at := img.directoryTable() + index*dataDirectorySize
	binary.LittleEndian.PutUint32(img.buf[at:], rva)
	binary.LittleEndian.PutUint32(img.buf[at+4:], size)
}

func (img *testImage) alloc(n int) uint32 {
	rva := img.next
	img.next += uint32((n + 7) &^ 7)
	return rva
}

func (img *testImage) putU32(rva uint32, v uint32) {
	binary.LittleEndian.PutUint32(img.buf[rva:], v)
}

// value stores a 64-bit value in the image and returns its RVA.
func (img *testImage) value(v uint64) uint32 {
	rva := img.alloc(8)
	binary.LittleEndian.PutUint64(img.buf[rva:], v)
	return rva
}

type testExports struct {
	names     []string
	ordinals  []uint16
	functions []uint32
}

// addExports writes an export directory into data directory slot index and
// returns the directory's RVA.
func (img *testImage) addExports(index int, t testExports) uint32 {
	dirRVA := img.alloc(exportDirectorySize)
	namesRVA := img.alloc(4 * len(t.names))
	ordinalsRVA := img.alloc(2 * len(t.ordinals))
	functionsRVA := img.alloc(4 * len(t.functions))

	for i, name := range t.names {
		s := img.alloc(len(name) + 1)
		copy(img.buf[s:], name)
		img.putU32(namesRVA+uint32(4*i), s)
	}
	for i, ord := range t.ordinals {
		binary.LittleEndian.PutUint16(img.buf[ordinalsRVA+uint32(2*i):], ord)
	}
	for i, fn := range t.functions {
		img.putU32(functionsRVA+uint32(4*i), fn)
	}

	img.putU32(dirRVA+20, uint32(len(t.functions)))
	img.putU32(dirRVA+24, uint32(len(t.names)))
	img.putU32(dirRVA+28, functionsRVA)
	img.putU32(dirRVA+32, namesRVA)
	img.putU32(dirRVA+36, ordinalsRVA)

	img.setDirectory(index, dirRVA, exportDirectorySize)
	return dirRVA
}

// addSection fills in what a full PE parser needs beyond the fields the
// resolver reads: machine, optional header size, directory count and one
// section spanning everything allocated so far.
func (img *testImage) addSection(machine uint16) {
	optSize, countAt := 240, 108
	if img.magic == optionalMagicPE32 {
		optSize, countAt = 224, 92
	}

	binary.LittleEndian.PutUint16(img.buf[testLfanew+4:], machine)
	binary.LittleEndian.PutUint16(img.buf[testLfanew+6:], 1)
	binary.LittleEndian.PutUint16(img.buf[testLfanew+20:], uint16(optSize))
	img.putU32(uint32(testOpt+countAt), NumDataDirectories)

	sh := testOpt + optSize
	copy(img.buf[sh:], ".rdata")
	size := img.next - 0x1000
	img.putU32(uint32(sh+8), size)    // VirtualSize
	img.putU32(uint32(sh+12), 0x1000) // VirtualAddress
	img.putU32(uint32(sh+16), size)   // SizeOfRawData
	img.putU32(uint32(sh+20), 0x1000) // PointerToRawData
}

func (img *testImage) process() *remote.Memory {
	return remote.NewMemory("pcsx2.exe", 42).
		Map(testBase, img.buf).
		AddModule(remote.Module{Name: "pcsx2.exe", Start: testBase, Size: uint64(len(img.buf))})
}
