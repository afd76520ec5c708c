package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carved4/go-eemem/pkg/errors"
	"github.com/carved4/go-eemem/pkg/remote"
)

const eeMemValue = 0x7ff620000000

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver("", 0)
	require.NoError(t, err)
	r.Logger = nil
	return r
}

func TestParseModuleHeaderBadMagicReadsTwoBytes(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	img.buf[0] = 'X'
	m := img.process()

	_, err := ParseModuleHeader(m, testBase)
	require.True(t, errors.IsCode(err, errors.NotAnExecutableImage))
	require.Equal(t, []remote.Read{{Addr: testBase, Size: 2}}, m.Reads())
}

func TestParseModuleHeader(t *testing.T) {
	tests := []struct {
		name   string
		magic  uint16
		mutate func(img *testImage)
		code   uint32
	}{
		{name: "pe32+", magic: optionalMagicPE32Plus},
		{name: "pe32", magic: optionalMagicPE32},
		{
			name:   "bad nt signature",
			magic:  optionalMagicPE32Plus,
			mutate: func(img *testImage) { img.buf[testLfanew] = 'N' },
			code:   errors.NotAnExecutableImage,
		},
		{
			name:  "unknown optional magic",
			magic: 0x107,
			code:  errors.NotAnExecutableImage,
		},
		{
			name:   "lfanew past mapping",
			magic:  optionalMagicPE32Plus,
			mutate: func(img *testImage) { img.putU32(lfanewOffset, 0x10000) },
			code:   errors.ForeignReadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := newTestImage(tt.magic)
			img.setDirectory(0, 0x1000, 40)
			img.setDirectory(15, 0x2000, 8)
			if tt.mutate != nil {
				tt.mutate(img)
			}

			hdr, err := ParseModuleHeader(img.process(), testBase)
			if tt.code != 0 {
				require.True(t, errors.IsCode(err, tt.code), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.True(t, hdr.SignatureOK)
			require.Equal(t, int32(testLfanew), hdr.PEHeaderOffset)
			require.Equal(t, tt.magic, hdr.Magic)
			require.Equal(t, tt.magic == optionalMagicPE32Plus, hdr.Is64())
			require.Equal(t, uint32(len(img.buf)), hdr.SizeOfImage)
			require.Equal(t, DataDirectory{VirtualAddress: 0x1000, Size: 40}, hdr.DataDirectories[0])
			require.Equal(t, DataDirectory{VirtualAddress: 0x2000, Size: 8}, hdr.DataDirectories[15])
			require.Zero(t, hdr.DataDirectories[1])
		})
	}
}

func TestExportDirectoryUsable(t *testing.T) {
	tests := []struct {
		name string
		dir  ExportDirectory
		want bool
	}{
		{"complete", ExportDirectory{3, 3, 0x10, 0x20, 0x30}, true},
		{"no names", ExportDirectory{NumberOfFunctions: 1, NumberOfNames: 0, NamesRVA: 0x10, FunctionsRVA: 0x20, NameOrdinalsRVA: 0x30}, false},
		{"more functions than names", ExportDirectory{NumberOfFunctions: 5, NumberOfNames: 3, NamesRVA: 0x10, FunctionsRVA: 0x20, NameOrdinalsRVA: 0x30}, false},
		{"zero names rva", ExportDirectory{1, 1, 0, 0x20, 0x30}, false},
		{"zero functions rva", ExportDirectory{NumberOfFunctions: 1, NumberOfNames: 1, NamesRVA: 0x10, NameOrdinalsRVA: 0x30}, false},
		{"zero ordinals rva", ExportDirectory{NumberOfFunctions: 1, NumberOfNames: 1, NamesRVA: 0x10, FunctionsRVA: 0x20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.dir.Usable())
		})
	}
}

func TestDecodeExportDirectory(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	rva := img.addExports(0, testExports{
		names:     []string{"a", "b"},
		ordinals:  []uint16{0, 1},
		functions: []uint32{0x10, 0x20},
	})

	dir, err := DecodeExportDirectory(img.buf[rva : rva+exportDirectorySize])
	require.NoError(t, err)
	require.Equal(t, uint32(2), dir.NumberOfFunctions)
	require.Equal(t, uint32(2), dir.NumberOfNames)
	require.True(t, dir.Usable())

	_, err = DecodeExportDirectory(img.buf[rva : rva+39])
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	img.addExports(0, testExports{
		names:     []string{"EEmem"},
		ordinals:  []uint16{0},
		functions: []uint32{img.value(eeMemValue)},
	})

	got, err := newTestResolver(t).Resolve(img.process())
	require.NoError(t, err)
	require.Equal(t, uint64(eeMemValue), got)
}

func TestResolveUsesOrdinalIndirection(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	iop := img.value(0x1111)
	ee := img.value(eeMemValue)
	img.addExports(0, testExports{
		names:     []string{"EEmem", "IOPmem"},
		ordinals:  []uint16{1, 0},
		functions: []uint32{iop, ee},
	})

	got, err := newTestResolver(t).Resolve(img.process())
	require.NoError(t, err)
	require.Equal(t, uint64(eeMemValue), got)
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	img := newTestImage(optionalMagicPE32)
	img.addExports(0, testExports{
		names:     []string{"other", "eemem", "EEmem"},
		ordinals:  []uint16{0, 1, 2},
		functions: []uint32{img.value(1), img.value(eeMemValue), img.value(3)},
	})

	// first match in name order wins
	got, err := newTestResolver(t).Resolve(img.process())
	require.NoError(t, err)
	require.Equal(t, uint64(eeMemValue), got)
}

func TestFindExportLastDirectoryWins(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	first := img.value(0x1000)
	last := img.value(0x2000)
	img.addExports(0, testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{first}})
	img.addExports(3, testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{last}})
	m := img.process()

	hdr, err := ParseModuleHeader(m, testBase)
	require.NoError(t, err)

	r := newTestResolver(t)
	addr, err := r.FindExport(m, testBase, hdr, "EEmem")
	require.NoError(t, err)
	require.Equal(t, uint64(testBase+uint64(last)), addr)

	value, err := r.Resolve(m)
	require.NoError(t, err)
	require.Equal(t, uint64(0x2000), value)
}

func TestFindExportSkipsBrokenDirectory(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	good := img.value(eeMemValue)
	img.addExports(0, testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{good}})

	broken := img.addExports(2, testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{img.value(5)}})
	// names array runs off the end of the mapping
	img.putU32(broken+32, uint32(len(img.buf)-2))

	m := img.process()
	hdr, err := ParseModuleHeader(m, testBase)
	require.NoError(t, err)

	addr, err := newTestResolver(t).FindExport(m, testBase, hdr, "EEmem")
	require.NoError(t, err)
	require.Equal(t, uint64(testBase+uint64(good)), addr)
}

func TestFindExportFailures(t *testing.T) {
	tests := []struct {
		name    string
		exports *testExports
		code    uint32
	}{
		{name: "no directories", code: errors.ExportTableUnusable},
		{
			name:    "name absent",
			exports: &testExports{names: []string{"IOPmem"}, ordinals: []uint16{0}, functions: []uint32{0x10}},
			code:    errors.SymbolNotFound,
		},
		{
			name:    "ordinal out of range",
			exports: &testExports{names: []string{"EEmem"}, ordinals: []uint16{7}, functions: []uint32{0x10}},
			code:    errors.ExportTableUnusable,
		},
		{
			name:    "zero function rva",
			exports: &testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{0}},
			code:    errors.SymbolNotFound,
		},
		{
			name:    "names and functions disagree",
			exports: &testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{0x10, 0x20}},
			code:    errors.ExportTableUnusable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := newTestImage(optionalMagicPE32Plus)
			if tt.exports != nil {
				img.addExports(0, *tt.exports)
			}
			m := img.process()
			hdr, err := ParseModuleHeader(m, testBase)
			require.NoError(t, err)

			_, err = newTestResolver(t).FindExport(m, testBase, hdr, "EEmem")
			require.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestResolveZeroValueIsNotFound(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	img.addExports(0, testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{img.value(0)}})

	_, err := newTestResolver(t).Resolve(img.process())
	require.True(t, errors.IsCode(err, errors.SymbolNotFound))
}

func TestResolvePreconditions(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	img.addExports(0, testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{img.value(eeMemValue)}})
	r := newTestResolver(t)

	m := img.process()
	m.SetValid(false)
	_, err := r.Resolve(m)
	require.True(t, errors.IsCode(err, errors.ForeignReadFailed))

	other := remote.NewMemory("pcsx2-qt.exe", 42).
		Map(testBase, img.buf).
		AddModule(remote.Module{Name: "pcsx2.exe", Start: testBase})
	_, err = r.Resolve(other)
	require.True(t, errors.IsCode(err, errors.SymbolNotFound))

	_, err = r.Resolve(nil)
	require.Error(t, err)
}

func TestExportNamesAreCached(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	img.addExports(0, testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{img.value(eeMemValue)}})
	m := img.process()
	r := newTestResolver(t)

	nameReads := func() int {
		n := 0
		for _, rd := range m.Reads() {
			if rd.Size == maxNameLength {
				n++
			}
		}
		return n
	}

	_, err := r.Resolve(m)
	require.NoError(t, err)
	require.Equal(t, 1, nameReads())

	m.ResetReads()
	_, err = r.Resolve(m)
	require.NoError(t, err)
	require.Zero(t, nameReads())

	r.Purge()
	m.ResetReads()
	_, err = r.Resolve(m)
	require.NoError(t, err)
	require.Equal(t, 1, nameReads())
}

func TestListExportsRejectsNonImage(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	img.buf[1] = 0
	m := img.process()

	_, err := ListExports(m, remote.Module{Name: "pcsx2.exe", Start: testBase})
	require.True(t, errors.IsCode(err, errors.NotAnExecutableImage))
}

func TestListExports(t *testing.T) {
	tests := []struct {
		name    string
		magic   uint16
		machine uint16
	}{
		{"pe32+", optionalMagicPE32Plus, 0x8664},
		{"pe32", optionalMagicPE32, 0x14c},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := newTestImage(tt.magic)
			eemem := img.value(eeMemValue)
			other := img.value(1)
			dir := img.addExports(0, testExports{
				names:     []string{"EEmem", "Other"},
				ordinals:  []uint16{1, 0},
				functions: []uint32{other, eemem},
			})
			img.putU32(dir+16, 1) // ordinal base
			img.addSection(tt.machine)

			exports, err := ListExports(img.process(), remote.Module{Name: "pcsx2.exe", Start: testBase})
			require.NoError(t, err)
			require.Equal(t, []Export{
				{Name: "Other", Ordinal: 1, VirtualAddress: other, Address: testBase + uint64(other)},
				{Name: "EEmem", Ordinal: 2, VirtualAddress: eemem, Address: testBase + uint64(eemem)},
			}, exports)
		})
	}
}

func TestListExportsRejectsMachineMismatch(t *testing.T) {
	img := newTestImage(optionalMagicPE32Plus)
	img.addExports(0, testExports{names: []string{"EEmem"}, ordinals: []uint16{0}, functions: []uint32{img.value(1)}})
	img.addSection(0x14c)

	_, err := ListExports(img.process(), remote.Module{Name: "pcsx2.exe", Start: testBase})
	require.True(t, errors.IsCode(err, errors.NotAnExecutableImage), "%v", err)
}
