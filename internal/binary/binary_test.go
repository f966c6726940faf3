package binary_test

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bin "github.com/retrovita/vitalink-core/internal/binary"
	"github.com/retrovita/vitalink-core/internal/catalogue"
	"github.com/retrovita/vitalink-core/internal/diagnostic"
	"github.com/retrovita/vitalink-core/internal/elftest"
	"github.com/retrovita/vitalink-core/internal/model"
	"github.com/retrovita/vitalink-core/internal/stub"
)

type fixtureOpts struct {
	omitSymtab    bool
	omitStubs     bool
	omitReloc     bool
	withDebugInfo bool
}

func buildFixture(t *testing.T, opts fixtureOpts) string {
	t.Helper()

	const (
		textAddr = 0x8000
		fstubAddr = 0x9000
	)

	strtab := elftest.NewStrTab()
	nameOff := strtab.Add("stubSym")

	textData := make([]byte, 16)
	if !opts.omitReloc {
		// ABS32 word encoding symValue+addend; addend 0 here.
		binary.LittleEndian.PutUint32(textData, fstubAddr)
	}

	b := elftest.NewBuilder()
	b, textIdx := b.AddIndexedSection(elftest.Section{Name: ".text", Type: uint32(elf.SHT_PROGBITS), Addr: textAddr, Data: textData})
	b, strIdx := b.AddIndexedSection(elftest.Section{Name: ".strtab", Type: uint32(elf.SHT_STRTAB), Data: strtab.Bytes()})

	var fstubIdx int
	if !opts.omitStubs {
		b, fstubIdx = b.AddIndexedSection(elftest.Section{
			Name: stub.SectionFunctionStubs, Type: uint32(elf.SHT_PROGBITS), Addr: fstubAddr,
			Data: elftest.EncodeStubs([]elftest.StubRecord{{LibraryNID: 0x11, ModuleNID: 0x22, TargetNID: 0x33}}),
		})
	}

	if !opts.omitSymtab {
		syms := []elftest.Sym32{{}}
		if !opts.omitStubs {
			syms = append(syms, elftest.Sym32{Name: nameOff, Value: fstubAddr, Info: (1 << 4) | 2, Shndx: uint16(fstubIdx)})
		}
		b.AddSection(elftest.Section{
			Name: ".symtab", Type: uint32(elf.SHT_SYMTAB), Link: uint32(strIdx),
			Data: elftest.EncodeSymbols(strtab, syms),
		})
	}

	if !opts.omitReloc {
		b.AddSection(elftest.Section{
			Name: ".rel.text", Type: uint32(elf.SHT_REL), Info: uint32(textIdx),
			Data: elftest.EncodeRel([]elftest.Rel32{
				{Offset: textAddr, Info: elftest.RelInfo(1, uint32(model.RelocAbs32))},
			}),
		})
	}

	if opts.withDebugInfo {
		b.AddSection(elftest.Section{Name: ".rel.debug_info", Type: uint32(elf.SHT_REL), Info: uint32(textIdx), Data: []byte{}})
	}

	b.AddSegment(elftest.Segment{Type: 1, VAddr: textAddr, MemSz: 0x2000})

	path := filepath.Join(t.TempDir(), "f.elf")
	require.NoError(t, os.WriteFile(path, b.Build(), 0o644))
	return path
}

func TestLoadWiresFullPipeline(t *testing.T) {
	path := buildFixture(t, fixtureOpts{})

	mod := catalogue.NewMapModule(0x22, "SceLibKernel").WithFunction(0x33, "sceKernelExitProcess")
	lib := catalogue.NewMapLibrary(0x11, "SceLibKernel", mod)
	cat := catalogue.NewMapCatalogue(lib)

	sink := &diagnostic.CollectingSink{}
	b, err := bin.Load(path, []catalogue.Catalogue{cat}, sink)
	require.NoError(t, err)
	defer b.Close()

	require.Len(t, b.FunctionStubs(), 1)
	assert.True(t, b.FunctionStubs()[0].Resolved())
	assert.False(t, b.FunctionStubs()[0].Unreferenced())
	assert.True(t, b.AllImportsResolved())

	require.Len(t, b.RelocationTables(), 1)
	require.Len(t, b.RelocationTables()[0].Entries, 1)
	assert.Equal(t, int32(0), b.RelocationTables()[0].Entries[0].Addend)

	require.Len(t, b.Segments(), 1)
	host, ok := b.GuestToHost(0x8100)
	require.True(t, ok)
	assert.Equal(t, uint32(0x8100), b.HostToGuest(host))

	assert.Empty(t, sink.Warnings)
}

func TestLoadRejectsMissingSymbolTable(t *testing.T) {
	path := buildFixture(t, fixtureOpts{omitSymtab: true})
	_, err := bin.Load(path, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bin.ErrNoSymbolTable)
}

func TestLoadRejectsMissingStubSections(t *testing.T) {
	path := buildFixture(t, fixtureOpts{omitStubs: true})
	_, err := bin.Load(path, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bin.ErrNoStubSections)
}

func TestLoadRejectsMissingRelocationTables(t *testing.T) {
	path := buildFixture(t, fixtureOpts{omitReloc: true})
	_, err := bin.Load(path, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bin.ErrNoRelocationTables)
}

func TestLoadRejectsDebugRelocationSections(t *testing.T) {
	path := buildFixture(t, fixtureOpts{withDebugInfo: true})
	_, err := bin.Load(path, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bin.ErrDebugInfoPresent)
}

func TestLoadWarnsWhenImportUnresolved(t *testing.T) {
	path := buildFixture(t, fixtureOpts{})

	sink := &diagnostic.CollectingSink{}
	b, err := bin.Load(path, nil, sink)
	require.NoError(t, err)
	defer b.Close()

	assert.False(t, b.AllImportsResolved())
	assert.NotEmpty(t, sink.Warnings)
}
