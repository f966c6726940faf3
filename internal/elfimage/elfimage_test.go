package elfimage_test

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrovita/vitalink-core/internal/elfimage"
	"github.com/retrovita/vitalink-core/internal/elftest"
)

func writeFixture(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.elf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenAcceptsARM32LE(t *testing.T) {
	b := elftest.NewBuilder()
	b.AddSection(elftest.Section{Name: ".text", Type: uint32(elf.SHT_PROGBITS), Flags: uint32(elf.SHF_ALLOC | elf.SHF_EXECINSTR), Addr: 0x8000, Data: []byte{0, 1, 2, 3}})
	path := writeFixture(t, b.Build())

	ctx, err := elfimage.Open(path)
	require.NoError(t, err)
	defer ctx.Close()

	assert.Equal(t, path, ctx.Path())
	assert.NotNil(t, ctx.SectionByName(".text"))
	assert.Nil(t, ctx.SectionByName(".nope"))
}

func TestOpenRejectsWrongMachine(t *testing.T) {
	b := elftest.NewBuilder()
	b.Machine = 0x3e // EM_X86_64
	path := writeFixture(t, b.Build())

	_, err := elfimage.Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, elfimage.ErrUnsupportedArch)
}

func TestOpenRejectsWrongClass(t *testing.T) {
	b := elftest.NewBuilder()
	b.Class = 2 // ELFCLASS64
	path := writeFixture(t, b.Build())

	_, err := elfimage.Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, elfimage.ErrUnsupportedClass)
}

func TestOpenRejectsNonELF(t *testing.T) {
	path := writeFixture(t, []byte("not an elf file at all"))

	_, err := elfimage.Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, elfimage.ErrNotELF)
}

func TestSectionsByNameAndIndex(t *testing.T) {
	b := elftest.NewBuilder()
	b.AddSection(elftest.Section{Name: ".vitalink.fstubs", Type: uint32(elf.SHT_PROGBITS), Addr: 0x9000, Data: make([]byte, 16)})
	b.AddSection(elftest.Section{Name: ".vitalink.fstubs", Type: uint32(elf.SHT_PROGBITS), Addr: 0x9100, Data: make([]byte, 16)})
	path := writeFixture(t, b.Build())

	ctx, err := elfimage.Open(path)
	require.NoError(t, err)
	defer ctx.Close()

	dupes := ctx.SectionsByName(".vitalink.fstubs")
	assert.Len(t, dupes, 2)

	idx := ctx.SectionIndex(dupes[1])
	assert.Equal(t, dupes[1], ctx.Sections[idx])
}
