// Package elftest builds minimal, valid ELF32 little-endian ARM files
// in memory, for exercising the loader without checking in binary
// fixtures. It is test-only scaffolding, imported solely from _test.go
// files elsewhere in this module.
package elftest

import (
	"bytes"
	"encoding/binary"
)

const (
	ehdrSize = 52
	shdrSize = 40
	phdrSize = 32

	ehdrSize64 = 64
	shdrSize64 = 64
	phdrSize64 = 56

	etExec    = 2
	emARM     = 40
	evCurrent = 1

	elfClass32 = 1
	elfClass64 = 2
	elfData2LSB = 1
)

// Section describes one section to place in the built file.
type Section struct {
	Name      string
	Type      uint32
	Flags     uint32
	Addr      uint32
	Data      []byte
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

// Segment describes one program header entry. This builder does not
// need segment file data: the segment map only cares about
// type/vaddr/memsz.
type Segment struct {
	Type  uint32
	VAddr uint32
	MemSz uint32
}

// Builder accumulates sections and segments, then emits a complete
// ELF32 LE ARM image via Build.
type Builder struct {
	sections []Section
	segments []Segment

	// Machine and Class default to EM_ARM/ELFCLASS32; tests that need to
	// exercise validation rejection override them.
	Machine uint16
	Class   uint8
}

func NewBuilder() *Builder {
	return &Builder{Machine: emARM, Class: elfClass32}
}

func (b *Builder) AddSection(s Section) *Builder {
	b.sections = append(b.sections, s)
	return b
}

// AddIndexedSection behaves like AddSection but returns the ELF section
// index the new section will be parsed at by debug/elf (section 0 is
// always the null section, so the first section added here lands at
// index 1). Tests use this to fill in sh_link/sh_info fields that
// reference another section by index.
func (b *Builder) AddIndexedSection(s Section) (*Builder, int) {
	b.sections = append(b.sections, s)
	return b, len(b.sections)
}

func (b *Builder) AddSegment(s Segment) *Builder {
	b.segments = append(b.segments, s)
	return b
}

// Build lays out and serializes the file: ELF header, program headers,
// section data (in order, each 4-byte aligned), the section name
// string table, then the section header table.
//
// Class defaults to ELFCLASS32, the only width this builder's section
// and segment layout logic understands. Tests that need to exercise
// class rejection set Class to ELFCLASS64 instead; in that case Build
// ignores any added sections/segments and emits a minimal, structurally
// valid, empty 64-bit-width ELF header so debug/elf parses the class
// byte honestly rather than misreading 32-bit-shaped bytes as 64-bit
// ones.
func (b *Builder) Build() []byte {
	if b.Class == elfClass64 {
		return b.build64Stub()
	}

	// Section 0 is always the null section; .shstrtab is appended last.
	shstrtab := []byte{0}
	nameOffsets := make([]uint32, len(b.sections))
	for i, s := range b.sections {
		nameOffsets[i] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, []byte(s.Name)...)
		shstrtab = append(shstrtab, 0)
	}
	shstrtabNameOffset := uint32(len(shstrtab))
	shstrtab = append(shstrtab, []byte(".shstrtab")...)
	shstrtab = append(shstrtab, 0)

	phoff := uint32(ehdrSize)
	dataStart := phoff + uint32(len(b.segments))*phdrSize

	type placed struct {
		offset uint32
		size   uint32
	}

	offsets := make([]placed, len(b.sections))
	cursor := dataStart
	for i, s := range b.sections {
		if s.Type == 8 /* SHT_NOBITS */ {
			offsets[i] = placed{offset: cursor, size: uint32(len(s.Data))}
			continue
		}
		cursor = align4(cursor)
		offsets[i] = placed{offset: cursor, size: uint32(len(s.Data))}
		cursor += uint32(len(s.Data))
	}

	cursor = align4(cursor)
	shstrtabOffset := cursor
	cursor += uint32(len(shstrtab))

	cursor = align4(cursor)
	shoff := cursor

	buf := &bytes.Buffer{}

	// e_ident
	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = b.Class
	ident[5] = elfData2LSB
	ident[6] = evCurrent
	buf.Write(ident)

	writeU16 := func(v uint16) { binary.Write(buf, binary.LittleEndian, v) } //nolint:errcheck
	writeU32 := func(v uint32) { binary.Write(buf, binary.LittleEndian, v) } //nolint:errcheck

	writeU16(etExec)
	writeU16(b.Machine)
	writeU32(evCurrent)
	writeU32(0) // e_entry
	writeU32(phoff)
	writeU32(shoff)
	writeU32(0) // e_flags
	writeU16(ehdrSize)
	writeU16(phdrSize)
	writeU16(uint16(len(b.segments)))
	writeU16(shdrSize)
	writeU16(uint16(len(b.sections) + 2)) // +2 for the null section and .shstrtab itself
	writeU16(uint16(len(b.sections) + 1)) // shstrndx: .shstrtab is the last section

	for _, seg := range b.segments {
		writeU32(seg.Type)
		writeU32(0) // p_offset
		writeU32(seg.VAddr)
		writeU32(seg.VAddr) // p_paddr
		writeU32(0)         // p_filesz
		writeU32(seg.MemSz)
		writeU32(0) // p_flags
		writeU32(4) // p_align
	}

	for i, s := range b.sections {
		if s.Type == 8 {
			continue
		}
		for int(offsets[i].offset) > buf.Len()-0 && buf.Len() < int(offsets[i].offset) {
			buf.WriteByte(0)
		}
		buf.Write(s.Data)
	}

	for buf.Len() < int(shstrtabOffset) {
		buf.WriteByte(0)
	}
	buf.Write(shstrtab)

	for buf.Len() < int(shoff) {
		buf.WriteByte(0)
	}

	// Null section header.
	for i := 0; i < shdrSize; i++ {
		buf.WriteByte(0)
	}

	for i, s := range b.sections {
		writeU32(nameOffsets[i])
		writeU32(s.Type)
		writeU32(s.Flags)
		writeU32(s.Addr)
		writeU32(offsets[i].offset)
		writeU32(offsets[i].size)
		writeU32(s.Link)
		writeU32(s.Info)
		writeU32(orDefault(s.Addralign, 1))
		writeU32(s.Entsize)
	}

	// .shstrtab section header.
	writeU32(shstrtabNameOffset)
	writeU32(3) // SHT_STRTAB
	writeU32(0)
	writeU32(0)
	writeU32(shstrtabOffset)
	writeU32(uint32(len(shstrtab)))
	writeU32(0)
	writeU32(0)
	writeU32(1)
	writeU32(0)

	return buf.Bytes()
}

// build64Stub emits a minimal, valid ELF64 header with no program or
// section headers (e_phnum = e_shnum = 0), which debug/elf parses
// without needing any layout logic beyond the header itself. It exists
// solely so tests can exercise the ELFCLASS64 rejection path against a
// file debug/elf actually agrees is a well-formed 64-bit ELF, rather
// than 32-bit-shaped bytes carrying a 64-bit class byte.
func (b *Builder) build64Stub() []byte {
	buf := &bytes.Buffer{}

	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = b.Class
	ident[5] = elfData2LSB
	ident[6] = evCurrent
	buf.Write(ident)

	writeU16 := func(v uint16) { binary.Write(buf, binary.LittleEndian, v) } //nolint:errcheck
	writeU32 := func(v uint32) { binary.Write(buf, binary.LittleEndian, v) } //nolint:errcheck
	writeU64 := func(v uint64) { binary.Write(buf, binary.LittleEndian, v) } //nolint:errcheck

	writeU16(etExec)
	writeU16(b.Machine)
	writeU32(evCurrent)
	writeU64(0) // e_entry
	writeU64(0) // e_phoff
	writeU64(0) // e_shoff
	writeU32(0) // e_flags
	writeU16(ehdrSize64)
	writeU16(phdrSize64)
	writeU16(0) // e_phnum
	writeU16(shdrSize64)
	writeU16(0) // e_shnum
	writeU16(0) // e_shstrndx

	return buf.Bytes()
}

func align4(v uint32) uint32 {
	return (v + 3) &^ 3
}

func orDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

// Sym32 is the on-disk layout of an Elf32_Sym, exported so tests can
// build symbol table section data directly.
type Sym32 struct {
	Name  uint32
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

func EncodeSymbols(strtab *StrTab, syms []Sym32) []byte {
	buf := &bytes.Buffer{}
	for _, s := range syms {
		binary.Write(buf, binary.LittleEndian, s.Name)  //nolint:errcheck
		binary.Write(buf, binary.LittleEndian, s.Value)  //nolint:errcheck
		binary.Write(buf, binary.LittleEndian, s.Size)   //nolint:errcheck
		buf.WriteByte(s.Info)
		buf.WriteByte(s.Other)
		binary.Write(buf, binary.LittleEndian, s.Shndx) //nolint:errcheck
	}
	return buf.Bytes()
}

// StrTab is a tiny helper for building a string table section's data
// alongside the name offsets symbols need to reference into it.
type StrTab struct {
	data []byte
}

func NewStrTab() *StrTab {
	return &StrTab{data: []byte{0}}
}

func (t *StrTab) Add(name string) uint32 {
	off := uint32(len(t.data))
	t.data = append(t.data, []byte(name)...)
	t.data = append(t.data, 0)
	return off
}

func (t *StrTab) Bytes() []byte {
	return t.data
}

// Rel32 is the on-disk layout of an Elf32_Rel.
type Rel32 struct {
	Offset uint32
	Info   uint32
}

func EncodeRel(entries []Rel32) []byte {
	buf := &bytes.Buffer{}
	for _, e := range entries {
		binary.Write(buf, binary.LittleEndian, e.Offset) //nolint:errcheck
		binary.Write(buf, binary.LittleEndian, e.Info)    //nolint:errcheck
	}
	return buf.Bytes()
}

// RelInfo packs a symbol index and relocation type into Elf32_Rel's
// r_info field, matching GELF_R_INFO for 32-bit ELF.
func RelInfo(sym uint32, typ uint32) uint32 {
	return (sym << 8) | (typ & 0xff)
}

// StubRecord is the on-disk layout of one 16-byte stub record.
type StubRecord struct {
	AddrOrZero uint32
	LibraryNID uint32
	ModuleNID  uint32
	TargetNID  uint32
}

func EncodeStubs(records []StubRecord) []byte {
	buf := &bytes.Buffer{}
	for _, r := range records {
		binary.Write(buf, binary.LittleEndian, r.AddrOrZero) //nolint:errcheck
		binary.Write(buf, binary.LittleEndian, r.LibraryNID) //nolint:errcheck
		binary.Write(buf, binary.LittleEndian, r.ModuleNID)  //nolint:errcheck
		binary.Write(buf, binary.LittleEndian, r.TargetNID)  //nolint:errcheck
	}
	return buf.Bytes()
}
