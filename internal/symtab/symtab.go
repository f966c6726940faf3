// Package symtab materialises the ELF symbol table into a dense array
// indexed by symbol number, loading it at most once.
package symtab

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lunixbochs/struc"

	"github.com/retrovita/vitalink-core/internal/elfimage"
	"github.com/retrovita/vitalink-core/internal/model"
)

const symEntrySize = 16

var (
	ErrNotSymtab             = errors.New("section is not a symbol table")
	ErrMultipleSymbolTables  = errors.New("more than one symbol table section present")
	ErrTruncatedSymbolTable  = errors.New("symbol table section size is not a multiple of the entry size")
)

// rawSym is the on-disk layout of Elf32_Sym.
type rawSym struct {
	Name  uint32
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

// Loader materialises a Binary's symbol table. It is idempotent: Load
// may be called repeatedly with the same section index and will return
// the cached table without redoing the work, but it is an error to call
// it with two different symbol-table section indices.
type Loader struct {
	loadedIndex int
	table       []*model.Symbol
}

// NewLoader returns a Loader with nothing yet loaded.
func NewLoader() *Loader {
	return &Loader{loadedIndex: -1}
}

// Load parses section (at the given section index within the ELF file)
// into a dense symbol array. section must have type SHT_SYMTAB.
func (l *Loader) Load(ctx *elfimage.Context, section *elf.Section, sectionIndex int) ([]*model.Symbol, error) {
	if l.loadedIndex != -1 {
		if l.loadedIndex == sectionIndex {
			return l.table, nil
		}
		return nil, fmt.Errorf("symbol table section at index %d conflicts with already-loaded index %d: %w",
			sectionIndex, l.loadedIndex, ErrMultipleSymbolTables)
	}

	if section.Type != elf.SHT_SYMTAB {
		return nil, fmt.Errorf("section '%s' has type %s: %w", section.Name, section.Type, ErrNotSymtab)
	}

	data, err := section.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol table section '%s': %w", section.Name, err)
	}

	if len(data)%symEntrySize != 0 {
		return nil, fmt.Errorf("symbol table section '%s' has size %d: %w", section.Name, len(data), ErrTruncatedSymbolTable)
	}

	if int(section.Link) >= len(ctx.Sections) {
		return nil, fmt.Errorf("symbol table section '%s' has out-of-range string table link %d", section.Name, section.Link)
	}

	strtab, err := ctx.Sections[section.Link].Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read string table for symbol table section '%s': %w", section.Name, err)
	}

	count := len(data) / symEntrySize
	symbols := make([]*model.Symbol, 0, count)

	opts := &struc.Options{Order: binary.LittleEndian}
	for i := 0; i < count; i++ {
		var raw rawSym
		chunk := data[i*symEntrySize : (i+1)*symEntrySize]
		if err := struc.UnpackWithOptions(bytes.NewReader(chunk), &raw, opts); err != nil {
			return nil, fmt.Errorf("failed to unpack symbol table entry %d of '%s': %w", i, section.Name, err)
		}

		typ, bind := decodeInfo(raw.Info)
		symbols = append(symbols, &model.Symbol{
			Index:        uint32(i),
			Name:         cString(strtab, raw.Name),
			Value:        raw.Value,
			Size:         raw.Size,
			Type:         typ,
			Bind:         bind,
			SectionIndex: raw.Shndx,
		})
	}

	l.table = symbols
	l.loadedIndex = sectionIndex

	return symbols, nil
}

func decodeInfo(info uint8) (model.SymType, model.SymBind) {
	typ := info & 0xf
	bind := info >> 4

	var symType model.SymType
	switch typ {
	case 1: // STT_OBJECT
		symType = model.SymTypeObject
	case 2: // STT_FUNC
		symType = model.SymTypeFunction
	default:
		symType = model.SymTypeOther
	}

	var symBind model.SymBind
	switch bind {
	case 0: // STB_LOCAL
		symBind = model.SymBindLocal
	case 1: // STB_GLOBAL
		symBind = model.SymBindGlobal
	default:
		symBind = model.SymBindOther
	}

	return symType, symBind
}

func cString(strtab []byte, offset uint32) string {
	if int(offset) >= len(strtab) {
		return ""
	}

	end := bytes.IndexByte(strtab[offset:], 0)
	if end < 0 {
		return string(strtab[offset:])
	}

	return string(strtab[offset : int(offset)+end])
}
