// Package reloc decodes REL-type relocation sections, reconstructing
// each entry's addend by reading the target instruction bytes in place.
// This is the hard part of the core: it requires ARM/Thumb-2 instruction
// encoding knowledge on top of ordinary ELF parsing.
package reloc

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/retrovita/vitalink-core/internal/diagnostic"
	"github.com/retrovita/vitalink-core/internal/elfimage"
	"github.com/retrovita/vitalink-core/internal/model"
)

const entrySize = 8 // Elf32_Rel: r_offset, r_info

var (
	ErrRelaUnsupported      = errors.New("RELA relocation sections are not supported by this runtime")
	ErrUnknownType          = errors.New("unknown ARM relocation type")
	ErrSymbolOutOfRange     = errors.New("relocation symbol index out of range")
	ErrTargetSectionMissing = errors.New("relocation section references a non-existent target section")
	ErrOffsetOutOfRange     = errors.New("relocation offset lies outside the target section")
	ErrMalformedSection     = errors.New("relocation section size is not a multiple of the entry size")
)

// Decode walks every relocation section in ctx, in file order, and
// produces one RelocationTable per REL-type section. symbols must
// already be loaded (see package symtab). Encountering a RELA-type
// section is fatal, per the spec: this is a hard limitation of the
// target runtime, not a bug, and is preserved verbatim rather than
// implemented.
func Decode(ctx *elfimage.Context, symbols []*model.Symbol, sink diagnostic.Sink) ([]*model.RelocationTable, error) {
	var tables []*model.RelocationTable

	for _, section := range ctx.Sections {
		switch section.Type {
		case elf.SHT_RELA:
			sink.Warnf("section '%s' is RELA; only REL relocations are supported", section.Name)
			return nil, fmt.Errorf("section '%s': %w", section.Name, ErrRelaUnsupported)
		case elf.SHT_REL:
			table, err := decodeSection(ctx, section, symbols, sink)
			if err != nil {
				return nil, err
			}
			tables = append(tables, table)
		}
	}

	return tables, nil
}

func decodeSection(ctx *elfimage.Context, section *elf.Section, symbols []*model.Symbol, sink diagnostic.Sink) (*model.RelocationTable, error) {
	targetIndex := int(section.Info)
	if targetIndex < 0 || targetIndex >= len(ctx.Sections) {
		return nil, fmt.Errorf("section '%s' targets section index %d: %w", section.Name, targetIndex, ErrTargetSectionMissing)
	}
	target := ctx.Sections[targetIndex]

	data, err := section.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read relocation section '%s': %w", section.Name, err)
	}
	if len(data)%entrySize != 0 {
		return nil, fmt.Errorf("relocation section '%s' has size %d: %w", section.Name, len(data), ErrMalformedSection)
	}

	// NOTE: this assumes, like the source this spec is derived from, that
	// a section's data is available as a single contiguous chunk. debug/elf's
	// Section.Data already gives us that, so there is nothing further to do
	// here to honour that assumption.
	targetData, err := target.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read target section '%s' of relocation section '%s': %w", target.Name, section.Name, err)
	}

	table := &model.RelocationTable{SectionIndex: targetIndex}

	count := len(data) / entrySize
	for i := 0; i < count; i++ {
		offset := binary.LittleEndian.Uint32(data[i*entrySize:])
		info := binary.LittleEndian.Uint32(data[i*entrySize+4:])

		sym := info >> 8
		typ := model.RelocType(info & 0xff)

		// R_ARM_THM_JUMP24 is functionally equivalent to R_ARM_THM_CALL for
		// this pipeline; the runtime only understands the latter.
		if typ == model.RelocThmJump24 {
			typ = model.RelocThmCall
		}

		// PC-relative and already fully encoded in the instruction: nothing
		// to reconstruct.
		if typ == model.RelocThmPC11 {
			continue
		}

		class, known := classify(typ)
		if !known {
			return nil, fmt.Errorf("relocation section '%s' entry %d has unsupported type %d: %w",
				section.Name, i, uint32(typ), ErrUnknownType)
		}

		if class == model.RelocClassIgnore {
			table.Entries = append(table.Entries, &model.RelocationEntry{
				Offset: offset,
				Type:   typ,
				Class:  class,
			})
			continue
		}

		if int(sym) >= len(symbols) {
			return nil, fmt.Errorf("relocation section '%s' entry %d references symbol %d of %d: %w",
				section.Name, i, sym, len(symbols), ErrSymbolOutOfRange)
		}

		if offset < uint32(target.Addr) {
			return nil, fmt.Errorf("relocation section '%s' entry %d has offset 0x%x before section '%s' start 0x%x: %w",
				section.Name, i, offset, target.Name, target.Addr, ErrOffsetOutOfRange)
		}

		localOffset := offset - uint32(target.Addr)
		if int(localOffset)+4 > len(targetData) {
			return nil, fmt.Errorf("relocation section '%s' entry %d has offset 0x%x past the end of section '%s': %w",
				section.Name, i, offset, target.Name, ErrOffsetOutOfRange)
		}

		word := binary.LittleEndian.Uint32(targetData[localOffset:])
		symValue := symbols[sym].Value

		value := decodeTarget(typ, word, offset)
		addend := computeAddend(typ, value, symValue)

		table.Entries = append(table.Entries, &model.RelocationEntry{
			Offset:      offset,
			Type:        typ,
			Class:       model.RelocClassNormal,
			SymbolIndex: sym,
			Addend:      addend,
		})
	}

	return table, nil
}

func classify(t model.RelocType) (model.RelocClass, bool) {
	switch t {
	case model.RelocNone, model.RelocV4Bx:
		return model.RelocClassIgnore, true
	case model.RelocAbs32, model.RelocTarget1,
		model.RelocRel32, model.RelocTarget2, model.RelocPrel31,
		model.RelocCall, model.RelocJump24,
		model.RelocMovwAbsNC, model.RelocMovtAbs,
		model.RelocThmCall, model.RelocThmMovwAbsNC, model.RelocThmMovtAbs:
		return model.RelocClassNormal, true
	default:
		return 0, false
	}
}

// thumbShuffle swaps the two 16-bit halfwords of a THUMB-2 32-bit
// instruction, which are stored in memory order rather than numeric
// order.
func thumbShuffle(x uint32) uint32 {
	return ((x & 0xFFFF0000) >> 16) | ((x & 0xFFFF) << 16)
}

// decodeTarget reconstructs the relocation's target value by decoding
// the instruction encoding D at guest address A, per relocation type.
func decodeTarget(t model.RelocType, d, a uint32) uint32 {
	switch t {
	case model.RelocNone, model.RelocV4Bx:
		return 0xDEADBEEF // sentinel; never used

	case model.RelocAbs32, model.RelocTarget1:
		return d

	case model.RelocRel32, model.RelocTarget2, model.RelocPrel31:
		return d + a

	case model.RelocCall, model.RelocJump24:
		imm24 := d & 0x00FFFFFF
		signExtended := int32(imm24<<8) >> 8
		return uint32(signExtended<<2) + a

	case model.RelocMovwAbsNC:
		return movwImmediate(d)

	case model.RelocMovtAbs:
		return movwImmediate(d) << 16

	case model.RelocThmCall:
		d = thumbShuffle(d)
		upper := d >> 16
		lower := d & 0xFFFF

		sign := (upper >> 10) & 1
		imm10 := upper & 0x3FF
		j1 := (lower >> 13) & 1
		j2 := (lower >> 11) & 1
		imm11 := lower & 0x7FF

		i1 := notXor(j1, sign)
		i2 := notXor(j2, sign)

		assembled := imm11 | (imm10 << 11) | (i2 << 21) | (i1 << 22) | (sign << 23)
		value := assembled << 1
		if sign == 1 {
			value |= 0xFF000000
		}
		return value + a

	case model.RelocThmMovwAbsNC:
		d = thumbShuffle(d)
		return thmMovwImmediate(d)

	case model.RelocThmMovtAbs:
		d = thumbShuffle(d)
		return thmMovwImmediate(d) << 16

	default:
		return 0xDEADBEEF
	}
}

// movwImmediate extracts the 16-bit immediate split across the MOVW/MOVT
// A1 encoding's imm4 (bits 19:16) and imm12 (bits 11:0) fields.
func movwImmediate(d uint32) uint32 {
	return ((d & 0xF0000) >> 4) | (d & 0xFFF)
}

// thmMovwImmediate extracts the 16-bit immediate split across the Thumb-2
// MOVW/MOVT T3 encoding's imm4/i/imm3/imm8 fields.
func thmMovwImmediate(d uint32) uint32 {
	return (((d >> 16) & 0xF) << 12) | (((d >> 26) & 1) << 11) | (((d >> 12) & 7) << 8) | (d & 0xFF)
}

func notXor(a, b uint32) uint32 {
	if (a^b)&1 == 0 {
		return 1
	}
	return 0
}

// computeAddend subtracts the part of the symbol's value already
// encoded in the instruction from the decoded target, per relocation
// type. The low bits excluded here (the THUMB flag, or the half not
// targeted by a MOVW/MOVT pair) do not belong in the addend.
func computeAddend(t model.RelocType, target, symValue uint32) int32 {
	var adjusted uint32
	switch t {
	case model.RelocMovtAbs, model.RelocThmMovtAbs:
		adjusted = symValue & 0xFFFF0000
	case model.RelocMovwAbsNC, model.RelocThmMovwAbsNC:
		adjusted = symValue & 0x0000FFFF
	case model.RelocThmCall:
		adjusted = symValue & 0xFFFFFFFE
	default:
		adjusted = symValue
	}

	return int32(target - adjusted)
}
