package model

// RelocType is one of the ARM relocation kinds this core understands.
// Numeric values intentionally match the ARM ELF ABI's r_type encoding,
// so a raw type value extracted from r_info can be cast directly.
type RelocType uint32

const (
	RelocNone         RelocType = 0
	RelocAbs32        RelocType = 2
	RelocRel32        RelocType = 3
	RelocThmCall      RelocType = 10 // aka R_ARM_THM_PC22 in some toolchains
	RelocCall         RelocType = 28
	RelocJump24       RelocType = 29
	RelocThmJump24    RelocType = 30 // normalised to RelocThmCall before storage
	RelocTarget1      RelocType = 38
	RelocV4Bx         RelocType = 40
	RelocTarget2      RelocType = 41
	RelocPrel31       RelocType = 42
	RelocMovwAbsNC    RelocType = 43
	RelocMovtAbs      RelocType = 44
	RelocThmMovwAbsNC RelocType = 47
	RelocThmMovtAbs   RelocType = 48
	RelocThmPC11      RelocType = 102 // skipped entirely, never stored
)

func (t RelocType) String() string {
	switch t {
	case RelocNone:
		return "R_ARM_NONE"
	case RelocAbs32:
		return "R_ARM_ABS32"
	case RelocRel32:
		return "R_ARM_REL32"
	case RelocThmCall:
		return "R_ARM_THM_CALL"
	case RelocCall:
		return "R_ARM_CALL"
	case RelocJump24:
		return "R_ARM_JUMP24"
	case RelocThmJump24:
		return "R_ARM_THM_JUMP24"
	case RelocTarget1:
		return "R_ARM_TARGET1"
	case RelocV4Bx:
		return "R_ARM_V4BX"
	case RelocTarget2:
		return "R_ARM_TARGET2"
	case RelocPrel31:
		return "R_ARM_PREL31"
	case RelocMovwAbsNC:
		return "R_ARM_MOVW_ABS_NC"
	case RelocMovtAbs:
		return "R_ARM_MOVT_ABS"
	case RelocThmMovwAbsNC:
		return "R_ARM_THM_MOVW_ABS_NC"
	case RelocThmMovtAbs:
		return "R_ARM_THM_MOVT_ABS"
	case RelocThmPC11:
		return "R_ARM_THM_PC11"
	default:
		return "R_ARM_UNKNOWN"
	}
}

// RelocClass is the outcome of classifying a raw relocation type.
type RelocClass int

const (
	// RelocClassNormal entries carry a decoded addend and a bound symbol.
	RelocClassNormal RelocClass = iota
	// RelocClassIgnore entries (R_ARM_NONE, R_ARM_V4BX) are recorded with an
	// offset only; they carry no addend and are not processed further.
	RelocClassIgnore
)

// RelocationEntry is one normalised relocation, ready for the
// downstream encoder to re-emit in the runtime's own encoding.
type RelocationEntry struct {
	// Offset is the entry's r_offset as stored in the file: the guest
	// virtual address of the relocated word inside the target section.
	Offset uint32

	Type  RelocType
	Class RelocClass

	// SymbolIndex references Symbol.Index in the Binary's symbol table.
	// Meaningless (zero) for RelocClassIgnore entries.
	SymbolIndex uint32

	// Addend is reconstructed from the instruction bytes, not read from
	// the file. Meaningless (zero) for RelocClassIgnore entries.
	Addend int32
}

// RelocationTable is the set of relocations targeting one section,
// threaded in file order through the Binary's chain.
type RelocationTable struct {
	// SectionIndex is the ELF section index these relocations apply to
	// (the REL section's sh_info field).
	SectionIndex int

	Entries []*RelocationEntry
}
