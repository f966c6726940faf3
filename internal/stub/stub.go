// Package stub parses the two reserved stub sections
// (.vitalink.fstubs, .vitalink.vstubs) into stub records.
package stub

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

const (
	// SectionFunctionStubs is the reserved name of the function-stub
	// section.
	SectionFunctionStubs = ".vitalink.fstubs"
	// SectionVariableStubs is the reserved name of the variable-stub
	// section.
	SectionVariableStubs = ".vitalink.vstubs"

	recordSize = 16
)

var (
	ErrDuplicateSection    = errors.New("reserved stub section appears more than once")
	ErrNotProgbits         = errors.New("stub section must be of type PROGBITS")
	ErrTruncatedStubSection = errors.New("stub section size is not a multiple of the record size")
)

// rawRecord is the on-disk layout of a stub entry. The first field is
// unused by this core: the in-memory Addr is derived from the section's
// base address plus the record's offset, per the spec.
type rawRecord struct {
	AddrOrZero uint32
	LibraryNID uint32
	ModuleNID  uint32
	TargetNID  uint32
}

// Set is the result of loading both stub sections: at least one of the
// two must be present (enforced by the caller, per the Binary
// invariant), but either may independently be absent.
type Set struct {
	Functions []*model.Stub
	Variables []*model.Stub

	// Section indices the stubs were loaded from, or -1 if that kind of
	// stub section was not present. Needed by the binder to match a
	// symbol's definition section against the right stub array.
	FunctionSectionIndex int
	VariableSectionIndex int
}

// Load scans ctx for the two reserved stub sections and parses whichever
// are present.
func Load(ctx *elfimage.Context) (*Set, error) {
	set := &Set{FunctionSectionIndex: -1, VariableSectionIndex: -1}

	functions, funcIndex, err := loadOne(ctx, SectionFunctionStubs, model.StubKindFunction)
	if err != nil {
		return nil, err
	}
	set.Functions = functions
	set.FunctionSectionIndex = funcIndex

	variables, varIndex, err := loadOne(ctx, SectionVariableStubs, model.StubKindVariable)
	if err != nil {
		return nil, err
	}
	set.Variables = variables
	set.VariableSectionIndex = varIndex

	return set, nil
}

func loadOne(ctx *elfimage.Context, name string, kind model.StubKind) ([]*model.Stub, int, error) {
	sections := ctx.SectionsByName(name)
	if len(sections) == 0 {
		return nil, -1, nil
	}
	if len(sections) > 1 {
		return nil, -1, fmt.Errorf("section '%s' appears %d times: %w", name, len(sections), ErrDuplicateSection)
	}

	section := sections[0]
	if section.Type != elf.SHT_PROGBITS {
		return nil, -1, fmt.Errorf("section '%s' has type %s: %w", name, section.Type, ErrNotProgbits)
	}

	data, err := section.Data()
	if err != nil {
		return nil, -1, fmt.Errorf("failed to read section '%s': %w", name, err)
	}

	if len(data)%recordSize != 0 {
		return nil, -1, fmt.Errorf("section '%s' has size %d: %w", name, len(data), ErrTruncatedStubSection)
	}

	opts := &struc.Options{Order: binary.LittleEndian}
	count := len(data) / recordSize
	stubs := make([]*model.Stub, 0, count)

	for i := 0; i < count; i++ {
		var raw rawRecord
		chunk := data[i*recordSize : (i+1)*recordSize]
		if err := struc.UnpackWithOptions(bytes.NewReader(chunk), &raw, opts); err != nil {
			return nil, -1, fmt.Errorf("failed to unpack stub record %d of '%s': %w", i, name, err)
		}

		addr := uint32(section.Addr) + uint32(i*recordSize)
		stubs = append(stubs, model.NewStub(kind, addr, raw.LibraryNID, raw.ModuleNID, raw.TargetNID))
	}

	return stubs, ctx.SectionIndex(section), nil
}
