// Package binder attaches each global function/object symbol defined in
// a stub section to the stub record at its address.
package binder

import (
	"errors"
	"fmt"

	"github.com/retrovita/vitalink-core/internal/diagnostic"
	"github.com/retrovita/vitalink-core/internal/model"
	"github.com/retrovita/vitalink-core/internal/stub"
)

var (
	ErrTypeMismatch     = errors.New("symbol type does not match stub section kind")
	ErrDuplicateBinding = errors.New("two symbols claim the same stub")
	ErrOrphanedSymbol   = errors.New("qualifying symbol's value does not correspond to any stub")
)

// Bind walks the symbol table once for each stub kind present in set,
// attaching qualifying symbols to their stub record. Stubs left with no
// matching symbol are permitted, and are reported through sink as
// unreferenced.
func Bind(symbols []*model.Symbol, set *stub.Set, sink diagnostic.Sink) error {
	if set.FunctionSectionIndex >= 0 {
		if err := bindKind(symbols, set.Functions, set.FunctionSectionIndex, model.SymTypeFunction, sink); err != nil {
			return err
		}
	}
	if set.VariableSectionIndex >= 0 {
		if err := bindKind(symbols, set.Variables, set.VariableSectionIndex, model.SymTypeObject, sink); err != nil {
			return err
		}
	}
	return nil
}

func bindKind(symbols []*model.Symbol, stubs []*model.Stub, sectionIndex int, wantType model.SymType, sink diagnostic.Sink) error {
	byAddr := make(map[uint32]*model.Stub, len(stubs))
	for _, s := range stubs {
		byAddr[s.Addr] = s
	}

	for _, sym := range symbols {
		if sym.Bind != model.SymBindGlobal {
			continue
		}
		if int(sym.SectionIndex) != sectionIndex {
			continue
		}
		if sym.Type != model.SymTypeFunction && sym.Type != model.SymTypeObject {
			continue
		}

		if sym.Type != wantType {
			return fmt.Errorf("symbol '%s' is %s but is defined in a %s stub section: %w",
				sym.Name, sym.Type, wantType, ErrTypeMismatch)
		}

		target, ok := byAddr[sym.Value]
		if !ok {
			return fmt.Errorf("symbol '%s' at 0x%x has no corresponding stub record: %w",
				sym.Name, sym.Value, ErrOrphanedSymbol)
		}

		if target.SymbolIndex != model.NoSymbol {
			return fmt.Errorf("stub at 0x%x is claimed by both symbol index %d and symbol '%s': %w",
				target.Addr, target.SymbolIndex, sym.Name, ErrDuplicateBinding)
		}

		target.SymbolIndex = sym.Index
	}

	for _, s := range stubs {
		if s.Unreferenced() {
			sink.Warnf("stub at 0x%x (%s) is unreferenced by any symbol", s.Addr, s.Kind)
		}
	}

	return nil
}
