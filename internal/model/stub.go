package model

import "github.com/retrovita/vitalink-core/internal/catalogue"

// StubKind distinguishes the two reserved stub sections.
type StubKind int

const (
	StubKindFunction StubKind = iota
	StubKindVariable
)

func (k StubKind) String() string {
	if k == StubKindVariable {
		return "variable"
	}
	return "function"
}

// Stub is one 16-byte import placeholder, identified by a
// (library, module, target) NID triple. SymbolIndex is set once the
// binder has located the symbol that names this stub; until then it is
// the sentinel NoSymbol and the stub is "unreferenced".
type Stub struct {
	Kind StubKind
	Addr uint32

	LibraryNID uint32
	ModuleNID  uint32
	TargetNID  uint32

	// SymbolIndex references Symbol.Index of the owning symbol, or
	// NoSymbol if no symbol in the table claims this stub.
	SymbolIndex uint32

	// Resolved weak references, attached by the import resolver. Nil
	// until resolution runs. The resolver sets all three together, only
	// once the library, module and target NIDs have all been found; if
	// any of them is missing, all three stay nil.
	Library catalogue.Library
	Module  catalogue.Module
	Target  catalogue.Target
}

// NoSymbol marks a Stub as unreferenced by any symbol.
const NoSymbol = ^uint32(0)

func (s *Stub) Unreferenced() bool {
	return s.SymbolIndex == NoSymbol
}

func (s *Stub) Resolved() bool {
	return s.Library != nil && s.Module != nil && s.Target != nil
}

// NewStub constructs a Stub with no bound symbol and no resolved
// references, as produced directly by the stub-section loader.
func NewStub(kind StubKind, addr, libraryNID, moduleNID, targetNID uint32) *Stub {
	return &Stub{
		Kind:        kind,
		Addr:        addr,
		LibraryNID:  libraryNID,
		ModuleNID:   moduleNID,
		TargetNID:   targetNID,
		SymbolIndex: NoSymbol,
	}
}
