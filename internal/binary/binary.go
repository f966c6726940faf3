// Package binary assembles the Binary root aggregate: it loads an ELF
// file once, through the symbol/stub loaders and the relocation
// decoder, binds stubs to symbols, resolves stubs against an import
// catalogue, and builds the segment address-space map. Everything it
// produces is read-only for the rest of the pipeline.
package binary

import (
	"debug/elf"
	"errors"
	"fmt"

	"github.com/retrovita/vitalink-core/internal/binder"
	"github.com/retrovita/vitalink-core/internal/catalogue"
	"github.com/retrovita/vitalink-core/internal/diagnostic"
	"github.com/retrovita/vitalink-core/internal/elfimage"
	"github.com/retrovita/vitalink-core/internal/model"
	"github.com/retrovita/vitalink-core/internal/reloc"
	"github.com/retrovita/vitalink-core/internal/resolver"
	"github.com/retrovita/vitalink-core/internal/segment"
	"github.com/retrovita/vitalink-core/internal/stub"
	"github.com/retrovita/vitalink-core/internal/symtab"
)

// forbiddenDebugRelocationSections names sections whose presence means
// debug info was not stripped from the binary. The runtime cannot
// process debug relocations; rather than fail deep inside the decoder,
// this is checked up front with a diagnostic that tells the caller what
// to do about it.
var forbiddenDebugRelocationSections = []string{
	".rel.debug_info",
	".rel.debug_arange",
	".rel.debug_line",
	".rel.debug_frame",
}

var (
	ErrDebugInfoPresent   = errors.New("binary contains debug relocation sections; strip debug info before loading")
	ErrNoSymbolTable      = errors.New("binary has no symbol table section")
	ErrMultipleSymbolTables = errors.New("binary has more than one symbol table section")
	ErrNoStubSections     = errors.New("binary has neither a function-stub nor a variable-stub section")
	ErrNoRelocationTables = errors.New("binary has no relocation tables")
)

// Binary is the loaded, validated, fully cross-referenced source
// binary. It is built once by Load and is read-only thereafter; Close
// releases everything it owns.
type Binary struct {
	ctx *elfimage.Context

	symbols []*model.Symbol
	stubs   *stub.Set

	relocationTables []*model.RelocationTable

	segments *segment.Map

	allImportsResolved bool
}

// Load opens path, validates it, and runs the full pipeline described in
// the component design: ELF reader, then (symbol loader, stub loader,
// relocation decoder), then binder, then resolver, then the segment map.
// On any fatal error, all partial state is released and (nil, err) is
// returned.
func Load(path string, catalogues []catalogue.Catalogue, sink diagnostic.Sink) (b *Binary, err error) {
	if sink == nil {
		sink = diagnostic.NopSink{}
	}

	ctx, err := elfimage.Open(path)
	if err != nil {
		return nil, err
	}

	bin := &Binary{ctx: ctx}
	defer func() {
		if err != nil {
			_ = bin.Close()
		}
	}()

	if err := checkNoDebugRelocations(ctx); err != nil {
		return nil, err
	}

	symbols, err := loadSymbols(ctx)
	if err != nil {
		return nil, err
	}
	bin.symbols = symbols

	stubs, err := stub.Load(ctx)
	if err != nil {
		return nil, err
	}
	if stubs.FunctionSectionIndex < 0 && stubs.VariableSectionIndex < 0 {
		return nil, ErrNoStubSections
	}
	bin.stubs = stubs

	tables, err := reloc.Decode(ctx, symbols, sink)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, ErrNoRelocationTables
	}
	bin.relocationTables = tables

	if err := binder.Bind(symbols, stubs, sink); err != nil {
		return nil, err
	}

	bin.allImportsResolved = resolver.Resolve(stubs.Functions, stubs.Variables, catalogues, sink)

	segments, err := segment.Build(ctx)
	if err != nil {
		return nil, err
	}
	bin.segments = segments

	return bin, nil
}

func checkNoDebugRelocations(ctx *elfimage.Context) error {
	for _, name := range forbiddenDebugRelocationSections {
		if ctx.SectionByName(name) != nil {
			return fmt.Errorf("found section '%s': %w", name, ErrDebugInfoPresent)
		}
	}
	return nil
}

func loadSymbols(ctx *elfimage.Context) ([]*model.Symbol, error) {
	symtabSections := ctx.SectionsOfType(elf.SHT_SYMTAB)
	if len(symtabSections) == 0 {
		return nil, ErrNoSymbolTable
	}
	if len(symtabSections) > 1 {
		return nil, ErrMultipleSymbolTables
	}

	loader := symtab.NewLoader()
	return loader.Load(ctx, symtabSections[0], ctx.SectionIndex(symtabSections[0]))
}

// Close releases the underlying ELF handle and every reserved host
// address range. It is safe to call on a partially constructed Binary.
func (b *Binary) Close() error {
	var firstErr error

	if b.segments != nil {
		if err := b.segments.Close(); err != nil {
			firstErr = err
		}
		b.segments = nil
	}

	if b.ctx != nil {
		if err := b.ctx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close ELF file: %w", err)
		}
		b.ctx = nil
	}

	return firstErr
}

// Symbols returns the dense symbol array, indexed by symbol number.
func (b *Binary) Symbols() []*model.Symbol { return b.symbols }

// NumSymbols returns len(Symbols()).
func (b *Binary) NumSymbols() int { return len(b.symbols) }

// FunctionStubs returns the parsed function-stub records, or nil if the
// binary had no function-stub section.
func (b *Binary) FunctionStubs() []*model.Stub { return b.stubs.Functions }

// VariableStubs returns the parsed variable-stub records, or nil if the
// binary had no variable-stub section.
func (b *Binary) VariableStubs() []*model.Stub { return b.stubs.Variables }

// RelocationTables returns every relocation table, in file order (the
// order a downstream encoder must iterate them in).
func (b *Binary) RelocationTables() []*model.RelocationTable { return b.relocationTables }

// Segments returns the segment descriptors, in program-header order.
func (b *Binary) Segments() []*model.Segment { return b.segments.Segments() }

// AllImportsResolved reports whether every stub resolved fully against
// the supplied import catalogues.
func (b *Binary) AllImportsResolved() bool { return b.allImportsResolved }

// GuestToHost translates a guest virtual address to a host pointer.
func (b *Binary) GuestToHost(vaddr uint32) (uintptr, bool) { return b.segments.GuestToHost(vaddr) }

// HostToGuest translates a host pointer to a guest virtual address.
func (b *Binary) HostToGuest(ptr uintptr) uint32 { return b.segments.HostToGuest(ptr) }

// HostToSegmentIndex locates the segment containing a host pointer.
func (b *Binary) HostToSegmentIndex(ptr uintptr) (int, bool) {
	return b.segments.HostToSegmentIndex(ptr)
}

// HostToSegmentOffset returns a host pointer's offset within segment idx.
func (b *Binary) HostToSegmentOffset(ptr uintptr, idx int) uint32 {
	return b.segments.HostToSegmentOffset(ptr, idx)
}

// GuestToSegmentIndex locates the segment containing a guest address,
// preferring a non-exception-index segment on alias.
func (b *Binary) GuestToSegmentIndex(vaddr uint32) (int, bool) {
	return b.segments.GuestToSegmentIndex(vaddr)
}

// GuestToSegmentOffset returns a guest address's offset within segment
// idx, without range-checking.
func (b *Binary) GuestToSegmentOffset(vaddr uint32, idx int) uint32 {
	return b.segments.GuestToSegmentOffset(vaddr, idx)
}
