// Package resolver resolves each stub's (library, module, target) NID
// triple against an ordered list of import catalogues.
package resolver

import (
	"github.com/retrovita/vitalink-core/internal/catalogue"
	"github.com/retrovita/vitalink-core/internal/diagnostic"
	"github.com/retrovita/vitalink-core/internal/model"
)

// Resolve attempts to resolve every stub in functions and variables
// against catalogues, in order: the first catalogue that contains a
// given library NID wins. Unresolved stubs produce a warning through
// sink, not a fatal error. Resolve reports whether every stub in both
// sets fully resolved.
func Resolve(functions, variables []*model.Stub, catalogues []catalogue.Catalogue, sink diagnostic.Sink) bool {
	allResolved := true

	for _, s := range functions {
		if !resolveOne(s, catalogues, sink) {
			allResolved = false
		}
	}
	for _, s := range variables {
		if !resolveOne(s, catalogues, sink) {
			allResolved = false
		}
	}

	return allResolved
}

func resolveOne(s *model.Stub, catalogues []catalogue.Catalogue, sink diagnostic.Sink) bool {
	var lib catalogue.Library
	found := false
	for _, c := range catalogues {
		if l, ok := c.Library(s.LibraryNID); ok {
			lib = l
			found = true
			break
		}
	}
	if !found {
		sink.Warnf("stub at 0x%x: no catalogue provides library NID 0x%08x", s.Addr, s.LibraryNID)
		return false
	}

	mod, ok := lib.Module(s.ModuleNID)
	if !ok {
		sink.Warnf("stub at 0x%x: library '%s' has no module NID 0x%08x", s.Addr, lib.Name(), s.ModuleNID)
		return false
	}

	var target catalogue.Target
	if s.Kind == model.StubKindFunction {
		target, ok = mod.TargetFunction(s.TargetNID)
	} else {
		target, ok = mod.TargetVariable(s.TargetNID)
	}
	if !ok {
		sink.Warnf("stub at 0x%x: module '%s' has no target NID 0x%08x", s.Addr, mod.Name(), s.TargetNID)
		return false
	}

	s.Library = lib
	s.Module = mod
	s.Target = target

	return true
}
