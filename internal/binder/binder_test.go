package binder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrovita/vitalink-core/internal/binder"
	"github.com/retrovita/vitalink-core/internal/diagnostic"
	"github.com/retrovita/vitalink-core/internal/model"
	"github.com/retrovita/vitalink-core/internal/stub"
)

func newSet(functions []*model.Stub) *stub.Set {
	return &stub.Set{
		Functions:            functions,
		FunctionSectionIndex: 3,
		VariableSectionIndex: -1,
	}
}

func TestBindAttachesMatchingSymbol(t *testing.T) {
	s := model.NewStub(model.StubKindFunction, 0x1000, 1, 2, 3)
	set := newSet([]*model.Stub{s})

	symbols := []*model.Symbol{
		{Index: 0, Name: "sceKernelExitProcess", Value: 0x1000, Type: model.SymTypeFunction, Bind: model.SymBindGlobal, SectionIndex: 3},
	}

	sink := &diagnostic.CollectingSink{}
	require.NoError(t, binder.Bind(symbols, set, sink))

	assert.False(t, s.Unreferenced())
	assert.Equal(t, uint32(0), s.SymbolIndex)
	assert.Empty(t, sink.Warnings)
}

func TestBindWarnsAboutUnreferencedStub(t *testing.T) {
	s := model.NewStub(model.StubKindFunction, 0x1000, 1, 2, 3)
	set := newSet([]*model.Stub{s})

	sink := &diagnostic.CollectingSink{}
	require.NoError(t, binder.Bind(nil, set, sink))

	assert.True(t, s.Unreferenced())
	require.Len(t, sink.Warnings, 1)
}

func TestBindRejectsOrphanedSymbol(t *testing.T) {
	set := newSet(nil)
	symbols := []*model.Symbol{
		{Index: 0, Name: "ghost", Value: 0x1234, Type: model.SymTypeFunction, Bind: model.SymBindGlobal, SectionIndex: 3},
	}

	err := binder.Bind(symbols, set, &diagnostic.CollectingSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, binder.ErrOrphanedSymbol)
}

func TestBindRejectsDuplicateClaim(t *testing.T) {
	s := model.NewStub(model.StubKindFunction, 0x1000, 1, 2, 3)
	set := newSet([]*model.Stub{s})

	symbols := []*model.Symbol{
		{Index: 0, Name: "a", Value: 0x1000, Type: model.SymTypeFunction, Bind: model.SymBindGlobal, SectionIndex: 3},
		{Index: 1, Name: "b", Value: 0x1000, Type: model.SymTypeFunction, Bind: model.SymBindGlobal, SectionIndex: 3},
	}

	err := binder.Bind(symbols, set, &diagnostic.CollectingSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, binder.ErrDuplicateBinding)
}

func TestBindRejectsTypeMismatch(t *testing.T) {
	s := model.NewStub(model.StubKindFunction, 0x1000, 1, 2, 3)
	set := newSet([]*model.Stub{s})

	symbols := []*model.Symbol{
		{Index: 0, Name: "notAFunction", Value: 0x1000, Type: model.SymTypeObject, Bind: model.SymBindGlobal, SectionIndex: 3},
	}

	err := binder.Bind(symbols, set, &diagnostic.CollectingSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, binder.ErrTypeMismatch)
}

func TestBindIgnoresLocalSymbolsAndOtherSections(t *testing.T) {
	s := model.NewStub(model.StubKindFunction, 0x1000, 1, 2, 3)
	set := newSet([]*model.Stub{s})

	symbols := []*model.Symbol{
		{Index: 0, Name: "local", Value: 0x1000, Type: model.SymTypeFunction, Bind: model.SymBindLocal, SectionIndex: 3},
		{Index: 1, Name: "elsewhere", Value: 0x1000, Type: model.SymTypeFunction, Bind: model.SymBindGlobal, SectionIndex: 9},
	}

	sink := &diagnostic.CollectingSink{}
	require.NoError(t, binder.Bind(symbols, set, sink))
	assert.True(t, s.Unreferenced(), "neither symbol qualifies for binding")
}
