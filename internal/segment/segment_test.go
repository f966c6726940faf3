package segment_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrovita/vitalink-core/internal/elfimage"
	"github.com/retrovita/vitalink-core/internal/elftest"
	"github.com/retrovita/vitalink-core/internal/segment"
)

func openFixture(t *testing.T, b *elftest.Builder) *elfimage.Context {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.elf")
	require.NoError(t, os.WriteFile(path, b.Build(), 0o644))
	ctx, err := elfimage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func TestBuildReservesOneRangePerSegment(t *testing.T) {
	b := elftest.NewBuilder()
	b.AddSegment(elftest.Segment{Type: 1, VAddr: 0x8000, MemSz: 0x1000})
	b.AddSegment(elftest.Segment{Type: 1, VAddr: 0x9000, MemSz: 0x2000})
	ctx := openFixture(t, b)

	m, err := segment.Build(ctx)
	require.NoError(t, err)
	defer m.Close()

	segs := m.Segments()
	require.Len(t, segs, 2)
	assert.NotZero(t, segs[0].HostBase)
	assert.Equal(t, segs[0].HostBase+0x1000, segs[0].HostEnd)
	assert.NotZero(t, segs[1].HostBase)
}

func TestZeroSizedSegmentReservesNothing(t *testing.T) {
	b := elftest.NewBuilder()
	b.AddSegment(elftest.Segment{Type: 1, VAddr: 0x8000, MemSz: 0})
	ctx := openFixture(t, b)

	m, err := segment.Build(ctx)
	require.NoError(t, err)
	defer m.Close()

	segs := m.Segments()
	require.Len(t, segs, 1)
	assert.Zero(t, segs[0].HostBase)
	assert.Zero(t, segs[0].HostEnd)
}

func TestGuestHostRoundTrip(t *testing.T) {
	b := elftest.NewBuilder()
	b.AddSegment(elftest.Segment{Type: 1, VAddr: 0x8000, MemSz: 0x1000})
	ctx := openFixture(t, b)

	m, err := segment.Build(ctx)
	require.NoError(t, err)
	defer m.Close()

	host, ok := m.GuestToHost(0x8010)
	require.True(t, ok)

	back := m.HostToGuest(host)
	assert.Equal(t, uint32(0x8010), back)

	idx, ok := m.HostToSegmentIndex(host)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, uint32(0x10), m.HostToSegmentOffset(host, idx))

	_, ok = m.GuestToHost(0x9000)
	assert.False(t, ok, "address outside every segment should not translate")
}

func TestGuestToSegmentIndexPrefersNonExceptionSegment(t *testing.T) {
	const ptARMExidx = 0x70000001

	b := elftest.NewBuilder()
	b.AddSegment(elftest.Segment{Type: ptARMExidx, VAddr: 0x8000, MemSz: 0x100})
	b.AddSegment(elftest.Segment{Type: 1, VAddr: 0x8000, MemSz: 0x100})
	ctx := openFixture(t, b)

	m, err := segment.Build(ctx)
	require.NoError(t, err)
	defer m.Close()

	idx, ok := m.GuestToSegmentIndex(0x8010)
	require.True(t, ok)
	assert.Equal(t, 1, idx, "the non-exception-index segment should win the alias")
}

func TestCloseIsIdempotent(t *testing.T) {
	b := elftest.NewBuilder()
	b.AddSegment(elftest.Segment{Type: 1, VAddr: 0x8000, MemSz: 0x1000})
	ctx := openFixture(t, b)

	m, err := segment.Build(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
