// Package segment reserves one host virtual address range per loadable
// ELF segment and translates between guest and host addresses.
//
// The reserved ranges are never read or written: they exist purely as
// stable host-pointer values a downstream encoder can use as proxies for
// guest addresses during pointer arithmetic, per the design notes this
// spec is built from (anonymous PROT_NONE mappings, carved with no
// backing storage).
package segment

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/retrovita/vitalink-core/internal/elfimage"
	"github.com/retrovita/vitalink-core/internal/model"
)

var ErrReservationFailed = errors.New("failed to reserve host address space for segment")

// Map is the Binary's segment address-space map: one Segment per
// program header, with host ranges reserved for every segment of
// nonzero size.
type Map struct {
	segments []*model.Segment

	// backing holds the mmap'd regions backing each Segment's host
	// range, parallel to segments. An entry is nil for a zero-sized
	// segment, which reserves nothing.
	backing [][]byte
}

// Build reserves a disjoint host address range for every program header
// in ctx with nonzero memory size. On failure, every range reserved so
// far is released before the error is returned.
func Build(ctx *elfimage.Context) (*Map, error) {
	m := &Map{}

	for _, prog := range ctx.Progs {
		seg := &model.Segment{
			Type:  prog.Type,
			VAddr: uint32(prog.Vaddr),
			MemSz: uint32(prog.Memsz),
		}

		var backing []byte
		if seg.MemSz > 0 {
			region, err := unix.Mmap(-1, 0, int(seg.MemSz), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
			if err != nil {
				_ = m.Close()
				return nil, fmt.Errorf("segment at guest 0x%x size %d: %w: %v", seg.VAddr, seg.MemSz, ErrReservationFailed, err)
			}

			seg.HostBase = uintptr(unsafe.Pointer(&region[0]))
			seg.HostEnd = seg.HostBase + uintptr(seg.MemSz)
			backing = region
		}

		m.segments = append(m.segments, seg)
		m.backing = append(m.backing, backing)
	}

	return m, nil
}

// Close releases every reserved host address range. It is safe to call
// on a Map that failed to build completely, and safe to call more than
// once.
func (m *Map) Close() error {
	var firstErr error
	for _, region := range m.backing {
		if region == nil {
			continue
		}
		if err := unix.Munmap(region); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to release reserved host address range: %w", err)
		}
	}
	m.backing = nil
	return firstErr
}

// Segments returns every segment, in program-header order.
func (m *Map) Segments() []*model.Segment {
	return m.segments
}

// GuestToHost translates a guest virtual address to a host pointer,
// locating the unique segment whose guest range contains it.
func (m *Map) GuestToHost(vaddr uint32) (uintptr, bool) {
	for _, seg := range m.segments {
		if seg.Contains(vaddr) {
			return seg.HostBase + uintptr(vaddr-seg.VAddr), true
		}
	}
	return 0, false
}

// HostToGuest translates a host pointer back to a guest virtual address.
// A null or unmatched pointer yields zero.
func (m *Map) HostToGuest(ptr uintptr) uint32 {
	if ptr == 0 {
		return 0
	}
	for _, seg := range m.segments {
		if seg.ContainsHost(ptr) {
			return seg.VAddr + uint32(ptr-seg.HostBase)
		}
	}
	return 0
}

// HostToSegmentIndex locates the segment whose host range contains ptr.
func (m *Map) HostToSegmentIndex(ptr uintptr) (int, bool) {
	for i, seg := range m.segments {
		if seg.ContainsHost(ptr) {
			return i, true
		}
	}
	return -1, false
}

// HostToSegmentOffset returns ptr's offset within segment idx, without
// range-checking: the caller has already committed to idx.
func (m *Map) HostToSegmentOffset(ptr uintptr, idx int) uint32 {
	return uint32(ptr - m.segments[idx].HostBase)
}

// GuestToSegmentIndex locates the segment whose guest range contains
// vaddr. Segments marked as ARM exception-index tables are skipped in
// favour of any other segment containing the same address, since these
// ranges can alias a regular data segment in the source binary; only if
// no other segment matches does an exception-index segment win.
func (m *Map) GuestToSegmentIndex(vaddr uint32) (int, bool) {
	fallback := -1
	for i, seg := range m.segments {
		if !seg.Contains(vaddr) {
			continue
		}
		if seg.IsExceptionIndex() {
			if fallback == -1 {
				fallback = i
			}
			continue
		}
		return i, true
	}
	if fallback != -1 {
		return fallback, true
	}
	return -1, false
}

// GuestToSegmentOffset returns vaddr's offset within segment idx,
// without range-checking: the caller has already committed to idx,
// possibly via the fuzzy matching GuestToSegmentIndex performs.
func (m *Map) GuestToSegmentOffset(vaddr uint32, idx int) uint32 {
	return vaddr - m.segments[idx].VAddr
}
