package model

import "debug/elf"

// Segment describes one ELF program header entry plus the disjoint
// host address range reserved to stand in for its guest range.
type Segment struct {
	Type  elf.ProgType
	VAddr uint32
	MemSz uint32

	// HostBase/HostEnd are a reserved, never-dereferenced host address
	// range of exactly MemSz bytes: HostEnd - HostBase == MemSz. Both
	// are zero for segments with MemSz == 0 (nothing is reserved for
	// them).
	HostBase uintptr
	HostEnd  uintptr
}

// IsExceptionIndex reports whether this segment is an ARM exception
// index table (ARM.exidx, PT_ARM_EXIDX). Such segments can alias the
// guest range of an ordinary data segment; segment.Map.GuestToSegmentIndex
// passes over them so the data segment wins the tie.
func (s *Segment) IsExceptionIndex() bool {
	const ptARMExidx = elf.ProgType(0x70000001)
	return s.Type == ptARMExidx
}

// Contains reports whether vaddr falls within this segment's guest
// range. Zero-sized segments contain nothing.
func (s *Segment) Contains(vaddr uint32) bool {
	return s.MemSz > 0 && vaddr >= s.VAddr && vaddr < s.VAddr+s.MemSz
}

// ContainsHost reports whether ptr falls within this segment's reserved
// host range.
func (s *Segment) ContainsHost(ptr uintptr) bool {
	return s.MemSz > 0 && ptr >= s.HostBase && ptr < s.HostEnd
}
