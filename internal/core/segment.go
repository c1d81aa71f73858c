// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

// Program headers describe segments: the regions the kernel and the
// runtime loader care about. For a core file the Load segments are the
// dumped memory images and the Note segments hold process metadata.

const (
	segExec  = 0x1
	segWrite = 0x2
	segRead  = 0x4
)

// SegmentType is the program header type tag.
type SegmentType uint32

const (
	SegNull SegmentType = iota
	SegLoad
	SegDynamic
	SegInterpreter
	SegNote
	SegShlib
	SegPhdr
	SegTls
)

func (t SegmentType) String() string {
	switch t {
	case SegNull:
		return "null"
	case SegLoad:
		return "load"
	case SegDynamic:
		return "dynamic"
	case SegInterpreter:
		return "interpreter"
	case SegNote:
		return "note"
	case SegShlib:
		return "shlib"
	case SegPhdr:
		return "phdr"
	case SegTls:
		return "tls"
	}
	return "unknown"
}

// segmentTypeFromU32 maps a raw p_type. Reserved OS/processor ranges
// map to SegNull; a genuinely unknown value also maps to SegNull with
// known=false so the caller can log it and keep going.
func segmentTypeFromU32(value uint32) (SegmentType, bool) {
	switch {
	case value <= 7:
		return SegmentType(value), true
	case value >= 0x60000000:
		// OS-specific, processor-specific and future-use ranges.
		return SegNull, true
	}
	return SegNull, false
}

// A ProgramHeader is one decoded program header table entry. Most
// callers want LoadSegment or Note instead.
type ProgramHeader struct {
	Type     SegmentType
	RawType  uint32
	Offset   Offset
	Vaddr    VirtualAddr
	Paddr    uint64
	FileSize uint64
	MemSize  uint64
	Flags    uint32
}

// DecodeProgramHeader decodes the entry at offset. The field order and
// widths differ between the 32- and 64-bit encodings: 64-bit moves the
// flags word up ahead of the offset.
func DecodeProgramHeader(r *Reader, offset Offset) (ProgramHeader, error) {
	var ph ProgramHeader
	c := NewCursor(r, offset)

	raw, err := c.Word()
	if err != nil {
		return ph, err
	}
	ph.RawType = raw
	ph.Type, _ = segmentTypeFromU32(raw)

	if r.SixtyFourBit {
		if ph.Flags, err = c.Word(); err != nil {
			return ph, err
		}
		off, err := c.Off()
		if err != nil {
			return ph, err
		}
		ph.Offset = Offset(off)
		vaddr, err := c.Addr()
		if err != nil {
			return ph, err
		}
		ph.Vaddr = VirtualAddr(vaddr)
		if ph.Paddr, err = c.Addr(); err != nil {
			return ph, err
		}
		if ph.FileSize, err = c.Xword(); err != nil {
			return ph, err
		}
		if ph.MemSize, err = c.Xword(); err != nil {
			return ph, err
		}
		_, err = c.Xword() // p_align
		return ph, err
	}

	off, err := c.Off()
	if err != nil {
		return ph, err
	}
	ph.Offset = Offset(off)
	vaddr, err := c.Addr()
	if err != nil {
		return ph, err
	}
	ph.Vaddr = VirtualAddr(vaddr)
	if ph.Paddr, err = c.Addr(); err != nil {
		return ph, err
	}
	fsize, err := c.Word()
	if err != nil {
		return ph, err
	}
	ph.FileSize = uint64(fsize)
	msize, err := c.Word()
	if err != nil {
		return ph, err
	}
	ph.MemSize = uint64(msize)
	if ph.Flags, err = c.Word(); err != nil {
		return ph, err
	}
	_, err = c.Word() // p_align
	return ph, err
}

// FlagString renders segment permission flags as "rwx" with dashes for
// missing permissions.
func FlagString(flags uint32) string {
	s := [3]byte{'-', '-', '-'}
	if flags&segRead != 0 {
		s[0] = 'r'
	}
	if flags&segWrite != 0 {
		s[1] = 'w'
	}
	if flags&segExec != 0 {
		s[2] = 'x'
	}
	return string(s[:])
}

// A LoadSegment is a loadable region with two congruent views of the
// same bytes: OBytes addresses them by file offset, VBytes by the
// virtual address they occupied in the inferior. The two ranges always
// share one size and are linearly related.
type LoadSegment struct {
	OBytes Range[Offset]
	VBytes Range[VirtualAddr]
	Flags  uint32
}

// ToOffset translates a virtual address to the file offset holding its
// byte. It is defined only while vaddr is inside the segment.
func (s *LoadSegment) ToOffset(vaddr VirtualAddr) (Offset, bool) {
	if !s.VBytes.Contains(vaddr) {
		return 0, false
	}
	delta := uint64(vaddr - s.VBytes.Start)
	return s.OBytes.Start + Offset(delta), true
}

// ToVaddr is the inverse of ToOffset, defined only while offset is
// inside the segment.
func (s *LoadSegment) ToVaddr(offset Offset) (VirtualAddr, bool) {
	if !s.OBytes.Contains(offset) {
		return 0, false
	}
	delta := uint64(offset - s.OBytes.Start)
	return s.VBytes.Start + VirtualAddr(delta), true
}

func (s *LoadSegment) Readable() bool   { return s.Flags&segRead != 0 }
func (s *LoadSegment) Writeable() bool  { return s.Flags&segWrite != 0 }
func (s *LoadSegment) Executable() bool { return s.Flags&segExec != 0 }

// FlagString renders the segment's permissions as "rwx".
func (s *LoadSegment) FlagString() string {
	return FlagString(s.Flags)
}
