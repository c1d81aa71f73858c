// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import "strings"

// Section headers describe link-time and debug-time regions: symbol
// tables, string tables, the .debug_* sections. Pure core files do not
// carry them.

// SectionType is the section header type tag.
type SectionType uint32

const (
	SecNull SectionType = iota
	SecProgBits
	SecSymbolTable
	SecStringTable
	SecRelocationsWith // relocations with addends
	SecSymbolHashTable
	SecDynamic
	SecNote
	SecNoBits
	SecRelocationsWithout // relocations without addends
	_
	SecDynamicSymbolTable
	SecInitArray    SectionType = 0xe
	SecFiniArray    SectionType = 0xf
	SecPreinitArray SectionType = 0x10
	SecGnuHash      SectionType = 0x6ffffff6
	SecVerDef       SectionType = 0x6ffffffd
	SecVerNeed      SectionType = 0x6ffffffe
	SecVerSym       SectionType = 0x6fffffff
)

func (t SectionType) String() string {
	switch t {
	case SecNull:
		return "null"
	case SecProgBits:
		return "progbits"
	case SecSymbolTable:
		return "symtab"
	case SecStringTable:
		return "strtab"
	case SecRelocationsWith:
		return "rela"
	case SecSymbolHashTable:
		return "hash"
	case SecDynamic:
		return "dynamic"
	case SecNote:
		return "note"
	case SecNoBits:
		return "nobits"
	case SecRelocationsWithout:
		return "rel"
	case SecDynamicSymbolTable:
		return "dynsym"
	case SecInitArray:
		return "init_array"
	case SecFiniArray:
		return "fini_array"
	case SecPreinitArray:
		return "preinit_array"
	case SecGnuHash:
		return "gnu_hash"
	case SecVerDef:
		return "verdef"
	case SecVerNeed:
		return "verneed"
	case SecVerSym:
		return "versym"
	}
	return "unknown"
}

// sectionTypeFromU32 maps a raw sh_type. Unknown values map to SecNull
// with known=false so the caller can log and continue.
func sectionTypeFromU32(value uint32) (SectionType, bool) {
	switch SectionType(value) {
	case SecNull, SecProgBits, SecSymbolTable, SecStringTable,
		SecRelocationsWith, SecSymbolHashTable, SecDynamic, SecNote,
		SecNoBits, SecRelocationsWithout, SecDynamicSymbolTable,
		SecInitArray, SecFiniArray, SecPreinitArray,
		SecGnuHash, SecVerDef, SecVerNeed, SecVerSym:
		return SectionType(value), true
	}
	return SecNull, false
}

// SectionHeader is one decoded section header table entry.
type SectionHeader struct {
	// Name indexes the section-name string table. Zero means no name.
	Name uint32

	Type  SectionType
	Flags uint64

	// OBytes addresses the section's bytes by file offset; VBytes by
	// the virtual address the section occupies at execution (zero for
	// non-allocated sections).
	OBytes Range[Offset]
	VBytes Range[VirtualAddr]

	// Link and Info cross-reference related sections; a symbol table's
	// Link is its string table.
	Link uint32
	Info uint32

	Align uint64

	// EntrySize is set when the section holds a table of fixed-size
	// entries.
	EntrySize uint64
}

// DecodeSectionHeader decodes the entry at offset. As with program
// headers the 32- and 64-bit encodings differ in field widths.
func DecodeSectionHeader(r *Reader, offset Offset) (SectionHeader, error) {
	var sh SectionHeader
	c := NewCursor(r, offset)

	var err error
	if sh.Name, err = c.Word(); err != nil {
		return sh, err
	}
	raw, err := c.Word()
	if err != nil {
		return sh, err
	}
	sh.Type, _ = sectionTypeFromU32(raw)

	var size uint64
	if r.SixtyFourBit {
		if sh.Flags, err = c.Xword(); err != nil {
			return sh, err
		}
		vaddr, err := c.Addr()
		if err != nil {
			return sh, err
		}
		off, err := c.Off()
		if err != nil {
			return sh, err
		}
		if size, err = c.Xword(); err != nil {
			return sh, err
		}
		sh.OBytes = Range[Offset]{Start: Offset(off), Size: size}
		sh.VBytes = Range[VirtualAddr]{Start: VirtualAddr(vaddr), Size: size}
		if sh.Link, err = c.Word(); err != nil {
			return sh, err
		}
		if sh.Info, err = c.Word(); err != nil {
			return sh, err
		}
		if sh.Align, err = c.Xword(); err != nil {
			return sh, err
		}
		sh.EntrySize, err = c.Xword()
		return sh, err
	}

	flags, err := c.Word()
	if err != nil {
		return sh, err
	}
	sh.Flags = uint64(flags)
	vaddr, err := c.Addr()
	if err != nil {
		return sh, err
	}
	off, err := c.Off()
	if err != nil {
		return sh, err
	}
	size32, err := c.Word()
	if err != nil {
		return sh, err
	}
	size = uint64(size32)
	sh.OBytes = Range[Offset]{Start: Offset(off), Size: size}
	sh.VBytes = Range[VirtualAddr]{Start: VirtualAddr(vaddr), Size: size}
	if sh.Link, err = c.Word(); err != nil {
		return sh, err
	}
	if sh.Info, err = c.Word(); err != nil {
		return sh, err
	}
	align, err := c.Word()
	if err != nil {
		return sh, err
	}
	sh.Align = uint64(align)
	esize, err := c.Word()
	if err != nil {
		return sh, err
	}
	sh.EntrySize = uint64(esize)
	return sh, nil
}

var sectionFlagNames = []struct {
	mask uint64
	name string
}{
	{1 << 0, "WRITE"},
	{1 << 1, "ALLOC"},
	{1 << 2, "EXEC"},
	{1 << 4, "MERGE"},
	{1 << 5, "STRINGS"},
	{1 << 6, "INFO"},
	{1 << 7, "LINK"},
	{1 << 8, "OS_NONCONFORMING"},
	{1 << 9, "GROUP"},
	{1 << 10, "TLS"},
	{1 << 11, "COMPRESSED"},
	{0x0ff00000, "MASKOS"},
	{0xf0000000, "MASKPROC"},
}

// SectionFlagString renders section flags as a space-separated list of
// names, or "none".
func SectionFlagString(flags uint64) string {
	var names []string
	for _, f := range sectionFlagNames {
		if flags&f.mask != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}
