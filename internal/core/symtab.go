// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// SymbolBinding is the linkage scope packed in the high nibble of a
// symbol's info byte.
type SymbolBinding uint8

const (
	BindLocal  SymbolBinding = 0
	BindGlobal SymbolBinding = 1
	BindWeak   SymbolBinding = 2
)

func (b SymbolBinding) String() string {
	switch b {
	case BindLocal:
		return "local"
	case BindGlobal:
		return "global"
	case BindWeak:
		return "weak"
	case 10, 12, 13, 15:
		return "reserved"
	}
	return fmt.Sprintf("binding %d", uint8(b))
}

// SymbolType is the symbol kind packed in the low nibble of the info
// byte.
type SymbolType uint8

const (
	SymNone SymbolType = iota
	SymObject
	SymFunc
	SymSection
	SymFile
	SymCommon
	SymTls
)

func (t SymbolType) String() string {
	switch t {
	case SymNone:
		return "none"
	case SymObject:
		return "object"
	case SymFunc:
		return "func"
	case SymSection:
		return "section"
	case SymFile:
		return "file"
	case SymCommon:
		return "common"
	case SymTls:
		return "tls"
	}
	return fmt.Sprintf("type %d", uint8(t))
}

// SymbolVisibility is the low two bits of the other byte.
type SymbolVisibility uint8

const (
	VisDefault SymbolVisibility = iota
	VisInternal
	VisHidden
	VisProtected
)

func (v SymbolVisibility) String() string {
	switch v {
	case VisDefault:
		return "default"
	case VisInternal:
		return "internal"
	case VisHidden:
		return "hidden"
	case VisProtected:
		return "protected"
	}
	return fmt.Sprintf("visibility %d", uint8(v))
}

// SymbolIndexKind classifies a symbol's section index field.
type SymbolIndexKind uint8

const (
	IndexSection SymbolIndexKind = iota
	IndexUndefined
	IndexAbsolute
	IndexCommon
	IndexExtended
)

// SymbolIndex is a symbol's home section, or one of the special
// markers the index field can encode instead.
type SymbolIndex struct {
	Kind    SymbolIndexKind
	Section uint16
}

func (i SymbolIndex) String() string {
	switch i.Kind {
	case IndexUndefined:
		return "undef"
	case IndexAbsolute:
		return "abs"
	case IndexCommon:
		return "common"
	case IndexExtended:
		return "xindex"
	}
	return fmt.Sprintf("%d", i.Section)
}

func symbolIndexFromU16(value uint16) SymbolIndex {
	switch value {
	case 0:
		return SymbolIndex{Kind: IndexUndefined}
	case 0xfff1:
		return SymbolIndex{Kind: IndexAbsolute}
	case 0xfff2:
		return SymbolIndex{Kind: IndexCommon}
	case 0xffff:
		return SymbolIndex{Kind: IndexExtended}
	}
	return SymbolIndex{Kind: IndexSection, Section: value}
}

// SymbolTableEntry is one decoded symbol.
type SymbolTableEntry struct {
	// Name indexes the table's linked string table. Zero means
	// nameless.
	Name uint32

	Value VirtualAddr
	Size  uint64

	Binding    SymbolBinding
	Type       SymbolType
	Visibility SymbolVisibility
	Index      SymbolIndex
}

// SymbolTable is one decoded symtab or dynsym section.
type SymbolTable struct {
	// Section is the index of the section the table was decoded from.
	Section int

	// Dynamic is true for dynsym tables.
	Dynamic bool

	// StrTable is the section index of the linked string table.
	StrTable int

	Entries []SymbolTableEntry
}

// decodeSymbolEntry decodes a single symbol table entry at offset. The
// 32- and 64-bit encodings order the fields differently.
func decodeSymbolEntry(r *Reader, offset Offset) (SymbolTableEntry, error) {
	var e SymbolTableEntry
	c := NewCursor(r, offset)

	var info, other uint8
	var shndx uint16
	var err error

	if e.Name, err = c.Word(); err != nil {
		return e, err
	}
	if r.SixtyFourBit {
		if info, err = c.Byte(); err != nil {
			return e, err
		}
		if other, err = c.Byte(); err != nil {
			return e, err
		}
		if shndx, err = c.Half(); err != nil {
			return e, err
		}
		value, err := c.Addr()
		if err != nil {
			return e, err
		}
		e.Value = VirtualAddr(value)
		if e.Size, err = c.Xword(); err != nil {
			return e, err
		}
	} else {
		value, err := c.Addr()
		if err != nil {
			return e, err
		}
		e.Value = VirtualAddr(value)
		size, err := c.Word()
		if err != nil {
			return e, err
		}
		e.Size = uint64(size)
		if info, err = c.Byte(); err != nil {
			return e, err
		}
		if other, err = c.Byte(); err != nil {
			return e, err
		}
		if shndx, err = c.Half(); err != nil {
			return e, err
		}
	}

	e.Binding = SymbolBinding(info >> 4)
	e.Type = SymbolType(info & 0xf)
	e.Visibility = SymbolVisibility(other & 3)
	e.Index = symbolIndexFromU16(shndx)
	return e, nil
}

// decodeSymbolTable decodes the symbol section at index section.
func decodeSymbolTable(r *Reader, sections []SectionHeader, section int) (*SymbolTable, error) {
	sh := sections[section]
	table := &SymbolTable{
		Section:  section,
		Dynamic:  sh.Type == SecDynamicSymbolTable,
		StrTable: int(sh.Link),
	}

	esize := sh.EntrySize
	if esize == 0 {
		return nil, errors.Errorf("symbol section %d has zero entry size", section)
	}
	count := sh.OBytes.Size / esize
	table.Entries = make([]SymbolTableEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		e, err := decodeSymbolEntry(r, sh.OBytes.Start+Offset(i*esize))
		if err != nil {
			return nil, errors.Wrapf(err, "symbol %d in section %d", i, section)
		}
		table.Entries = append(table.Entries, e)
	}
	return table, nil
}
