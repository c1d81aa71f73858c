// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// symBlob renders 64-bit symbol table entries.
func symBlob(entries []SymbolTableEntry) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	for _, e := range entries {
		var tmp [24]byte
		le.PutUint32(tmp[0:], e.Name)
		tmp[4] = uint8(e.Binding)<<4 | uint8(e.Type)
		tmp[5] = uint8(e.Visibility)
		le.PutUint16(tmp[6:], e.Index.Section)
		le.PutUint64(tmp[8:], uint64(e.Value))
		le.PutUint64(tmp[16:], e.Size)
		buf.Write(tmp[:])
	}
	return buf.Bytes()
}

func symImage(t *testing.T) *File {
	t.Helper()

	strtab := []byte("\x00main\x00handler\x00")
	syms := symBlob([]SymbolTableEntry{
		{}, // entry 0 is always the null symbol
		{
			Name: 1, Value: 0x400100, Size: 0x40,
			Binding: BindGlobal, Type: SymFunc,
			Index: SymbolIndex{Kind: IndexSection, Section: 1},
		},
		{
			Name: 6, Value: 0x400200, Size: 0x10,
			Binding: BindWeak, Type: SymFunc, Visibility: VisHidden,
			Index: SymbolIndex{Kind: IndexSection, Section: 1},
		},
	})

	data := newImage(2).
		section(secSpec{name: ".strtab", stype: uint32(SecStringTable), data: strtab}).
		section(secSpec{name: ".symtab", stype: uint32(SecSymbolTable), data: syms, link: 1, entsize: 24}).
		build()

	f, err := NewFileData("a.out", data)
	require.NoError(t, err)
	return f
}

func TestSymbolTableDecode(t *testing.T) {
	f := symImage(t)

	tables, err := f.SymbolTables()
	require.NoError(t, err)
	require.Len(t, tables, 1)

	table := tables[0]
	assert.False(t, table.Dynamic)
	require.Len(t, table.Entries, 3)

	e := table.Entries[1]
	assert.Equal(t, BindGlobal, e.Binding)
	assert.Equal(t, SymFunc, e.Type)
	assert.Equal(t, VisDefault, e.Visibility)
	assert.Equal(t, IndexSection, e.Index.Kind)
	assert.Equal(t, VirtualAddr(0x400100), e.Value)

	name, err := f.SymbolName(table, e)
	require.NoError(t, err)
	assert.Equal(t, "main", name)

	hidden := table.Entries[2]
	assert.Equal(t, BindWeak, hidden.Binding)
	assert.Equal(t, VisHidden, hidden.Visibility)
}

func TestSymbolInfoByteUnpacking(t *testing.T) {
	// 0x12 packs global binding with function type.
	data := symBlob([]SymbolTableEntry{{Binding: BindGlobal, Type: SymFunc}})
	assert.Equal(t, byte(0x12), data[4])

	r := NewRawReader(data, true, true)
	e, err := decodeSymbolEntry(r, 0)
	require.NoError(t, err)
	assert.Equal(t, BindGlobal, e.Binding)
	assert.Equal(t, SymFunc, e.Type)
}

func TestSpecialSymbolIndexes(t *testing.T) {
	assert.Equal(t, IndexUndefined, symbolIndexFromU16(0).Kind)
	assert.Equal(t, IndexAbsolute, symbolIndexFromU16(0xfff1).Kind)
	assert.Equal(t, IndexCommon, symbolIndexFromU16(0xfff2).Kind)
	assert.Equal(t, IndexExtended, symbolIndexFromU16(0xffff).Kind)

	plain := symbolIndexFromU16(7)
	assert.Equal(t, IndexSection, plain.Kind)
	assert.Equal(t, uint16(7), plain.Section)
}

func TestFindSymbolByAddress(t *testing.T) {
	f := symImage(t)

	name, ok := f.FindSymbol(0x400120)
	require.True(t, ok)
	assert.Equal(t, "main", name)

	// One past the end of main and before handler.
	_, ok = f.FindSymbol(0x400140)
	assert.False(t, ok)
}

func TestStringTableSuffixLookup(t *testing.T) {
	f := symImage(t)

	// Indexing into the middle of a stored string yields its suffix.
	name, err := f.FindString(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "in", name)

	_, err = f.FindString(1, 0x7fff)
	assert.Error(t, err)

	// Section 2 is the symbol table, not a string table.
	_, err = f.FindString(2, 1)
	assert.Error(t, err)
}

func TestSectionNames(t *testing.T) {
	f := symImage(t)

	name, err := f.SectionName(1)
	require.NoError(t, err)
	assert.Equal(t, ".strtab", name)

	index, ok := f.FindSectionNamed(".symtab")
	require.True(t, ok)
	assert.Equal(t, 2, index)

	_, ok = f.FindSectionNamed(".debug_info")
	assert.False(t, ok)
}
