// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeader(t *testing.T) {
	data := newImage(2).
		segment(segSpec{ptype: 1, vaddr: 0x400000, flags: segRead, data: []byte{0x90}}).
		build()
	r, err := NewReader(data)
	require.NoError(t, err)

	h, err := DecodeHeader(r)
	require.NoError(t, err)

	assert.Equal(t, TypeExec, h.Type)
	assert.Equal(t, uint16(EMX8664), h.Machine)
	assert.Equal(t, "amd64", h.MachineName())
	assert.Equal(t, Offset(64), h.PhOffset)
	assert.Equal(t, uint16(1), h.PhNum)
	assert.Equal(t, uint16(56), h.PhEntrySize)
}

func TestFileTypeNames(t *testing.T) {
	assert.Equal(t, "executable", TypeExec.String())
	assert.Equal(t, "shared object", TypeShared.String())
	assert.Equal(t, "core", TypeCore.String())
}

func TestDecodeProgramHeader64(t *testing.T) {
	data := newImage(4).
		segment(segSpec{ptype: 1, vaddr: 0x7000, flags: segRead | segWrite, data: make([]byte, 16), memsz: 0x2000}).
		build()
	r, err := NewReader(data)
	require.NoError(t, err)

	ph, err := DecodeProgramHeader(r, 64)
	require.NoError(t, err)

	assert.Equal(t, SegLoad, ph.Type)
	assert.Equal(t, VirtualAddr(0x7000), ph.Vaddr)
	assert.Equal(t, uint64(16), ph.FileSize)
	assert.Equal(t, uint64(0x2000), ph.MemSize)
	assert.Equal(t, "rw-", FlagString(ph.Flags))
}

// The 32-bit encoding puts the flags word after memsz instead of
// before the offset.
func TestDecodeProgramHeader32(t *testing.T) {
	le := binary.LittleEndian
	blob := make([]byte, 32)
	le.PutUint32(blob[0:], 1)          // p_type
	le.PutUint32(blob[4:], 0x1000)     // p_offset
	le.PutUint32(blob[8:], 0x08048000) // p_vaddr
	le.PutUint32(blob[12:], 0x08048000)
	le.PutUint32(blob[16:], 0x200) // p_filesz
	le.PutUint32(blob[20:], 0x400) // p_memsz
	le.PutUint32(blob[24:], 5)     // p_flags: r-x
	le.PutUint32(blob[28:], 0x1000)

	r := NewRawReader(blob, true, false)
	ph, err := DecodeProgramHeader(r, 0)
	require.NoError(t, err)

	assert.Equal(t, SegLoad, ph.Type)
	assert.Equal(t, Offset(0x1000), ph.Offset)
	assert.Equal(t, VirtualAddr(0x08048000), ph.Vaddr)
	assert.Equal(t, uint64(0x200), ph.FileSize)
	assert.Equal(t, uint64(0x400), ph.MemSize)
	assert.Equal(t, "r-x", FlagString(ph.Flags))
}

func TestSegmentTypeMapping(t *testing.T) {
	st, known := segmentTypeFromU32(4)
	assert.Equal(t, SegNote, st)
	assert.True(t, known)

	// OS-specific types read as null but are not a surprise.
	st, known = segmentTypeFromU32(0x6474e551) // GNU_STACK
	assert.Equal(t, SegNull, st)
	assert.True(t, known)

	_, known = segmentTypeFromU32(0x12345)
	assert.False(t, known)
}

func TestSectionFlagNames(t *testing.T) {
	assert.Equal(t, "none", SectionFlagString(0))
	assert.Equal(t, "WRITE ALLOC", SectionFlagString(3))
	assert.Equal(t, "ALLOC EXEC", SectionFlagString(6))
	assert.Equal(t, "TLS", SectionFlagString(1<<10))
}
