// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// infoUnit wraps a unit body in a 32-bit DWARF v4 unit header.
func infoUnit(body []byte) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	var tmp [4]byte
	le.PutUint32(tmp[:], uint32(len(body)+7)) // version + abbrev offset + addr size
	buf.Write(tmp[:])
	le.PutUint16(tmp[:2], 4)
	buf.Write(tmp[:2])
	le.PutUint32(tmp[:], 0) // abbrev offset
	buf.Write(tmp[:])
	buf.WriteByte(8) // address size
	buf.Write(body)
	return buf.Bytes()
}

func u64bytes(v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return tmp[:]
}

func TestDecodeInfoTree(t *testing.T) {
	var abbrev bytes.Buffer
	abbrevEntry(&abbrev, 1, TagCompileUnit, true, []AttrSpec{
		{AttrName, FormString},
	})
	abbrevEntry(&abbrev, 2, TagSubprogram, false, []AttrSpec{
		{AttrName, FormString},
		{AttrLowPC, FormAddr},
		{AttrHighPC, FormAddr},
	})
	abbrev.WriteByte(0)

	var body bytes.Buffer
	uleb(&body, 1) // compile unit
	body.WriteString("a.c\x00")
	uleb(&body, 2) // subprogram child
	body.WriteString("main\x00")
	body.Write(u64bytes(0x1000))
	body.Write(u64bytes(0x1040))
	uleb(&body, 0) // end of children

	units, warnings := DecodeInfo(infoUnit(body.Bytes()), abbrev.Bytes(), nil, true)
	assert.Empty(t, warnings)
	require.Len(t, units, 1)

	cu := units[0]
	assert.Equal(t, TagCompileUnit, cu.Tag)
	assert.Equal(t, "a.c", cu.Name())
	require.Len(t, cu.Children, 1)

	fn := cu.Children[0]
	assert.Equal(t, TagSubprogram, fn.Tag)
	assert.Equal(t, "main", fn.Name())

	low, ok := fn.FindAttr(AttrLowPC)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1000), low)
	high, ok := fn.FindAttr(AttrHighPC)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1040), high)
}

func TestDecodeInfoRejectsUnknownVersions(t *testing.T) {
	unit := infoUnit(nil)
	binary.LittleEndian.PutUint16(unit[4:], 3)

	units, warnings := DecodeInfo(unit, []byte{0}, nil, true)
	assert.Empty(t, units)
	require.Len(t, warnings, 1)
	assert.ErrorContains(t, warnings[0], "version 3")
}

func TestDecodeInfoFlagsUnexpectedForms(t *testing.T) {
	var abbrev bytes.Buffer
	// low_pc may only be an address, not constant data.
	abbrevEntry(&abbrev, 1, TagSubprogram, false, []AttrSpec{
		{AttrLowPC, FormData4},
		{AttrName, FormString},
	})
	abbrev.WriteByte(0)

	var body bytes.Buffer
	uleb(&body, 1)
	body.Write([]byte{1, 2, 3, 4})
	body.WriteString("main\x00")

	units, warnings := DecodeInfo(infoUnit(body.Bytes()), abbrev.Bytes(), nil, true)

	// The bad attribute is dropped but the entry and the attributes
	// after it survive.
	require.Len(t, units, 1)
	assert.Equal(t, "main", units[0].Name())
	_, ok := units[0].FindAttr(AttrLowPC)
	assert.False(t, ok)

	require.Len(t, warnings, 1)
	var formErr *FormError
	require.True(t, errors.As(warnings[0], &formErr))
	assert.Equal(t, AttrLowPC, formErr.Attr)
	assert.Equal(t, FormData4, formErr.Form)
}

func TestDecodeInfoReadsStrp(t *testing.T) {
	strData := []byte("\x00crash.c\x00")

	var abbrev bytes.Buffer
	abbrevEntry(&abbrev, 1, TagCompileUnit, false, []AttrSpec{
		{AttrName, FormStrp},
	})
	abbrev.WriteByte(0)

	var body bytes.Buffer
	uleb(&body, 1)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], 1)
	body.Write(tmp[:])

	units, warnings := DecodeInfo(infoUnit(body.Bytes()), abbrev.Bytes(), strData, true)
	assert.Empty(t, warnings)
	require.Len(t, units, 1)
	assert.Equal(t, "crash.c", units[0].Name())
}

func TestDecodeInfoUndefinedAbbrev(t *testing.T) {
	var body bytes.Buffer
	uleb(&body, 9) // never declared

	units, warnings := DecodeInfo(infoUnit(body.Bytes()), []byte{0}, nil, true)
	assert.Empty(t, units)
	require.Len(t, warnings, 1)
	assert.ErrorContains(t, warnings[0], "abbreviation 9")
}

func TestDecodeInfoSignedAndFlagForms(t *testing.T) {
	var abbrev bytes.Buffer
	abbrevEntry(&abbrev, 1, TagVariable, false, []AttrSpec{
		{AttrConstValue, FormSdata},
		{AttrExternal, FormFlagPresent},
		{AttrDeclaration, FormFlag},
	})
	abbrev.WriteByte(0)

	var body bytes.Buffer
	uleb(&body, 1)
	sleb(&body, -42)
	body.WriteByte(1) // declaration flag

	units, warnings := DecodeInfo(infoUnit(body.Bytes()), abbrev.Bytes(), nil, true)
	assert.Empty(t, warnings)
	require.Len(t, units, 1)

	v, ok := units[0].FindAttr(AttrConstValue)
	require.True(t, ok)
	assert.Equal(t, int64(-42), v)

	ext, ok := units[0].FindAttr(AttrExternal)
	require.True(t, ok)
	assert.Equal(t, true, ext)

	decl, ok := units[0].FindAttr(AttrDeclaration)
	require.True(t, ok)
	assert.Equal(t, true, decl)
}
