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

// prStatusBlob builds a prstatus descriptor with the given signal,
// pid, and register set. regs must name slots from the amd64 table.
func prStatusBlob(signo, code, pid int32, regs map[int]uint64) []byte {
	var buf bytes.Buffer
	buf.Write(le32(uint32(signo), uint32(code), 0)) // signo, code, errno
	buf.Write(make([]byte, 4))                      // cursig + pad
	buf.Write(le64(0, 0))                           // sigpend, sighold
	buf.Write(le32(uint32(pid), 1, 1, 1))           // pid, ppid, pgrp, sid
	buf.Write(le64(0, 0, 0, 0, 0, 0, 0, 0))        // timevals

	all := make([]uint64, 27)
	for slot, v := range regs {
		all[slot] = v
	}
	buf.Write(le64(all...))
	return buf.Bytes()
}

func TestOpenDecodesHeaderAndLoads(t *testing.T) {
	data := newImage(4).
		segment(segSpec{ptype: 1, vaddr: 0x400000, flags: segRead | segExec, data: make([]byte, 0x100)}).
		segment(segSpec{ptype: 1, vaddr: 0x7000, flags: segRead | segWrite, data: make([]byte, 0x100)}).
		build()

	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	assert.Equal(t, TypeCore, f.Header.Type)
	assert.Equal(t, "amd64", f.Header.MachineName())
	require.Len(t, f.Loads, 2)
	assert.Equal(t, VirtualAddr(0x400000), f.Loads[0].VBytes.Start)
	assert.Equal(t, "rw-", f.Loads[1].FlagString())

	seg, ok := f.FindLoadSegment(0x7010)
	require.True(t, ok)
	assert.True(t, seg.Writeable())

	_, ok = f.FindLoadSegment(0x9000)
	assert.False(t, ok)
}

func TestOffsetVaddrRoundTrip(t *testing.T) {
	data := newImage(4).
		segment(segSpec{ptype: 1, vaddr: 0x400000, flags: segRead, data: make([]byte, 0x100)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	offset, ok := f.VaddrToOffset(0x400040)
	require.True(t, ok)
	vaddr, ok := f.OffsetToVaddr(offset)
	require.True(t, ok)
	assert.Equal(t, VirtualAddr(0x400040), vaddr)
}

func TestBssAddressesKeepTheirSegment(t *testing.T) {
	// A data segment whose memory image outgrows its file bytes,
	// followed by another segment whose file bytes start right after.
	data := newImage(4).
		segment(segSpec{ptype: 1, vaddr: 0x600000, flags: segRead | segWrite, data: make([]byte, 0x100), memsz: 0x200}).
		segment(segSpec{ptype: 1, vaddr: 0x400000, flags: segRead | segExec, data: make([]byte, 0x100)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	require.Len(t, f.Loads, 2)
	assert.Equal(t, f.Loads[0].VBytes.Size, f.Loads[0].OBytes.Size)

	offset, ok := f.VaddrToOffset(0x600180)
	require.True(t, ok)
	vaddr, ok := f.OffsetToVaddr(offset)
	require.True(t, ok)
	assert.Equal(t, VirtualAddr(0x600180), vaddr)
}

func TestNotesAreDiscriminatedByName(t *testing.T) {
	var blob bytes.Buffer
	blob.Write(noteBlob("CORE", 1, prStatusBlob(11, 1, 1234, nil)))
	blob.Write(noteBlob("GNU", 3, []byte{0xaa, 0xbb}))
	blob.Write(noteBlob("LINUX", 2, []byte{1, 2, 3, 4}))

	data := newImage(4).
		segment(segSpec{ptype: 4, data: blob.Bytes()}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	require.Len(t, f.Notes, 3)
	assert.Equal(t, NotePrStatus, f.Notes[0].Type)
	assert.Equal(t, NoteBuildID, f.Notes[1].Type)
	assert.Equal(t, GenericNote(2), f.Notes[2].Type)

	note, ok := f.FindNote(NoteBuildID)
	require.True(t, ok)
	assert.Equal(t, "GNU", note.Name)
	assert.Equal(t, uint64(2), note.Desc.Size)
}

func TestTruncatedNoteKeepsEarlierNotes(t *testing.T) {
	var blob bytes.Buffer
	blob.Write(noteBlob("CORE", 1, prStatusBlob(11, 1, 42, map[int]uint64{16: 0x400100})))
	bad := noteBlob("CORE", 0x46494c45, make([]byte, 64))
	blob.Write(bad[:len(bad)-60]) // descriptor claims more bytes than exist

	data := newImage(4).
		segment(segSpec{ptype: 4, data: blob.Bytes()}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	// The malformed record aborts its segment but the earlier note
	// still answers queries.
	require.Len(t, f.Notes, 1)
	ps, err := f.PrStatus()
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.Equal(t, int32(42), ps.Pid)
}

func TestDuplicateNotesKeepTheLast(t *testing.T) {
	var blob bytes.Buffer
	blob.Write(noteBlob("CORE", 1, prStatusBlob(4, 1, 1, nil)))
	blob.Write(noteBlob("CORE", 1, prStatusBlob(11, 1, 2, nil)))

	data := newImage(4).
		segment(segSpec{ptype: 4, data: blob.Bytes()}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	ps, err := f.PrStatus()
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.Equal(t, int32(2), ps.Pid)
}

func TestPrStatusRegisters(t *testing.T) {
	desc := prStatusBlob(11, 1, 77, map[int]uint64{
		16: 0x400123, // rip
		4:  0x7f80,   // rbp
		19: 0x7f40,   // rsp
	})
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 1, desc)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	ps, err := f.PrStatus()
	require.NoError(t, err)
	require.NotNil(t, ps)

	assert.Equal(t, VirtualAddr(0x400123), ps.IP())
	assert.Equal(t, VirtualAddr(0x7f80), ps.FrameStackTop())
	assert.Equal(t, VirtualAddr(0x7f40), ps.FrameStackBottom())
	assert.Equal(t, "rip", ps.RegisterName(16))
	assert.False(t, ps.RareRegister(16))
	assert.True(t, ps.RareRegister(17)) // cs
	assert.Equal(t, "SIGSEGV (address not mapped to object)", ps.Signal())
}

func TestTruncatedPrStatusReadsAsMissing(t *testing.T) {
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 1, make([]byte, 40))}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	ps, err := f.PrStatus()
	assert.NoError(t, err)
	assert.Nil(t, ps)
}

func TestSigInfoFault(t *testing.T) {
	desc := le64(11, 0, 0x30001, 0xdeadbeef)
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 0x53494749, desc)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	si, err := f.SigInfo()
	require.NoError(t, err)
	require.NotNil(t, si)

	assert.Equal(t, uint64(11), si.SignalNum)
	fault, ok := si.Details.(FaultSignal)
	require.True(t, ok)
	assert.Equal(t, VirtualAddr(0xdeadbeef), fault.FaultAddr)
}

func TestSigInfoPosixFallback(t *testing.T) {
	desc := le64(15, 0, 0xbad0000, 321, 1000)
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 0x53494749, desc)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	si, err := f.SigInfo()
	require.NoError(t, err)
	require.NotNil(t, si)

	sender, ok := si.Details.(PosixSignal)
	require.True(t, ok)
	assert.Equal(t, uint64(321), sender.Pid)
	assert.Equal(t, uint64(1000), sender.Uid)
}

func ntFileBlob(pageSize uint64, entries []MemoryMappedFile) []byte {
	var buf bytes.Buffer
	buf.Write(le64(uint64(len(entries)), pageSize))
	for _, e := range entries {
		buf.Write(le64(uint64(e.VBytes.Start), uint64(e.VBytes.End()), e.Offset))
	}
	for _, e := range entries {
		buf.WriteString(e.Name)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func TestMemoryMappedFilesMergeAdjacent(t *testing.T) {
	desc := ntFileBlob(0x1000, []MemoryMappedFile{
		{VBytes: Range[VirtualAddr]{Start: 0, Size: 100}, Offset: 0, Name: "a"},
		{VBytes: Range[VirtualAddr]{Start: 100, Size: 100}, Offset: 1, Name: "a"},
		{VBytes: Range[VirtualAddr]{Start: 200, Size: 10}, Offset: 0, Name: "b"},
	})
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 0x46494c45, desc)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	mmaps, err := f.MemoryMappedFiles()
	require.NoError(t, err)
	require.Len(t, mmaps, 2)

	assert.Equal(t, "a", mmaps[0].Name)
	assert.Equal(t, uint64(200), mmaps[0].VBytes.Size)
	assert.Equal(t, "b", mmaps[1].Name)
	assert.Equal(t, VirtualAddr(200), mmaps[1].VBytes.Start)
}

func TestMemoryMappedFileOffsetsAreScaled(t *testing.T) {
	desc := ntFileBlob(0x1000, []MemoryMappedFile{
		{VBytes: Range[VirtualAddr]{Start: 0x400000, Size: 0x2000}, Offset: 3, Name: "/bin/x"},
	})
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 0x46494c45, desc)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	mmaps, err := f.MemoryMappedFiles()
	require.NoError(t, err)
	require.Len(t, mmaps, 1)
	assert.Equal(t, uint64(3*0x1000), mmaps[0].Offset)

	rel, ok := f.VaddrToRelative(0x400010)
	require.True(t, ok)
	assert.Equal(t, RelativeAddr(3*0x1000+0x10), rel)

	_, ok = f.VaddrToRelative(0x500000)
	assert.False(t, ok)
}

func TestMemoryMappedFilesRejectBogusCount(t *testing.T) {
	// A corrupt count must surface as an error before anything is
	// allocated for it.
	desc := le64(1<<60, 0x1000)
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 0x46494c45, desc)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		_, err := f.MemoryMappedFiles()
		assert.ErrorContains(t, err, "mapped file count")
	})
}

func TestBacktraceWalksFramePointers(t *testing.T) {
	stack := make([]byte, 0x1000) // mapped at 0x7000
	put := func(vaddr, value uint64) {
		binary.LittleEndian.PutUint64(stack[vaddr-0x7000:], value)
	}
	// fp chain: 0x7f00 -> 0x7f20 -> 0x7f40 -> done
	put(0x7f00, 0x7f20)
	put(0x7f08, 0x400200)
	put(0x7f20, 0x7f40)
	put(0x7f28, 0x400300)
	put(0x7f40, 0)
	put(0x7f48, 0)

	desc := prStatusBlob(11, 1, 1, map[int]uint64{16: 0x400100, 4: 0x7f00, 19: 0x7e00})
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 1, desc)}).
		segment(segSpec{ptype: 1, vaddr: 0x7000, flags: segRead | segWrite, data: stack}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	pair, err := NewPair(f)
	require.NoError(t, err)

	frames, err := pair.Backtrace()
	require.NoError(t, err)
	assert.Equal(t, []VirtualAddr{0x400100, 0x400200, 0x400300}, frames)
}

func TestBacktraceNeedsAWritableFrameBase(t *testing.T) {
	desc := prStatusBlob(11, 1, 1, map[int]uint64{16: 0x400100, 4: 0xdead0000})
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 1, desc)}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	pair, err := NewPair(f)
	require.NoError(t, err)

	frames, err := pair.Backtrace()
	assert.ErrorContains(t, err, "couldn't find load segment")
	assert.Equal(t, []VirtualAddr{0x400100}, frames)
}

func TestBacktraceStopsOnCorruptChain(t *testing.T) {
	stack := make([]byte, 0x1000)
	put := func(vaddr, value uint64) {
		binary.LittleEndian.PutUint64(stack[vaddr-0x7000:], value)
	}
	// The saved frame pointer points below the current frame.
	put(0x7f00, 0x7e00)
	put(0x7f08, 0x400200)
	put(0x7e00, 0x7d00)
	put(0x7e08, 0x400300)

	desc := prStatusBlob(11, 1, 1, map[int]uint64{16: 0x400100, 4: 0x7f00})
	data := newImage(4).
		segment(segSpec{ptype: 4, data: noteBlob("CORE", 1, desc)}).
		segment(segSpec{ptype: 1, vaddr: 0x7000, flags: segRead | segWrite, data: stack}).
		build()
	f, err := NewFileData("test.core", data)
	require.NoError(t, err)

	pair, err := NewPair(f)
	require.NoError(t, err)

	frames, err := pair.Backtrace()
	require.NoError(t, err)
	assert.Equal(t, []VirtualAddr{0x400100, 0x400200}, frames)
}

func TestPairClassification(t *testing.T) {
	coreData := newImage(4).build()
	exeData := newImage(2).build()

	c, err := NewFileData("a.core", coreData)
	require.NoError(t, err)
	e, err := NewFileData("a.out", exeData)
	require.NoError(t, err)

	pair, err := NewPair(c, e)
	require.NoError(t, err)
	assert.Same(t, c, pair.Core)
	assert.Same(t, e, pair.Exe)
	assert.Same(t, c, pair.Main())

	c2, err := NewFileData("b.core", newImage(4).build())
	require.NoError(t, err)
	_, err = NewPair(c, c2)
	assert.ErrorContains(t, err, "core files")

	e2, err := NewFileData("b.out", newImage(3).build()) // shared objects count as exes
	require.NoError(t, err)
	_, err = NewPair(e, e2)
	assert.ErrorContains(t, err, "executables")
}
