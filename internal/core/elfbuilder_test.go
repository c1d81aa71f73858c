// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"bytes"
	"encoding/binary"
)

// Helpers for building small synthetic 64-bit little-endian ELF images
// in memory, so tests don't need fixture files.

const (
	testEhdrSize = 64
	testPhdrSize = 56
	testShdrSize = 64
)

type segSpec struct {
	ptype uint32
	vaddr uint64
	flags uint32
	data  []byte

	// memsz defaults to len(data) when zero.
	memsz uint64
}

type secSpec struct {
	name    string
	stype   uint32
	flags   uint64
	vaddr   uint64
	data    []byte
	link    uint32
	info    uint32
	entsize uint64
}

type imageBuilder struct {
	etype    uint16
	machine  uint16
	segments []segSpec
	sections []secSpec

	sectionNames []uint32
}

func newImage(etype uint16) *imageBuilder {
	return &imageBuilder{etype: etype, machine: EMX8664}
}

func (b *imageBuilder) withMachine(m uint16) *imageBuilder {
	b.machine = m
	return b
}

func (b *imageBuilder) segment(s segSpec) *imageBuilder {
	b.segments = append(b.segments, s)
	return b
}

func (b *imageBuilder) section(s secSpec) *imageBuilder {
	b.sections = append(b.sections, s)
	return b
}

// build lays the image out as header, program headers, section
// headers, then the segment and section contents in order.
func (b *imageBuilder) build() []byte {
	sections := b.sections
	shnum := 0
	shstrndx := 0
	var shstrtab bytes.Buffer
	if len(sections) > 0 {
		// Section 0 is the null section; the name table goes last.
		shstrtab.WriteByte(0)
		nameOffsets := make([]uint32, len(sections)+1)
		for i, s := range sections {
			nameOffsets[i] = uint32(shstrtab.Len())
			shstrtab.WriteString(s.name)
			shstrtab.WriteByte(0)
		}
		nameOffsets[len(sections)] = uint32(shstrtab.Len())
		shstrtab.WriteString(".shstrtab")
		shstrtab.WriteByte(0)

		sections = append(append([]secSpec{}, sections...), secSpec{
			name:  ".shstrtab",
			stype: uint32(SecStringTable),
			data:  shstrtab.Bytes(),
		})
		shnum = len(sections) + 1 // plus the null section
		shstrndx = shnum - 1
		b.sectionNames = nameOffsets
	}

	phoff := uint64(testEhdrSize)
	shoff := phoff + uint64(len(b.segments))*testPhdrSize
	contentOff := shoff
	if shnum > 0 {
		contentOff += uint64(shnum) * testShdrSize
	}

	// Assign content offsets.
	segOffsets := make([]uint64, len(b.segments))
	pos := contentOff
	for i, s := range b.segments {
		segOffsets[i] = pos
		pos += uint64(len(s.data))
	}
	secOffsets := make([]uint64, len(sections))
	for i, s := range sections {
		secOffsets[i] = pos
		pos += uint64(len(s.data))
	}

	out := make([]byte, pos)
	le := binary.LittleEndian

	// e_ident
	copy(out, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	le.PutUint16(out[16:], b.etype)
	le.PutUint16(out[18:], b.machine)
	le.PutUint32(out[20:], 1) // e_version
	le.PutUint64(out[32:], phoff)
	if shnum > 0 {
		le.PutUint64(out[40:], shoff)
	}
	le.PutUint16(out[52:], testEhdrSize)
	le.PutUint16(out[54:], testPhdrSize)
	le.PutUint16(out[56:], uint16(len(b.segments)))
	le.PutUint16(out[58:], testShdrSize)
	le.PutUint16(out[60:], uint16(shnum))
	le.PutUint16(out[62:], uint16(shstrndx))

	for i, s := range b.segments {
		p := out[phoff+uint64(i)*testPhdrSize:]
		memsz := s.memsz
		if memsz == 0 {
			memsz = uint64(len(s.data))
		}
		le.PutUint32(p[0:], s.ptype)
		le.PutUint32(p[4:], s.flags)
		le.PutUint64(p[8:], segOffsets[i])
		le.PutUint64(p[16:], s.vaddr)
		le.PutUint64(p[24:], s.vaddr)
		le.PutUint64(p[32:], uint64(len(s.data)))
		le.PutUint64(p[40:], memsz)
		le.PutUint64(p[48:], 0x1000)
		copy(out[segOffsets[i]:], s.data)
	}

	// Section header 0 stays zeroed.
	for i, s := range sections {
		p := out[shoff+uint64(i+1)*testShdrSize:]
		le.PutUint32(p[0:], b.sectionNames[i])
		le.PutUint32(p[4:], s.stype)
		le.PutUint64(p[8:], s.flags)
		le.PutUint64(p[16:], s.vaddr)
		le.PutUint64(p[24:], secOffsets[i])
		le.PutUint64(p[32:], uint64(len(s.data)))
		le.PutUint32(p[40:], s.link)
		le.PutUint32(p[44:], s.info)
		le.PutUint64(p[48:], 1)
		le.PutUint64(p[56:], s.entsize)
		copy(out[secOffsets[i]:], s.data)
	}
	return out
}

// noteBlob renders one note record, padded the way the kernel pads
// them.
func noteBlob(name string, ntype uint32, desc []byte) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	write32 := func(v uint32) {
		var tmp [4]byte
		le.PutUint32(tmp[:], v)
		buf.Write(tmp[:])
	}
	write32(uint32(len(name) + 1))
	write32(uint32(len(desc)))
	write32(ntype)
	buf.WriteString(name)
	buf.WriteByte(0)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	buf.Write(desc)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func le64(values ...uint64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}

func le32(values ...uint32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}
