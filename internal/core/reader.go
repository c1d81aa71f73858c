// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package core decodes ELF executables and Linux core files: the file
// and program/section header tables, load segments, process notes
// (registers, signal, memory map), symbol and relocation tables, and
// the address translations between file offsets, virtual addresses
// and mapping-relative addresses. Core files are often truncated or
// otherwise damaged, so every multi-entry decode keeps going past a
// bad entry and the payload decoders fail soft.
package core

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrBadMagic is returned when the input does not start with the ELF
// magic bytes.
var ErrBadMagic = errors.New("not an ELF file (bad magic)")

// A Reader owns the raw bytes of one ELF file and provides bounds
// checked primitive reads. Multi-byte reads honor the file's declared
// endianness; "architecture width" reads honor its declared bitness
// and always normalize to 64 bits.
type Reader struct {
	LittleEndian bool
	SixtyFourBit bool

	data []byte
}

// NewReader validates the ELF identification bytes and wraps data.
// The buffer is borrowed, not copied; it must stay alive and unchanged
// for the life of the Reader.
func NewReader(data []byte) (*Reader, error) {
	// Even the smallest 32-bit ELF header is 52 bytes; anything under
	// 64 cannot hold a 64-bit header.
	if len(data) < 64 {
		return nil, errors.New("file is too small to be an ELF file")
	}
	if data[0] != 0x7f || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		return nil, ErrBadMagic
	}

	eiClass := data[4]
	eiData := data[5]
	eiVersion := data[6]
	if eiVersion != 1 {
		return nil, errors.Errorf("bad elf version: %d", eiVersion)
	}
	if eiClass != 1 && eiClass != 2 {
		return nil, errors.Errorf("bad elf class: %d", eiClass)
	}
	if eiData != 1 && eiData != 2 {
		return nil, errors.Errorf("bad elf data encoding: %d", eiData)
	}

	r := &Reader{
		LittleEndian: eiData == 1,
		SixtyFourBit: eiClass == 2,
		data:         data,
	}

	etype, err := r.ReadHalf(16)
	if err != nil {
		return nil, err
	}
	if etype != 2 && etype != 3 && etype != 4 {
		return nil, errors.Errorf("bad elf type %d: not a core, exe, or shared lib", etype)
	}
	return r, nil
}

// NewRawReader wraps bytes that are not a whole ELF file, such as a
// debug section's contents, with the endianness and bitness of the
// file they came from. No validation is done.
func NewRawReader(data []byte, littleEndian, sixtyFourBit bool) *Reader {
	return &Reader{
		LittleEndian: littleEndian,
		SixtyFourBit: sixtyFourBit,
		data:         data,
	}
}

// ByteOrder returns the binary.ByteOrder matching the file's encoding.
func (r *Reader) ByteOrder() binary.ByteOrder {
	if r.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Len returns the number of bytes in the file.
func (r *Reader) Len() uint64 {
	return uint64(len(r.data))
}

// Slice returns size bytes starting at offset, without copying.
func (r *Reader) Slice(offset Offset, size uint64) ([]byte, error) {
	if uint64(offset) > r.Len() || size > r.Len()-uint64(offset) {
		return nil, errors.Errorf("slice of %d bytes at offset %#x is out of bounds", size, offset)
	}
	return r.data[offset : uint64(offset)+size], nil
}

// ReadByte returns the byte at offset.
func (r *Reader) ReadByte(offset Offset) (byte, error) {
	if uint64(offset) >= r.Len() {
		return 0, errors.Errorf("couldn't read byte at offset %#x", offset)
	}
	return r.data[offset], nil
}

// ReadHalf returns the 16-bit value at offset.
func (r *Reader) ReadHalf(offset Offset) (uint16, error) {
	b, err := r.Slice(offset, 2)
	if err != nil {
		return 0, err
	}
	return r.ByteOrder().Uint16(b), nil
}

// ReadWord returns the 32-bit value at offset.
func (r *Reader) ReadWord(offset Offset) (uint32, error) {
	b, err := r.Slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return r.ByteOrder().Uint32(b), nil
}

// ReadXword returns the 64-bit value at offset.
func (r *Reader) ReadXword(offset Offset) (uint64, error) {
	b, err := r.Slice(offset, 8)
	if err != nil {
		return 0, err
	}
	return r.ByteOrder().Uint64(b), nil
}

// ReadAddr reads a 32- or 64-bit value at offset depending on the
// file's bitness. For sanity the result is always returned as 64 bits.
func (r *Reader) ReadAddr(offset Offset) (uint64, error) {
	if r.SixtyFourBit {
		return r.ReadXword(offset)
	}
	w, err := r.ReadWord(offset)
	return uint64(w), err
}
