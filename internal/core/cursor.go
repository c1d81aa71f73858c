// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"strings"

	"github.com/pkg/errors"
)

// A Cursor is a sequential decoder over a Reader. Every read advances
// the position by exactly the number of bytes consumed, including the
// variable-length LEB128 reads.
type Cursor struct {
	R   *Reader
	Pos Offset
}

// NewCursor returns a Cursor positioned at offset.
func NewCursor(r *Reader, offset Offset) *Cursor {
	return &Cursor{R: r, Pos: offset}
}

// Skip advances the position by n bytes without reading.
func (c *Cursor) Skip(n uint64) {
	c.Pos += Offset(n)
}

// Byte reads one byte.
func (c *Cursor) Byte() (byte, error) {
	b, err := c.R.ReadByte(c.Pos)
	if err != nil {
		return 0, err
	}
	c.Pos++
	return b, nil
}

// Half reads a 16-bit value.
func (c *Cursor) Half() (uint16, error) {
	v, err := c.R.ReadHalf(c.Pos)
	if err != nil {
		return 0, err
	}
	c.Pos += 2
	return v, nil
}

// Word reads a 32-bit value.
func (c *Cursor) Word() (uint32, error) {
	v, err := c.R.ReadWord(c.Pos)
	if err != nil {
		return 0, err
	}
	c.Pos += 4
	return v, nil
}

// Xword reads a 64-bit value.
func (c *Cursor) Xword() (uint64, error) {
	v, err := c.R.ReadXword(c.Pos)
	if err != nil {
		return 0, err
	}
	c.Pos += 8
	return v, nil
}

// Int reads a 32-bit signed value.
func (c *Cursor) Int() (int32, error) {
	v, err := c.Word()
	return int32(v), err
}

// Ulong reads the kernel's user_long_t: 32 or 64 bits depending on the
// file's bitness, normalized to 64 bits.
func (c *Cursor) Ulong() (uint64, error) {
	if c.R.SixtyFourBit {
		return c.Xword()
	}
	v, err := c.Word()
	return uint64(v), err
}

// Addr reads an architecture-width address.
func (c *Cursor) Addr() (uint64, error) {
	return c.Ulong()
}

// Off reads an architecture-width file offset.
func (c *Cursor) Off() (uint64, error) {
	return c.Ulong()
}

// Uleb reads an unsigned LEB128 value: seven payload bits per byte,
// continuation flag in the high bit.
func (c *Cursor) Uleb() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := c.Byte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// Sleb reads a signed LEB128 value.
func (c *Cursor) Sleb() (int64, error) {
	var result int64
	var shift uint
	for {
		b, err := c.Byte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

// CString reads a null-terminated byte string. The kernel documents
// note strings as ASCII; bytes are taken as-is and any UTF-8
// interpretation is left to the caller.
func (c *Cursor) CString() (string, error) {
	var sb strings.Builder
	for {
		b, err := c.Byte()
		if err != nil {
			return "", errors.Wrap(err, "unterminated string")
		}
		if b == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}
