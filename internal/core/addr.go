// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

// The engine juggles three coordinate spaces and they must never be
// mixed without an explicit translation:
//
//   - Offset is a byte position within an ELF file as stored on disk.
//   - VirtualAddr is an address in the address space of the process a
//     core file describes (or the intended load address of an
//     executable).
//   - RelativeAddr is a byte position within a file as it was mapped
//     into a core's address space, i.e. relative to that mapping's
//     base. It is how a live address is correlated back to an on-disk
//     executable or library.

// An Offset is a byte position within an ELF file.
type Offset uint64

// A VirtualAddr is an address in the inferior's address space.
type VirtualAddr uint64

// A RelativeAddr is an address relative to the base of one memory
// mapping.
type RelativeAddr uint64

// Coord is the set of coordinate types a Range can be expressed in.
type Coord interface {
	Offset | VirtualAddr | RelativeAddr
}

// A Range is a contiguous run of bytes addressed in one coordinate
// space. Arithmetic on a Range never changes its coordinate space.
type Range[A Coord] struct {
	Start A
	Size  uint64
}

// End returns the coordinate just past the last byte of the range.
func (r Range[A]) End() A {
	return r.Start + A(r.Size)
}

// Contains reports whether addr falls within the range.
func (r Range[A]) Contains(addr A) bool {
	return addr >= r.Start && addr < r.End()
}
