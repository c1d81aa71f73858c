// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import "fmt"

// FileType is the kind of ELF file.
type FileType uint16

const (
	TypeExec   FileType = 2
	TypeShared FileType = 3
	TypeCore   FileType = 4
)

func (t FileType) String() string {
	switch t {
	case TypeExec:
		return "executable"
	case TypeShared:
		return "shared object"
	case TypeCore:
		return "core"
	}
	return fmt.Sprintf("FileType(%d)", uint16(t))
}

// ElfHeader is the decoded file header. Bitness and endianness live on
// the Reader since every primitive read needs them.
type ElfHeader struct {
	Type       FileType
	Machine    uint16
	ABI        byte
	ABIVersion byte
	Entry      VirtualAddr
	Flags      uint32

	PhOffset    Offset
	PhEntrySize uint16
	PhNum       uint16

	ShOffset      Offset
	ShEntrySize   uint16
	ShNum         uint16
	StrTableIndex uint16 // section holding section names
}

// DecodeHeader decodes the file header. NewReader has already
// validated the identification bytes.
func DecodeHeader(r *Reader) (ElfHeader, error) {
	var h ElfHeader
	h.ABI, _ = r.ReadByte(7)
	h.ABIVersion, _ = r.ReadByte(8)

	c := NewCursor(r, 16)
	etype, err := c.Half()
	if err != nil {
		return h, err
	}
	h.Type = FileType(etype)
	if h.Machine, err = c.Half(); err != nil {
		return h, err
	}
	if _, err = c.Word(); err != nil { // e_version, checked via e_ident
		return h, err
	}
	entry, err := c.Addr()
	if err != nil {
		return h, err
	}
	h.Entry = VirtualAddr(entry)
	phoff, err := c.Off()
	if err != nil {
		return h, err
	}
	h.PhOffset = Offset(phoff)
	shoff, err := c.Off()
	if err != nil {
		return h, err
	}
	h.ShOffset = Offset(shoff)
	if h.Flags, err = c.Word(); err != nil {
		return h, err
	}
	if _, err = c.Half(); err != nil { // e_ehsize
		return h, err
	}
	if h.PhEntrySize, err = c.Half(); err != nil {
		return h, err
	}
	if h.PhNum, err = c.Half(); err != nil {
		return h, err
	}
	if h.ShEntrySize, err = c.Half(); err != nil {
		return h, err
	}
	if h.ShNum, err = c.Half(); err != nil {
		return h, err
	}
	if h.StrTableIndex, err = c.Half(); err != nil {
		return h, err
	}
	return h, nil
}

const (
	// EMX8664 is the e_machine value for x86-64, the only architecture
	// relocation decoding supports.
	EMX8664 = 62
)

// MachineName returns a display name for the machine architecture.
func (h *ElfHeader) MachineName() string {
	switch h.Machine {
	case 3:
		return "386"
	case 8:
		return "mips"
	case 10:
		return "mipsle"
	case 21:
		return "ppc64"
	case 22:
		return "s390x"
	case 40:
		return "arm"
	case EMX8664:
		return "amd64"
	case 183:
		return "arm64"
	case 243:
		return "riscv64"
	}
	return fmt.Sprintf("machine %d", h.Machine)
}

// ABIName returns a display name for the OS/ABI the file targets.
func (h *ElfHeader) ABIName() string {
	switch h.ABI {
	case 0:
		return "System V"
	case 3:
		return "Linux"
	case 9:
		return "FreeBSD"
	case 12:
		return "OpenBSD"
	}
	return fmt.Sprintf("abi %d", h.ABI)
}
