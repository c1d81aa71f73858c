// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// UnsupportedArchError reports a relocation decode request for a
// machine the decoder does not understand.
type UnsupportedArchError struct {
	Machine uint16
}

func (e *UnsupportedArchError) Error() string {
	return fmt.Sprintf("can't decode relocations for machine %d", e.Machine)
}

// Relocation is one decoded RELA or REL entry. Only 64-bit x86-64
// relocations are supported.
type Relocation struct {
	// Target is where the relocation applies.
	Target Offset

	// Dynamic is true for relocations applied by the dynamic linker
	// rather than the static linker.
	Dynamic bool

	// Symbol indexes the linked symbol table; Type is the
	// machine-specific relocation kind.
	Symbol uint32
	Type   uint32

	// Addend is valid only when HasAddend is set (RELA entries).
	Addend    int64
	HasAddend bool
}

// x86-64 relocation type names, indexed by type code.
var amd64RelocNames = []string{
	"R_X86_64_NONE",
	"R_X86_64_64",
	"R_X86_64_PC32",
	"R_X86_64_GOT32",
	"R_X86_64_PLT32",
	"R_X86_64_COPY",
	"R_X86_64_GLOB_DAT",
	"R_X86_64_JUMP_SLOT",
	"R_X86_64_RELATIVE",
	"R_X86_64_GOTPCREL",
	"R_X86_64_32",
	"R_X86_64_32S",
	"R_X86_64_16",
	"R_X86_64_PC16",
	"R_X86_64_8",
	"R_X86_64_PC8",
	"R_X86_64_DTPMOD64",
	"R_X86_64_DTPOFF64",
	"R_X86_64_TPOFF64",
	"R_X86_64_TLSGD",
	"R_X86_64_TLSLD",
	"R_X86_64_DTPOFF32",
	"R_X86_64_GOTTPOFF",
	"R_X86_64_TPOFF32",
	"R_X86_64_PC64",
	"R_X86_64_GOTOFF64",
	"R_X86_64_GOTPC32",
}

// TypeName returns a symbolic name for the relocation type.
func (r Relocation) TypeName() string {
	if int(r.Type) < len(amd64RelocNames) {
		return amd64RelocNames[r.Type]
	}
	return fmt.Sprintf("R_X86_64_%d", r.Type)
}

// decodeRelocations decodes a SecRelocationsWith or
// SecRelocationsWithout section. A section with Info zero holds
// dynamic relocations.
func decodeRelocations(r *Reader, header *ElfHeader, sections []SectionHeader, section int) ([]Relocation, error) {
	if header.Machine != EMX8664 || !r.SixtyFourBit {
		return nil, &UnsupportedArchError{Machine: header.Machine}
	}

	sh := sections[section]
	hasAddend := sh.Type == SecRelocationsWith
	dynamic := sh.Info == 0

	esize := sh.EntrySize
	if esize == 0 {
		return nil, errors.Errorf("relocation section %d has zero entry size", section)
	}
	count := sh.OBytes.Size / esize

	relocs := make([]Relocation, 0, count)
	c := NewCursor(r, sh.OBytes.Start)
	for i := uint64(0); i < count; i++ {
		var rel Relocation
		rel.Dynamic = dynamic
		rel.HasAddend = hasAddend

		target, err := c.Addr()
		if err != nil {
			return nil, errors.Wrapf(err, "relocation %d in section %d", i, section)
		}
		rel.Target = Offset(target)

		info, err := c.Xword()
		if err != nil {
			return nil, err
		}
		rel.Symbol = uint32(info >> 32)
		rel.Type = uint32(info)

		if hasAddend {
			addend, err := c.Xword()
			if err != nil {
				return nil, err
			}
			rel.Addend = int64(addend)
		}
		relocs = append(relocs, rel)
	}
	return relocs, nil
}
