// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch contains architecture-specific definitions.
package arch

import (
	"encoding/binary"
)

// Architecture defines the architecture-specific details for a given machine.
type Architecture struct {
	// Name is the canonical short name, e.g. "amd64".
	Name string
	// PointerSize is the size of a pointer, in bytes.
	PointerSize int
	// ByteOrder is the byte order for ints and pointers.
	ByteOrder binary.ByteOrder

	// RegisterNames maps a slot in the prstatus general-purpose register
	// vector to a display name. Empty string means the slot has no
	// well-known name.
	RegisterNames []string

	// IPSlot, FPSlot and SPSlot are the register vector slots holding the
	// instruction pointer, the conventional frame pointer, and the stack
	// pointer.
	IPSlot, FPSlot, SPSlot int

	// rare marks slots that are seldom interesting (segment registers,
	// flags and the like).
	rare map[int]bool
}

// RegisterName returns the display name for register slot n, or "?" if
// the slot has no known name.
func (a *Architecture) RegisterName(n int) string {
	if n < 0 || n >= len(a.RegisterNames) || a.RegisterNames[n] == "" {
		return "?"
	}
	return a.RegisterNames[n]
}

// RareRegister reports whether register slot n is rarely of interest
// (segment registers, flag words, kernel bookkeeping).
func (a *Architecture) RareRegister(n int) bool {
	return a.rare[n]
}

func (a *Architecture) Uint(buf []byte) uint64 {
	switch a.PointerSize {
	case 4:
		return uint64(a.ByteOrder.Uint32(buf[:4]))
	case 8:
		return a.ByteOrder.Uint64(buf[:8])
	}
	panic("bad PointerSize")
}

// AMD64 describes x86-64 Linux. The register slot order is the kernel's
// elf_gregset_t layout from sys/user.h.
var AMD64 = Architecture{
	Name:        "amd64",
	PointerSize: 8,
	ByteOrder:   binary.LittleEndian,
	RegisterNames: []string{
		"r15", "r14", "r13", "r12", "rbp", "rbx", "r11", "r10",
		"r9", "r8", "rax", "rcx", "rdx", "rsi", "rdi", "orig_rax",
		"rip", "cs", "eflags", "rsp", "ss", "fs_base", "gs_base",
		"ds", "es", "fs", "gs",
	},
	IPSlot: 16,
	FPSlot: 4,
	SPSlot: 19,
	rare: map[int]bool{
		15: true, // orig_rax
		17: true, // cs
		18: true, // eflags
		20: true, // ss
		21: true, // fs_base
		22: true, // gs_base
		23: true, // ds
		24: true, // es
		25: true, // fs
		26: true, // gs
	},
}
