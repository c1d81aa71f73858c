// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/jesse99/udb/arch"
	"github.com/pkg/errors"
)

// PrStatus is the decoded prstatus note: the stopped thread's signal,
// identity, and general-purpose registers. Registers are indexed by
// the architecture's slot numbering.
type PrStatus struct {
	SignalNum  int32
	SignalCode int32
	Errno      int32
	Pid        int32

	Registers []uint64

	arch *arch.Architecture
}

// decodePrStatus decodes the prstatus descriptor. The layout follows
// the kernel's struct elf_prstatus for 64-bit targets.
func decodePrStatus(r *Reader, desc Range[Offset], a *arch.Architecture) (*PrStatus, error) {
	ps := &PrStatus{arch: a}
	c := NewCursor(r, desc.Start)

	var err error
	if ps.SignalNum, err = c.Int(); err != nil {
		return nil, errors.Wrap(err, "prstatus signal")
	}
	if ps.SignalCode, err = c.Int(); err != nil {
		return nil, errors.Wrap(err, "prstatus code")
	}
	if ps.Errno, err = c.Int(); err != nil {
		return nil, errors.Wrap(err, "prstatus errno")
	}
	c.Skip(4) // cursig + padding

	// Pending and held signal sets.
	if _, err = c.Ulong(); err != nil {
		return nil, err
	}
	if _, err = c.Ulong(); err != nil {
		return nil, err
	}

	if ps.Pid, err = c.Int(); err != nil {
		return nil, errors.Wrap(err, "prstatus pid")
	}
	c.Skip(12) // ppid, pgrp, sid

	// utime, stime, cutime, cstime as timevals.
	for i := 0; i < 8; i++ {
		if _, err = c.Ulong(); err != nil {
			return nil, err
		}
	}

	ps.Registers = make([]uint64, len(a.RegisterNames))
	for i := range ps.Registers {
		if ps.Registers[i], err = c.Ulong(); err != nil {
			return nil, errors.Wrapf(err, "prstatus register %d", i)
		}
	}
	if c.Pos > desc.End() {
		return nil, errors.New("prstatus descriptor too short")
	}
	return ps, nil
}

// IP returns the instruction pointer at the time the core was taken.
func (ps *PrStatus) IP() VirtualAddr {
	return VirtualAddr(ps.Registers[ps.arch.IPSlot])
}

// FrameStackTop returns the frame base pointer register.
func (ps *PrStatus) FrameStackTop() VirtualAddr {
	return VirtualAddr(ps.Registers[ps.arch.FPSlot])
}

// FrameStackBottom returns the stack pointer register.
func (ps *PrStatus) FrameStackBottom() VirtualAddr {
	return VirtualAddr(ps.Registers[ps.arch.SPSlot])
}

// RegisterName returns the name for a register slot.
func (ps *PrStatus) RegisterName(slot int) string {
	return ps.arch.RegisterName(slot)
}

// RareRegister reports whether a slot is seldom interesting and can be
// elided from compact listings.
func (ps *PrStatus) RareRegister(slot int) bool {
	return ps.arch.RareRegister(slot)
}

// Signal renders the signal that stopped the process, with the
// per-signal detail code spelled out where the kernel defines one.
func (ps *PrStatus) Signal() string {
	name, details := signalName(ps.SignalNum)
	if name == "" {
		return fmt.Sprintf("signal %d", ps.SignalNum)
	}
	if detail, ok := details[ps.SignalCode]; ok {
		return fmt.Sprintf("%s (%s)", name, detail)
	}
	return name
}

var sigDetails = map[int32]map[int32]string{
	4: { // SIGILL
		1: "illegal opcode",
		2: "illegal operand",
		3: "illegal addressing mode",
		4: "illegal trap",
		5: "privileged opcode",
		6: "privileged register",
		7: "coprocessor error",
		8: "internal stack error",
	},
	5: { // SIGTRAP
		1: "process breakpoint",
		2: "process trace trap",
	},
	7: { // SIGBUS
		1: "invalid address alignment",
		2: "nonexistent physical address",
		3: "object-specific hardware error",
	},
	8: { // SIGFPE
		1: "integer divide by zero",
		2: "integer overflow",
		3: "floating-point divide by zero",
		4: "floating-point overflow",
		5: "floating-point underflow",
		6: "floating-point inexact result",
		7: "invalid floating-point operation",
		8: "subscript out of range",
	},
	11: { // SIGSEGV
		1: "address not mapped to object",
		2: "invalid permissions for mapped object",
	},
	17: { // SIGCHLD
		1: "child has exited",
		2: "child was killed",
		3: "child terminated abnormally",
		4: "traced child has trapped",
		5: "child has stopped",
		6: "stopped child has continued",
	},
}

var sigNames = []string{
	1:  "SIGHUP",
	2:  "SIGINT",
	3:  "SIGQUIT",
	4:  "SIGILL",
	5:  "SIGTRAP",
	6:  "SIGABRT",
	7:  "SIGBUS",
	8:  "SIGFPE",
	9:  "SIGKILL",
	10: "SIGUSR1",
	11: "SIGSEGV",
	12: "SIGUSR2",
	13: "SIGPIPE",
	14: "SIGALRM",
	15: "SIGTERM",
	16: "SIGSTKFLT",
	17: "SIGCHLD",
	18: "SIGCONT",
	19: "SIGSTOP",
	20: "SIGTSTP",
	21: "SIGTTIN",
	22: "SIGTTOU",
	23: "SIGURG",
	24: "SIGXCPU",
	25: "SIGXFSZ",
	26: "SIGVTALRM",
	27: "SIGPROF",
	28: "SIGWINCH",
	29: "SIGIO",
	30: "SIGPWR",
	31: "SIGSYS",
}

func signalName(num int32) (string, map[int32]string) {
	if num <= 0 || int(num) >= len(sigNames) {
		return "", nil
	}
	return sigNames[num], sigDetails[num]
}
