// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// SigInfo is the decoded siginfo note. The payload past the common
// header depends on the class encoded in the high half of the code.
type SigInfo struct {
	SignalNum uint64
	Errno     uint64
	Code      uint64
	Details   SignalDetails
}

// SignalDetails is the class-specific tail of a siginfo note.
type SignalDetails interface {
	signalDetails()
	String() string
}

// KillSignal was raised by kill(2) or raise(3).
type KillSignal struct {
	Pid uint64
	Uid uint64
}

// TimerSignal was raised by a POSIX timer expiry.
type TimerSignal struct{}

// PollSignal was raised by queued SIGIO.
type PollSignal struct{}

// FaultSignal was raised by a hardware fault; FaultAddr is the address
// the faulting instruction touched.
type FaultSignal struct {
	FaultAddr VirtualAddr
}

// ChildSignal reports a child process state change.
type ChildSignal struct {
	Pid    uint64
	Uid    uint64
	Status uint64
}

// MesgQSignal was raised by POSIX message queue state change.
type MesgQSignal struct{}

// SysSignal was raised by a seccomp trap.
type SysSignal struct{}

// PosixSignal is the fallback sender identity when the code encodes no
// class.
type PosixSignal struct {
	Pid uint64
	Uid uint64
}

func (KillSignal) signalDetails()  {}
func (TimerSignal) signalDetails() {}
func (PollSignal) signalDetails()  {}
func (FaultSignal) signalDetails() {}
func (ChildSignal) signalDetails() {}
func (MesgQSignal) signalDetails() {}
func (SysSignal) signalDetails()   {}
func (PosixSignal) signalDetails() {}

func (s KillSignal) String() string {
	return fmt.Sprintf("killed by pid %d (uid %d)", s.Pid, s.Uid)
}
func (TimerSignal) String() string { return "timer expired" }
func (PollSignal) String() string  { return "i/o poll event" }
func (s FaultSignal) String() string {
	return fmt.Sprintf("fault at address %#x", uint64(s.FaultAddr))
}
func (s ChildSignal) String() string {
	return fmt.Sprintf("child pid %d (uid %d) status %d", s.Pid, s.Uid, s.Status)
}
func (MesgQSignal) String() string { return "message queue state changed" }
func (SysSignal) String() string   { return "bad system call" }
func (s PosixSignal) String() string {
	return fmt.Sprintf("sent by pid %d (uid %d)", s.Pid, s.Uid)
}

const (
	sigClassKill  = 0
	sigClassTimer = 1 << 16
	sigClassPoll  = 2 << 16
	sigClassFault = 3 << 16
	sigClassChild = 4 << 16
	sigClassMesgQ = 6 << 16
	sigClassSys   = 7 << 16
)

// decodeSigInfo decodes a siginfo descriptor. Every field in the
// kernel's layout occupies a full architecture word here because the
// note is written with natural alignment.
func decodeSigInfo(r *Reader, desc Range[Offset]) (*SigInfo, error) {
	si := &SigInfo{}
	c := NewCursor(r, desc.Start)

	var err error
	if si.SignalNum, err = c.Ulong(); err != nil {
		return nil, errors.Wrap(err, "siginfo signal")
	}
	if si.Errno, err = c.Ulong(); err != nil {
		return nil, errors.Wrap(err, "siginfo errno")
	}
	if si.Code, err = c.Ulong(); err != nil {
		return nil, errors.Wrap(err, "siginfo code")
	}

	switch si.Code & 0xffff0000 {
	case sigClassKill:
		var d KillSignal
		if d.Pid, err = c.Ulong(); err != nil {
			return nil, err
		}
		if d.Uid, err = c.Ulong(); err != nil {
			return nil, err
		}
		si.Details = d
	case sigClassTimer:
		si.Details = TimerSignal{}
	case sigClassPoll:
		si.Details = PollSignal{}
	case sigClassFault:
		addr, err := c.Ulong()
		if err != nil {
			return nil, err
		}
		si.Details = FaultSignal{FaultAddr: VirtualAddr(addr)}
	case sigClassChild:
		var d ChildSignal
		if d.Pid, err = c.Ulong(); err != nil {
			return nil, err
		}
		if d.Uid, err = c.Ulong(); err != nil {
			return nil, err
		}
		if d.Status, err = c.Ulong(); err != nil {
			return nil, err
		}
		si.Details = d
	case sigClassMesgQ:
		si.Details = MesgQSignal{}
	case sigClassSys:
		si.Details = SysSignal{}
	default:
		var d PosixSignal
		if d.Pid, err = c.Ulong(); err != nil {
			return nil, err
		}
		if d.Uid, err = c.Ulong(); err != nil {
			return nil, err
		}
		si.Details = d
	}
	return si, nil
}
