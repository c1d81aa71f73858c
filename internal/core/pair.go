// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"github.com/pkg/errors"
)

// Pair holds the files under examination: a core dump, an executable,
// or both. Queries fall through from the core to the executable when
// the core doesn't answer them.
type Pair struct {
	Core *File
	Exe  *File
}

// NewPair classifies files by their ELF type and builds a Pair. At
// most one core and one executable are allowed; shared objects count
// as executables.
func NewPair(files ...*File) (*Pair, error) {
	p := &Pair{}
	for _, f := range files {
		switch f.Header.Type {
		case TypeCore:
			if p.Core != nil {
				return nil, errors.Errorf("both %s and %s are core files", p.Core.Path, f.Path)
			}
			p.Core = f
		case TypeExec, TypeShared:
			if p.Exe != nil {
				return nil, errors.Errorf("both %s and %s are executables", p.Exe.Path, f.Path)
			}
			p.Exe = f
		default:
			return nil, errors.Errorf("%s is neither an executable nor a core file", f.Path)
		}
	}
	return p, nil
}

// Main returns the file queries default to: the core when present,
// else the executable.
func (p *Pair) Main() *File {
	if p.Core != nil {
		return p.Core
	}
	return p.Exe
}

// VaddrToRelative translates a live core address to a position in the
// file mapped at that address. The memory map lives in the core.
func (p *Pair) VaddrToRelative(addr VirtualAddr) (RelativeAddr, bool) {
	if p.Core == nil {
		return 0, false
	}
	return p.Core.VaddrToRelative(addr)
}

// Backtrace walks the frame pointer chain recorded in the core's
// stack. It requires the program to have been compiled with frame
// pointers. The crash address is always the first entry; when the
// frame base can't be located the single-entry trace is returned along
// with the error.
func (p *Pair) Backtrace() ([]VirtualAddr, error) {
	if p.Core == nil {
		return nil, errors.New("backtraces need a core file")
	}
	ps, err := p.Core.PrStatus()
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return nil, errors.New("core file has no prstatus note")
	}

	frames := []VirtualAddr{ps.IP()}

	fp := ps.FrameStackTop()
	seg, ok := p.Core.FindLoadSegment(fp)
	if !ok || !seg.Writeable() {
		return frames, errors.Errorf("couldn't find load segment for frame base %#x", uint64(fp))
	}

	// PrStatus succeeding means the machine is one we know.
	a := p.Core.Arch()
	wordSize := uint64(a.PointerSize)
	for {
		offset, ok := p.Core.VaddrToOffset(fp)
		if !ok {
			break
		}
		words, err := p.Core.Reader.Slice(offset, 2*wordSize)
		if err != nil {
			break
		}
		savedFp := a.Uint(words[:a.PointerSize])
		retAddr := a.Uint(words[a.PointerSize:])
		if retAddr == 0 {
			break
		}
		frames = append(frames, VirtualAddr(retAddr))

		// Stacks grow down, so each saved frame base must be above the
		// current one; anything else means the chain is corrupt.
		if savedFp <= uint64(fp) {
			break
		}
		fp = VirtualAddr(savedFp)
	}
	return frames, nil
}
