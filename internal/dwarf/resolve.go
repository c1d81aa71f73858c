// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarf

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jesse99/udb/internal/core"
	"github.com/pkg/errors"
)

// Resolver answers source-level questions about a core/executable
// pair. Debug sections come from the executable; decoding happens on
// first use and is cached.
type Resolver struct {
	pair   *core.Pair
	logger log.Logger

	linesOnce sync.Once
	lines     *LineInfo
	linesErr  error

	typesOnce sync.Once
	types     []*Type
	typesErr  error
}

// NewResolver builds a resolver over pair. logger may be nil.
func NewResolver(pair *core.Pair, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Resolver{pair: pair, logger: logger}
}

func (r *Resolver) debugSection(name string) ([]byte, error) {
	exe := r.pair.Exe
	if exe == nil {
		return nil, errors.New("debug info needs an executable")
	}
	index, ok := exe.FindSectionNamed(name)
	if !ok {
		return nil, errors.Errorf("%s has no %s section", exe.Path, name)
	}
	return exe.SectionData(index)
}

// Lines returns the executable's decoded line table.
func (r *Resolver) Lines() (*LineInfo, error) {
	r.linesOnce.Do(func() {
		data, err := r.debugSection(".debug_line")
		if err != nil {
			r.linesErr = err
			return
		}
		var warnings []error
		reader := r.pair.Exe.Reader
		r.lines, warnings = DecodeLines(data, reader.LittleEndian, reader.SixtyFourBit)
		for _, w := range warnings {
			level.Warn(r.logger).Log("msg", "line table problem", "err", w)
		}
	})
	return r.lines, r.linesErr
}

// Types returns the executable's decoded debugging information
// entries, one tree per top-level entry.
func (r *Resolver) Types() ([]*Type, error) {
	r.typesOnce.Do(func() {
		info, err := r.debugSection(".debug_info")
		if err != nil {
			r.typesErr = err
			return
		}
		abbrev, err := r.debugSection(".debug_abbrev")
		if err != nil {
			r.typesErr = err
			return
		}
		str, _ := r.debugSection(".debug_str")

		var warnings []error
		r.types, warnings = DecodeInfo(info, abbrev, str, r.pair.Exe.Reader.LittleEndian)
		for _, w := range warnings {
			level.Warn(r.logger).Log("msg", "debug info problem", "err", w)
		}
	})
	return r.types, r.typesErr
}

// FindLine maps a virtual address, typically a backtrace entry, to
// the source file and line it came from. It needs both a core (for
// the memory map) and an executable (for the line table). An address
// with a mapping but no line table row is not an error; ok is simply
// false.
func (r *Resolver) FindLine(addr core.VirtualAddr) (Location, bool, error) {
	if r.pair.Core == nil {
		return Location{}, false, errors.New("line lookups need a core file")
	}
	if r.pair.Exe == nil {
		return Location{}, false, errors.New("line lookups need an executable")
	}
	rel, ok := r.pair.VaddrToRelative(addr)
	if !ok {
		return Location{}, false, errors.Errorf("address %#x is not in any mapped file", uint64(addr))
	}
	lines, err := r.Lines()
	if err != nil {
		return Location{}, false, err
	}
	loc, ok := lines.Find(rel)
	return loc, ok, nil
}

// FindFunction returns the subprogram entry whose range covers addr.
func (r *Resolver) FindFunction(addr core.VirtualAddr) (*Type, bool, error) {
	rel, ok := r.pair.VaddrToRelative(addr)
	if !ok {
		return nil, false, nil
	}
	types, err := r.Types()
	if err != nil {
		return nil, false, err
	}
	for _, unit := range types {
		if fn, ok := findSubprogram(unit, uint64(rel)); ok {
			return fn, true, nil
		}
	}
	return nil, false, nil
}

func findSubprogram(t *Type, addr uint64) (*Type, bool) {
	if t.Tag == TagSubprogram {
		if low, high, ok := pcRange(t); ok && addr >= low && addr < high {
			return t, true
		}
	}
	for _, child := range t.Children {
		if fn, ok := findSubprogram(child, addr); ok {
			return fn, true
		}
	}
	return nil, false
}

// pcRange extracts a subprogram's address range. high_pc may be an
// absolute address or an offset from low_pc depending on its form.
func pcRange(t *Type) (uint64, uint64, bool) {
	lowV, ok := t.FindAttr(AttrLowPC)
	if !ok {
		return 0, 0, false
	}
	low, ok := lowV.(uint64)
	if !ok {
		return 0, 0, false
	}
	highV, ok := t.FindAttr(AttrHighPC)
	if !ok {
		return 0, 0, false
	}
	high, ok := highV.(uint64)
	if !ok {
		return 0, 0, false
	}
	if high < low {
		high += low
	}
	return low, high, true
}
