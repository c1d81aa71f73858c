// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/jesse99/udb/internal/core"
)

var (
	addrColor = color.New(color.FgCyan)
	funcColor = color.New(color.FgGreen)
	fileColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

// backtrace prints the frame pointer walk, annotating each frame with
// a symbol and source line when they can be found.
func (sh *shell) backtrace() error {
	frames, err := sh.pair.Backtrace()
	if err != nil && len(frames) == 0 {
		return err
	}
	for i, addr := range frames {
		fmt.Fprintf(sh.out, "#%-2d %s", i, addrColor.Sprintf("%#014x", uint64(addr)))
		if name, ok := sh.findSymbol(addr); ok {
			fmt.Fprintf(sh.out, "  %s", funcColor.Sprint(name))
		}
		if loc, ok, _ := sh.resolver.FindLine(addr); ok {
			fmt.Fprintf(sh.out, "  %s", fileColor.Sprintf("%s:%d", loc.Path, loc.Line))
		}
		fmt.Fprintln(sh.out)
	}
	if err != nil {
		fmt.Fprintf(sh.out, "%s\n", errColor.Sprintf("walk stopped: %v", err))
	}
	return nil
}

func (sh *shell) findSymbol(addr core.VirtualAddr) (string, bool) {
	if sh.pair.Exe != nil {
		if name, ok := sh.pair.Exe.FindSymbol(addr); ok {
			return name, true
		}
	}
	return "", false
}

func (sh *shell) line(addr core.VirtualAddr) error {
	loc, ok, err := sh.resolver.FindLine(addr)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(sh.out, "%#x: no line info\n", uint64(addr))
		return nil
	}
	fmt.Fprintf(sh.out, "%#x: %s\n", uint64(addr), fileColor.Sprintf("%s:%d:%d", loc.Path, loc.Line, loc.Column))
	return nil
}

// readMemory fetches bytes at a virtual address from whichever file
// maps the address, clamped to the containing segment.
func (sh *shell) readMemory(addr core.VirtualAddr, length uint64) ([]byte, error) {
	for _, f := range []*core.File{sh.pair.Core, sh.pair.Exe} {
		if f == nil {
			continue
		}
		seg, ok := f.FindLoadSegment(addr)
		if !ok {
			continue
		}
		offset, ok := seg.ToOffset(addr)
		if !ok {
			continue
		}
		if remaining := uint64(seg.OBytes.End() - offset); length > remaining {
			length = remaining
		}
		return f.Reader.Slice(offset, length)
	}
	return nil, errors.Errorf("address %#x is not in any load segment", uint64(addr))
}

func (sh *shell) hexdump(addr core.VirtualAddr, length uint64) error {
	data, err := sh.readMemory(addr, length)
	if err != nil {
		return err
	}
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[i:end]

		fmt.Fprintf(sh.out, "%s  ", addrColor.Sprintf("%#014x", uint64(addr)+uint64(i)))
		for j := 0; j < 16; j++ {
			if j == 8 {
				fmt.Fprint(sh.out, " ")
			}
			if j < len(row) {
				fmt.Fprintf(sh.out, "%02x ", row[j])
			} else {
				fmt.Fprint(sh.out, "   ")
			}
		}
		fmt.Fprint(sh.out, " |")
		for _, b := range row {
			if b >= 0x20 && b < 0x7f {
				fmt.Fprintf(sh.out, "%c", b)
			} else {
				fmt.Fprint(sh.out, ".")
			}
		}
		fmt.Fprintln(sh.out, "|")
	}
	return nil
}

// find searches every readable load segment for a byte pattern.
func (sh *shell) find(pattern string) error {
	needle, err := hex.DecodeString(pattern)
	if err != nil {
		return errors.Wrapf(err, "bad hex pattern %q", pattern)
	}
	if len(needle) == 0 {
		return errors.New("empty pattern")
	}

	f := sh.pair.Main()
	found := 0
	for _, seg := range f.Loads {
		data, err := f.Reader.Slice(seg.OBytes.Start, seg.OBytes.Size)
		if err != nil {
			continue
		}
		for start := 0; ; {
			i := bytes.Index(data[start:], needle)
			if i < 0 {
				break
			}
			offset := seg.OBytes.Start + core.Offset(start+i)
			if vaddr, ok := seg.ToVaddr(offset); ok {
				fmt.Fprintf(sh.out, "%s\n", addrColor.Sprintf("%#014x", uint64(vaddr)))
				found++
			}
			start += i + 1
		}
	}
	if found == 0 {
		fmt.Fprintln(sh.out, "not found")
	}
	return nil
}

func (sh *shell) infoHeader() error {
	f := sh.pair.Main()
	h := f.Header

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "file\t%s\n", f.Path)
	fmt.Fprintf(t, "type\t%s\n", h.Type)
	fmt.Fprintf(t, "machine\t%s\n", h.MachineName())
	fmt.Fprintf(t, "abi\t%s\n", h.ABIName())
	fmt.Fprintf(t, "entry\t%#x\n", uint64(h.Entry))
	fmt.Fprintf(t, "program headers\t%d\n", h.PhNum)
	fmt.Fprintf(t, "section headers\t%d\n", h.ShNum)
	fmt.Fprintf(t, "size\t%s\n", humanize.IBytes(f.Reader.Len()))
	return t.Flush()
}

func (sh *shell) infoLoads() error {
	f := sh.pair.Main()
	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "vaddr\tvsize\toffset\tfsize\tperm\tuse\t\n")
	for _, s := range f.Loads {
		fmt.Fprintf(t, "%#x\t%s\t%#x\t%s\t%s\t%s\t\n",
			uint64(s.VBytes.Start), humanize.IBytes(s.VBytes.Size),
			uint64(s.OBytes.Start), humanize.IBytes(s.OBytes.Size),
			s.FlagString(), sh.segmentUse(f, s))
	}
	return t.Flush()
}

// segmentUse guesses what a load segment holds: the mapped file
// backing it, the crashed thread's stack, or plain text/data by its
// permissions.
func (sh *shell) segmentUse(f *core.File, s *core.LoadSegment) string {
	if mmaps, err := f.MemoryMappedFiles(); err == nil {
		for _, m := range mmaps {
			if m.VBytes.Contains(s.VBytes.Start) {
				return m.Name
			}
		}
	}
	if ps, err := f.PrStatus(); err == nil && ps != nil {
		if s.VBytes.Contains(ps.FrameStackBottom()) {
			return "[stack]"
		}
	}
	if s.Executable() {
		return "[text]"
	}
	if s.Writeable() {
		return "[data]"
	}
	return ""
}

func (sh *shell) infoSegments() error {
	f := sh.pair.Main()
	h := f.Header

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(t, "type\toffset\tvaddr\tfilesz\tmemsz\tperm\t\n")
	for i := 0; i < int(h.PhNum); i++ {
		offset := h.PhOffset + core.Offset(uint64(i)*uint64(h.PhEntrySize))
		ph, err := core.DecodeProgramHeader(f.Reader, offset)
		if err != nil {
			return err
		}
		fmt.Fprintf(t, "%s\t%#x\t%#x\t%#x\t%#x\t%s\t\n",
			ph.Type, uint64(ph.Offset), uint64(ph.Vaddr),
			ph.FileSize, ph.MemSize, core.FlagString(ph.Flags))
	}
	return t.Flush()
}

func (sh *shell) infoSections() error {
	f := sh.pair.Main()
	if f.Header.ShNum == 0 && sh.pair.Exe != nil {
		f = sh.pair.Exe
	}
	sections, err := f.Sections()
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		fmt.Fprintln(sh.out, "no sections")
		return nil
	}

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "name\ttype\tvaddr\toffset\tsize\tflags\t\n")
	for i, s := range sections {
		name, _ := f.SectionName(i)
		fmt.Fprintf(t, "%s\t%s\t%#x\t%#x\t%s\t%s\t\n",
			name, s.Type, uint64(s.VBytes.Start), uint64(s.OBytes.Start),
			humanize.IBytes(s.OBytes.Size), core.SectionFlagString(s.Flags))
	}
	return t.Flush()
}

func (sh *shell) infoMapped() error {
	if sh.pair.Core == nil {
		return errors.New("memory maps need a core file")
	}
	mmaps, err := sh.pair.Core.MemoryMappedFiles()
	if err != nil {
		return err
	}
	if mmaps == nil {
		fmt.Fprintln(sh.out, "core has no mapped file note")
		return nil
	}

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "start\tend\toffset\tfile\t\n")
	for _, m := range mmaps {
		fmt.Fprintf(t, "%#x\t%#x\t%#x\t%s\t\n",
			uint64(m.VBytes.Start), uint64(m.VBytes.End()), m.Offset, m.Name)
	}
	return t.Flush()
}

func (sh *shell) infoProcess() error {
	if sh.pair.Core == nil {
		return errors.New("process state needs a core file")
	}
	ps, err := sh.pair.Core.PrStatus()
	if err != nil {
		return err
	}
	if ps == nil {
		fmt.Fprintln(sh.out, "core has no prstatus note")
		return nil
	}

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "pid\t%d\n", ps.Pid)
	fmt.Fprintf(t, "signal\t%s\n", ps.Signal())
	fmt.Fprintf(t, "ip\t%#x\n", uint64(ps.IP()))
	fmt.Fprintf(t, "frame base\t%#x\n", uint64(ps.FrameStackTop()))
	fmt.Fprintf(t, "stack pointer\t%#x\n", uint64(ps.FrameStackBottom()))
	return t.Flush()
}

func (sh *shell) infoRegisters() error {
	if sh.pair.Core == nil {
		return errors.New("registers need a core file")
	}
	ps, err := sh.pair.Core.PrStatus()
	if err != nil {
		return err
	}
	if ps == nil {
		fmt.Fprintln(sh.out, "core has no prstatus note")
		return nil
	}

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	for i, value := range ps.Registers {
		if ps.RareRegister(i) && value == 0 {
			continue
		}
		fmt.Fprintf(t, "%s\t%#x\t\n", ps.RegisterName(i), value)
	}
	return t.Flush()
}

func (sh *shell) infoSignals() error {
	if sh.pair.Core == nil {
		return errors.New("signals need a core file")
	}
	si, err := sh.pair.Core.SigInfo()
	if err != nil {
		return err
	}
	if si == nil {
		fmt.Fprintln(sh.out, "core has no siginfo note")
		return nil
	}

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "signal\t%d\n", si.SignalNum)
	fmt.Fprintf(t, "errno\t%d\n", si.Errno)
	fmt.Fprintf(t, "code\t%#x\n", si.Code)
	fmt.Fprintf(t, "details\t%s\n", si.Details)
	return t.Flush()
}

func (sh *shell) infoSymbols() error {
	f := sh.pair.Main()
	if f.Header.ShNum == 0 && sh.pair.Exe != nil {
		f = sh.pair.Exe
	}
	tables, err := f.SymbolTables()
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Fprintln(sh.out, "no symbol tables")
		return nil
	}

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "value\tsize\ttype\tbind\tvis\tndx\tname\t\n")
	for _, table := range tables {
		for _, e := range table.Entries {
			name, _ := f.SymbolName(table, e)
			fmt.Fprintf(t, "%#x\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
				uint64(e.Value), e.Size, e.Type, e.Binding, e.Visibility,
				e.Index, name)
		}
	}
	return t.Flush()
}

func (sh *shell) infoRelocations() error {
	f := sh.pair.Main()
	if f.Header.ShNum == 0 && sh.pair.Exe != nil {
		f = sh.pair.Exe
	}
	relocs, err := f.Relocations()
	if err != nil {
		return err
	}
	if len(relocs) == 0 {
		fmt.Fprintln(sh.out, "no relocations")
		return nil
	}

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "offset\ttype\tsymbol\taddend\tdyn\t\n")
	for _, r := range relocs {
		addend := ""
		if r.HasAddend {
			addend = fmt.Sprintf("%d", r.Addend)
		}
		fmt.Fprintf(t, "%#x\t%s\t%d\t%s\t%v\t\n",
			uint64(r.Target), r.TypeName(), r.Symbol, addend, r.Dynamic)
	}
	return t.Flush()
}

func (sh *shell) infoLines() error {
	lines, err := sh.resolver.Lines()
	if err != nil {
		return err
	}

	t := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(t, "address\tline\tfile\t\n")
	for _, row := range lines.Rows() {
		if row.EndSequence {
			continue
		}
		fmt.Fprintf(t, "%#x\t%d\t%s\t\n", uint64(row.Address), row.Line, row.File)
	}
	return t.Flush()
}
