// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jesse99/udb/arch"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// File is one opened ELF file, either an executable or a core dump.
// The header, load segments, and note records are decoded eagerly at
// open time; everything else is decoded on first use and cached.
type File struct {
	Path   string
	Reader *Reader
	Header *ElfHeader

	// Loads are the PT_LOAD segments in file order.
	Loads []*LoadSegment

	// Notes are the records from every PT_NOTE segment, in file order.
	// Duplicate types keep only the last record.
	Notes []Note

	notesByType map[NoteType]Note

	logger log.Logger
	mapped []byte

	prstatusOnce sync.Once
	prstatus     *PrStatus
	prstatusErr  error

	siginfoOnce sync.Once
	siginfo     *SigInfo
	siginfoErr  error

	mmapsOnce sync.Once
	mmaps     []MemoryMappedFile
	mmapsErr  error

	sectionsOnce sync.Once
	sections     []SectionHeader
	sectionsErr  error

	symbolsOnce sync.Once
	symbols     []*SymbolTable
	symbolsErr  error

	relocsOnce sync.Once
	relocs     []Relocation
	relocsErr  error
}

// Option configures an opened File.
type Option func(*File)

// WithLogger routes open-time diagnostics to logger instead of
// discarding them.
func WithLogger(logger log.Logger) Option {
	return func(f *File) {
		f.logger = logger
	}
}

// Open maps path into memory and decodes its structure. Open succeeds
// for any well-formed executable, shared object, or core file;
// malformed notes are logged and skipped rather than failing the open.
func Open(path string, options ...Option) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer fd.Close()

	info, err := fd.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	data, err := unix.Mmap(int(fd.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}

	f, err := NewFileData(path, data, options...)
	if err != nil {
		unix.Munmap(data)
		return nil, err
	}
	f.mapped = data
	return f, nil
}

// NewFileData decodes an ELF image already in memory.
func NewFileData(path string, data []byte, options ...Option) (*File, error) {
	f := &File{
		Path:        path,
		logger:      log.NewNopLogger(),
		notesByType: make(map[NoteType]Note),
	}
	for _, opt := range options {
		opt(f)
	}

	r, err := NewReader(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	f.Reader = r

	h, err := DecodeHeader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	f.Header = &h

	if err := f.loadSegments(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return f, nil
}

// Close releases the mapping. The File must not be used afterwards.
func (f *File) Close() error {
	if f.mapped == nil {
		return nil
	}
	data := f.mapped
	f.mapped = nil
	return unix.Munmap(data)
}

// loadSegments walks the program header table collecting load segments
// and note records.
func (f *File) loadSegments() error {
	r := f.Reader
	h := f.Header
	for i := 0; i < int(h.PhNum); i++ {
		offset := h.PhOffset + Offset(uint64(i)*uint64(h.PhEntrySize))
		ph, err := DecodeProgramHeader(r, offset)
		if err != nil {
			return errors.Wrapf(err, "program header %d", i)
		}
		switch ph.Type {
		case SegLoad:
			// Both views span p_memsz so the two translations stay
			// inverses; p_filesz only bounds what the reader can
			// actually deliver.
			f.Loads = append(f.Loads, &LoadSegment{
				OBytes: Range[Offset]{Start: ph.Offset, Size: ph.MemSize},
				VBytes: Range[VirtualAddr]{Start: ph.Vaddr, Size: ph.MemSize},
				Flags:  ph.Flags,
			})
		case SegNote:
			f.readNotes(ph)
		}
	}
	return nil
}

// readNotes decodes the note records in a single PT_NOTE segment. A
// malformed record abandons the rest of that segment but keeps the
// records already decoded.
func (f *File) readNotes(ph ProgramHeader) {
	limit := ph.Offset + Offset(ph.FileSize)
	pos := ph.Offset
	for pos < limit {
		note, next, err := readNote(f.Reader, pos, limit)
		if err != nil {
			level.Warn(f.logger).Log("msg", "skipping rest of note segment", "err", err)
			return
		}
		f.Notes = append(f.Notes, note)
		f.notesByType[note.Type] = note
		pos = next
	}
}

// FindNote returns the last note of the given type, if any.
func (f *File) FindNote(t NoteType) (Note, bool) {
	note, ok := f.notesByType[t]
	return note, ok
}

// FindLoadSegment returns the load segment containing addr.
func (f *File) FindLoadSegment(addr VirtualAddr) (*LoadSegment, bool) {
	for _, s := range f.Loads {
		if s.VBytes.Contains(addr) {
			return s, true
		}
	}
	return nil, false
}

// VaddrToOffset translates a virtual address into a file offset via
// the load segment that maps it.
func (f *File) VaddrToOffset(addr VirtualAddr) (Offset, bool) {
	s, ok := f.FindLoadSegment(addr)
	if !ok {
		return 0, false
	}
	return s.ToOffset(addr)
}

// OffsetToVaddr translates a file offset into the virtual address a
// load segment maps it to.
func (f *File) OffsetToVaddr(offset Offset) (VirtualAddr, bool) {
	for _, s := range f.Loads {
		if s.OBytes.Contains(offset) {
			return s.ToVaddr(offset)
		}
	}
	return 0, false
}

// VaddrToRelative translates a virtual address into a position within
// the file that was mapped there, using the NT_FILE memory map. This
// is the coordinate the companion executable's line table speaks.
func (f *File) VaddrToRelative(addr VirtualAddr) (RelativeAddr, bool) {
	mmaps, err := f.MemoryMappedFiles()
	if err != nil {
		return 0, false
	}
	for _, m := range mmaps {
		if m.VBytes.Contains(addr) {
			return RelativeAddr(uint64(addr-m.VBytes.Start) + m.Offset), true
		}
	}
	return 0, false
}

// Sections returns the decoded section header table. Core files
// usually have none.
func (f *File) Sections() ([]SectionHeader, error) {
	f.sectionsOnce.Do(func() {
		h := f.Header
		for i := 0; i < int(h.ShNum); i++ {
			offset := h.ShOffset + Offset(uint64(i)*uint64(h.ShEntrySize))
			sh, err := DecodeSectionHeader(f.Reader, offset)
			if err != nil {
				f.sectionsErr = errors.Wrapf(err, "section header %d", i)
				return
			}
			f.sections = append(f.sections, sh)
		}
	})
	return f.sections, f.sectionsErr
}

// FindString returns the NUL-terminated string at index into the
// string table section.
func (f *File) FindString(section int, index uint32) (string, error) {
	sections, err := f.Sections()
	if err != nil {
		return "", err
	}
	if section < 0 || section >= len(sections) {
		return "", errors.Errorf("string table section %d out of range", section)
	}
	sh := sections[section]
	if sh.Type != SecStringTable {
		return "", errors.Errorf("section %d is not a string table", section)
	}
	if uint64(index) >= sh.OBytes.Size {
		return "", errors.Errorf("string index %d past end of section %d", index, section)
	}
	c := NewCursor(f.Reader, sh.OBytes.Start+Offset(index))
	return c.CString()
}

// SectionName returns the name of the section at index.
func (f *File) SectionName(index int) (string, error) {
	sections, err := f.Sections()
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(sections) {
		return "", errors.Errorf("section %d out of range", index)
	}
	return f.FindString(int(f.Header.StrTableIndex), sections[index].Name)
}

// FindSectionNamed returns the index of the section with the given
// name.
func (f *File) FindSectionNamed(name string) (int, bool) {
	sections, err := f.Sections()
	if err != nil {
		return 0, false
	}
	for i := range sections {
		n, err := f.SectionName(i)
		if err == nil && n == name {
			return i, true
		}
	}
	return 0, false
}

// SectionData returns the bytes of the section at index.
func (f *File) SectionData(index int) ([]byte, error) {
	sections, err := f.Sections()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(sections) {
		return nil, errors.Errorf("section %d out of range", index)
	}
	sh := sections[index]
	return f.Reader.Slice(sh.OBytes.Start, sh.OBytes.Size)
}

// PrStatus returns the decoded prstatus note, or nil if the file has
// none.
func (f *File) PrStatus() (*PrStatus, error) {
	f.prstatusOnce.Do(func() {
		note, ok := f.FindNote(NotePrStatus)
		if !ok {
			return
		}
		a := f.Arch()
		if a == nil {
			f.prstatusErr = errors.Errorf("can't decode registers for machine %s", f.Header.MachineName())
			return
		}
		// Never keep a partially decoded record; a truncated note reads
		// as no note at all.
		ps, err := decodePrStatus(f.Reader, note.Desc, a)
		if err != nil {
			level.Warn(f.logger).Log("msg", "ignoring malformed prstatus note", "err", err)
			return
		}
		f.prstatus = ps
	})
	return f.prstatus, f.prstatusErr
}

// SigInfo returns the decoded siginfo note, or nil if the file has
// none.
func (f *File) SigInfo() (*SigInfo, error) {
	f.siginfoOnce.Do(func() {
		note, ok := f.FindNote(NoteSigInfo)
		if !ok {
			return
		}
		f.siginfo, f.siginfoErr = decodeSigInfo(f.Reader, note.Desc)
	})
	return f.siginfo, f.siginfoErr
}

// MemoryMappedFiles returns the mappings recorded in the NT_FILE note,
// or nil if the file has none.
func (f *File) MemoryMappedFiles() ([]MemoryMappedFile, error) {
	f.mmapsOnce.Do(func() {
		note, ok := f.FindNote(NoteFile)
		if !ok {
			return
		}
		f.mmaps, f.mmapsErr = decodeMemoryMappedFiles(f.Reader, note.Desc)
	})
	return f.mmaps, f.mmapsErr
}

// SymbolTables returns every symtab and dynsym section decoded.
func (f *File) SymbolTables() ([]*SymbolTable, error) {
	f.symbolsOnce.Do(func() {
		sections, err := f.Sections()
		if err != nil {
			f.symbolsErr = err
			return
		}
		for i, sh := range sections {
			if sh.Type != SecSymbolTable && sh.Type != SecDynamicSymbolTable {
				continue
			}
			table, err := decodeSymbolTable(f.Reader, sections, i)
			if err != nil {
				f.symbolsErr = err
				return
			}
			f.symbols = append(f.symbols, table)
		}
	})
	return f.symbols, f.symbolsErr
}

// SymbolName returns the name of an entry in table.
func (f *File) SymbolName(table *SymbolTable, entry SymbolTableEntry) (string, error) {
	if entry.Name == 0 {
		return "", nil
	}
	return f.FindString(table.StrTable, entry.Name)
}

// FindSymbol returns the function symbol covering addr, searching all
// tables.
func (f *File) FindSymbol(addr VirtualAddr) (string, bool) {
	tables, err := f.SymbolTables()
	if err != nil {
		return "", false
	}
	for _, t := range tables {
		for _, e := range t.Entries {
			if e.Type != SymFunc || e.Size == 0 {
				continue
			}
			if addr >= e.Value && addr < e.Value+VirtualAddr(e.Size) {
				name, err := f.SymbolName(t, e)
				if err != nil || name == "" {
					continue
				}
				return name, true
			}
		}
	}
	return "", false
}

// Relocations returns every relocation in the file's REL and RELA
// sections.
func (f *File) Relocations() ([]Relocation, error) {
	f.relocsOnce.Do(func() {
		sections, err := f.Sections()
		if err != nil {
			f.relocsErr = err
			return
		}
		for i, sh := range sections {
			if sh.Type != SecRelocationsWith && sh.Type != SecRelocationsWithout {
				continue
			}
			relocs, err := decodeRelocations(f.Reader, f.Header, sections, i)
			if err != nil {
				f.relocsErr = err
				return
			}
			f.relocs = append(f.relocs, relocs...)
		}
	})
	return f.relocs, f.relocsErr
}

// Arch returns the register description for the file's machine, or
// nil when registers can't be interpreted.
func (f *File) Arch() *arch.Architecture {
	if f.Header.Machine == EMX8664 && f.Reader.SixtyFourBit {
		return &arch.AMD64
	}
	return nil
}
