// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import "github.com/pkg/errors"

// MemoryMappedFile records one file-backed mapping from the NT_FILE
// note: the virtual range it covered and where in the backing file the
// mapping started.
type MemoryMappedFile struct {
	VBytes Range[VirtualAddr]

	// Offset is the byte offset into the backing file, already scaled
	// by the note's page size.
	Offset uint64

	Name string
}

// decodeMemoryMappedFiles decodes an NT_FILE descriptor. The note
// stores fixed-size (start, end, page offset) triples followed by a
// block of NUL-terminated paths, one per triple. Adjacent mappings of
// the same file are merged.
func decodeMemoryMappedFiles(r *Reader, desc Range[Offset]) ([]MemoryMappedFile, error) {
	c := NewCursor(r, desc.Start)

	count, err := c.Ulong()
	if err != nil {
		return nil, errors.Wrap(err, "mapped file count")
	}
	pageSize, err := c.Ulong()
	if err != nil {
		return nil, errors.Wrap(err, "mapped file page size")
	}

	// The count has to fit inside the descriptor; the cursor alone
	// can't tell where the note ends.
	wordSize := uint64(4)
	if r.SixtyFourBit {
		wordSize = 8
	}
	if desc.Size < 2*wordSize || count > (desc.Size-2*wordSize)/(3*wordSize) {
		return nil, errors.Errorf("mapped file count %d overruns the note", count)
	}

	type triple struct {
		start, end, offset uint64
	}
	triples := make([]triple, count)
	for i := range triples {
		if triples[i].start, err = c.Ulong(); err != nil {
			return nil, err
		}
		if triples[i].end, err = c.Ulong(); err != nil {
			return nil, err
		}
		if triples[i].offset, err = c.Ulong(); err != nil {
			return nil, err
		}
	}

	var files []MemoryMappedFile
	for i := range triples {
		name, err := c.CString()
		if err != nil {
			return nil, errors.Wrap(err, "mapped file name")
		}
		t := triples[i]
		next := MemoryMappedFile{
			VBytes: Range[VirtualAddr]{Start: VirtualAddr(t.start), Size: t.end - t.start},
			Offset: t.offset * pageSize,
			Name:   name,
		}
		if n := len(files); n > 0 && files[n-1].VBytes.End() == next.VBytes.Start && files[n-1].Name == next.Name {
			files[n-1].VBytes.Size += next.VBytes.Size
			continue
		}
		files = append(files, next)
	}
	return files, nil
}
