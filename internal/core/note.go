// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Notes carry the interesting part of a core file: the crashed
// process's registers, its signal, its memory map. A PT_NOTE segment
// holds a sequence of records, each a name, a numeric type, and an
// opaque descriptor payload. The descriptor is left undecoded here;
// callers decode lazily based on Type.

// NoteType discriminates a note record. The numeric type codes only
// mean something relative to the note's name, so the three name spaces
// get separate Go types.
type NoteType interface {
	noteType()
	String() string
}

// CoreNote is the type of a note named "CORE".
type CoreNote uint32

const (
	NotePrStatus   CoreNote = 1
	NoteFpRegSet   CoreNote = 2
	NotePrPsInfo   CoreNote = 3
	NoteTaskStruct CoreNote = 4
	NotePlatform   CoreNote = 5
	NoteAuxV       CoreNote = 6
	NotePStatus    CoreNote = 10
	NotePsInfo     CoreNote = 13
	NoteSigInfo    CoreNote = 0x53494749
	NoteFile       CoreNote = 0x46494c45
)

func (CoreNote) noteType() {}

func (t CoreNote) String() string {
	switch t {
	case NotePrStatus:
		return "prstatus"
	case NoteFpRegSet:
		return "fpregset"
	case NotePrPsInfo:
		return "prpsinfo"
	case NoteTaskStruct:
		return "taskstruct"
	case NotePlatform:
		return "platform"
	case NoteAuxV:
		return "auxv"
	case NotePStatus:
		return "pstatus"
	case NotePsInfo:
		return "psinfo"
	case NoteSigInfo:
		return "siginfo"
	case NoteFile:
		return "file"
	}
	return fmt.Sprintf("core %#x", uint32(t))
}

// GnuNote is the type of a note named "GNU".
type GnuNote uint32

const (
	NoteAbiTag            GnuNote = 1
	NoteHwCap             GnuNote = 2
	NoteBuildID           GnuNote = 3
	NoteGoldVersion       GnuNote = 4
	NotePropType0         GnuNote = 5
	NotePackagingMetadata GnuNote = 0xcafe1a7e
)

func (GnuNote) noteType() {}

func (t GnuNote) String() string {
	switch t {
	case NoteAbiTag:
		return "abi tag"
	case NoteHwCap:
		return "hwcap"
	case NoteBuildID:
		return "build id"
	case NoteGoldVersion:
		return "gold version"
	case NotePropType0:
		return "property type 0"
	case NotePackagingMetadata:
		return "packaging metadata"
	}
	return fmt.Sprintf("gnu %#x", uint32(t))
}

// GenericNote is the type of a note with any other name.
type GenericNote uint32

const (
	NoteVersion        GenericNote = 1
	NoteArch           GenericNote = 2
	NoteBuildAttrOpen  GenericNote = 0x100
	NoteBuildAttrFunc  GenericNote = 0x101
)

func (GenericNote) noteType() {}

func (t GenericNote) String() string {
	switch t {
	case NoteVersion:
		return "version"
	case NoteArch:
		return "arch"
	case NoteBuildAttrOpen:
		return "build attributes (open)"
	case NoteBuildAttrFunc:
		return "build attributes (func)"
	}
	return fmt.Sprintf("generic %#x", uint32(t))
}

// Note is one undecoded note record. Desc locates the descriptor bytes
// in the file; decoding happens on demand.
type Note struct {
	Name string
	Type NoteType
	Desc Range[Offset]
}

// readNote decodes one note record starting at offset and returns it
// plus the offset of the next record. limit is the end of the note
// segment; a record that claims bytes past it is an error.
func readNote(r *Reader, offset, limit Offset) (Note, Offset, error) {
	var note Note
	c := NewCursor(r, offset)

	namesz, err := c.Word()
	if err != nil {
		return note, 0, err
	}
	descsz, err := c.Word()
	if err != nil {
		return note, 0, err
	}
	rawType, err := c.Word()
	if err != nil {
		return note, 0, err
	}

	// Name includes its NUL terminator in namesz. Old toolchains can
	// emit nameless notes with namesz == 0.
	if namesz > 0 {
		name, err := r.Slice(c.Pos, uint64(namesz)-1)
		if err != nil {
			return note, 0, errors.Wrap(err, "note name")
		}
		note.Name = string(name)
	}
	c.Skip(align4(uint64(namesz)))

	note.Desc = Range[Offset]{Start: c.Pos, Size: uint64(descsz)}
	next := c.Pos + Offset(align4(uint64(descsz)))
	if note.Desc.End() > limit || Offset(r.Len()) < note.Desc.End() {
		return note, 0, errors.Errorf("note %q descriptor runs past the end of its segment", note.Name)
	}

	switch note.Name {
	case "CORE":
		note.Type = CoreNote(rawType)
	case "GNU":
		note.Type = GnuNote(rawType)
	default:
		note.Type = GenericNote(rawType)
	}
	return note, next, nil
}

func align4(n uint64) uint64 {
	return (n + 3) &^ 3
}
