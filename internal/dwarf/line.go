// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarf

import (
	"path"
	"sort"

	"github.com/jesse99/udb/internal/core"
	"github.com/pkg/errors"
)

// Location is a source coordinate produced by the line table.
type Location struct {
	Path   string
	Line   int
	Column int
}

// LineRow maps one machine address to a source location. Addresses
// are load-independent relative addresses.
type LineRow struct {
	Address core.RelativeAddr
	File    string
	Line    int
	Column  int
	IsStmt  bool

	// EndSequence marks the address one past the last instruction of a
	// run; the row carries no source location.
	EndSequence bool
}

// LineInfo is the decoded line table for a whole file, merged across
// compilation units and sorted by address.
type LineInfo struct {
	rows []LineRow
}

// Rows returns every row in address order.
func (li *LineInfo) Rows() []LineRow {
	return li.rows
}

// Find returns the source location for addr: the last row at or below
// addr that isn't an end-of-sequence marker.
func (li *LineInfo) Find(addr core.RelativeAddr) (Location, bool) {
	i := sort.Search(len(li.rows), func(i int) bool {
		return li.rows[i].Address > addr
	})
	if i == 0 {
		return Location{}, false
	}
	row := li.rows[i-1]
	if row.EndSequence {
		return Location{}, false
	}
	return Location{Path: row.File, Line: row.Line, Column: row.Column}, true
}

// lineHeader is one line program's header.
type lineHeader struct {
	version       uint16
	minInstLength uint8
	defaultIsStmt bool
	lineBase      int8
	lineRange     uint8
	opcodeBase    uint8
	stdLengths    []uint8
	includeDirs   []string
	files         []string

	programStart core.Offset
	unitEnd      core.Offset
}

// decodeLineHeader decodes one unit's line program header starting at
// the cursor. Versions 2 through 4 are accepted.
func decodeLineHeader(c *core.Cursor) (lineHeader, error) {
	var h lineHeader

	start := c.Pos
	length, err := c.Word()
	if err != nil {
		return h, errors.Wrap(err, "line unit length")
	}
	sixtyFour := false
	ulen := uint64(length)
	if length == 0xffffffff {
		sixtyFour = true
		if ulen, err = c.Xword(); err != nil {
			return h, errors.Wrap(err, "line unit length")
		}
	} else if length >= 0xfffffff0 {
		return h, errors.Errorf("reserved line unit length %#x", length)
	}
	lengthField := core.Offset(4)
	if sixtyFour {
		lengthField = 12
	}
	h.unitEnd = start + lengthField + core.Offset(ulen)

	if h.version, err = c.Half(); err != nil {
		return h, errors.Wrap(err, "line version")
	}
	if h.version < 2 || h.version > 4 {
		return h, errors.Errorf("can't decode line table version %d", h.version)
	}

	var headerLength uint64
	if sixtyFour {
		headerLength, err = c.Xword()
	} else {
		var hl uint32
		hl, err = c.Word()
		headerLength = uint64(hl)
	}
	if err != nil {
		return h, errors.Wrap(err, "line header length")
	}
	headerStart := c.Pos
	h.programStart = headerStart + core.Offset(headerLength)

	if h.minInstLength, err = c.Byte(); err != nil {
		return h, err
	}
	if h.version >= 4 {
		// maximum_operations_per_instruction; VLIW targets only.
		if _, err = c.Byte(); err != nil {
			return h, err
		}
	}
	isStmt, err := c.Byte()
	if err != nil {
		return h, err
	}
	h.defaultIsStmt = isStmt != 0

	base, err := c.Byte()
	if err != nil {
		return h, err
	}
	h.lineBase = int8(base)
	if h.lineRange, err = c.Byte(); err != nil {
		return h, err
	}
	if h.lineRange == 0 {
		return h, errors.New("line table has zero line range")
	}
	if h.opcodeBase, err = c.Byte(); err != nil {
		return h, err
	}

	h.stdLengths = make([]uint8, h.opcodeBase)
	for i := 1; i < int(h.opcodeBase); i++ {
		if h.stdLengths[i], err = c.Byte(); err != nil {
			return h, err
		}
	}

	// Include directories run until an empty string. Directory zero is
	// the compilation directory.
	h.includeDirs = []string{""}
	for {
		dir, err := c.CString()
		if err != nil {
			return h, errors.Wrap(err, "include directory")
		}
		if dir == "" {
			break
		}
		h.includeDirs = append(h.includeDirs, dir)
	}

	// File entries: name, directory index, mtime, size; terminated by
	// an empty name. File numbering starts at one.
	h.files = []string{""}
	for {
		name, err := c.CString()
		if err != nil {
			return h, errors.Wrap(err, "file name")
		}
		if name == "" {
			break
		}
		dir, err := c.Uleb()
		if err != nil {
			return h, err
		}
		if _, err = c.Uleb(); err != nil { // mtime
			return h, err
		}
		if _, err = c.Uleb(); err != nil { // size
			return h, err
		}
		if int(dir) < len(h.includeDirs) && h.includeDirs[dir] != "" {
			name = path.Join(h.includeDirs[dir], name)
		}
		h.files = append(h.files, name)
	}
	return h, nil
}

func (h *lineHeader) fileName(index uint64) string {
	if index < uint64(len(h.files)) {
		return h.files[index]
	}
	return ""
}

// lineMachine is the registers of the line number program.
type lineMachine struct {
	address uint64
	file    uint64
	line    int64
	column  uint64
	isStmt  bool
}

func newLineMachine(h *lineHeader) lineMachine {
	return lineMachine{file: 1, line: 1, isStmt: h.defaultIsStmt}
}

// runLineProgram executes one unit's program, appending rows.
func runLineProgram(c *core.Cursor, h *lineHeader, rows *[]LineRow) error {
	c.Pos = h.programStart
	m := newLineMachine(h)

	emit := func(endSequence bool) {
		*rows = append(*rows, LineRow{
			Address:     core.RelativeAddr(m.address),
			File:        h.fileName(m.file),
			Line:        int(m.line),
			Column:      int(m.column),
			IsStmt:      m.isStmt,
			EndSequence: endSequence,
		})
	}

	for c.Pos < h.unitEnd {
		opcode, err := c.Byte()
		if err != nil {
			return err
		}

		switch {
		case opcode >= h.opcodeBase:
			// Special opcode: advance both address and line, emit.
			adj := uint64(opcode - h.opcodeBase)
			m.address += uint64(h.minInstLength) * (adj / uint64(h.lineRange))
			m.line += int64(h.lineBase) + int64(adj%uint64(h.lineRange))
			emit(false)

		case opcode == 0:
			// Extended opcode: length-prefixed.
			length, err := c.Uleb()
			if err != nil {
				return err
			}
			next := c.Pos + core.Offset(length)
			sub, err := c.Byte()
			if err != nil {
				return err
			}
			switch sub {
			case 1: // end_sequence
				emit(true)
				m = newLineMachine(h)
			case 2: // set_address
				// The operand is address-sized, 4 bytes on a 32-bit
				// target.
				addr, err := c.Addr()
				if err != nil {
					return err
				}
				m.address = addr
			case 3: // define_file
				name, err := c.CString()
				if err != nil {
					return err
				}
				dir, err := c.Uleb()
				if err != nil {
					return err
				}
				if int(dir) < len(h.includeDirs) && h.includeDirs[dir] != "" {
					name = path.Join(h.includeDirs[dir], name)
				}
				h.files = append(h.files, name)
			}
			c.Pos = next

		default:
			switch opcode {
			case 1: // copy
				emit(false)
			case 2: // advance_pc
				adv, err := c.Uleb()
				if err != nil {
					return err
				}
				m.address += uint64(h.minInstLength) * adv
			case 3: // advance_line
				adv, err := c.Sleb()
				if err != nil {
					return err
				}
				m.line += adv
			case 4: // set_file
				if m.file, err = c.Uleb(); err != nil {
					return err
				}
			case 5: // set_column
				if m.column, err = c.Uleb(); err != nil {
					return err
				}
			case 6: // negate_stmt
				m.isStmt = !m.isStmt
			case 7: // basic_block
			case 8: // const_add_pc
				adj := uint64(255 - h.opcodeBase)
				m.address += uint64(h.minInstLength) * (adj / uint64(h.lineRange))
			case 9: // fixed_advance_pc
				adv, err := c.Half()
				if err != nil {
					return err
				}
				m.address += uint64(adv)
			default:
				// Unknown standard opcode: skip its operands.
				for i := uint8(0); i < h.stdLengths[opcode]; i++ {
					if _, err := c.Uleb(); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// DecodeLines decodes every line program in the .debug_line bytes.
// littleEndian and sixtyFourBit describe the file the section came
// from; the latter sets the width of set_address operands. A unit that
// fails to decode is skipped with a warning; earlier units' rows are
// kept.
func DecodeLines(data []byte, littleEndian, sixtyFourBit bool) (*LineInfo, []error) {
	r := core.NewRawReader(data, littleEndian, sixtyFourBit)
	c := core.NewCursor(r, 0)

	li := &LineInfo{}
	var warnings []error
	for uint64(c.Pos) < r.Len() {
		h, err := decodeLineHeader(c)
		if err != nil {
			warnings = append(warnings, err)
			break
		}
		if err := runLineProgram(c, &h, &li.rows); err != nil {
			warnings = append(warnings, err)
		}
		c.Pos = h.unitEnd
	}

	sort.SliceStable(li.rows, func(i, j int) bool {
		return li.rows[i].Address < li.rows[j].Address
	})
	return li, warnings
}
