// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarf

import (
	"github.com/jesse99/udb/internal/core"
	"github.com/pkg/errors"
)

// AttrSpec is one attribute/form pair in an abbreviation.
type AttrSpec struct {
	Attr Attr
	Form Form
}

// Abbrev is one entry in an abbreviation table: the template that
// tells the info decoder how to read a debugging information entry.
type Abbrev struct {
	Tag         Tag
	HasChildren bool
	Attrs       []AttrSpec
}

// decodeAbbrevTable decodes one abbreviation table starting at offset
// in the .debug_abbrev bytes. Tables are keyed by the abbreviation
// code; a zero code terminates the table.
func decodeAbbrevTable(r *core.Reader, offset core.Offset) (map[uint64]*Abbrev, error) {
	table := make(map[uint64]*Abbrev)
	c := core.NewCursor(r, offset)
	for {
		code, err := c.Uleb()
		if err != nil {
			return nil, errors.Wrap(err, "abbrev code")
		}
		if code == 0 {
			return table, nil
		}

		a := &Abbrev{}
		tag, err := c.Uleb()
		if err != nil {
			return nil, errors.Wrapf(err, "abbrev %d tag", code)
		}
		a.Tag = Tag(tag)

		children, err := c.Byte()
		if err != nil {
			return nil, errors.Wrapf(err, "abbrev %d children", code)
		}
		a.HasChildren = children != 0

		// Attribute specs run until an (0, 0) pair.
		for {
			attr, err := c.Uleb()
			if err != nil {
				return nil, errors.Wrapf(err, "abbrev %d attr", code)
			}
			form, err := c.Uleb()
			if err != nil {
				return nil, errors.Wrapf(err, "abbrev %d form", code)
			}
			if attr == 0 && form == 0 {
				break
			}
			if attr == 0 || form == 0 {
				return nil, errors.Errorf("abbrev %d has a half-terminated attribute pair", code)
			}
			a.Attrs = append(a.Attrs, AttrSpec{Attr: Attr(attr), Form: Form(form)})
		}
		table[code] = a
	}
}
