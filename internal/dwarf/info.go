// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarf

import (
	"fmt"

	"github.com/jesse99/udb/internal/core"
	"github.com/pkg/errors"
)

// FormError reports an attribute encoded with a form the decoder
// doesn't accept for that attribute. The value is still skipped so
// decoding can continue.
type FormError struct {
	Attr Attr
	Form Form
}

func (e *FormError) Error() string {
	return fmt.Sprintf("attribute %s has unexpected form %s", e.Attr, e.Form)
}

// UnitHeader is the header of one compilation unit in .debug_info.
type UnitHeader struct {
	// Length counts the unit's bytes after the initial length field.
	Length uint64

	// SixtyFour is true for units using the 64-bit DWARF format.
	SixtyFour bool

	Version      uint16
	AbbrevOffset uint64
	AddrSize     uint8
}

// decodeUnitHeader decodes a compilation unit header. Only versions 2
// and 4 are accepted.
func decodeUnitHeader(c *core.Cursor) (UnitHeader, error) {
	var h UnitHeader

	length, err := c.Word()
	if err != nil {
		return h, errors.Wrap(err, "unit length")
	}
	if length == 0xffffffff {
		h.SixtyFour = true
		if h.Length, err = c.Xword(); err != nil {
			return h, errors.Wrap(err, "unit length")
		}
	} else if length >= 0xfffffff0 {
		return h, errors.Errorf("reserved unit length %#x", length)
	} else {
		h.Length = uint64(length)
	}

	if h.Version, err = c.Half(); err != nil {
		return h, errors.Wrap(err, "unit version")
	}
	if h.Version != 2 && h.Version != 4 {
		return h, errors.Errorf("can't decode DWARF version %d", h.Version)
	}

	if h.SixtyFour {
		h.AbbrevOffset, err = c.Xword()
	} else {
		var o uint32
		o, err = c.Word()
		h.AbbrevOffset = uint64(o)
	}
	if err != nil {
		return h, errors.Wrap(err, "abbrev offset")
	}

	if h.AddrSize, err = c.Byte(); err != nil {
		return h, errors.Wrap(err, "address size")
	}
	return h, nil
}

// Attribute is one decoded attribute. Value's dynamic type depends on
// the form: uint64 for constants, addresses, offsets, and references,
// string for strings, bool for flags, int64 for signed constants, and
// []byte for blocks.
type Attribute struct {
	Name  Attr
	Value any
}

// Type is a decoded debugging information entry together with its
// children.
type Type struct {
	Tag      Tag
	Attrs    []Attribute
	Children []*Type
}

// FindAttr returns the value of the named attribute.
func (t *Type) FindAttr(name Attr) (any, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// Name returns the entry's name attribute, or "".
func (t *Type) Name() string {
	if v, ok := t.FindAttr(AttrName); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// attrForms lists the forms accepted for each attribute the decoder
// understands. Attributes not listed are kept as-is without
// validation.
var attrForms = map[Attr][]Form{
	AttrName:        {FormString, FormStrp},
	AttrLowPC:       {FormAddr},
	AttrHighPC:      {FormAddr, FormData1, FormData2, FormData4, FormData8, FormUdata},
	AttrByteSize:    {FormData1, FormData2, FormData4, FormData8, FormUdata, FormSdata},
	AttrEncoding:    {FormData1, FormData2, FormUdata},
	AttrDeclFile:    {FormData1, FormData2, FormData4, FormUdata},
	AttrDeclLine:    {FormData1, FormData2, FormData4, FormUdata},
	AttrStmtList:    {FormData4, FormData8, FormSecOffset},
	AttrCompDir:     {FormString, FormStrp},
	AttrProducer:    {FormString, FormStrp},
	AttrLanguage:    {FormData1, FormData2, FormUdata},
	AttrType:        {FormRef1, FormRef2, FormRef4, FormRef8, FormRefUdata, FormRefAddr},
	AttrExternal:    {FormFlag, FormFlagPresent},
	AttrDeclaration: {FormFlag, FormFlagPresent},
	AttrPrototyped:  {FormFlag, FormFlagPresent},
	AttrLinkageName: {FormString, FormStrp},
	AttrConstValue:  {FormData1, FormData2, FormData4, FormData8, FormSdata, FormUdata, FormString, FormStrp, FormBlock, FormBlock1},
	AttrCount:       {FormData1, FormData2, FormData4, FormData8, FormUdata, FormSdata},
}

func formAllowed(attr Attr, form Form) bool {
	forms, ok := attrForms[attr]
	if !ok {
		return true
	}
	for _, f := range forms {
		if f == form {
			return true
		}
	}
	return false
}

// typeParser decodes the entries of one compilation unit.
type typeParser struct {
	c       *core.Cursor
	unit    UnitHeader
	abbrevs map[uint64]*Abbrev
	strings *core.Cursor // .debug_str, or nil

	// Warnings collects the recoverable problems hit while decoding;
	// the entries decoded before each problem are kept.
	Warnings []error
}

// readForm decodes one attribute value.
func (p *typeParser) readForm(form Form) (any, error) {
	c := p.c
	switch form {
	case FormAddr:
		if p.unit.AddrSize == 4 {
			v, err := c.Word()
			return uint64(v), err
		}
		return c.Xword()
	case FormData1, FormRef1:
		v, err := c.Byte()
		return uint64(v), err
	case FormData2, FormRef2:
		v, err := c.Half()
		return uint64(v), err
	case FormData4, FormRef4:
		v, err := c.Word()
		return uint64(v), err
	case FormData8, FormRef8, FormRefSig8:
		return c.Xword()
	case FormSdata:
		return c.Sleb()
	case FormUdata, FormRefUdata:
		return c.Uleb()
	case FormString:
		return c.CString()
	case FormStrp:
		var off uint64
		var err error
		if p.unit.SixtyFour {
			off, err = c.Xword()
		} else {
			var o uint32
			o, err = c.Word()
			off = uint64(o)
		}
		if err != nil {
			return nil, err
		}
		if p.strings == nil {
			return "", nil
		}
		sc := core.NewCursor(p.strings.R, p.strings.Pos+core.Offset(off))
		return sc.CString()
	case FormRefAddr, FormSecOffset:
		if p.unit.SixtyFour {
			return c.Xword()
		}
		v, err := c.Word()
		return uint64(v), err
	case FormFlag:
		v, err := c.Byte()
		return v != 0, err
	case FormFlagPresent:
		return true, nil
	case FormBlock1:
		n, err := c.Byte()
		if err != nil {
			return nil, err
		}
		return p.readBlock(uint64(n))
	case FormBlock2:
		n, err := c.Half()
		if err != nil {
			return nil, err
		}
		return p.readBlock(uint64(n))
	case FormBlock4:
		n, err := c.Word()
		if err != nil {
			return nil, err
		}
		return p.readBlock(uint64(n))
	case FormBlock, FormExprloc:
		n, err := c.Uleb()
		if err != nil {
			return nil, err
		}
		return p.readBlock(n)
	case FormIndirect:
		actual, err := c.Uleb()
		if err != nil {
			return nil, err
		}
		return p.readForm(Form(actual))
	}
	return nil, errors.Errorf("can't decode form %s", form)
}

func (p *typeParser) readBlock(n uint64) ([]byte, error) {
	data, err := p.c.R.Slice(p.c.Pos, n)
	if err != nil {
		return nil, err
	}
	p.c.Skip(n)
	block := make([]byte, n)
	copy(block, data)
	return block, nil
}

// readEntry decodes one entry and, recursively, its children. A nil
// entry with nil error is the null entry terminating a sibling list.
func (p *typeParser) readEntry() (*Type, error) {
	code, err := p.c.Uleb()
	if err != nil {
		return nil, errors.Wrap(err, "entry code")
	}
	if code == 0 {
		return nil, nil
	}

	abbrev, ok := p.abbrevs[code]
	if !ok {
		return nil, errors.Errorf("entry uses undefined abbreviation %d", code)
	}

	t := &Type{Tag: abbrev.Tag}
	for _, spec := range abbrev.Attrs {
		value, err := p.readForm(spec.Form)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", abbrev.Tag, spec.Attr)
		}
		if !formAllowed(spec.Attr, spec.Form) {
			p.Warnings = append(p.Warnings, &FormError{Attr: spec.Attr, Form: spec.Form})
			continue
		}
		t.Attrs = append(t.Attrs, Attribute{Name: spec.Attr, Value: value})
	}

	if abbrev.HasChildren {
		for {
			child, err := p.readEntry()
			if err != nil {
				return t, err
			}
			if child == nil {
				break
			}
			t.Children = append(t.Children, child)
		}
	}
	return t, nil
}

// DecodeInfo decodes every compilation unit in the .debug_info bytes.
// abbrevData and strData are the .debug_abbrev and .debug_str bytes;
// strData may be nil. littleEndian is the byte order of the file the
// sections came from. Recoverable problems are returned as warnings
// alongside the entries decoded before each one.
func DecodeInfo(info, abbrevData, strData []byte, littleEndian bool) ([]*Type, []error) {
	infoR := core.NewRawReader(info, littleEndian, true)
	abbrevR := core.NewRawReader(abbrevData, littleEndian, true)

	var strCursor *core.Cursor
	if strData != nil {
		strCursor = core.NewCursor(core.NewRawReader(strData, littleEndian, true), 0)
	}

	var units []*Type
	var warnings []error
	c := core.NewCursor(infoR, 0)
	for uint64(c.Pos) < infoR.Len() {
		start := c.Pos
		h, err := decodeUnitHeader(c)
		if err != nil {
			warnings = append(warnings, err)
			break
		}

		// Length counts from just past the initial length field, so
		// the unit ends there plus Length.
		lengthField := core.Offset(4)
		if h.SixtyFour {
			lengthField = 12
		}
		end := start + lengthField + core.Offset(h.Length)

		abbrevs, err := decodeAbbrevTable(abbrevR, core.Offset(h.AbbrevOffset))
		if err != nil {
			warnings = append(warnings, err)
			break
		}

		p := &typeParser{c: c, unit: h, abbrevs: abbrevs, strings: strCursor}
		for c.Pos < end {
			entry, err := p.readEntry()
			if err != nil {
				p.Warnings = append(p.Warnings, err)
				break
			}
			if entry == nil {
				continue
			}
			units = append(units, entry)
		}
		warnings = append(warnings, p.Warnings...)
		c.Pos = end
	}
	return units, warnings
}
