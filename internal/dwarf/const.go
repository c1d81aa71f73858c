// Copyright 2026 The udb Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dwarf decodes the subset of DWARF debug info needed to map
// crash addresses back to source: the abbreviation tables, the type
// and subprogram entries in .debug_info, and the line number programs
// in .debug_line. It understands DWARF versions 2 through 4.
package dwarf

import "fmt"

// Tag identifies the kind of a debugging information entry.
type Tag uint32

const (
	TagArrayType       Tag = 0x01
	TagClassType       Tag = 0x02
	TagEntryPoint      Tag = 0x03
	TagEnumerationType Tag = 0x04
	TagFormalParameter Tag = 0x05
	TagLexicalBlock    Tag = 0x0b
	TagMember          Tag = 0x0d
	TagPointerType     Tag = 0x0f
	TagReferenceType   Tag = 0x10
	TagCompileUnit     Tag = 0x11
	TagStringType      Tag = 0x12
	TagStructType      Tag = 0x13
	TagSubroutineType  Tag = 0x15
	TagTypedef         Tag = 0x16
	TagUnionType       Tag = 0x17
	TagUnspecifiedParameters Tag = 0x18
	TagVariant         Tag = 0x19
	TagInheritance     Tag = 0x1c
	TagSubrangeType    Tag = 0x21
	TagBaseType        Tag = 0x24
	TagConstType       Tag = 0x26
	TagEnumerator      Tag = 0x28
	TagSubprogram      Tag = 0x2e
	TagVariable        Tag = 0x34
	TagVolatileType    Tag = 0x35
	TagRestrictType    Tag = 0x37
	TagNamespace       Tag = 0x39
	TagUnspecifiedType Tag = 0x3b
	TagRvalueReferenceType Tag = 0x42
	TagTemplateAlias   Tag = 0x43
)

var tagNames = map[Tag]string{
	TagArrayType:             "array_type",
	TagClassType:             "class_type",
	TagEntryPoint:            "entry_point",
	TagEnumerationType:       "enumeration_type",
	TagFormalParameter:       "formal_parameter",
	TagLexicalBlock:          "lexical_block",
	TagMember:                "member",
	TagPointerType:           "pointer_type",
	TagReferenceType:         "reference_type",
	TagCompileUnit:           "compile_unit",
	TagStringType:            "string_type",
	TagStructType:            "structure_type",
	TagSubroutineType:        "subroutine_type",
	TagTypedef:               "typedef",
	TagUnionType:             "union_type",
	TagUnspecifiedParameters: "unspecified_parameters",
	TagVariant:               "variant",
	TagInheritance:           "inheritance",
	TagSubrangeType:          "subrange_type",
	TagBaseType:              "base_type",
	TagConstType:             "const_type",
	TagEnumerator:            "enumerator",
	TagSubprogram:            "subprogram",
	TagVariable:              "variable",
	TagVolatileType:          "volatile_type",
	TagRestrictType:          "restrict_type",
	TagNamespace:             "namespace",
	TagUnspecifiedType:       "unspecified_type",
	TagRvalueReferenceType:   "rvalue_reference_type",
	TagTemplateAlias:         "template_alias",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag %#x", uint32(t))
}

// Attr identifies an attribute of a debugging information entry.
type Attr uint32

const (
	AttrSibling     Attr = 0x01
	AttrLocation    Attr = 0x02
	AttrName        Attr = 0x03
	AttrByteSize    Attr = 0x0b
	AttrBitOffset   Attr = 0x0c
	AttrBitSize     Attr = 0x0d
	AttrStmtList    Attr = 0x10
	AttrLowPC       Attr = 0x11
	AttrHighPC      Attr = 0x12
	AttrLanguage    Attr = 0x13
	AttrCompDir     Attr = 0x1b
	AttrConstValue  Attr = 0x1c
	AttrInline      Attr = 0x20
	AttrProducer    Attr = 0x25
	AttrPrototyped  Attr = 0x27
	AttrCount       Attr = 0x37
	AttrDataMemberLoc Attr = 0x38
	AttrDeclFile    Attr = 0x3a
	AttrDeclLine    Attr = 0x3b
	AttrDeclaration Attr = 0x3c
	AttrEncoding    Attr = 0x3e
	AttrExternal    Attr = 0x3f
	AttrFrameBase   Attr = 0x40
	AttrSpecification Attr = 0x47
	AttrType        Attr = 0x49
	AttrRanges      Attr = 0x55
	AttrCallFile    Attr = 0x58
	AttrCallLine    Attr = 0x59
	AttrLinkageName Attr = 0x6e
	AttrNoReturn    Attr = 0x87
	AttrAlignment   Attr = 0x88
)

var attrNames = map[Attr]string{
	AttrSibling:       "sibling",
	AttrLocation:      "location",
	AttrName:          "name",
	AttrByteSize:      "byte_size",
	AttrBitOffset:     "bit_offset",
	AttrBitSize:       "bit_size",
	AttrStmtList:      "stmt_list",
	AttrLowPC:         "low_pc",
	AttrHighPC:        "high_pc",
	AttrLanguage:      "language",
	AttrCompDir:       "comp_dir",
	AttrConstValue:    "const_value",
	AttrInline:        "inline",
	AttrProducer:      "producer",
	AttrPrototyped:    "prototyped",
	AttrCount:         "count",
	AttrDataMemberLoc: "data_member_location",
	AttrDeclFile:      "decl_file",
	AttrDeclLine:      "decl_line",
	AttrDeclaration:   "declaration",
	AttrEncoding:      "encoding",
	AttrExternal:      "external",
	AttrFrameBase:     "frame_base",
	AttrSpecification: "specification",
	AttrType:          "type",
	AttrRanges:        "ranges",
	AttrCallFile:      "call_file",
	AttrCallLine:      "call_line",
	AttrLinkageName:   "linkage_name",
	AttrNoReturn:      "noreturn",
	AttrAlignment:     "alignment",
}

func (a Attr) String() string {
	if name, ok := attrNames[a]; ok {
		return name
	}
	return fmt.Sprintf("attr %#x", uint32(a))
}

// Form identifies the encoding of an attribute value.
type Form uint32

const (
	FormAddr        Form = 0x01
	FormBlock2      Form = 0x03
	FormBlock4      Form = 0x04
	FormData2       Form = 0x05
	FormData4       Form = 0x06
	FormData8       Form = 0x07
	FormString      Form = 0x08
	FormBlock       Form = 0x09
	FormBlock1      Form = 0x0a
	FormData1       Form = 0x0b
	FormFlag        Form = 0x0c
	FormSdata       Form = 0x0d
	FormStrp        Form = 0x0e
	FormUdata       Form = 0x0f
	FormRefAddr     Form = 0x10
	FormRef1        Form = 0x11
	FormRef2        Form = 0x12
	FormRef4        Form = 0x13
	FormRef8        Form = 0x14
	FormRefUdata    Form = 0x15
	FormIndirect    Form = 0x16
	FormSecOffset   Form = 0x17
	FormExprloc     Form = 0x18
	FormFlagPresent Form = 0x19
	FormRefSig8     Form = 0x20
)

var formNames = map[Form]string{
	FormAddr:        "addr",
	FormBlock2:      "block2",
	FormBlock4:      "block4",
	FormData2:       "data2",
	FormData4:       "data4",
	FormData8:       "data8",
	FormString:      "string",
	FormBlock:       "block",
	FormBlock1:      "block1",
	FormData1:       "data1",
	FormFlag:        "flag",
	FormSdata:       "sdata",
	FormStrp:        "strp",
	FormUdata:       "udata",
	FormRefAddr:     "ref_addr",
	FormRef1:        "ref1",
	FormRef2:        "ref2",
	FormRef4:        "ref4",
	FormRef8:        "ref8",
	FormRefUdata:    "ref_udata",
	FormIndirect:    "indirect",
	FormSecOffset:   "sec_offset",
	FormExprloc:     "exprloc",
	FormFlagPresent: "flag_present",
	FormRefSig8:     "ref_sig8",
}

func (f Form) String() string {
	if name, ok := formNames[f]; ok {
		return name
	}
	return fmt.Sprintf("form %#x", uint32(f))
}
