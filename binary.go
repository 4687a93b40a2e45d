// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sproto

import (
	"sync"
	"unicode/utf8"

	"buf.build/go/sproto/internal/debug"
	"buf.build/go/sproto/internal/wire"
)

// The binary schema format describes itself: a pre-compiled schema is a
// sproto message against this bootstrap meta-schema. [LoadSchema] cannot
// use the schema-aware decoder, because it is building the very schema
// that decoder needs; it walks the wire layout directly instead.
const metaSchemaText = `
.type {
	.field {
		name 0 : string
		buildin 1 : integer
		type 2 : integer
		tag 3 : integer
		array 4 : boolean
		key 5 : integer
		map 6 : boolean
	}
	name 0 : string
	fields 1 : *field
}
.protocol {
	name 0 : string
	tag 1 : integer
	request 2 : integer
	response 3 : integer
	confirm 4 : boolean
}
.group {
	type 0 : *type
	protocol 1 : *protocol
}
`

// buildin values in the field meta-type.
const (
	buildinInteger = 0
	buildinBoolean = 1
	buildinString  = 2 // with type == 1 meaning binary
	buildinDouble  = 3
)

var metaSchema = sync.OnceValue(func() *Schema {
	s, err := ParseSchema(metaSchemaText)
	if err != nil {
		panic("sproto: broken meta-schema: " + err.Error())
	}
	return s
})

// LoadSchema loads a pre-compiled binary schema: a schema that has itself
// been encoded with sproto against the bootstrap meta-schema, as produced
// by [Schema.MarshalBinary] or by other sproto implementations.
func LoadSchema(data []byte) (*Schema, error) {
	size := len(data)
	if size < wire.SizeHeader {
		return nil, truncated(wire.SizeHeader, size)
	}

	count := int(wire.U16(data))
	if count == 0 || count > 2 {
		return nil, invalidDataf("group must have 1 or 2 fields")
	}

	fieldEnd := wire.SizeHeader + count*wire.SizeField
	if size < fieldEnd {
		return nil, truncated(fieldEnd, size)
	}
	for i := range count {
		if wire.U16(data[wire.SizeHeader+i*wire.SizeField:]) != 0 {
			return nil, invalidDataf("group fields must be in data part")
		}
	}

	offset := fieldEnd
	region := func() ([]byte, error) {
		if offset+wire.SizeLength > size {
			return nil, truncated(offset+wire.SizeLength, size)
		}
		n := int(wire.U32(data[offset:]))
		if offset+wire.SizeLength+n > size {
			return nil, truncated(offset+wire.SizeLength+n, size)
		}
		r := data[offset+wire.SizeLength : offset+wire.SizeLength+n]
		offset += wire.SizeLength + n
		return r, nil
	}

	typeData, err := region()
	if err != nil {
		return nil, err
	}
	rawTypes, err := loadTypeArray(typeData)
	if err != nil {
		return nil, err
	}

	var rawProtos []binProtocol
	if count == 2 {
		protoData, err := region()
		if err != nil {
			return nil, err
		}
		if rawProtos, err = loadProtocolArray(protoData); err != nil {
			return nil, err
		}
	}

	debug.Log(nil, "load", "%d types, %d protocols", len(rawTypes), len(rawProtos))
	return assembleSchema(rawTypes, rawProtos)
}

// binType, binField, and binProtocol mirror the meta-schema records.
type binType struct {
	name   string
	fields []binField
}

type binField struct {
	name    string
	buildin int32 // -1 when absent
	typ     int32 // -1 when absent: user type index, precision exponent, or binary marker
	tag     uint16
	array   bool
	key     int32 // -1 when absent
	isMap   bool
}

type binProtocol struct {
	name     string
	tag      uint16
	request  int32 // -1 when absent
	response int32
	confirm  bool
}

// binEntry is one decoded descriptor of a meta-schema struct: an inline
// value or an external region.
type binEntry struct {
	tag    uint16
	inline int32 // -1 for external entries
	data   []byte
}

// walkStruct decodes a struct's descriptors using only the raw wire
// layout, with no schema in hand.
func walkStruct(data []byte) ([]binEntry, error) {
	size := len(data)
	if size < wire.SizeHeader {
		return nil, truncated(wire.SizeHeader, size)
	}

	count := int(wire.U16(data))
	fieldEnd := wire.SizeHeader + count*wire.SizeField
	if size < fieldEnd {
		return nil, truncated(fieldEnd, size)
	}

	entries := make([]binEntry, 0, count)
	offset := fieldEnd
	tag := int32(-1)

	for i := range count {
		desc := int32(wire.U16(data[wire.SizeHeader+i*wire.SizeField:]))
		tag++

		if desc&1 != 0 {
			tag += desc / 2
			continue
		}

		inline := desc/2 - 1
		if inline >= 0 {
			entries = append(entries, binEntry{tag: uint16(tag), inline: inline})
			continue
		}

		if offset+wire.SizeLength > size {
			return nil, truncated(offset+wire.SizeLength, size)
		}
		regionSize := int(wire.U32(data[offset:]))
		if offset+wire.SizeLength+regionSize > size {
			return nil, truncated(offset+wire.SizeLength+regionSize, size)
		}
		entries = append(entries, binEntry{
			tag:    uint16(tag),
			inline: -1,
			data:   data[offset+wire.SizeLength : offset+wire.SizeLength+regionSize],
		})
		offset += wire.SizeLength + regionSize
	}

	return entries, nil
}

// walkArray iterates the length-prefixed elements of an object array.
func walkArray(data []byte, elem func([]byte) error) error {
	for len(data) > 0 {
		if len(data) < wire.SizeLength {
			return truncated(wire.SizeLength, len(data))
		}
		n := int(wire.U32(data))
		if len(data) < wire.SizeLength+n {
			return truncated(wire.SizeLength+n, len(data))
		}
		if err := elem(data[wire.SizeLength : wire.SizeLength+n]); err != nil {
			return err
		}
		data = data[wire.SizeLength+n:]
	}
	return nil
}

func loadString(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", invalidDataf("invalid UTF-8 in schema name")
	}
	return string(data), nil
}

func loadTypeArray(data []byte) ([]binType, error) {
	var types []binType
	err := walkArray(data, func(elem []byte) error {
		entries, err := walkStruct(elem)
		if err != nil {
			return err
		}

		var t binType
		for _, e := range entries {
			switch e.tag {
			case 0:
				if t.name, err = loadString(e.data); err != nil {
					return err
				}
			case 1:
				if t.fields, err = loadFieldArray(e.data); err != nil {
					return err
				}
			}
		}
		types = append(types, t)
		return nil
	})
	return types, err
}

func loadFieldArray(data []byte) ([]binField, error) {
	var fields []binField
	err := walkArray(data, func(elem []byte) error {
		entries, err := walkStruct(elem)
		if err != nil {
			return err
		}

		f := binField{buildin: -1, typ: -1, key: -1}
		for _, e := range entries {
			switch e.tag {
			case 0:
				if f.name, err = loadString(e.data); err != nil {
					return err
				}
			case 1:
				f.buildin = e.inline
			case 2:
				f.typ = e.inline
			case 3:
				if e.inline >= 0 {
					f.tag = uint16(e.inline)
				}
			case 4:
				f.array = e.inline > 0
			case 5:
				f.key = e.inline
			case 6:
				f.isMap = e.inline > 0
			}
		}
		fields = append(fields, f)
		return nil
	})
	return fields, err
}

func loadProtocolArray(data []byte) ([]binProtocol, error) {
	var protos []binProtocol
	err := walkArray(data, func(elem []byte) error {
		entries, err := walkStruct(elem)
		if err != nil {
			return err
		}

		p := binProtocol{request: -1, response: -1}
		for _, e := range entries {
			switch e.tag {
			case 0:
				if p.name, err = loadString(e.data); err != nil {
					return err
				}
			case 1:
				if e.inline >= 0 {
					p.tag = uint16(e.inline)
				}
			case 2:
				p.request = e.inline
			case 3:
				p.response = e.inline
			case 4:
				p.confirm = e.inline > 0
			}
		}
		protos = append(protos, p)
		return nil
	})
	return protos, err
}

// assembleSchema performs the same post-processing as the text parser:
// sort fields by tag, compute derived invariants, validate indices, and
// build the protocol tables.
func assembleSchema(rawTypes []binType, rawProtos []binProtocol) (*Schema, error) {
	s := &Schema{
		typesByName:     make(map[string]int, len(rawTypes)),
		protocolsByName: make(map[string]int, len(rawProtos)),
		protocolsByTag:  make(map[uint16]int, len(rawProtos)),
	}

	for idx, rt := range rawTypes {
		t := &Type{Name: rt.name, Fields: make([]Field, 0, len(rt.fields))}

		for _, rf := range rt.fields {
			field := Field{
				Name:   rf.name,
				Tag:    rf.tag,
				Array:  rf.array,
				KeyTag: rf.key,
				Map:    rf.isMap,
			}

			switch {
			case rf.buildin == buildinInteger:
				field.Kind = KindInteger
				if rf.typ >= 0 {
					// The type slot carries the precision exponent.
					field.Precision = 1
					for range rf.typ {
						field.Precision *= 10
					}
				}
			case rf.buildin == buildinBoolean:
				field.Kind = KindBoolean
			case rf.buildin == buildinString:
				if rf.typ == 1 {
					field.Kind = KindBinary
				} else {
					field.Kind = KindString
				}
			case rf.buildin == buildinDouble:
				field.Kind = KindDouble
			case rf.buildin >= 0:
				return nil, invalidDataf("invalid builtin type %d", rf.buildin)
			case rf.typ >= 0:
				if int(rf.typ) >= len(rawTypes) {
					return nil, invalidDataf("type index %d out of range", rf.typ)
				}
				field.Kind = KindStruct
				field.TypeIndex = int(rf.typ)
			default:
				return nil, invalidDataf("field %q has no type", rf.name)
			}

			t.Fields = append(t.Fields, field)
		}

		t.finish()
		s.typesByName[t.Name] = idx
		s.types = append(s.types, t)
	}

	for _, rp := range rawProtos {
		for _, idx := range [...]int32{rp.request, rp.response} {
			if idx >= 0 && int(idx) >= len(rawTypes) {
				return nil, invalidDataf("protocol type index %d out of range", idx)
			}
		}

		s.protocolsByName[rp.name] = len(s.protocols)
		s.protocolsByTag[rp.tag] = len(s.protocols)
		s.protocols = append(s.protocols, &Protocol{
			Name:     rp.name,
			Tag:      rp.tag,
			Request:  int(rp.request),
			Response: int(rp.response),
			Confirm:  rp.confirm,
		})
	}

	return s, nil
}

// MarshalBinary encodes the schema against the bootstrap meta-schema,
// producing the pre-compiled form [LoadSchema] consumes.
//
// The output is deterministic: equal schemas marshal to equal bytes.
func (s *Schema) MarshalBinary() ([]byte, error) {
	meta := metaSchema()

	types := make([]Value, len(s.types))
	for i, t := range s.types {
		fields := make([]Value, len(t.Fields))
		for j := range t.Fields {
			fields[j] = marshalField(&t.Fields[j])
		}
		types[i] = Struct(map[string]Value{
			"name":   String(t.Name),
			"fields": List(fields...),
		})
	}

	group := map[string]Value{"type": List(types...)}

	if len(s.protocols) > 0 {
		protos := make([]Value, len(s.protocols))
		for i, p := range s.protocols {
			m := map[string]Value{
				"name": String(p.Name),
				"tag":  Int(int64(p.Tag)),
			}
			if p.Request >= 0 {
				m["request"] = Int(int64(p.Request))
			}
			if p.Response >= 0 {
				m["response"] = Int(int64(p.Response))
			}
			if p.Confirm {
				m["confirm"] = Bool(true)
			}
			protos[i] = Struct(m)
		}
		group["protocol"] = List(protos...)
	}

	return meta.Encode(meta.TypeByName("group"), Struct(group))
}

func marshalField(f *Field) Value {
	m := map[string]Value{
		"name": String(f.Name),
		"tag":  Int(int64(f.Tag)),
	}

	switch f.Kind {
	case KindInteger:
		m["buildin"] = Int(buildinInteger)
		if f.Precision > 0 {
			exp := int64(0)
			for p := f.Precision; p > 1; p /= 10 {
				exp++
			}
			m["type"] = Int(exp)
		}
	case KindBoolean:
		m["buildin"] = Int(buildinBoolean)
	case KindString:
		m["buildin"] = Int(buildinString)
	case KindBinary:
		m["buildin"] = Int(buildinString)
		m["type"] = Int(1)
	case KindDouble:
		m["buildin"] = Int(buildinDouble)
	default: // KindStruct
		m["type"] = Int(int64(f.TypeIndex))
	}

	if f.Array {
		m["array"] = Bool(true)
	}
	if f.KeyTag >= 0 {
		m["key"] = Int(int64(f.KeyTag))
	}
	if f.Map {
		m["map"] = Bool(true)
	}
	return Struct(m)
}
