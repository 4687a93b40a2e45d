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
	"slices"
	"sort"
)

// Field is a single field of a [Type].
type Field struct {
	// Name is the field's identifier, unique within its type.
	Name string

	// Tag is the field's wire tag, unique within its type.
	Tag uint16

	// Kind is the field's base type, one of [KindInteger], [KindBoolean],
	// [KindDouble], [KindString], [KindBinary], or [KindStruct].
	Kind Kind

	// TypeIndex is the index of the referenced type in [Schema.Types],
	// meaningful only when Kind is [KindStruct]. Types reference each
	// other by index into the schema's flat type list, so a type may
	// reference itself or any other without ownership cycles.
	TypeIndex int

	// Array is set when the wire form is a list of the base type.
	Array bool

	// KeyTag is, for map arrays, the tag of the field inside the element
	// type whose value is the map key. -1 otherwise.
	KeyTag int32

	// Map is set when the `*T()` empty-parenthesis form was used.
	Map bool

	// Precision is 10^n for an `integer(n)` fixed-point field, or 0 for a
	// plain integer.
	Precision uint32
}

// Type is a user-defined struct type.
type Type struct {
	// Name is the dotted type name, e.g. "AddressBook.Person.PhoneNumber".
	Name string

	// Fields is sorted ascending by tag.
	Fields []Field

	// baseTag is the first tag when the tags are exactly contiguous,
	// enabling O(1) tag lookup by subtraction; -1 otherwise.
	baseTag int32

	// maxn bounds the descriptor slots this type can emit: one per field
	// plus one per gap region. The encoder pre-sizes its header with it.
	maxn int
}

// FieldByTag returns the field with the given tag, or nil.
func (t *Type) FieldByTag(tag uint16) *Field {
	if t.baseTag >= 0 {
		idx := int32(tag) - t.baseTag
		if idx < 0 || int(idx) >= len(t.Fields) {
			return nil
		}
		return &t.Fields[idx]
	}
	idx, ok := slices.BinarySearchFunc(t.Fields, tag, func(f Field, tag uint16) int {
		return int(f.Tag) - int(tag)
	})
	if !ok {
		return nil
	}
	return &t.Fields[idx]
}

// FieldByName returns the field with the given name, or nil.
func (t *Type) FieldByName(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// finish sorts the fields by tag and computes the derived invariants.
func (t *Type) finish() {
	sort.Slice(t.Fields, func(i, j int) bool {
		return t.Fields[i].Tag < t.Fields[j].Tag
	})

	if len(t.Fields) == 0 {
		t.baseTag, t.maxn = -1, 0
		return
	}

	t.maxn = len(t.Fields)
	last := int32(-1)
	for i := range t.Fields {
		tag := int32(t.Fields[i].Tag)
		if tag > last+1 {
			t.maxn++
		}
		last = tag
	}

	base := int32(t.Fields[0].Tag)
	span := int32(t.Fields[len(t.Fields)-1].Tag) - base + 1
	if int(span) != len(t.Fields) {
		t.baseTag = -1
	} else {
		t.baseTag = base
	}
}

// Protocol is an RPC protocol declaration.
type Protocol struct {
	Name string
	Tag  uint16

	// Request and Response index [Schema.Types], or are -1 when the
	// protocol carries no payload in that direction.
	Request  int
	Response int

	// Confirm is set for protocols declared `response nil`: the caller
	// expects a zero-payload acknowledgment.
	Confirm bool
}

// Schema is an immutable bundle of types and protocols, produced by
// [ParseSchema], [LoadSchema], or [NewSchema].
//
// A Schema is built once and then read-only; it may be shared freely
// across goroutines.
type Schema struct {
	types       []*Type
	typesByName map[string]int

	protocols       []*Protocol
	protocolsByName map[string]int
	protocolsByTag  map[uint16]int
}

// NewSchema builds a schema from programmatically constructed types and
// protocols, for callers (such as code generators) that do not go through
// the text or binary forms.
//
// Fields need not be pre-sorted; derived invariants are computed here.
// Struct field and protocol type references index the types slice.
func NewSchema(types []*Type, protocols []*Protocol) (*Schema, error) {
	s := &Schema{
		typesByName:     make(map[string]int, len(types)),
		protocolsByName: make(map[string]int, len(protocols)),
		protocolsByTag:  make(map[uint16]int, len(protocols)),
	}

	for _, ty := range types {
		if _, ok := s.typesByName[ty.Name]; ok {
			return nil, &SchemaError{Err: ErrDuplicateType, Type: ty.Name}
		}

		t := &Type{Name: ty.Name, Fields: slices.Clone(ty.Fields)}
		t.finish()

		seen := make(map[string]bool, len(t.Fields))
		for i := range t.Fields {
			f := &t.Fields[i]
			if i > 0 && t.Fields[i-1].Tag == f.Tag {
				return nil, &SchemaError{Err: ErrDuplicateTag, Type: t.Name, Tag: int(f.Tag)}
			}
			if seen[f.Name] {
				return nil, &SchemaError{Err: ErrDuplicateField, Type: t.Name, Name: f.Name}
			}
			seen[f.Name] = true
			if f.Kind == KindStruct && (f.TypeIndex < 0 || f.TypeIndex >= len(types)) {
				return nil, &SchemaError{Err: ErrUndefinedType, Type: t.Name, Name: f.Name}
			}
		}

		s.typesByName[t.Name] = len(s.types)
		s.types = append(s.types, t)
	}

	protocols = slices.Clone(protocols)
	sort.Slice(protocols, func(i, j int) bool {
		return protocols[i].Tag < protocols[j].Tag
	})

	for _, proto := range protocols {
		if _, ok := s.protocolsByName[proto.Name]; ok {
			return nil, &SchemaError{Err: ErrDuplicateType, Type: proto.Name}
		}
		if _, ok := s.protocolsByTag[proto.Tag]; ok {
			return nil, &SchemaError{Err: ErrDuplicateProtocolTag, Name: proto.Name, Tag: int(proto.Tag)}
		}
		for _, idx := range [...]int{proto.Request, proto.Response} {
			if idx != -1 && (idx < 0 || idx >= len(s.types)) {
				return nil, &SchemaError{Err: ErrUndefinedType, Type: "protocol " + proto.Name}
			}
		}

		p := &Protocol{
			Name:     proto.Name,
			Tag:      proto.Tag,
			Request:  proto.Request,
			Response: proto.Response,
			Confirm:  proto.Confirm,
		}
		s.protocolsByName[p.Name] = len(s.protocols)
		s.protocolsByTag[p.Tag] = len(s.protocols)
		s.protocols = append(s.protocols, p)
	}

	return s, nil
}

// Types returns the schema's types in their stable order. Struct field and
// protocol references index this slice. The returned slice is shared and
// must not be modified.
func (s *Schema) Types() []*Type { return s.types }

// Protocols returns the schema's protocols in ascending tag order. The
// returned slice is shared and must not be modified.
func (s *Schema) Protocols() []*Protocol { return s.protocols }

// TypeByName returns the type with the given dotted name, or nil.
func (s *Schema) TypeByName(name string) *Type {
	idx, ok := s.typesByName[name]
	if !ok {
		return nil
	}
	return s.types[idx]
}

// ProtocolByName returns the protocol with the given name, or nil.
func (s *Schema) ProtocolByName(name string) *Protocol {
	idx, ok := s.protocolsByName[name]
	if !ok {
		return nil
	}
	return s.protocols[idx]
}

// ProtocolByTag returns the protocol with the given tag, or nil.
func (s *Schema) ProtocolByTag(tag uint16) *Protocol {
	idx, ok := s.protocolsByTag[tag]
	if !ok {
		return nil
	}
	return s.protocols[idx]
}
