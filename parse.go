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
	"sort"
	"strconv"
	"strings"

	"buf.build/go/sproto/internal/ast"
	"buf.build/go/sproto/internal/debug"
)

// ParseSchema parses schema text into a [Schema].
//
// Types are ordered alphabetically by dotted name, so parsing the same
// text twice yields identical schemas (and identical [Schema.MarshalBinary]
// output).
func ParseSchema(text string) (*Schema, error) {
	file, err := ast.Parse(text)
	if err != nil {
		return nil, err
	}
	return buildSchema(file)
}

// rawField is a collected field declaration, before type resolution.
type rawField struct {
	name     string
	tag      uint64
	array    bool
	typeName string
	extra    string
	hasExtra bool
	line     int
}

// rawProtocol is a collected protocol declaration, before type resolution.
type rawProtocol struct {
	name     string
	tag      uint16
	request  string // empty means none
	response string
	confirm  bool
}

type schemaBuilder struct {
	rawTypes    map[string][]rawField
	rawProtos   []rawProtocol
	protoNames  map[string]bool
	sortedNames []string
	typesByName map[string]int
}

func buildSchema(file *ast.File) (*Schema, error) {
	b := &schemaBuilder{
		rawTypes:   make(map[string][]rawField),
		protoNames: make(map[string]bool),
	}

	for _, ty := range file.Types {
		if err := b.collectType("", ty); err != nil {
			return nil, err
		}
	}
	for _, proto := range file.Protocols {
		if err := b.collectProtocol(proto); err != nil {
			return nil, err
		}
	}

	// Alphabetical type order makes parser output reproducible.
	b.sortedNames = make([]string, 0, len(b.rawTypes))
	for name := range b.rawTypes {
		b.sortedNames = append(b.sortedNames, name)
	}
	sort.Strings(b.sortedNames)

	b.typesByName = make(map[string]int, len(b.sortedNames))
	for idx, name := range b.sortedNames {
		b.typesByName[name] = idx
	}

	s := &Schema{
		typesByName:     b.typesByName,
		protocolsByName: make(map[string]int, len(b.rawProtos)),
		protocolsByTag:  make(map[uint16]int, len(b.rawProtos)),
	}

	for _, name := range b.sortedNames {
		t, err := b.resolveType(name)
		if err != nil {
			return nil, err
		}
		s.types = append(s.types, t)
	}

	if err := b.resolveProtocols(s); err != nil {
		return nil, err
	}

	debug.Log(nil, "build", "%d types, %d protocols", len(s.types), len(s.protocols))
	return s, nil
}

// collectType flattens a type declaration and its nested types into
// rawTypes, scoping nested names by dot.
func (b *schemaBuilder) collectType(parent string, ty *ast.TypeDecl) error {
	fullName := ty.Name
	if parent != "" {
		fullName = parent + "." + ty.Name
	}

	if _, ok := b.rawTypes[fullName]; ok {
		return &SchemaError{Err: ErrDuplicateType, Type: fullName}
	}

	fields := make([]rawField, 0, len(ty.Fields))
	tags := make(map[uint64]bool, len(ty.Fields))
	names := make(map[string]bool, len(ty.Fields))

	for _, f := range ty.Fields {
		if tags[f.Tag] {
			return &SchemaError{Err: ErrDuplicateTag, Type: fullName, Tag: int(f.Tag)}
		}
		if names[f.Name] {
			return &SchemaError{Err: ErrDuplicateField, Type: fullName, Name: f.Name}
		}
		tags[f.Tag] = true
		names[f.Name] = true

		fields = append(fields, rawField{
			name:     f.Name,
			tag:      f.Tag,
			array:    f.Array,
			typeName: f.TypeName,
			extra:    f.Extra,
			hasExtra: f.HasExtra,
			line:     f.Line,
		})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })
	b.rawTypes[fullName] = fields

	for _, nested := range ty.Nested {
		if err := b.collectType(fullName, nested); err != nil {
			return err
		}
	}
	return nil
}

// collectProtocol records a protocol, collecting inline request/response
// blocks as anonymous types named "<protocol>.request"/".response".
func (b *schemaBuilder) collectProtocol(proto *ast.ProtocolDecl) error {
	if b.protoNames[proto.Name] {
		return &SchemaError{Err: ErrDuplicateType, Type: proto.Name}
	}
	b.protoNames[proto.Name] = true

	raw := rawProtocol{name: proto.Name, tag: uint16(proto.Tag)}

	part := func(body *ast.ProtoBody, role string) (string, error) {
		switch {
		case body == nil || body.Nil:
			return "", nil
		case body.Inline != nil:
			inline := *body.Inline
			inline.Name = role
			if err := b.collectType(proto.Name, &inline); err != nil {
				return "", err
			}
			return proto.Name + "." + role, nil
		default:
			return body.TypeName, nil
		}
	}

	var err error
	if raw.request, err = part(proto.Request, "request"); err != nil {
		return err
	}
	if raw.response, err = part(proto.Response, "response"); err != nil {
		return err
	}
	raw.confirm = proto.Response != nil && proto.Response.Nil

	b.rawProtos = append(b.rawProtos, raw)
	return nil
}

// resolveType turns the raw fields of one collected type into a finished
// [Type], resolving type references and field extras.
func (b *schemaBuilder) resolveType(name string) (*Type, error) {
	raw := b.rawTypes[name]
	t := &Type{Name: name, Fields: make([]Field, 0, len(raw))}

	for _, rf := range raw {
		kind, typeIndex, err := b.resolveFieldKind(name, rf.typeName)
		if err != nil {
			return nil, err
		}

		field := Field{
			Name:      rf.name,
			Tag:       uint16(rf.tag),
			Kind:      kind,
			TypeIndex: typeIndex,
			Array:     rf.array,
			KeyTag:    -1,
		}

		if rf.hasExtra {
			switch {
			case rf.typeName == "integer" && !rf.array:
				// integer(n) stores 10^n.
				prec, err := strconv.ParseUint(rf.extra, 10, 32)
				if err != nil || prec > 9 {
					return nil, &SyntaxError{Line: rf.line, Message: "invalid decimal precision '" + rf.extra + "'"}
				}
				field.Precision = 1
				for range prec {
					field.Precision *= 10
				}

			case rf.array && rf.extra == "":
				// *T(): map keyed by the lowest-tagged of exactly two fields.
				field.Map = true
				if kind == KindStruct {
					sub := b.rawTypes[b.sortedNames[typeIndex]]
					if len(sub) != 2 {
						return nil, &SchemaError{Err: ErrInvalidMapKey, Type: name, Name: rf.name}
					}
					field.KeyTag = int32(sub[0].tag) // sorted ascending
				}

			case rf.array:
				// *T(key): map keyed by the named field of T.
				if kind == KindStruct {
					sub := b.rawTypes[b.sortedNames[typeIndex]]
					found := false
					for _, sf := range sub {
						if sf.name == rf.extra {
							field.KeyTag = int32(sf.tag)
							found = true
							break
						}
					}
					if !found {
						return nil, &SchemaError{Err: ErrInvalidMapKey, Type: name, Name: rf.name}
					}
				}
			}
		}

		t.Fields = append(t.Fields, field)
	}

	t.finish()
	return t, nil
}

// resolveFieldKind resolves a field's type name: a builtin, or a struct
// reference looked up as parent.name, up the parent chain, then at the
// top level.
func (b *schemaBuilder) resolveFieldKind(parent, typeName string) (Kind, int, error) {
	switch typeName {
	case "integer":
		return KindInteger, 0, nil
	case "boolean":
		return KindBoolean, 0, nil
	case "string":
		return KindString, 0, nil
	case "binary":
		return KindBinary, 0, nil
	case "double":
		return KindDouble, 0, nil
	}

	for prefix := parent; ; {
		if idx, ok := b.typesByName[prefix+"."+typeName]; ok {
			return KindStruct, idx, nil
		}
		dot := strings.LastIndexByte(prefix, '.')
		if dot < 0 {
			break
		}
		prefix = prefix[:dot]
	}

	if idx, ok := b.typesByName[typeName]; ok {
		return KindStruct, idx, nil
	}
	return KindInvalid, 0, &SchemaError{Err: ErrUndefinedType, Type: parent, Name: typeName}
}

// resolveProtocols orders the collected protocols by tag, rejects
// duplicate tags, and resolves their request/response type names.
func (b *schemaBuilder) resolveProtocols(s *Schema) error {
	protos := b.rawProtos
	sort.Slice(protos, func(i, j int) bool { return protos[i].tag < protos[j].tag })

	for i, rp := range protos {
		if i > 0 && protos[i-1].tag == rp.tag {
			return &SchemaError{Err: ErrDuplicateProtocolTag, Name: rp.name, Tag: int(rp.tag)}
		}

		resolve := func(typeName string) (int, error) {
			if typeName == "" {
				return -1, nil
			}
			idx, ok := b.typesByName[typeName]
			if !ok {
				return 0, &SchemaError{Err: ErrUndefinedType, Type: "protocol " + rp.name, Name: typeName}
			}
			return idx, nil
		}

		request, err := resolve(rp.request)
		if err != nil {
			return err
		}
		response, err := resolve(rp.response)
		if err != nil {
			return err
		}

		s.protocolsByName[rp.name] = len(s.protocols)
		s.protocolsByTag[rp.tag] = len(s.protocols)
		s.protocols = append(s.protocols, &Protocol{
			Name:     rp.name,
			Tag:      rp.tag,
			Request:  request,
			Response: response,
			Confirm:  rp.confirm,
		})
	}
	return nil
}
