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
	"math"
	"unicode/utf8"

	"buf.build/go/sproto/internal/debug"
	"buf.build/go/sproto/internal/wire"
)

// Decode deserializes data into a struct value against a type of this
// schema.
//
// Unknown tags are skipped silently; this is the format's forward
// compatibility mechanism, not an error. Returned strings and binaries
// are copied out of data, which the caller may reuse afterwards.
func (s *Schema) Decode(t *Type, data []byte) (Value, error) {
	size := len(data)
	if size < wire.SizeHeader {
		return Value{}, truncated(wire.SizeHeader, size)
	}

	count := int(wire.U16(data))
	fieldEnd := wire.SizeHeader + count*wire.SizeField
	if size < fieldEnd {
		return Value{}, truncated(fieldEnd, size)
	}

	result := make(map[string]Value, count)
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

		// External regions advance the cursor whether or not the tag is
		// known; that is what makes unknown-tag skipping safe.
		regionStart := offset
		if inline < 0 {
			if offset+wire.SizeLength > size {
				return Value{}, truncated(offset+wire.SizeLength, size)
			}
			regionSize := int(wire.U32(data[offset:]))
			if offset+wire.SizeLength+regionSize > size {
				return Value{}, truncated(offset+wire.SizeLength+regionSize, size)
			}
			offset += wire.SizeLength + regionSize
		}

		if tag > math.MaxUint16 {
			continue
		}
		field := t.FieldByTag(uint16(tag))
		if field == nil {
			debug.Log(nil, "skip", "%s: unknown tag %d", t.Name, tag)
			continue
		}

		var v Value
		var err error
		if inline < 0 {
			content := data[regionStart+wire.SizeLength : offset]
			if field.Array {
				v, err = s.decodeArray(field, content)
			} else {
				v, err = s.decodeField(field, content)
			}
		} else if field.Array {
			return Value{}, invalidDataf("array field %q cannot have inline value", field.Name)
		} else {
			v, err = decodeInline(field, inline)
		}
		if err != nil {
			return Value{}, err
		}
		result[field.Name] = v
	}

	return Struct(result), nil
}

// decodeInline interprets a descriptor-packed value. Only integers and
// booleans can be inline.
func decodeInline(field *Field, inline int32) (Value, error) {
	switch field.Kind {
	case KindInteger:
		return Int(int64(inline)), nil
	case KindBoolean:
		return Bool(inline != 0), nil
	default:
		return Value{}, invalidDataf("field %q of kind %s cannot have inline value", field.Name, field.Kind)
	}
}

// decodeField decodes a non-array field's external region.
func (s *Schema) decodeField(field *Field, content []byte) (Value, error) {
	switch field.Kind {
	case KindInteger, KindDouble:
		switch len(content) {
		case wire.SizeInt32:
			if field.Kind == KindDouble {
				// Data-blob doubles are always 8 bytes.
				return Value{}, invalidDataf("double field %q has 4-byte data, expected 8", field.Name)
			}
			return Int(int64(wire.Expand64(wire.U32(content)))), nil
		case wire.SizeInt64:
			bits := wire.U64(content)
			if field.Kind == KindDouble {
				return Double(math.Float64frombits(bits)), nil
			}
			return Int(int64(bits)), nil
		default:
			return Value{}, invalidDataf("integer/double field %q has invalid size %d", field.Name, len(content))
		}

	case KindString:
		if !utf8.Valid(content) {
			return Value{}, &UTF8Error{Field: field.Name}
		}
		return String(string(content)), nil

	case KindBinary:
		return Binary(append([]byte(nil), content...)), nil

	case KindBoolean:
		return Value{}, invalidDataf("boolean field %q in data part", field.Name)

	default: // KindStruct
		return s.Decode(s.types[field.TypeIndex], content)
	}
}

// decodeArray decodes an array field's external region.
func (s *Schema) decodeArray(field *Field, content []byte) (Value, error) {
	if len(content) == 0 {
		return List(), nil
	}

	switch field.Kind {
	case KindInteger, KindDouble:
		return decodeNumberArray(field, content)

	case KindBoolean:
		elems := make([]Value, len(content))
		for i, b := range content {
			elems[i] = Bool(b != 0)
		}
		return List(elems...), nil

	default:
		return s.decodeObjectArray(field, content)
	}
}

// decodeNumberArray decodes an integer or double array: an element-size
// marker byte followed by fixed-width elements.
func decodeNumberArray(field *Field, content []byte) (Value, error) {
	size := int(content[0])
	body := content[1:]

	if size != wire.SizeInt32 && size != wire.SizeInt64 {
		return Value{}, invalidDataf("array of field %q has invalid element size %d", field.Name, size)
	}
	if len(body)%size != 0 {
		return Value{}, invalidDataf("array of field %q has length %d not divisible by element size %d", field.Name, len(body), size)
	}

	isDouble := field.Kind == KindDouble
	elems := make([]Value, 0, len(body)/size)
	for off := 0; off < len(body); off += size {
		var bits uint64
		if size == wire.SizeInt32 {
			bits = wire.Expand64(wire.U32(body[off:]))
		} else {
			bits = wire.U64(body[off:])
		}
		if isDouble {
			elems = append(elems, Double(math.Float64frombits(bits)))
		} else {
			elems = append(elems, Int(int64(bits)))
		}
	}
	return List(elems...), nil
}

// decodeObjectArray decodes a string, binary, or struct array: a
// concatenation of length-prefixed elements.
func (s *Schema) decodeObjectArray(field *Field, content []byte) (Value, error) {
	var elems []Value
	for len(content) > 0 {
		if len(content) < wire.SizeLength {
			return Value{}, invalidDataf("truncated element in array of field %q", field.Name)
		}
		elemSize := int(wire.U32(content))
		if len(content) < wire.SizeLength+elemSize {
			return Value{}, invalidDataf("truncated element in array of field %q", field.Name)
		}
		elem := content[wire.SizeLength : wire.SizeLength+elemSize]

		switch field.Kind {
		case KindString:
			if !utf8.Valid(elem) {
				return Value{}, &UTF8Error{Field: field.Name}
			}
			elems = append(elems, String(string(elem)))
		case KindBinary:
			elems = append(elems, Binary(append([]byte(nil), elem...)))
		default: // KindStruct
			v, err := s.Decode(s.types[field.TypeIndex], elem)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, v)
		}

		content = content[wire.SizeLength+elemSize:]
	}
	return List(elems...), nil
}
