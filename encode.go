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

	"buf.build/go/sproto/internal/debug"
	"buf.build/go/sproto/internal/wire"
)

// Inline values occupy the 15-bit non-negative range below this bound,
// strictly: 0x7fff itself goes to the data blob.
const inlineLimit = 0x7fff

// Encode serializes a struct value against a type of this schema.
//
// The value's field names correspond by name to fields of t; extra keys
// are ignored and missing keys are omitted, never encoded as defaults.
// Fields are emitted in ascending tag order, so encoding the same value
// twice produces byte-identical output.
func (s *Schema) Encode(t *Type, v Value) ([]byte, error) {
	fields, ok := v.AsStruct()
	if !ok {
		return nil, &TypeMismatchError{Field: t.Name, Expected: "struct", Actual: v.Kind().String()}
	}

	// Worst-case header: one descriptor per field plus one per gap region.
	header := make([]byte, wire.SizeHeader+t.maxn*wire.SizeField)
	var data []byte

	index := 0
	lastTag := int32(-1)

	for i := range t.Fields {
		field := &t.Fields[i]
		fv, ok := fields[field.Name]
		if !ok {
			continue
		}

		var inline uint16 // 0 means the data lives in the data blob
		if field.Array {
			elems, ok := fv.AsList()
			if !ok {
				return nil, &TypeMismatchError{Field: field.Name, Expected: "array", Actual: fv.Kind().String()}
			}
			var err error
			if data, err = s.appendArray(data, field, elems); err != nil {
				return nil, err
			}
		} else {
			var err error
			if inline, data, err = s.appendField(data, field, fv); err != nil {
				return nil, err
			}
		}

		if gap := int32(field.Tag) - lastTag - 1; gap > 0 {
			skip := uint16((gap-1)*2 + 1)
			wire.PutU16(header[wire.SizeHeader+wire.SizeField*index:], skip)
			index++
		}

		wire.PutU16(header[wire.SizeHeader+wire.SizeField*index:], inline)
		index++
		lastTag = int32(field.Tag)
	}

	wire.PutU16(header, uint16(index))
	header = header[:wire.SizeHeader+index*wire.SizeField]
	debug.Log(nil, "encode", "%s: %d descriptors, %d data bytes", t.Name, index, len(data))
	return append(header, data...), nil
}

// appendField encodes a single non-array field. An inline-eligible value
// is returned as its descriptor encoding (value+1)*2; otherwise the
// length-prefixed region is appended to data and 0 is returned.
func (s *Schema) appendField(data []byte, field *Field, v Value) (uint16, []byte, error) {
	switch field.Kind {
	case KindInteger, KindBoolean:
		var n int64
		switch v.Kind() {
		case KindInteger:
			n, _ = v.AsInt()
		case KindBoolean:
			if b, _ := v.AsBool(); b {
				n = 1
			}
		case KindDouble:
			// Fixed-point fields accept a floating value and scale it;
			// integer values pass through already scaled.
			if field.Precision == 0 {
				return 0, nil, &TypeMismatchError{Field: field.Name, Expected: "integer or boolean", Actual: v.Kind().String()}
			}
			d, _ := v.AsDouble()
			n = int64(math.Round(d * float64(field.Precision)))
		default:
			return 0, nil, &TypeMismatchError{Field: field.Name, Expected: "integer or boolean", Actual: v.Kind().String()}
		}

		if n >= 0 && n < inlineLimit {
			return uint16(n+1) * 2, data, nil
		}
		if int64(int32(n)) == n {
			data = wire.AppendU32(data, wire.SizeInt32)
			data = wire.AppendU32(data, uint32(n))
		} else {
			data = wire.AppendU32(data, wire.SizeInt64)
			data = wire.AppendU64(data, uint64(n))
		}
		return 0, data, nil

	case KindDouble:
		var d float64
		switch v.Kind() {
		case KindDouble:
			d, _ = v.AsDouble()
		case KindInteger:
			n, _ := v.AsInt()
			d = float64(n)
		default:
			return 0, nil, &TypeMismatchError{Field: field.Name, Expected: "double", Actual: v.Kind().String()}
		}
		data = wire.AppendU32(data, wire.SizeInt64)
		data = wire.AppendU64(data, math.Float64bits(d))
		return 0, data, nil

	case KindString:
		str, ok := v.AsString()
		if !ok {
			return 0, nil, &TypeMismatchError{Field: field.Name, Expected: "string", Actual: v.Kind().String()}
		}
		data = wire.AppendU32(data, uint32(len(str)))
		return 0, append(data, str...), nil

	case KindBinary:
		bin, ok := v.AsBinary()
		if !ok {
			return 0, nil, &TypeMismatchError{Field: field.Name, Expected: "binary", Actual: v.Kind().String()}
		}
		data = wire.AppendU32(data, uint32(len(bin)))
		return 0, append(data, bin...), nil

	default: // KindStruct
		sub, err := s.Encode(s.types[field.TypeIndex], v)
		if err != nil {
			return 0, nil, err
		}
		data = wire.AppendU32(data, uint32(len(sub)))
		return 0, append(data, sub...), nil
	}
}

// appendArray encodes an array field's length-prefixed region onto data.
// An empty array is a zero-length region with no element-size marker.
func (s *Schema) appendArray(data []byte, field *Field, elems []Value) ([]byte, error) {
	if len(elems) == 0 {
		return wire.AppendU32(data, 0), nil
	}

	switch field.Kind {
	case KindInteger, KindDouble:
		return s.appendNumberArray(data, field, elems)
	case KindBoolean:
		data = wire.AppendU32(data, uint32(len(elems)))
		for _, e := range elems {
			b, ok := e.AsBool()
			if !ok {
				return nil, &TypeMismatchError{Field: field.Name, Expected: "boolean", Actual: e.Kind().String()}
			}
			if b {
				data = append(data, 1)
			} else {
				data = append(data, 0)
			}
		}
		return data, nil
	default:
		return s.appendObjectArray(data, field, elems)
	}
}

// appendNumberArray writes an integer or double array: a one-byte element
// size marker (4 or 8) followed by the elements. Any element outside the
// 32-bit range promotes the whole array to 8-byte form; doubles are
// always 8-byte.
func (s *Schema) appendNumberArray(data []byte, field *Field, elems []Value) ([]byte, error) {
	isDouble := field.Kind == KindDouble

	words := make([]uint64, 0, len(elems))
	wide := isDouble

	for _, e := range elems {
		if isDouble {
			var d float64
			switch e.Kind() {
			case KindDouble:
				d, _ = e.AsDouble()
			case KindInteger:
				n, _ := e.AsInt()
				d = float64(n)
			default:
				return nil, &TypeMismatchError{Field: field.Name, Expected: "double", Actual: e.Kind().String()}
			}
			words = append(words, math.Float64bits(d))
			continue
		}

		var n int64
		switch e.Kind() {
		case KindInteger:
			n, _ = e.AsInt()
		case KindDouble:
			d, _ := e.AsDouble()
			if field.Precision > 0 {
				n = int64(math.Round(d * float64(field.Precision)))
			} else {
				n = int64(d)
			}
		default:
			return nil, &TypeMismatchError{Field: field.Name, Expected: "integer", Actual: e.Kind().String()}
		}
		if int64(int32(n)) != n {
			wide = true
		}
		words = append(words, uint64(n))
	}

	size := wire.SizeInt32
	if wide {
		size = wire.SizeInt64
	}
	data = wire.AppendU32(data, uint32(1+len(words)*size))
	data = append(data, byte(size))
	for _, w := range words {
		if wide {
			data = wire.AppendU64(data, w)
		} else {
			data = wire.AppendU32(data, uint32(w))
		}
	}
	return data, nil
}

// appendObjectArray writes a string, binary, or struct array: each element
// length-prefixed, the concatenation wrapped in an outer length.
func (s *Schema) appendObjectArray(data []byte, field *Field, elems []Value) ([]byte, error) {
	var inner []byte
	for _, e := range elems {
		switch field.Kind {
		case KindString:
			str, ok := e.AsString()
			if !ok {
				return nil, &TypeMismatchError{Field: field.Name, Expected: "string", Actual: e.Kind().String()}
			}
			inner = wire.AppendU32(inner, uint32(len(str)))
			inner = append(inner, str...)
		case KindBinary:
			bin, ok := e.AsBinary()
			if !ok {
				return nil, &TypeMismatchError{Field: field.Name, Expected: "binary", Actual: e.Kind().String()}
			}
			inner = wire.AppendU32(inner, uint32(len(bin)))
			inner = append(inner, bin...)
		default: // KindStruct
			sub, err := s.Encode(s.types[field.TypeIndex], e)
			if err != nil {
				return nil, err
			}
			inner = wire.AppendU32(inner, uint32(len(sub)))
			inner = append(inner, sub...)
		}
	}

	data = wire.AppendU32(data, uint32(len(inner)))
	return append(data, inner...), nil
}
