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

import "math"

// Kind identifies the shape of a [Value], and doubles as the base type of a
// schema [Field] (fields are never of [KindList]; arrays are expressed by
// [Field].Array).
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindBoolean
	KindDouble
	KindString
	KindBinary
	KindStruct
	KindList
)

// Value is a dynamic sproto value: the input of [Schema.Encode] and the
// output of [Schema.Decode].
//
// A Value is a tagged union over seven shapes. Scalars are packed into a
// single machine word; aggregate shapes share the value they were
// constructed with (Values do not copy on construction).
//
// The zero Value is invalid; [Schema.Encode] rejects it with a
// [TypeMismatchError].
type Value struct {
	kind   Kind
	num    uint64 // integer, boolean, or double bits
	str    string
	bin    []byte
	fields map[string]Value
	list   []Value
}

// Int returns a new integer value.
func Int(v int64) Value { return Value{kind: KindInteger, num: uint64(v)} }

// Bool returns a new boolean value.
func Bool(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{kind: KindBoolean, num: n}
}

// Double returns a new double value.
func Double(v float64) Value {
	return Value{kind: KindDouble, num: math.Float64bits(v)}
}

// String returns a new string value.
func String(v string) Value { return Value{kind: KindString, str: v} }

// Binary returns a new binary value. The bytes are not copied.
func Binary(v []byte) Value { return Value{kind: KindBinary, bin: v} }

// Struct returns a new struct value over the given fields. The map is not
// copied.
func Struct(fields map[string]Value) Value {
	return Value{kind: KindStruct, fields: fields}
}

// List returns a new list value. The elements are not copied.
func List(elems ...Value) Value { return Value{kind: KindList, list: elems} }

// Kind returns the shape of this value.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether this value holds anything at all. The zero Value
// is not valid.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsInt returns the integer this value holds, if it is one.
func (v Value) AsInt() (int64, bool) {
	return int64(v.num), v.kind == KindInteger
}

// AsBool returns the boolean this value holds, if it is one.
func (v Value) AsBool() (bool, bool) {
	return v.num != 0, v.kind == KindBoolean
}

// AsDouble returns the double this value holds, if it is one.
func (v Value) AsDouble() (float64, bool) {
	return math.Float64frombits(v.num), v.kind == KindDouble
}

// AsString returns the string this value holds, if it is one.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsBinary returns the bytes this value holds, if it is binary.
func (v Value) AsBinary() ([]byte, bool) {
	return v.bin, v.kind == KindBinary
}

// AsStruct returns the field map this value holds, if it is a struct.
func (v Value) AsStruct() (map[string]Value, bool) {
	return v.fields, v.kind == KindStruct
}

// AsList returns the elements this value holds, if it is a list.
func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// Get returns the named field of a struct value. Returns an invalid Value
// if v is not a struct or the field is absent.
func (v Value) Get(name string) (Value, bool) {
	if v.kind != KindStruct {
		return Value{}, false
	}
	f, ok := v.fields[name]
	return f, ok
}

// Len returns the element count of a list value, the field count of a
// struct value, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindStruct:
		return len(v.fields)
	default:
		return 0
	}
}

// Equal reports whether two values are structurally equal.
//
// Doubles compare by bit pattern: NaN equals itself, and +0.0 does not
// equal -0.0.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == w.str
	case KindBinary:
		if len(v.bin) != len(w.bin) {
			return false
		}
		for i := range v.bin {
			if v.bin[i] != w.bin[i] {
				return false
			}
		}
		return true
	case KindStruct:
		if len(v.fields) != len(w.fields) {
			return false
		}
		for name, a := range v.fields {
			b, ok := w.fields[name]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.list) != len(w.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(w.list[i]) {
				return false
			}
		}
		return true
	default:
		return v.num == w.num
	}
}
