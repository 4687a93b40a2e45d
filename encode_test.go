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

package sproto_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"buf.build/go/sproto"
)

const personSchema = `
.Person {
	name 0 : string
	age 1 : integer
	marital 2 : boolean
}
`

func mustParse(t *testing.T, text string) *sproto.Schema {
	t.Helper()
	schema, err := sproto.ParseSchema(text)
	require.NoError(t, err)
	return schema
}

func TestEncodePerson(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, personSchema)

	got, err := schema.Encode(schema.TypeByName("Person"), sproto.Struct(map[string]sproto.Value{
		"name":    sproto.String("Alice"),
		"age":     sproto.Int(13),
		"marital": sproto.Bool(false),
	}))
	require.NoError(t, err)

	// FN=3; name external; age inline (13+1)*2; marital inline (0+1)*2;
	// then the length-prefixed string.
	require.Equal(t, "030000001c00020005000000416c696365", hex.EncodeToString(got))
}

func TestEncodeOmitsMissingFields(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, personSchema)

	got, err := schema.Encode(schema.TypeByName("Person"), sproto.Struct(map[string]sproto.Value{
		"marital": sproto.Bool(true),
	}))
	require.NoError(t, err)

	// Two descriptors: a skip over tags 0-1, then marital inline true.
	require.Equal(t, "020003000400", hex.EncodeToString(got))
}

func TestEncodeIgnoresExtraKeys(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, personSchema)

	got, err := schema.Encode(schema.TypeByName("Person"), sproto.Struct(map[string]sproto.Value{
		"age":      sproto.Int(1),
		"whatever": sproto.String("not in the schema"),
	}))
	require.NoError(t, err)
	require.Equal(t, "020001000400", hex.EncodeToString(got))
}

func TestEncodeEmptyStruct(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, personSchema)

	got, err := schema.Encode(schema.TypeByName("Person"), sproto.Struct(nil))
	require.NoError(t, err)
	require.Equal(t, "0000", hex.EncodeToString(got))
}

func TestEncodeInlineBoundary(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, ".Edge { v 0 : integer }")
	edge := schema.TypeByName("Edge")

	encode := func(n int64) string {
		got, err := schema.Encode(edge, sproto.Struct(map[string]sproto.Value{"v": sproto.Int(n)}))
		require.NoError(t, err)
		return hex.EncodeToString(got)
	}

	// 0x7ffe is the largest inline value; 0x7fff is forced external.
	require.Equal(t, "0100feff", encode(0x7ffe))
	require.Equal(t, "0100000004000000ff7f0000", encode(0x7fff))

	// Negative values are never inline, and fit four bytes.
	require.Equal(t, "0100000004000000ffffffff", encode(-1))

	// Values outside the 32-bit range take eight bytes.
	require.Equal(t, "0100000008000000ffffffff01000000", encode(0x1ffffffff))
}

func TestEncodeIntegerArrayWidth(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, ".Data { numbers 0 : *integer }")
	data := schema.TypeByName("Data")

	got, err := schema.Encode(data, sproto.Struct(map[string]sproto.Value{
		"numbers": sproto.List(sproto.Int(1), sproto.Int(2), sproto.Int(3), sproto.Int(4), sproto.Int(5)),
	}))
	require.NoError(t, err)
	require.Equal(t,
		"0100000015000000040100000002000000030000000400000005000000",
		hex.EncodeToString(got))

	// A single element outside the 32-bit range promotes every element
	// to the 8-byte form.
	got, err = schema.Encode(data, sproto.Struct(map[string]sproto.Value{
		"numbers": sproto.List(sproto.Int(1<<29), sproto.Int(1<<39)),
	}))
	require.NoError(t, err)
	require.Equal(t,
		"01000000110000000800000020000000000000000080000000",
		hex.EncodeToString(got))
}

func TestEncodeEmptyArray(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, ".Data { numbers 0 : *integer }")

	got, err := schema.Encode(schema.TypeByName("Data"), sproto.Struct(map[string]sproto.Value{
		"numbers": sproto.List(),
	}))
	require.NoError(t, err)

	// Zero-length region, no element-size marker.
	require.Equal(t, "0100000000000000", hex.EncodeToString(got))
}

func TestEncodeFixedPoint(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, ".Money { fpn 0 : integer(2) }")
	money := schema.TypeByName("Money")

	// A double is scaled by 10^2 and rounded; (182+1)*2 = 0x016e inline.
	got, err := schema.Encode(money, sproto.Struct(map[string]sproto.Value{
		"fpn": sproto.Double(1.82),
	}))
	require.NoError(t, err)
	require.Equal(t, "01006e01", hex.EncodeToString(got))

	// An integer is passed through as already scaled.
	got, err = schema.Encode(money, sproto.Struct(map[string]sproto.Value{
		"fpn": sproto.Int(182),
	}))
	require.NoError(t, err)
	require.Equal(t, "01006e01", hex.EncodeToString(got))
}

func TestEncodeDoubleField(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, ".Point { x 0 : double }")
	point := schema.TypeByName("Point")

	got, err := schema.Encode(point, sproto.Struct(map[string]sproto.Value{
		"x": sproto.Double(1.5),
	}))
	require.NoError(t, err)
	require.Equal(t, "0100000008000000000000000000f83f", hex.EncodeToString(got))

	// An integer value is accepted and widened.
	got, err = schema.Encode(point, sproto.Struct(map[string]sproto.Value{
		"x": sproto.Int(1),
	}))
	require.NoError(t, err)
	require.Equal(t, "0100000008000000000000000000f03f", hex.EncodeToString(got))
}

func TestEncodeTypeMismatch(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, personSchema)
	person := schema.TypeByName("Person")

	_, err := schema.Encode(person, sproto.Struct(map[string]sproto.Value{
		"age": sproto.String("not a number"),
	}))
	var mismatch *sproto.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "age", mismatch.Field)

	// A fixed-point field takes doubles; a plain integer field does not.
	_, err = schema.Encode(person, sproto.Struct(map[string]sproto.Value{
		"age": sproto.Double(1.5),
	}))
	require.ErrorAs(t, err, &mismatch)

	// The top-level value must be a struct.
	_, err = schema.Encode(person, sproto.Int(42))
	require.ErrorAs(t, err, &mismatch)
}

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, personSchema)
	person := schema.TypeByName("Person")

	value := sproto.Struct(map[string]sproto.Value{
		"name":    sproto.String("Bob"),
		"age":     sproto.Int(900000),
		"marital": sproto.Bool(true),
	})

	first, err := schema.Encode(person, value)
	require.NoError(t, err)
	for range 16 {
		again, err := schema.Encode(person, value)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}
