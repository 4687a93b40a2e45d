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
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBaseTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tags    []uint16
		baseTag int32
		maxn    int
	}{
		{"empty", nil, -1, 0},
		{"single", []uint16{0}, 0, 1},
		{"contiguous_from_zero", []uint16{0, 1, 2}, 0, 3},
		{"contiguous_from_five", []uint16{5, 6, 7}, 5, 4},
		{"one_gap", []uint16{0, 5}, -1, 3},
		{"two_gaps", []uint16{1, 3, 7}, -1, 6},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			ty := &Type{Name: "T"}
			for _, tag := range test.tags {
				ty.Fields = append(ty.Fields, Field{
					Name: fmt.Sprintf("f%d", tag),
					Tag:  tag,
					Kind: KindInteger,
				})
			}
			ty.finish()

			require.Equal(t, test.baseTag, ty.baseTag)
			require.Equal(t, test.maxn, ty.maxn)
		})
	}
}

func TestFieldByTag(t *testing.T) {
	t.Parallel()

	// Contiguous tags take the O(1) offset path; gapped tags take the
	// binary search path. Both must agree on hits and misses.
	for _, tags := range [][]uint16{{2, 3, 4, 5}, {2, 4, 8, 500}} {
		ty := &Type{Name: "T"}
		for _, tag := range tags {
			ty.Fields = append(ty.Fields, Field{Name: fmt.Sprintf("f%d", tag), Tag: tag, Kind: KindInteger})
		}
		ty.finish()

		present := make(map[uint16]bool, len(tags))
		for _, tag := range tags {
			present[tag] = true
			field := ty.FieldByTag(tag)
			require.NotNil(t, field)
			require.Equal(t, tag, field.Tag)
		}
		for probe := range uint16(600) {
			if !present[probe] {
				require.Nil(t, ty.FieldByTag(probe), "tag %d", probe)
			}
		}
	}
}

func TestNewSchema(t *testing.T) {
	t.Parallel()

	types := []*Type{
		{
			Name: "package",
			Fields: []Field{
				{Name: "type", Tag: 0, Kind: KindInteger},
				{Name: "session", Tag: 1, Kind: KindInteger},
				{Name: "ud", Tag: 2, Kind: KindInteger},
			},
		},
		{
			Name: "item",
			// Out of order on purpose: NewSchema sorts.
			Fields: []Field{
				{Name: "label", Tag: 3, Kind: KindString},
				{Name: "id", Tag: 0, Kind: KindInteger},
			},
		},
	}
	protocols := []*Protocol{
		{Name: "get", Tag: 2, Request: 1, Response: 1},
		{Name: "put", Tag: 1, Request: 1, Response: -1},
	}

	s, err := NewSchema(types, protocols)
	require.NoError(t, err)

	item := s.TypeByName("item")
	require.NotNil(t, item)
	require.Equal(t, "id", item.Fields[0].Name)
	require.Equal(t, int32(-1), item.baseTag)

	// Protocols come out in tag order regardless of input order.
	require.Equal(t, "put", s.Protocols()[0].Name)
	require.Equal(t, "get", s.ProtocolByTag(2).Name)
	require.Nil(t, s.ProtocolByTag(9))
}

func TestNewSchemaRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewSchema([]*Type{{Name: "a"}, {Name: "a"}}, nil)
	require.ErrorIs(t, err, ErrDuplicateType)

	_, err = NewSchema([]*Type{{
		Name: "a",
		Fields: []Field{
			{Name: "x", Tag: 1, Kind: KindInteger},
			{Name: "y", Tag: 1, Kind: KindInteger},
		},
	}}, nil)
	require.ErrorIs(t, err, ErrDuplicateTag)

	_, err = NewSchema([]*Type{{
		Name: "a",
		Fields: []Field{
			{Name: "x", Tag: 1, Kind: KindInteger},
			{Name: "x", Tag: 2, Kind: KindInteger},
		},
	}}, nil)
	require.ErrorIs(t, err, ErrDuplicateField)

	_, err = NewSchema(
		[]*Type{{Name: "a"}},
		[]*Protocol{
			{Name: "p", Tag: 1, Request: -1, Response: -1},
			{Name: "q", Tag: 1, Request: -1, Response: -1},
		})
	require.ErrorIs(t, err, ErrDuplicateProtocolTag)

	_, err = NewSchema([]*Type{{
		Name:   "a",
		Fields: []Field{{Name: "x", Tag: 0, Kind: KindStruct, TypeIndex: 5}},
	}}, nil)
	require.ErrorIs(t, err, ErrUndefinedType)
}

func BenchmarkTypeByName(b *testing.B) {
	// Random names stress the lookup table the same way random UUID keys
	// stress a hash map.
	const n = 512
	names := make([]string, n)
	types := make([]*Type, n)
	for i := range types {
		names[i] = uuid.NewString()
		types[i] = &Type{
			Name:   names[i],
			Fields: []Field{{Name: "id", Tag: 0, Kind: KindInteger}},
		}
	}

	s, err := NewSchema(types, nil)
	require.NoError(b, err)

	b.Run("hit", func(b *testing.B) {
		for i := range b.N {
			if s.TypeByName(names[i%n]) == nil {
				b.Fatal("missing type")
			}
		}
	})
	b.Run("miss", func(b *testing.B) {
		probe := uuid.NewString()
		for range b.N {
			if s.TypeByName(probe) != nil {
				b.Fatal("unexpected hit")
			}
		}
	})
}
