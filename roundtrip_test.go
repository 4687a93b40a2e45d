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
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"buf.build/go/sproto"
)

const roundtripSchema = `
.Everything {
	i 0 : integer
	b 1 : boolean
	d 2 : double
	s 3 : string
	raw 4 : binary
	child 6 : Child
	ints 7 : *integer
	bools 8 : *boolean
	doubles 9 : *double
	strings 10 : *string
	children 11 : *Child

	.Child {
		id 0 : integer
		label 2 : string
	}
}
`

// randomValue builds a random valid Everything value.
func randomValue(rng *rand.Rand) sproto.Value {
	fields := map[string]sproto.Value{}

	if rng.Intn(4) > 0 {
		fields["i"] = sproto.Int(int64(rng.Uint64()>>uint(rng.Intn(64))) - 1<<32)
	}
	if rng.Intn(4) > 0 {
		fields["b"] = sproto.Bool(rng.Intn(2) == 0)
	}
	if rng.Intn(4) > 0 {
		fields["d"] = sproto.Double(math.Float64frombits(rng.Uint64()))
	}
	if rng.Intn(4) > 0 {
		fields["s"] = sproto.String(randomString(rng))
	}
	if rng.Intn(4) > 0 {
		raw := make([]byte, rng.Intn(20))
		rng.Read(raw)
		fields["raw"] = sproto.Binary(raw)
	}
	if rng.Intn(4) == 0 {
		fields["child"] = randomChild(rng)
	}
	if rng.Intn(4) == 0 {
		n := rng.Intn(6)
		ints := make([]sproto.Value, n)
		for i := range ints {
			ints[i] = sproto.Int(int64(rng.Uint64() >> uint(rng.Intn(64)) >> 1))
		}
		fields["ints"] = sproto.List(ints...)
	}
	if rng.Intn(4) == 0 {
		n := rng.Intn(6)
		bools := make([]sproto.Value, n)
		for i := range bools {
			bools[i] = sproto.Bool(rng.Intn(2) == 0)
		}
		fields["bools"] = sproto.List(bools...)
	}
	if rng.Intn(4) == 0 {
		n := rng.Intn(6)
		doubles := make([]sproto.Value, n)
		for i := range doubles {
			doubles[i] = sproto.Double(math.Float64frombits(rng.Uint64()))
		}
		fields["doubles"] = sproto.List(doubles...)
	}
	if rng.Intn(4) == 0 {
		n := rng.Intn(6)
		strings := make([]sproto.Value, n)
		for i := range strings {
			strings[i] = sproto.String(randomString(rng))
		}
		fields["strings"] = sproto.List(strings...)
	}
	if rng.Intn(4) == 0 {
		n := rng.Intn(4)
		children := make([]sproto.Value, n)
		for i := range children {
			children[i] = randomChild(rng)
		}
		fields["children"] = sproto.List(children...)
	}

	return sproto.Struct(fields)
}

func randomChild(rng *rand.Rand) sproto.Value {
	fields := map[string]sproto.Value{
		"id": sproto.Int(int64(rng.Intn(100000)) - 50000),
	}
	if rng.Intn(2) == 0 {
		fields["label"] = sproto.String(randomString(rng))
	}
	return sproto.Struct(fields)
}

func randomString(rng *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz é世界"
	runes := []rune(alphabet)
	out := make([]rune, rng.Intn(12))
	for i := range out {
		out[i] = runes[rng.Intn(len(runes))]
	}
	return string(out)
}

// TestRoundtrip checks decode(encode(v)) == v and that re-encoding the
// decoded value reproduces the same bytes, over random values.
func TestRoundtrip(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, roundtripSchema)
	everything := schema.TypeByName("Everything")
	rng := rand.New(rand.NewSource(42))

	for range 500 {
		value := randomValue(rng)

		encoded, err := schema.Encode(everything, value)
		require.NoError(t, err)

		decoded, err := schema.Decode(everything, encoded)
		require.NoError(t, err)
		require.True(t, value.Equal(decoded),
			"roundtrip mismatch:\n in: %s\nout: %s", value, decoded)

		reencoded, err := schema.Encode(everything, decoded)
		require.NoError(t, err)
		require.Equal(t, encoded, reencoded)
	}
}

// TestRoundtripPacked composes the codec with pack/unpack the way the RPC
// layer does.
func TestRoundtripPacked(t *testing.T) {
	t.Parallel()
	schema := mustParse(t, roundtripSchema)
	everything := schema.TypeByName("Everything")
	rng := rand.New(rand.NewSource(7))

	for range 100 {
		value := randomValue(rng)

		encoded, err := schema.Encode(everything, value)
		require.NoError(t, err)

		unpacked, err := sproto.Unpack(sproto.Pack(encoded))
		require.NoError(t, err)

		decoded, err := schema.Decode(everything, unpacked[:len(encoded)])
		require.NoError(t, err)
		require.True(t, value.Equal(decoded))
	}
}
