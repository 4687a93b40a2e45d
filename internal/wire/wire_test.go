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

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteOrder(t *testing.T) {
	t.Parallel()

	var buf [8]byte
	PutU16(buf[:], 0x1234)
	require.Equal(t, []byte{0x34, 0x12}, buf[:2])
	require.Equal(t, uint16(0x1234), U16(buf[:]))

	PutU32(buf[:], 0x12345678)
	require.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, buf[:4])
	require.Equal(t, uint32(0x12345678), U32(buf[:]))

	PutU64(buf[:], 0x123456789abcdef0)
	require.Equal(t, uint64(0x123456789abcdef0), U64(buf[:]))

	require.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, AppendU32(nil, 1))
	require.Equal(t, []byte{0xff, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		AppendU64([]byte{0xff}, 2))
}

func TestExpand64(t *testing.T) {
	t.Parallel()

	require.Equal(t, uint64(100), Expand64(100))
	require.Equal(t, uint64(0x7fffffff), Expand64(0x7fffffff))

	// The sign bit extends through the high half.
	require.Equal(t, int64(-1), int64(Expand64(0xffffffff)))
	require.Equal(t, int64(-10), int64(Expand64(0xfffffff6)))
	require.Equal(t, int64(-0x80000000), int64(Expand64(0x80000000)))
}
