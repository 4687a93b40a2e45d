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

// Package wire provides the little-endian primitives of the sproto wire
// format, shared by the codec and the binary schema loader.
package wire

import "encoding/binary"

// Fixed sizes of the wire format, in bytes.
const (
	SizeHeader = 2 // per-struct field count
	SizeField  = 2 // field descriptor
	SizeLength = 4 // length prefix
	SizeInt32  = 4
	SizeInt64  = 8
)

// U16 reads a 16-bit little-endian integer from the front of b.
func U16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// U32 reads a 32-bit little-endian integer from the front of b.
func U32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// U64 reads a 64-bit little-endian integer from the front of b.
func U64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// PutU16 writes a 16-bit little-endian integer to the front of b.
func PutU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// PutU32 writes a 32-bit little-endian integer to the front of b.
func PutU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// PutU64 writes a 64-bit little-endian integer to the front of b.
func PutU64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// AppendU32 appends a 32-bit little-endian integer to b.
func AppendU32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// AppendU64 appends a 64-bit little-endian integer to b.
func AppendU64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

// Expand64 sign-extends a 32-bit wire value to 64 bits.
//
// External 4-byte integer regions store the low half of a two's-complement
// value; the high half is reconstructed from the sign bit.
func Expand64(v uint32) uint64 {
	value := uint64(v)
	if value&0x80000000 != 0 {
		return value | 0xffffffff00000000
	}
	return value
}
