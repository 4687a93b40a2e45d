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

// Pack compresses src with the word-oriented zero-packing scheme.
//
// The input is logically padded with zeros to the next multiple of 8.
// Each 8-byte word becomes a tag byte whose bits mark the nonzero
// positions, followed by only the nonzero bytes. Words with all eight
// bytes nonzero open a 0xff run: tag 0xff, a count byte n-1, then n words
// copied verbatim. A word with 6 or 7 nonzero bytes joins a run already
// in progress but never starts one. Runs are truncated at 256 words.
//
// Pack is deterministic: equal inputs produce equal outputs.
func Pack(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}

	// Worst case grows by one tag byte per word plus run headers.
	dst := make([]byte, 0, len(src)+len(src)/8+2)

	var runStart, runWords int
	flush := func() {
		dst = append(dst, 0xff, byte(runWords-1))
		end := runStart + runWords*8
		if end <= len(src) {
			dst = append(dst, src[runStart:end]...)
		} else {
			dst = append(dst, src[runStart:]...)
			dst = append(dst, make([]byte, end-len(src))...)
		}
		runWords = 0
	}

	for i := 0; i < len(src); i += 8 {
		var word [8]byte
		copy(word[:], src[i:])

		var tag byte
		nonzero := 0
		for bit, b := range word {
			if b != 0 {
				nonzero++
				tag |= 1 << bit
			}
		}

		// Nearly-dense words ride an existing run; isolated they take a
		// normal tag.
		if (nonzero == 6 || nonzero == 7) && runWords > 0 {
			nonzero = 8
		}

		if nonzero == 8 {
			if runWords == 0 {
				runStart = i
			}
			runWords++
			if runWords == 256 {
				flush()
			}
			continue
		}

		if runWords > 0 {
			flush()
		}
		dst = append(dst, tag)
		for _, b := range word {
			if b != 0 {
				dst = append(dst, b)
			}
		}
	}

	if runWords > 0 {
		flush()
	}
	return dst
}

// Unpack reverses [Pack]. The result is the original input extended with
// zeros to the next multiple of 8.
func Unpack(src []byte) ([]byte, error) {
	var dst []byte

	for i := 0; i < len(src); {
		tag := src[i]
		i++

		if tag == 0xff {
			if i >= len(src) {
				return nil, invalidDataf("0xff tag at end of data without count byte")
			}
			n := (int(src[i]) + 1) * 8
			i++
			if i+n > len(src) {
				return nil, invalidDataf("0xff run needs %d bytes but only %d available", n, len(src)-i)
			}
			dst = append(dst, src[i:i+n]...)
			i += n
			continue
		}

		for bit := 0; bit < 8; bit++ {
			if tag&(1<<bit) != 0 {
				if i >= len(src) {
					return nil, invalidDataf("truncated packed data in normal segment")
				}
				dst = append(dst, src[i])
				i++
			} else {
				dst = append(dst, 0)
			}
		}
	}

	return dst, nil
}
