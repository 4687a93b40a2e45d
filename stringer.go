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
	"sort"
	"strings"
)

// Stringer implementations for the public types. These are only relevant
// for debugging and are thus placed off to the side here.

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindStruct:
		return "struct"
	case KindList:
		return "array"
	default:
		return "invalid"
	}
}

// String implements [fmt.Stringer]. Struct fields print in name order so
// that output is stable.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return fmt.Sprintf("%d", int64(v.num))
	case KindBoolean:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case KindDouble:
		d, _ := v.AsDouble()
		return fmt.Sprintf("%v", d)
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBinary:
		return fmt.Sprintf("<binary %d bytes>", len(v.bin))
	case KindStruct:
		names := make([]string, 0, len(v.fields))
		for name := range v.fields {
			names = append(names, name)
		}
		sort.Strings(names)

		out := new(strings.Builder)
		out.WriteString("{ ")
		for i, name := range names {
			if i > 0 {
				out.WriteString(", ")
			}
			fmt.Fprintf(out, "%s: %s", name, v.fields[name])
		}
		out.WriteString(" }")
		return out.String()
	case KindList:
		out := new(strings.Builder)
		out.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				out.WriteString(", ")
			}
			out.WriteString(e.String())
		}
		out.WriteByte(']')
		return out.String()
	default:
		return "<invalid>"
	}
}

// Format implements [fmt.Formatter].
func (t *Type) Format(s fmt.State, verb rune) {
	if t == nil {
		fmt.Fprint(s, "<nil>")
		return
	}
	if !s.Flag('#') {
		fmt.Fprint(s, t.Name)
		return
	}
	fmt.Fprintf(s, "%s{", t.Name)
	for i := range t.Fields {
		f := &t.Fields[i]
		if i > 0 {
			fmt.Fprint(s, " ")
		}
		fmt.Fprintf(s, "%s/%d:%s", f.Name, f.Tag, f.Kind)
		if f.Array {
			fmt.Fprint(s, "[]")
		}
	}
	fmt.Fprint(s, "}")
}
