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
	"errors"
	"fmt"
	"io"

	"buf.build/go/sproto/internal/ast"
)

// Sentinel errors, matchable with [errors.Is]. Errors carrying structured
// context wrap these (or are their own types, below).
var (
	ErrDuplicateTag         = errors.New("duplicate field tag")
	ErrDuplicateField       = errors.New("duplicate field name")
	ErrDuplicateType        = errors.New("redefined type")
	ErrDuplicateProtocolTag = errors.New("redefined protocol tag")
	ErrUndefinedType        = errors.New("undefined type")
	ErrInvalidMapKey        = errors.New("invalid map key")

	ErrUnknownType     = errors.New("unknown type")
	ErrUnknownProtocol = errors.New("unknown protocol")
	ErrUnknownSession  = errors.New("unknown session")

	ErrInvalidData = errors.New("invalid data")
)

// SyntaxError reports malformed schema text, with the offending line.
type SyntaxError = ast.SyntaxError

// SchemaError reports a semantic error while building a schema: duplicate
// names or tags, unresolved type references, or a bad map key.
type SchemaError struct {
	Err error // one of the sentinel errors above

	// Type is the enclosing (or redefined) type; Name is the field or
	// protocol involved, when there is one. Tag is meaningful for the
	// duplicate-tag errors.
	Type string
	Name string
	Tag  int
}

// Error implements [error].
func (e *SchemaError) Error() string {
	switch {
	case errors.Is(e.Err, ErrDuplicateTag):
		return fmt.Sprintf("sproto: duplicate tag %d in type %q", e.Tag, e.Type)
	case errors.Is(e.Err, ErrDuplicateField):
		return fmt.Sprintf("sproto: duplicate field %q in type %q", e.Name, e.Type)
	case errors.Is(e.Err, ErrDuplicateType):
		return fmt.Sprintf("sproto: redefined type %q", e.Type)
	case errors.Is(e.Err, ErrDuplicateProtocolTag):
		return fmt.Sprintf("sproto: redefined protocol tag %d at %q", e.Tag, e.Name)
	case errors.Is(e.Err, ErrUndefinedType):
		return fmt.Sprintf("sproto: undefined type %q referenced by %q", e.Name, e.Type)
	case errors.Is(e.Err, ErrInvalidMapKey):
		return fmt.Sprintf("sproto: invalid map key: field %q in type %q", e.Name, e.Type)
	default:
		return fmt.Sprintf("sproto: %v", e.Err)
	}
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *SchemaError) Unwrap() error { return e.Err }

// TypeMismatchError reports a value whose shape contradicts the schema
// during encoding.
type TypeMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

// Error implements [error].
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("sproto: type mismatch for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

// TruncatedError reports input shorter than the structure it claims to
// hold.
type TruncatedError struct {
	Need, Have int
}

// Error implements [error].
func (e *TruncatedError) Error() string {
	return fmt.Sprintf("sproto: truncated data: need %d bytes, have %d", e.Need, e.Have)
}

// Unwrap implements error unwrapping viz [errors.Unwrap].
func (e *TruncatedError) Unwrap() error { return io.ErrUnexpectedEOF }

// UTF8Error reports invalid UTF-8 in a string field. The same bytes in a
// binary field are accepted, since binary is opaque.
type UTF8Error struct {
	Field string
}

// Error implements [error].
func (e *UTF8Error) Error() string {
	return fmt.Sprintf("sproto: invalid UTF-8 in string field %q", e.Field)
}

// invalidDataf wraps [ErrInvalidData] with detail.
func invalidDataf(format string, args ...any) error {
	return fmt.Errorf("sproto: %w: %s", ErrInvalidData, fmt.Sprintf(format, args...))
}

// truncated is shorthand for the bounds checks in the decoders.
func truncated(need, have int) error {
	return &TruncatedError{Need: need, Have: have}
}
