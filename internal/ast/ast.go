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

package ast

import "fmt"

// File is a parsed schema file.
type File struct {
	Types     []*TypeDecl
	Protocols []*ProtocolDecl
}

// TypeDecl is a user-defined struct type. Nested declarations scope their
// names by dot during schema construction.
type TypeDecl struct {
	Name   string
	Line   int
	Fields []*FieldDecl
	Nested []*TypeDecl
}

// FieldDecl is a single field of a type.
type FieldDecl struct {
	Name     string
	Tag      uint64
	Line     int
	Array    bool
	TypeName string

	// The parenthesized extra: a map key name or decimal precision for
	// integer(n). HasExtra distinguishes the empty `*T()` form from no
	// parentheses at all.
	Extra    string
	HasExtra bool
}

// ProtocolDecl is an RPC protocol declaration.
type ProtocolDecl struct {
	Name     string
	Tag      uint64
	Line     int
	Request  *ProtoBody
	Response *ProtoBody
}

// ProtoBody is the request or response part of a protocol: a type name, an
// inline anonymous struct, or the literal nil.
type ProtoBody struct {
	TypeName string
	Inline   *TypeDecl
	Nil      bool
}

// SyntaxError reports malformed schema text.
type SyntaxError struct {
	Line    int
	Message string
}

// Error implements [error].
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Message)
}
