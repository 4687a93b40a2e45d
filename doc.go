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

// Package sproto implements the sproto binary serialization format: a
// compact schema-driven codec for environments where Protocol Buffers
// feel heavy, with an optional zero-packing transport wrapper and a
// minimal request/response RPC framing layer.
//
// A [Schema] comes from one of three sources: [ParseSchema] for the
// textual schema language, [LoadSchema] for the self-describing binary
// form, or [NewSchema] for programmatic construction. Schemas are built
// once and then read-only; share them freely across goroutines.
//
// [Schema.Encode] serializes a [Value] tree against a schema type, and
// [Schema.Decode] reverses it. [Pack] and [Unpack] apply the word-oriented
// zero compression usually wrapped around encoded messages on the wire.
// [Host], [Sender], and [Responder] compose the codec and the packer into
// RPC packets correlated by caller-chosen sessions.
//
// # Support Status
//
// The codec is complete. Deliberately out of scope, as external
// collaborators built on the public schema and value surface:
//
//   - Static code generation from Go types.
//   - Adapter layers between Go structs and [Value] trees.
//   - Any network transport: nothing here performs I/O or blocks, so
//     timeouts around request/response waiting belong to the caller.
package sproto
