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

	"buf.build/go/sproto/internal/debug"
)

// An RPC packet is pack(encode(header) ++ encode(content)): a package
// header against the schema's package type, the protocol payload after
// it, the whole thing zero-packed. The header's `type` field discriminates
// requests (present) from responses (absent); `session` correlates a
// request with its eventual response.

// defaultPackageType is the conventional name of the package header type.
const defaultPackageType = "package"

// Host is an RPC endpoint: the sole demultiplex point for incoming
// packets, and the owner of the pending-session table.
//
// A Host is not safe for concurrent use; every operation mutates the
// session table. No operation blocks: callers own all I/O and timeouts.
type Host struct {
	schema *Schema
	pkg    *Type

	// Pending sessions and the type index of the response each expects,
	// -1 for none.
	sessions map[uint64]int
}

// HostOption is a configuration setting for [NewHost].
type HostOption struct{ apply func(*hostOptions) }

type hostOptions struct {
	packageType string
}

// WithPackageType overrides the name of the package header type. The
// default is "package".
func WithPackageType(name string) HostOption {
	return HostOption{func(o *hostOptions) { o.packageType = name }}
}

// NewHost creates an RPC endpoint over a schema. The schema must contain
// the package header type, with at least optional `type`, `session`, and
// `ud` integer fields.
func NewHost(schema *Schema, options ...HostOption) (*Host, error) {
	opts := hostOptions{packageType: defaultPackageType}
	for _, opt := range options {
		if opt.apply != nil {
			opt.apply(&opts)
		}
	}

	pkg := schema.TypeByName(opts.packageType)
	if pkg == nil {
		return nil, fmt.Errorf("sproto: package type %q not found: %w", opts.packageType, ErrUnknownType)
	}

	return &Host{
		schema:   schema,
		pkg:      pkg,
		sessions: make(map[uint64]int),
	}, nil
}

// Request is an incoming request, returned by [Host.Dispatch].
type Request struct {
	// Name is the protocol name.
	Name string

	// Message is the decoded request payload, an empty struct when the
	// protocol has no request type or the packet carried no content.
	Message Value

	// Responder builds the response packet. Nil when the request carried
	// no session: the peer expects no reply.
	Responder *Responder

	// UserData is the header's ud field, when present.
	UserData    int64
	HasUserData bool
}

// Response is an incoming response, returned by [Host.Dispatch].
type Response struct {
	// Session is the session chosen by the original request.
	Session uint64

	// Message is the decoded response payload; invalid when the protocol
	// declares no response type or the packet carried no content.
	Message Value

	// UserData is the header's ud field, when present.
	UserData    int64
	HasUserData bool
}

// Dispatch is the result of [Host.Dispatch]: a [*Request] or a
// [*Response].
type Dispatch interface {
	isDispatch()
}

func (*Request) isDispatch()  {}
func (*Response) isDispatch() {}

// Dispatch unpacks and decodes an incoming packet.
//
// A request yields a [*Request], with a [*Responder] when the peer sent a
// session. A response yields a [*Response] and removes its session from
// the pending table; dispatching an unknown or already-completed session
// fails with [ErrUnknownSession].
func (h *Host) Dispatch(packet []byte) (Dispatch, error) {
	raw, err := Unpack(packet)
	if err != nil {
		return nil, err
	}

	header, err := h.schema.Decode(h.pkg, raw)
	if err != nil {
		return nil, err
	}

	protoTag, hasType := headerInt(header, "type")
	session, hasSession := headerInt(header, "session")
	ud, hasUD := headerInt(header, "ud")

	// Re-encoding the header gives its exact byte length; the format is
	// deterministic. Everything after it is the content.
	encoded, err := h.schema.Encode(h.pkg, header)
	if err != nil {
		return nil, err
	}
	content := raw[len(encoded):]

	if hasType {
		proto := h.schema.ProtocolByTag(uint16(protoTag))
		if proto == nil {
			return nil, fmt.Errorf("sproto: %w: tag %d", ErrUnknownProtocol, protoTag)
		}
		debug.Log(nil, "dispatch", "request %q, session %d/%v", proto.Name, session, hasSession)

		message := Struct(map[string]Value{})
		if proto.Request >= 0 && len(content) > 0 {
			if message, err = h.schema.Decode(h.schema.types[proto.Request], content); err != nil {
				return nil, err
			}
		}

		var responder *Responder
		if hasSession {
			responder = &Responder{
				schema:   h.schema,
				pkg:      h.pkg,
				response: proto.Response,
				session:  uint64(session),
			}
		}

		return &Request{
			Name:        proto.Name,
			Message:     message,
			Responder:   responder,
			UserData:    ud,
			HasUserData: hasUD,
		}, nil
	}

	if !hasSession {
		return nil, invalidDataf("response without session")
	}
	id := uint64(session)

	responseType, ok := h.sessions[id]
	if !ok {
		return nil, fmt.Errorf("sproto: %w %d", ErrUnknownSession, id)
	}
	delete(h.sessions, id)
	debug.Log(nil, "dispatch", "response for session %d", id)

	var message Value
	if responseType >= 0 && len(content) > 0 {
		if message, err = h.schema.Decode(h.schema.types[responseType], content); err != nil {
			return nil, err
		}
	}

	return &Response{
		Session:     id,
		Message:     message,
		UserData:    ud,
		HasUserData: hasUD,
	}, nil
}

// RegisterSession marks a session as awaiting a response of the named
// type; pass an empty name when the protocol declares no response
// payload. Registering an already-pending session overwrites it: session
// reuse is the caller's responsibility.
func (h *Host) RegisterSession(session uint64, responseType string) error {
	idx := -1
	if responseType != "" {
		i, ok := h.schema.typesByName[responseType]
		if !ok {
			return fmt.Errorf("sproto: %w %q", ErrUnknownType, responseType)
		}
		idx = i
	}
	h.sessions[session] = idx
	return nil
}

// Attach creates a [Sender] that builds request packets against a remote
// schema. Headers still use this host's package type; payloads use the
// remote protocol's request type.
func (h *Host) Attach(remote *Schema) *Sender {
	return &Sender{
		local:    h.schema,
		remote:   remote,
		pkg:      h.pkg,
		sessions: make(map[uint64]int),
	}
}

// CallOption is a configuration setting for [Sender.Request] and
// [Responder.Respond].
type CallOption struct{ apply func(*callOptions) }

type callOptions struct {
	session    uint64
	hasSession bool
	ud         int64
	hasUD      bool
}

// WithSession attaches a session to a request, announcing that the caller
// expects a response correlated by it. Sessions are caller-chosen;
// [Responder.Respond] ignores this option, since a responder always
// answers the session it captured.
func WithSession(session uint64) CallOption {
	return CallOption{func(o *callOptions) { o.session = session; o.hasSession = true }}
}

// WithUserData attaches the optional ud header field.
func WithUserData(ud int64) CallOption {
	return CallOption{func(o *callOptions) { o.ud = ud; o.hasUD = true }}
}

// Sender builds request packets. It keeps its own record of sessions it
// has issued and the response type each expects.
//
// A Sender is not safe for concurrent use.
type Sender struct {
	local  *Schema
	remote *Schema
	pkg    *Type

	sessions map[uint64]int
}

// Request builds a packed request packet for the named remote protocol.
func (sn *Sender) Request(name string, message Value, options ...CallOption) ([]byte, error) {
	var opts callOptions
	for _, opt := range options {
		if opt.apply != nil {
			opt.apply(&opts)
		}
	}

	proto := sn.remote.ProtocolByName(name)
	if proto == nil {
		return nil, fmt.Errorf("sproto: %w %q", ErrUnknownProtocol, name)
	}

	header := map[string]Value{"type": Int(int64(proto.Tag))}
	if opts.hasSession {
		header["session"] = Int(int64(opts.session))
	}
	if opts.hasUD {
		header["ud"] = Int(opts.ud)
	}

	packet, err := sn.local.Encode(sn.pkg, Struct(header))
	if err != nil {
		return nil, err
	}

	if proto.Request >= 0 {
		content, err := sn.remote.Encode(sn.remote.types[proto.Request], message)
		if err != nil {
			return nil, err
		}
		packet = append(packet, content...)
	}

	if opts.hasSession {
		sn.sessions[opts.session] = proto.Response
	}

	debug.Log(nil, "request", "%q, %d header+content bytes", name, len(packet))
	return Pack(packet), nil
}

// Responder answers a single dispatched request. It is created by
// [Host.Dispatch] when the request carries a session, and produces one
// response packet.
type Responder struct {
	schema   *Schema
	pkg      *Type
	response int // type index, -1 for none
	session  uint64
}

// Session returns the session this responder answers.
func (r *Responder) Session() uint64 { return r.session }

// Respond builds a packed response packet. The header omits `type`,
// marking the packet as a response, and carries the captured session.
func (r *Responder) Respond(message Value, options ...CallOption) ([]byte, error) {
	var opts callOptions
	for _, opt := range options {
		if opt.apply != nil {
			opt.apply(&opts)
		}
	}

	header := map[string]Value{"session": Int(int64(r.session))}
	if opts.hasUD {
		header["ud"] = Int(opts.ud)
	}

	packet, err := r.schema.Encode(r.pkg, Struct(header))
	if err != nil {
		return nil, err
	}

	if r.response >= 0 {
		content, err := r.schema.Encode(r.schema.types[r.response], message)
		if err != nil {
			return nil, err
		}
		packet = append(packet, content...)
	}

	debug.Log(nil, "respond", "session %d, %d header+content bytes", r.session, len(packet))
	return Pack(packet), nil
}

// headerInt reads an optional integer field of the package header.
func headerInt(header Value, name string) (int64, bool) {
	v, ok := header.Get(name)
	if !ok {
		return 0, false
	}
	n, ok := v.AsInt()
	return n, ok
}
