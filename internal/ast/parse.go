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

// Parse parses schema text into a [File].
//
// Top-level items are type definitions (`.Name { ... }`) and protocol
// definitions (`name tag { ... }`). The returned error is always a
// [*SyntaxError].
func Parse(text string) (*File, error) {
	p := &parser{lex: NewLexer(text)}
	file := new(File)

	for {
		tok := p.lex.Peek()
		switch tok.Kind {
		case EOF:
			return file, nil
		case Dot:
			ty, err := p.typeDecl()
			if err != nil {
				return nil, err
			}
			file.Types = append(file.Types, ty)
		case Name:
			proto, err := p.protocolDecl()
			if err != nil {
				return nil, err
			}
			file.Protocols = append(file.Protocols, proto)
		default:
			return nil, p.errorf(tok, "expected type definition (.) or protocol name, found %v", tok)
		}
	}
}

type parser struct {
	lex *Lexer
}

func (p *parser) errorf(tok Token, format string, args ...any) error {
	return &SyntaxError{Line: tok.Line, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expectName() (string, error) {
	tok := p.lex.Next()
	if tok.Kind != Name {
		return "", p.errorf(tok, "expected name, found %v", tok)
	}
	return tok.Text, nil
}

func (p *parser) expectNumber() (uint64, error) {
	tok := p.lex.Next()
	if tok.Kind != Number {
		return 0, p.errorf(tok, "expected number, found %v", tok)
	}
	return tok.Num, nil
}

func (p *parser) expect(kind TokenKind) error {
	tok := p.lex.Next()
	if tok.Kind != kind {
		want := Token{Kind: kind}
		return p.errorf(tok, "expected %v, found %v", want, tok)
	}
	return nil
}

// typeDecl parses `.Name { members }`.
func (p *parser) typeDecl() (*TypeDecl, error) {
	dot := p.lex.Next() // consume '.'
	name, err := p.expectName()
	if err != nil {
		return nil, err
	}
	if err := p.expect(LBrace); err != nil {
		return nil, err
	}

	ty := &TypeDecl{Name: name, Line: dot.Line}
	if err := p.members(ty); err != nil {
		return nil, err
	}
	return ty, p.expect(RBrace)
}

// members parses fields and nested types up to (not including) the
// closing brace.
func (p *parser) members(ty *TypeDecl) error {
	for {
		tok := p.lex.Peek()
		switch tok.Kind {
		case RBrace, EOF:
			return nil
		case Dot:
			nested, err := p.typeDecl()
			if err != nil {
				return err
			}
			ty.Nested = append(ty.Nested, nested)
		case Name:
			field, err := p.field()
			if err != nil {
				return err
			}
			ty.Fields = append(ty.Fields, field)
		default:
			return p.errorf(tok, "expected field name, nested type, or '}', found %v", tok)
		}
	}
}

// field parses `name tag : [*]type[(extra)]`.
func (p *parser) field() (*FieldDecl, error) {
	field := &FieldDecl{Line: p.lex.Peek().Line}

	var err error
	if field.Name, err = p.expectName(); err != nil {
		return nil, err
	}
	if field.Tag, err = p.expectNumber(); err != nil {
		return nil, err
	}
	if err := p.expect(Colon); err != nil {
		return nil, err
	}

	if p.lex.Peek().Kind == Star {
		p.lex.Next()
		field.Array = true
	}

	if field.TypeName, err = p.expectName(); err != nil {
		return nil, err
	}

	if p.lex.Peek().Kind != LParen {
		return field, nil
	}
	p.lex.Next() // consume '('
	field.HasExtra = true

	tok := p.lex.Peek()
	switch tok.Kind {
	case RParen:
		// Empty parens: *Type().
	case Name:
		field.Extra, _ = p.expectName()
	case Number:
		p.lex.Next()
		field.Extra = fmt.Sprintf("%d", tok.Num)
	default:
		return nil, p.errorf(tok, "expected name, number, or ')' in parentheses, found %v", tok)
	}
	return field, p.expect(RParen)
}

// protocolDecl parses `name tag { request ... response ... }`.
func (p *parser) protocolDecl() (*ProtocolDecl, error) {
	proto := &ProtocolDecl{Line: p.lex.Peek().Line}

	var err error
	if proto.Name, err = p.expectName(); err != nil {
		return nil, err
	}
	if proto.Tag, err = p.expectNumber(); err != nil {
		return nil, err
	}
	if err := p.expect(LBrace); err != nil {
		return nil, err
	}

	for {
		tok := p.lex.Peek()
		switch {
		case tok.Kind == RBrace || tok.Kind == EOF:
			return proto, p.expect(RBrace)
		case tok.Kind == Name && tok.Text == "request":
			p.lex.Next()
			if proto.Request, err = p.protoBody(); err != nil {
				return nil, err
			}
		case tok.Kind == Name && tok.Text == "response":
			p.lex.Next()
			if proto.Response, err = p.protoBody(); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf(tok, "expected 'request', 'response', or '}', found %v", tok)
		}
	}
}

// protoBody parses a protocol part: a type name, an inline struct, or nil.
func (p *parser) protoBody() (*ProtoBody, error) {
	tok := p.lex.Peek()
	switch {
	case tok.Kind == LBrace:
		p.lex.Next()
		inline := &TypeDecl{Line: tok.Line}
		if err := p.members(inline); err != nil {
			return nil, err
		}
		return &ProtoBody{Inline: inline}, p.expect(RBrace)
	case tok.Kind == Name && tok.Text == "nil":
		p.lex.Next()
		return &ProtoBody{Nil: true}, nil
	case tok.Kind == Name:
		name, _ := p.expectName()
		return &ProtoBody{TypeName: name}, nil
	default:
		return nil, p.errorf(tok, "expected type name or inline struct, found %v", tok)
	}
}
