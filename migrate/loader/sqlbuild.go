// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package loader

import (
	"bytes"
	"reflect"
	"strings"
)

// builder is a syntactic-sugar helper for assembling the synthesized
// registration batches. It keeps the generic, schema-independent half of
// the teacher's sqlx.Builder (phrase writing, indentation, comma-joining,
// quoting) and drops the half that was coupled to the dialect-diffing
// schema AST, which this package has no use for: migrations carry opaque
// SQL text, not a typed schema to render.
type builder struct {
	bytes.Buffer
	Indent string
	level  int
}

// P writes a list of phrases separated and suffixed with whitespace.
func (b *builder) P(phrases ...string) *builder {
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if b.Len() > 0 && b.lastByte() != ' ' && b.lastByte() != '(' {
			b.WriteByte(' ')
		}
		b.WriteString(p)
		if p[len(p)-1] != ' ' {
			b.WriteByte(' ')
		}
	}
	return b
}

// Ident writes s quoted as a SQL Server bracketed identifier.
func (b *builder) Ident(s string) *builder {
	if s != "" {
		b.WriteByte('[')
		b.WriteString(s)
		b.WriteByte(']')
		b.WriteByte(' ')
	}
	return b
}

// IndentIn adds one indentation level.
func (b *builder) IndentIn() *builder {
	b.level++
	return b
}

// IndentOut removes one indentation level.
func (b *builder) IndentOut() *builder {
	b.level--
	return b
}

// NL writes a line break and prefixes the new line with indentation.
func (b *builder) NL() *builder {
	if b.lastByte() == ' ' {
		b.rewriteLastByte('\n')
	} else {
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat(b.Indent, b.level))
	return b
}

// Comma writes a comma, replacing a trailing space if one was just written.
func (b *builder) Comma() *builder {
	switch {
	case b.Len() == 0:
	case b.lastByte() == ' ':
		b.rewriteLastByte(',')
		b.WriteByte(' ')
	default:
		b.WriteString(", ")
	}
	return b
}

// MapComma maps x using f and joins the written elements with a comma.
func (b *builder) MapComma(x any, f func(i int, b *builder)) *builder {
	s := reflect.ValueOf(x)
	for i := 0; i < s.Len(); i++ {
		if i > 0 {
			b.Comma()
		}
		f(i, b)
	}
	return b
}

// Quote wraps fn's output in a prefixed N'...' SQL Server nvarchar literal.
func (b *builder) Quote(prefix string, fn func(b *builder)) *builder {
	b.WriteString(prefix)
	b.WriteByte('\'')
	fn(b)
	if b.lastByte() != ' ' {
		b.WriteByte('\'')
	} else {
		b.rewriteLastByte('\'')
	}
	return b
}

// Wrap wraps the written string in parentheses.
func (b *builder) Wrap(f func(b *builder)) *builder {
	b.WriteByte('(')
	f(b)
	if b.lastByte() != ' ' {
		b.WriteByte(')')
	} else {
		b.rewriteLastByte(')')
	}
	return b
}

// String overrides Buffer.String to trim the trailing padding P leaves.
func (b *builder) String() string {
	return strings.TrimSpace(b.Buffer.String())
}

func (b *builder) lastByte() byte {
	if b.Len() == 0 {
		return 0
	}
	buf := b.Bytes()
	return buf[len(buf)-1]
}

func (b *builder) rewriteLastByte(c byte) {
	if b.Len() == 0 {
		return
	}
	buf := b.Bytes()
	buf[len(buf)-1] = c
}
