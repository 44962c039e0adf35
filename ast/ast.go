package ast

import (
	"fmt"
	"strings"
)

// References:
//   - https://github.com/wycats/handlebars.js/blob/master/lib/handlebars/compiler/ast.js
//   - https://github.com/golang/go/blob/master/src/text/template/parse/node.go

// A template is an ordered sequence of entries. Entries and operands are
// closed sum types: the evaluator branches on Kind, there is no dynamic
// dispatch across nodes.

type EntryKind int

const (
	// literal bytes emitted verbatim
	EntryRaw EntryKind = iota

	// an expression evaluated and emitted
	EntryEval

	// a named sub-template expanded in place
	EntryPartial
)

type OperandKind int

const (
	// a quoted string
	OperandString OperandKind = iota

	// a path resolved against the context stack
	OperandPath

	// a JSON literal, carrying both the decoded value and its source text
	OperandLiteral
)

// Compiled template. Built once by the parser, immutable afterwards.
type Template struct {
	Entries []Entry
}

type Entry struct {
	Kind EntryKind

	// EntryRaw
	Raw string

	// EntryEval / EntryPartial
	Expr *Expression
}

// A mustache expression: base path, positional params, named options and
// the render options collected from delimiters and whitespace sigils.
type Expression struct {
	Base    []string
	Params  []Operand
	Options []Option

	// render options
	Escape    bool
	Inverse   bool
	Indent    string
	TrimLeft  bool
	TrimRight bool

	// block bodies, nil for non-block expressions
	Block *Template
	Else  *Template
}

type Operand struct {
	Kind OperandKind

	Str     string      // OperandString
	Path    []string    // OperandPath
	Literal interface{} // OperandLiteral, decoded
	Text    string      // OperandLiteral, source form
}

type Option struct {
	Name string
	Val  Operand
}

func Raw(s string) Entry {
	return Entry{Kind: EntryRaw, Raw: s}
}

func Eval(expr *Expression) Entry {
	return Entry{Kind: EntryEval, Expr: expr}
}

func Partial(expr *Expression) Entry {
	return Entry{Kind: EntryPartial, Expr: expr}
}

// Returns the dotted form of the base path, used in error messages.
func (e *Expression) Path() string {
	return strings.Join(e.Base, ".")
}

// Returns true if both expressions name the same base path.
func (e *Expression) SameBase(other *Expression) bool {
	if len(e.Base) != len(other.Base) {
		return false
	}
	for i, s := range e.Base {
		if other.Base[i] != s {
			return false
		}
	}
	return true
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandString:
		return fmt.Sprintf("%q", o.Str)
	case OperandLiteral:
		return o.Text
	default:
		return strings.Join(o.Path, ".")
	}
}

func (e *Expression) String() string {
	var b strings.Builder
	b.WriteString(e.Path())
	for _, p := range e.Params {
		b.WriteByte(' ')
		b.WriteString(p.String())
	}
	for _, o := range e.Options {
		fmt.Fprintf(&b, " %s=%s", o.Name, o.Val.String())
	}
	return b.String()
}
