package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/grumblehq/grumble/ast"
	"github.com/grumblehq/grumble/lexer"
)

// Expression parser: consumes the token stream of an expression lexer and
// produces the expression node together with the whitespace surrounding the
// delimiters.

var rIndent = regexp.MustCompile(`[ \t]*$`)

// parsed form of one expression token: leading whitespace, node, trailing
// whitespace
type parsedExpression struct {
	leadWS  string
	expr    *ast.Expression
	trailWS string
}

type expParser struct {
	tokens []lexer.ExpToken
	pos    int
}

func parseExpression(input string) (*parsedExpression, error) {
	p := &expParser{tokens: lexer.ScanExpression(input).Tokens()}

	result := &parsedExpression{
		expr: &ast.Expression{Escape: true},
	}
	expr := result.expr

	for {
		tok := p.shift()

		switch tok.Kind {
		case lexer.ExpError:
			return nil, errInvalidExpression(input)
		case lexer.ExpEOF:
			if err := validateBase(expr.Base); err != nil {
				return nil, errInvalidExpression(input)
			}
			return result, nil
		case lexer.ExpLeadingWS:
			result.leadWS = tok.Val
			expr.Indent = rIndent.FindString(tok.Val)
		case lexer.ExpTrailingWS:
			result.trailWS = tok.Val
		case lexer.ExpTrimLeft:
			expr.TrimLeft = true
		case lexer.ExpTrimRight:
			expr.TrimRight = true
		case lexer.ExpPathEntry:
			expr.Base = append(expr.Base, tok.Val)
		case lexer.ExpString:
			// a quoted string in base position contributes a path entry
			expr.Base = append(expr.Base, unescapeString(tok.Val))
		case lexer.ExpParamStart, lexer.ExpParamSep:
			if err := p.parseParams(result); err != nil {
				return nil, err
			}
		default:
			return nil, errInvalidExpression(input)
		}
	}
}

// parses `param* option*` up to the end of the expression
func (p *expParser) parseParams(result *parsedExpression) error {
	expr := result.expr

	var path []string
	bracketed := false

	flush := func() {
		if len(path) > 0 {
			expr.Params = append(expr.Params, makeOperand(path, bracketed))
			path = nil
			bracketed = false
		}
	}

	for {
		tok := p.shift()

		switch tok.Kind {
		case lexer.ExpPathEntry:
			path = append(path, tok.Val)
			bracketed = bracketed || tok.Bracketed
		case lexer.ExpString:
			flush()
			expr.Params = append(expr.Params, ast.Operand{Kind: ast.OperandString, Str: unescapeString(tok.Val)})
		case lexer.ExpParamSep:
			flush()
		case lexer.ExpOption:
			flush()
			if err := p.parseOption(result, tok.Val); err != nil {
				return err
			}
		case lexer.ExpTrimRight:
			expr.TrimRight = true
		case lexer.ExpTrailingWS:
			result.trailWS = tok.Val
		case lexer.ExpError:
			return errInvalidExpression(tok.Val)
		default:
			// end of expression
			flush()
			p.backup()
			return nil
		}
	}
}

// parses the operand following an option name, and any options after it
func (p *expParser) parseOption(result *parsedExpression, name string) error {
	expr := result.expr

	var path []string
	bracketed := false
	var str *string

	for {
		tok := p.shift()

		switch tok.Kind {
		case lexer.ExpPathEntry:
			path = append(path, tok.Val)
			bracketed = bracketed || tok.Bracketed
		case lexer.ExpString:
			s := unescapeString(tok.Val)
			str = &s
		case lexer.ExpTrimRight:
			expr.TrimRight = true
		case lexer.ExpTrailingWS:
			result.trailWS = tok.Val
		case lexer.ExpError:
			return errInvalidExpression(tok.Val)
		default:
			// separator, next option or end of expression
			p.backup()
			expr.Options = append(expr.Options, ast.Option{Name: name, Val: makeOperand(path, bracketed)})
			return nil
		}

		if str != nil {
			// a string closes the option value
			expr.Options = append(expr.Options, ast.Option{Name: name, Val: ast.Operand{Kind: ast.OperandString, Str: *str}})
			return nil
		}
	}
}

// A single-segment parameter whose textual form parses as JSON is promoted
// to a literal; bracketed segments always stay paths.
func makeOperand(path []string, bracketed bool) ast.Operand {
	if len(path) == 1 && !bracketed {
		var decoded interface{}
		if err := json.Unmarshal([]byte(path[0]), &decoded); err == nil {
			return ast.Operand{Kind: ast.OperandLiteral, Literal: decoded, Text: path[0]}
		}
	}

	return ast.Operand{Kind: ast.OperandPath, Path: path}
}

func unescapeString(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}

// Enforces the path invariants: parent markers only lead, frame variables
// only in first position.
func validateBase(base []string) error {
	for i, seg := range base {
		if seg == ".." && i > 0 && base[i-1] != ".." {
			return errInvalidExpression(strings.Join(base, "."))
		}
		if strings.HasPrefix(seg, "@") && i > 0 {
			return errInvalidExpression(strings.Join(base, "."))
		}
	}
	return nil
}

func (p *expParser) shift() lexer.ExpToken {
	if p.pos >= len(p.tokens) {
		return lexer.ExpToken{Kind: lexer.ExpEOF}
	}

	tok := p.tokens[p.pos]
	p.pos++

	return tok
}

func (p *expParser) backup() {
	p.pos--
}
