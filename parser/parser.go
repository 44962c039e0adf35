package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/grumblehq/grumble/ast"
	"github.com/grumblehq/grumble/lexer"
)

// Template assembler: consumes outer lexer tokens, parses each expression,
// manages the block/else stack and applies the standalone-line whitespace
// rules. The trimming happens here, at assembly time, so evaluation never
// sees source-whitespace bookkeeping.

type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrInvalidExpression
	ErrUnmatchedBlock
	ErrUnexpectedBlockClose
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidExpression:
		return "invalid expression"
	case ErrUnmatchedBlock:
		return "unmatched block"
	case ErrUnexpectedBlockClose:
		return "unexpected block close"
	}
	return "unknown parse error"
}

// Parse error, with the kind and the offending source fragment.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func errInvalidExpression(detail string) *Error {
	return &Error{Kind: ErrInvalidExpression, Detail: detail}
}

var (
	// End-of-input fixups: trailing blanks after a final block, comment,
	// end or partial tag are trimmed before lexing. For partials the blank
	// prefix survives, it carries the indentation.
	rEndTrim        = regexp.MustCompile(`(\r?\n)[ \t]*(\{\{~?[#!/^](?:\}?[^}])*\}\})[ \t]*(?:\r?\n)?$`)
	rPartialEndTrim = regexp.MustCompile(`(\r?\n[ \t]*)(\{\{~?>(?:\}?[^}])*\}\})[ \t]*(?:\r?\n)?$`)

	// standalone-line rules: a lead that ends in newline+blanks, a trail
	// that starts with blanks+newline
	rTrimLead  = regexp.MustCompile(`^((?:[ \t]|\r?\n)*)(\r?\n)[ \t]*$`)
	rTrimTrail = regexp.MustCompile(`(?s)^([ \t]*\r?\n)(.*)`)
)

// parse stack frame: the entries collected so far, and whether this frame
// collects an else branch
type frame struct {
	entries []ast.Entry
	isElse  bool
}

type parser struct {
	lex   *lexer.Lexer
	stack []frame

	// surviving trailing whitespace of the previous expression token
	prevTrail  string
	prevUsable bool
	hasPrev    bool

	// first token is treated as if preceded by a virtual newline
	first bool
}

// Parses a template source into its entry tree.
func Parse(input string) (*ast.Template, error) {
	trimmed := rEndTrim.ReplaceAllString(input, "$1$2")
	trimmed = rPartialEndTrim.ReplaceAllString(trimmed, "$1$2")

	p := &parser{
		lex:   lexer.Scan(trimmed),
		stack: []frame{{}},
		first: true,
	}

	return p.run()
}

func (p *parser) run() (*ast.Template, error) {
	for {
		tok := p.lex.NextToken()

		switch tok.Kind {
		case lexer.TokenEOF:
			return p.finish()

		case lexer.TokenError:
			return nil, &Error{Kind: ErrInvalidExpression, Detail: tok.Val}

		case lexer.TokenRaw:
			p.appendRawToken(tok.Val)

		case lexer.TokenSimple, lexer.TokenUnescaped:
			parsed, err := parseExpression(tok.Val)
			if err != nil {
				return nil, err
			}
			if len(parsed.expr.Base) == 0 {
				return nil, errInvalidExpression(tok.Val)
			}
			parsed.expr.Escape = tok.Kind == lexer.TokenSimple
			p.appendExpr(parsed, ast.Eval(parsed.expr))

		case lexer.TokenComment:
			parsed, err := parseExpression(tok.Val)
			if err != nil {
				return nil, err
			}
			p.trimOnly(parsed)

		case lexer.TokenPartial:
			parsed, err := parseExpression(tok.Val)
			if err != nil {
				return nil, err
			}
			if len(parsed.expr.Base) == 0 {
				return nil, errInvalidExpression(tok.Val)
			}
			p.appendAutoTrim(parsed, ast.Partial(parsed.expr))

		case lexer.TokenBlockOpen, lexer.TokenBlockInverse:
			parsed, err := parseExpression(tok.Val)
			if err != nil {
				return nil, err
			}
			if len(parsed.expr.Base) == 0 {
				return nil, errInvalidExpression(tok.Val)
			}
			parsed.expr.Inverse = tok.Kind == lexer.TokenBlockInverse
			p.shift(parsed, ast.Eval(parsed.expr), false)

		case lexer.TokenBlockElse:
			parsed, err := parseExpression(tok.Val)
			if err != nil {
				return nil, err
			}
			p.shift(parsed, ast.Eval(parsed.expr), true)

		case lexer.TokenBlockEnd:
			parsed, err := parseExpression(tok.Val)
			if err != nil {
				return nil, err
			}
			if err := p.reduce(parsed); err != nil {
				return nil, err
			}
		}

		p.first = false
	}
}

func (p *parser) finish() (*ast.Template, error) {
	if p.hasPrev && p.prevUsable {
		p.appendEntry(ast.Raw(p.prevTrail))
	}

	if len(p.stack) > 1 {
		// unclosed blocks: report the innermost open expression
		if open := p.openExpression(); open != nil {
			return nil, &Error{Kind: ErrUnmatchedBlock, Detail: fmt.Sprintf("'%s' is never closed", open.Path())}
		}
		return nil, &Error{Kind: ErrUnmatchedBlock}
	}

	return &ast.Template{Entries: p.stack[0].entries}, nil
}

// returns the expression that opened the innermost unclosed block
func (p *parser) openExpression() *ast.Expression {
	for i := len(p.stack) - 2; i >= 0; i-- {
		entries := p.stack[i].entries
		if len(entries) > 0 && entries[len(entries)-1].Kind == ast.EntryEval {
			return entries[len(entries)-1].Expr
		}
	}
	return nil
}

// appends an entry to the current frame, merging adjacent raw entries
func (p *parser) appendEntry(e ast.Entry) {
	top := &p.stack[len(p.stack)-1]

	if e.Kind == ast.EntryRaw && len(top.entries) > 0 {
		last := &top.entries[len(top.entries)-1]
		if last.Kind == ast.EntryRaw {
			last.Raw += e.Raw
			return
		}
	}

	top.entries = append(top.entries, e)
}

// raw content: flush surviving trailing whitespace first
func (p *parser) appendRawToken(val string) {
	if p.hasPrev && p.prevUsable {
		p.appendEntry(ast.Raw(p.prevTrail))
	}
	p.clearPrev()

	p.appendEntry(ast.Raw(val))
}

func (p *parser) clearPrev() {
	p.prevTrail, p.prevUsable, p.hasPrev = "", false, false
}

func (p *parser) setPrev(ws string, usable bool) {
	if ws == "" {
		p.clearPrev()
		return
	}
	p.prevTrail, p.prevUsable, p.hasPrev = ws, usable, true
}

// simple and unescaped expressions: only explicit sigils trim, both sides
// of whitespace are otherwise emitted verbatim
func (p *parser) appendExpr(parsed *parsedExpression, entry ast.Entry) {
	expr := parsed.expr

	// the previous trailing whitespace is our leading whitespace
	if p.hasPrev && p.prevUsable && !expr.TrimLeft {
		p.appendEntry(ast.Raw(p.prevTrail))
	}
	p.setPrev(parsed.trailWS, !expr.TrimRight)

	if parsed.leadWS != "" && !expr.TrimLeft {
		p.appendEntry(ast.Raw(parsed.leadWS))
	}

	p.appendEntry(entry)
}

// shared standalone handling for blocks, else branches, ends, partials and
// comments; returns true when the expression sat alone on its line
func (p *parser) autoTrim(parsed *parsedExpression) bool {
	expr := parsed.expr

	// the lead candidate: own leading whitespace, or the surviving trail of
	// the previous expression
	leadSpace, owned, haveLead := parsed.leadWS, true, parsed.leadWS != ""
	if !haveLead && p.hasPrev {
		leadSpace, owned, haveLead = p.prevTrail, p.prevUsable, true
	}
	if !haveLead {
		leadSpace, owned = "", false
	}

	trimmed := false
	trailMatch := ""
	trailKeep := parsed.trailWS

	if parsed.trailWS != "" {
		var leadKeep, leadNL string
		leadOk := false

		if p.first {
			// start of input counts as a line start
			leadOk = true
		} else if m := rTrimLead.FindStringSubmatch(leadSpace); m != nil {
			leadKeep, leadNL = m[1], m[2]
			leadOk = true
		}

		if m := rTrimTrail.FindStringSubmatch(parsed.trailWS); leadOk && m != nil {
			toInsert := ""
			if owned {
				toInsert = leadKeep + leadNL
			}
			if toInsert != "" && !expr.TrimLeft {
				p.appendEntry(ast.Raw(toInsert))
			}

			trimmed = true
			trailMatch = m[1]
			trailKeep = m[2]
		}
	}

	if !trimmed && !expr.TrimLeft {
		// no standalone trim: emit the leading whitespace verbatim
		space := parsed.leadWS
		if space == "" && p.hasPrev && p.prevUsable {
			space = p.prevTrail
		}
		if space != "" {
			p.appendEntry(ast.Raw(space))
		}
	}

	// keep eligible trailing whitespace for the next expression
	if trailKeep != "" {
		p.setPrev(trailKeep, !expr.TrimRight)
	} else if trailMatch != "" {
		p.setPrev(trailMatch, false)
	} else {
		p.clearPrev()
	}

	return trimmed
}

// comments participate in whitespace decisions but are discarded
func (p *parser) trimOnly(parsed *parsedExpression) {
	p.autoTrim(parsed)
}

// partials: standalone partials re-emit their captured indentation
func (p *parser) appendAutoTrim(parsed *parsedExpression, entry ast.Entry) {
	// the captured blank run is only an indent when it starts its line; a
	// partial sharing a line with other content must not indent its output
	if !p.first && !strings.Contains(parsed.leadWS, "\n") {
		parsed.expr.Indent = ""
	}

	trimmed := p.autoTrim(parsed)

	if trimmed && entry.Kind == ast.EntryPartial && parsed.expr.Indent != "" {
		p.appendEntry(ast.Raw(parsed.expr.Indent))
	}

	p.appendEntry(entry)
}

// block open or else: push a new collecting frame
func (p *parser) shift(parsed *parsedExpression, entry ast.Entry, isElse bool) {
	p.autoTrim(parsed)

	if !isElse {
		p.appendEntry(entry)
	}

	p.stack = append(p.stack, frame{isElse: isElse})
}

// block end: pop the collected frame(s) and attach them to the opening
// expression, which must close over the same base path
func (p *parser) reduce(parsed *parsedExpression) error {
	p.autoTrim(parsed)

	if len(p.stack) < 2 {
		return &Error{Kind: ErrUnexpectedBlockClose, Detail: fmt.Sprintf("'%s' does not close any block", parsed.expr.Path())}
	}

	var elseFrame *frame
	body := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]

	if body.isElse {
		if len(p.stack) < 2 {
			return &Error{Kind: ErrUnexpectedBlockClose, Detail: fmt.Sprintf("'%s' does not close any block", parsed.expr.Path())}
		}
		elseBody := body
		elseFrame = &elseBody
		body = p.stack[len(p.stack)-1]
		p.stack = p.stack[:len(p.stack)-1]
	}

	top := &p.stack[len(p.stack)-1]
	if len(top.entries) == 0 {
		return &Error{Kind: ErrUnexpectedBlockClose, Detail: fmt.Sprintf("'%s' does not close any block", parsed.expr.Path())}
	}

	last := &top.entries[len(top.entries)-1]
	if last.Kind != ast.EntryEval {
		return &Error{Kind: ErrUnexpectedBlockClose, Detail: fmt.Sprintf("'%s' does not close any block", parsed.expr.Path())}
	}

	if !last.Expr.SameBase(parsed.expr) {
		return &Error{Kind: ErrUnmatchedBlock, Detail: fmt.Sprintf("'%s' does not match '%s'", parsed.expr.Path(), last.Expr.Path())}
	}

	last.Expr.Block = &ast.Template{Entries: body.entries}
	if elseFrame != nil {
		last.Expr.Else = &ast.Template{Entries: elseFrame.entries}
	}

	return nil
}
