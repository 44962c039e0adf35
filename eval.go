package grumble

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/grumblehq/grumble/ast"
)

// Evaluator: walks a compiled template against a context stack and streams
// the output to a sink. The stack holds one frame per nesting level, each a
// (value, frame-variables) pair; ".." reaches the caller's frame, "@root"
// restarts from the bottom one.

type evalFrame struct {
	val  Value
	vars *DataFrame
}

type evaluator struct {
	ctx    *EvalContext
	out    io.Writer
	frames []evalFrame
}

func eval(tpl *Template, data Value, out io.Writer, ctx *EvalContext) error {
	if ctx == nil {
		ctx = &EvalContext{}
	}

	e := &evaluator{
		ctx:    ctx,
		out:    out,
		frames: []evalFrame{{val: data, vars: NewDataFrame()}},
	}

	return e.evalTemplate(tpl.prog)
}

func (e *evaluator) current() evalFrame {
	return e.frames[len(e.frames)-1]
}

func (e *evaluator) push(v Value, vars *DataFrame) {
	e.frames = append(e.frames, evalFrame{val: v, vars: vars})
}

func (e *evaluator) pop() {
	e.frames = e.frames[:len(e.frames)-1]
}

func (e *evaluator) write(s string) error {
	_, err := io.WriteString(e.out, s)
	return err
}

func (e *evaluator) evalTemplate(tpl *ast.Template) error {
	for i := range tpl.Entries {
		entry := &tpl.Entries[i]

		var err error
		switch entry.Kind {
		case ast.EntryRaw:
			err = e.write(entry.Raw)
		case ast.EntryEval:
			err = e.evalExpression(entry.Expr)
		case ast.EntryPartial:
			err = e.evalPartial(entry.Expr)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (e *evaluator) evalOptional(tpl *ast.Template) error {
	if tpl == nil {
		return nil
	}
	return e.evalTemplate(tpl)
}

func (e *evaluator) evalExpression(expr *ast.Expression) error {
	// helper dispatch comes first
	if len(expr.Base) == 1 {
		if helper := e.ctx.helper(expr.Base[0]); helper != nil {
			return e.invokeHelper(expr.Base[0], helper, expr)
		}
	}

	if expr.Block != nil || expr.Else != nil {
		return e.evalSection(expr)
	}

	return e.evalInterpolation(expr)
}

// plain value interpolation; missing paths emit nothing
func (e *evaluator) evalInterpolation(expr *ast.Expression) error {
	v, ok := e.resolve(expr.Base)
	if !ok {
		return nil
	}

	return e.renderValue(v, expr.Escape)
}

func (e *evaluator) renderValue(v Value, escape bool) error {
	if v == nil {
		return nil
	}

	if safe, ok := v.(SafeString); ok {
		return e.write(string(safe))
	}

	s := v.String()
	if escape {
		s = Escape(s)
	}

	return e.write(s)
}

// a block expression without a matching helper behaves as a section:
// arrays iterate, truthy values become the new context, falsy values fall
// through to the inverse branch
func (e *evaluator) evalSection(expr *ast.Expression) error {
	v, found := e.resolve(expr.Base)
	truthy := found && v != nil && v.Truthy()

	if expr.Inverse {
		if truthy {
			return e.evalOptional(expr.Else)
		}
		return e.evalOptional(expr.Block)
	}

	if !truthy {
		return e.evalOptional(expr.Else)
	}

	if v.Kind() == KindArray {
		return e.evalIteration(v, expr.Block)
	}

	e.push(v, e.current().vars.Copy())
	defer e.pop()

	return e.evalOptional(expr.Block)
}

// iterates a collection, pushing one frame per element with the @index,
// @key, @first and @last variables set
func (e *evaluator) evalIteration(coll Value, body *ast.Template) error {
	if body == nil {
		return nil
	}

	length := coll.Len()
	vars := e.current().vars
	i := 0

	return coll.Each(func(key string, item Value) error {
		e.push(item, vars.newIterFrame(length, i, key))
		defer e.pop()
		i++

		return e.evalTemplate(body)
	})
}

// expands a registered partial in place, with the current frame as its
// root and the captured indentation applied to every line but the first
func (e *evaluator) evalPartial(expr *ast.Expression) error {
	tpl := e.ctx.partial(strings.Join(expr.Base, "."))
	if tpl == nil {
		// unknown partials expand to nothing
		return nil
	}

	ctxVal := e.current().val
	if len(expr.Params) > 0 {
		if v, ok := e.resolveOperand(expr.Params[0]); ok {
			ctxVal = v
		}
	}

	vars := NewDataFrame()
	for _, opt := range expr.Options {
		if v, ok := e.resolveOperand(opt.Val); ok {
			vars.Set(opt.Name, v)
		}
	}

	var buf bytes.Buffer
	buf.Grow(e.ctx.bufferSize())

	sub := &evaluator{
		ctx:    e.ctx,
		out:    &buf,
		frames: []evalFrame{{val: ctxVal, vars: vars}},
	}

	if err := sub.evalTemplate(tpl.prog); err != nil {
		return err
	}

	return e.writeIndented(buf.String(), expr.Indent)
}

func (e *evaluator) writeIndented(s string, indent string) error {
	if indent == "" {
		return e.write(s)
	}

	for len(s) > 0 {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			return e.write(s)
		}

		if err := e.write(s[:idx+1]); err != nil {
			return err
		}

		s = s[idx+1:]
		if s == "" {
			return nil
		}

		if err := e.write(indent); err != nil {
			return err
		}
	}

	return nil
}

func (e *evaluator) invokeHelper(name string, helper Helper, expr *ast.Expression) error {
	options := &HelperOptions{
		eval: e,
		expr: expr,
		name: name,
	}

	for _, p := range expr.Params {
		v, _ := e.resolveOperand(p)
		options.params = append(options.params, v)
	}

	if len(expr.Options) > 0 {
		options.hash = make(map[string]Value, len(expr.Options))
		for _, opt := range expr.Options {
			v, _ := e.resolveOperand(opt.Val)
			options.hash[opt.Name] = v
		}
	}

	result, err := helper(options)
	if err != nil {
		return fmt.Errorf("helper %q: %w", name, err)
	}

	return e.renderValue(result, expr.Escape)
}

func (e *evaluator) resolveOperand(op ast.Operand) (Value, bool) {
	switch op.Kind {
	case ast.OperandString:
		return JSON(op.Str), true
	case ast.OperandLiteral:
		return literalValue{Value: JSON(op.Literal), text: op.Text}, true
	default:
		return e.resolve(op.Path)
	}
}

// Path resolution against the context stack. Missing members and type
// mismatches yield absent, never an error.
func (e *evaluator) resolve(base []string) (Value, bool) {
	if len(base) == 0 {
		return nil, false
	}

	idx := len(e.frames) - 1
	segs := base

	// @root restarts from the bottom frame
	if segs[0] == "@root" {
		return walk(e.frames[0].val, segs[1:])
	}

	// other @-variables resolve against the active frame-variable map
	if strings.HasPrefix(segs[0], "@") {
		return e.frames[idx].vars.Find(segs)
	}

	explicit := false

	// self marker
	if segs[0] == "." {
		segs = segs[1:]
		explicit = true
	}

	// parent markers walk up the stack
	for len(segs) > 0 && segs[0] == ".." {
		idx--
		if idx < 0 {
			return nil, false
		}
		segs = segs[1:]
		explicit = true
	}

	if len(segs) == 0 {
		return e.frames[idx].val, true
	}

	start := e.frames[idx].val

	// Mustache compatibility: a name missing from the current context is
	// looked up in the enclosing ones
	if e.ctx.Compat && !explicit {
		for j := idx; j >= 0; j-- {
			if e.frames[j].val == nil {
				continue
			}
			if _, ok := e.frames[j].val.Get(segs[0]); ok {
				start = e.frames[j].val
				break
			}
		}
	}

	return walk(start, segs)
}

func walk(v Value, segs []string) (Value, bool) {
	if v == nil {
		return nil, false
	}

	for _, seg := range segs {
		var ok bool
		v, ok = v.Get(seg)
		if !ok {
			return nil, false
		}
	}

	return v, true
}
