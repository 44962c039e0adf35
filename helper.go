package grumble

import (
	"strings"

	"github.com/grumblehq/grumble/ast"
)

// Helper function: receives its resolved operands and options, and renders
// either by returning a value (interpolated like any data value, SafeString
// skips escaping) or by writing its block bodies through the options.
type Helper func(options *HelperOptions) (Value, error)

// builtin helpers
var builtins map[string]Helper

func init() {
	builtins = map[string]Helper{
		"if":     ifHelper,
		"unless": unlessHelper,
		"with":   withHelper,
		"each":   eachHelper,
		"lookup": lookupHelper,
	}
}

// Arguments provided to helpers.
type HelperOptions struct {
	eval *evaluator
	expr *ast.Expression
	name string

	params []Value
	hash   map[string]Value
}

// Returns the name the helper was invoked under.
func (o *HelperOptions) Name() string {
	return o.name
}

// Returns all positional parameters.
func (o *HelperOptions) Params() []Value {
	return o.params
}

// Returns the parameter at the given position, nil when absent or
// unresolved.
func (o *HelperOptions) Param(pos int) Value {
	if pos < len(o.params) {
		return o.params[pos]
	}
	return nil
}

// Returns the named option.
func (o *HelperOptions) Option(name string) (Value, bool) {
	v, ok := o.hash[name]
	return v, ok
}

// Returns all named options.
func (o *HelperOptions) Hash() map[string]Value {
	return o.hash
}

// Returns the frame variable with the given name.
func (o *HelperOptions) Data(name string) (Value, bool) {
	return o.eval.current().vars.Get(name)
}

// Returns true if the parameter at the given position is truthy.
func (o *HelperOptions) TruthyParam(pos int) bool {
	v := o.Param(pos)
	return v != nil && v.Truthy()
}

// Returns true if the 'includeZero' option is set and the first parameter
// is the number zero.
func (o *HelperOptions) IsIncludableZero() bool {
	opt, ok := o.Option("includeZero")
	if !ok || opt == nil || !opt.Truthy() {
		return false
	}

	v := o.Param(0)
	return v != nil && v.Kind() == KindNumber && !v.Truthy()
}

// Renders the block body with the current context.
func (o *HelperOptions) EvalBlock() error {
	return o.eval.evalOptional(o.expr.Block)
}

// Renders the block body with the given value as context.
func (o *HelperOptions) EvalBlockWith(v Value) error {
	o.eval.push(v, o.eval.current().vars.Copy())
	defer o.eval.pop()

	return o.eval.evalOptional(o.expr.Block)
}

// Renders the inverse branch with the current context.
func (o *HelperOptions) EvalElse() error {
	return o.eval.evalOptional(o.expr.Else)
}

//
// Builtin helpers
//

func ifHelper(o *HelperOptions) (Value, error) {
	if o.IsIncludableZero() || o.TruthyParam(0) {
		return nil, o.EvalBlock()
	}
	return nil, o.EvalElse()
}

func unlessHelper(o *HelperOptions) (Value, error) {
	if o.IsIncludableZero() || o.TruthyParam(0) {
		return nil, o.EvalElse()
	}
	return nil, o.EvalBlock()
}

func withHelper(o *HelperOptions) (Value, error) {
	if o.TruthyParam(0) {
		return nil, o.EvalBlockWith(o.Param(0))
	}
	return nil, o.EvalElse()
}

func eachHelper(o *HelperOptions) (Value, error) {
	coll := o.Param(0)
	if coll == nil || !coll.Truthy() {
		return nil, o.EvalElse()
	}

	return nil, o.eval.evalIteration(coll, o.expr.Block)
}

// lookup resolves a computed path: with a single parameter the parameter's
// string form is resolved as a path from the current frame, with two the
// second names a member of the first.
func lookupHelper(o *HelperOptions) (Value, error) {
	switch {
	case len(o.params) == 1:
		key := o.Param(0)
		if key == nil {
			return nil, nil
		}
		v, _ := o.eval.resolve(splitPathString(key.String()))
		return v, nil

	case len(o.params) >= 2:
		obj, key := o.Param(0), o.Param(1)
		if obj == nil || key == nil {
			return nil, nil
		}

		v := obj
		for _, seg := range splitPathString(key.String()) {
			if seg == ".." {
				continue
			}
			var ok bool
			v, ok = v.Get(seg)
			if !ok {
				return nil, nil
			}
		}
		return v, nil
	}

	return nil, nil
}

// splits a textual path on '.' and '/', keeping ".." markers intact
func splitPathString(s string) []string {
	var parts []string

	for len(s) > 0 {
		if strings.HasPrefix(s, "..") {
			parts = append(parts, "..")
			s = s[2:]
		} else {
			idx := strings.IndexAny(s, "./")
			if idx < 0 {
				parts = append(parts, s)
				break
			}
			if idx == 0 {
				s = s[1:]
				continue
			}
			parts = append(parts, s[:idx])
			s = s[idx:]
		}

		if len(s) > 0 && (s[0] == '.' || s[0] == '/') {
			s = s[1:]
		}
	}

	return parts
}
