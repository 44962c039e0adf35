package grumble

import (
	"bytes"
	"fmt"
	"io"

	"github.com/grumblehq/grumble/ast"
	"github.com/grumblehq/grumble/parser"
)

// defaults for rendering buffers
const defaultBufferSize = 4096

// Template holds a compiled template, immutable after parsing.
type Template struct {
	source string
	prog   *ast.Template
}

// Parse compiles a template source.
func Parse(source string) (*Template, error) {
	prog, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}

	return &Template{source: source, prog: prog}, nil
}

// MustParse compiles a template source. Panics on error.
func MustParse(source string) *Template {
	result, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return result
}

// Render parses a template and renders it against data in one go.
func Render(source string, data interface{}) (string, error) {
	tpl, err := Parse(source)
	if err != nil {
		return "", err
	}

	return tpl.EvalString(data)
}

// Source returns the template source.
func (t *Template) Source() string {
	return t.source
}

// Eval renders the template against data, writing to out. A nil context
// uses the defaults: builtin helpers, no partials, compat off.
func (t *Template) Eval(data interface{}, out io.Writer, ctx *EvalContext) error {
	return eval(t, JSON(data), out, ctx)
}

// EvalValue is Eval for hosts that bring their own Value implementation.
func (t *Template) EvalValue(data Value, out io.Writer, ctx *EvalContext) error {
	return eval(t, data, out, ctx)
}

// EvalString renders the template against data with a default context.
func (t *Template) EvalString(data interface{}) (string, error) {
	return t.EvalStringWith(data, nil)
}

// EvalStringWith renders the template against data with the given context.
func (t *Template) EvalStringWith(data interface{}, ctx *EvalContext) (string, error) {
	var buf bytes.Buffer
	if ctx != nil {
		buf.Grow(ctx.bufferSize())
	} else {
		buf.Grow(defaultBufferSize)
	}

	if err := t.Eval(data, &buf, ctx); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// EvalContext is the user-configurable evaluation state: the partial and
// helper registries, the Mustache compatibility flag and the default
// buffer size.
type EvalContext struct {
	partials map[string]*Template
	helpers  map[string]Helper

	// Compat resolves names missing from the current context in the
	// enclosing ones, the way Mustache sections do.
	Compat bool

	// BufferSize is the initial size of rendering buffers.
	BufferSize int
}

// NewEvalContext instanciates an empty evaluation context.
func NewEvalContext() *EvalContext {
	return &EvalContext{
		partials: make(map[string]*Template),
		helpers:  make(map[string]Helper),
	}
}

// RegisterPartial registers a compiled partial under the given name.
// Registering a name twice is an error.
func (c *EvalContext) RegisterPartial(name string, tpl *Template) error {
	if c.partials == nil {
		c.partials = make(map[string]*Template)
	}
	if c.partials[name] != nil {
		return fmt.Errorf("partial %q already registered", name)
	}

	c.partials[name] = tpl
	return nil
}

// RegisterPartialString parses a partial source and registers it.
func (c *EvalContext) RegisterPartialString(name string, source string) error {
	tpl, err := Parse(source)
	if err != nil {
		return err
	}

	return c.RegisterPartial(name, tpl)
}

// RegisterHelper registers a helper. User helpers shadow the builtins;
// registering a name twice is an error.
func (c *EvalContext) RegisterHelper(name string, helper Helper) error {
	if c.helpers == nil {
		c.helpers = make(map[string]Helper)
	}
	if c.helpers[name] != nil {
		return fmt.Errorf("helper %q already registered", name)
	}

	c.helpers[name] = helper
	return nil
}

// RegisterHelpers registers several helpers.
func (c *EvalContext) RegisterHelpers(helpers map[string]Helper) error {
	for name, helper := range helpers {
		if err := c.RegisterHelper(name, helper); err != nil {
			return err
		}
	}
	return nil
}

func (c *EvalContext) helper(name string) Helper {
	if c != nil {
		if h := c.helpers[name]; h != nil {
			return h
		}
	}
	return builtins[name]
}

func (c *EvalContext) partial(name string) *Template {
	if c == nil {
		return nil
	}
	return c.partials[name]
}

func (c *EvalContext) bufferSize() int {
	if c == nil || c.BufferSize <= 0 {
		return defaultBufferSize
	}
	return c.BufferSize
}
