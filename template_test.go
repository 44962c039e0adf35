package grumble

import (
	"bytes"
	"errors"
	"testing"

	"github.com/grumblehq/grumble/parser"
)

func TestParseErrorKinds(t *testing.T) {
	tests := []struct {
		input string
		kind  parser.ErrorKind
	}{
		{"{{#a}}x{{/b}}", parser.ErrUnmatchedBlock},
		{"{{/a}}", parser.ErrUnexpectedBlockClose},
		{"{{a", parser.ErrInvalidExpression},
	}

	for _, test := range tests {
		_, err := Parse(test.input)
		if err == nil {
			t.Fatalf("Parse(%q) should fail", test.input)
		}

		var parseErr *parser.Error
		if !errors.As(err, &parseErr) {
			t.Fatalf("Parse(%q) returned %T, expected *parser.Error", test.input, err)
		}
		if parseErr.Kind != test.kind {
			t.Errorf("Parse(%q) kind = %v, expected %v", test.input, parseErr.Kind, test.kind)
		}
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse should panic on invalid input")
		}
	}()

	MustParse("{{#a}}never closed")
}

func TestEvalToWriter(t *testing.T) {
	tpl := MustParse("Hello, {{name}}!")

	var buf bytes.Buffer
	if err := tpl.Eval(map[string]string{"name": "writer"}, &buf, nil); err != nil {
		t.Fatal(err)
	}

	if buf.String() != "Hello, writer!" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestRegisterPartialTwice(t *testing.T) {
	ctx := NewEvalContext()
	if err := ctx.RegisterPartial("p", MustParse("x")); err != nil {
		t.Fatal(err)
	}

	if err := ctx.RegisterPartial("p", MustParse("y")); err == nil {
		t.Error("registering a partial twice should fail")
	}
}

func TestRegisterHelperTwice(t *testing.T) {
	helper := func(o *HelperOptions) (Value, error) { return nil, nil }

	ctx := NewEvalContext()
	if err := ctx.RegisterHelper("h", helper); err != nil {
		t.Fatal(err)
	}

	if err := ctx.RegisterHelper("h", helper); err == nil {
		t.Error("registering a helper twice should fail")
	}
}

func TestHelperShadowsBuiltin(t *testing.T) {
	ctx := NewEvalContext()
	err := ctx.RegisterHelper("if", func(o *HelperOptions) (Value, error) {
		return JSON("shadowed"), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	output, err := MustParse("{{if x}}").EvalStringWith(nil, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if output != "shadowed" {
		t.Errorf("unexpected output: %q", output)
	}
}

// whitespace idempotence: with every path resolving to the empty string, a
// template of raw text and simple expressions renders as its raw text
func TestWhitespaceIdempotence(t *testing.T) {
	data := map[string]string{"x": "", "y": ""}

	input := "a {{x}} b\n {{y}}\tc"
	expected := "a  b\n \tc"

	output, err := Render(input, data)
	if err != nil {
		t.Fatal(err)
	}
	if output != expected {
		t.Errorf("got %q, expected %q", output, expected)
	}
}

func TestPartialParametersAndOptions(t *testing.T) {
	launchTests(t, []grumbleTest{
		{
			name:     "partial with context parameter",
			input:    "{{> p person}}",
			data:     map[string]interface{}{"person": map[string]interface{}{"name": "Joe"}},
			partials: map[string]string{"p": "{{name}}"},
			output:   "Joe",
		},
		{
			name:     "partial hash options become frame variables",
			input:    "{{> p label=title}}",
			data:     map[string]interface{}{"title": "Hi"},
			partials: map[string]string{"p": "{{@label}}"},
			output:   "Hi",
		},
		{
			name:     "partial root is the calling frame",
			input:    "{{#with inner}}{{> p}}{{/with}}",
			data:     map[string]interface{}{"inner": map[string]interface{}{"v": "V"}},
			partials: map[string]string{"p": "{{@root.v}}"},
			output:   "V",
		},
	})
}
