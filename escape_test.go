package grumble

import "testing"

func TestEscape(t *testing.T) {
	tests := []struct {
		input  string
		output string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"<x>", "&lt;x&gt;"},
		{`& " ' = ` + "`", "&amp; &quot; &#x27; &#x3D; &#x60;"},
		{"a&b<c>d", "a&amp;b&lt;c&gt;d"},
	}

	for _, test := range tests {
		if res := Escape(test.input); res != test.output {
			t.Errorf("Escape(%q) = %q, expected %q", test.input, res, test.output)
		}
	}
}

// the escape law: {{x}} escapes, {{{x}}} does not
func TestEscapeLaw(t *testing.T) {
	samples := []string{"", "plain", `<a href="x">&amp;</a>`, "a=`b`"}

	for _, s := range samples {
		data := map[string]string{"x": s}

		escaped, err := Render("{{x}}", data)
		if err != nil {
			t.Fatal(err)
		}
		if escaped != Escape(s) {
			t.Errorf("render({{x}}, %q) = %q, expected %q", s, escaped, Escape(s))
		}

		raw, err := Render("{{{x}}}", data)
		if err != nil {
			t.Fatal(err)
		}
		if raw != s {
			t.Errorf("render({{{x}}}, %q) = %q", s, raw)
		}
	}
}
