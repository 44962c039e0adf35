package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(input string) []Token {
	lex := Scan(input)

	var result []Token
	for {
		tok := lex.NextToken()
		result = append(result, tok)

		if tok.Kind == TokenEOF || tok.Kind == TokenError {
			return result
		}
	}
}

func tokenStrings(tokens []Token) []string {
	result := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		result = append(result, tok.String())
	}
	return result
}

func TestScan(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		tokens []string
	}{
		{
			"raw only",
			"this is content",
			[]string{`Raw{"this is content"}`, `EOF{""}`},
		},
		{
			"simple expression",
			"foo {{bar}} baz",
			[]string{`Raw{"foo"}`, `Simple{" {{bar}} "}`, `Raw{"baz"}`, `EOF{""}`},
		},
		{
			"expression owns surrounding whitespace",
			"a\n  {{b}}\t\nc",
			[]string{`Raw{"a"}`, `Simple{"\n  {{b}}\t\n"}`, `Raw{"c"}`, `EOF{""}`},
		},
		{
			"triple mustache",
			"{{{a}}}",
			[]string{`Unescaped{"{{{a}}}"}`, `EOF{""}`},
		},
		{
			"triple mustache with strip",
			" {{~{a}~}} ",
			[]string{`Unescaped{" {{~{a}~}} "}`, `EOF{""}`},
		},
		{
			"ampersand",
			"{{& a }}",
			[]string{`Unescaped{"{{& a }}"}`, `EOF{""}`},
		},
		{
			"block",
			"{{#if x}}y{{/if}}",
			[]string{`BlockOpen{"{{#if x}}"}`, `Raw{"y"}`, `BlockEnd{"{{/if}}"}`, `EOF{""}`},
		},
		{
			"inverse block and bare else",
			"{{^x}}{{^}}{{/x}}",
			[]string{`BlockInverse{"{{^x}}"}`, `BlockElse{"{{^}}"}`, `BlockEnd{"{{/x}}"}`, `EOF{""}`},
		},
		{
			"else keyword",
			"a{{else}}b",
			[]string{`Raw{"a"}`, `BlockElse{"{{else}}"}`, `Raw{"b"}`, `EOF{""}`},
		},
		{
			"else is not a prefix of identifiers",
			"{{elsewhere}}",
			[]string{`Simple{"{{elsewhere}}"}`, `EOF{""}`},
		},
		{
			"comment",
			"{{! note }}",
			[]string{`Comment{"{{! note }}"}`, `EOF{""}`},
		},
		{
			"partial",
			"{{> part}}",
			[]string{`Partial{"{{> part}}"}`, `EOF{""}`},
		},
		{
			"escaped open brace",
			`\{{a}}`,
			[]string{`Raw{"{"}`, `Raw{"{a}}"}`, `EOF{""}`},
		},
		{
			"escaped backslash before mustache",
			`\\{{a}}`,
			[]string{`Raw{"\\"}`, `Simple{"{{a}}"}`, `EOF{""}`},
		},
		{
			"lone backslash passes through",
			`a\b`,
			[]string{`Raw{"a\\b"}`, `EOF{""}`},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.tokens, tokenStrings(collect(test.input)))
		})
	}
}

func TestScanUnclosed(t *testing.T) {
	tokens := collect("x{{a")

	last := tokens[len(tokens)-1]
	assert.Equal(t, TokenError, last.Kind)
}
