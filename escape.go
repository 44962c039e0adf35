package grumble

import "strings"

// Cf. https://github.com/wycats/handlebars.js/blob/master/lib/handlebars/utils.js

// Escapes the characters Handlebars considers unsafe in HTML output.
func Escape(s string) string {
	if strings.IndexAny(s, "&<>\"'`=") < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#x27;")
		case '`':
			b.WriteString("&#x60;")
		case '=':
			b.WriteString("&#x3D;")
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
