package htmlsafety

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/css/scanner"
)

// filterCSS removes expression() constructs and forbidden url() references
// from a style sheet or an inline style. The input is returned untouched
// when nothing was removed.
func (s *sanitizer) filterCSS(css string) (string, bool) {
	if strings.TrimSpace(css) == "" {
		return css, false
	}
	sc := scanner.New(css)
	var b strings.Builder
	changed := false
	depth := 0
	for {
		tok := sc.Next()
		if tok.Type == scanner.TokenEOF {
			break
		}
		if tok.Type == scanner.TokenError {
			changed = true
			break
		}
		if depth > 0 {
			switch {
			case tok.Type == scanner.TokenFunction:
				depth++
			case tok.Type == scanner.TokenChar && tok.Value == "(":
				depth++
			case tok.Type == scanner.TokenChar && tok.Value == ")":
				depth--
			}
			continue
		}
		switch tok.Type {
		case scanner.TokenFunction:
			if s.policy.NoJavaScript && cssName(tok.Value) == "expression(" {
				depth = 1
				changed = true
				continue
			}
		case scanner.TokenURI:
			if s.unsafeURI(cssURL(tok.Value), true) {
				changed = true
				continue
			}
		}
		b.WriteString(tok.Value)
	}
	if !changed {
		return css, false
	}
	return b.String(), true
}

// cssName folds case and CSS escapes out of an identifier.
func cssName(v string) string {
	return strings.ToLower(decodeCSSEscapes(v))
}

// decodeCSSEscapes resolves backslash escapes: up to six hex digits with one
// optional trailing whitespace, an escaped newline, or an escaped character.
func decodeCSSEscapes(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(v) && j-i <= 6 && isHex(v[j]) {
			j++
		}
		if j == i+1 {
			if j < len(v) && v[j] != '\n' {
				b.WriteByte(v[j])
			}
			i = j
			continue
		}
		n, _ := strconv.ParseUint(v[i+1:j], 16, 32)
		r := rune(n)
		if r == 0 || !utf8.ValidRune(r) {
			r = utf8.RuneError
		}
		b.WriteRune(r)
		switch {
		case j+1 < len(v) && v[j] == '\r' && v[j+1] == '\n':
			i = j + 1
		case j < len(v) && isCSSSpace(v[j]):
			i = j
		default:
			i = j - 1
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func isCSSSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// cssURL extracts the reference of a url(...) token.
func cssURL(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 4 && strings.EqualFold(v[:4], "url(") {
		v = v[4:]
	}
	v = strings.TrimSuffix(v, ")")
	return strings.Trim(strings.TrimSpace(v), `"'`)
}

// hasScriptVector reports whether a style sheet can run script. Comments,
// escapes and whitespace are ignored.
func hasScriptVector(css string) bool {
	n := strings.ToLower(decodeCSSEscapes(stripCSSComments(css)))
	n = strings.Join(strings.Fields(n), "")
	for _, vector := range []string{"expression(", "javascript:", "vbscript:", "behavior:"} {
		if strings.Contains(n, vector) {
			return true
		}
	}
	return false
}

func stripCSSComments(css string) string {
	var b strings.Builder
	for {
		start := strings.Index(css, "/*")
		if start < 0 {
			b.WriteString(css)
			return b.String()
		}
		b.WriteString(css[:start])
		end := strings.Index(css[start+2:], "*/")
		if end < 0 {
			return b.String()
		}
		css = css[start+2+end+2:]
	}
}
