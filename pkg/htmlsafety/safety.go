// Package htmlsafety filters externally sourced HTML fragments before they
// are rendered. The filter walks the fragment with the x/net/html tokenizer
// and copies every token it does not need to touch byte for byte, so benign
// markup survives unchanged.
package htmlsafety

import (
	"strings"

	"golang.org/x/net/html"
)

// Policy selects which constructs Safety removes.
type Policy struct {
	NoApplet     bool `json:"no_applet" yaml:"no_applet"`
	NoObject     bool `json:"no_object" yaml:"no_object"`
	NoEmbed      bool `json:"no_embed" yaml:"no_embed"`
	NoSVG        bool `json:"no_svg" yaml:"no_svg"`
	NoIntSrcLoad bool `json:"no_int_src_load" yaml:"no_int_src_load"`
	NoExtSrcLoad bool `json:"no_ext_src_load" yaml:"no_ext_src_load"`
	NoJavaScript bool `json:"no_javascript" yaml:"no_javascript"`
	// ReplacementStr is written in place of every removed element.
	ReplacementStr string `json:"replacement_str" yaml:"replacement_str"`
}

func DefaultPolicy() Policy {
	return Policy{
		NoApplet:     true,
		NoObject:     true,
		NoEmbed:      true,
		NoSVG:        true,
		NoJavaScript: true,
	}
}

// StrictPolicy is DefaultPolicy that also blocks loading external sources.
func StrictPolicy() Policy {
	p := DefaultPolicy()
	p.NoExtSrcLoad = true
	return p
}

// Safety returns input with the constructs p forbids removed. replaced
// reports whether the output differs from the input. Safety is idempotent:
// filtering its output again with the same policy changes nothing.
func Safety(input string, p Policy) (output string, replaced bool) {
	s := &sanitizer{policy: p, z: html.NewTokenizer(strings.NewReader(input))}
	s.out.Grow(len(input))
	s.run()
	output = s.out.String()
	return output, output != input
}

// uriAttributes carry a URI that is followed or loaded.
var uriAttributes = map[string]bool{
	"href":        true,
	"src":         true,
	"background":  true,
	"poster":      true,
	"action":      true,
	"formaction":  true,
	"lowsrc":      true,
	"dynsrc":      true,
	"xlink:href":  true,
	"srcset":      true,
	"imagesrcset": true,
}

// loadAttributes make the browser fetch the URI while rendering.
var loadAttributes = map[string]bool{
	"src":         true,
	"background":  true,
	"poster":      true,
	"lowsrc":      true,
	"dynsrc":      true,
	"srcset":      true,
	"imagesrcset": true,
}

type sanitizer struct {
	policy Policy
	z      *html.Tokenizer
	out    strings.Builder

	skipTag   string
	skipDepth int
}

func (s *sanitizer) run() {
	for {
		tt := s.z.Next()
		if tt == html.ErrorToken {
			return
		}
		if s.skipTag != "" {
			s.skip(tt)
			continue
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			s.startTag(tt)
		default:
			s.out.Write(s.z.Raw())
		}
	}
}

// skip consumes the content of a removed element, tracking nested elements
// of the same name.
func (s *sanitizer) skip(tt html.TokenType) {
	if tt != html.StartTagToken && tt != html.EndTagToken {
		return
	}
	name, _ := s.z.TagName()
	if string(name) != s.skipTag {
		return
	}
	if tt == html.StartTagToken {
		s.skipDepth++
		return
	}
	s.skipDepth--
	if s.skipDepth == 0 {
		s.skipTag = ""
	}
}

func (s *sanitizer) removesElement(name string) bool {
	switch name {
	case "script":
		return s.policy.NoJavaScript
	case "applet":
		return s.policy.NoApplet
	case "object":
		return s.policy.NoObject
	case "svg":
		return s.policy.NoSVG
	case "embed":
		return s.policy.NoEmbed
	}
	return false
}

func (s *sanitizer) startTag(tt html.TokenType) {
	// Token lowercases the buffer in place, so Raw has to be copied first.
	raw := string(s.z.Raw())
	tok := s.z.Token()
	name := tok.Data
	selfClosing := tt == html.SelfClosingTagToken

	if s.removesElement(name) {
		s.out.WriteString(s.policy.ReplacementStr)
		// embed is a void element; script content is raw text even after "/>".
		if name != "embed" && (!selfClosing || name == "script") {
			s.skipTag, s.skipDepth = name, 1
		}
		return
	}
	switch name {
	case "meta":
		if isRefresh(tok.Attr) {
			return
		}
	case "style":
		s.styleBlock(raw, tok, selfClosing)
		return
	}

	attrs, changed := s.attributes(name, tok.Attr)
	if !changed {
		s.out.WriteString(raw)
		return
	}
	s.writeTag(name, attrs, selfClosing)
}

// styleBlock handles a <style> element. Its content is raw text up to the
// closing tag.
func (s *sanitizer) styleBlock(startRaw string, tok html.Token, selfClosing bool) {
	var css strings.Builder
	endRaw := ""
	for {
		tt := s.z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.EndTagToken {
			endRaw = string(s.z.Raw())
			break
		}
		css.Write(s.z.Raw())
	}
	content := css.String()
	if s.policy.NoJavaScript && hasScriptVector(content) {
		s.out.WriteString(s.policy.ReplacementStr)
		return
	}

	if attrs, changed := s.attributes(tok.Data, tok.Attr); changed {
		s.writeTag(tok.Data, attrs, selfClosing)
	} else {
		s.out.WriteString(startRaw)
	}
	filtered, _ := s.filterCSS(content)
	s.out.WriteString(filtered)
	s.out.WriteString(endRaw)
}

func isRefresh(attrs []html.Attribute) bool {
	for _, a := range attrs {
		if a.Key == "http-equiv" && strings.EqualFold(strings.TrimSpace(a.Val), "refresh") {
			return true
		}
	}
	return false
}

// attributes drops event handlers, neutralizes forbidden URIs and filters
// inline styles of the element tag. Values arrive entity-decoded from the
// tokenizer.
func (s *sanitizer) attributes(tag string, attrs []html.Attribute) ([]html.Attribute, bool) {
	out := make([]html.Attribute, 0, len(attrs))
	changed := false
	for _, a := range attrs {
		if s.policy.NoJavaScript && strings.HasPrefix(a.Key, "on") {
			changed = true
			continue
		}
		// <link href> pulls in style sheets, icons and preloads.
		loads := loadAttributes[a.Key] || (tag == "link" && a.Key == "href")
		if uriAttributes[a.Key] && s.unsafeURIList(a.Key, a.Val, loads) {
			a.Val = ""
			changed = true
		}
		if a.Key == "style" {
			if v, ok := s.filterCSS(a.Val); ok {
				a.Val = v
				changed = true
			}
			if s.policy.NoJavaScript && hasScriptVector(a.Val) {
				a.Val = ""
				changed = true
			}
		}
		out = append(out, a)
	}
	return out, changed
}

func (s *sanitizer) writeTag(name string, attrs []html.Attribute, selfClosing bool) {
	s.out.WriteByte('<')
	s.out.WriteString(name)
	for _, a := range attrs {
		s.out.WriteByte(' ')
		s.out.WriteString(a.Key)
		s.out.WriteString(`="`)
		s.out.WriteString(html.EscapeString(a.Val))
		s.out.WriteByte('"')
	}
	if selfClosing {
		s.out.WriteString("/>")
		return
	}
	s.out.WriteByte('>')
}

// unsafeURIList checks every candidate URL of a srcset list, and v as a
// whole for other attributes.
func (s *sanitizer) unsafeURIList(key, v string, loads bool) bool {
	if key != "srcset" && key != "imagesrcset" {
		return s.unsafeURI(v, loads)
	}
	for _, candidate := range strings.Split(v, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 && s.unsafeURI(fields[0], loads) {
			return true
		}
	}
	return false
}

// unsafeURI reports whether v must be neutralized. loads marks attributes
// the browser fetches while rendering.
func (s *sanitizer) unsafeURI(v string, loads bool) bool {
	u := normalizeURI(v)
	if u == "" {
		return false
	}
	if s.policy.NoJavaScript && scriptScheme(u) {
		return true
	}
	if !loads {
		return false
	}
	switch classifyURI(u) {
	case uriExternal:
		return s.policy.NoExtSrcLoad
	case uriInternal:
		return s.policy.NoIntSrcLoad
	}
	return false
}
