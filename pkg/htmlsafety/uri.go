package htmlsafety

import "strings"

type uriClass int

const (
	uriOther uriClass = iota
	uriExternal
	uriInternal
)

// normalizeURI lowercases v and drops whitespace and control characters,
// which browsers ignore inside a scheme.
func normalizeURI(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r <= ' ' || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func scriptScheme(u string) bool {
	for _, scheme := range []string{"javascript:", "vbscript:", "livescript:"} {
		if strings.HasPrefix(u, scheme) {
			return true
		}
	}
	return false
}

// classifyURI expects a normalized URI. Relative references are internal;
// http(s), ftp and protocol-relative references are external.
func classifyURI(u string) uriClass {
	if strings.HasPrefix(u, "//") {
		return uriExternal
	}
	scheme, ok := uriScheme(u)
	if !ok {
		if strings.HasPrefix(u, "#") {
			return uriOther
		}
		return uriInternal
	}
	switch scheme {
	case "http", "https", "ftp":
		return uriExternal
	}
	return uriOther
}

func uriScheme(u string) (string, bool) {
	for i, r := range u {
		switch {
		case r == ':':
			return u[:i], i > 0
		case 'a' <= r && r <= 'z':
		case i > 0 && ('0' <= r && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return "", false
		}
	}
	return "", false
}
