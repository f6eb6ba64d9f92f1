package render

import (
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
)

const (
	DefaultItemSeparator = ", "
	Ellipsis             = "..."
)

// JoinTruncate joins items with sep under a character budget shared by all
// items: each item may use what the previous ones left. Items cut to nothing
// are dropped and a single ellipsis marks any cut. maxChars <= 0 disables
// truncation.
func JoinTruncate(items []string, maxChars int, sep string) (string, bool) {
	if maxChars <= 0 {
		return strings.Join(items, sep), false
	}
	remaining := maxChars
	truncated := false
	kept := make([]string, 0, len(items))
	for _, item := range items {
		r := []rune(item)
		if len(r) > remaining {
			r = r[:remaining]
			truncated = true
		}
		remaining -= len(r)
		if len(r) == 0 && truncated {
			break
		}
		kept = append(kept, string(r))
	}
	out := strings.Join(kept, sep)
	if truncated {
		out += Ellipsis
	}
	return out, truncated
}

// EscapeHTML escapes s for HTML output and keeps line breaks visible.
func EscapeHTML(s string) string {
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br/>")
}

// FormName is the form parameter of a field's edit or search input.
func FormName(cfg types.Config) string {
	return cfg.FieldName()
}

// ItemID identifies the index-th input of a multi-value field.
func ItemID(cfg types.Config, index int) string {
	return cfg.FieldName() + "_" + strconv.Itoa(index)
}

// FormValues reads the submitted entries of a field. When templateRow is set
// the last entry of a multi-value field is the UI template row and is not
// part of the data. Multiple selects submit no template row.
func FormValues(form url.Values, cfg types.Config, multiValue, templateRow bool) ([]string, bool) {
	values, ok := form[cfg.FieldName()]
	if !ok {
		return nil, false
	}
	if !multiValue {
		if len(values) == 0 {
			return []string{""}, true
		}
		return values[:1], true
	}
	if len(values) == 0 {
		return []string{}, true
	}
	if !templateRow {
		return append([]string(nil), values...), true
	}
	return append([]string(nil), values[:len(values)-1]...), true
}
