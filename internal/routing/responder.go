package routing

import (
	"encoding/json"
	"html"
	"net/http"
	"strings"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	message = normalizeErrorMessage(code, message)
	if isJSONOnly(rc) || wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ErrorEnvelope{
			Code:    code,
			Message: message,
			TraceID: traceIDFromRequest(r),
			Meta: ErrorEnvelopeMeta{
				Path:   r.URL.Path,
				Method: r.Method,
			},
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte("<!doctype html><html><body>"))
	_, _ = w.Write([]byte(html.EscapeString(message)))
	_, _ = w.Write([]byte("</body></html>"))
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json" || r.Header.Get("Accept") == "application/json; charset=utf-8"
}

func isJSONOnly(rc RouteClass) bool {
	return rc == RouteClassInternalAPI || rc == RouteClassPublicAPI
}

// normalizeErrorMessage replaces generic messages with a catalog text for
// code, or a humanized form of code.
func normalizeErrorMessage(code string, message string) string {
	if !isGenericErrorMessage(code, message) {
		return message
	}
	if known := knownErrorMessage(code); known != "" {
		return known
	}
	return humanizeErrorCode(code)
}

func isGenericErrorMessage(code string, message string) bool {
	m := strings.TrimSpace(message)
	if m == "" {
		return true
	}
	if strings.EqualFold(m, strings.TrimSpace(code)) {
		return true
	}
	lower := strings.ToLower(m)
	if lower == "internal_error" || lower == "operation failed" {
		return true
	}
	if !strings.Contains(lower, " ") && (strings.HasSuffix(lower, "_failed") || strings.HasSuffix(lower, "_error")) {
		return true
	}
	words := strings.Fields(lower)
	return len(words) <= 2 && words[len(words)-1] == "failed"
}

func knownErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "The request is invalid. Check the parameters and retry."
	case "forbidden":
		return "You are not allowed to perform this operation."
	case "not_found":
		return "The requested resource was not found."
	case "dynamic_field_not_found":
		return "No dynamic field with that name is configured."
	case "dynamic_field_driver_not_registered":
		return "The field type of this dynamic field has no registered driver."
	case "dynamic_field_value_invalid":
		return "The submitted value is not valid for this field."
	case "dynamic_field_value_json_invalid":
		return "The value must be null, a string, a list of strings or a list of such lists."
	case "dynamic_field_search_not_supported":
		return "The configured store cannot search values."
	case "dynamic_field_storage_failed":
		return "Storing the field value failed. Retry later."
	default:
		return ""
	}
}

func humanizeErrorCode(code string) string {
	words := strings.FieldsFunc(strings.ToLower(code), func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	if len(words) == 0 {
		return "Request failed."
	}
	if len(words) == 1 && (words[0] == "failed" || words[0] == "error") {
		return "Request " + words[0] + "."
	}
	return titleCaseWords(words) + "."
}

var acronyms = map[string]string{
	"api":  "API",
	"acl":  "ACL",
	"db":   "DB",
	"html": "HTML",
	"id":   "ID",
	"sql":  "SQL",
	"uuid": "UUID",
}

func titleCaseWords(words []string) string {
	out := make([]string, 0, len(words))
	for i, w := range words {
		if a, ok := acronyms[w]; ok {
			out = append(out, a)
			continue
		}
		if i == 0 {
			out = append(out, capitalizeWord(w))
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func capitalizeWord(w string) string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
