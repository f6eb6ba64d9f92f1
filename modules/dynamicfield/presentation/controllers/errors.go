package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/valuecodec"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/services"
	"github.com/jacksonlee411/dynfield/pkg/httperr"
)

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    errorEnvelopeMeta `json:"meta"`
}

type errorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestError lifts engine errors into the request error kinds of httperr.
func requestError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrValueJSON):
		return httperr.NewBadRequest(err.Error())
	case errors.Is(err, services.ErrInvalidValue), errors.Is(err, valuecodec.ErrValueShape), errors.Is(err, valuecodec.ErrItemInvalid):
		return httperr.NewValidation(err.Error(), nil)
	default:
		return err
	}
}

// writeEngineError maps err to a status and a stable code.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string) {
	rerr := requestError(err)
	status := httperr.Status(rerr)
	switch {
	case httperr.IsBadRequest(rerr):
		writeError(w, r, status, "invalid_request", rerr.Error())
	case httperr.IsValidation(rerr):
		writeError(w, r, status, "dynamic_field_value_invalid", rerr.Error())
	case errors.Is(err, services.ErrDriverNotRegistered):
		writeError(w, r, status, "dynamic_field_driver_not_registered", err.Error())
	case errors.Is(err, services.ErrSearchNotSupported):
		writeError(w, r, http.StatusNotImplemented, "dynamic_field_search_not_supported", "dynamic_field_search_not_supported")
	default:
		writeError(w, r, status, "dynamic_field_storage_failed", fallbackMessage)
	}
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
