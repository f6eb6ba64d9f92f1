package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/render"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/services"
	"github.com/jacksonlee411/dynfield/pkg/httperr"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
)

// FieldLookup resolves field definitions by name.
type FieldLookup interface {
	Field(name string) (types.Config, error)
	Fields(objectType string) []types.Config
}

// SubjectGetter returns the ACL subject of the request, "" when anonymous.
type SubjectGetter func(r *http.Request) string

type FieldsController struct {
	Fields  FieldLookup
	Backend *services.Backend
	Subject SubjectGetter
}

type fieldAPIItem struct {
	types.Config
	ValueKey  string          `json:"value_key"`
	Column    string          `json:"column"`
	CSSClass  string          `json:"css_class"`
	Behaviors types.Behaviors `json:"behaviors"`
}

type valueAPIRequest struct {
	Value           types.Value `json:"value"`
	UserID          int64       `json:"user_id"`
	Mandatory       bool        `json:"mandatory"`
	NoValidateRegex bool        `json:"no_validate_regex"`
}

func (c FieldsController) subject(r *http.Request) string {
	if c.Subject == nil {
		return ""
	}
	return c.Subject(r)
}

func (c FieldsController) field(w http.ResponseWriter, r *http.Request) (types.Config, bool) {
	name := strings.TrimSpace(r.PathValue("name"))
	cfg, err := c.Fields.Field(name)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "dynamic_field_not_found", "dynamic_field_not_found")
		return types.Config{}, false
	}
	return cfg, true
}

func objectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("object_id")), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "object_id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return b
}

func decodeValueRequest(w http.ResponseWriter, r *http.Request) (valueAPIRequest, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "bad json")
		return valueAPIRequest{}, false
	}
	var req valueAPIRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "bad json")
		return valueAPIRequest{}, false
	}
	return req, true
}

// HandleFieldsAPI lists the configured fields with their driver capabilities.
func (c FieldsController) HandleFieldsAPI(w http.ResponseWriter, r *http.Request) {
	objectType := strings.TrimSpace(r.URL.Query().Get("object_type"))
	fields := c.Fields.Fields(objectType)
	out := make([]fieldAPIItem, 0, len(fields))
	for _, cfg := range fields {
		d, err := c.Backend.Driver(cfg)
		if err != nil {
			writeEngineError(w, r, err, "field list failed")
			return
		}
		desc := d.Descriptor()
		out = append(out, fieldAPIItem{
			Config:    cfg,
			ValueKey:  desc.ValueKey,
			Column:    string(desc.TableAttribute),
			CSSClass:  desc.FieldCSSClass,
			Behaviors: desc.Behaviors(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"object_type": objectType,
		"fields":      out,
	})
}

func (c FieldsController) HandleValuesAPI(w http.ResponseWriter, r *http.Request) {
	cfg, ok := c.field(w, r)
	if !ok {
		return
	}
	id, ok := objectID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		v, err := c.Backend.ValueGet(r.Context(), cfg, id)
		if err != nil {
			writeEngineError(w, r, err, "value get failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"field":     cfg.Name,
			"object_id": id,
			"value":     v,
		})

	case http.MethodPut:
		req, ok := decodeValueRequest(w, r)
		if !ok {
			return
		}
		if err := c.Backend.ValueValidate(cfg, req.Value, req.NoValidateRegex); err != nil {
			writeEngineError(w, r, err, "value validate failed")
			return
		}
		changed, err := c.Backend.ValueSet(r.Context(), cfg, id, req.Value, req.UserID)
		if err != nil {
			writeEngineError(w, r, err, "value set failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"field":     cfg.Name,
			"object_id": id,
			"changed":   changed,
		})

	case http.MethodDelete:
		if err := c.Backend.ValueDelete(r.Context(), cfg, id); err != nil {
			writeEngineError(w, r, err, "value delete failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"field":     cfg.Name,
			"object_id": id,
			"deleted":   true,
		})

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// HandleValidateAPI validates a submitted value. Form posts are read the way
// an edit form submits them; JSON bodies carry the value directly. Invalid
// values are reported in the body with status 200.
func (c FieldsController) HandleValidateAPI(w http.ResponseWriter, r *http.Request) {
	cfg, ok := c.field(w, r)
	if !ok {
		return
	}

	var (
		value           types.Value
		mandatory       bool
		noValidateRegex bool
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "bad form")
			return
		}
		v, _, err := c.Backend.EditFieldValueGet(cfg, r.PostForm)
		if err != nil {
			writeEngineError(w, r, err, "value read failed")
			return
		}
		value = v
		mandatory = queryBool(r, "mandatory")
		noValidateRegex = queryBool(r, "no_validate_regex")
	} else {
		req, ok := decodeValueRequest(w, r)
		if !ok {
			return
		}
		value, mandatory, noValidateRegex = req.Value, req.Mandatory, req.NoValidateRegex
	}

	validation, err := c.Backend.EditFieldValueValidate(cfg, value, mandatory)
	if err != nil {
		writeEngineError(w, r, err, "value validate failed")
		return
	}
	resp := map[string]any{
		"field":      cfg.Name,
		"value":      value,
		"valid":      !validation.HasError(),
		"validation": validation,
	}
	if msg, failed := validation.FirstError(); failed {
		resp["error"] = msg
	} else if err := c.Backend.ValueValidate(cfg, value, noValidateRegex); err != nil {
		if httperr.IsValidation(requestError(err)) {
			resp["valid"] = false
			resp["error"] = err.Error()
		} else {
			writeEngineError(w, r, err, "value validate failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDisplayAPI renders the stored value. With html=true the value is
// rendered as markup and passed through the HTML safety filter.
func (c FieldsController) HandleDisplayAPI(w http.ResponseWriter, r *http.Request) {
	cfg, ok := c.field(w, r)
	if !ok {
		return
	}
	id, ok := objectID(w, r)
	if !ok {
		return
	}
	valueMax, ok1 := queryInt(r, "value_max_chars")
	titleMax, ok2 := queryInt(r, "title_max_chars")
	if !ok1 || !ok2 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "max chars must be a non-negative integer")
		return
	}

	v, err := c.Backend.ValueGet(r.Context(), cfg, id)
	if err != nil {
		writeEngineError(w, r, err, "value get failed")
		return
	}
	opts := services.DisplayOptions{ValueMaxChars: valueMax, TitleMaxChars: titleMax}
	var (
		dv       render.DisplayValue
		replaced bool
	)
	if queryBool(r, "html") {
		dv, replaced, err = c.Backend.SafeDisplayValue(cfg, v, opts)
	} else {
		dv, err = c.Backend.DisplayValueRender(cfg, v, opts)
	}
	if err != nil {
		writeEngineError(w, r, err, "display failed")
		return
	}
	rv, err := c.Backend.ReadableValueRender(cfg, v, services.ReadableOptions{ValueMaxChars: valueMax})
	if err != nil {
		writeEngineError(w, r, err, "display failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"field":     cfg.Name,
		"object_id": id,
		"display":   dv,
		"readable":  rv,
		"sanitized": replaced,
	})
}

func (c FieldsController) HandleEditAPI(w http.ResponseWriter, r *http.Request) {
	cfg, ok := c.field(w, r)
	if !ok {
		return
	}
	id, ok := objectID(w, r)
	if !ok {
		return
	}
	v, err := c.Backend.ValueGet(r.Context(), cfg, id)
	if err != nil {
		writeEngineError(w, r, err, "value get failed")
		return
	}
	ef, err := c.Backend.EditFieldRender(cfg, services.EditRequest{
		Value:      v,
		UseDefault: queryBool(r, "use_default"),
		Mandatory:  queryBool(r, "mandatory"),
		ReadOnly:   queryBool(r, "read_only"),
	}, c.subject(r))
	if err != nil {
		writeEngineError(w, r, err, "edit render failed")
		return
	}
	writeJSON(w, http.StatusOK, ef)
}

func (c FieldsController) HandlePossibleValuesAPI(w http.ResponseWriter, r *http.Request) {
	cfg, ok := c.field(w, r)
	if !ok {
		return
	}
	pvs, err := c.Backend.PossibleValuesGet(cfg, c.subject(r))
	if err != nil {
		writeEngineError(w, r, err, "possible values failed")
		return
	}
	if pvs == nil {
		pvs = make([]types.PossibleValue, 0)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"field":           cfg.Name,
		"possible_values": pvs,
	})
}

// HandleSearchAPI finds objects by value. Each query key naming an operator
// contributes a condition; repeated keys match any of their terms.
func (c FieldsController) HandleSearchAPI(w http.ResponseWriter, r *http.Request) {
	cfg, ok := c.field(w, r)
	if !ok {
		return
	}
	params := make(map[sqlpredicate.Operator]any)
	q := r.URL.Query()
	for _, op := range sqlpredicate.Operators() {
		terms, ok := q[string(op)]
		if !ok || len(terms) == 0 {
			continue
		}
		if len(terms) == 1 {
			params[op] = terms[0]
			continue
		}
		params[op] = terms
	}
	if len(params) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "at least one operator parameter is required")
		return
	}

	ids, err := c.Backend.ObjectSearch(r.Context(), cfg, params)
	if err != nil {
		writeEngineError(w, r, err, "search failed")
		return
	}
	if ids == nil {
		ids = make([]int64, 0)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	writeJSON(w, http.StatusOK, map[string]any{
		"field":      cfg.Name,
		"object_ids": ids,
	})
}
