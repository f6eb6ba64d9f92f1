package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jacksonlee411/dynfield/pkg/htmlsafety"
)

type HTMLSafetyController struct {
	// Default applies when a request names no policy.
	Default htmlsafety.Policy
}

type htmlSafetyAPIRequest struct {
	HTML string `json:"html"`
	// Preset is "default" or "strict"; Policy wins when both are set.
	Preset string             `json:"preset"`
	Policy *htmlsafety.Policy `json:"policy"`
}

func (c HTMLSafetyController) HandleHTMLSafetyAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "bad json")
		return
	}
	var req htmlSafetyAPIRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "bad json")
		return
	}

	policy := c.Default
	switch strings.ToLower(strings.TrimSpace(req.Preset)) {
	case "":
	case "default":
		policy = htmlsafety.DefaultPolicy()
	case "strict":
		policy = htmlsafety.StrictPolicy()
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_request", "preset must be default or strict")
		return
	}
	if req.Policy != nil {
		policy = *req.Policy
	}

	out, replaced := htmlsafety.Safety(req.HTML, policy)
	writeJSON(w, http.StatusOK, map[string]any{
		"html":     out,
		"replaced": replaced,
	})
}
