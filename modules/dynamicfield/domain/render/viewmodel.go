// Package render holds the view-models dynamic field drivers produce for the
// templating layer, plus the pure helpers they share.
package render

import "github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"

// EditItem is one input of an edit form. Multi-value fields render one item
// per stored value plus a Template item the UI clones to add entries.
type EditItem struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	ID           string `json:"id"`
	Value        string `json:"value"`
	Template     bool   `json:"template,omitempty"`
	ServerError  bool   `json:"server_error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type EditField struct {
	Name           string                `json:"name"`
	Label          string                `json:"label"`
	FieldType      types.FieldType       `json:"field_type"`
	Class          string                `json:"class"`
	Mandatory      bool                  `json:"mandatory"`
	ReadOnly       bool                  `json:"read_only,omitempty"`
	MultiValue     bool                  `json:"multi_value"`
	Items          []EditItem            `json:"items"`
	Template       *EditItem             `json:"template,omitempty"`
	PossibleValues []types.PossibleValue `json:"possible_values,omitempty"`
	Rows           int                   `json:"rows,omitempty"`
	Cols           int                   `json:"cols,omitempty"`
	MaxLength      int                   `json:"max_length,omitempty"`
}

// ItemValidation is the outcome for a single submitted item.
type ItemValidation struct {
	ServerError  bool   `json:"server_error"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Validation aggregates per-item results of an edit form submission.
type Validation struct {
	Items []ItemValidation `json:"items"`
}

func (v Validation) HasError() bool {
	for _, it := range v.Items {
		if it.ServerError {
			return true
		}
	}
	return false
}

// FirstError returns the first item error message, if any.
func (v Validation) FirstError() (string, bool) {
	for _, it := range v.Items {
		if it.ServerError {
			return it.ErrorMessage, true
		}
	}
	return "", false
}

type DisplayValue struct {
	Value       string `json:"value"`
	Title       string `json:"title"`
	Link        string `json:"link,omitempty"`
	LinkPreview string `json:"link_preview,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
}

type ReadableValue struct {
	Value     string `json:"value"`
	Truncated bool   `json:"truncated,omitempty"`
}

type SearchField struct {
	Name           string                `json:"name"`
	Label          string                `json:"label"`
	Values         []string              `json:"values"`
	Multiple       bool                  `json:"multiple,omitempty"`
	PossibleValues []types.PossibleValue `json:"possible_values,omitempty"`
}

// SearchParameter is a search value in both engine and human readable form.
type SearchParameter struct {
	Parameter map[string]any `json:"parameter"`
	Display   string         `json:"display"`
}

type StatsField struct {
	Name               string            `json:"name"`
	Element            string            `json:"element"`
	Block              string            `json:"block"`
	Values             map[string]string `json:"values,omitempty"`
	TranslatableValues bool              `json:"translatable_values,omitempty"`
	Operators          []string          `json:"operators,omitempty"`
}

const (
	StatsBlockInput       = "InputField"
	StatsBlockMultiSelect = "MultiSelectField"
	StatsBlockTime        = "Time"
)
