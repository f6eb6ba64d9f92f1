package types

import "strings"

type FieldType string

const (
	FieldTypeText        FieldType = "Text"
	FieldTypeTextArea    FieldType = "TextArea"
	FieldTypeCheckbox    FieldType = "Checkbox"
	FieldTypeDate        FieldType = "Date"
	FieldTypeDateTime    FieldType = "DateTime"
	FieldTypeDropdown    FieldType = "Dropdown"
	FieldTypeMultiselect FieldType = "Multiselect"
)

// FieldNamePrefix is prepended to the field name in form parameters and
// object attribute maps.
const FieldNamePrefix = "DynamicField_"

const (
	DateRestrictionNone        = ""
	DateRestrictionFutureDates = "DisableFutureDates"
	DateRestrictionPastDates   = "DisablePastDates"
)

type RegEx struct {
	Value        string `json:"value" yaml:"value"`
	ErrorMessage string `json:"error_message" yaml:"error_message"`
}

type PossibleValue struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// FieldSettings is the driver specific part of a field definition.
type FieldSettings struct {
	MultiValue bool `json:"multi_value" yaml:"multi_value"`
	// Set marks the field as a member of a repeatable group. It is only
	// honored by drivers with the IsSetCapable behavior.
	Set bool `json:"set" yaml:"set"`

	RegExList        []RegEx `json:"regex_list,omitempty" yaml:"regex_list,omitempty"`
	DefaultValue     string  `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	DefaultValueExpr string  `json:"default_value_expr,omitempty" yaml:"default_value_expr,omitempty"`
	Link             string  `json:"link,omitempty" yaml:"link,omitempty"`
	LinkPreview      string  `json:"link_preview,omitempty" yaml:"link_preview,omitempty"`

	PossibleValues     []PossibleValue `json:"possible_values,omitempty" yaml:"possible_values,omitempty"`
	PossibleNone       bool            `json:"possible_none,omitempty" yaml:"possible_none,omitempty"`
	TranslatableValues bool            `json:"translatable_values,omitempty" yaml:"translatable_values,omitempty"`

	Rows      int `json:"rows,omitempty" yaml:"rows,omitempty"`
	Cols      int `json:"cols,omitempty" yaml:"cols,omitempty"`
	MaxLength int `json:"max_length,omitempty" yaml:"max_length,omitempty"`

	YearsPeriod     bool   `json:"years_period,omitempty" yaml:"years_period,omitempty"`
	YearsInPast     int    `json:"years_in_past,omitempty" yaml:"years_in_past,omitempty"`
	YearsInFuture   int    `json:"years_in_future,omitempty" yaml:"years_in_future,omitempty"`
	DateRestriction string `json:"date_restriction,omitempty" yaml:"date_restriction,omitempty"`
}

// Config describes one dynamic field. It is read-only for the engine; use
// Clone before handing it to code that may mutate it.
type Config struct {
	ID         int64         `json:"id" yaml:"id"`
	Name       string        `json:"name" yaml:"name"`
	Label      string        `json:"label" yaml:"label"`
	FieldType  FieldType     `json:"field_type" yaml:"field_type"`
	ObjectType string        `json:"object_type" yaml:"object_type"`
	FieldOrder int           `json:"field_order,omitempty" yaml:"field_order,omitempty"`
	Config     FieldSettings `json:"config" yaml:"config"`
}

func (c Config) FieldName() string {
	return FieldNamePrefix + c.Name
}

func (c Config) Clone() Config {
	if len(c.Config.RegExList) > 0 {
		c.Config.RegExList = append([]RegEx(nil), c.Config.RegExList...)
	}
	if len(c.Config.PossibleValues) > 0 {
		c.Config.PossibleValues = append([]PossibleValue(nil), c.Config.PossibleValues...)
	}
	return c
}

// PossibleValueLabel returns the configured label for key.
func (c Config) PossibleValueLabel(key string) (string, bool) {
	for _, pv := range c.Config.PossibleValues {
		if pv.Key == key {
			return pv.Value, true
		}
	}
	return "", false
}

func NormalizeFieldName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), FieldNamePrefix)
}
