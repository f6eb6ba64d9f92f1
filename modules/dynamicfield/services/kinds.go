package services

import (
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/render"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/valuecodec"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
)

// fieldKind is the type specific part of a driver. The generic driver
// implements every operation in terms of these hooks.
type fieldKind interface {
	valueKey() string
	column() types.ValueColumn
	cssClass() string
	behaviors() types.Behaviors
	multiValue(cfg types.Config) bool
	// templateRow reports whether multi-value edit forms carry a trailing
	// template input.
	templateRow() bool
	// checkItem returns a message when item does not conform to the type.
	checkItem(cfg types.Config, item types.Scalar, now time.Time) string
	formItem(cfg types.Config, raw string) types.Scalar
	displayItem(cfg types.Config, item types.Scalar) string
	randomItem(cfg types.Config, rnd *rand.Rand, now time.Time) string
	possibleValues(cfg types.Config) []types.PossibleValue
	searchValues(cfg types.Config, form url.Values) ([]string, bool)
	searchParameter(cfg types.Config, values []string) map[sqlpredicate.Operator]any
	statsBlock() string
}

func builtinKinds() map[types.FieldType]fieldKind {
	return map[types.FieldType]fieldKind{
		types.FieldTypeText:        textKind{},
		types.FieldTypeTextArea:    textAreaKind{},
		types.FieldTypeCheckbox:    checkboxKind{},
		types.FieldTypeDate:        dateKind{},
		types.FieldTypeDateTime:    dateKind{withTime: true},
		types.FieldTypeDropdown:    dropdownKind{},
		types.FieldTypeMultiselect: multiselectKind{},
	}
}

func searchFormName(cfg types.Config) string {
	return "Search_" + cfg.FieldName()
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type textKind struct{}

func (textKind) valueKey() string          { return "ValueText" }
func (textKind) column() types.ValueColumn { return types.ColumnText }
func (textKind) cssClass() string          { return "DynamicFieldText" }
func (textKind) statsBlock() string        { return render.StatsBlockInput }

func (textKind) behaviors() types.Behaviors {
	return types.Behaviors{
		types.BehaviorIsACLReducible:               false,
		types.BehaviorIsNotificationEventCondition: true,
		types.BehaviorIsFiltrable:                  false,
		types.BehaviorIsStatsCondition:             true,
		types.BehaviorIsCustomerInterfaceCapable:   true,
		types.BehaviorIsLikeOperatorCapable:        true,
		types.BehaviorIsSetCapable:                 true,
	}
}

func (textKind) multiValue(cfg types.Config) bool { return cfg.Config.MultiValue }
func (textKind) templateRow() bool                { return true }

func (textKind) checkItem(cfg types.Config, item types.Scalar, _ time.Time) string {
	if cfg.Config.MaxLength > 0 && utf8.RuneCountInString(item.String()) > cfg.Config.MaxLength {
		return "The value exceeds the maximum length of " + strconv.Itoa(cfg.Config.MaxLength) + " characters."
	}
	return ""
}

func (textKind) formItem(_ types.Config, raw string) types.Scalar { return types.String(raw) }

func (textKind) displayItem(_ types.Config, item types.Scalar) string { return item.String() }

func (textKind) randomItem(types.Config, *rand.Rand, time.Time) string {
	return "Random " + uuid.NewString()
}

func (textKind) possibleValues(types.Config) []types.PossibleValue { return nil }

func (textKind) searchValues(cfg types.Config, form url.Values) ([]string, bool) {
	raw, ok := form[searchFormName(cfg)]
	if !ok {
		return nil, false
	}
	return nonEmpty(raw), true
}

// searchParameter turns search terms into operator parameters. Several terms
// become one wildcard alternative list.
func (textKind) searchParameter(_ types.Config, values []string) map[sqlpredicate.Operator]any {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return map[sqlpredicate.Operator]any{sqlpredicate.DetectOperator(values[0]): values[0]}
	default:
		return map[sqlpredicate.Operator]any{sqlpredicate.OperatorLike: strings.Join(values, "||")}
	}
}

type textAreaKind struct{ textKind }

func (textAreaKind) cssClass() string { return "DynamicFieldTextArea" }

type checkboxKind struct{}

func (checkboxKind) valueKey() string          { return "ValueInt" }
func (checkboxKind) column() types.ValueColumn { return types.ColumnInt }
func (checkboxKind) cssClass() string          { return "DynamicFieldCheckbox" }
func (checkboxKind) statsBlock() string        { return render.StatsBlockMultiSelect }

func (checkboxKind) behaviors() types.Behaviors {
	return types.Behaviors{
		types.BehaviorIsACLReducible:               false,
		types.BehaviorIsNotificationEventCondition: true,
		types.BehaviorIsFiltrable:                  true,
		types.BehaviorIsStatsCondition:             true,
		types.BehaviorIsCustomerInterfaceCapable:   true,
		types.BehaviorIsLikeOperatorCapable:        false,
		types.BehaviorIsSetCapable:                 true,
	}
}

func (checkboxKind) multiValue(cfg types.Config) bool { return cfg.Config.MultiValue }
func (checkboxKind) templateRow() bool                { return true }

func (checkboxKind) checkItem(_ types.Config, item types.Scalar, _ time.Time) string {
	switch strings.TrimSpace(item.String()) {
	case "", "0", "1":
		return ""
	default:
		return "The value must be 0 or 1."
	}
}

func (checkboxKind) formItem(_ types.Config, raw string) types.Scalar {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "on", "true", "checked":
		return types.String("1")
	default:
		return types.String("0")
	}
}

func (checkboxKind) displayItem(_ types.Config, item types.Scalar) string {
	switch strings.TrimSpace(item.String()) {
	case "1":
		return "Checked"
	case "0":
		return "Unchecked"
	default:
		return ""
	}
}

func (checkboxKind) randomItem(_ types.Config, rnd *rand.Rand, _ time.Time) string {
	return strconv.Itoa(rnd.IntN(2))
}

func (checkboxKind) possibleValues(types.Config) []types.PossibleValue {
	return []types.PossibleValue{{Key: "1", Value: "Checked"}, {Key: "0", Value: "Unchecked"}}
}

func (checkboxKind) searchValues(cfg types.Config, form url.Values) ([]string, bool) {
	raw, ok := form[searchFormName(cfg)]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range nonEmpty(raw) {
		switch v {
		case "1", "0", "-1":
			out = append(out, v)
		}
	}
	return out, true
}

// -1 is the form encoding of "unchecked".
func (checkboxKind) searchParameter(_ types.Config, values []string) map[sqlpredicate.Operator]any {
	if len(values) == 0 {
		return nil
	}
	terms := make([]string, 0, len(values))
	for _, v := range values {
		if v == "-1" {
			v = "0"
		}
		terms = append(terms, v)
	}
	return map[sqlpredicate.Operator]any{sqlpredicate.OperatorEquals: terms}
}

type dateKind struct {
	withTime bool
}

var formDateLayouts = []string{
	types.DateTimeLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
}

func (dateKind) valueKey() string          { return "ValueDateTime" }
func (dateKind) column() types.ValueColumn { return types.ColumnDate }
func (dateKind) statsBlock() string        { return render.StatsBlockTime }

func (k dateKind) cssClass() string {
	if k.withTime {
		return "DynamicFieldDateTime"
	}
	return "DynamicFieldDate"
}

func (dateKind) behaviors() types.Behaviors {
	return types.Behaviors{
		types.BehaviorIsACLReducible:               false,
		types.BehaviorIsNotificationEventCondition: false,
		types.BehaviorIsFiltrable:                  false,
		types.BehaviorIsStatsCondition:             true,
		types.BehaviorIsCustomerInterfaceCapable:   true,
		types.BehaviorIsLikeOperatorCapable:        false,
		types.BehaviorIsSetCapable:                 true,
	}
}

func (dateKind) multiValue(cfg types.Config) bool { return cfg.Config.MultiValue }
func (dateKind) templateRow() bool                { return true }

func (k dateKind) checkItem(cfg types.Config, item types.Scalar, now time.Time) string {
	s := strings.TrimSpace(item.String())
	if s == "" {
		return ""
	}
	t, err := valuecodec.ParseDate(s)
	if err != nil {
		return "The value is not a valid date."
	}
	if !k.withTime && (t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0) {
		return "The value must not contain a time."
	}

	now = now.UTC()
	reference := now
	if !k.withTime {
		reference = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	switch cfg.Config.DateRestriction {
	case types.DateRestrictionFutureDates:
		if t.After(reference) {
			return "Future dates are not allowed."
		}
	case types.DateRestrictionPastDates:
		if t.Before(reference) {
			return "Past dates are not allowed."
		}
	}
	if cfg.Config.YearsPeriod {
		if t.Year() < now.Year()-cfg.Config.YearsInPast || t.Year() > now.Year()+cfg.Config.YearsInFuture {
			return "The date is outside of the allowed period."
		}
	}
	return ""
}

func (k dateKind) parseForm(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range formDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			if !k.withTime {
				t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

func (k dateKind) formItem(_ types.Config, raw string) types.Scalar {
	if strings.TrimSpace(raw) == "" {
		return types.String("")
	}
	t, ok := k.parseForm(raw)
	if !ok {
		return types.String(raw)
	}
	return types.String(t.Format(types.DateTimeLayout))
}

func (k dateKind) displayItem(_ types.Config, item types.Scalar) string {
	t, err := valuecodec.ParseDate(strings.TrimSpace(item.String()))
	if err != nil {
		return item.String()
	}
	if k.withTime {
		return t.Format("2006-01-02 15:04")
	}
	return t.Format("2006-01-02")
}

func (k dateKind) randomItem(_ types.Config, rnd *rand.Rand, now time.Time) string {
	t := now.UTC().AddDate(0, 0, rnd.IntN(731)-365)
	if k.withTime {
		t = time.Date(t.Year(), t.Month(), t.Day(), rnd.IntN(24), rnd.IntN(60), 0, 0, time.UTC)
	} else {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Format(types.DateTimeLayout)
}

func (dateKind) possibleValues(types.Config) []types.PossibleValue { return nil }

// searchValues reads a [start, stop] range; either bound may be empty.
func (k dateKind) searchValues(cfg types.Config, form url.Values) ([]string, bool) {
	start := strings.TrimSpace(form.Get(searchFormName(cfg) + "_Start"))
	stop := strings.TrimSpace(form.Get(searchFormName(cfg) + "_Stop"))
	if start == "" && stop == "" {
		return nil, false
	}
	out := []string{"", ""}
	if t, ok := k.parseForm(start); ok {
		out[0] = t.Format(types.DateTimeLayout)
	}
	if t, ok := k.parseForm(stop); ok {
		if !k.withTime {
			t = t.Add(24*time.Hour - time.Second)
		}
		out[1] = t.Format(types.DateTimeLayout)
	}
	return out, true
}

func (dateKind) searchParameter(_ types.Config, values []string) map[sqlpredicate.Operator]any {
	out := make(map[sqlpredicate.Operator]any)
	if len(values) > 0 && values[0] != "" {
		out[sqlpredicate.OperatorGreaterThanEquals] = values[0]
	}
	if len(values) > 1 && values[1] != "" {
		out[sqlpredicate.OperatorSmallerThanEquals] = values[1]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type dropdownKind struct{}

func (dropdownKind) valueKey() string          { return "ValueText" }
func (dropdownKind) column() types.ValueColumn { return types.ColumnText }
func (dropdownKind) cssClass() string          { return "DynamicFieldDropdown" }
func (dropdownKind) statsBlock() string        { return render.StatsBlockMultiSelect }

func (dropdownKind) behaviors() types.Behaviors {
	return types.Behaviors{
		types.BehaviorIsACLReducible:               true,
		types.BehaviorIsNotificationEventCondition: true,
		types.BehaviorIsFiltrable:                  true,
		types.BehaviorIsStatsCondition:             true,
		types.BehaviorIsCustomerInterfaceCapable:   true,
		types.BehaviorIsLikeOperatorCapable:        false,
		types.BehaviorIsSetCapable:                 true,
	}
}

func (dropdownKind) multiValue(cfg types.Config) bool { return cfg.Config.MultiValue }

// Dropdowns render a single select, with the multiple attribute when the
// field is multi-value.
func (dropdownKind) templateRow() bool { return false }

func (dropdownKind) checkItem(cfg types.Config, item types.Scalar, _ time.Time) string {
	if item.String() == "" {
		return ""
	}
	if _, ok := cfg.PossibleValueLabel(item.String()); !ok {
		return "The value is not one of the possible values."
	}
	return ""
}

func (dropdownKind) formItem(_ types.Config, raw string) types.Scalar { return types.String(raw) }

func (dropdownKind) displayItem(cfg types.Config, item types.Scalar) string {
	if label, ok := cfg.PossibleValueLabel(item.String()); ok {
		return label
	}
	return item.String()
}

func (dropdownKind) randomItem(cfg types.Config, rnd *rand.Rand, _ time.Time) string {
	pvs := cfg.Config.PossibleValues
	if len(pvs) == 0 {
		return ""
	}
	return pvs[rnd.IntN(len(pvs))].Key
}

func (dropdownKind) possibleValues(cfg types.Config) []types.PossibleValue {
	out := make([]types.PossibleValue, 0, len(cfg.Config.PossibleValues)+1)
	if cfg.Config.PossibleNone {
		out = append(out, types.PossibleValue{Key: "", Value: "-"})
	}
	return append(out, cfg.Config.PossibleValues...)
}

func (dropdownKind) searchValues(cfg types.Config, form url.Values) ([]string, bool) {
	raw, ok := form[searchFormName(cfg)]
	if !ok {
		return nil, false
	}
	return nonEmpty(raw), true
}

func (dropdownKind) searchParameter(_ types.Config, values []string) map[sqlpredicate.Operator]any {
	if len(values) == 0 {
		return nil
	}
	return map[sqlpredicate.Operator]any{sqlpredicate.OperatorEquals: append([]string(nil), values...)}
}

// multiselectKind is a dropdown that always stores a sequence.
type multiselectKind struct{ dropdownKind }

func (multiselectKind) cssClass() string             { return "DynamicFieldMultiselect" }
func (multiselectKind) multiValue(types.Config) bool { return true }
