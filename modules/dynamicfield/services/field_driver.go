package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/render"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/valuecodec"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
)

const msgRequired = "This field is required."

var regexCache sync.Map

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// randMu serializes use of the shared random source.
var randMu sync.Mutex

// fieldDriver implements Driver on top of a fieldKind.
type fieldDriver struct {
	desc    types.Descriptor
	kind    fieldKind
	deps    Deps
	builder *sqlpredicate.Builder
}

func newFieldDriver(desc types.Descriptor, kind fieldKind, deps Deps) *fieldDriver {
	return &fieldDriver{
		desc:    desc,
		kind:    kind,
		deps:    deps,
		builder: sqlpredicate.NewBuilder(deps.Dialect, deps.Logger),
	}
}

var _ Driver = (*fieldDriver)(nil)

func (d *fieldDriver) Descriptor() types.Descriptor { return d.desc }

func (d *fieldDriver) HasBehavior(name types.Behavior) bool { return d.desc.HasBehavior(name) }

func (d *fieldDriver) isMulti(cfg types.Config) bool { return d.kind.multiValue(cfg) }

func (d *fieldDriver) isSet(cfg types.Config) bool {
	return cfg.Config.Set && d.desc.HasBehavior(types.BehaviorIsSetCapable)
}

func (d *fieldDriver) ValueGet(ctx context.Context, cfg types.Config, objectID int64) (types.Value, error) {
	rows, err := d.deps.Store.ValueGet(ctx, cfg.ID, objectID)
	if err != nil {
		return types.Undefined(), fmt.Errorf("value get %s: %w", cfg.Name, err)
	}
	if len(rows) == 0 {
		return types.Undefined(), nil
	}
	return valuecodec.FromRows(rows, d.desc.TableAttribute, d.isMulti(cfg), d.isSet(cfg))
}

func (d *fieldDriver) ValueSet(ctx context.Context, cfg types.Config, objectID int64, value types.Value, userID int64) error {
	if err := d.ValueValidate(cfg, value, true); err != nil {
		return err
	}
	rows, err := valuecodec.ToRows(value, d.desc.TableAttribute, d.isMulti(cfg), d.isSet(cfg))
	if err != nil {
		return err
	}
	if err := d.deps.Store.ValueSet(ctx, cfg.ID, objectID, rows, userID); err != nil {
		return fmt.Errorf("value set %s: %w", cfg.Name, err)
	}
	return nil
}

// ValueValidate checks every item for type conformance and, unless
// noValidateRegex is set, against the configured patterns. It stops at the
// first failing item.
func (d *fieldDriver) ValueValidate(cfg types.Config, value types.Value, noValidateRegex bool) error {
	now := d.deps.Now()
	for _, item := range value.Flatten() {
		if item.IsNull() {
			continue
		}
		if msg := d.kind.checkItem(cfg, item, now); msg != "" {
			d.deps.Logger.Errorw("dynamic field value is invalid", "field_name", cfg.Name, "value", item.String(), "error", msg)
			return &ValidationError{Value: item.String(), Message: msg}
		}
		if noValidateRegex {
			continue
		}
		if verr := d.matchRegexList(cfg, item.String()); verr != nil {
			return verr
		}
	}
	return nil
}

// matchRegexList returns the first configured pattern s does not match.
// Empty strings are left to the mandatory check.
func (d *fieldDriver) matchRegexList(cfg types.Config, s string) *ValidationError {
	if s == "" {
		return nil
	}
	for _, rx := range cfg.Config.RegExList {
		re, err := compileRegex(rx.Value)
		if err != nil {
			d.deps.Logger.Errorw("invalid regular expression", "field_name", cfg.Name, "pattern", rx.Value, "error", err)
			return &ValidationError{Value: s, Pattern: rx.Value, Message: "invalid regular expression"}
		}
		if !re.MatchString(s) {
			d.deps.Logger.Errorw("dynamic field value does not match pattern",
				"field_name", cfg.Name, "value", s, "pattern", rx.Value, "message", rx.ErrorMessage)
			return &ValidationError{Value: s, Pattern: rx.Value, Message: rx.ErrorMessage}
		}
	}
	return nil
}

// ValueIsDifferent treats every empty value (undefined, empty sequence, no
// sets) as the same value.
// ValueNormalize returns value in the form ValueGet would read it back in.
// Values the codec rejects are returned unchanged.
func (d *fieldDriver) ValueNormalize(cfg types.Config, value types.Value) types.Value {
	if value.IsUndefined() {
		return value
	}
	rows, err := valuecodec.ToRows(value, d.desc.TableAttribute, d.isMulti(cfg), d.isSet(cfg))
	if err != nil {
		return value
	}
	if len(rows) == 0 {
		return types.Undefined()
	}
	out, err := valuecodec.FromRows(rows, d.desc.TableAttribute, d.isMulti(cfg), d.isSet(cfg))
	if err != nil {
		return value
	}
	return out
}

func (d *fieldDriver) ValueIsDifferent(a types.Value, b types.Value) bool {
	if a.IsEmpty() && b.IsEmpty() {
		return false
	}
	return !a.Equal(b)
}

func (d *fieldDriver) ValueLookup(cfg types.Config, key string) string {
	return d.kind.displayItem(cfg, types.String(key))
}

func (d *fieldDriver) DefaultValue(cfg types.Config) (types.Value, error) {
	raw := cfg.Config.DefaultValue
	if expr := strings.TrimSpace(cfg.Config.DefaultValueExpr); expr != "" {
		v, err := evalDefaultValueExpr(expr, cfg, d.deps.Now())
		if err != nil {
			return types.Undefined(), err
		}
		raw = v
	}
	if raw == "" {
		return types.Undefined(), nil
	}
	item := types.String(raw)
	switch {
	case d.isSet(cfg):
		return types.Sets([]types.Scalar{item}), nil
	case d.isMulti(cfg):
		return types.Sequence(item), nil
	default:
		return types.Single(item), nil
	}
}

func (d *fieldDriver) SearchSQLGet(cfg types.Config, req SearchRequest) (sqlpredicate.Predicate, bool) {
	if req.Operator == sqlpredicate.OperatorLike && !d.desc.HasBehavior(types.BehaviorIsLikeOperatorCapable) {
		d.deps.Logger.Errorw("unsupported search operator", "field_name", cfg.Name, "operator", string(req.Operator))
		return sqlpredicate.Predicate{}, false
	}
	return d.builder.Build(sqlpredicate.Request{
		Operator:   req.Operator,
		Term:       req.Term,
		TableAlias: req.TableAlias,
		Column:     string(d.desc.TableAttribute),
		Native:     d.desc.TableAttribute != types.ColumnText,
	})
}

func (d *fieldDriver) EditFieldRender(cfg types.Config, req EditRequest) render.EditField {
	value := req.Value
	if req.Form != nil {
		if v, ok := d.EditFieldValueGet(cfg, req.Form); ok {
			value = v
		}
	}
	if value.IsUndefined() && req.UseDefault {
		dv, err := d.DefaultValue(cfg)
		if err != nil {
			d.deps.Logger.Errorw("default value failed", "field_name", cfg.Name, "error", err)
		} else {
			value = dv
		}
	}

	multi := d.isMulti(cfg)
	items := value.Flatten()
	if len(items) == 0 {
		items = []types.Scalar{types.String("")}
	}
	if !multi {
		items = items[:1]
	}

	field := render.EditField{
		Name:       render.FormName(cfg),
		Label:      cfg.Label,
		FieldType:  d.desc.FieldType,
		Mandatory:  req.Mandatory,
		ReadOnly:   req.ReadOnly,
		MultiValue: multi,
		MaxLength:  cfg.Config.MaxLength,
	}
	hasError := false
	for i, item := range items {
		ei := render.EditItem{Index: i, Name: field.Name, ID: render.ItemID(cfg, i), Value: item.String()}
		if req.Validation != nil && i < len(req.Validation.Items) && req.Validation.Items[i].ServerError {
			ei.ServerError = true
			ei.ErrorMessage = req.Validation.Items[i].ErrorMessage
			hasError = true
		}
		field.Items = append(field.Items, ei)
	}
	if multi && d.kind.templateRow() {
		field.Template = &render.EditItem{Index: len(items), Name: field.Name, ID: field.Name + "_Template", Template: true}
	}

	class := d.desc.FieldCSSClass
	if req.Mandatory {
		class += " Validate_Required"
	}
	if hasError {
		class += " ServerError"
	}
	field.Class = class

	if _, ok := d.kind.(textAreaKind); ok {
		field.Rows, field.Cols = cfg.Config.Rows, cfg.Config.Cols
		if field.Rows <= 0 {
			field.Rows = 7
		}
		if field.Cols <= 0 {
			field.Cols = 42
		}
	}

	if pvs := d.kind.possibleValues(cfg); pvs != nil {
		field.PossibleValues = filterPossibleValues(pvs, req.AllowedKeys)
	}
	return field
}

// filterPossibleValues keeps the entries whose key is allowed. The empty
// "none" entry always survives. A nil allow list keeps everything.
func filterPossibleValues(pvs []types.PossibleValue, allowed []string) []types.PossibleValue {
	if allowed == nil {
		return pvs
	}
	keep := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		keep[k] = struct{}{}
	}
	out := make([]types.PossibleValue, 0, len(pvs))
	for _, pv := range pvs {
		if _, ok := keep[pv.Key]; ok || pv.Key == "" {
			out = append(out, pv)
		}
	}
	return out
}

func (d *fieldDriver) EditFieldValueGet(cfg types.Config, form url.Values) (types.Value, bool) {
	multi := d.isMulti(cfg)
	raw, ok := render.FormValues(form, cfg, multi, d.kind.templateRow())
	if !ok {
		return types.Undefined(), false
	}
	items := make([]types.Scalar, 0, len(raw))
	for _, r := range raw {
		items = append(items, d.kind.formItem(cfg, r))
	}
	switch {
	case d.isSet(cfg) && multi:
		return types.Sets(items), true
	case d.isSet(cfg):
		groups := make([][]types.Scalar, 0, len(items))
		for _, it := range items {
			groups = append(groups, []types.Scalar{it})
		}
		return types.Sets(groups...), true
	case multi:
		return types.Sequence(items...), true
	default:
		return types.Single(items[0]), true
	}
}

// EditFieldValueValidate validates every submitted item and reports per item.
func (d *fieldDriver) EditFieldValueValidate(cfg types.Config, value types.Value, mandatory bool) render.Validation {
	items := value.Flatten()
	if len(items) == 0 {
		items = []types.Scalar{types.Null()}
	}
	now := d.deps.Now()
	out := render.Validation{Items: make([]render.ItemValidation, 0, len(items))}
	for _, item := range items {
		var iv render.ItemValidation
		switch {
		case d.isEmptyItem(item):
			if mandatory {
				iv = render.ItemValidation{ServerError: true, ErrorMessage: msgRequired}
			}
		default:
			if msg := d.kind.checkItem(cfg, item, now); msg != "" {
				iv = render.ItemValidation{ServerError: true, ErrorMessage: msg}
			} else if verr := d.matchRegexList(cfg, item.String()); verr != nil {
				iv = render.ItemValidation{ServerError: true, ErrorMessage: verr.Message}
			}
		}
		out.Items = append(out.Items, iv)
	}
	return out
}

// isEmptyItem reports whether item counts as "not filled in". An unchecked
// checkbox is empty.
func (d *fieldDriver) isEmptyItem(item types.Scalar) bool {
	s := strings.TrimSpace(item.String())
	if item.IsNull() || s == "" {
		return true
	}
	_, isCheckbox := d.kind.(checkboxKind)
	return isCheckbox && s != "1"
}

func (d *fieldDriver) labels(cfg types.Config, value types.Value) []string {
	items := value.Flatten()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.IsNull() {
			out = append(out, "")
			continue
		}
		out = append(out, d.kind.displayItem(cfg, item))
	}
	return out
}

func (d *fieldDriver) DisplayValueRender(cfg types.Config, value types.Value, opts DisplayOptions) render.DisplayValue {
	sep := opts.Separator
	if sep == "" {
		sep = render.DefaultItemSeparator
	}
	labels := d.labels(cfg, value)
	shown, truncated := render.JoinTruncate(labels, opts.ValueMaxChars, sep)
	title, _ := render.JoinTruncate(labels, opts.TitleMaxChars, sep)
	if opts.HTMLOutput {
		shown = render.EscapeHTML(shown)
		title = render.EscapeHTML(title)
	}

	out := render.DisplayValue{Value: shown, Title: title, Truncated: truncated}
	if raw := value.Strings(); len(raw) == 1 && raw[0] != "" {
		out.Link = expandLink(cfg.Config.Link, raw[0])
		out.LinkPreview = expandLink(cfg.Config.LinkPreview, raw[0])
	}
	return out
}

// expandLink substitutes the URL-escaped value for {value} in tmpl.
func expandLink(tmpl string, value string) string {
	if tmpl == "" {
		return ""
	}
	return strings.ReplaceAll(tmpl, "{value}", url.QueryEscape(value))
}

func (d *fieldDriver) ReadableValueRender(_ types.Config, value types.Value, opts ReadableOptions) render.ReadableValue {
	sep := opts.Separator
	if sep == "" {
		sep = render.DefaultItemSeparator
	}
	s, truncated := render.JoinTruncate(value.Strings(), opts.ValueMaxChars, sep)
	return render.ReadableValue{Value: s, Truncated: truncated}
}

func (d *fieldDriver) SearchFieldRender(cfg types.Config, req SearchFieldRequest) render.SearchField {
	values, ok := d.SearchFieldValueGet(cfg, req.Form)
	if !ok {
		values = append([]string(nil), req.Profile...)
	}
	if len(values) == 0 && req.UseDefault {
		if dv, err := d.DefaultValue(cfg); err == nil {
			values = dv.Strings()
		}
	}
	if values == nil {
		values = []string{}
	}
	out := render.SearchField{Name: searchFormName(cfg), Label: cfg.Label, Values: values}
	if pvs := d.kind.possibleValues(cfg); pvs != nil {
		out.Multiple = true
		out.PossibleValues = make([]types.PossibleValue, 0, len(pvs))
		for _, pv := range pvs {
			if pv.Key != "" {
				out.PossibleValues = append(out.PossibleValues, pv)
			}
		}
	}
	return out
}

func (d *fieldDriver) SearchFieldValueGet(cfg types.Config, form url.Values) ([]string, bool) {
	if form == nil {
		return nil, false
	}
	return d.kind.searchValues(cfg, form)
}

func (d *fieldDriver) SearchFieldParameterBuild(cfg types.Config, values []string) render.SearchParameter {
	params := d.kind.searchParameter(cfg, values)
	out := render.SearchParameter{Parameter: make(map[string]any, len(params))}
	for op, term := range params {
		out.Parameter[string(op)] = term
	}
	shown := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			shown = append(shown, d.kind.displayItem(cfg, types.String(v)))
		}
	}
	sep := " + "
	if _, ok := d.kind.(dateKind); ok {
		sep = " - "
	}
	out.Display = strings.Join(shown, sep)
	return out
}

func (d *fieldDriver) StatsFieldParameterBuild(cfg types.Config) render.StatsField {
	out := render.StatsField{
		Name:               cfg.FieldName(),
		Element:            cfg.FieldName(),
		Block:              d.kind.statsBlock(),
		TranslatableValues: cfg.Config.TranslatableValues,
	}
	if pvs := d.kind.possibleValues(cfg); pvs != nil {
		out.Values = make(map[string]string, len(pvs))
		for _, pv := range pvs {
			if pv.Key != "" {
				out.Values[pv.Key] = pv.Value
			}
		}
	}
	switch out.Block {
	case render.StatsBlockInput:
		out.Operators = []string{string(sqlpredicate.OperatorEquals)}
		if d.desc.HasBehavior(types.BehaviorIsLikeOperatorCapable) {
			out.Operators = append(out.Operators, string(sqlpredicate.OperatorLike))
		}
	case render.StatsBlockTime:
		out.Operators = []string{string(sqlpredicate.OperatorGreaterThanEquals), string(sqlpredicate.OperatorSmallerThanEquals)}
	}
	return out
}

func (d *fieldDriver) StatsSearchFieldParameterBuild(cfg types.Config, values []string) map[sqlpredicate.Operator]any {
	return d.kind.searchParameter(cfg, values)
}

// ObjectMatch reports whether the object attribute of the field equals value
// exactly, or contains it when the attribute is a list.
func (d *fieldDriver) ObjectMatch(cfg types.Config, value string, attrs map[string]any) bool {
	attr, ok := attrs[cfg.FieldName()]
	if !ok {
		return false
	}
	switch v := attr.(type) {
	case string:
		return v == value
	case []string:
		for _, s := range v {
			if s == value {
				return true
			}
		}
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == value {
				return true
			}
		}
	case types.Scalar:
		return !v.IsNull() && v.String() == value
	case types.Value:
		for _, item := range v.Flatten() {
			if !item.IsNull() && item.String() == value {
				return true
			}
		}
	}
	return false
}

func (d *fieldDriver) HistoricalValuesGet(ctx context.Context, cfg types.Config) ([]string, error) {
	values, err := d.deps.Store.HistoricalValuesGet(ctx, cfg.ID, d.desc.TableAttribute)
	if err != nil {
		return nil, fmt.Errorf("historical values %s: %w", cfg.Name, err)
	}
	return values, nil
}

func (d *fieldDriver) ColumnFilterValuesGet(ctx context.Context, cfg types.Config) ([]types.PossibleValue, error) {
	values, err := d.HistoricalValuesGet(ctx, cfg)
	if err != nil {
		return nil, err
	}
	out := make([]types.PossibleValue, 0, len(values))
	for _, v := range values {
		out = append(out, types.PossibleValue{Key: v, Value: d.kind.displayItem(cfg, types.String(v))})
	}
	return out, nil
}

// RandomValueSet stores a generated value: up to three items for multi-value
// fields and setCount groups for set fields.
func (d *fieldDriver) RandomValueSet(ctx context.Context, cfg types.Config, objectID int64, userID int64, setCount int) (types.Value, error) {
	multi := d.isMulti(cfg)
	now := d.deps.Now()

	randMu.Lock()
	group := func() []types.Scalar {
		n := 1
		if multi {
			n = 1 + d.deps.Rand.IntN(3)
		}
		items := make([]types.Scalar, 0, n)
		for range n {
			items = append(items, types.String(d.kind.randomItem(cfg, d.deps.Rand, now)))
		}
		return items
	}
	var value types.Value
	switch {
	case d.isSet(cfg):
		if setCount < 1 {
			setCount = 1
		}
		groups := make([][]types.Scalar, 0, setCount)
		for range setCount {
			groups = append(groups, group())
		}
		value = types.Sets(groups...)
	case multi:
		value = types.Sequence(group()...)
	default:
		value = types.Single(group()[0])
	}
	randMu.Unlock()

	if err := d.ValueSet(ctx, cfg, objectID, value, userID); err != nil {
		return types.Undefined(), err
	}
	return value, nil
}

func (d *fieldDriver) PossibleValuesGet(cfg types.Config) []types.PossibleValue {
	return d.kind.possibleValues(cfg)
}

func (d *fieldDriver) TemplateValueTypeGet(cfg types.Config) TemplateValueType {
	t := TemplateValueScalar
	if d.isMulti(cfg) || d.isSet(cfg) {
		t = TemplateValueArray
	}
	return TemplateValueType{Name: cfg.FieldName(), Type: t}
}
