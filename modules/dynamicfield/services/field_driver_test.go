package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/render"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/infrastructure/persistence"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	r := NewRegistry(Deps{
		Store:  persistence.NewValueMemoryStore(),
		Logger: zap.New(core).Sugar(),
		Now:    func() time.Time { return fixedNow },
		Rand:   rand.New(rand.NewPCG(1, 2)),
	})
	return r, logs
}

func mustDriver(t *testing.T, r *Registry, ft types.FieldType) Driver {
	t.Helper()
	d, err := r.Get(ft)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return d
}

func textField(multi bool) types.Config {
	return types.Config{ID: 1, Name: "Tags", Label: "Tags", FieldType: types.FieldTypeText, Config: types.FieldSettings{MultiValue: multi}}
}

func dropdownField() types.Config {
	return types.Config{ID: 2, Name: "Priority", Label: "Priority", FieldType: types.FieldTypeDropdown, Config: types.FieldSettings{
		PossibleValues: []types.PossibleValue{{Key: "low", Value: "Low"}, {Key: "high", Value: "High"}},
		PossibleNone:   true,
	}}
}

func TestValueIsDifferent_EmptyValues(t *testing.T) {
	r, _ := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeText)

	if d.ValueIsDifferent(types.Undefined(), types.Sequence()) {
		t.Fatal("undefined vs [] should not differ")
	}
	if d.ValueIsDifferent(types.Sequence(), types.Undefined()) {
		t.Fatal("[] vs undefined should not differ")
	}
	if d.ValueIsDifferent(types.Sets(), types.Undefined()) {
		t.Fatal("no sets vs undefined should not differ")
	}
	if d.ValueIsDifferent(types.Texts("a", "b"), types.Texts("a", "b")) {
		t.Fatal("equal sequences differ")
	}
	if !d.ValueIsDifferent(types.Texts("a", "b"), types.Texts("b", "a")) {
		t.Fatal("order must matter")
	}
	if !d.ValueIsDifferent(types.Text(""), types.Undefined()) {
		t.Fatal("empty string is a value")
	}
}

func TestDisplayValueRender_SharedBudget(t *testing.T) {
	r, _ := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeText)
	cfg := textField(true)

	got := d.DisplayValueRender(cfg, types.Texts("abcde", "fghij"), DisplayOptions{ValueMaxChars: 7})
	if got.Value != "abcde, fg..." || !got.Truncated {
		t.Fatalf("got=%+v", got)
	}
	if got.Title != "abcde, fghij" {
		t.Fatalf("title=%q", got.Title)
	}

	got = d.DisplayValueRender(cfg, types.Texts("abcdefghij", "klm"), DisplayOptions{ValueMaxChars: 7})
	if got.Value != "abcdefg..." || !got.Truncated {
		t.Fatalf("got=%+v", got)
	}

	got = d.DisplayValueRender(cfg, types.Texts("a<b>\nc"), DisplayOptions{HTMLOutput: true})
	if got.Value != "a&lt;b&gt;<br/>c" || got.Truncated {
		t.Fatalf("got=%+v", got)
	}
}

func TestDisplayValueRender_Labels(t *testing.T) {
	r, _ := newTestRegistry(t)

	dd := mustDriver(t, r, types.FieldTypeDropdown)
	if got := dd.DisplayValueRender(dropdownField(), types.Text("high"), DisplayOptions{}); got.Value != "High" {
		t.Fatalf("got=%+v", got)
	}

	cb := mustDriver(t, r, types.FieldTypeCheckbox)
	cfg := types.Config{ID: 3, Name: "Urgent", FieldType: types.FieldTypeCheckbox}
	if got := cb.DisplayValueRender(cfg, types.Text("1"), DisplayOptions{}); got.Value != "Checked" {
		t.Fatalf("got=%+v", got)
	}
	if got := cb.ValueLookup(cfg, "0"); got != "Unchecked" {
		t.Fatalf("lookup=%q", got)
	}

	date := mustDriver(t, r, types.FieldTypeDate)
	dcfg := types.Config{ID: 4, Name: "Due", FieldType: types.FieldTypeDate}
	if got := date.DisplayValueRender(dcfg, types.Text("2026-01-31 00:00:00"), DisplayOptions{}); got.Value != "2026-01-31" {
		t.Fatalf("got=%+v", got)
	}

	text := mustDriver(t, r, types.FieldTypeText)
	lcfg := textField(false)
	lcfg.Config.Link = "https://example.com/search?q={value}"
	if got := text.DisplayValueRender(lcfg, types.Text("a b&c"), DisplayOptions{}); got.Link != "https://example.com/search?q=a+b%26c" {
		t.Fatalf("link=%q", got.Link)
	}
}

func TestValueValidate_Regex(t *testing.T) {
	r, logs := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeText)
	cfg := textField(true)
	cfg.Config.RegExList = []types.RegEx{{Value: `^[0-9]+$`, ErrorMessage: "digits only"}}

	err := d.ValueValidate(cfg, types.Texts("12", "abc", "x"), false)
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("err=%v", err)
	}
	if verr.Value != "abc" || verr.Pattern != `^[0-9]+$` || verr.Message != "digits only" {
		t.Fatalf("verr=%+v", verr)
	}
	entries := logs.FilterMessage("dynamic field value does not match pattern").All()
	if len(entries) != 1 {
		t.Fatalf("logged=%d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["value"] != "abc" || ctx["pattern"] != `^[0-9]+$` || ctx["message"] != "digits only" {
		t.Fatalf("ctx=%v", ctx)
	}

	if err := d.ValueValidate(cfg, types.Texts("abc"), true); err != nil {
		t.Fatalf("noValidateRegex err=%v", err)
	}
	if err := d.ValueValidate(cfg, types.Texts(""), false); err != nil {
		t.Fatalf("empty err=%v", err)
	}

	cfg.Config.RegExList = []types.RegEx{{Value: `(`}}
	if err := d.ValueValidate(cfg, types.Texts("a"), false); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("bad pattern err=%v", err)
	}
}

func TestValueValidate_Types(t *testing.T) {
	r, _ := newTestRegistry(t)

	dd := mustDriver(t, r, types.FieldTypeDropdown)
	if err := dd.ValueValidate(dropdownField(), types.Text("medium"), false); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("err=%v", err)
	}
	if err := dd.ValueValidate(dropdownField(), types.Text("low"), false); err != nil {
		t.Fatalf("err=%v", err)
	}

	date := mustDriver(t, r, types.FieldTypeDate)
	cfg := types.Config{ID: 4, Name: "Due", FieldType: types.FieldTypeDate}
	if err := date.ValueValidate(cfg, types.Text("2026-01-31 10:00:00"), false); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("time on date err=%v", err)
	}
	cfg.Config.DateRestriction = types.DateRestrictionFutureDates
	if err := date.ValueValidate(cfg, types.Text("2026-03-05 00:00:00"), false); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("future err=%v", err)
	}
	if err := date.ValueValidate(cfg, types.Text("2026-03-04 00:00:00"), false); err != nil {
		t.Fatalf("today err=%v", err)
	}

	text := mustDriver(t, r, types.FieldTypeText)
	tcfg := textField(false)
	tcfg.Config.MaxLength = 3
	if err := text.ValueValidate(tcfg, types.Text("äöüß"), false); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("max length err=%v", err)
	}
}

func TestDefaultValue(t *testing.T) {
	r, _ := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeText)

	cfg := textField(false)
	cfg.Name = "Note"
	cfg.Config.DefaultValueExpr = `"x-" + field.name + "-" + today`
	v, err := d.DefaultValue(cfg)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !v.Equal(types.Text("x-Note-2026-03-04")) {
		t.Fatalf("v=%v", v.Strings())
	}

	cfg = textField(true)
	cfg.Config.DefaultValue = "a"
	v, _ = d.DefaultValue(cfg)
	if !v.Equal(types.Texts("a")) {
		t.Fatalf("v=%v", v.Strings())
	}

	cfg.Config.DefaultValueExpr = `1 + 1`
	if _, err := d.DefaultValue(cfg); !errors.Is(err, ErrDefaultValueExpr) {
		t.Fatalf("err=%v", err)
	}
}

func TestEditFieldValueGet(t *testing.T) {
	r, _ := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeText)

	form := url.Values{"DynamicField_Tags": {"a", "b", "template"}}
	v, ok := d.EditFieldValueGet(textField(true), form)
	if !ok || !v.Equal(types.Texts("a", "b")) {
		t.Fatalf("ok=%v v=%v", ok, v.Strings())
	}
	v, ok = d.EditFieldValueGet(textField(false), form)
	if !ok || !v.Equal(types.Text("a")) {
		t.Fatalf("ok=%v v=%v", ok, v.Strings())
	}
	if _, ok := d.EditFieldValueGet(textField(false), url.Values{}); ok {
		t.Fatal("absent field reported")
	}

	cb := mustDriver(t, r, types.FieldTypeCheckbox)
	cfg := types.Config{ID: 3, Name: "Urgent", FieldType: types.FieldTypeCheckbox}
	v, _ = cb.EditFieldValueGet(cfg, url.Values{"DynamicField_Urgent": {"on"}})
	if !v.Equal(types.Text("1")) {
		t.Fatalf("v=%v", v.Strings())
	}

	date := mustDriver(t, r, types.FieldTypeDate)
	dcfg := types.Config{ID: 4, Name: "Due", FieldType: types.FieldTypeDate}
	v, _ = date.EditFieldValueGet(dcfg, url.Values{"DynamicField_Due": {"2026-01-31"}})
	if !v.Equal(types.Text("2026-01-31 00:00:00")) {
		t.Fatalf("v=%v", v.Strings())
	}
}

func TestEditFieldValueGet_MultiselectKeepsEverySelection(t *testing.T) {
	r, _ := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeMultiselect)
	cfg := types.Config{ID: 6, Name: "Colors", FieldType: types.FieldTypeMultiselect, Config: types.FieldSettings{
		PossibleValues: []types.PossibleValue{{Key: "red", Value: "Red"}, {Key: "blue", Value: "Blue"}},
	}}

	v, ok := d.EditFieldValueGet(cfg, url.Values{"DynamicField_Colors": {"red", "blue"}})
	if !ok || !v.Equal(types.Texts("red", "blue")) {
		t.Fatalf("ok=%v v=%v", ok, v.Strings())
	}
	v, ok = d.EditFieldValueGet(cfg, url.Values{"DynamicField_Colors": {"red"}})
	if !ok || !v.Equal(types.Texts("red")) {
		t.Fatalf("ok=%v v=%v", ok, v.Strings())
	}

	field := d.EditFieldRender(cfg, EditRequest{Value: types.Texts("red", "blue")})
	if field.Template != nil {
		t.Fatalf("template=%+v", field.Template)
	}
	if len(field.Items) != 2 {
		t.Fatalf("items=%+v", field.Items)
	}

	dd := mustDriver(t, r, types.FieldTypeDropdown)
	dcfg := dropdownField()
	dcfg.Config.MultiValue = true
	v, _ = dd.EditFieldValueGet(dcfg, url.Values{"DynamicField_Priority": {"low", "high"}})
	if !v.Equal(types.Texts("low", "high")) {
		t.Fatalf("dropdown v=%v", v.Strings())
	}
}

func TestEditFieldValueValidate(t *testing.T) {
	r, _ := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeText)
	cfg := textField(true)
	cfg.Config.RegExList = []types.RegEx{{Value: `^a`, ErrorMessage: "must start with a"}}

	got := d.EditFieldValueValidate(cfg, types.Texts("abc", "", "xyz"), true)
	want := render.Validation{Items: []render.ItemValidation{
		{},
		{ServerError: true, ErrorMessage: msgRequired},
		{ServerError: true, ErrorMessage: "must start with a"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("validation (-want +got):\n%s", diff)
	}
	if !got.HasError() {
		t.Fatal("HasError=false")
	}

	got = d.EditFieldValueValidate(cfg, types.Undefined(), false)
	if got.HasError() {
		t.Fatalf("optional empty got=%+v", got)
	}

	cb := mustDriver(t, r, types.FieldTypeCheckbox)
	ccfg := types.Config{ID: 3, Name: "Urgent", FieldType: types.FieldTypeCheckbox}
	if !cb.EditFieldValueValidate(ccfg, types.Text("0"), true).HasError() {
		t.Fatal("unchecked mandatory checkbox accepted")
	}
}

func TestEditFieldRender(t *testing.T) {
	r, _ := newTestRegistry(t)

	text := mustDriver(t, r, types.FieldTypeText)
	field := text.EditFieldRender(textField(true), EditRequest{
		Value:      types.Texts("a", "b"),
		Mandatory:  true,
		Validation: &render.Validation{Items: []render.ItemValidation{{}, {ServerError: true, ErrorMessage: "bad"}}},
	})
	if len(field.Items) != 2 || field.Items[1].ID != "DynamicField_Tags_1" || !field.Items[1].ServerError {
		t.Fatalf("items=%+v", field.Items)
	}
	if field.Template == nil || field.Template.ID != "DynamicField_Tags_Template" {
		t.Fatalf("template=%+v", field.Template)
	}
	if field.Class != "DynamicFieldText Validate_Required ServerError" {
		t.Fatalf("class=%q", field.Class)
	}

	area := mustDriver(t, r, types.FieldTypeTextArea)
	acfg := types.Config{ID: 5, Name: "Body", FieldType: types.FieldTypeTextArea}
	afield := area.EditFieldRender(acfg, EditRequest{UseDefault: true})
	if afield.Rows != 7 || afield.Cols != 42 || len(afield.Items) != 1 || afield.Template != nil {
		t.Fatalf("field=%+v", afield)
	}

	dd := mustDriver(t, r, types.FieldTypeDropdown)
	dfield := dd.EditFieldRender(dropdownField(), EditRequest{AllowedKeys: []string{"low"}})
	want := []types.PossibleValue{{Key: "", Value: "-"}, {Key: "low", Value: "Low"}}
	if diff := cmp.Diff(want, dfield.PossibleValues); diff != "" {
		t.Fatalf("possible values (-want +got):\n%s", diff)
	}
}

func TestSearchSQLGet(t *testing.T) {
	r, logs := newTestRegistry(t)

	text := mustDriver(t, r, types.FieldTypeText)
	p, ok := text.SearchSQLGet(textField(false), SearchRequest{Operator: sqlpredicate.OperatorEquals, Term: "x", TableAlias: "dfv"})
	if !ok || p.SQL != "LOWER(dfv.value_text) = LOWER(?)" || !slices.Equal(p.Args, []any{"x"}) {
		t.Fatalf("p=%+v ok=%v", p, ok)
	}

	dd := mustDriver(t, r, types.FieldTypeDropdown)
	if _, ok := dd.SearchSQLGet(dropdownField(), SearchRequest{Operator: sqlpredicate.OperatorLike, Term: "x*"}); ok {
		t.Fatal("like on dropdown accepted")
	}
	if logs.FilterMessage("unsupported search operator").Len() != 1 {
		t.Fatalf("logs=%v", logs.All())
	}

	cb := mustDriver(t, r, types.FieldTypeCheckbox)
	ccfg := types.Config{ID: 3, Name: "Urgent", FieldType: types.FieldTypeCheckbox}
	p, ok = cb.SearchSQLGet(ccfg, SearchRequest{Operator: sqlpredicate.OperatorEquals, Term: "1", TableAlias: "dfv"})
	if !ok || p.SQL != "dfv.value_int = ?" {
		t.Fatalf("p=%+v ok=%v", p, ok)
	}
}

func TestSearchFieldParameters(t *testing.T) {
	r, _ := newTestRegistry(t)

	date := mustDriver(t, r, types.FieldTypeDate)
	dcfg := types.Config{ID: 4, Name: "Due", FieldType: types.FieldTypeDate}
	values, ok := date.SearchFieldValueGet(dcfg, url.Values{
		"Search_DynamicField_Due_Start": {"2026-01-01"},
		"Search_DynamicField_Due_Stop":  {"2026-01-31"},
	})
	if !ok || !slices.Equal(values, []string{"2026-01-01 00:00:00", "2026-01-31 23:59:59"}) {
		t.Fatalf("ok=%v values=%v", ok, values)
	}
	param := date.SearchFieldParameterBuild(dcfg, values)
	want := map[string]any{"GreaterThanEquals": "2026-01-01 00:00:00", "SmallerThanEquals": "2026-01-31 23:59:59"}
	if diff := cmp.Diff(want, param.Parameter); diff != "" {
		t.Fatalf("parameter (-want +got):\n%s", diff)
	}
	if param.Display != "2026-01-01 - 2026-01-31" {
		t.Fatalf("display=%q", param.Display)
	}

	cb := mustDriver(t, r, types.FieldTypeCheckbox)
	ccfg := types.Config{ID: 3, Name: "Urgent", FieldType: types.FieldTypeCheckbox}
	values, _ = cb.SearchFieldValueGet(ccfg, url.Values{"Search_DynamicField_Urgent": {"-1", "junk"}})
	ops := cb.StatsSearchFieldParameterBuild(ccfg, values)
	if diff := cmp.Diff(map[sqlpredicate.Operator]any{sqlpredicate.OperatorEquals: []string{"0"}}, ops); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}

	text := mustDriver(t, r, types.FieldTypeText)
	ops = text.StatsSearchFieldParameterBuild(textField(false), []string{"foo*"})
	if ops[sqlpredicate.OperatorLike] != "foo*" {
		t.Fatalf("ops=%v", ops)
	}
	ops = text.StatsSearchFieldParameterBuild(textField(false), []string{"a", "b"})
	if ops[sqlpredicate.OperatorLike] != "a||b" {
		t.Fatalf("ops=%v", ops)
	}

	field := text.SearchFieldRender(textField(false), SearchFieldRequest{Profile: []string{"saved"}})
	if field.Name != "Search_DynamicField_Tags" || !slices.Equal(field.Values, []string{"saved"}) {
		t.Fatalf("field=%+v", field)
	}
}

func TestStatsFieldParameterBuild(t *testing.T) {
	r, _ := newTestRegistry(t)

	text := mustDriver(t, r, types.FieldTypeText)
	got := text.StatsFieldParameterBuild(textField(false))
	if got.Block != render.StatsBlockInput || !slices.Equal(got.Operators, []string{"Equals", "Like"}) {
		t.Fatalf("got=%+v", got)
	}

	dd := mustDriver(t, r, types.FieldTypeDropdown)
	got = dd.StatsFieldParameterBuild(dropdownField())
	if got.Block != render.StatsBlockMultiSelect || len(got.Values) != 2 || got.Values["high"] != "High" {
		t.Fatalf("got=%+v", got)
	}
}

func TestObjectMatch(t *testing.T) {
	r, _ := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeText)
	cfg := textField(true)

	attrs := map[string]any{"DynamicField_Tags": []string{"a", "b"}}
	if !d.ObjectMatch(cfg, "b", attrs) || d.ObjectMatch(cfg, "c", attrs) {
		t.Fatal("sequence match")
	}
	if !d.ObjectMatch(cfg, "x", map[string]any{"DynamicField_Tags": "x"}) {
		t.Fatal("scalar match")
	}
	if d.ObjectMatch(cfg, "X", map[string]any{"DynamicField_Tags": "x"}) {
		t.Fatal("match must be exact")
	}
	if d.ObjectMatch(cfg, "x", map[string]any{"Tags": "x"}) {
		t.Fatal("unprefixed attribute matched")
	}
}

func TestRandomValueSet(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	dd := mustDriver(t, r, types.FieldTypeDropdown)
	cfg := dropdownField()
	cfg.Config.MultiValue = true
	v, err := dd.RandomValueSet(ctx, cfg, 100, 1, 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	items := v.Strings()
	if len(items) < 1 || len(items) > 3 {
		t.Fatalf("items=%v", items)
	}
	for _, item := range items {
		if item != "low" && item != "high" {
			t.Fatalf("item=%q", item)
		}
	}
	stored, err := dd.ValueGet(ctx, cfg, 100)
	if err != nil || !stored.Equal(v) {
		t.Fatalf("stored=%v err=%v", stored.Strings(), err)
	}

	text := mustDriver(t, r, types.FieldTypeText)
	scfg := textField(false)
	scfg.Config.Set = true
	v, err = text.RandomValueSet(ctx, scfg, 101, 1, 2)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if v.Kind() != types.KindSets || len(v.Sets()) != 2 {
		t.Fatalf("kind=%v sets=%d", v.Kind(), len(v.Sets()))
	}

	date := mustDriver(t, r, types.FieldTypeDate)
	dcfg := types.Config{ID: 4, Name: "Due", FieldType: types.FieldTypeDate}
	v, err = date.RandomValueSet(ctx, dcfg, 102, 1, 0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := date.ValueValidate(dcfg, v, false); err != nil {
		t.Fatalf("random date invalid: %v", err)
	}
}

func TestHistoricalAndColumnFilterValues(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	d := mustDriver(t, r, types.FieldTypeDropdown)
	cfg := dropdownField()

	for objectID, key := range map[int64]string{1: "low", 2: "high", 3: "low"} {
		if err := d.ValueSet(ctx, cfg, objectID, types.Text(key), 1); err != nil {
			t.Fatalf("err=%v", err)
		}
	}
	got, err := d.ColumnFilterValuesGet(ctx, cfg)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	want := []types.PossibleValue{{Key: "high", Value: "High"}, {Key: "low", Value: "Low"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
}

func TestTemplateValueTypeGet(t *testing.T) {
	r, _ := newTestRegistry(t)
	d := mustDriver(t, r, types.FieldTypeMultiselect)
	cfg := types.Config{ID: 6, Name: "Labels", FieldType: types.FieldTypeMultiselect}
	if got := d.TemplateValueTypeGet(cfg); got != (TemplateValueType{Name: "DynamicField_Labels", Type: TemplateValueArray}) {
		t.Fatalf("got=%+v", got)
	}
	text := mustDriver(t, r, types.FieldTypeText)
	if got := text.TemplateValueTypeGet(textField(false)); got.Type != TemplateValueScalar {
		t.Fatalf("got=%+v", got)
	}
}
