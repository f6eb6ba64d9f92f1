package services

import (
	"context"
	"errors"
	"net/url"
	"sort"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/render"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/pkg/htmlsafety"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
	"go.uber.org/zap"
)

// ACL reduces the keys a subject may pick for a field.
type ACL interface {
	Reduce(subject string, fieldName string, keys []string) (allowed []string, enforced bool, err error)
}

// Backend dispatches field operations to the driver of the field type and
// owns storage failure logging.
type Backend struct {
	registry *Registry
	store    ports.ValueStore
	logger   *zap.SugaredLogger
	acl      ACL
	safety   htmlsafety.Policy
}

type BackendOption func(*Backend)

func WithACL(acl ACL) BackendOption {
	return func(b *Backend) { b.acl = acl }
}

func WithSafetyPolicy(p htmlsafety.Policy) BackendOption {
	return func(b *Backend) { b.safety = p }
}

func NewBackend(registry *Registry, opts ...BackendOption) *Backend {
	deps := registry.Deps()
	b := &Backend{
		registry: registry,
		store:    deps.Store,
		logger:   deps.Logger,
		safety:   htmlsafety.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Driver(cfg types.Config) (Driver, error) {
	return b.registry.Get(cfg.FieldType)
}

func (b *Backend) HasBehavior(cfg types.Config, name types.Behavior) bool {
	d, err := b.Driver(cfg)
	if err != nil {
		return false
	}
	return d.HasBehavior(name)
}

func (b *Backend) storageFailure(msg string, cfg types.Config, objectID int64, err error) {
	b.logger.Errorw(msg, "field_id", cfg.ID, "field_name", cfg.Name, "object_id", objectID, "error", err)
}

func (b *Backend) ValueGet(ctx context.Context, cfg types.Config, objectID int64) (types.Value, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return types.Undefined(), err
	}
	v, err := d.ValueGet(ctx, cfg, objectID)
	if err != nil {
		b.storageFailure("dynamic field value get failed", cfg, objectID, err)
		return types.Undefined(), err
	}
	return v, nil
}

// valueNormalizer is implemented by drivers whose stored form of a value can
// differ from the submitted one.
type valueNormalizer interface {
	ValueNormalize(cfg types.Config, value types.Value) types.Value
}

func normalized(d Driver, cfg types.Config, value types.Value) types.Value {
	if n, ok := d.(valueNormalizer); ok {
		return n.ValueNormalize(cfg, value)
	}
	return value
}

// ValueSet writes value unless it equals the stored one. changed reports
// whether a write happened.
func (b *Backend) ValueSet(ctx context.Context, cfg types.Config, objectID int64, value types.Value, userID int64) (changed bool, err error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return false, err
	}
	old, err := d.ValueGet(ctx, cfg, objectID)
	if err != nil {
		b.storageFailure("dynamic field value get failed", cfg, objectID, err)
		return false, err
	}
	if !d.ValueIsDifferent(old, normalized(d, cfg, value)) {
		return false, nil
	}
	if err := d.ValueSet(ctx, cfg, objectID, value, userID); err != nil {
		if !errors.Is(err, ErrInvalidValue) {
			b.storageFailure("dynamic field value set failed", cfg, objectID, err)
		}
		return false, err
	}
	return true, nil
}

func (b *Backend) ValueDelete(ctx context.Context, cfg types.Config, objectID int64) error {
	if err := b.store.ValueDelete(ctx, cfg.ID, objectID); err != nil {
		b.storageFailure("dynamic field value delete failed", cfg, objectID, err)
		return err
	}
	return nil
}

func (b *Backend) AllValuesDelete(ctx context.Context, cfg types.Config) error {
	if err := b.store.AllValuesDelete(ctx, cfg.ID); err != nil {
		b.storageFailure("dynamic field values delete failed", cfg, 0, err)
		return err
	}
	return nil
}

// ObjectValuesDelete removes the values of every field of objectID.
func (b *Backend) ObjectValuesDelete(ctx context.Context, objectID int64) error {
	if err := b.store.ObjectValuesDelete(ctx, objectID); err != nil {
		b.logger.Errorw("dynamic field object values delete failed", "object_id", objectID, "error", err)
		return err
	}
	return nil
}

func (b *Backend) ValueValidate(cfg types.Config, value types.Value, noValidateRegex bool) error {
	d, err := b.Driver(cfg)
	if err != nil {
		return err
	}
	return d.ValueValidate(cfg, value, noValidateRegex)
}

func (b *Backend) ValueIsDifferent(cfg types.Config, a types.Value, c types.Value) (bool, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return false, err
	}
	return d.ValueIsDifferent(a, c), nil
}

func (b *Backend) ValueLookup(cfg types.Config, key string) (string, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return "", err
	}
	return d.ValueLookup(cfg, key), nil
}

// PossibleValuesGet returns the possible values of cfg, reduced by the ACL
// for subject when the field type supports it.
func (b *Backend) PossibleValuesGet(cfg types.Config, subject string) ([]types.PossibleValue, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return nil, err
	}
	pvs := d.PossibleValuesGet(cfg)
	allowed, err := b.allowedKeys(d, cfg, subject, pvs)
	if err != nil {
		return nil, err
	}
	return filterPossibleValues(pvs, allowed), nil
}

// allowedKeys returns nil when no reduction applies.
func (b *Backend) allowedKeys(d Driver, cfg types.Config, subject string, pvs []types.PossibleValue) ([]string, error) {
	if pvs == nil || b.acl == nil || subject == "" || !d.HasBehavior(types.BehaviorIsACLReducible) {
		return nil, nil
	}
	keys := make([]string, 0, len(pvs))
	for _, pv := range pvs {
		keys = append(keys, pv.Key)
	}
	allowed, _, err := b.acl.Reduce(subject, cfg.FieldName(), keys)
	if err != nil {
		b.logger.Errorw("dynamic field acl reduction failed", "field_name", cfg.Name, "subject", subject, "error", err)
		return nil, err
	}
	return allowed, nil
}

// EditFieldRender renders the edit form of cfg for subject.
func (b *Backend) EditFieldRender(cfg types.Config, req EditRequest, subject string) (render.EditField, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return render.EditField{}, err
	}
	allowed, err := b.allowedKeys(d, cfg, subject, d.PossibleValuesGet(cfg))
	if err != nil {
		return render.EditField{}, err
	}
	if allowed != nil {
		req.AllowedKeys = allowed
	}
	return d.EditFieldRender(cfg, req), nil
}

func (b *Backend) EditFieldValueGet(cfg types.Config, form url.Values) (types.Value, bool, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return types.Undefined(), false, err
	}
	v, ok := d.EditFieldValueGet(cfg, form)
	return v, ok, nil
}

func (b *Backend) EditFieldValueValidate(cfg types.Config, value types.Value, mandatory bool) (render.Validation, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return render.Validation{}, err
	}
	return d.EditFieldValueValidate(cfg, value, mandatory), nil
}

func (b *Backend) DisplayValueRender(cfg types.Config, value types.Value, opts DisplayOptions) (render.DisplayValue, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return render.DisplayValue{}, err
	}
	return d.DisplayValueRender(cfg, value, opts), nil
}

// SafeDisplayValue renders value as HTML that passed the safety filter.
// replaced reports whether the filter altered the content.
func (b *Backend) SafeDisplayValue(cfg types.Config, value types.Value, opts DisplayOptions) (dv render.DisplayValue, replaced bool, err error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return render.DisplayValue{}, false, err
	}
	opts.HTMLOutput = false
	dv = d.DisplayValueRender(cfg, value, opts)
	dv.Value, replaced = htmlsafety.Safety(dv.Value, b.safety)
	dv.Title = render.EscapeHTML(dv.Title)
	if replaced {
		b.logger.Infow("dynamic field display value sanitized", "field_name", cfg.Name)
	}
	return dv, replaced, nil
}

func (b *Backend) ReadableValueRender(cfg types.Config, value types.Value, opts ReadableOptions) (render.ReadableValue, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return render.ReadableValue{}, err
	}
	return d.ReadableValueRender(cfg, value, opts), nil
}

func (b *Backend) SearchFieldRender(cfg types.Config, req SearchFieldRequest) (render.SearchField, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return render.SearchField{}, err
	}
	return d.SearchFieldRender(cfg, req), nil
}

func (b *Backend) SearchFieldParameterBuild(cfg types.Config, form url.Values) (render.SearchParameter, bool, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return render.SearchParameter{}, false, err
	}
	values, ok := d.SearchFieldValueGet(cfg, form)
	if !ok {
		return render.SearchParameter{}, false, nil
	}
	return d.SearchFieldParameterBuild(cfg, values), true, nil
}

func (b *Backend) StatsFieldParameterBuild(cfg types.Config) (render.StatsField, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return render.StatsField{}, err
	}
	return d.StatsFieldParameterBuild(cfg), nil
}

// SearchPredicate combines the operator parameters of a search into one
// predicate. A list of terms under one operator matches any of them. Terms
// the driver cannot turn into a predicate make the search match nothing.
func (b *Backend) SearchPredicate(cfg types.Config, params map[sqlpredicate.Operator]any) (sqlpredicate.Predicate, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return sqlpredicate.Predicate{}, err
	}
	ops := make([]sqlpredicate.Operator, 0, len(params))
	for op := range params {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	var conj sqlpredicate.Conjunction
	for _, op := range ops {
		switch term := params[op].(type) {
		case string:
			conj.Add(d.SearchSQLGet(cfg, SearchRequest{Operator: op, Term: term, TableAlias: ports.ValueTableAlias}))
		case []string:
			var alts sqlpredicate.Disjunction
			for _, t := range term {
				alts.Add(d.SearchSQLGet(cfg, SearchRequest{Operator: op, Term: t, TableAlias: ports.ValueTableAlias}))
			}
			conj.Add(alts.Predicate())
		default:
			b.logger.Errorw("unsupported search term", "field_name", cfg.Name, "operator", string(op))
			conj.Add(sqlpredicate.Predicate{}, false)
		}
	}
	return conj.Predicate(), nil
}

// ObjectSearch returns the objects whose value of cfg matches params. The
// store must support predicate search.
func (b *Backend) ObjectSearch(ctx context.Context, cfg types.Config, params map[sqlpredicate.Operator]any) ([]int64, error) {
	searcher, ok := b.store.(ports.ValueSearcher)
	if !ok {
		return nil, ErrSearchNotSupported
	}
	pred, err := b.SearchPredicate(cfg, params)
	if err != nil {
		return nil, err
	}
	ids, err := searcher.ObjectSearch(ctx, cfg.ID, pred)
	if err != nil {
		b.storageFailure("dynamic field search failed", cfg, 0, err)
		return nil, err
	}
	return ids, nil
}

func (b *Backend) ObjectMatch(cfg types.Config, value string, attrs map[string]any) bool {
	d, err := b.Driver(cfg)
	if err != nil {
		return false
	}
	return d.ObjectMatch(cfg, value, attrs)
}

func (b *Backend) HistoricalValuesGet(ctx context.Context, cfg types.Config) ([]string, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return nil, err
	}
	values, err := d.HistoricalValuesGet(ctx, cfg)
	if err != nil {
		b.storageFailure("dynamic field historical values failed", cfg, 0, err)
		return nil, err
	}
	return values, nil
}

func (b *Backend) ColumnFilterValuesGet(ctx context.Context, cfg types.Config) ([]types.PossibleValue, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return nil, err
	}
	values, err := d.ColumnFilterValuesGet(ctx, cfg)
	if err != nil {
		b.storageFailure("dynamic field column filter values failed", cfg, 0, err)
		return nil, err
	}
	return values, nil
}

func (b *Backend) RandomValueSet(ctx context.Context, cfg types.Config, objectID int64, userID int64, setCount int) (types.Value, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return types.Undefined(), err
	}
	v, err := d.RandomValueSet(ctx, cfg, objectID, userID, setCount)
	if err != nil {
		b.storageFailure("dynamic field random value set failed", cfg, objectID, err)
		return types.Undefined(), err
	}
	return v, nil
}

func (b *Backend) TemplateValueTypeGet(cfg types.Config) (TemplateValueType, error) {
	d, err := b.Driver(cfg)
	if err != nil {
		return TemplateValueType{}, err
	}
	return d.TemplateValueTypeGet(cfg), nil
}
