package services

import (
	"context"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/render"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
	"go.uber.org/zap"
)

// Deps are the collaborators every driver is constructed with.
type Deps struct {
	Store   ports.ValueStore
	Logger  *zap.SugaredLogger
	Dialect sqlpredicate.Dialect
	Now     func() time.Time
	Rand    *rand.Rand
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if d.Dialect == "" {
		d.Dialect = sqlpredicate.DialectPostgreSQL
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return d
}

type SearchRequest struct {
	Operator   sqlpredicate.Operator
	Term       string
	TableAlias string
}

type EditRequest struct {
	Value types.Value
	// UseDefault fills an undefined value with the configured default.
	UseDefault bool
	Mandatory  bool
	ReadOnly   bool
	// Form takes precedence over Value when it carries the field.
	Form       url.Values
	Validation *render.Validation
	// AllowedKeys restricts the offered possible values when not nil.
	AllowedKeys []string
}

type DisplayOptions struct {
	ValueMaxChars int
	TitleMaxChars int
	HTMLOutput    bool
	Separator     string
}

type ReadableOptions struct {
	ValueMaxChars int
	Separator     string
}

type SearchFieldRequest struct {
	Form    url.Values
	Profile []string
	// UseDefault offers the configured default when nothing was submitted.
	UseDefault bool
}

type TemplateValueType struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

const (
	TemplateValueScalar = "SCALAR"
	TemplateValueArray  = "ARRAY"
)

// Driver is the behavior contract of one field type.
type Driver interface {
	Descriptor() types.Descriptor
	HasBehavior(name types.Behavior) bool

	ValueGet(ctx context.Context, cfg types.Config, objectID int64) (types.Value, error)
	ValueSet(ctx context.Context, cfg types.Config, objectID int64, value types.Value, userID int64) error
	ValueValidate(cfg types.Config, value types.Value, noValidateRegex bool) error
	ValueIsDifferent(a types.Value, b types.Value) bool
	ValueLookup(cfg types.Config, key string) string
	DefaultValue(cfg types.Config) (types.Value, error)

	SearchSQLGet(cfg types.Config, req SearchRequest) (sqlpredicate.Predicate, bool)

	EditFieldRender(cfg types.Config, req EditRequest) render.EditField
	EditFieldValueGet(cfg types.Config, form url.Values) (types.Value, bool)
	EditFieldValueValidate(cfg types.Config, value types.Value, mandatory bool) render.Validation

	DisplayValueRender(cfg types.Config, value types.Value, opts DisplayOptions) render.DisplayValue
	ReadableValueRender(cfg types.Config, value types.Value, opts ReadableOptions) render.ReadableValue

	SearchFieldRender(cfg types.Config, req SearchFieldRequest) render.SearchField
	SearchFieldValueGet(cfg types.Config, form url.Values) ([]string, bool)
	SearchFieldParameterBuild(cfg types.Config, values []string) render.SearchParameter

	StatsFieldParameterBuild(cfg types.Config) render.StatsField
	StatsSearchFieldParameterBuild(cfg types.Config, values []string) map[sqlpredicate.Operator]any

	ObjectMatch(cfg types.Config, value string, attrs map[string]any) bool
	HistoricalValuesGet(ctx context.Context, cfg types.Config) ([]string, error)
	ColumnFilterValuesGet(ctx context.Context, cfg types.Config) ([]types.PossibleValue, error)
	RandomValueSet(ctx context.Context, cfg types.Config, objectID int64, userID int64, setCount int) (types.Value, error)

	PossibleValuesGet(cfg types.Config) []types.PossibleValue
	TemplateValueTypeGet(cfg types.Config) TemplateValueType
}
