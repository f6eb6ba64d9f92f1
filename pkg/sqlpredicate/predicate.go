// Package sqlpredicate builds backend comparison predicates for searches on
// dynamic field values. Search terms are always bound as arguments; the SQL
// uses '?' placeholders until Rebind is applied for the target dialect.
package sqlpredicate

import (
	"strings"

	"go.uber.org/zap"
)

type Operator string

const (
	OperatorEquals            Operator = "Equals"
	OperatorLike              Operator = "Like"
	OperatorGreaterThan       Operator = "GreaterThan"
	OperatorGreaterThanEquals Operator = "GreaterThanEquals"
	OperatorSmallerThan       Operator = "SmallerThan"
	OperatorSmallerThanEquals Operator = "SmallerThanEquals"
	OperatorEmpty             Operator = "Empty"
)

var comparisonOperators = map[Operator]string{
	OperatorEquals:            "=",
	OperatorGreaterThan:       ">",
	OperatorGreaterThanEquals: ">=",
	OperatorSmallerThan:       "<",
	OperatorSmallerThanEquals: "<=",
}

// Operators lists the operators Build understands, in display order.
func Operators() []Operator {
	return []Operator{
		OperatorEquals,
		OperatorLike,
		OperatorGreaterThan,
		OperatorGreaterThanEquals,
		OperatorSmallerThan,
		OperatorSmallerThanEquals,
		OperatorEmpty,
	}
}

type Predicate struct {
	SQL  string
	Args []any
}

func (p Predicate) IsZero() bool { return p.SQL == "" }

// matchNothing stands in for an absent predicate.
var matchNothing = Predicate{SQL: "1 = 0"}

type Request struct {
	Operator   Operator
	Term       string
	TableAlias string
	Column     string
	// Native compares without case folding, for numeric and date columns.
	Native bool
}

type Builder struct {
	dialect Dialect
	logger  *zap.SugaredLogger
}

func NewBuilder(dialect Dialect, logger *zap.SugaredLogger) *Builder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Builder{dialect: dialect, logger: logger}
}

func (b *Builder) Dialect() Dialect { return b.dialect }

// Build returns the predicate for req. ok is false when no predicate can be
// built (unsupported operator or invalid identifiers); the error is logged.
// Callers combine predicates with Conjunction, which treats an absent
// predicate as "match nothing".
func (b *Builder) Build(req Request) (Predicate, bool) {
	if !ValidIdentifier(req.Column) || (req.TableAlias != "" && !ValidIdentifier(req.TableAlias)) {
		b.logger.Errorw("invalid search column", "table_alias", req.TableAlias, "column", req.Column)
		return Predicate{}, false
	}
	col := req.Column
	if req.TableAlias != "" {
		col = req.TableAlias + "." + req.Column
	}

	switch req.Operator {
	case OperatorEmpty:
		return b.empty(col, Truthy(req.Term), req.Native), true
	case OperatorLike:
		if req.Native {
			b.logger.Errorw("unsupported search operator", "operator", string(req.Operator), "column", col)
			return Predicate{}, false
		}
		return b.like(col, req.Term), true
	}

	op, ok := comparisonOperators[req.Operator]
	if !ok {
		b.logger.Errorw("unsupported search operator", "operator", string(req.Operator), "column", col)
		return Predicate{}, false
	}
	if b.dialect.CaseSensitive() && !req.Native {
		return Predicate{SQL: "LOWER(" + col + ") " + op + " LOWER(?)", Args: []any{req.Term}}, true
	}
	return Predicate{SQL: col + " " + op + " ?", Args: []any{req.Term}}, true
}

func (b *Builder) empty(col string, isEmpty bool, native bool) Predicate {
	if isEmpty {
		return Predicate{SQL: col + " IS NULL"}
	}
	// Oracle cannot tell NULL from ''.
	if native || b.dialect.EmptyStringIsNull() {
		return Predicate{SQL: col + " IS NOT NULL"}
	}
	return Predicate{SQL: col + " <> ''"}
}

// like builds a wildcard condition: '*' matches any run of characters, '||'
// separates alternatives, '&&' joins required parts and a leading '!'
// negates a part. Matching is case-insensitive.
func (b *Builder) like(col string, term string) Predicate {
	target := col
	if b.dialect.CaseSensitive() {
		target = "LOWER(" + col + ")"
	}
	escape := " ESCAPE " + b.dialect.likeEscape()

	alternatives := make([]string, 0)
	args := make([]any, 0)
	for _, alt := range strings.Split(term, "||") {
		parts := make([]string, 0)
		for _, part := range strings.Split(alt, "&&") {
			part = strings.TrimSpace(part)
			negate := false
			if strings.HasPrefix(part, "!") {
				negate = true
				part = strings.TrimSpace(part[1:])
			}
			if part == "" {
				continue
			}
			op := " LIKE "
			if negate {
				op = " NOT LIKE "
			}
			arg := "?"
			if b.dialect.CaseSensitive() {
				arg = "LOWER(?)"
			}
			parts = append(parts, target+op+arg+escape)
			args = append(args, LikePattern(part))
		}
		if len(parts) == 0 {
			continue
		}
		alternatives = append(alternatives, "("+strings.Join(parts, " AND ")+")")
	}
	if len(alternatives) == 0 {
		return Predicate{SQL: target + " LIKE ?" + escape, Args: []any{""}}
	}
	return Predicate{SQL: "(" + strings.Join(alternatives, " OR ") + ")", Args: args}
}

// LikePattern escapes LIKE metacharacters in term and turns '*' into '%'.
func LikePattern(term string) string {
	var b strings.Builder
	for _, r := range term {
		switch r {
		case '\\', '%', '_':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '*':
			b.WriteRune('%')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DetectOperator upgrades Equals to Like when term carries wildcard syntax.
func DetectOperator(term string) Operator {
	if strings.Contains(term, "*") || strings.Contains(term, "||") {
		return OperatorLike
	}
	return OperatorEquals
}

// Truthy reports whether a search term switches a flag on: anything except
// "", "0" and "false".
func Truthy(term string) bool {
	t := strings.TrimSpace(term)
	return t != "" && t != "0" && !strings.EqualFold(t, "false")
}

// Conjunction ANDs predicates together. Adding an absent predicate makes the
// whole conjunction match nothing.
type Conjunction struct {
	parts []Predicate
}

func (c *Conjunction) Add(p Predicate, ok bool) {
	if !ok || p.IsZero() {
		c.parts = append(c.parts, matchNothing)
		return
	}
	c.parts = append(c.parts, p)
}

func (c *Conjunction) Len() int { return len(c.parts) }

func (c *Conjunction) Predicate() Predicate {
	if len(c.parts) == 0 {
		return Predicate{SQL: "1 = 1"}
	}
	sqls := make([]string, 0, len(c.parts))
	args := make([]any, 0)
	for _, p := range c.parts {
		sqls = append(sqls, "("+p.SQL+")")
		args = append(args, p.Args...)
	}
	return Predicate{SQL: strings.Join(sqls, " AND "), Args: args}
}

// Disjunction ORs predicates together. Absent predicates match nothing and
// are skipped; an empty disjunction matches nothing.
type Disjunction struct {
	parts []Predicate
}

func (d *Disjunction) Add(p Predicate, ok bool) {
	if !ok || p.IsZero() {
		return
	}
	d.parts = append(d.parts, p)
}

func (d *Disjunction) Predicate() (Predicate, bool) {
	if len(d.parts) == 0 {
		return matchNothing, true
	}
	if len(d.parts) == 1 {
		return d.parts[0], true
	}
	sqls := make([]string, 0, len(d.parts))
	args := make([]any, 0)
	for _, p := range d.parts {
		sqls = append(sqls, "("+p.SQL+")")
		args = append(args, p.Args...)
	}
	return Predicate{SQL: strings.Join(sqls, " OR "), Args: args}, true
}
