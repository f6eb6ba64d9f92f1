package ports

import (
	"context"

	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
)

// ValueTableAlias is the alias of the value table search predicates are
// built against.
const ValueTableAlias = "dfv"

// ValueSearcher is implemented by SQL-backed stores that can evaluate search
// predicates built by drivers.
type ValueSearcher interface {
	ObjectSearch(ctx context.Context, fieldID int64, pred sqlpredicate.Predicate) ([]int64, error)
	Dialect() sqlpredicate.Dialect
}
