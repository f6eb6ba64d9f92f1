package persistence

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type ValuePGStore struct {
	pool pgBeginner
}

func NewValuePGStore(pool pgBeginner) *ValuePGStore {
	return &ValuePGStore{pool: pool}
}

var (
	_ ports.ValueStore    = (*ValuePGStore)(nil)
	_ ports.ValueSearcher = (*ValuePGStore)(nil)
)

func (s *ValuePGStore) ValueGet(ctx context.Context, fieldID int64, objectID int64) ([]types.ValueRow, error) {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return nil, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
	SELECT id, field_id, object_id, index_set, index_value, value_text, value_date, value_int
	FROM dynamic_field_value
	WHERE field_id = $1 AND object_id = $2
	ORDER BY index_set ASC, index_value ASC, id ASC
	`, fieldID, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ValueRow
	for rows.Next() {
		var r types.ValueRow
		if err := rows.Scan(&r.ID, &r.FieldID, &r.ObjectID, &r.SetIndex, &r.ValueIndex, &r.ValueText, &r.ValueDate, &r.ValueInt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ValuePGStore) ValueSet(ctx context.Context, fieldID int64, objectID int64, rows []types.ValueRow, _ int64) error {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `DELETE FROM dynamic_field_value WHERE field_id = $1 AND object_id = $2;`, fieldID, objectID); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := tx.Exec(ctx, `
		INSERT INTO dynamic_field_value (field_id, object_id, index_set, index_value, value_text, value_date, value_int)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
		`, fieldID, objectID, r.SetIndex, r.ValueIndex, r.ValueText, r.ValueDate, r.ValueInt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *ValuePGStore) ValueDelete(ctx context.Context, fieldID int64, objectID int64) error {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return err
	}
	return s.exec(ctx, `DELETE FROM dynamic_field_value WHERE field_id = $1 AND object_id = $2;`, fieldID, objectID)
}

func (s *ValuePGStore) AllValuesDelete(ctx context.Context, fieldID int64) error {
	if fieldID <= 0 {
		return ports.ErrFieldIDInvalid
	}
	return s.exec(ctx, `DELETE FROM dynamic_field_value WHERE field_id = $1;`, fieldID)
}

func (s *ValuePGStore) ObjectValuesDelete(ctx context.Context, objectID int64) error {
	if objectID <= 0 {
		return ports.ErrObjectIDInvalid
	}
	return s.exec(ctx, `DELETE FROM dynamic_field_value WHERE object_id = $1;`, objectID)
}

func (s *ValuePGStore) exec(ctx context.Context, sql string, args ...any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *ValuePGStore) HistoricalValuesGet(ctx context.Context, fieldID int64, column types.ValueColumn) ([]string, error) {
	if fieldID <= 0 {
		return nil, ports.ErrFieldIDInvalid
	}
	if !column.Valid() {
		return nil, ports.ErrColumnInvalid
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	col := string(column)
	rows, err := tx.Query(ctx, `
	SELECT DISTINCT `+col+`
	FROM dynamic_field_value
	WHERE field_id = $1 AND `+col+` IS NOT NULL
	ORDER BY `+col+` ASC
	`, fieldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		v, err := scanHistorical(rows, column)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistorical(row scanner, column types.ValueColumn) (string, error) {
	switch column {
	case types.ColumnDate:
		var v time.Time
		if err := row.Scan(&v); err != nil {
			return "", err
		}
		return v.UTC().Format(types.DateTimeLayout), nil
	case types.ColumnInt:
		var v int64
		if err := row.Scan(&v); err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil
	default:
		var v string
		if err := row.Scan(&v); err != nil {
			return "", err
		}
		return v, nil
	}
}

// ObjectSearch returns the ids of objects with at least one row of fieldID
// matching pred. pred is built against TableAlias with '?' placeholders.
func (s *ValuePGStore) ObjectSearch(ctx context.Context, fieldID int64, pred sqlpredicate.Predicate) ([]int64, error) {
	if fieldID <= 0 {
		return nil, ports.ErrFieldIDInvalid
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	query, args := searchQuery(fieldID, pred)
	rows, err := tx.Query(ctx, sqlpredicate.DialectPostgreSQL.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func searchQuery(fieldID int64, pred sqlpredicate.Predicate) (string, []any) {
	where := "1 = 1"
	if !pred.IsZero() {
		where = pred.SQL
	}
	query := "SELECT DISTINCT " + TableAlias + ".object_id FROM " + ValueTable + " " + TableAlias +
		" WHERE " + TableAlias + ".field_id = ? AND (" + where + ") ORDER BY " + TableAlias + ".object_id"
	args := append([]any{fieldID}, pred.Args...)
	return query, args
}

func (s *ValuePGStore) Dialect() sqlpredicate.Dialect { return sqlpredicate.DialectPostgreSQL }
