package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
)

type sqlDB interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ValueSQLStore persists values through database/sql. Queries are written
// with '?' placeholders and rebound for the configured dialect.
type ValueSQLStore struct {
	db      sqlDB
	dialect sqlpredicate.Dialect
}

func NewValueSQLStore(db sqlDB, dialect sqlpredicate.Dialect) *ValueSQLStore {
	return &ValueSQLStore{db: db, dialect: dialect}
}

var (
	_ ports.ValueStore    = (*ValueSQLStore)(nil)
	_ ports.ValueSearcher = (*ValueSQLStore)(nil)
)

func (s *ValueSQLStore) Dialect() sqlpredicate.Dialect { return s.dialect }

// EnsureSchema creates the value table when it does not exist yet.
func (s *ValueSQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range SchemaSQL(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *ValueSQLStore) ValueGet(ctx context.Context, fieldID int64, objectID int64) ([]types.ValueRow, error) {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
	SELECT id, field_id, object_id, index_set, index_value, value_text, value_date, value_int
	FROM dynamic_field_value
	WHERE field_id = ? AND object_id = ?
	ORDER BY index_set ASC, index_value ASC, id ASC
	`), fieldID, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ValueRow
	for rows.Next() {
		var (
			r     types.ValueRow
			text  sql.NullString
			date  nullTime
			value sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.FieldID, &r.ObjectID, &r.SetIndex, &r.ValueIndex, &text, &date, &value); err != nil {
			return nil, err
		}
		if text.Valid {
			r.ValueText = &text.String
		}
		if date.Valid {
			r.ValueDate = &date.Time
		}
		if value.Valid {
			r.ValueInt = &value.Int64
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ValueSQLStore) ValueSet(ctx context.Context, fieldID int64, objectID int64, rows []types.ValueRow, _ int64) error {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM dynamic_field_value WHERE field_id = ? AND object_id = ?`), fieldID, objectID); err != nil {
		return err
	}
	insert := s.dialect.Rebind(`
	INSERT INTO dynamic_field_value (field_id, object_id, index_set, index_value, value_text, value_date, value_int)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	for _, r := range rows {
		var date any
		if r.ValueDate != nil {
			date = r.ValueDate.UTC()
			if s.dialect == sqlpredicate.DialectSQLite {
				date = r.ValueDate.UTC().Format(types.DateTimeLayout)
			}
		}
		if _, err := tx.ExecContext(ctx, insert, fieldID, objectID, r.SetIndex, r.ValueIndex, r.ValueText, date, r.ValueInt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *ValueSQLStore) ValueDelete(ctx context.Context, fieldID int64, objectID int64) error {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM dynamic_field_value WHERE field_id = ? AND object_id = ?`), fieldID, objectID)
	return err
}

func (s *ValueSQLStore) AllValuesDelete(ctx context.Context, fieldID int64) error {
	if fieldID <= 0 {
		return ports.ErrFieldIDInvalid
	}
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM dynamic_field_value WHERE field_id = ?`), fieldID)
	return err
}

func (s *ValueSQLStore) ObjectValuesDelete(ctx context.Context, objectID int64) error {
	if objectID <= 0 {
		return ports.ErrObjectIDInvalid
	}
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM dynamic_field_value WHERE object_id = ?`), objectID)
	return err
}

func (s *ValueSQLStore) HistoricalValuesGet(ctx context.Context, fieldID int64, column types.ValueColumn) ([]string, error) {
	if fieldID <= 0 {
		return nil, ports.ErrFieldIDInvalid
	}
	if !column.Valid() {
		return nil, ports.ErrColumnInvalid
	}
	col := string(column)
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
	SELECT DISTINCT `+col+`
	FROM dynamic_field_value
	WHERE field_id = ? AND `+col+` IS NOT NULL
	ORDER BY `+col+` ASC
	`), fieldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		switch column {
		case types.ColumnDate:
			var t nullTime
			if err := rows.Scan(&t); err != nil {
				return nil, err
			}
			v = t.Time.Format(types.DateTimeLayout)
		case types.ColumnInt:
			var n int64
			if err := rows.Scan(&n); err != nil {
				return nil, err
			}
			v = strconv.FormatInt(n, 10)
		default:
			if err := rows.Scan(&v); err != nil {
				return nil, err
			}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ValueSQLStore) ObjectSearch(ctx context.Context, fieldID int64, pred sqlpredicate.Predicate) ([]int64, error) {
	if fieldID <= 0 {
		return nil, ports.ErrFieldIDInvalid
	}
	query, args := searchQuery(fieldID, pred)
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
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
	return out, nil
}

// nullTime accepts the representations drivers hand back for value_date:
// time.Time, or text when the driver does not parse timestamps.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var storedTimeLayouts = []string{
	types.DateTimeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
}

func (t *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("value_date: unsupported type %T", src)
	}
}

func (t *nullTime) parse(s string) error {
	for _, layout := range storedTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("value_date: cannot parse %q", s)
}
