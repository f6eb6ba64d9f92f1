package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type beginnerFunc func(ctx context.Context) (pgx.Tx, error)

func (f beginnerFunc) Begin(ctx context.Context) (pgx.Tx, error) { return f(ctx) }

type stubTx struct {
	execErr   error
	execErrAt int
	execN     int
	execSQLs  []string
	execArgs  [][]any
	queryErr  error
	querySQLs []string
	queryArgs [][]any
	commitErr error
	committed bool

	rows pgx.Rows
}

func (t *stubTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *stubTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}
func (t *stubTx) Rollback(context.Context) error { return nil }
func (t *stubTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *stubTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *stubTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *stubTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *stubTx) Conn() *pgx.Conn { return nil }

func (t *stubTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execSQLs = append(t.execSQLs, sql)
	t.execArgs = append(t.execArgs, args)
	t.execN++
	if t.execErr != nil {
		at := t.execErrAt
		if at == 0 {
			at = 1
		}
		if t.execN == at {
			return pgconn.CommandTag{}, t.execErr
		}
	}
	return pgconn.CommandTag{}, nil
}

func (t *stubTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	t.querySQLs = append(t.querySQLs, sql)
	t.queryArgs = append(t.queryArgs, args)
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	if t.rows != nil {
		return t.rows, nil
	}
	return &stubRows{}, nil
}

func (t *stubTx) QueryRow(context.Context, string, ...any) pgx.Row {
	return &stubRows{}
}

type stubRows struct {
	data    [][]any
	idx     int
	scanErr error
	err     error
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return r.err }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}
func (r *stubRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if r.idx == 0 || r.idx > len(r.data) {
		return pgx.ErrNoRows
	}
	vals := r.data[r.idx-1]
	if len(vals) != len(dest) {
		return fmt.Errorf("scan: %d values for %d targets", len(vals), len(dest))
	}
	for i := range dest {
		if err := assign(dest[i], vals[i]); err != nil {
			return err
		}
	}
	return nil
}
func (r *stubRows) Values() ([]any, error) { return nil, nil }
func (r *stubRows) RawValues() [][]byte    { return nil }
func (r *stubRows) Conn() *pgx.Conn        { return nil }

func assign(dst any, v any) error {
	switch d := dst.(type) {
	case *int64:
		*d = v.(int64)
	case *int:
		*d = v.(int)
	case *string:
		*d = v.(string)
	case *time.Time:
		*d = v.(time.Time)
	case **string:
		if v == nil {
			*d = nil
		} else {
			s := v.(string)
			*d = &s
		}
	case **time.Time:
		if v == nil {
			*d = nil
		} else {
			t := v.(time.Time)
			*d = &t
		}
	case **int64:
		if v == nil {
			*d = nil
		} else {
			n := v.(int64)
			*d = &n
		}
	default:
		return fmt.Errorf("assign: unsupported target %T", dst)
	}
	return nil
}
