package sqlpredicate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuild_Empty(t *testing.T) {
	cases := []struct {
		dialect Dialect
		term    string
		want    string
	}{
		{DialectPostgreSQL, "1", "dfv.value_text IS NULL"},
		{DialectOracle, "1", "dfv.value_text IS NULL"},
		{DialectOracle, "0", "dfv.value_text IS NOT NULL"},
		{DialectOracle, "", "dfv.value_text IS NOT NULL"},
		{DialectPostgreSQL, "0", "dfv.value_text <> ''"},
		{DialectMySQL, "false", "dfv.value_text <> ''"},
		{DialectSQLite, "", "dfv.value_text <> ''"},
		{DialectMSSQL, "0", "dfv.value_text <> ''"},
	}
	for _, tc := range cases {
		b := NewBuilder(tc.dialect, nil)
		p, ok := b.Build(Request{Operator: OperatorEmpty, Term: tc.term, TableAlias: "dfv", Column: "value_text"})
		if !ok {
			t.Fatalf("%s/%q: expected predicate", tc.dialect, tc.term)
		}
		if p.SQL != tc.want || len(p.Args) != 0 {
			t.Fatalf("%s/%q: sql=%q args=%v", tc.dialect, tc.term, p.SQL, p.Args)
		}
	}
}

func TestBuild_Comparison(t *testing.T) {
	pg := NewBuilder(DialectPostgreSQL, nil)
	p, ok := pg.Build(Request{Operator: OperatorEquals, Term: "Foo", TableAlias: "dfv", Column: "value_text"})
	if !ok || p.SQL != "LOWER(dfv.value_text) = LOWER(?)" {
		t.Fatalf("p=%+v ok=%v", p, ok)
	}
	if diff := cmp.Diff([]any{"Foo"}, p.Args); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}

	my := NewBuilder(DialectMySQL, nil)
	for op, sym := range map[Operator]string{
		OperatorGreaterThan:       ">",
		OperatorGreaterThanEquals: ">=",
		OperatorSmallerThan:       "<",
		OperatorSmallerThanEquals: "<=",
	} {
		p, ok := my.Build(Request{Operator: op, Term: "x'; DROP TABLE t; --", Column: "value_text"})
		if !ok || p.SQL != "value_text "+sym+" ?" {
			t.Fatalf("%s: p=%+v", op, p)
		}
		if p.Args[0] != "x'; DROP TABLE t; --" {
			t.Fatalf("term must be bound, args=%v", p.Args)
		}
	}
}

func TestBuild_Like(t *testing.T) {
	b := NewBuilder(DialectPostgreSQL, nil)
	p, ok := b.Build(Request{Operator: OperatorLike, Term: "ab*||!x_y&&*z", TableAlias: "dfv", Column: "value_text"})
	if !ok {
		t.Fatal("expected predicate")
	}
	want := `((LOWER(dfv.value_text) LIKE LOWER(?) ESCAPE '\') OR (LOWER(dfv.value_text) NOT LIKE LOWER(?) ESCAPE '\' AND LOWER(dfv.value_text) LIKE LOWER(?) ESCAPE '\'))`
	if p.SQL != want {
		t.Fatalf("sql=%s", p.SQL)
	}
	if diff := cmp.Diff([]any{"ab%", `x\_y`, "%z"}, p.Args); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}

	my := NewBuilder(DialectMySQL, nil)
	p, _ = my.Build(Request{Operator: OperatorLike, Term: "50%", Column: "value_text"})
	if p.SQL != `((value_text LIKE ? ESCAPE '\\'))` || p.Args[0] != `50\%` {
		t.Fatalf("p=%+v", p)
	}
}

func TestBuild_UnsupportedOperatorLogs(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	b := NewBuilder(DialectPostgreSQL, zap.New(core).Sugar())
	if _, ok := b.Build(Request{Operator: "Between", Term: "x", Column: "value_text"}); ok {
		t.Fatal("expected no predicate")
	}
	if logs.FilterMessage("unsupported search operator").Len() != 1 {
		t.Fatalf("logs=%v", logs.All())
	}
	if _, ok := b.Build(Request{Operator: OperatorEquals, Term: "x", Column: "value_text; --"}); ok {
		t.Fatal("expected invalid column rejection")
	}
}

func TestDetectOperator(t *testing.T) {
	if DetectOperator("abc") != OperatorEquals {
		t.Fatal("plain term")
	}
	if DetectOperator("ab*") != OperatorLike || DetectOperator("a||b") != OperatorLike {
		t.Fatal("wildcard terms")
	}
}

func TestConjunction_MatchNothing(t *testing.T) {
	b := NewBuilder(DialectSQLite, nil)
	var c Conjunction
	c.Add(b.Build(Request{Operator: OperatorEquals, Term: "a", Column: "value_text"}))
	c.Add(b.Build(Request{Operator: "Nope", Term: "b", Column: "value_text"}))
	p := c.Predicate()
	if p.SQL != "(LOWER(value_text) = LOWER(?)) AND (1 = 0)" {
		t.Fatalf("sql=%s", p.SQL)
	}
	var empty Conjunction
	if empty.Predicate().SQL != "1 = 1" {
		t.Fatal("empty conjunction matches everything")
	}
}

func TestRebind(t *testing.T) {
	q := "a = ? AND b <> '?' AND c = ?"
	if got := DialectPostgreSQL.Rebind(q); got != "a = $1 AND b <> '?' AND c = $2" {
		t.Fatalf("pg=%s", got)
	}
	if got := DialectOracle.Rebind(q); got != "a = :1 AND b <> '?' AND c = :2" {
		t.Fatalf("oracle=%s", got)
	}
	if got := DialectMSSQL.Rebind(q); got != "a = @p1 AND b <> '?' AND c = @p2" {
		t.Fatalf("mssql=%s", got)
	}
	if got := DialectSQLite.Rebind(q); got != q {
		t.Fatalf("sqlite=%s", got)
	}
}

func TestParseDialect(t *testing.T) {
	for raw, want := range map[string]Dialect{"pgx": DialectPostgreSQL, "sqlite3": DialectSQLite, "MariaDB": DialectMySQL, "sqlserver": DialectMSSQL, "oracle": DialectOracle} {
		got, err := ParseDialect(raw)
		if err != nil || got != want {
			t.Fatalf("%s: got=%s err=%v", raw, got, err)
		}
	}
	if _, err := ParseDialect("db2"); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuild_Native(t *testing.T) {
	b := NewBuilder(DialectPostgreSQL, nil)
	p, ok := b.Build(Request{Operator: OperatorGreaterThanEquals, Term: "2024-01-01 00:00:00", Column: "value_date", Native: true})
	if !ok || p.SQL != "value_date >= ?" {
		t.Fatalf("p=%+v ok=%v", p, ok)
	}
	p, _ = b.Build(Request{Operator: OperatorEmpty, Term: "0", Column: "value_int", Native: true})
	if p.SQL != "value_int IS NOT NULL" {
		t.Fatalf("sql=%s", p.SQL)
	}
	if _, ok := b.Build(Request{Operator: OperatorLike, Term: "1*", Column: "value_int", Native: true}); ok {
		t.Fatal("like on native column must be rejected")
	}
}

func TestDisjunction(t *testing.T) {
	b := NewBuilder(DialectMySQL, nil)
	var d Disjunction
	d.Add(b.Build(Request{Operator: OperatorEquals, Term: "a", Column: "value_text"}))
	d.Add(b.Build(Request{Operator: "Nope", Term: "b", Column: "value_text"}))
	d.Add(b.Build(Request{Operator: OperatorEquals, Term: "c", Column: "value_text"}))
	p, _ := d.Predicate()
	if p.SQL != "(value_text = ?) OR (value_text = ?)" {
		t.Fatalf("sql=%s", p.SQL)
	}
	if diff := cmp.Diff([]any{"a", "c"}, p.Args); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}
	var empty Disjunction
	if p, _ := empty.Predicate(); p.SQL != "1 = 0" {
		t.Fatalf("sql=%s", p.SQL)
	}
}
