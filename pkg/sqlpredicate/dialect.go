package sqlpredicate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var ErrDialectUnknown = errors.New("sql_dialect_unknown")

type Dialect string

const (
	DialectPostgreSQL Dialect = "postgresql"
	DialectMySQL      Dialect = "mysql"
	DialectOracle     Dialect = "oracle"
	DialectMSSQL      Dialect = "mssql"
	DialectSQLite     Dialect = "sqlite"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func ParseDialect(raw string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgresql", "postgres", "pg", "pgx":
		return DialectPostgreSQL, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "oracle", "godror":
		return DialectOracle, nil
	case "mssql", "sqlserver":
		return DialectMSSQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", ErrDialectUnknown
	}
}

// CaseSensitive reports whether plain comparisons on text columns are case
// sensitive, so case-insensitive search needs explicit LOWER().
func (d Dialect) CaseSensitive() bool {
	switch d {
	case DialectPostgreSQL, DialectOracle, DialectSQLite:
		return true
	default:
		return false
	}
}

// EmptyStringIsNull reports whether the backend stores '' as NULL.
func (d Dialect) EmptyStringIsNull() bool {
	return d == DialectOracle
}

func (d Dialect) likeEscape() string {
	if d == DialectMySQL {
		return `'\\'`
	}
	return `'\'`
}

// Rebind rewrites '?' placeholders into the dialect's positional form.
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	var prefix string
	switch d {
	case DialectPostgreSQL:
		prefix = "$"
	case DialectOracle:
		prefix = ":"
	case DialectMSSQL:
		prefix = "@p"
	default:
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteString(prefix)
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// QuoteIdentifier quotes name for use in generated SQL.
func (d Dialect) QuoteIdentifier(name string) string {
	switch d {
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DialectMSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}
