package server

import (
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
)

const (
	driverPGX    = "pgx"
	driverSQLite = "sqlite"
	driverMySQL  = "mysql"
	driverMemory = "memory"
)

func dbDriverFromEnv() string {
	return strings.ToLower(strings.TrimSpace(getenvDefault("DB_DRIVER", driverPGX)))
}

// dbDialectFromEnv returns DB_DIALECT when set, else the dialect of driver.
func dbDialectFromEnv(driver string) (sqlpredicate.Dialect, error) {
	if v := strings.TrimSpace(os.Getenv("DB_DIALECT")); v != "" {
		return sqlpredicate.ParseDialect(v)
	}
	return sqlpredicate.ParseDialect(driver)
}

func dbDSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getenvDefault("DB_HOST", "127.0.0.1")
	port := getenvDefault("DB_PORT", "5432")
	user := getenvDefault("DB_USER", "app")
	pass := getenvDefault("DB_PASSWORD", "app")
	name := getenvDefault("DB_NAME", "dynfield")
	sslmode := getenvDefault("DB_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

// mysqlDSNFromEnv builds a go-sql-driver DSN. Dates are parsed into
// time.Time and stored in UTC.
func mysqlDSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	cfg := mysql.NewConfig()
	cfg.User = getenvDefault("DB_USER", "app")
	cfg.Passwd = getenvDefault("DB_PASSWORD", "app")
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(getenvDefault("DB_HOST", "127.0.0.1"), getenvDefault("DB_PORT", "3306"))
	cfg.DBName = getenvDefault("DB_NAME", "dynfield")
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func sqliteDSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return "file:" + getenvDefault("DB_NAME", "dynfield") + ".db?_pragma=busy_timeout(5000)"
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
