package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/infrastructure/persistence"
	"github.com/jacksonlee411/dynfield/pkg/logging"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Store is a value store together with the dialect its search predicates
// are built for.
type Store struct {
	Values  ports.ValueStore
	Dialect sqlpredicate.Dialect
	close   func()
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore connects the value store selected by DB_DRIVER. SQL stores get
// their schema created when missing.
func OpenStore(ctx context.Context, logger *zap.SugaredLogger) (*Store, error) {
	logger = logging.OrNop(logger)
	driver := dbDriverFromEnv()
	if driver == driverMemory {
		logger.Warnw("using in-memory value store; values are lost on exit")
		return &Store{Values: persistence.NewValueMemoryStore(), Dialect: sqlpredicate.DialectPostgreSQL}, nil
	}
	dialect, err := dbDialectFromEnv(driver)
	if err != nil {
		return nil, fmt.Errorf("server: DB_DIALECT: %w", err)
	}

	switch driver {
	case driverPGX:
		pool, err := pgxpool.New(ctx, dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		logger.Infow("value store opened", "driver", driver, "dialect", string(dialect))
		return &Store{Values: persistence.NewValuePGStore(pool), Dialect: dialect, close: pool.Close}, nil

	case driverSQLite, driverMySQL:
		dsn := sqliteDSNFromEnv()
		if driver == driverMySQL {
			dsn = mysqlDSNFromEnv()
		}
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, err
		}
		if driver == driverSQLite {
			db.SetMaxOpenConns(1)
		}
		store := persistence.NewValueSQLStore(db, dialect)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Infow("value store opened", "driver", driver, "dialect", string(dialect))
		return &Store{Values: store, Dialect: dialect, close: func() { _ = db.Close() }}, nil

	default:
		return nil, fmt.Errorf("server: unsupported DB_DRIVER %q (expected pgx|sqlite|mysql|memory)", driver)
	}
}
