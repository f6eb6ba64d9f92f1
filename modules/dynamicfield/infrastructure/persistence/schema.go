package persistence

import (
	"strings"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/pkg/sqlpredicate"
)

// ValueTable is the physical table of dynamic field values; TableAlias is the
// alias search predicates are built against.
const (
	ValueTable = "dynamic_field_value"
	TableAlias = ports.ValueTableAlias
)

// SchemaSQL returns the bootstrap DDL statements for dialect.
func SchemaSQL(dialect sqlpredicate.Dialect) []string {
	switch dialect {
	case sqlpredicate.DialectPostgreSQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS dynamic_field_value (
  id BIGSERIAL PRIMARY KEY,
  field_id BIGINT NOT NULL,
  object_id BIGINT NOT NULL,
  value_text TEXT NULL,
  value_date TIMESTAMP NULL,
  value_int BIGINT NULL,
  index_value SMALLINT NOT NULL DEFAULT 0,
  index_set SMALLINT NOT NULL DEFAULT 0,
  CONSTRAINT dynamic_field_value_identity UNIQUE (field_id, object_id, index_set, index_value)
)`,
			`CREATE INDEX IF NOT EXISTS dynamic_field_value_search_text ON dynamic_field_value (field_id, value_text)`,
			`CREATE INDEX IF NOT EXISTS dynamic_field_value_object ON dynamic_field_value (object_id)`,
		}
	case sqlpredicate.DialectMySQL:
		return []string{
			"CREATE TABLE IF NOT EXISTS dynamic_field_value (\n" +
				"  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
				"  field_id BIGINT NOT NULL,\n" +
				"  object_id BIGINT NOT NULL,\n" +
				"  value_text MEDIUMTEXT NULL,\n" +
				"  value_date DATETIME NULL,\n" +
				"  value_int BIGINT NULL,\n" +
				"  index_value SMALLINT NOT NULL DEFAULT 0,\n" +
				"  index_set SMALLINT NOT NULL DEFAULT 0,\n" +
				"  UNIQUE KEY dynamic_field_value_identity (field_id, object_id, index_set, index_value),\n" +
				"  KEY dynamic_field_value_search_text (field_id, value_text(150)),\n" +
				"  KEY dynamic_field_value_object (object_id)\n" +
				")",
		}
	case sqlpredicate.DialectMSSQL:
		return []string{
			`CREATE TABLE dynamic_field_value (
  id BIGINT IDENTITY(1,1) PRIMARY KEY,
  field_id BIGINT NOT NULL,
  object_id BIGINT NOT NULL,
  value_text NVARCHAR(MAX) NULL,
  value_date DATETIME2 NULL,
  value_int BIGINT NULL,
  index_value SMALLINT NOT NULL DEFAULT 0,
  index_set SMALLINT NOT NULL DEFAULT 0,
  CONSTRAINT dynamic_field_value_identity UNIQUE (field_id, object_id, index_set, index_value)
)`,
		}
	case sqlpredicate.DialectOracle:
		return []string{
			`CREATE TABLE dynamic_field_value (
  id NUMBER(20) GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  field_id NUMBER(20) NOT NULL,
  object_id NUMBER(20) NOT NULL,
  value_text CLOB NULL,
  value_date DATE NULL,
  value_int NUMBER(20) NULL,
  index_value NUMBER(5) DEFAULT 0 NOT NULL,
  index_set NUMBER(5) DEFAULT 0 NOT NULL,
  CONSTRAINT dynamic_field_value_identity UNIQUE (field_id, object_id, index_set, index_value)
)`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS dynamic_field_value (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  field_id INTEGER NOT NULL,
  object_id INTEGER NOT NULL,
  value_text TEXT NULL,
  value_date DATETIME NULL,
  value_int INTEGER NULL,
  index_value SMALLINT NOT NULL DEFAULT 0,
  index_set SMALLINT NOT NULL DEFAULT 0,
  UNIQUE (field_id, object_id, index_set, index_value)
)`,
			`CREATE INDEX IF NOT EXISTS dynamic_field_value_search_text ON dynamic_field_value (field_id, value_text)`,
			`CREATE INDEX IF NOT EXISTS dynamic_field_value_object ON dynamic_field_value (object_id)`,
		}
	}
}

func SchemaScript(dialect sqlpredicate.Dialect) string {
	return strings.Join(SchemaSQL(dialect), ";\n") + ";\n"
}
