package ports

import (
	"context"
	"errors"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
)

var (
	ErrFieldIDInvalid  = errors.New("dynamic_field_id_invalid")
	ErrObjectIDInvalid = errors.New("dynamic_field_object_id_invalid")
	ErrColumnInvalid   = errors.New("dynamic_field_value_column_invalid")
)

// ValueStore persists dynamic_field_value rows. It is agnostic to field
// types: row indices are produced by the caller through the value codec.
type ValueStore interface {
	ValueGet(ctx context.Context, fieldID int64, objectID int64) ([]types.ValueRow, error)
	// ValueSet replaces all rows of (fieldID, objectID) in one transaction.
	ValueSet(ctx context.Context, fieldID int64, objectID int64, rows []types.ValueRow, userID int64) error
	ValueDelete(ctx context.Context, fieldID int64, objectID int64) error
	AllValuesDelete(ctx context.Context, fieldID int64) error
	ObjectValuesDelete(ctx context.Context, objectID int64) error
	// HistoricalValuesGet returns the distinct non-null values of column
	// ever stored for fieldID, sorted.
	HistoricalValuesGet(ctx context.Context, fieldID int64, column types.ValueColumn) ([]string, error)
}

func ValidateIdentity(fieldID int64, objectID int64) error {
	if fieldID <= 0 {
		return ErrFieldIDInvalid
	}
	if objectID <= 0 {
		return ErrObjectIDInvalid
	}
	return nil
}
