package types

import "time"

// ValueColumn is the physical column a driver stores its items in.
type ValueColumn string

const (
	ColumnText ValueColumn = "value_text"
	ColumnDate ValueColumn = "value_date"
	ColumnInt  ValueColumn = "value_int"
)

func (c ValueColumn) Valid() bool {
	switch c {
	case ColumnText, ColumnDate, ColumnInt:
		return true
	default:
		return false
	}
}

// DateTimeLayout is the text form of value_date items.
const DateTimeLayout = "2006-01-02 15:04:05"

// ValueRow is one row of dynamic_field_value. Exactly one of the value
// columns is meaningful, selected by the owning driver.
type ValueRow struct {
	ID         int64
	FieldID    int64
	ObjectID   int64
	SetIndex   int
	ValueIndex int
	ValueText  *string
	ValueDate  *time.Time
	ValueInt   *int64
}

// IsNull reports whether column holds no value in r.
func (r ValueRow) IsNull(column ValueColumn) bool {
	switch column {
	case ColumnText:
		return r.ValueText == nil
	case ColumnDate:
		return r.ValueDate == nil
	case ColumnInt:
		return r.ValueInt == nil
	default:
		return true
	}
}
