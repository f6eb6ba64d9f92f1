// Package valuecodec converts between logical dynamic field values and the
// flat rows of dynamic_field_value.
//
// Shapes:
//
//	single             one row at (0, 0)
//	multi-value        one row per item, ValueIndex 0..N-1
//	set                one row per group, SetIndex 0..N-1, ValueIndex 0
//	set + multi-value  SetIndex 0..N-1, each group indexed 0..M-1
//
// NULL items are written as NULL rows so the row count always matches the
// caller's cardinality. An empty group of a set field is written as a single
// NULL row. For set + multi-value fields such a group reads back as empty.
package valuecodec

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
)

var (
	ErrValueShape  = errors.New("dynamic_field_value_shape_invalid")
	ErrItemInvalid = errors.New("dynamic_field_value_item_invalid")
	ErrColumn      = errors.New("dynamic_field_value_column_invalid")
)

var dateLayouts = []string{types.DateTimeLayout, "2006-01-02T15:04:05Z07:00", "2006-01-02"}

func ToRows(v types.Value, column types.ValueColumn, isMultiValue bool, isSet bool) ([]types.ValueRow, error) {
	if !column.Valid() {
		return nil, ErrColumn
	}
	if v.IsUndefined() {
		return nil, nil
	}

	switch {
	case isSet:
		if v.Kind() != types.KindSets {
			return nil, fmt.Errorf("%w: set field expects sets, got %s", ErrValueShape, v.Kind())
		}
		rows := make([]types.ValueRow, 0)
		for setIndex, group := range v.Sets() {
			if !isMultiValue && len(group) > 1 {
				return nil, fmt.Errorf("%w: group %d has %d items", ErrValueShape, setIndex, len(group))
			}
			if len(group) == 0 {
				group = []types.Scalar{types.Null()}
			}
			for valueIndex, item := range group {
				row, err := EncodeItem(item, column)
				if err != nil {
					return nil, err
				}
				row.SetIndex = setIndex
				row.ValueIndex = valueIndex
				rows = append(rows, row)
			}
		}
		return rows, nil

	case isMultiValue:
		var items []types.Scalar
		switch v.Kind() {
		case types.KindSequence:
			items = v.Items()
		case types.KindScalar:
			items = []types.Scalar{v.Scalar()}
		default:
			return nil, fmt.Errorf("%w: multi-value field expects a sequence, got %s", ErrValueShape, v.Kind())
		}
		rows := make([]types.ValueRow, 0, len(items))
		for i, item := range items {
			row, err := EncodeItem(item, column)
			if err != nil {
				return nil, err
			}
			row.ValueIndex = i
			rows = append(rows, row)
		}
		return rows, nil

	default:
		if v.Kind() != types.KindScalar {
			return nil, fmt.Errorf("%w: single-value field expects a scalar, got %s", ErrValueShape, v.Kind())
		}
		row, err := EncodeItem(v.Scalar(), column)
		if err != nil {
			return nil, err
		}
		return []types.ValueRow{row}, nil
	}
}

func FromRows(rows []types.ValueRow, column types.ValueColumn, isMultiValue bool, isSet bool) (types.Value, error) {
	if !column.Valid() {
		return types.Undefined(), ErrColumn
	}
	sorted := append([]types.ValueRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SetIndex != sorted[j].SetIndex {
			return sorted[i].SetIndex < sorted[j].SetIndex
		}
		return sorted[i].ValueIndex < sorted[j].ValueIndex
	})

	switch {
	case isSet:
		if len(sorted) == 0 {
			return types.Sets(), nil
		}
		if sorted[0].SetIndex < 0 {
			return types.Undefined(), fmt.Errorf("%w: negative set index %d", ErrValueShape, sorted[0].SetIndex)
		}
		groups := make([][]types.Scalar, sorted[len(sorted)-1].SetIndex+1)
		for i := range groups {
			groups[i] = []types.Scalar{}
		}
		for _, row := range sorted {
			item, err := DecodeItem(row, column)
			if err != nil {
				return types.Undefined(), err
			}
			if !isMultiValue && len(groups[row.SetIndex]) > 0 {
				continue
			}
			groups[row.SetIndex] = append(groups[row.SetIndex], item)
		}
		if isMultiValue {
			for i, g := range groups {
				if len(g) == 1 && g[0].IsNull() {
					groups[i] = []types.Scalar{}
				}
			}
		}
		return types.Sets(groups...), nil

	case isMultiValue:
		items := make([]types.Scalar, 0, len(sorted))
		for _, row := range sorted {
			item, err := DecodeItem(row, column)
			if err != nil {
				return types.Undefined(), err
			}
			items = append(items, item)
		}
		return types.Sequence(items...), nil

	default:
		if len(sorted) == 0 {
			return types.Undefined(), nil
		}
		item, err := DecodeItem(sorted[0], column)
		if err != nil {
			return types.Undefined(), err
		}
		return types.Single(item), nil
	}
}

// EncodeItem fills the column of a fresh row from item. For the date and int
// columns an empty string is stored as NULL.
func EncodeItem(item types.Scalar, column types.ValueColumn) (types.ValueRow, error) {
	var row types.ValueRow
	if item.IsNull() {
		return row, nil
	}
	switch column {
	case types.ColumnText:
		row.ValueText = item.Ptr()
	case types.ColumnDate:
		s := strings.TrimSpace(item.String())
		if s == "" {
			return row, nil
		}
		t, err := ParseDate(s)
		if err != nil {
			return row, err
		}
		row.ValueDate = &t
	case types.ColumnInt:
		s := strings.TrimSpace(item.String())
		if s == "" {
			return row, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return row, fmt.Errorf("%w: %q is not an integer", ErrItemInvalid, s)
		}
		row.ValueInt = &n
	default:
		return row, ErrColumn
	}
	return row, nil
}

func DecodeItem(row types.ValueRow, column types.ValueColumn) (types.Scalar, error) {
	switch column {
	case types.ColumnText:
		return types.ScalarFromPtr(row.ValueText), nil
	case types.ColumnDate:
		if row.ValueDate == nil {
			return types.Null(), nil
		}
		return types.String(row.ValueDate.Format(types.DateTimeLayout)), nil
	case types.ColumnInt:
		if row.ValueInt == nil {
			return types.Null(), nil
		}
		return types.String(strconv.FormatInt(*row.ValueInt, 10)), nil
	default:
		return types.Null(), ErrColumn
	}
}

func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrItemInvalid, s)
}
