package persistence

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/valuecodec"
)

type valueKey struct {
	fieldID  int64
	objectID int64
}

// ValueMemoryStore keeps rows in process memory. It backs the server when no
// database is configured and the service tests.
type ValueMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[valueKey][]types.ValueRow
	// history keeps every value ever written per field, like a table that
	// outlives deleted objects would through its audit trail.
	history map[int64][]types.ValueRow
}

func NewValueMemoryStore() *ValueMemoryStore {
	return &ValueMemoryStore{
		rows:    make(map[valueKey][]types.ValueRow),
		history: make(map[int64][]types.ValueRow),
	}
}

var _ ports.ValueStore = (*ValueMemoryStore)(nil)

func (s *ValueMemoryStore) ValueGet(_ context.Context, fieldID int64, objectID int64) ([]types.ValueRow, error) {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRows(s.rows[valueKey{fieldID: fieldID, objectID: objectID}]), nil
}

func (s *ValueMemoryStore) ValueSet(_ context.Context, fieldID int64, objectID int64, rows []types.ValueRow, _ int64) error {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return err
	}
	next := cloneRows(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range next {
		s.nextID++
		next[i].ID = s.nextID
		next[i].FieldID = fieldID
		next[i].ObjectID = objectID
	}
	key := valueKey{fieldID: fieldID, objectID: objectID}
	if len(next) == 0 {
		delete(s.rows, key)
		return nil
	}
	s.rows[key] = next
	s.history[fieldID] = append(s.history[fieldID], cloneRows(next)...)
	return nil
}

func (s *ValueMemoryStore) ValueDelete(_ context.Context, fieldID int64, objectID int64) error {
	if err := ports.ValidateIdentity(fieldID, objectID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, valueKey{fieldID: fieldID, objectID: objectID})
	return nil
}

func (s *ValueMemoryStore) AllValuesDelete(_ context.Context, fieldID int64) error {
	if fieldID <= 0 {
		return ports.ErrFieldIDInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.rows {
		if key.fieldID == fieldID {
			delete(s.rows, key)
		}
	}
	delete(s.history, fieldID)
	return nil
}

func (s *ValueMemoryStore) ObjectValuesDelete(_ context.Context, objectID int64) error {
	if objectID <= 0 {
		return ports.ErrObjectIDInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.rows {
		if key.objectID == objectID {
			delete(s.rows, key)
		}
	}
	return nil
}

func (s *ValueMemoryStore) HistoricalValuesGet(_ context.Context, fieldID int64, column types.ValueColumn) ([]string, error) {
	if fieldID <= 0 {
		return nil, ports.ErrFieldIDInvalid
	}
	if !column.Valid() {
		return nil, ports.ErrColumnInvalid
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, row := range s.history[fieldID] {
		if row.IsNull(column) {
			continue
		}
		item, err := valuecodec.DecodeItem(row, column)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[item.String()]; ok {
			continue
		}
		seen[item.String()] = struct{}{}
		out = append(out, item.String())
	}
	sortHistorical(out, column)
	return out, nil
}

func sortHistorical(values []string, column types.ValueColumn) {
	if column != types.ColumnInt {
		sort.Strings(values)
		return
	}
	sort.Slice(values, func(i, j int) bool {
		a, _ := strconv.ParseInt(values[i], 10, 64)
		b, _ := strconv.ParseInt(values[j], 10, 64)
		return a < b
	})
}

func cloneRows(rows []types.ValueRow) []types.ValueRow {
	if len(rows) == 0 {
		return nil
	}
	out := make([]types.ValueRow, 0, len(rows))
	for _, row := range rows {
		if row.ValueText != nil {
			v := *row.ValueText
			row.ValueText = &v
		}
		if row.ValueDate != nil {
			v := *row.ValueDate
			row.ValueDate = &v
		}
		if row.ValueInt != nil {
			v := *row.ValueInt
			row.ValueInt = &v
		}
		out = append(out, row)
	}
	return out
}
