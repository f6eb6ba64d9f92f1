package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/ports"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
)

func TestValueMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewValueMemoryStore()

	in := []types.ValueRow{{ValueText: strPtr("b")}, {ValueIndex: 1, ValueText: strPtr("a")}}
	if err := s.ValueSet(ctx, 1, 2, in, 0); err != nil {
		t.Fatalf("err=%v", err)
	}
	*in[0].ValueText = "mutated"

	got, err := s.ValueGet(ctx, 1, 2)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got) != 2 || *got[0].ValueText != "b" || got[1].FieldID != 1 || got[1].ObjectID != 2 {
		t.Fatalf("got=%+v", got)
	}

	if err := s.ValueSet(ctx, 1, 3, []types.ValueRow{{ValueText: strPtr("c")}}, 0); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := s.ObjectValuesDelete(ctx, 3); err != nil {
		t.Fatalf("err=%v", err)
	}
	hist, err := s.HistoricalValuesGet(ctx, 1, types.ColumnText)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, hist); diff != "" {
		t.Fatalf("historical (-want +got):\n%s", diff)
	}

	if err := s.ValueSet(ctx, 1, 2, nil, 0); err != nil {
		t.Fatalf("err=%v", err)
	}
	if got, _ := s.ValueGet(ctx, 1, 2); got != nil {
		t.Fatalf("got=%+v", got)
	}
	if _, err := s.ValueGet(ctx, 1, 0); !errors.Is(err, ports.ErrObjectIDInvalid) {
		t.Fatalf("err=%v", err)
	}
}
