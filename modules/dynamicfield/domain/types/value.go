package types

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrValueJSON = errors.New("dynamic_field_value_json_invalid")

// Scalar is one stored value item. The zero Scalar is NULL.
type Scalar struct {
	text  string
	valid bool
}

func String(s string) Scalar { return Scalar{text: s, valid: true} }

func Null() Scalar { return Scalar{} }

func ScalarFromPtr(p *string) Scalar {
	if p == nil {
		return Null()
	}
	return String(*p)
}

func (s Scalar) IsNull() bool { return !s.valid }

// String returns the text of s, "" for NULL.
func (s Scalar) String() string { return s.text }

func (s Scalar) Equal(o Scalar) bool { return s == o }

func (s Scalar) Ptr() *string {
	if !s.valid {
		return nil
	}
	v := s.text
	return &v
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.text)
}

func (s *Scalar) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = Null()
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return ErrValueJSON
	}
	*s = String(v)
	return nil
}

type ValueKind uint8

const (
	KindUndefined ValueKind = iota
	KindScalar
	KindSequence
	KindSets
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindSets:
		return "sets"
	default:
		return "undefined"
	}
}

// Value is the logical value of a dynamic field: undefined, a single item,
// an ordered sequence (multi-value) or a sequence of groups (set fields).
type Value struct {
	kind  ValueKind
	item  Scalar
	items []Scalar
	sets  [][]Scalar
}

func Undefined() Value { return Value{} }

func Single(s Scalar) Value { return Value{kind: KindScalar, item: s} }

func Text(s string) Value { return Single(String(s)) }

func Sequence(items ...Scalar) Value {
	out := make([]Scalar, len(items))
	copy(out, items)
	return Value{kind: KindSequence, items: out}
}

func Texts(ss ...string) Value {
	out := make([]Scalar, 0, len(ss))
	for _, s := range ss {
		out = append(out, String(s))
	}
	return Value{kind: KindSequence, items: out}
}

func Sets(groups ...[]Scalar) Value {
	out := make([][]Scalar, 0, len(groups))
	for _, g := range groups {
		out = append(out, append(make([]Scalar, 0, len(g)), g...))
	}
	return Value{kind: KindSets, sets: out}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsEmpty reports whether v carries no item at all: undefined, an empty
// sequence or an empty set list.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindUndefined:
		return true
	case KindSequence:
		return len(v.items) == 0
	case KindSets:
		return len(v.sets) == 0
	default:
		return false
	}
}

func (v Value) Scalar() Scalar { return v.item }

func (v Value) Items() []Scalar {
	return append([]Scalar(nil), v.items...)
}

func (v Value) Sets() [][]Scalar {
	out := make([][]Scalar, 0, len(v.sets))
	for _, g := range v.sets {
		out = append(out, append([]Scalar(nil), g...))
	}
	return out
}

// Flatten lists all items in storage order.
func (v Value) Flatten() []Scalar {
	switch v.kind {
	case KindScalar:
		return []Scalar{v.item}
	case KindSequence:
		return v.Items()
	case KindSets:
		out := make([]Scalar, 0)
		for _, g := range v.sets {
			out = append(out, g...)
		}
		return out
	default:
		return nil
	}
}

func (v Value) Strings() []string {
	items := v.Flatten()
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.String())
	}
	return out
}

// Equal is strict structural equality, kind included.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.item == o.item
	case KindSequence:
		return scalarsEqual(v.items, o.items)
	case KindSets:
		if len(v.sets) != len(o.sets) {
			return false
		}
		for i := range v.sets {
			if !scalarsEqual(v.sets[i], o.sets[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func scalarsEqual(a, b []Scalar) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.item)
	case KindSequence:
		return json.Marshal(v.items)
	case KindSets:
		return json.Marshal(v.sets)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a string, an array of strings/nulls or an array
// of such arrays. An empty array decodes as an empty sequence.
func (v *Value) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = Undefined()
		return nil
	}
	if trimmed[0] != '[' {
		var s Scalar
		if err := s.UnmarshalJSON(trimmed); err != nil {
			return err
		}
		*v = Single(s)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return ErrValueJSON
	}
	if len(raw) > 0 {
		first := bytes.TrimSpace(raw[0])
		if len(first) > 0 && first[0] == '[' {
			groups := make([][]Scalar, 0, len(raw))
			for _, r := range raw {
				var g []Scalar
				if err := json.Unmarshal(r, &g); err != nil {
					return ErrValueJSON
				}
				groups = append(groups, g)
			}
			*v = Sets(groups...)
			return nil
		}
	}
	items := make([]Scalar, 0, len(raw))
	for _, r := range raw {
		var s Scalar
		if err := s.UnmarshalJSON(r); err != nil {
			return err
		}
		items = append(items, s)
	}
	*v = Sequence(items...)
	return nil
}
