package types

import "sort"

type Behavior string

const (
	BehaviorIsACLReducible               Behavior = "IsACLReducible"
	BehaviorIsNotificationEventCondition Behavior = "IsNotificationEventCondition"
	BehaviorIsFiltrable                  Behavior = "IsFiltrable"
	BehaviorIsStatsCondition             Behavior = "IsStatsCondition"
	BehaviorIsCustomerInterfaceCapable   Behavior = "IsCustomerInterfaceCapable"
	BehaviorIsLikeOperatorCapable        Behavior = "IsLikeOperatorCapable"
	BehaviorIsSetCapable                 Behavior = "IsSetCapable"
)

type Behaviors map[Behavior]bool

func (b Behaviors) Clone() Behaviors {
	out := make(Behaviors, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Merge copies the flags of other over b; other wins on conflict.
func (b Behaviors) Merge(other Behaviors) Behaviors {
	out := b.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (b Behaviors) Keys() []Behavior {
	out := make([]Behavior, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Descriptor is the merged, immutable capability record of a driver.
type Descriptor struct {
	FieldType      FieldType
	ValueKey       string
	TableAttribute ValueColumn
	FieldCSSClass  string
	behaviors      Behaviors
}

func NewDescriptor(fieldType FieldType, valueKey string, column ValueColumn, cssClass string, behaviors Behaviors) Descriptor {
	return Descriptor{
		FieldType:      fieldType,
		ValueKey:       valueKey,
		TableAttribute: column,
		FieldCSSClass:  cssClass,
		behaviors:      behaviors.Clone(),
	}
}

func (d Descriptor) HasBehavior(name Behavior) bool {
	return d.behaviors[name]
}

func (d Descriptor) Behaviors() Behaviors {
	return d.behaviors.Clone()
}
