package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
)

// Extension customizes a driver at registration time. Base, when set,
// replaces the implementation the driver is built on; Behaviors override
// individual capability flags.
type Extension struct {
	Key       string          `yaml:"-"`
	Driver    types.FieldType `yaml:"driver"`
	Base      types.FieldType `yaml:"base"`
	Behaviors types.Behaviors `yaml:"behaviors"`
}

var knownBehaviors = map[types.Behavior]struct{}{
	types.BehaviorIsACLReducible:               {},
	types.BehaviorIsNotificationEventCondition: {},
	types.BehaviorIsFiltrable:                  {},
	types.BehaviorIsStatsCondition:             {},
	types.BehaviorIsCustomerInterfaceCapable:   {},
	types.BehaviorIsLikeOperatorCapable:        {},
	types.BehaviorIsSetCapable:                 {},
}

// Registry builds drivers and keeps them by field type. Drivers are immutable
// once built.
type Registry struct {
	deps    Deps
	bases   map[types.FieldType]fieldKind
	mu      sync.RWMutex
	drivers map[types.FieldType]Driver
}

// NewRegistry returns a registry with every built-in field type registered
// without extensions.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		deps:    deps.withDefaults(),
		bases:   builtinKinds(),
		drivers: make(map[types.FieldType]Driver),
	}
	for fieldType := range r.bases {
		d, err := r.build(fieldType, nil)
		if err != nil {
			panic(err)
		}
		r.drivers[fieldType] = d
	}
	return r
}

func (r *Registry) Deps() Deps { return r.deps }

// Register (re)builds the driver for fieldType with the given extensions.
// A field type that is not built in needs an extension naming its base. Any
// extension error aborts the registration and leaves the previous driver in
// place.
func (r *Registry) Register(fieldType types.FieldType, extensions ...Extension) (Driver, error) {
	d, err := r.build(fieldType, extensions)
	if err != nil {
		r.deps.Logger.Errorw("dynamic field driver construction failed", "field_type", string(fieldType), "error", err)
		return nil, err
	}
	r.mu.Lock()
	r.drivers[fieldType] = d
	r.mu.Unlock()
	return d, nil
}

func (r *Registry) build(fieldType types.FieldType, extensions []Extension) (Driver, error) {
	sorted := append([]Extension(nil), extensions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	kind, ok := r.bases[fieldType]
	for _, ext := range sorted {
		if ext.Driver != "" && ext.Driver != fieldType {
			return nil, fmt.Errorf("%w: extension %q targets %s", ErrExtensionDriverMismatch, ext.Key, ext.Driver)
		}
		if ext.Base == "" {
			continue
		}
		base, found := r.bases[ext.Base]
		if !found {
			return nil, fmt.Errorf("%w: extension %q base %s", ErrExtensionBaseUnknown, ext.Key, ext.Base)
		}
		kind, ok = base, true
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotRegistered, fieldType)
	}

	behaviors := kind.behaviors()
	for _, ext := range sorted {
		for name := range ext.Behaviors {
			if _, known := knownBehaviors[name]; !known {
				return nil, fmt.Errorf("%w: extension %q behavior %s", ErrExtensionBehaviorUnknown, ext.Key, name)
			}
		}
		behaviors = behaviors.Merge(ext.Behaviors)
	}

	desc := types.NewDescriptor(fieldType, kind.valueKey(), kind.column(), kind.cssClass(), behaviors)
	return newFieldDriver(desc, kind, r.deps), nil
}

func (r *Registry) Get(fieldType types.FieldType) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[fieldType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotRegistered, fieldType)
	}
	return d, nil
}

// FieldTypes lists the registered field types, sorted.
func (r *Registry) FieldTypes() []types.FieldType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.FieldType, 0, len(r.drivers))
	for ft := range r.drivers {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RegisterExtensions groups extensions by their driver and registers each
// group. The first failure is returned.
func (r *Registry) RegisterExtensions(extensions map[string]Extension) error {
	byDriver := make(map[types.FieldType][]Extension)
	for key, ext := range extensions {
		ext.Key = key
		if ext.Driver == "" {
			return fmt.Errorf("%w: extension %q has no driver", ErrExtensionDriverMismatch, key)
		}
		byDriver[ext.Driver] = append(byDriver[ext.Driver], ext)
	}
	drivers := make([]types.FieldType, 0, len(byDriver))
	for ft := range byDriver {
		drivers = append(drivers, ft)
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i] < drivers[j] })
	for _, ft := range drivers {
		if _, err := r.Register(ft, byDriver[ft]...); err != nil {
			return err
		}
	}
	return nil
}
