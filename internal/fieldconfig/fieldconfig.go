// Package fieldconfig loads dynamic field definitions and driver extensions
// from YAML files.
package fieldconfig

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jacksonlee411/dynfield/modules/dynamicfield/domain/types"
	"github.com/jacksonlee411/dynfield/modules/dynamicfield/services"
	"gopkg.in/yaml.v3"
)

var (
	ErrFieldNotFound      = errors.New("dynamic_field_not_found")
	ErrUnsupportedVersion = errors.New("fieldconfig: unsupported version")
	ErrMissingFields      = errors.New("fieldconfig: missing fields")
	ErrInvalidField       = errors.New("fieldconfig: invalid field")
)

type file struct {
	Version int            `yaml:"version"`
	Fields  []types.Config `yaml:"fields"`
}

type extensionFile struct {
	Version    int                           `yaml:"version"`
	Extensions map[string]services.Extension `yaml:"extensions"`
}

// Catalog is an immutable set of field definitions addressable by name and id.
type Catalog struct {
	fields []types.Config
	byName map[string]int
	byID   map[int64]int
}

func Parse(b []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Version != 1 {
		return nil, ErrUnsupportedVersion
	}
	if f.Fields == nil {
		return nil, ErrMissingFields
	}
	return NewCatalog(f.Fields)
}

func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// NewCatalog checks fields for unique positive ids, unique names and a field
// type. Fields are kept ordered by FieldOrder, then ID.
func NewCatalog(fields []types.Config) (*Catalog, error) {
	c := &Catalog{
		fields: make([]types.Config, 0, len(fields)),
		byName: make(map[string]int, len(fields)),
		byID:   make(map[int64]int, len(fields)),
	}
	for _, f := range fields {
		f.Name = types.NormalizeFieldName(f.Name)
		switch {
		case f.ID <= 0:
			return nil, fmt.Errorf("%w: %q has no positive id", ErrInvalidField, f.Name)
		case f.Name == "":
			return nil, fmt.Errorf("%w: field %d has no name", ErrInvalidField, f.ID)
		case strings.TrimSpace(string(f.FieldType)) == "":
			return nil, fmt.Errorf("%w: %q has no field_type", ErrInvalidField, f.Name)
		}
		c.fields = append(c.fields, f.Clone())
	}
	sort.SliceStable(c.fields, func(i, j int) bool {
		if c.fields[i].FieldOrder != c.fields[j].FieldOrder {
			return c.fields[i].FieldOrder < c.fields[j].FieldOrder
		}
		return c.fields[i].ID < c.fields[j].ID
	})
	for i, f := range c.fields {
		if _, dup := c.byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidField, f.Name)
		}
		if _, dup := c.byID[f.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidField, f.ID)
		}
		c.byName[f.Name] = i
		c.byID[f.ID] = i
	}
	return c, nil
}

// Field looks a field up by name; the "DynamicField_" prefix is optional.
func (c *Catalog) Field(name string) (types.Config, error) {
	i, ok := c.byName[types.NormalizeFieldName(name)]
	if !ok {
		return types.Config{}, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	return c.fields[i].Clone(), nil
}

func (c *Catalog) FieldByID(id int64) (types.Config, error) {
	i, ok := c.byID[id]
	if !ok {
		return types.Config{}, fmt.Errorf("%w: id %d", ErrFieldNotFound, id)
	}
	return c.fields[i].Clone(), nil
}

// Fields returns the definitions, optionally restricted to one object type.
func (c *Catalog) Fields(objectType string) []types.Config {
	out := make([]types.Config, 0, len(c.fields))
	for _, f := range c.fields {
		if objectType != "" && f.ObjectType != objectType {
			continue
		}
		out = append(out, f.Clone())
	}
	return out
}

// CheckDrivers reports the first field whose type has no driver in reg.
func (c *Catalog) CheckDrivers(reg *services.Registry) error {
	for _, f := range c.fields {
		if _, err := reg.Get(f.FieldType); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

// ParseExtensions reads an extension file. The version key is optional and
// must be 1 when present.
func ParseExtensions(b []byte) (map[string]services.Extension, error) {
	var f extensionFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Version != 0 && f.Version != 1 {
		return nil, ErrUnsupportedVersion
	}
	if f.Extensions == nil {
		return nil, errors.New("fieldconfig: missing extensions")
	}
	out := make(map[string]services.Extension, len(f.Extensions))
	for key, ext := range f.Extensions {
		ext.Key = key
		out[key] = ext
	}
	return out, nil
}

func LoadExtensions(path string) (map[string]services.Extension, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseExtensions(b)
}
