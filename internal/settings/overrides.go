package settings

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Overrides adjusts the built-in settings from a YAML file:
//
//	disable:
//	  - compile_expressions
//	values:
//	  server:
//	    max_threads: ["1", "2"]
type Overrides struct {
	Disable []string                       `yaml:"disable"`
	Values  map[string]map[string][]string `yaml:"values"`
}

// LoadOverrides reads overrides from path.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return &o, nil
}

// UnknownCategoryError is returned for an override naming no category.
type UnknownCategoryError struct {
	Name string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown settings category %q", e.Name)
}

// Apply returns a new source with the overrides applied. Disabled names are
// removed from every category; listed values replace the generator of an
// existing setting or add a new one.
func (s *Source) Apply(o *Overrides) (*Source, error) {
	tables := make(map[Category][]Setting, len(s.byCategory))
	for cat, list := range s.byCategory {
		tables[cat] = slices.DeleteFunc(slices.Clone(list), func(st Setting) bool {
			return slices.Contains(o.Disable, st.Name)
		})
	}

	for _, catName := range slices.Sorted(maps.Keys(o.Values)) {
		cat, ok := ParseCategory(catName)
		if !ok {
			return nil, &UnknownCategoryError{Name: catName}
		}
		values := o.Values[catName]
		for _, name := range slices.Sorted(maps.Keys(values)) {
			if len(values[name]) == 0 {
				continue
			}
			gen := Choice(values[name]...)
			list := tables[cat]
			i := slices.IndexFunc(list, func(st Setting) bool { return st.Name == name })
			if i >= 0 {
				list[i].Generate = gen
			} else {
				list = append(list, Setting{Name: name, Generate: gen})
			}
			tables[cat] = list
		}
	}
	return NewSource(tables), nil
}
