// Package registry reads the list of named datasets a batch can load.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/sdohload/internal/schema"
)

// Dataset is one registry entry
type Dataset struct {
	Name        string `yaml:"name"`
	Source      string `yaml:"source"`
	Version     string `yaml:"version"`
	CensusYear  int    `yaml:"census_year"`
	Granularity string `yaml:"granularity"`
	GeoIDColumn string `yaml:"geo_id_column"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
	Descriptor  string `yaml:"descriptor"`
	Data        string `yaml:"data"`
}

// Registry is an ordered list of datasets
type Registry struct {
	Datasets []Dataset `yaml:"datasets"`
}

// Load reads and validates a registry file
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates registry YAML. Unknown fields are rejected.
func Parse(raw []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var r Registry
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks that every entry is complete and names are unique
func (r *Registry) Validate() error {
	if len(r.Datasets) == 0 {
		return errors.New("registry lists no datasets")
	}
	seen := make(map[string]bool, len(r.Datasets))
	for i, d := range r.Datasets {
		if d.Name == "" {
			return fmt.Errorf("dataset %d: name is required", i+1)
		}
		if seen[d.Name] {
			return fmt.Errorf("dataset %s is listed twice", d.Name)
		}
		seen[d.Name] = true

		var missing []string
		for field, v := range map[string]string{
			"source":        d.Source,
			"version":       d.Version,
			"granularity":   d.Granularity,
			"geo_id_column": d.GeoIDColumn,
			"descriptor":    d.Descriptor,
			"data":          d.Data,
		} {
			if v == "" {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("dataset %s: missing %s", d.Name, strings.Join(missing, ", "))
		}
	}
	return nil
}

// Names returns the dataset names in registry order
func (r *Registry) Names() []string {
	names := make([]string, len(r.Datasets))
	for i, d := range r.Datasets {
		names[i] = d.Name
	}
	return names
}

// Select returns the named datasets in the order given. No names selects all.
func (r *Registry) Select(names []string) ([]Dataset, error) {
	if len(names) == 0 {
		return append([]Dataset(nil), r.Datasets...), nil
	}
	out := make([]Dataset, 0, len(names))
	for _, n := range names {
		d, ok := r.lookup(n)
		if !ok {
			return nil, fmt.Errorf("%s is not a valid SDoH dataset (valid: %s)", n, strings.Join(r.Names(), ", "))
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *Registry) lookup(name string) (Dataset, bool) {
	for _, d := range r.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// Key returns the dataset key the entry loads into
func (d Dataset) Key() schema.DatasetKey {
	return schema.DatasetKey{Source: d.Source, Version: d.Version, Granularity: schema.Granularity(d.Granularity)}
}
