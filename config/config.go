// Package config loads machine definition files.
//
// A definitions file is YAML with named machine entries. The package is
// a dumb codec: semantic validation of key specs happens in the machine
// layer, where a malformed spec must fail before any remote side effect.
package config

import (
	"fmt"
	"os"
	"sort"

	"machinist"

	"gopkg.in/yaml.v3"
)

// Definitions holds the pre-parsed machine records of one file.
type Definitions struct {
	Machines map[string]machinist.Definition `yaml:"machines"`
}

// Load reads and parses a definitions file.
func Load(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	if defs.Machines == nil {
		defs.Machines = make(map[string]machinist.Definition)
	}
	return &defs, nil
}

// Machine returns the definition for one named machine.
func (d *Definitions) Machine(name string) (machinist.Definition, error) {
	defn, ok := d.Machines[name]
	if !ok {
		return machinist.Definition{}, fmt.Errorf("machine %q not defined", name)
	}
	if defn.TargetHost == "" {
		return machinist.Definition{}, fmt.Errorf("machine %q has no targetHost", name)
	}
	return defn, nil
}

// Names returns the defined machine names, sorted.
func (d *Definitions) Names() []string {
	names := make([]string, 0, len(d.Machines))
	for name := range d.Machines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
