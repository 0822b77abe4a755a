// Copyright 2025 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jsdep

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"chainguard.dev/jsdep/pkg/npm/resolver"
)

// Config is the YAML configuration accepted by the CLI. Requirements are a
// structured list in a fixed grammar; configuration text is never evaluated.
type Config struct {
	Requirements      []RequirementEntry `yaml:"requirements"`
	OutputDirectory   string             `yaml:"output-directory,omitempty"`
	SymlinkDirectory  string             `yaml:"symlink-directory,omitempty"`
	ValidateChecksums *bool              `yaml:"validate-checksums,omitempty"`
	Registry          string             `yaml:"registry,omitempty"`
	Lockfile          string             `yaml:"lockfile,omitempty"`
}

// RequirementEntry is one configured requirement. It unmarshals from either
// a requirement string in the "name[op version]" grammar or a single
// "name: constraint" mapping.
type RequirementEntry struct {
	Name       string
	Constraint string
}

func (r *RequirementEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		req, err := resolver.ParseRequirement(s)
		if err != nil {
			return err
		}
		r.Name, r.Constraint = req.Name, req.Constraint
		return nil

	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		if len(m) != 1 {
			return fmt.Errorf("requirement mapping must have exactly one entry, got %d", len(m))
		}
		for name, constraint := range m {
			r.Name, r.Constraint = name, constraint
		}
		return nil
	}
	return fmt.Errorf("requirement must be a string or a \"name: constraint\" pair")
}

// LoadConfig reads and parses a config file. Unknown keys are an error, to
// catch typos like "requirments".
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var c Config
	if err := strictUnmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &c, nil
}

func strictUnmarshal(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ParsedRequirements converts the configured entries to resolver
// requirements.
func (c *Config) ParsedRequirements() []resolver.Requirement {
	reqs := make([]resolver.Requirement, 0, len(c.Requirements))
	for _, e := range c.Requirements {
		reqs = append(reqs, resolver.Requirement{Name: e.Name, Constraint: e.Constraint})
	}
	return reqs
}
