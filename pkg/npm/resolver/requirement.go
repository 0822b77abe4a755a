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

package resolver

import (
	"fmt"
	"regexp"
	"strings"
)

// Requirement is one user-declared package requirement: a name and an
// optional version range constraint.
type Requirement struct {
	Name       string
	Constraint string
}

// requirementRegex splits "name[op version]" where op is one or more of
// the range operator characters.
var requirementRegex = regexp.MustCompile(`^([^!<>=~^ ]+) *([!<>=~^]+ *[^!<>=~^]+)?$`)

// ParseRequirement parses a requirement string such as "left-pad",
// "express>=4.0.0" or "lodash ^4.17.0" into its name and constraint parts.
func ParseRequirement(s string) (Requirement, error) {
	m := requirementRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Requirement{}, fmt.Errorf("invalid requirement %q", s)
	}
	return Requirement{
		Name:       m[1],
		Constraint: strings.TrimSpace(m[2]),
	}, nil
}

func (r Requirement) String() string {
	if r.Constraint == "" {
		return r.Name
	}
	return r.Name + r.Constraint
}
