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
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// defaultRange is the constraint used when a dependency declares no range.
const defaultRange = ">=0.0.0"

// RequirementMatchError is returned when no available version of a package
// satisfies the intersection of its accumulated constraints.
type RequirementMatchError struct {
	Package    string
	Constraint string
	Available  []string
}

func (e *RequirementMatchError) Error() string {
	return fmt.Sprintf("unmatched dependency for %s: requirement %q, available versions: %s",
		e.Package, e.Constraint, strings.Join(e.Available, ", "))
}

// Constraints accumulates version range constraints per package name over
// one resolution run. Constraints only ever accumulate; the effective range
// for a package is the intersection of everything added for it.
//
// The zero value is not usable; create one with NewConstraints per run.
type Constraints struct {
	ranges map[string]map[string]struct{}
	order  map[string][]string
}

func NewConstraints() *Constraints {
	return &Constraints{
		ranges: map[string]map[string]struct{}{},
		order:  map[string][]string{},
	}
}

// Add records a range constraint for name. An empty constraint means "any
// version" and is recorded as the default open range.
func (c *Constraints) Add(name, constraint string) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		constraint = defaultRange
	}
	set, ok := c.ranges[name]
	if !ok {
		set = map[string]struct{}{}
		c.ranges[name] = set
	}
	if _, ok := set[constraint]; ok {
		return
	}
	set[constraint] = struct{}{}
	c.order[name] = append(c.order[name], constraint)
}

// Len reports how many distinct constraints have accumulated for name.
func (c *Constraints) Len(name string) int {
	return len(c.ranges[name])
}

// Expr composes the effective constraint expression for name: the comma
// join of every accumulated range, i.e. their logical AND. A name with no
// recorded constraints composes to the default open range.
func (c *Constraints) Expr(name string) string {
	parts := c.order[name]
	if len(parts) == 0 {
		return defaultRange
	}
	return strings.Join(parts, ", ")
}

// Select returns the highest version in available that satisfies every
// constraint accumulated for name. Versions that do not parse as semantic
// versions are ignored, matching the registry's habit of hosting the
// occasional malformed legacy version.
func (c *Constraints) Select(name string, available []string) (*semver.Version, error) {
	expr := c.Expr(name)
	spec, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, &RequirementMatchError{Package: name, Constraint: expr, Available: available}
	}

	versions := make([]*semver.Version, 0, len(available))
	for _, raw := range available {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Sort(semver.Collection(versions))

	for i := len(versions) - 1; i >= 0; i-- {
		if spec.Check(versions[i]) {
			return versions[i], nil
		}
	}

	sorted := make([]string, 0, len(versions))
	for _, v := range versions {
		sorted = append(sorted, v.Original())
	}
	return nil, &RequirementMatchError{Package: name, Constraint: expr, Available: sorted}
}
