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

// Package resolver computes one concrete version per package from a set of
// user-declared requirements, walking the registry dependency graph breadth
// first and accumulating range constraints as it goes.
package resolver

import (
	"context"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"chainguard.dev/jsdep/pkg/npm/registry"
)

// Resolver drives one breadth-first resolution run. It owns the constraint
// accumulation for the run; create a new Resolver (and a new registry
// client) per run.
type Resolver struct {
	client      *registry.Client
	constraints *Constraints

	// seenLen records, per package, how many constraints had accumulated
	// when the package was last resolved. A re-dequeue with no new
	// constraints selects the same version and re-registers the same
	// dependency ranges, so it can be skipped without changing the
	// outcome. This is what lets dependency cycles terminate.
	seenLen map[string]int

	order []string
}

func New(client *registry.Client) *Resolver {
	return &Resolver{
		client:      client,
		constraints: NewConstraints(),
		seenLen:     map[string]int{},
	}
}

// Order returns the sequence in which package names were dequeued and
// resolved, for diagnostics. Repeated entries mean the package was
// re-resolved after new constraints arrived.
func (r *Resolver) Order() []string {
	return r.order
}

// Constraints exposes the accumulated constraint state, mainly so callers
// can report the composed expression for a package.
func (r *Resolver) Constraints() *Constraints {
	return r.constraints
}

// Resolve walks the dependency graph starting from reqs and returns the
// selected version for every package reached.
//
// Names are processed FIFO. A package's version is selected at dequeue time
// from whatever constraints have accumulated so far; a constraint that
// arrives after a package's final dequeue does not trigger re-resolution.
// That makes the result sensitive to declaration order, which is the
// documented contract: diagnostics reference resolution order, and the
// selection for a given input is deterministic.
//
// The first unsatisfiable constraint or registry failure aborts the run.
func (r *Resolver) Resolve(ctx context.Context, reqs []Requirement) (map[string]string, error) {
	ctx, span := otel.Tracer("jsdep").Start(ctx, "Resolve")
	defer span.End()

	log := clog.FromContext(ctx)

	resolved := map[string]string{}
	queue := make([]string, 0, len(reqs))

	for _, req := range reqs {
		r.constraints.Add(req.Name, req.Constraint)
		queue = append(queue, req.Name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		if _, done := resolved[name]; done && r.constraints.Len(name) == r.seenLen[name] {
			continue
		}

		packument, err := r.client.Packument(ctx, name)
		if err != nil {
			return nil, err
		}
		available := make([]string, 0, len(packument.Versions))
		for v := range packument.Versions {
			available = append(available, v)
		}

		version, err := r.constraints.Select(name, available)
		if err != nil {
			return nil, err
		}

		resolved[name] = version.Original()
		r.seenLen[name] = r.constraints.Len(name)
		r.order = append(r.order, name)
		log.Debugf("resolved %s@%s (constraint %s)", name, version.Original(), r.constraints.Expr(name))

		manifest, err := r.client.Manifest(ctx, name, version.Original())
		if err != nil {
			return nil, err
		}
		// Dependency maps are unordered on the wire; enqueue in sorted
		// name order so traversal is reproducible run to run.
		deps := maps.Keys(manifest.Dependencies)
		slices.Sort(deps)
		for _, dep := range deps {
			r.constraints.Add(dep, manifest.Dependencies[dep])
			queue = append(queue, dep)
		}
	}

	return resolved, nil
}
