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

// Package jsdep ties the resolver, lock writer, and installer together into
// the install/update lifecycle the host orchestrator drives.
package jsdep

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/jsdep/pkg/lock"
	"chainguard.dev/jsdep/pkg/npm/installer"
	"chainguard.dev/jsdep/pkg/npm/registry"
	"chainguard.dev/jsdep/pkg/npm/resolver"
)

// JSDep resolves the configured requirements against the registry, locks
// the selection, and installs the resulting artifacts.
type JSDep struct {
	o       *opts
	client  *registry.Client
	tracker Tracker
}

func New(options ...Option) (*JSDep, error) {
	o := defaultOpts()
	for _, opt := range options {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = registry.DefaultHTTPClient()
	}

	return &JSDep{
		o:       o,
		client:  registry.NewClient(o.registryURL, httpClient, registry.WithRateLimit(o.rateLimit)),
		tracker: o.tracker,
	}, nil
}

// Client exposes the memoizing registry client, for callers that inspect
// metadata of an already-resolved set (graph and listing commands).
func (j *JSDep) Client() *registry.Client {
	return j.client
}

// Requirements returns the configured initial requirements.
func (j *JSDep) Requirements() []resolver.Requirement {
	return j.o.requirements
}

// Resolve runs dependency resolution only, without touching the
// filesystem.
func (j *JSDep) Resolve(ctx context.Context) (map[string]string, error) {
	return resolver.New(j.client).Resolve(ctx, j.o.requirements)
}

// Install resolves, locks, and installs every configured requirement and
// returns the list of created paths. Resolution failures abort before
// anything is written; a failure installing one package does not stop the
// others, but is reported in the returned error.
func (j *JSDep) Install(ctx context.Context) ([]string, error) {
	ctx, span := otel.Tracer("jsdep").Start(ctx, "Install")
	defer span.End()

	log := clog.FromContext(ctx)

	resolved, err := j.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return j.tracker.Paths(), nil
	}

	if err := lock.Lock(resolved).SaveToFile(j.o.lockfile); err != nil {
		return nil, fmt.Errorf("writing lock record: %w", err)
	}
	j.tracker.Created(j.o.lockfile)

	names := maps.Keys(resolved)
	slices.Sort(names)
	for _, name := range names {
		log.Infof("selected %s: %s", name, resolved[name])
	}

	inst, err := installer.New(j.client,
		installer.WithOutputDir(j.o.outputDir),
		installer.WithSymlinkDir(j.o.symlinkDir),
		installer.WithChecksumValidation(j.o.validate),
		installer.WithTracker(j.tracker),
	)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	var g errgroup.Group
	g.SetLimit(j.o.concurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := inst.Install(ctx, name, resolved[name]); err != nil {
				log.Errorf("installing %s: %v", name, err)
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	// Install errors are collected per package rather than propagated
	// through the group, so one bad package does not cancel the rest.
	_ = g.Wait()

	return j.tracker.Paths(), errors.Join(failures...)
}

// Update performs the identical resolve-lock-install sequence as Install.
// The two exist as distinct lifecycle operations for the host orchestrator.
func (j *JSDep) Update(ctx context.Context) ([]string, error) {
	return j.Install(ctx)
}
