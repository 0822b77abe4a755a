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
	"fmt"
	"net/http"

	"chainguard.dev/jsdep/pkg/lock"
	"chainguard.dev/jsdep/pkg/npm/installer"
	"chainguard.dev/jsdep/pkg/npm/resolver"
)

type opts struct {
	requirements []resolver.Requirement
	outputDir    string
	symlinkDir   string
	validate     bool
	registryURL  string
	lockfile     string
	httpClient   *http.Client
	tracker      Tracker
	concurrency  int
	rateLimit    float64
}

// Option configures a JSDep run.
type Option func(*opts) error

// WithConfig loads settings from a YAML config file. Values set by later
// options win over the file.
func WithConfig(path string) Option {
	return func(o *opts) error {
		c, err := LoadConfig(path)
		if err != nil {
			return err
		}
		o.requirements = c.ParsedRequirements()
		if c.OutputDirectory != "" {
			o.outputDir = c.OutputDirectory
		}
		o.symlinkDir = c.SymlinkDirectory
		if c.ValidateChecksums != nil {
			o.validate = *c.ValidateChecksums
		}
		if c.Registry != "" {
			o.registryURL = c.Registry
		}
		if c.Lockfile != "" {
			o.lockfile = c.Lockfile
		}
		return nil
	}
}

// WithRequirements sets the initial requirements from strings in the fixed
// "name[op version]" grammar, replacing any configured list.
func WithRequirements(reqs ...string) Option {
	return func(o *opts) error {
		parsed := make([]resolver.Requirement, 0, len(reqs))
		for _, raw := range reqs {
			req, err := resolver.ParseRequirement(raw)
			if err != nil {
				return err
			}
			parsed = append(parsed, req)
		}
		o.requirements = parsed
		return nil
	}
}

// WithOutputDir sets the directory packages are installed into. Default is
// parts/js/.
func WithOutputDir(dir string) Option {
	return func(o *opts) error {
		if dir != "" {
			o.outputDir = dir
		}
		return nil
	}
}

// WithSymlinkDir enables entry-file symlinks in dir. Empty disables them.
func WithSymlinkDir(dir string) Option {
	return func(o *opts) error {
		o.symlinkDir = dir
		return nil
	}
}

// WithChecksumValidation toggles tarball checksum validation. Default on.
func WithChecksumValidation(validate bool) Option {
	return func(o *opts) error {
		o.validate = validate
		return nil
	}
}

// WithRegistryURL overrides the registry base URL.
func WithRegistryURL(url string) Option {
	return func(o *opts) error {
		if url != "" {
			o.registryURL = url
		}
		return nil
	}
}

// WithLockfile overrides where the lock record is written.
func WithLockfile(path string) Option {
	return func(o *opts) error {
		if path != "" {
			o.lockfile = path
		}
		return nil
	}
}

// WithHTTPClient overrides the HTTP client used for registry metadata and
// downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(o *opts) error {
		o.httpClient = client
		return nil
	}
}

// WithTracker replaces the default in-memory created-paths tracker.
func WithTracker(t Tracker) Option {
	return func(o *opts) error {
		if t == nil {
			return fmt.Errorf("tracker must not be nil")
		}
		o.tracker = t
		return nil
	}
}

// WithConcurrency sets how many packages install in parallel once the
// resolved set is final. The default of 1 keeps install logging in a stable
// order; resolution itself is always sequential.
func WithConcurrency(n int) Option {
	return func(o *opts) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be at least 1, got %d", n)
		}
		o.concurrency = n
		return nil
	}
}

// WithRateLimit caps registry requests at rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(o *opts) error {
		o.rateLimit = rps
		return nil
	}
}

func defaultOpts() *opts {
	return &opts{
		outputDir:   installer.DefaultOutputDir,
		validate:    true,
		lockfile:    lock.DefaultPath,
		tracker:     &PathTracker{},
		concurrency: 1,
	}
}
