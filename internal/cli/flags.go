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

package cli

import (
	"github.com/spf13/cobra"

	"chainguard.dev/jsdep/pkg/jsdep"
)

// commonFlags are the flags shared by every command that resolves a
// config. Flag values win over config file values.
type commonFlags struct {
	outputDir   string
	symlinkDir  string
	registryURL string
	lockfile    string
	noVerify    bool
	concurrency int
	rateLimit   float64
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "directory to install packages into (default 'parts/js/')")
	cmd.Flags().StringVar(&f.symlinkDir, "symlink-dir", "", "directory to create entry-file symlinks in (default none)")
	cmd.Flags().StringVar(&f.registryURL, "registry", "", "registry base URL (default the public npm registry)")
	cmd.Flags().StringVar(&f.lockfile, "lockfile", "", "path to write the lock record to (default '.package-lock.json')")
	cmd.Flags().BoolVar(&f.noVerify, "no-verify", false, "skip checksum validation of downloaded tarballs")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 1, "how many packages to install in parallel")
	cmd.Flags().Float64Var(&f.rateLimit, "rate-limit", 0, "max registry requests per second (0 means unlimited)")
}

func (f *commonFlags) options(configFile string) []jsdep.Option {
	opts := []jsdep.Option{
		jsdep.WithConfig(configFile),
		jsdep.WithOutputDir(f.outputDir),
		jsdep.WithRegistryURL(f.registryURL),
		jsdep.WithLockfile(f.lockfile),
		jsdep.WithConcurrency(f.concurrency),
		jsdep.WithRateLimit(f.rateLimit),
	}
	if f.symlinkDir != "" {
		opts = append(opts, jsdep.WithSymlinkDir(f.symlinkDir))
	}
	if f.noVerify {
		opts = append(opts, jsdep.WithChecksumValidation(false))
	}
	return opts
}
