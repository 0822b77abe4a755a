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
	"context"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"chainguard.dev/jsdep/pkg/jsdep"
)

func installCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Resolve, lock, and install the configured package requirements",
		Example: `  jsdep install <config.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return InstallCmd(cmd.Context(), false, flags.options(args[0])...)
		},
	}

	flags.register(cmd)
	return cmd
}

func updateCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Re-resolve the configured requirements and install the result",
		Example: `  jsdep update <config.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return InstallCmd(cmd.Context(), true, flags.options(args[0])...)
		},
	}

	flags.register(cmd)
	return cmd
}

func InstallCmd(ctx context.Context, update bool, opts ...jsdep.Option) error {
	log := clog.FromContext(ctx)

	j, err := jsdep.New(opts...)
	if err != nil {
		return err
	}

	run := j.Install
	if update {
		run = j.Update
	}

	created, err := run(ctx)
	for _, path := range created {
		log.Debugf("created %s", path)
	}
	if err != nil {
		return err
	}

	log.Infof("installed %d artifacts", len(created))
	return nil
}
