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
	"chainguard.dev/jsdep/pkg/lock"
)

func resolveCmd() *cobra.Command {
	var flags commonFlags
	var output string

	cmd := &cobra.Command{
		Use:     "resolve",
		Short:   "Resolve the configured requirements and write the lock record without installing",
		Example: `  jsdep resolve <config.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = lock.DefaultPath
			}
			return ResolveCmd(cmd.Context(), output, flags.options(args[0])...)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "path to file where the lock record will be written")
	return cmd
}

func ResolveCmd(ctx context.Context, output string, opts ...jsdep.Option) error {
	log := clog.FromContext(ctx)

	j, err := jsdep.New(opts...)
	if err != nil {
		return err
	}

	resolved, err := j.Resolve(ctx)
	if err != nil {
		return err
	}

	if err := lock.Lock(resolved).SaveToFile(output); err != nil {
		return err
	}

	log.Infof("locked %d packages to %s", len(resolved), output)
	return nil
}
