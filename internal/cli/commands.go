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
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/chainguard-dev/clog/slag"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"
)

func New() *cobra.Command {
	level := slag.Level(slog.LevelInfo)

	cmd := &cobra.Command{
		Use:               "jsdep",
		Short:             "Resolve and install javascript package requirements",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			http.DefaultTransport = userAgentTransport{http.DefaultTransport}

			slog.SetDefault(slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
				ReportTimestamp: true,
				Level:           charmlog.Level(level),
			})))
		},
	}

	cmd.AddCommand(installCmd())
	cmd.AddCommand(updateCmd())
	cmd.AddCommand(resolveCmd())
	cmd.AddCommand(showPackages())
	cmd.AddCommand(dotcmd())
	cmd.AddCommand(version.Version())

	cmd.PersistentFlags().Var(&level, "log-level", "log level (e.g. debug, info, warn, error)")
	return cmd
}

type userAgentTransport struct{ t http.RoundTripper }

func (u userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", fmt.Sprintf("jsdep/%s", version.GetVersionInfo().GitVersion))
	return u.t.RoundTrip(req)
}
