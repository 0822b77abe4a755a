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
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/package-url/packageurl-go"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"chainguard.dev/jsdep/pkg/jsdep"
)

const (
	formatNameSpaceVersion = `{{ .Name }} {{ .Version }}`
	formatNameAtVersion    = `{{ .Name }}@{{ .Version }}`
	formatPurl             = `{{ .Purl }}`
	formatRequirement      = `- {{ .Name }}={{ .Version }}`
	showPkgsFormatDefault  = formatNameSpaceVersion
)

var showPkgsFormats = map[string]string{
	"name-version": formatNameSpaceVersion,
	"name@version": formatNameAtVersion,
	"purl":         formatPurl,
	"requirement":  formatRequirement,
}

type pkgInfo struct {
	Name    string
	Version string
	Purl    string
}

func showPackages() *cobra.Command {
	var flags commonFlags
	var format string

	cmd := &cobra.Command{
		Use:   "show-packages",
		Short: "Show the packages and versions that would be installed by a configuration",
		Long: `Show the packages and versions that would be installed by a configuration.
The result is identical to the first stage of an install, but nothing is written.

The output is one of several pre-defined formats, or can be customized to any go
template using the vars .Name, .Version, and .Purl.

The pre-defined formats are:
  name-version:  {{ .Name }} {{ .Version }}
  name@version:  {{ .Name }}@{{ .Version }}
  purl:          {{ .Purl }}
  requirement:   - {{ .Name }}={{ .Version }}

The default format is name-version.
`,
		Example: `  jsdep show-packages <config.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, ok := showPkgsFormats[format]
			if !ok {
				// assume it's a template
				tmpl = format
			}
			return ShowPackagesCmd(cmd.Context(), tmpl, flags.options(args[0])...)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", showPkgsFormatDefault, "format for showing packages; one of the pre-defined names, else a go template over `.Name`, `.Version`, `.Purl`")
	return cmd
}

func ShowPackagesCmd(ctx context.Context, format string, opts ...jsdep.Option) error {
	tmpl, err := template.New("format").Parse(format)
	if err != nil {
		return fmt.Errorf("failed to parse format: %w", err)
	}

	j, err := jsdep.New(opts...)
	if err != nil {
		return err
	}

	resolved, err := j.Resolve(ctx)
	if err != nil {
		return err
	}

	names := maps.Keys(resolved)
	slices.Sort(names)
	for _, name := range names {
		info := pkgInfo{
			Name:    name,
			Version: resolved[name],
			Purl:    npmPurl(name, resolved[name]),
		}
		if err := tmpl.Execute(os.Stdout, info); err != nil {
			return fmt.Errorf("failed to execute template: %w", err)
		}
		fmt.Println()
	}

	return nil
}

// npmPurl renders pkg:npm purls, splitting scoped names like @scope/pkg
// into namespace and name.
func npmPurl(name, version string) string {
	namespace := ""
	if strings.HasPrefix(name, "@") {
		if scope, rest, ok := strings.Cut(name, "/"); ok {
			namespace, name = scope, rest
		}
	}
	return packageurl.NewPackageURL(packageurl.TypeNPM, namespace, name, version, nil, "").ToString()
}
