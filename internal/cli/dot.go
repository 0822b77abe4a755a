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
	"net"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/tmc/dot"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/jsdep/pkg/jsdep"
)

func dotcmd() *cobra.Command {
	var flags commonFlags
	var web, span bool

	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Output a digraph showing the resolved dependencies of a configuration.",
		Long: `Output a digraph showing the resolved dependencies of a configuration.

# Render an svg of example.yaml
jsdep dot example.yaml | dot -Tsvg > graph.svg

# Open browser to explore example.yaml
jsdep dot --web example.yaml
`,
		Example: `  jsdep dot <config.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return DotCmd(cmd.Context(), args[0], web, span, flags.options(args[0])...)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&span, "spanning-tree", "S", false, "does something like a spanning tree to avoid a huge number of edges")
	cmd.Flags().BoolVar(&web, "web", false, "launch a browser")

	return cmd
}

func DotCmd(ctx context.Context, configFile string, web, span bool, opts ...jsdep.Option) error {
	log := clog.FromContext(ctx)

	j, err := jsdep.New(opts...)
	if err != nil {
		return err
	}

	resolved, err := j.Resolve(ctx)
	if err != nil {
		return err
	}

	// The client memoized every manifest during resolution, so collecting
	// the edges costs no extra network calls.
	dmap := map[string]map[string]string{}
	names := maps.Keys(resolved)
	slices.Sort(names)
	for _, name := range names {
		manifest, err := j.Client().Manifest(ctx, name, resolved[name])
		if err != nil {
			return err
		}
		dmap[name] = manifest.Dependencies
	}

	render := func() *dot.Graph {
		edges := map[string]struct{}{}

		out := dot.NewGraph("packages")
		if err := out.Set("rankdir", "LR"); err != nil {
			panic(err)
		}
		out.SetType(dot.DIGRAPH)

		file := dot.NewNode(configFile)
		out.AddNode(file)
		for _, req := range j.Requirements() {
			n := dot.NewNode(req.Name)
			out.AddNode(n)
			out.AddEdge(dot.NewEdge(file, n))
		}

		for _, name := range names {
			n := dot.NewNode(name)
			if err := n.Set("label", fmt.Sprintf("%s@%s", name, resolved[name])); err != nil {
				panic(err)
			}
			out.AddNode(n)

			deps := maps.Keys(dmap[name])
			slices.Sort(deps)
			for _, dep := range deps {
				d := dot.NewNode(dep)
				out.AddNode(d)
				if _, ok := edges[dep]; !ok || !span {
					// This check is stupid but otherwise cycles render dumb.
					if name != dep {
						out.AddEdge(dot.NewEdge(n, d))
						edges[dep] = struct{}{}
					}
				}
			}
		}

		return out
	}

	if web {
		http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				return
			}

			out := render()

			log.Infof("%s: rendering", r.URL)
			cmd := exec.Command("dot", "-Tsvg")
			cmd.Stdin = strings.NewReader(out.String())
			cmd.Stdout = w

			if err := cmd.Run(); err != nil {
				fmt.Fprintf(w, "error rendering: %v", err)
			}
		})

		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              l.Addr().String(),
			ReadHeaderTimeout: 3 * time.Second,
		}

		log.Infof("%s", l.Addr().String())

		var g errgroup.Group
		g.Go(func() error {
			return server.Serve(l)
		})

		g.Go(func() error {
			return open.Run(fmt.Sprintf("http://localhost:%d", l.Addr().(*net.TCPAddr).Port))
		})

		return g.Wait()
	}

	out := render()

	fmt.Println(out.String())
	return nil
}
