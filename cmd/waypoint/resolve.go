package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vitalvas/waypoint/history"
	"github.com/vitalvas/waypoint/route"
	"github.com/vitalvas/waypoint/routefile"
)

// errNotFound is returned by resolve when a path has a not-found match
// and --strict is set.
var errNotFound = errors.New("path did not fully resolve")

func resolveCmd(c *cli) *cobra.Command {
	var (
		routesPath string
		asJSON     bool
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "resolve PATH...",
		Short: "Print the match tree of paths",
		Long: `Resolve each path against a route table and print the match tree.
Nothing is loaded; loaders are listed by name only.

Examples:
  waypoint resolve --routes routes.yaml /docs/~/f/1
  waypoint resolve --routes routes.toml --json /a /b`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := routefile.Load(routesPath, builtinRegistry(), routefile.WithLogger(c.logger))
			if err != nil {
				return err
			}
			defer table.Close()

			return runResolve(cmd.OutOrStdout(), c, table, args, asJSON, strict)
		},
	}

	cmd.Flags().StringVarP(&routesPath, "routes", "r", "routes.yaml", "Route table (.yaml, .yml or .toml)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a path does not fully resolve")

	return cmd
}

type resolvedMatch struct {
	Route    string          `json:"route"`
	Segment  string          `json:"segment"`
	Params   route.Params    `json:"params,omitempty"`
	Loader   string          `json:"loader,omitempty"`
	Await    bool            `json:"await,omitempty"`
	Children []resolvedMatch `json:"children,omitempty"`
}

type resolvedPath struct {
	Path    string          `json:"path"`
	Matches []resolvedMatch `json:"matches"`
}

func runResolve(w io.Writer, c *cli, table *routefile.Table, paths []string, asJSON, strict bool) error {
	var (
		results  []resolvedPath
		notFound bool
	)

	for _, p := range paths {
		pathname := history.ParsePath(p).Pathname
		matches := route.Resolve(pathname, table.Root, route.WithLogger(c.logger))

		if route.HasNotFound(matches) {
			notFound = true
			c.logger.Debug("path did not fully resolve", "path", pathname)
		}

		results = append(results, resolvedPath{Path: pathname, Matches: toResolved(matches)})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, r := range results {
			fmt.Fprintln(tw, r.Path)
			printMatches(tw, r.Matches, 1)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if strict && notFound {
		return errNotFound
	}
	return nil
}

func toResolved(matches []route.Match) []resolvedMatch {
	out := make([]resolvedMatch, len(matches))
	for i, m := range matches {
		r := resolvedMatch{
			Route:   m.RouteName(),
			Segment: m.Segment,
		}
		if len(m.Params) > 0 {
			r.Params = m.Params
		}
		if m.Config != nil {
			r.Await = m.Config.Await
			if m.Config.Loader != nil {
				r.Loader = m.Config.Loader.Name()
			}
		}
		if len(m.Children) > 0 {
			r.Children = toResolved(m.Children)
		}
		out[i] = r
	}
	return out
}

func printMatches(w io.Writer, matches []resolvedMatch, depth int) {
	indent := strings.Repeat("  ", depth)

	for _, m := range matches {
		var extra []string
		for _, k := range slices.Sorted(maps.Keys(m.Params)) {
			extra = append(extra, k+"="+m.Params[k])
		}
		if m.Loader != "" {
			loader := "loader=" + m.Loader
			if m.Await {
				loader += " (await)"
			}
			extra = append(extra, loader)
		}

		fmt.Fprintf(w, "%s%s\t%s\t%s\n", indent, m.Route, m.Segment, strings.Join(extra, " "))
		printMatches(w, m.Children, depth+1)
	}
}
