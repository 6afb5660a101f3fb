package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/orx/catalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/proql"
	"github.com/teranos/orx/schema"
	"github.com/teranos/orx/sym"
)

func newMatchCmd() *cobra.Command {
	var (
		watch  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "match QUERY",
		Short: sym.Match + " " + sym.CommandDescriptions["match"],
		Long: sym.Match + ` match - find the mapping subgraphs a ProQL pattern selects.

Patterns read right to left along derivations:

  [R1] <- [R2]          mappings deriving R1 from R2
  [R1] M1 $m <- []      only mapping M1, bound to $m
  [R1] ** [R5]          any chain of mappings from R5 up to R1
  [p.s.R*] <- []        glob names; dotted names match qualified keys`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config()
			if err != nil {
				return err
			}
			p, err := proql.ParsePattern(args[0])
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cmd, cfg)
			if err != nil {
				return err
			}
			if err := printMatches(cmd.OutOrStdout(), cat, p, asJSON); err != nil {
				return err
			}
			if !watch && !cfg.Catalog.Watch {
				return nil
			}
			return watchMatches(cmd, catalogPath(cmd, cfg), time.Duration(cfg.Catalog.DebounceMS)*time.Millisecond, p, asJSON)
		},
	}
	cmd.Flags().String("catalog", "", "Catalog file (default from catalog.path)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-run the match whenever the catalog changes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matched subgraphs as node/link JSON")
	return cmd
}

func printMatches(w io.Writer, cat *catalog.Catalog, p *proql.Pattern, asJSON bool) error {
	subs := proql.MatchWithLogger(schema.BuildGraph(cat), p, logger.Logger)
	if asJSON {
		views := make([]*schema.View, len(subs))
		for i, s := range subs {
			views[i] = s.View()
		}
		return printJSON(w, views)
	}
	if len(subs) == 0 {
		fmt.Fprintln(w, pterm.Yellow("no match"))
		return nil
	}
	data := pterm.TableData{{"Root", "Mappings", "Bindings"}}
	for _, s := range subs {
		names := make([]string, 0, s.Len())
		for _, d := range s.Matched() {
			names = append(names, d.Name)
		}
		data = append(data, []string{s.Root.Key(), strings.Join(names, ", "), formatBindings(p.Bindings(s))})
	}
	return printTable(w, data)
}

func formatBindings(b map[string][]string) string {
	var parts []string
	for v, values := range b {
		parts = append(parts, "$"+v+"="+strings.Join(values, "|"))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func watchMatches(cmd *cobra.Command, path string, debounce time.Duration, p *proql.Pattern, asJSON bool) error {
	w, err := catalog.NewWatcher(path, logger.Logger)
	if err != nil {
		return err
	}
	if debounce > 0 {
		w.SetDebounce(debounce)
	}
	out := cmd.OutOrStdout()
	w.OnReload(func(c *catalog.Catalog) error {
		fmt.Fprintf(out, "%s catalog %s reloaded\n", sym.Catalog, path)
		return printMatches(out, c, p, asJSON)
	})
	w.Start()
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (Ctrl-C to stop)\n", path)
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
