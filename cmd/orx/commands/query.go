package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/orx/engine"
	"github.com/teranos/orx/sym"
)

func newQueryCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "query QUERY",
		Short: sym.Unfold + " Match, lower and unfold a ProQL query",
		Long: sym.Unfold + ` query - unfold the views a ProQL query selects.

  [EVALUATE semiring OF] pattern [RETURN $var]

Each matched subgraph is lowered to the catalog rules it needs and unfolded
from its root relation. With --execute, local facts are exchanged first and
the unfolded rules are answered into ans_<root> in the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config()
			if err != nil {
				return err
			}
			e, closeEngine, err := newEngine(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeEngine()

			ctx := cmd.Context()
			res, err := e.Query(ctx, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printQueryResult(w, res)
			if !execute {
				return nil
			}

			if _, err := e.Exchange(ctx); err != nil {
				return err
			}
			if _, err := e.Answer(ctx, res); err != nil {
				return err
			}
			for _, sg := range res.Subgraphs {
				if sg.Unfolded == nil {
					continue
				}
				rows, err := e.AnswerRows(ctx, sg)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "\n%s %s (%d rows)\n", pterm.LightCyan("answers"), engine.AnswerRelation(sg.Subgraph.Root).Key(), len(rows))
				if len(rows) == 0 {
					continue
				}
				data := pterm.TableData{columnHeader(len(rows[0]))}
				data = append(data, rows...)
				if err := printTable(w, data); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("catalog", "", "Catalog file (default from catalog.path)")
	cmd.Flags().String("db", "", "Database path (default from database.path)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Exchange local facts and answer the unfolded query")
	return cmd
}

func printQueryResult(w io.Writer, res *engine.QueryResult) {
	fmt.Fprintf(w, "%s %s\n", pterm.Gray("semiring"), res.Semiring)
	for _, sg := range res.Subgraphs {
		fmt.Fprintf(w, "\n%s %s\n", pterm.LightCyan("subgraph"), sg.Subgraph)
		if b := formatBindings(sg.Bindings); b != "" {
			fmt.Fprintf(w, "  %s %s\n", pterm.Gray("bindings"), b)
		}
		if sg.Err != nil {
			fmt.Fprintf(w, "  %s %v\n", pterm.Red("not unfolded:"), sg.Err)
			continue
		}
		for _, r := range sg.Unfolded.Rules {
			fmt.Fprintf(w, "  %s\n", r)
			if p := r.Provenance.String(); p != "" {
				fmt.Fprintf(w, "      %s %s\n", pterm.Gray("provenance"), p)
			}
		}
	}
	if ret := res.Returned(); res.Query.Return != "" {
		fmt.Fprintf(w, "\n%s $%s = %s\n", pterm.Green("return"), res.Query.Return, strings.Join(ret, ", "))
	}
}

func columnHeader(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("c%d", i)
	}
	return out
}
