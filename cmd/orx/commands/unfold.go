package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/orx/catalog"
	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/sym"
	"github.com/teranos/orx/unfold"
)

func newUnfoldCmd() *cobra.Command {
	var (
		query      string
		order      string
		semiring   string
		provenance []string
		strict     bool
	)
	cmd := &cobra.Command{
		Use:   "unfold FILE",
		Short: sym.Unfold + " " + sym.CommandDescriptions["unfold"],
		Long: sym.Unfold + ` unfold - flatten the rules defining a query relation.

FILE holds rules such as

  Q(x, y) :- V(x, z), S(z, y).
  V(x, z) :- R(x, z).

Every body atom defined by some rule is replaced by that rule's body. Each
resulting rule is printed with its provenance expression. Relations named
P_* are treated as provenance relations unless --provenance is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", args[0])
			}
			rules, err := datalog.ParseProgram(string(data))
			if err != nil {
				return errors.Wrapf(err, "%s", args[0])
			}
			if len(rules) == 0 {
				return errors.NewInvalidRequestError("%s holds no rules", args[0])
			}

			if query == "" {
				query = rules[0].Head.Key()
			}
			if order == "" {
				order = cfg.Unfold.Order
			}
			if semiring == "" {
				semiring = cfg.Unfold.Semiring
			}
			o, err := unfold.ParseOrder(order)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("provenance") {
				provenance = provenanceHeads(rules)
			}

			res, err := unfold.Unfold(rules, query, unfold.Options{
				ProvenanceRelations: provenance,
				Semiring:            strings.ToUpper(semiring),
				AssignmentExpr:      cfg.Unfold.AssignmentExpr,
				Order:               o,
				StrictProvenance:    strict || cfg.Unfold.StrictProvenance,
				Logger:              logger.Logger,
			})
			if err != nil {
				return err
			}
			printUnfolded(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Query relation key (default: head of the first rule)")
	cmd.Flags().StringVar(&order, "order", "", "Expansion order: dfs or bfs (default from unfold.order)")
	cmd.Flags().StringVar(&semiring, "semiring", "", "Semiring recorded in provenance (default from unfold.semiring)")
	cmd.Flags().StringSliceVar(&provenance, "provenance", nil, "Provenance relation keys")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on provenance warnings")
	return cmd
}

// provenanceHeads returns the heads named with the provenance prefix.
func provenanceHeads(rules []*datalog.Rule) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rules {
		if strings.HasPrefix(r.Head.Relation.Name, catalog.ProvenancePrefix) && !seen[r.Head.Key()] {
			seen[r.Head.Key()] = true
			out = append(out, r.Head.Key())
		}
	}
	return out
}

func printUnfolded(cmd *cobra.Command, res *unfold.Result) {
	w := cmd.OutOrStdout()
	for _, r := range res.Rules {
		fmt.Fprintln(w, r.String())
		if p := r.Provenance.String(); p != "" {
			fmt.Fprintf(w, "    %s %s\n", pterm.Gray("provenance"), p)
		}
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", pterm.Yellow("warning:"), warning)
	}
}
