// Package commands implements the orx command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/orx/am"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/sym"
)

// NewRootCmd builds the orx command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "orx",
		Short: "orx - schema mappings, view unfolding and update exchange",
		Long: `orx - schema mappings, view unfolding and update exchange.

Peers publish relations; a catalog of mappings says how each peer's
relations derive from the others. orx matches path queries against the
mapping graph, unfolds the matched views into provenance-annotated rules,
propagates local data across mappings and answers unfolded queries.

Available commands:
  ` + sym.Unfold + ` unfold    - Unfold a rule program for one query relation
  ` + sym.Match + ` match     - Match a ProQL pattern against a catalog
  ` + sym.Unfold + ` query     - Match, lower and unfold; optionally answer
  ` + sym.Exchange + ` exchange  - Propagate local facts across mappings
  ` + sym.Fixpoint + ` runs      - List recorded exchange and answer runs
  ` + sym.AM + ` am        - Show or initialise configuration

Examples:
  orx unfold views.dl --query Q
  orx match '[R1] <- [] ** []' --catalog catalog.toml
  orx query 'EVALUATE COUNTING OF [R1] <- []' --catalog catalog.toml --execute
  orx exchange --catalog catalog.toml --db orx.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// am commands must work with a broken config
			if cmd.Parent() != nil && cmd.Parent().Name() == "am" {
				return nil
			}
			cfg, err := am.Load()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			verbosity, _ := cmd.Flags().GetCount("verbose")
			jsonLog, _ := cmd.Flags().GetBool("json-log")
			if err := logger.InitializeWithTheme(jsonLog || cfg.Log.JSON, verbosity, cfg.Log.Theme); err != nil {
				return errors.Wrap(err, "failed to initialize logger")
			}
			logger.Debugw("Logger initialized", "level", logger.LevelName(verbosity), "symbol", sym.AM)
			if logger.ShouldLogTrace(verbosity) {
				if intro, err := am.GetConfigIntrospection(); err == nil {
					for source, n := range intro.CountBySource() {
						logger.Debugw("Config settings", "source", source, logger.FieldCount, n)
					}
				}
			}
			return nil
		},
	}

	root.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	root.PersistentFlags().Bool("json-log", false, "Write logs as JSON")

	root.AddCommand(newUnfoldCmd())
	root.AddCommand(newMatchCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newExchangeCmd())
	root.AddCommand(newRunsCmd())
	root.AddCommand(newAmCmd())
	root.AddCommand(newVersionCmd())
	return root
}
