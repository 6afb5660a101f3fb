package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/orx/sym"
)

func newExchangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: sym.Exchange + " " + sym.CommandDescriptions["exchange"],
		Long: sym.Exchange + ` exchange - load every peer's local facts and apply the catalog's
delta and translation rules until nothing changes. Relations live in the
SQLite database; each run is recorded in its run log.`,
		Args: cobra.NoArgs,
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

			total, err := e.Exchange(cmd.Context())
			if err != nil {
				return err
			}
			st := e.Stats()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s exchange converged\n", pterm.Green("✓"))
			return printTable(w, pterm.TableData{
				{"Run", "Affected", "Passes", "Executions", "Failures", "Duration"},
				{st.RunID, strconv.FormatInt(total, 10), strconv.Itoa(st.Passes),
					strconv.Itoa(st.Executions), strconv.Itoa(st.Failures), st.Duration.String()},
			})
		},
	}
	cmd.Flags().String("catalog", "", "Catalog file (default from catalog.path)")
	cmd.Flags().String("db", "", "Database path (default from database.path)")
	return cmd
}
