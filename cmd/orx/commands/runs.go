package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/orx/db"
	"github.com/teranos/orx/sym"
)

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: sym.Fixpoint + " " + sym.CommandDescriptions["runs"],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config()
			if err != nil {
				return err
			}
			database, err := openDatabase(cmd, cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			runs, err := db.ListRuns(cmd.Context(), database, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, sym.DB+" no runs recorded")
				return nil
			}
			data := pterm.TableData{{"Started", "Kind", "Label", "Affected", "Passes", "Failures", "Duration", "Error"}}
			for _, r := range runs {
				data = append(data, []string{
					r.StartedAt.Local().Format(time.DateTime), r.Kind, r.Label,
					strconv.FormatInt(r.Affected, 10), strconv.Itoa(r.Passes),
					strconv.Itoa(r.Failures), r.Duration.String(), r.Error,
				})
			}
			return printTable(w, data)
		},
	}
	cmd.Flags().String("db", "", "Database path (default from database.path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs")
	return cmd
}
