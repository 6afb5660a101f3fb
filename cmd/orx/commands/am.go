package commands

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/orx/am"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/sym"
)

func newAmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "am",
		Short: sym.AM + " " + sym.CommandDescriptions["am"],
		Long: sym.AM + ` am - orx configuration.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (ORX_* prefix, e.g. ORX_UNFOLD_ORDER=bfs)
3. Project config (nearest am.toml above the working directory)
4. User config (~/.orx/am.toml)
5. System config (/etc/orx/am.toml)
6. Default values`,
	}
	cmd.AddCommand(newAmShowCmd(), newAmInitCmd(), newAmValidateCmd())
	return cmd
}

func newAmShowCmd() *cobra.Command {
	var (
		format  string
		sources bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if sources {
				info, err := am.GetConfigIntrospection()
				if err != nil {
					return err
				}
				data := pterm.TableData{{"Key", "Value", "Source", "From"}}
				for _, s := range info.Settings {
					data = append(data, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
				}
				return printTable(w, data)
			}

			cfg, err := am.Load()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			switch format {
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return errors.Wrap(err, "failed to marshal config to YAML")
				}
				fmt.Fprintf(w, "# orx configuration\n%s", data)
			case "toml":
				data, err := toml.Marshal(cfg)
				if err != nil {
					return errors.Wrap(err, "failed to marshal config to TOML")
				}
				fmt.Fprintf(w, "# orx configuration\n%s", data)
			case "json":
				return printJSON(w, cfg)
			default:
				return errors.NewInvalidRequestError("unsupported format: %s (supported: yaml, toml, json)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml, toml, json")
	cmd.Flags().BoolVar(&sources, "sources", false, "Show where each setting comes from")
	return cmd
}

func newAmInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write a default am.toml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "am.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.WithHint(
					errors.Newf("%s already exists", path),
					"pass --force to overwrite it; the old file is kept as .back1")
			}
			if err := am.Save(am.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", pterm.Green("✓"), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newAmValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := am.Load(); err != nil {
				return errors.Wrap(err, "configuration validation failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return nil
		},
	}
}
