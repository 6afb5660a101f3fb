package commands

import (
	"database/sql"
	"encoding/json"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/orx/am"
	"github.com/teranos/orx/catalog"
	"github.com/teranos/orx/db"
	"github.com/teranos/orx/engine"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/sqlexec"
)

func config() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return cfg, nil
}

// catalogPath returns the --catalog flag, falling back to catalog.path.
func catalogPath(cmd *cobra.Command, cfg *am.Config) string {
	if p, _ := cmd.Flags().GetString("catalog"); p != "" {
		return p
	}
	return cfg.Catalog.Path
}

func loadCatalog(cmd *cobra.Command, cfg *am.Config) (*catalog.Catalog, error) {
	path := catalogPath(cmd, cfg)
	c, err := catalog.Load(path)
	if err != nil {
		return nil, errors.WithHint(err, "pass --catalog or set catalog.path in am.toml")
	}
	return c, nil
}

// openDatabase opens and migrates the database named by --db or
// database.path.
func openDatabase(cmd *cobra.Command, cfg *am.Config) (*sql.DB, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = cfg.Database.Path
	}
	database, err := db.OpenWithMigrations(path, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	return database, nil
}

// newEngine opens everything an exchange or answer needs. The returned
// function releases it.
func newEngine(cmd *cobra.Command, cfg *am.Config) (*engine.Engine, func(), error) {
	cat, err := loadCatalog(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	database, err := openDatabase(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	backend, err := sqlexec.New(database, sqlexec.Options{CacheSize: cfg.Fixpoint.CacheSize, Logger: logger.Logger})
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	e := engine.New(cat, backend, cfg, logger.Logger)
	e.RunLog = database
	return e, func() {
		backend.Close()
		database.Close()
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}
