// Package am loads the orx configuration ("am" settings) from TOML files and
// ORX_* environment variables.
package am

import "os"

// Config is the complete orx configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database" yaml:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog" toml:"catalog" yaml:"catalog"`
	Unfold   UnfoldConfig   `mapstructure:"unfold" toml:"unfold" yaml:"unfold"`
	Fixpoint FixpointConfig `mapstructure:"fixpoint" toml:"fixpoint" yaml:"fixpoint"`
	Log      LogConfig      `mapstructure:"log" toml:"log" yaml:"log"`
}

// DatabaseConfig configures the SQLite database holding exchanged relations
// and the run log.
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path"`
}

// CatalogConfig locates the peer/schema/mapping catalog.
type CatalogConfig struct {
	Path       string `mapstructure:"path" toml:"path" yaml:"path"`
	Watch      bool   `mapstructure:"watch" toml:"watch" yaml:"watch"`
	DebounceMS int    `mapstructure:"debounce_ms" toml:"debounce_ms" yaml:"debounce_ms"` // 0 = watcher default
}

// UnfoldConfig holds view-unfolding defaults.
type UnfoldConfig struct {
	Order            string `mapstructure:"order" toml:"order" yaml:"order"`          // dfs or bfs
	Semiring         string `mapstructure:"semiring" toml:"semiring" yaml:"semiring"` // used when a query has no EVALUATE clause
	AssignmentExpr   string `mapstructure:"assignment_expr" toml:"assignment_expr" yaml:"assignment_expr"`
	StrictProvenance bool   `mapstructure:"strict_provenance" toml:"strict_provenance" yaml:"strict_provenance"`
}

// FixpointConfig configures rule evaluation.
type FixpointConfig struct {
	FailurePolicy   string `mapstructure:"failure_policy" toml:"failure_policy" yaml:"failure_policy"` // best-effort or strict
	Prepare         bool   `mapstructure:"prepare" toml:"prepare" yaml:"prepare"`
	MaxRounds       int    `mapstructure:"max_rounds" toml:"max_rounds" yaml:"max_rounds"` // 0 = unbounded
	MeasureExecTime bool   `mapstructure:"measure_exec_time" toml:"measure_exec_time" yaml:"measure_exec_time"`
	CacheSize       int    `mapstructure:"cache_size" toml:"cache_size" yaml:"cache_size"` // compiled statement cache
}

// LogConfig configures log output.
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json" yaml:"json"`
	Theme string `mapstructure:"theme" toml:"theme" yaml:"theme"` // none, plain, color
}

// File permission constants
const (
	DefaultDirPermissions  os.FileMode = 0750
	DefaultFilePermissions os.FileMode = 0644
)
