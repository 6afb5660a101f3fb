package am

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "orx.db")

	v.SetDefault("catalog.path", "catalog.toml")
	v.SetDefault("catalog.watch", false)
	v.SetDefault("catalog.debounce_ms", 500)

	v.SetDefault("unfold.order", "dfs")
	v.SetDefault("unfold.semiring", "BOOLEAN")
	v.SetDefault("unfold.assignment_expr", "")
	v.SetDefault("unfold.strict_provenance", false)

	v.SetDefault("fixpoint.failure_policy", "best-effort")
	v.SetDefault("fixpoint.prepare", true)
	v.SetDefault("fixpoint.max_rounds", 0)
	v.SetDefault("fixpoint.measure_exec_time", false)
	v.SetDefault("fixpoint.cache_size", 256)

	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "color")
}

// DefaultConfig returns the configuration built from defaults alone.
func DefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}
