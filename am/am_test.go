package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/orx/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "orx.db", cfg.Database.Path)
	assert.Equal(t, "catalog.toml", cfg.Catalog.Path)
	assert.Equal(t, "dfs", cfg.Unfold.Order)
	assert.Equal(t, "BOOLEAN", cfg.Unfold.Semiring)
	assert.Equal(t, "best-effort", cfg.Fixpoint.FailurePolicy)
	assert.Equal(t, 0, cfg.Fixpoint.MaxRounds)
	assert.Equal(t, 256, cfg.Fixpoint.CacheSize)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, cfg, DefaultConfig())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "bfs order", mutate: func(c *Config) { c.Unfold.Order = "breadth-first" }},
		{name: "strict policy", mutate: func(c *Config) { c.Fixpoint.FailurePolicy = "strict" }},
		{name: "zero max rounds is unbounded", mutate: func(c *Config) { c.Fixpoint.MaxRounds = 0 }},
		{name: "unknown order", mutate: func(c *Config) { c.Unfold.Order = "random" }, wantErr: "unfold.order"},
		{name: "unknown policy", mutate: func(c *Config) { c.Fixpoint.FailurePolicy = "retry" }, wantErr: "fixpoint.failure_policy"},
		{name: "negative max rounds", mutate: func(c *Config) { c.Fixpoint.MaxRounds = -1 }, wantErr: "max_rounds"},
		{name: "negative cache size", mutate: func(c *Config) { c.Fixpoint.CacheSize = -5 }, wantErr: "cache_size"},
		{name: "negative debounce", mutate: func(c *Config) { c.Catalog.DebounceMS = -1 }, wantErr: "debounce_ms"},
		{name: "unknown theme", mutate: func(c *Config) { c.Log.Theme = "gruvbox" }, wantErr: "log.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.IsInvalidRequestError(err))
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "am.toml", `
[unfold]
order = "bfs"
strict_provenance = true

[fixpoint]
failure_policy = "strict"
max_rounds = 10
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bfs", cfg.Unfold.Order)
	assert.True(t, cfg.Unfold.StrictProvenance)
	assert.Equal(t, "strict", cfg.Fixpoint.FailurePolicy)
	assert.Equal(t, 10, cfg.Fixpoint.MaxRounds)
	assert.Equal(t, "orx.db", cfg.Database.Path, "unset keys keep defaults")

	bad := writeFile(t, dir, "bad.toml", "[fixpoint]\nmax_rounds = -3\n")
	_, err = LoadFromFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.toml")

	_, err = LoadFromFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestMergePrecedence(t *testing.T) {
	dir := t.TempDir()
	system := writeFile(t, dir, "system.toml", "[database]\npath = \"/var/lib/orx.db\"\n[unfold]\norder = \"bfs\"\n")
	user := writeFile(t, dir, "user.toml", "[unfold]\norder = \"dfs\"\nsemiring = \"COUNTING\"\n")
	project := writeFile(t, dir, "project.toml", "[unfold]\nsemiring = \"TROPICAL\"\n")

	files := []configFile{
		{path: system, source: SourceSystem},
		{path: user, source: SourceUser},
		{path: filepath.Join(dir, "absent.toml"), source: SourceUser},
		{path: project, source: SourceProject},
	}
	v, sources, err := buildViper(files)
	require.NoError(t, err)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/orx.db", cfg.Database.Path)
	assert.Equal(t, "dfs", cfg.Unfold.Order)
	assert.Equal(t, "TROPICAL", cfg.Unfold.Semiring)
	assert.Equal(t, "best-effort", cfg.Fixpoint.FailurePolicy)

	assert.Equal(t, SourceInfo{Source: SourceSystem, Path: system}, sources["database.path"])
	assert.Equal(t, SourceInfo{Source: SourceUser, Path: user}, sources["unfold.order"])
	assert.Equal(t, SourceInfo{Source: SourceProject, Path: project}, sources["unfold.semiring"])
}

func TestEnvironmentOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	project := writeFile(t, dir, "am.toml", "[unfold]\norder = \"dfs\"\n")
	t.Setenv("ORX_UNFOLD_ORDER", "bfs")

	v, sources, err := buildViper([]configFile{{path: project, source: SourceProject}})
	require.NoError(t, err)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, "bfs", cfg.Unfold.Order)

	settings := introspect(v, sources)
	var order SettingInfo
	for _, s := range settings.Settings {
		if s.Key == "unfold.order" {
			order = s
		}
	}
	assert.Equal(t, SourceEnvironment, order.Source)
	assert.Equal(t, "ORX_UNFOLD_ORDER", order.SourcePath)
}

func TestMalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "am.toml", "[unfold\norder = ")

	_, _, err := buildViper([]configFile{{path: broken, source: SourceProject}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), broken)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestMarkSettingsFromSource(t *testing.T) {
	settings := map[string]interface{}{
		"database": map[string]interface{}{"path": "orx.db"},
		"fixpoint": map[string]interface{}{
			"max_rounds": 3,
			"prepare":    true,
		},
		"top": 1,
	}

	sourceMap := make(map[string]SourceInfo)
	markSettingsFromSource(settings, "", SourceUser, "/home/u/.orx/am.toml", sourceMap)

	assert.Len(t, sourceMap, 4)
	assert.Equal(t, SourceUser, sourceMap["fixpoint.max_rounds"].Source)
	assert.Equal(t, "/home/u/.orx/am.toml", sourceMap["database.path"].Path)
	assert.Contains(t, sourceMap, "top")
}

func TestIntrospectionDefaults(t *testing.T) {
	v, sources, err := buildViper(nil)
	require.NoError(t, err)

	info := introspect(v, sources)
	require.NotEmpty(t, info.Settings)
	for i := 1; i < len(info.Settings); i++ {
		assert.Less(t, info.Settings[i-1].Key, info.Settings[i].Key, "settings are sorted")
	}
	counts := info.CountBySource()
	assert.Equal(t, len(info.Settings), counts[SourceDefault]+counts[SourceEnvironment])
}

func TestFindConfigFrom(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	// Parent directories of the temp dir may carry their own am.toml, so
	// only assert on the file placed here.
	path := writeFile(t, root, "am.toml", "")
	assert.Equal(t, path, findConfigFrom(nested))
}

func TestSaveRotatesBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "am.toml")

	cfg := DefaultConfig()
	for i := 1; i <= 5; i++ {
		cfg.Fixpoint.MaxRounds = i
		require.NoError(t, Save(cfg, path))
	}

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Fixpoint.MaxRounds)
	assert.Equal(t, "dfs", loaded.Unfold.Order)

	for n, want := range map[string]int{".back1": 4, ".back2": 3, ".back3": 2} {
		backup, err := LoadFromFile(path + n)
		require.NoError(t, err, n)
		assert.Equal(t, want, backup.Fixpoint.MaxRounds, n)
	}
	_, err = os.Stat(path + ".back4")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Unfold.Order = "sideways"
	err := Save(cfg, filepath.Join(t.TempDir(), "am.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to save")
}
