package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/orx/errors"
)

// EnvPrefix prefixes every environment override, e.g. ORX_UNFOLD_ORDER.
const EnvPrefix = "ORX"

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper

	// ConfigSources records, per dotted key, the file that last set it
	// during the most recent load.
	ConfigSources = make(map[string]SourceInfo)
)

// configFile is one candidate file in merge order.
type configFile struct {
	path   string
	source ConfigSource
}

// Load reads the orx configuration once and caches it.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the Viper instance behind Load.
func GetViper() (*viper.Viper, error) {
	mu.Lock()
	defer mu.Unlock()
	return initViper()
}

// LoadWithViper decodes configuration from a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path on top of the
// defaults. Environment variables are not consulted.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", configPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", configPath)
	}
	return cfg, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	ConfigSources = make(map[string]SourceInfo)
}

func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}
	v, sources, err := buildViper(configFiles())
	if err != nil {
		return nil, err
	}
	ConfigSources = sources
	viperInstance = v
	return v, nil
}

// buildViper layers defaults, files and environment into a new instance.
func buildViper(files []configFile) (*viper.Viper, map[string]SourceInfo, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	sources := make(map[string]SourceInfo)
	if err := mergeConfigFiles(v, files, sources); err != nil {
		return nil, nil, err
	}
	return v, sources, nil
}

// configFiles lists the candidate files, lowest precedence first:
// system < user < project. Environment variables override all of them.
func configFiles() []configFile {
	files := []configFile{{path: "/etc/orx/am.toml", source: SourceSystem}}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, configFile{path: filepath.Join(home, ".orx", "am.toml"), source: SourceUser})
	}
	if project := findProjectConfig(); project != "" {
		files = append(files, configFile{path: project, source: SourceProject})
	}
	return files
}

// findProjectConfig searches for am.toml by walking up from the working
// directory. It returns "" when none is found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findConfigFrom(dir)
}

func findConfigFrom(dir string) string {
	for {
		amPath := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(amPath); err == nil {
			return amPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges each existing file into v in order and records
// which file set each key. Later files win; a malformed file is an error.
func mergeConfigFiles(v *viper.Viper, files []configFile, sources map[string]SourceInfo) error {
	for _, f := range files {
		if _, err := os.Stat(f.path); err != nil {
			continue
		}
		tmp := viper.New()
		tmp.SetConfigFile(f.path)
		tmp.SetConfigType("toml")
		if err := tmp.ReadInConfig(); err != nil {
			return errors.WithHint(
				errors.Wrapf(err, "failed to read %s config %s", f.source, f.path),
				"fix or remove the file; orx merges /etc/orx/am.toml, ~/.orx/am.toml and the nearest am.toml")
		}
		settings := tmp.AllSettings()
		if err := v.MergeConfigMap(settings); err != nil {
			return errors.Wrapf(err, "failed to merge %s", f.path)
		}
		markSettingsFromSource(settings, "", f.source, f.path, sources)
	}
	return nil
}

// markSettingsFromSource records source for every leaf key in settings.
func markSettingsFromSource(settings map[string]interface{}, prefix string, source ConfigSource, path string, sourceMap map[string]SourceInfo) {
	for key, value := range settings {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			markSettingsFromSource(nested, fullKey, source, path, sourceMap)
			continue
		}
		sourceMap[fullKey] = SourceInfo{Source: source, Path: path}
	}
}
