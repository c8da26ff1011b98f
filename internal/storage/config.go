package storage

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine's ambient configuration (§2, §4.1), normally loaded
// from a `minisql.yaml` file alongside the data directory. Defaults match
// the spec exactly: a `data/` directory and a 100-page buffer pool.
type Config struct {
	DataDir            string `yaml:"data_dir"`
	BufferPoolCapacity int    `yaml:"buffer_pool_capacity"`
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{DataDir: "data", BufferPoolCapacity: DefaultCapacity}
}

// LoadConfig reads path as YAML, falling back to DefaultConfig() for any
// field left unset (or for the whole file, if path does not exist).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, wrapIO("read config", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultConfig().DataDir
	}
	if cfg.BufferPoolCapacity <= 0 {
		cfg.BufferPoolCapacity = DefaultCapacity
	}
	return cfg, nil
}
