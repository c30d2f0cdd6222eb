package localconfig

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads ".archkit.yaml" at the given path. A missing file yields the
// default configuration rather than an error, matching the teacher's
// LoadConfig behavior for its own treex.yaml.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("opening local config %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	return LoadFromReader(file)
}

// LoadFromReader decodes a Config from an io.Reader with strict field
// checking, so a typo'd key fails loudly instead of being silently ignored.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil {
		if err == io.EOF {
			return Default(), nil
		}
		return nil, fmt.Errorf("parsing local config: %w", err)
	}

	def := Default()
	if cfg.Logging == nil {
		cfg.Logging = def.Logging
	}
	if cfg.Display == nil {
		cfg.Display = def.Display
	}
	if cfg.Run == nil {
		cfg.Run = def.Run
	}
	return cfg, nil
}

// FindAndLoad looks for ".archkit.yaml" in dir and loads it, falling back
// to defaults when absent.
func FindAndLoad(dir string) (*Config, error) {
	path := filepath.Join(dir, ".archkit.yaml")
	if _, err := os.Stat(path); err != nil {
		return Default(), nil
	}
	return Load(path)
}
