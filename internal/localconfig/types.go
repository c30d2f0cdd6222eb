// Package localconfig loads the optional ".archkit.yaml" file that controls
// ambient tool preferences — display, worker pool sizing, cache TTL, and a
// logging section that the CLI decodes but does not apply. It is deliberately separate from the archetype/rule/exemption/
// ".xfi-config.json" resolution chain in pkg/resolver, which is pure JSON
// per the archetype's external interface contract.
package localconfig

// Config is the ambient preferences document.
type Config struct {
	Version string        `yaml:"version"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
	Display *DisplayConfig `yaml:"display,omitempty"`
	Run     *RunConfig     `yaml:"run,omitempty"`
}

// LoggingConfig holds console/file log settings. The archkit CLI does not
// apply them: console verbosity comes from -v and the log file and levels
// otherwise come from logging.DefaultConfig.
type LoggingConfig struct {
	ConsoleLevel string `yaml:"console_level,omitempty"` // trace|debug|info|warn|error|disabled
	FileLevel    string `yaml:"file_level,omitempty"`
	LogFile      string `yaml:"log_file,omitempty"`
}

// DisplayConfig controls CLI rendering preferences.
type DisplayConfig struct {
	NoColor bool `yaml:"no_color,omitempty"`
}

// RunConfig controls analyzer execution parameters.
type RunConfig struct {
	MaxWorkers        int `yaml:"max_workers,omitempty"`
	FingerprintTTLSec int `yaml:"fingerprint_ttl_seconds,omitempty"`
}

// Default returns the built-in ambient configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Logging: &LoggingConfig{ConsoleLevel: "warn", FileLevel: "debug"},
		Display: &DisplayConfig{},
		Run:     &RunConfig{MaxWorkers: 0, FingerprintTTLSec: 86400},
	}
}
