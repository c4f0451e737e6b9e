// Package buildconfig parses the sharpts.yaml project file: entry module,
// output binary name, embedded resource globs, target runtime selection,
// and tuning knobs the emitter threads through to the runtime.
package buildconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level sharpts.yaml configuration.
type Config struct {
	// Entry is the path of the root module, relative to the config file.
	Entry string `yaml:"entry"`

	// Output is the emitted binary's file name. Defaults to the entry
	// module's base name with a ".bin" extension.
	Output string `yaml:"output,omitempty"`

	// Embed lists glob patterns of static files bundled into the image's
	// resource section.
	Embed []string `yaml:"embed,omitempty"`

	// Target selects the host managed runtime the image is linked for.
	// Defaults to "default".
	Target string `yaml:"target,omitempty"`

	// LockTimeoutMS bounds how long a @lock critical section waits for the
	// monitor before the runtime faults the acquisition. 0 means wait
	// forever.
	LockTimeoutMS int `yaml:"lock_timeout_ms,omitempty"`
}

// LoadConfig reads and parses a sharpts.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses sharpts.yaml content from bytes. The path argument is
// used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for sharpts.yaml starting from dir and walking up to
// parent directories. Returns the path if found, or "" and nil error when
// no config exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		for _, name := range []string{"sharpts.yaml", "sharpts.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	if c.Entry == "" {
		return fmt.Errorf("%s: entry is required", path)
	}
	if c.LockTimeoutMS < 0 {
		return fmt.Errorf("%s: lock_timeout_ms must not be negative", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Target == "" {
		c.Target = "default"
	}
	if c.Output == "" {
		base := filepath.Base(c.Entry)
		ext := filepath.Ext(base)
		c.Output = base[:len(base)-len(ext)] + ".bin"
	}
}
