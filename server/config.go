package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the host settings.
type Config struct {
	// Addr is the listen address, e.g. ":8521".
	Addr string `yaml:"addr"`
	// Title is the served page title.
	Title string `yaml:"title"`
	// AssetsDir is served under /static/. Renderer scripts declared by
	// elements are looked up under <assets_dir>/js/, custom .svg glyphs
	// under <assets_dir>/images/.
	AssetsDir string `yaml:"assets_dir"`
	// Autostep advances the model on a timer. When false, the model only
	// advances on client get_step requests.
	Autostep bool `yaml:"autostep"`
	// PublishMillis is the autostep period in milliseconds.
	PublishMillis int `yaml:"publish_millis"`
}

// DefaultConfig returns the stock settings. 8521 is the customary port for
// this family of visualization servers.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8521",
		Title:         "Grid Visualization",
		AssetsDir:     "assets",
		Autostep:      true,
		PublishMillis: 100,
	}
}

// LoadConfig reads settings from a yaml file, overlaying the defaults. An
// empty path yields the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr must not be empty")
	}
	if c.PublishMillis <= 0 {
		return fmt.Errorf("publish_millis must be positive, got %d", c.PublishMillis)
	}
	return nil
}

// PublishRate returns the autostep period as a duration.
func (c Config) PublishRate() time.Duration {
	return time.Duration(c.PublishMillis) * time.Millisecond
}
