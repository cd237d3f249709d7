package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pynezz/heimdall/internal/fs"
	"github.com/pynezz/heimdall/internal/util"
)

const maxRecentFiles = 10

type Cfg struct {
	Paths struct {
		RulesDir string `yaml:"rules_dir"`
		LogsDir  string `yaml:"logs_dir"`
		Database string `yaml:"database"`
	} `yaml:"paths"`
	Network struct {
		Port         int `yaml:"port"`
		ReadTimeout  int `yaml:"read_timeout,omitempty"`
		WriteTimeout int `yaml:"write_timeout,omitempty"`
	} `yaml:"network"`
	API struct {
		Secret string `yaml:"secret,omitempty"`
	} `yaml:"api"`
	RecentFiles []string `yaml:"recent_files,omitempty"`

	path string
}

// DefaultCfg returns the configuration used when no file is present.
func DefaultCfg() *Cfg {
	cfg := &Cfg{}
	cfg.Paths.RulesDir = "rules"
	cfg.Paths.LogsDir = "logs"
	cfg.Paths.Database = "heimdall.db"
	cfg.Network.Port = 8080
	cfg.Network.ReadTimeout = 10
	cfg.Network.WriteTimeout = 10
	return cfg
}

// LoadConfig loads the configuration from the given path
func LoadConfig(path string) (*Cfg, error) {
	file, err := fs.GetFile(path)
	if err != nil {
		util.PrintErrorf("Failed to load configuration file: %s", path)
		return nil, err
	}
	defer file.Close()

	buf, err := os.ReadFile(file.Name())
	if err != nil {
		return nil, err
	}

	cfg := DefaultCfg()
	if err = yaml.Unmarshal(buf, cfg); err != nil {
		return nil, err
	}
	cfg.path = path

	util.PrintSuccess(fmt.Sprintf("Loaded configuration file: %s", path))
	return cfg, nil
}

// Write persists the configuration back to the path it was loaded from, or
// to the given path for a fresh configuration.
func (c *Cfg) Write(path string) error {
	if path == "" {
		path = c.path
	}
	if path == "" {
		return fmt.Errorf("no configuration path set")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}
	c.path = path
	return nil
}

// AddRecentFile pushes a path to the front of the recent files list,
// deduplicating and keeping at most ten entries.
func (c *Cfg) AddRecentFile(path string) {
	recents := []string{path}
	for _, r := range c.RecentFiles {
		if r != path {
			recents = append(recents, r)
		}
	}
	if len(recents) > maxRecentFiles {
		recents = recents[:maxRecentFiles]
	}
	c.RecentFiles = recents
}

func (c *Cfg) ClearRecentFiles() {
	c.RecentFiles = nil
}
