// Package agent is the workstation-side process: it checks in with the
// control plane, waits for a department assignment, downloads and installs
// the assigned tools, and reports the outcome.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the agent expects its configuration file.
var DefaultConfigPath = defaultConfigPath()

// Config is the on-disk agent configuration.
type Config struct {
	API          string        `yaml:"api"`
	Token        string        `yaml:"token"`
	Hostname     string        `yaml:"hostname"`
	CacheDir     string        `yaml:"cache_dir"`
	PollInterval time.Duration `yaml:"-"`
	IsLead       bool          `yaml:"is_lead"`
}

// UnmarshalYAML decodes poll_interval from a duration string ("5m", "90s").
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		API          string `yaml:"api"`
		Token        string `yaml:"token"`
		Hostname     string `yaml:"hostname"`
		CacheDir     string `yaml:"cache_dir"`
		PollInterval string `yaml:"poll_interval"`
		IsLead       bool   `yaml:"is_lead"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}

	c.API = aux.API
	c.Token = aux.Token
	c.Hostname = aux.Hostname
	c.CacheDir = aux.CacheDir
	c.IsLead = aux.IsLead

	if aux.PollInterval != "" {
		interval, err := time.ParseDuration(aux.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval: %w", err)
		}
		c.PollInterval = interval
	}
	return nil
}

// LoadConfig reads and validates the agent configuration, applying defaults
// for hostname, cache directory, and poll interval.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() (Config, error) {
	if strings.TrimSpace(c.API) == "" {
		return Config{}, fmt.Errorf("config missing api field")
	}

	if strings.TrimSpace(c.Hostname) == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return Config{}, fmt.Errorf("detect hostname: %w", err)
		}
		c.Hostname = hostname
	}

	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 60 * time.Second
	}
	return c, nil
}

func defaultConfigPath() string {
	if runtime.GOOS == "windows" {
		return `C:\ProgramData\Prepd\agent.yaml`
	}
	return "/etc/prepd/agent.yaml"
}

func defaultCacheDir() string {
	if runtime.GOOS == "windows" {
		return `C:\ProgramData\Prepd\cache`
	}
	return filepath.Join(os.TempDir(), "prepd-cache")
}
