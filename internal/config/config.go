package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Library string `yaml:"library"`
	Workers int    `yaml:"workers"`
	Debug   bool   `yaml:"debug"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`

	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CloudflareBypass  bool    `yaml:"cloudflare_bypass"`

	ExternalUpdater bool   `yaml:"external_updater"`
	ExternalCommand string `yaml:"external_command"`

	CacheDir string `yaml:"cache_dir"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool

	Library string
	Workers int

	Cookie     string
	CookieFile string
	UserAgent  string

	RequestsPerSecond float64
	CloudflareBypass  bool

	ExternalUpdater bool
	ExternalCommand string

	CacheDir string
}

func DefaultConfig() *Config {
	return &Config{
		Library:           ".",
		Workers:           4,
		Debug:             false,
		Cookie:            "",
		CookieFile:        "",
		UserAgent:         "",
		RequestsPerSecond: 2,
		CloudflareBypass:  false,
		ExternalUpdater:   false,
		ExternalCommand:   "fanficfare",
		CacheDir:          "",
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `noveld config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Library != "" {
		c.Library = o.Library
	}
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	if o.Debug {
		c.Debug = true
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.RequestsPerSecond != 0 {
		c.RequestsPerSecond = o.RequestsPerSecond
	}
	if o.CloudflareBypass {
		c.CloudflareBypass = true
	}
	if o.ExternalUpdater {
		c.ExternalUpdater = true
	}
	if o.ExternalCommand != "" {
		c.ExternalCommand = o.ExternalCommand
	}
	if o.CacheDir != "" {
		c.CacheDir = o.CacheDir
	}
}

func normalizeDefaults(c *Config) {
	if c.Library == "" {
		c.Library = "."
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 2
	}
	if c.ExternalCommand == "" {
		c.ExternalCommand = "fanficfare"
	}
}

func (c *Config) Print() {
	fmt.Printf(" -library: %s\n", c.Library)
	fmt.Printf(" -workers: %d\n", c.Workers)
	fmt.Printf(" -requests_per_second: %g\n", c.RequestsPerSecond)
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.UserAgent != "" {
		fmt.Printf(" -user_agent: %s\n", c.UserAgent)
	}
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.CloudflareBypass {
		fmt.Printf(" -cloudflare_bypass: %t\n", c.CloudflareBypass)
	}
	if c.ExternalUpdater {
		fmt.Printf(" -external_updater: %t\n", c.ExternalUpdater)
		fmt.Printf(" -external_command: %s\n", c.ExternalCommand)
	}
	if c.CacheDir != "" {
		fmt.Printf(" -cache_dir: %s\n", c.CacheDir)
	}
}
