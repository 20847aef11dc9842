package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/DocSpring/chattomap/internal/paths"
)

// Config represents the global ~/.chatmap/config.toml.
type Config struct {
	ServerBaseURL   string `toml:"server_base_url"`
	ChatDBPath      string `toml:"chat_db_path"`
	AddressBookPath string `toml:"addressbook_path"`
}

// Default returns the config used when no file exists.
func Default() *Config {
	return &Config{
		ServerBaseURL:   "https://chattomap.com",
		ChatDBPath:      paths.ChatDBPath(),
		AddressBookPath: paths.AddressBookSourcesDir(),
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads the config file, filling unset fields with defaults.
// A missing file yields the full default config.
func LoadOrDefault(path string) *Config {
	def := Default()
	cfg, err := Load(path)
	if err != nil {
		return def
	}
	if cfg.ServerBaseURL == "" {
		cfg.ServerBaseURL = def.ServerBaseURL
	}
	if cfg.ChatDBPath == "" {
		cfg.ChatDBPath = def.ChatDBPath
	}
	if cfg.AddressBookPath == "" {
		cfg.AddressBookPath = def.AddressBookPath
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
