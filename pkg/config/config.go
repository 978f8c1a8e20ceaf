// Package config persists concord's settings and session state as a TOML
// file under ~/.concord/.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// DefaultHomeserver is used when no homeserver has been configured yet.
const DefaultHomeserver = "https://chat.concord.example"

// Config is everything concord remembers between runs. SessionToken is a
// bearer credential; the file is written 0600 because of it.
type Config struct {
	Homeserver      string            `toml:"homeserver"`
	UserID          string            `toml:"user_id,omitempty"`
	SessionToken    string            `toml:"session_token,omitempty"`
	DeviceID        string            `toml:"device_id,omitempty"`
	MentionKeywords []string          `toml:"mention_keywords,omitempty"`
	LastRead        map[string]string `toml:"last_read,omitempty"`
}

// Dir returns the concord configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config.Dir: %w", err)
	}
	return filepath.Join(home, ".concord"), nil
}

// Path returns the location of the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config at path. A missing file is not an error: first run
// starts from defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{Homeserver: DefaultHomeserver}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.Homeserver == "" {
		cfg.Homeserver = DefaultHomeserver
	}
	return cfg, nil
}

// Save writes the config to path atomically with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config.Save: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "config-*.toml")
	if err != nil {
		return fmt.Errorf("config.Save: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after the rename
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("config.Save: %w", err)
	}
	if err := toml.NewEncoder(tmp).Encode(c); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("config.Save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config.Save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config.Save: %w", err)
	}
	return nil
}

// HasSession reports whether stored credentials exist.
func (c *Config) HasSession() bool {
	return c.UserID != "" && c.SessionToken != ""
}

// ClearSession drops the stored credentials but keeps everything else.
func (c *Config) ClearSession() {
	c.UserID = ""
	c.SessionToken = ""
}

// EnsureDeviceID returns the stored device id, minting one on first use.
func (c *Config) EnsureDeviceID() string {
	if c.DeviceID == "" {
		c.DeviceID = uuid.NewString()
	}
	return c.DeviceID
}
