package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	MaxPacket        int    `toml:"max_packet"`
	DebounceInterval string `toml:"debounce_interval"`
	CheckInterval    string `toml:"check_interval"`
	BusCapacity      int    `toml:"bus_capacity"`
	SendTimeout      string `toml:"send_timeout"`
	DrainTimeout     string `toml:"drain_timeout"`
	FlushOnExit      *bool  `toml:"flush_on_exit"`
	LogLevel         string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.stdio-inspect/config.toml, or "" if the
// home directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".stdio-inspect", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("max-packet", fc.MaxPacket, &cfg.MaxPacket)
	s.setInt("bus-capacity", fc.BusCapacity, &cfg.BusCapacity)

	if err := s.setDuration("debounce", fc.DebounceInterval, &cfg.DebounceInterval); err != nil {
		return err
	}
	if err := s.setDuration("check-interval", fc.CheckInterval, &cfg.CheckInterval); err != nil {
		return err
	}
	if err := s.setDuration("send-timeout", fc.SendTimeout, &cfg.SendTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", fc.DrainTimeout, &cfg.DrainTimeout); err != nil {
		return err
	}

	s.setBool("flush-on-exit", fc.FlushOnExit, &cfg.FlushOnExit)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
