package cliconfig

import "fmt"

// Load applies the config file at path, if it exists, and then the
// environment to cfg. Settings named in changed came from flags and are
// left alone.
func Load(cfg *Config, path string, changed map[string]bool) error {
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := ApplyEnvConfig(cfg, changed); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}
