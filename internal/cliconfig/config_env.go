package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "STDIO_INSPECT_"

// ApplyEnvConfig applies configuration from environment variables (STDIO_INSPECT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", os.Getenv(EnvPrefix+"HOST"), &cfg.Host)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("port", os.Getenv(EnvPrefix+"PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("max-packet", os.Getenv(EnvPrefix+"MAX_PACKET"), &cfg.MaxPacket); err != nil {
		return err
	}
	if err := s.setIntFromString("bus-capacity", os.Getenv(EnvPrefix+"BUS_CAPACITY"), &cfg.BusCapacity); err != nil {
		return err
	}

	if err := s.setDuration("debounce", os.Getenv(EnvPrefix+"DEBOUNCE_INTERVAL"), &cfg.DebounceInterval); err != nil {
		return err
	}
	if err := s.setDuration("check-interval", os.Getenv(EnvPrefix+"CHECK_INTERVAL"), &cfg.CheckInterval); err != nil {
		return err
	}
	if err := s.setDuration("send-timeout", os.Getenv(EnvPrefix+"SEND_TIMEOUT"), &cfg.SendTimeout); err != nil {
		return err
	}
	if err := s.setDuration("drain-timeout", os.Getenv(EnvPrefix+"DRAIN_TIMEOUT"), &cfg.DrainTimeout); err != nil {
		return err
	}

	s.setBoolFromString("flush-on-exit", os.Getenv(EnvPrefix+"FLUSH_ON_EXIT"), &cfg.FlushOnExit)

	return nil
}
