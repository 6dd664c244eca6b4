package cliconfig

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/stdio-inspect/internal/adapters/udp"
	"github.com/bft-labs/stdio-inspect/internal/domain"
	"github.com/bft-labs/stdio-inspect/internal/framebus"
	"github.com/bft-labs/stdio-inspect/internal/proxy"
	"github.com/bft-labs/stdio-inspect/internal/relay"
)

// ViewCommand in place of an executable selects view mode.
const ViewCommand = "-"

// Config holds CLI configuration for stdio-inspect.
type Config struct {
	Host string
	Port int

	// Command is the executable to run, or ViewCommand.
	Command string
	Args    []string

	MaxPacket        int
	DebounceInterval time.Duration
	CheckInterval    time.Duration
	BusCapacity      int
	SendTimeout      time.Duration
	DrainTimeout     time.Duration
	FlushOnExit      bool
	LogLevel         string

	// Target is derived by Validate. The zero value means no relay in run
	// mode; in view mode it is the address to listen on.
	Target netip.AddrPort
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxPacket:        relay.DefaultMaxPacket,
		DebounceInterval: relay.DefaultDebounceInterval,
		CheckInterval:    relay.DefaultCheckInterval,
		BusCapacity:      framebus.DefaultCapacity,
		SendTimeout:      relay.DefaultSendTimeout,
		DrainTimeout:     proxy.DefaultDrainTimeout,
		FlushOnExit:      true,
		LogLevel:         zerolog.WarnLevel.String(),
	}
}

// ViewMode reports whether the command selects view mode.
func (c *Config) ViewMode() bool {
	return c.Command == ViewCommand
}

// Validate checks the configuration and resolves Target.
func (c *Config) Validate() error {
	if c.Command == "" {
		return invalid("an executable or %q is required", ViewCommand)
	}
	if c.ViewMode() && len(c.Args) > 0 {
		return invalid("view mode takes no arguments")
	}

	target, err := ResolveTarget(c.Host, c.Port, c.ViewMode())
	if err != nil {
		return err
	}
	c.Target = target

	if c.MaxPacket <= 0 {
		return invalid("max packet must be positive")
	}
	if c.MaxPacket+domain.HeaderSize > udp.MaxDatagram {
		return invalid("max packet %d does not fit in a UDP datagram (limit %d)", c.MaxPacket, udp.MaxDatagram-domain.HeaderSize)
	}
	if c.DebounceInterval <= 0 {
		return invalid("debounce interval must be positive")
	}
	if c.CheckInterval <= 0 {
		return invalid("check interval must be positive")
	}
	if c.BusCapacity <= 0 {
		return invalid("bus capacity must be positive")
	}
	if c.SendTimeout <= 0 {
		return invalid("send timeout must be positive")
	}
	if c.DrainTimeout < 0 {
		return invalid("drain timeout must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ResolveTarget turns host and port into a socket address. Port 0 means
// unset. "localhost" maps to ::1. Without a host the address is ::1 in
// run mode and :: in view mode. A host without a port is rejected, and
// view mode requires a port.
func ResolveTarget(host string, port int, view bool) (netip.AddrPort, error) {
	if port < 0 || port > 65535 {
		return netip.AddrPort{}, invalid("port %d out of range", port)
	}
	if port == 0 {
		if host != "" {
			return netip.AddrPort{}, invalid("host argument without port is not supported")
		}
		if view {
			return netip.AddrPort{}, invalid("view mode requires a udp port")
		}
		return netip.AddrPort{}, nil
	}

	var addr netip.Addr
	switch {
	case host == "localhost":
		addr = netip.IPv6Loopback()
	case host != "":
		a, err := netip.ParseAddr(strings.Trim(host, "[]"))
		if err != nil {
			return netip.AddrPort{}, invalid("host %q is not an IP address", host)
		}
		addr = a
	case view:
		addr = netip.IPv6Unspecified()
	default:
		addr = netip.IPv6Loopback()
	}
	return netip.AddrPortFrom(addr, uint16(port)), nil
}

// RelayConfig returns the relay settings derived from c.
func (c *Config) RelayConfig() relay.Config {
	return relay.Config{
		MaxPacket:        c.MaxPacket,
		DebounceInterval: c.DebounceInterval,
		CheckInterval:    c.CheckInterval,
		SendTimeout:      c.SendTimeout,
		FlushOnStop:      c.FlushOnExit,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
