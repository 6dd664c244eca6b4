package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/stdio-inspect/internal/adapters/udp"
	"github.com/bft-labs/stdio-inspect/internal/app"
	"github.com/bft-labs/stdio-inspect/internal/cliconfig"
	"github.com/bft-labs/stdio-inspect/internal/viewer"
	"github.com/bft-labs/stdio-inspect/pkg/log"
)

// interruptedExitCode is the shell convention for death by SIGINT.
const interruptedExitCode = 130

const longHelp = `Run an executable with its stdin, stdout and stderr mirrored to the
terminal, and stream every byte it reads or writes to a UDP listener.

Consecutive output of one stream is batched into a single datagram. A
datagram is sent when the stream changes, when the batch reaches
--max-packet bytes, or after --debounce of quiet. Each datagram carries a
one-byte stream tag (0 stdin, 1 stdout, 2 stderr) followed by the bytes.

Pass "-" instead of an executable to listen on --port and print what
arrives.`

var exampleUsage = strings.TrimSpace(`
  stdio-inspect --port 9000 ./server --verbose
  stdio-inspect --port 9000 -
  stdio-inspect --host 127.0.0.1 --port 9000 --debounce 100ms sh -c 'ls; ls /nope'
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	exitCode := 0

	zl := cliconfig.Logger(os.Stderr, cfg.LogLevel)

	root := &cobra.Command{
		Use:           "stdio-inspect [flags] <executable> [args...] | -",
		Short:         "Mirror a process's standard streams and stream them over UDP",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// Flag values only; reloads start from here.
			base := cfg

			if err := cliconfig.Load(&cfg, cfgFile, changed); err != nil {
				return err
			}
			cfg.Command, cfg.Args = args[0], args[1:]
			if err := cfg.Validate(); err != nil {
				return err
			}

			zl = cliconfig.Logger(os.Stderr, cfg.LogLevel)
			logger := log.NewZerologAdapterWithLogger(zl)
			logger.Debug("configuration",
				log.String("target", cfg.Target.String()),
				log.String("command", cfg.Command),
				log.Int("max_packet", cfg.MaxPacket),
				log.Duration("debounce", cfg.DebounceInterval),
				log.Bool("flush_on_exit", cfg.FlushOnExit),
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.ViewMode() {
				return runView(ctx, cfg, logger)
			}

			code, err := runSession(ctx, cfg, base, cfgFile, changed, logger)
			exitCode = code
			return err
		},
	}

	// Everything after the executable belongs to the child.
	root.Flags().SetInterspersed(false)

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.stdio-inspect/config.toml)")
	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "UDP host; \"localhost\" means ::1 (default ::1, or :: in view mode)")
	root.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "UDP port; without it the relay is disabled")

	root.Flags().IntVar(&cfg.MaxPacket, "max-packet", cfg.MaxPacket, "flush a batch once it exceeds this many bytes")
	root.Flags().DurationVar(&cfg.DebounceInterval, "debounce", cfg.DebounceInterval, "flush a batch after this much quiet")
	root.Flags().DurationVar(&cfg.CheckInterval, "check-interval", cfg.CheckInterval, "how often the quiet deadline is checked")
	root.Flags().IntVar(&cfg.BusCapacity, "bus-capacity", cfg.BusCapacity, "frames buffered per subscriber before the oldest are dropped")
	root.Flags().DurationVar(&cfg.SendTimeout, "send-timeout", cfg.SendTimeout, "drop a datagram whose send takes longer than this")
	root.Flags().DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "how long to wait for child output after it exits")
	root.Flags().BoolVar(&cfg.FlushOnExit, "flush-on-exit", cfg.FlushOnExit, "send the partial batch when the child exits")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		zl.Error().Err(err).Msg("stdio-inspect")
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// runSession proxies the child and returns its exit code. While it runs,
// edits to the config file update the relay's debounce interval; flags
// (base) and the environment still take precedence over the file.
func runSession(ctx context.Context, cfg, base cliconfig.Config, cfgFile string, changed map[string]bool, logger log.Logger) (int, error) {
	drain := cfg.DrainTimeout
	if drain == 0 {
		drain = -1
	}
	session := app.NewSession(app.SessionConfig{
		Command:      cfg.Command,
		Args:         cfg.Args,
		Target:       cfg.Target,
		Relay:        cfg.RelayConfig(),
		BusCapacity:  cfg.BusCapacity,
		DrainTimeout: drain,
	}, logger)

	reload := func() {
		next := base
		if err := cliconfig.Load(&next, cfgFile, changed); err != nil {
			logger.Warn("config reload failed", log.Err(err))
			return
		}
		if next.DebounceInterval <= 0 {
			return
		}
		if session.SetDebounceInterval(next.DebounceInterval) {
			logger.Info("debounce interval reloaded", log.Duration("debounce", next.DebounceInterval))
		}
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if cfg.Target.IsValid() && cfgFile != "" && cliconfig.FileExists(cfgFile) {
		w, err := cliconfig.NewWatcher(cfgFile, cliconfig.DefaultWatchDelay, reload, logger)
		if err != nil {
			logger.Warn("config hot reload disabled", log.Err(err))
		} else {
			go w.Run(watchCtx)
		}
	}

	code, err := session.Run(ctx)
	if err != nil && ctx.Err() != nil {
		logger.Info("interrupted", log.Err(err))
		return interruptedExitCode, nil
	}
	return code, err
}

func runView(ctx context.Context, cfg cliconfig.Config, logger log.Logger) error {
	conn, err := udp.Listen(cfg.Target)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("listening", log.Stringer("addr", conn.LocalAddr()))
	v := viewer.New(conn, os.Stdout, os.Stderr, logger)
	err = v.Run(ctx)
	logger.Info("viewer stopped",
		log.Uint64("received", v.Received()),
		log.Uint64("malformed", v.Malformed()),
	)
	return err
}
