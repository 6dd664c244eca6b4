// Package log provides the logging abstraction used by stdio-inspect
// components.
//
// Library packages accept a Logger and default to NewNoopLogger, so
// embedding the proxy or the relay never produces output unless asked.
// The CLI wires a zerolog console logger through NewZerologAdapterWithLogger.
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	logger.Warn("frames dropped", log.Uint64("missed", n))
package log
