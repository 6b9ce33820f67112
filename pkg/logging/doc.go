// Package logging provides structured logging configuration for vhostd.
//
// This package wraps log/slog so the engine, the listener and the CLI log
// the same way. It supports configurable levels and output formats, and can
// mirror every record to a second writer such as a log file.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("engine started", "ports", "8080,8443s")
//
// # Integration
//
// Components accept a *slog.Logger through an option. If none is provided
// they use logging.Nop().
package logging
