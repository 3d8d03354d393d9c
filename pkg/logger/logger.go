// Package logger provides the process-wide structured logger and a separate
// append-only audit stream for user-visible actions (investments, redemptions,
// approvals). Both are built on log/slog.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes logger behaviour. Zero value logs JSON at info level to
// stdout with auditing disabled.
type Config struct {
	Level   string
	Format  string
	Outputs []string
	Audit   AuditConfig
}

// AuditConfig controls the audit stream. Audit entries always go to a file
// with size-based rotation.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu       sync.Mutex
	appLog   *slog.Logger
	auditLog *slog.Logger
	closers  []io.Closer
)

// Init configures the global loggers. Calling it twice replaces the previous
// configuration after closing its outputs.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	closeAllLocked()

	handler, err := buildHandler(cfg)
	if err != nil {
		return err
	}
	appLog = slog.New(handler)
	auditLog = appLog

	if cfg.Audit.Enabled {
		if strings.TrimSpace(cfg.Audit.Path) == "" {
			return errors.New("audit log path is required when auditing is enabled")
		}
		writer, err := newRotatingWriter(cfg.Audit.Path, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, cfg.Audit.MaxAgeDays)
		if err != nil {
			return err
		}
		closers = append(closers, writer)
		auditLog = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return nil
}

func buildHandler(cfg Config) (slog.Handler, error) {
	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	writers := make([]io.Writer, 0, len(outputs))
	for _, out := range outputs {
		switch strings.ToLower(out) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
			file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", out, err)
			}
			closers = append(closers, file)
			writers = append(writers, file)
		}
	}

	writer := writers[0]
	if len(writers) > 1 {
		writer = io.MultiWriter(writers...)
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(writer, opts), nil
	}
	return slog.NewJSONHandler(writer, opts), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the application logger, self-initialising with defaults when
// Init was never called.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if appLog == nil {
		appLog = slog.New(slog.NewJSONHandler(os.Stdout, nil))
		auditLog = appLog
	}
	return appLog
}

// Audit returns the audit logger. It falls back to the application logger
// when auditing is disabled.
func Audit() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if auditLog == nil {
		if appLog == nil {
			appLog = slog.New(slog.NewJSONHandler(os.Stdout, nil))
		}
		auditLog = appLog
	}
	return auditLog
}

// Named returns a child logger grouped under the component name.
func Named(name string) *slog.Logger {
	return L().WithGroup(name)
}

// Sync closes all file-backed outputs.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	return closeAllLocked()
}

func closeAllLocked() error {
	var err error
	for _, closer := range closers {
		err = errors.Join(err, closer.Close())
	}
	closers = nil
	return err
}
