package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLogDir is ~/.rolodex/logs, under the temp dir when there is no home.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".rolodex", "logs")
}

// DefaultLogPath is where --debug writes.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "rolodex.log")
}

type Config struct {
	Level string // debug, info, warn or error

	// FilePath enables file logging with rotation past MaxSizeMB, keeping
	// MaxFiles old files.
	FilePath  string
	MaxSizeMB int
	MaxFiles  int

	// WriteToStderr mirrors records to stderr. Stderr is also used when
	// there is no file.
	WriteToStderr bool
}

func DefaultConfig() Config {
	return Config{
		Level:         "info",
		MaxSizeMB:     defaultMaxSizeMB,
		MaxFiles:      defaultMaxFiles,
		WriteToStderr: true,
	}
}

// DebugConfig logs everything to DefaultLogPath as well as stderr.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.FilePath = DefaultLogPath()
	return cfg
}

// Setup returns a logger for cfg and a func that flushes and closes its
// file. The func is never nil.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	sinks := make([]io.Writer, 0, 2)
	closeFn := func() {}

	if cfg.FilePath != "" {
		w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, w)
		closeFn = func() {
			_ = w.Sync()
			_ = w.Close()
		}
	}
	if cfg.WriteToStderr || len(sinks) == 0 {
		sinks = append(sinks, os.Stderr)
	}
	return New(io.MultiWriter(sinks...), cfg.Level), closeFn, nil
}

// New returns a JSON logger on out. Unknown level names mean info.
func New(out io.Writer, level string) *slog.Logger {
	lvl, _ := lookupLevel(level)
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}

// Discard drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func lookupLevel(name string) (slog.Level, bool) {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return slog.LevelInfo, false
	}
	return lvl, true
}

// ValidLevel reports whether name is a level New understands.
func ValidLevel(name string) bool {
	_, ok := lookupLevel(name)
	return ok
}
