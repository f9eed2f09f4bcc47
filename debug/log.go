package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
	logger  = newLogger(io.Discard)
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// DefaultPath returns ~/.config/seqbox/debug.log
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "seqbox", "debug.log")
}

// Enable starts logging to path (DefaultPath when empty). The file is
// truncated so each run starts clean. level is a logrus level name.
func Enable(path, level string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("debug log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("debug log: %w", err)
	}
	if err := enable(f, level); err != nil {
		f.Close()
		return err
	}

	mu.Lock()
	file = f
	mu.Unlock()
	Log("debug", "=== Debug logging started ===")
	return nil
}

// EnableWriter logs to w instead of a file (headless mode logs to stderr)
func EnableWriter(w io.Writer, level string) error {
	return enable(w, level)
}

func enable(w io.Writer, level string) error {
	lvl := logrus.InfoLevel
	if level != "" {
		var err error
		if lvl, err = logrus.ParseLevel(level); err != nil {
			return fmt.Errorf("debug log level: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	enabled = true
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	logger.SetOutput(io.Discard)
	enabled = false
}

// Enabled reports whether logging is on
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

func entry(category string) *logrus.Entry {
	return logger.WithField("category", category)
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	if !Enabled() {
		return
	}
	entry(category).Infof(format, args...)
}

// Warn logs something that went wrong but was recovered from
func Warn(category, format string, args ...any) {
	if !Enabled() {
		return
	}
	entry(category).Warnf(format, args...)
}

// Error logs a failure
func Error(category string, err error, format string, args ...any) {
	if !Enabled() {
		return
	}
	entry(category).WithError(err).Errorf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var (
	countersMu sync.Mutex
	counters   = make(map[string]int)
)

func LogEvery(n int, category, format string, args ...any) {
	countersMu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	countersMu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
