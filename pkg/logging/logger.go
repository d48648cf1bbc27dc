// Package logging provides component loggers for TaskPilot.
//
// Loggers created with NewLogger share one file per process under the log
// directory (default ~/.taskpilot/logs), named <session-id>-taskpilot.log.
// If the file cannot be opened the logger falls back to stderr.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the minimum severity a Logger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a verbosity name to a Level. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "quiet":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes leveled entries for one component.
type Logger struct {
	sessionID string
	component string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	minLevel  Level
	closeOnce sync.Once
}

var (
	sessionID     string
	sessionIDOnce sync.Once

	dirMu  sync.Mutex
	logDir string

	sharedMu   sync.Mutex
	sharedFile *os.File
)

func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// SetDirectory overrides the log directory. It must be called before the first
// NewLogger to take effect.
func SetDirectory(dir string) {
	dirMu.Lock()
	defer dirMu.Unlock()
	logDir = dir
}

func directory() (string, error) {
	dirMu.Lock()
	defer dirMu.Unlock()

	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		logDir = filepath.Join(homeDir, ".taskpilot", "logs")
	}
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return logDir, nil
}

// openShared opens the per-process log file once; all components append to it.
func openShared(dir string) (*os.File, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedFile != nil {
		return sharedFile, nil
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-taskpilot.log", getSessionID()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	sharedFile = f
	return f, nil
}

// NewLogger creates a file logger for component.
//
// On failure it returns a fallback logger that writes to stderr along with the
// error, so callers can warn and carry on.
func NewLogger(component string) (*Logger, error) {
	dir, err := directory()
	if err != nil {
		return newFallbackLogger(component, err), err
	}

	file, err := openShared(dir)
	if err != nil {
		return newFallbackLogger(component, err), err
	}

	return &Logger{
		sessionID: getSessionID(),
		component: component,
		file:      file,
		logger:    log.New(file, "", 0),
		logPath:   file.Name(),
		minLevel:  LevelDebug,
	}, nil
}

// New creates a logger for component that writes to w.
func New(component string, w io.Writer) *Logger {
	return &Logger{
		sessionID: getSessionID(),
		component: component,
		logger:    log.New(w, "", 0),
		minLevel:  LevelDebug,
	}
}

// Discard returns a logger that drops every entry.
func Discard() *Logger {
	return New("discard", io.Discard)
}

func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
	logger.Printf("WARNING: Failed to initialize file logging: %v", err)
	logger.Printf("Falling back to stderr logging")

	return &Logger{
		sessionID: getSessionID(),
		component: component,
		logger:    logger,
		minLevel:  LevelDebug,
	}
}

// Named returns a logger for another component sharing the same destination
// and level.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		sessionID: l.sessionID,
		component: component,
		logger:    l.logger,
		logPath:   l.logPath,
		minLevel:  l.minLevel,
	}
}

// SetLevel sets the minimum level written.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

func (l *Logger) write(level Level, label, format string, v ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	l.logger.Printf("[%s] [%s] [%s] %s", timestamp, l.component, label, fmt.Sprintf(format, v...))
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, "INFO", format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, "WARN", format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, "ERROR", format, v...)
}

// SessionID returns the process-wide session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// LogPath returns the path to the log file, or "" for writer-backed loggers.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the shared log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file == nil {
			return
		}
		sharedMu.Lock()
		defer sharedMu.Unlock()
		if sharedFile == l.file {
			sharedFile = nil
		}
		err = l.file.Close()
	})
	return err
}
