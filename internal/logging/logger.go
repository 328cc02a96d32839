// Package logging writes layoutweave diagnostics to
// .layoutweave/logs/layoutweave.log. Each component (manifest loading, the
// resolver, the watcher) logs through its own Named view so lines can be
// grepped by origin after the command exits.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/layoutweave/internal/config"
)

// FileName is the diagnostics log inside the logs directory.
const FileName = "layoutweave.log"

type sink struct {
	mu   sync.Mutex
	file *os.File
}

// Logger appends timestamped, component-tagged lines to the project log.
type Logger struct {
	sink      *sink
	component string
}

// New creates (or reuses) the log file for the given project directory.
func New(projectDir string) (*Logger, error) {
	logDir := filepath.Join(projectDir, config.StateDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{sink: &sink{file: f}}, nil
}

// Named returns a logger writing to the same file with lines tagged by
// component. Nested names are joined with a dot.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return nil
	}
	component = strings.TrimSpace(component)
	if l.component != "" && component != "" {
		component = l.component + "." + component
	} else if component == "" {
		component = l.component
	}
	return &Logger{sink: l.sink, component: component}
}

// Close releases the file handle shared by every Named view.
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file == nil {
		return nil
	}
	err := l.sink.file.Close()
	l.sink.file = nil
	return err
}

// Printf writes a single line. It satisfies override.Logger.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.sink == nil {
		return
	}
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if l.component != "" {
		line = l.component + ": " + line
	}
	timestamp := time.Now().Format(time.RFC3339)
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file == nil {
		return
	}
	fmt.Fprintf(l.sink.file, "[%s] %s\n", timestamp, line)
}
