package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// fingerprintField tags resolution entries with the mapping fingerprint.
const fingerprintField = "fingerprint="

// Logbook persists install, uninstall and resolution outcomes to a plain
// text file so operators can see how the active layout changed over time.
// Successful resolutions carry the mapping fingerprint, which lets
// LastFingerprint tell whether a later run changed the active layout.
type Logbook struct {
	path string
	mu   sync.Mutex
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Logbook{path: path}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s\n",
		time.Now().UTC().Format(time.RFC3339),
		string(level),
		strings.TrimSpace(message),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Resolved records a successful resolution of slots slots under fingerprint.
func (l *Logbook) Resolved(reason string, slots int, fingerprint string) {
	l.Append(LevelInfo, fmt.Sprintf("%s: resolved %d slots %s%s", reason, slots, fingerprintField, fingerprint))
}

// LastFingerprint returns the fingerprint of the most recent resolution
// entry.
func (l *Logbook) LastFingerprint() (string, bool) {
	lines, _ := l.Tail(int(^uint(0) >> 1))
	for i := len(lines) - 1; i >= 0; i-- {
		idx := strings.LastIndex(lines[i], fingerprintField)
		if idx < 0 {
			continue
		}
		fields := strings.Fields(lines[i][idx+len(fingerprintField):])
		if len(fields) > 0 {
			return fields[0], true
		}
	}
	return "", false
}

// Tail returns up to maxLines of the most recent entries and the total
// number of entries in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
