// Package journal keeps a plain-text record of directory activity: writes
// made by the operator and role switches. It sits next to the structured
// zap log and is meant to be read by people, in the TUI or with tail -f.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the journal's name inside the logs directory.
const FileName = "activity.log"

// Level represents the severity of a journal entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Journal appends activity lines to a single file.
type Journal struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// Open returns a journal writing to logsDir/activity.log.
func Open(logsDir string) (*Journal, error) {
	return New(filepath.Join(logsDir, FileName))
}

// New creates a journal that writes to path, creating parent directories.
func New(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Journal{path: path, now: time.Now}, nil
}

// Path returns the file backing this journal.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Append writes one entry attributed to actor. Write failures are dropped;
// the journal is never allowed to break the caller.
func (j *Journal) Append(level Level, actor, message string) {
	if j == nil {
		return
	}
	message = strings.Join(strings.Fields(message), " ")
	if message == "" {
		return
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "-"
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	line := fmt.Sprintf("%s %-5s [%s] %s\n",
		j.now().UTC().Format(time.RFC3339),
		string(level),
		actor,
		message,
	)
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries, oldest first.
func (j *Journal) Tail(maxLines int) []string {
	if j == nil || maxLines <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	file, err := os.Open(j.path)
	if err != nil {
		return nil
	}
	defer file.Close()

	lines := make([]string, 0, maxLines)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(lines) == maxLines {
			lines = append(lines[:0], lines[1:]...)
		}
		lines = append(lines, scanner.Text())
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}

// Info appends an informational entry.
func (j *Journal) Info(actor, format string, args ...any) {
	j.Append(LevelInfo, actor, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (j *Journal) Warn(actor, format string, args ...any) {
	j.Append(LevelWarn, actor, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (j *Journal) Error(actor, format string, args ...any) {
	j.Append(LevelError, actor, fmt.Sprintf(format, args...))
}
