// Package logbook keeps a human-readable journal of evaluation sessions in
// .cvreview/logs/journal.log. The TUI shows its tail next to the session.
package logbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the severity column of a journal line.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// keep is how many entries of the current run stay in memory for Tail.
const keep = 200

// Entry is one journal line.
type Entry struct {
	At      time.Time
	Level   Level
	Message string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %-5s %s", e.At.Format("15:04:05"), e.Level, e.Message)
}

// Logbook appends entries to its file and remembers the ones written by
// this process.
type Logbook struct {
	path  string
	clock func() time.Time

	mu      sync.Mutex
	recent  []Entry
	written int
}

// New opens the journal at path, creating its directory.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{path: path, clock: time.Now}, nil
}

// Path is the journal file.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append records message on one line; embedded whitespace runs collapse to a
// single space and blank messages are dropped. Write errors are ignored, the
// entry still shows up in Tail.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	message = strings.Join(strings.Fields(message), " ")
	if message == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{At: l.clock(), Level: level, Message: message}
	l.recent = append(l.recent, entry)
	if len(l.recent) > keep {
		l.recent = append(l.recent[:0], l.recent[len(l.recent)-keep:]...)
	}
	l.written++

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	_, _ = f.WriteString(entry.String() + "\n")
	_ = f.Close()
}

// Tail returns the last n entries of this run, oldest first, and how many
// entries this run has written.
func (l *Logbook) Tail(n int) ([]string, int) {
	if l == nil || n <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	from := max(0, len(l.recent)-n)
	lines := make([]string, 0, len(l.recent)-from)
	for _, e := range l.recent[from:] {
		lines = append(lines, e.String())
	}
	return lines, l.written
}

func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
