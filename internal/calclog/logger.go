// Package calclog keeps the human-readable event log of a working
// directory, one line per calculation or edit.
package calclog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/petrolab/psb/internal/lock"
)

// EventType represents the type of logged event.
type EventType string

const (
	// EventInit indicates a new project was created.
	EventInit EventType = "init"
	// EventInvCalc indicates an invariant point was calculated or entered.
	EventInvCalc EventType = "inv_calc"
	// EventUniCalc indicates a univariant line was calculated or entered.
	EventUniCalc EventType = "uni_calc"
	// EventRemove indicates a point or line was removed.
	EventRemove EventType = "remove"

	EventGridStart EventType = "grid_start"
	EventGridDone  EventType = "grid_done"
	EventFix       EventType = "fix"

	EventDrawpd EventType = "drawpd"
	EventExport EventType = "export"
)

// LogFile is the event log name inside the psb directory.
const LogFile = "psb.log"

const timeLayout = "2006-01-02 15:04:05"

// Event represents a single logged event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject"`          // project file name
	Detail    string    `json:"detail,omitempty"` // e.g. "i3 bi g st - g st"
}

// Logger appends events to the working directory log.
type Logger struct {
	logPath string
	mu      sync.Mutex
}

func logPath(workdir string) string {
	return filepath.Join(workdir, lock.Dir, LogFile)
}

// NewLogger creates a Logger for the given working directory.
func NewLogger(workdir string) *Logger {
	return &Logger{logPath: logPath(workdir)}
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.logPath }

// LogEvent appends one event.
func (l *Logger) LogEvent(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.logPath), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLogLine(event) + "\n"); err != nil {
		return fmt.Errorf("writing log line: %w", err)
	}
	return nil
}

// Log is a convenience method that creates an Event and logs it. A nil
// Logger discards events.
func (l *Logger) Log(eventType EventType, subject, detail string) error {
	if l == nil {
		return nil
	}
	return l.LogEvent(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Subject:   subject,
		Detail:    detail,
	})
}

// formatLogLine formats an event as a human-readable log line.
// Format: 2026-01-12 10:04:31 [inv_calc] garnet.psb i3 bi g st - g st
func formatLogLine(e Event) string {
	line := fmt.Sprintf("%s [%s] %s", e.Timestamp.Format(timeLayout), e.Type, subject(e.Subject))
	if e.Detail != "" {
		line += " " + strings.ReplaceAll(e.Detail, "\n", " ")
	}
	return line
}

// subject keeps the subject a single field.
func subject(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, " ", "_")
}

// ReadEvents reads all events of a working directory.
func ReadEvents(workdir string) ([]Event, error) {
	content, err := os.ReadFile(logPath(workdir)) //nolint:gosec // G304: path built from workdir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading log file: %w", err)
	}
	return ParseLogLines(string(content)), nil
}

// ParseLogLines parses log lines back into events, skipping malformed
// lines.
func ParseLogLines(content string) []Event {
	var events []Event
	for _, line := range strings.Split(content, "\n") {
		if line == "" {
			continue
		}
		if e, err := parseLogLine(line); err == nil {
			events = append(events, e)
		}
	}
	return events
}

func parseLogLine(line string) (Event, error) {
	var event Event
	if len(line) < len(timeLayout)+1 {
		return event, fmt.Errorf("line too short")
	}
	ts, err := time.ParseInLocation(timeLayout, line[:len(timeLayout)], time.Local)
	if err != nil {
		return event, fmt.Errorf("parsing timestamp: %w", err)
	}
	event.Timestamp = ts

	rest := line[len(timeLayout)+1:]
	if len(rest) < 3 || rest[0] != '[' {
		return event, fmt.Errorf("missing event type")
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return event, fmt.Errorf("unclosed bracket")
	}
	event.Type = EventType(rest[1:end])

	rest = rest[end+1:]
	if len(rest) < 2 || rest[0] != ' ' {
		return event, fmt.Errorf("missing subject")
	}
	event.Subject, event.Detail, _ = strings.Cut(rest[1:], " ")
	return event, nil
}

// TailEvents returns the last n events of a working directory.
func TailEvents(workdir string, n int) ([]Event, error) {
	events, err := ReadEvents(workdir)
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(events) <= n {
		return events, nil
	}
	return events[len(events)-n:], nil
}

// Filter selects events.
type Filter struct {
	Type    EventType // empty for all
	Subject string    // subject prefix, empty for all
	Since   time.Time // zero for all
}

// FilterEvents applies f to events.
func FilterEvents(events []Event, f Filter) []Event {
	var result []Event
	for _, e := range events {
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.Subject != "" && !strings.HasPrefix(e.Subject, f.Subject) {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// String renders the event as its log line.
func (e Event) String() string { return formatLogLine(e) }
