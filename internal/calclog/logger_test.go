package calclog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatLogLine(t *testing.T) {
	ts := time.Date(2026, 1, 12, 10, 4, 31, 0, time.Local)

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "inv calc",
			event: Event{Timestamp: ts, Type: EventInvCalc, Subject: "garnet.psb", Detail: "i3 bi g st - g st"},
			want:  "2026-01-12 10:04:31 [inv_calc] garnet.psb i3 bi g st - g st",
		},
		{
			name:  "no detail",
			event: Event{Timestamp: ts, Type: EventGridStart, Subject: "garnet.psb"},
			want:  "2026-01-12 10:04:31 [grid_start] garnet.psb",
		},
		{
			name:  "subject with spaces",
			event: Event{Timestamp: ts, Type: EventExport, Subject: "my project.psb", Detail: "tab\nfile"},
			want:  "2026-01-12 10:04:31 [export] my_project.psb tab file",
		},
		{
			name:  "empty subject",
			event: Event{Timestamp: ts, Type: EventDrawpd},
			want:  "2026-01-12 10:04:31 [drawpd] -",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.event); got != tt.want {
				t.Errorf("formatLogLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLogLines(t *testing.T) {
	content := strings.Join([]string{
		"2026-01-12 10:04:31 [init] garnet.psb pt",
		"garbage",
		"2026-01-12 10:05:00 [uni_calc] garnet.psb u1 bi g - g",
		"2026-01-12 10:06:00 [grid_done]",
		"",
	}, "\n")
	events := ParseLogLines(content)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventInit || events[0].Subject != "garnet.psb" || events[0].Detail != "pt" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Detail != "u1 bi g - g" {
		t.Errorf("events[1].Detail = %q", events[1].Detail)
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)
	if want := filepath.Join(dir, ".psb", "psb.log"); l.Path() != want {
		t.Errorf("Path() = %q, want %q", l.Path(), want)
	}

	for _, e := range []struct {
		typ    EventType
		detail string
	}{
		{EventInit, "pt"},
		{EventInvCalc, "i1 bi g st - g st"},
		{EventRemove, "i1"},
	} {
		if err := l.Log(e.typ, "a.psb", e.detail); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	events, err := ReadEvents(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events", len(events))
	}
	if events[1].Detail != "i1 bi g st - g st" {
		t.Errorf("Detail = %q", events[1].Detail)
	}

	tail, err := TailEvents(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 1 || tail[0].Type != EventRemove {
		t.Errorf("TailEvents() = %+v", tail)
	}

	got := FilterEvents(events, Filter{Type: EventInvCalc})
	if len(got) != 1 {
		t.Errorf("FilterEvents(type) = %d events", len(got))
	}
	if got := FilterEvents(events, Filter{Subject: "b"}); len(got) != 0 {
		t.Errorf("FilterEvents(subject) = %d events", len(got))
	}
	if got := FilterEvents(events, Filter{Since: time.Now().Add(time.Hour)}); len(got) != 0 {
		t.Errorf("FilterEvents(since) = %d events", len(got))
	}
}

func TestReadEventsMissing(t *testing.T) {
	events, err := ReadEvents(t.TempDir())
	if err != nil || events != nil {
		t.Errorf("ReadEvents() = %v, %v", events, err)
	}
}

func TestNilLogger(t *testing.T) {
	var l *Logger
	if err := l.Log(EventInit, "x", ""); err != nil {
		t.Errorf("nil Log() = %v", err)
	}
}

func TestLogDirPermissions(t *testing.T) {
	dir := t.TempDir()
	if err := NewLogger(dir).Log(EventFix, "a.psb", "0 left"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".psb")); err != nil {
		t.Errorf("log directory missing: %v", err)
	}
}
