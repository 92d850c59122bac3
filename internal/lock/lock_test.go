package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHolderAlive(t *testing.T) {
	tests := []struct {
		name string
		pid  int
		want bool
	}{
		{"this process", os.Getpid(), true},
		{"zero", 0, false},
		{"negative", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Holder{PID: tt.pid}
			if got := h.Alive(); got != tt.want {
				t.Errorf("Alive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	if got := l.Status(); got != "free" {
		t.Errorf("Status() before Acquire = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, Dir)); !os.IsNotExist(err) {
		t.Errorf("New should not create %s", Dir)
	}

	if err := l.Acquire(context.Background(), time.Second, "psb grid"); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
	if err := l.Acquire(context.Background(), time.Second, "psb grid"); err != nil {
		t.Errorf("second Acquire() by the holder = %v", err)
	}
	if got := l.Status(); got != "held by this process" {
		t.Errorf("Status() = %q", got)
	}
	h, err := l.Holder()
	if err != nil {
		t.Fatalf("Holder() = %v", err)
	}
	if h.PID != os.Getpid() || h.Command != "psb grid" {
		t.Errorf("holder = %+v", h)
	}
	if got := New(dir).Status(); !strings.HasPrefix(got, "held by PID") {
		t.Errorf("Status() seen by another lock = %q", got)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if _, err := l.Holder(); !errors.Is(err, ErrNotLocked) {
		t.Errorf("Holder() after Release = %v, want ErrNotLocked", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("Release() twice = %v", err)
	}
}

func TestContention(t *testing.T) {
	dir := t.TempDir()
	first := New(dir)
	if err := first.Acquire(context.Background(), time.Second, "psb inv add"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = first.Release() }()

	second := New(dir)
	err := second.Acquire(context.Background(), 200*time.Millisecond, "psb uni add")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Acquire() = %v, want ErrLocked", err)
	}
	if !strings.Contains(err.Error(), "psb inv add") {
		t.Errorf("error should name the holder: %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatal(err)
	}
	if err := second.Acquire(context.Background(), time.Second, "psb uni add"); err != nil {
		t.Errorf("Acquire() after release = %v", err)
	}
	_ = second.Release()
}

func TestAcquireCancelled(t *testing.T) {
	dir := t.TempDir()
	first := New(dir)
	if err := first.Acquire(context.Background(), time.Second, "psb grid"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = first.Release() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(dir).Acquire(ctx, time.Second, "psb grid"); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() with cancelled context = %v", err)
	}
}

func TestStaleAndBadHolder(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, Dir), 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, Dir, holderFile)

	if err := os.WriteFile(path, []byte(`{"pid":-5,"command":"psb grid"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if got := New(dir).Status(); got != "stale, PID -5 is gone" {
		t.Errorf("Status() = %q", got)
	}

	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir).Holder(); !errors.Is(err, ErrBadHolder) {
		t.Errorf("Holder() = %v, want ErrBadHolder", err)
	}
}

func TestAcquireMissingWorkdir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	if err := New(dir).Acquire(context.Background(), time.Second, "psb check"); err == nil {
		t.Fatal("Acquire() in a missing directory succeeded")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Acquire() created %s", dir)
	}
}
