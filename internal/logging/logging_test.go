package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	if got := Level(false); got != zapcore.WarnLevel {
		t.Errorf("Level(false) = %v, want warn", got)
	}
	if got := Level(true); got != zapcore.DebugLevel {
		t.Errorf("Level(true) = %v, want debug", got)
	}
}

func TestNew(t *testing.T) {
	l, err := New(false)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("default logger enables info")
	}
	if !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("default logger disables warn")
	}

	l, err = New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("verbose logger disables debug")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("OrNop(nil) = nil")
	}
}
