package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"", "local", "dev", "prod"} {
		l, err := NewLogger(env, "warn")
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", env, err)
		}
		if l.Core().Enabled(zap.InfoLevel) {
			t.Errorf("%s: info should be disabled at warn level", env)
		}
	}
	if _, err := NewLogger("staging", ""); err == nil {
		t.Fatal("expected error for unknown env")
	}
	if _, err := NewLogger("local", "loud"); err == nil {
		t.Fatal("expected error for bad level")
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must never return nil")
	}
	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatal("logger not recovered from context")
	}
}
