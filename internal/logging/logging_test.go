package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("op", "req", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorFormatsAndUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("usecase.verify", "req-1", base)

	if got, want := err.Error(), "usecase.verify (request_id=req-1): boom"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to reach the wrapped error")
	}

	noID := NewOperationError("imaging.decode", "", base)
	if got, want := noID.Error(), "imaging.decode: boom"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
}

func TestWithOperationAddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	WithOperation(zap.New(core), "handlers.verify", "req-7").Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["operation"] != "handlers.verify" {
		t.Fatalf("unexpected operation field: %v", fields["operation"])
	}
	if fields["request_id"] != "req-7" {
		t.Fatalf("unexpected request_id field: %v", fields["request_id"])
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestOperationOf(t *testing.T) {
	err := NewOperationError("usecase.decode_comparison", "req", errors.New("bad"))
	if got := OperationOf(err); got != "usecase.decode_comparison" {
		t.Fatalf("unexpected operation: %q", got)
	}
	if got := OperationOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty operation, got %q", got)
	}
}
