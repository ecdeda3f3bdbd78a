package logger

import (
	"errors"
	"testing"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(t *testing.T) (*ZapLogger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	z := &ZapLogger{level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
	z.logger.Store(zap.New(core))
	return z, logs
}

func TestZapLoggerFields(t *testing.T) {
	z, logs := newObserved(t)

	z.Info("installed",
		z.Field().String("id", "piano"),
		z.Field().Int("attempts", 2),
		z.Field().Error("error", errors.New("boom")),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["id"] != "piano" {
		t.Errorf("id = %v, want piano", ctx["id"])
	}
	if ctx["attempts"] != int64(2) {
		t.Errorf("attempts = %v, want 2", ctx["attempts"])
	}
	if ctx["error"] != "boom" {
		t.Errorf("error = %v, want boom", ctx["error"])
	}
}

func TestZapLoggerLevel(t *testing.T) {
	z, logs := newObserved(t)

	z.Debug("hidden")
	if logs.Len() != 0 {
		t.Fatalf("debug logged at info level")
	}

	z.SetLevel(contracts.DebugLevel)
	z.Debug("shown")
	if logs.Len() != 1 {
		t.Fatalf("debug not logged after SetLevel(DebugLevel)")
	}

	z.SetLevel(contracts.ErrorLevel)
	z.Warn("hidden")
	z.Error("shown")
	if logs.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", logs.Len())
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("nothing", l.Field().Bool("ok", true))
	l.SetDestination(contracts.FileLog)
}
