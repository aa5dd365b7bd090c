package acre

import (
	"log/slog"
	"testing"
)

type entry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	entries []entry
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any) { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any) { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *recordingLogger) add(level, msg string, args []any) {
	l.entries = append(l.entries, entry{level, msg, args})
}

func TestSlogAdapterLevels(t *testing.T) {
	rec := &recordingLogger{}
	logger := slog.New(slogAdapter{logger: rec})

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	want := []string{"debug", "info", "warn", "error"}
	if len(rec.entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(rec.entries), len(want))
	}
	for i, level := range want {
		if rec.entries[i].level != level {
			t.Errorf("entry %d level = %s, want %s", i, rec.entries[i].level, level)
		}
	}
}

func TestSlogAdapterAttrsAndGroups(t *testing.T) {
	rec := &recordingLogger{}
	logger := slog.New(slogAdapter{logger: rec}).
		With("component", "cache").
		WithGroup("eviction").
		WithGroup("lru")

	logger.Info("Evicted", "key", "user:1")

	if len(rec.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(rec.entries))
	}
	args := rec.entries[0].args
	want := []any{"component", "cache", "eviction.lru.key", "user:1"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %v, want %v", i, args[i], want[i])
		}
	}
}
