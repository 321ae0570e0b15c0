package logger

import (
	"bytes"
	"sync"
	"testing"
)

func TestDebug_WhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug("test message %s", "arg")

	if got := buf.String(); got != "[DEBUG] test message arg\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug("hidden")
	log.Info("hidden")
	log.Section("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestWarn_AlwaysWritten(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Warn("careful %d", 3)
	log.Error("broken")

	want := "[WARN] careful 3\n[ERROR] broken\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSection(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Section("Batch 1")

	if got := buf.String(); got != "\n=== Batch 1 ===\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestWith_Prefix(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true).With("analysis").With("batch")

	log.Info("started")

	if got := buf.String(); got != "[INFO] analysis.batch: started\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestNilLogger_IsNoop(t *testing.T) {
	var log *Logger

	// None of these may panic.
	log.Debug("x")
	log.Info("x")
	log.Warn("x")
	log.Error("x")
	log.Section("x")

	if log.IsVerbose() {
		t.Error("nil logger must not be verbose")
	}
	if log.With("c") != nil {
		t.Error("With on nil logger should stay nil")
	}
	if Nop() != nil {
		t.Error("Nop should return the nil logger")
	}
}

func TestConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			log.With("worker").Info("n=%d", n)
		}(i)
	}
	wg.Wait()

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	if lines != 50 {
		t.Errorf("expected 50 lines, got %d", lines)
	}
}
