package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("queue")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("screenshot queued", KeyPath, "/tmp/a.png")

	out := buf.String()
	if !strings.Contains(out, `msg="screenshot queued"`) {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=queue") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "path=/tmp/a.png") {
		t.Fatalf("expected path field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("capture")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormatAndViewAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	WithView(L("queue"), "solutions").Debug("evicted", Err(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{`"view":"solutions"`, `"component":"queue"`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range tests {
		if got := ParseLevel(in).String(); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSwitchingFormatsAfterInit(t *testing.T) {
	logger := L("api")
	t.Cleanup(func() { Init("text", "info", os.Stderr) })

	for _, format := range []string{"json", "text", "json"} {
		var buf bytes.Buffer
		Init(format, "info", &buf)
		logger.Info("listening")

		isJSON := strings.HasPrefix(buf.String(), "{")
		if isJSON != (format == "json") {
			t.Fatalf("format %s produced %q", format, buf.String())
		}
	}
}

func TestSetupJSONWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	closer, err := Setup("json", "info", FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		Init("text", "info", os.Stderr)
		closer.Close()
	})

	L("serve").Info("started")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"started"`) {
		t.Fatalf("log file = %q", data)
	}
}

func TestRotatingWriterBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	rw, err := NewRotatingWriter(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()

	// Exactly the limit fits in one file.
	if _, err := rw.Write(bytes.Repeat([]byte("a"), 1<<20)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatalf("rotated before exceeding the limit: %v", err)
	}

	// One more byte rotates.
	if _, err := rw.Write([]byte("b")); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(path + ".1"); err != nil || info.Size() != 1<<20 {
		t.Fatalf("backup .1 = %v, %v", info, err)
	}
	if data, _ := os.ReadFile(path); string(data) != "b" {
		t.Fatalf("current file = %q, want %q", data, "b")
	}

	for _, c := range []byte("cd") {
		if _, err := rw.Write(bytes.Repeat([]byte{c}, 1<<20)); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("expected at most 2 backups, stat .3: %v", err)
	}
}

func TestRotatingWriterWithoutBackupsTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	rw, err := NewRotatingWriter(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 0})
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer rw.Close()

	rw.Write(bytes.Repeat([]byte("a"), 1<<20))
	rw.Write([]byte("tail"))

	if data, _ := os.ReadFile(path); string(data) != "tail" {
		t.Fatalf("current file = %q, want truncated to %q", data, "tail")
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatalf("no backup expected: %v", err)
	}
}

func TestRotatingWriterClosed(t *testing.T) {
	rw, err := NewRotatingWriter(FileOptions{Path: filepath.Join(t.TempDir(), "a.log")})
	if err != nil {
		t.Fatal(err)
	}
	rw.Close()
	if _, err := rw.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("write after close = %v, want os.ErrClosed", err)
	}
}
