package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultToolTimeout bounds every external tool invocation.
	DefaultToolTimeout = 10 * time.Second

	// maxToolOutput caps captured stdout/stderr of external tools.
	maxToolOutput = 1024 * 1024
)

// Runner runs an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec under a bounded timeout so a hung
// tool cannot stall the capture chain.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns a runner with the given timeout (DefaultToolTimeout
// when zero or negative).
func NewExecRunner(timeout time.Duration) ExecRunner {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return ExecRunner{Timeout: timeout}
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := &limitedBuffer{max: maxToolOutput}
	stderr := &limitedBuffer{max: maxToolOutput}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s timed out after %s: %w", name, timeout, context.DeadlineExceeded)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// HaveTool reports whether name resolves on PATH.
func HaveTool(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// limitedBuffer discards writes past max bytes while reporting them as
// written, so a chatty tool cannot fail on a short write.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte  { return b.buf.Bytes() }
func (b *limitedBuffer) String() string { return b.buf.String() }
