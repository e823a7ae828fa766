package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Defaults applied when FileOptions leaves a limit unset.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
)

// FileOptions configures file output. An empty Path disables it.
type FileOptions struct {
	Path      string
	MaxSizeMB int
	// MaxBackups is how many rotated files are kept. Zero keeps none:
	// the file is truncated when it reaches the limit.
	MaxBackups int
}

// RotatingWriter appends to a log file and starts over once the next write
// would take it past MaxSizeMB. Rotated files are path.1 (newest) through
// path.MaxBackups. Safe for concurrent use.
type RotatingWriter struct {
	mu    sync.Mutex
	opts  FileOptions
	limit int64
	f     *os.File
	size  int64
}

func NewRotatingWriter(opts FileOptions) (*RotatingWriter, error) {
	if opts.Path == "" {
		return nil, errors.New("log file path is empty")
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	if opts.MaxBackups < 0 {
		opts.MaxBackups = 0
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	rw := &RotatingWriter{opts: opts, limit: int64(opts.MaxSizeMB) << 20}
	if err := rw.openFile(os.O_APPEND); err != nil {
		return nil, err
	}
	return rw, nil
}

// Write appends p, rotating first when p would not fit. A single write
// larger than the limit still lands in one file.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.f == nil {
		return 0, os.ErrClosed
	}
	if rw.size > 0 && rw.size+int64(len(p)) > rw.limit {
		if err := rw.rotate(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}
	n, err := rw.f.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.f == nil {
		return nil
	}
	err := rw.f.Close()
	rw.f = nil
	return err
}

func (rw *RotatingWriter) openFile(mode int) error {
	f, err := os.OpenFile(rw.opts.Path, os.O_CREATE|os.O_WRONLY|mode, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.f, rw.size = f, info.Size()
	return nil
}

// rotate shifts backups up by one and starts an empty current file. With
// no backups configured the current file is truncated in place. Shifting
// is best-effort; only failing to reopen the file is an error.
func (rw *RotatingWriter) rotate() error {
	rw.f.Close()
	rw.f = nil

	if n := rw.opts.MaxBackups; n > 0 {
		os.Remove(rw.backupPath(n))
		for i := n; i > 1; i-- {
			os.Rename(rw.backupPath(i-1), rw.backupPath(i))
		}
		os.Rename(rw.opts.Path, rw.backupPath(1))
	}
	return rw.openFile(os.O_TRUNC)
}

func (rw *RotatingWriter) backupPath(i int) string {
	return fmt.Sprintf("%s.%d", rw.opts.Path, i)
}
