// Package queue keeps the two bounded screenshot queues and owns the
// lifecycle of the files in them.
package queue

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/snapshot-agent/internal/capture"
	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

// MaxSize is the capacity of each queue.
const MaxSize = 5

// DefaultSettleDelay is how long to wait after hiding the UI on platforms
// where hiding is asynchronous.
const DefaultSettleDelay = 200 * time.Millisecond

// ErrFileOperation wraps unlink and read failures on queue files.
var ErrFileOperation = errors.New("file operation failed")

// ErrNotOwned is returned when a path names no file the queues manage.
var ErrNotOwned = errors.New("not a queued screenshot")

// ErrUnknownView is returned for a view name other than queue or solutions.
var ErrUnknownView = errors.New("unknown view")

// View names one of the two capture contexts.
type View string

const (
	ViewQueue     View = "queue"
	ViewSolutions View = "solutions"
)

// Views lists every view in a stable order.
var Views = []View{ViewQueue, ViewSolutions}

// ParseView validates a view name. An empty name means ViewQueue.
func ParseView(s string) (View, error) {
	switch View(s) {
	case "", ViewQueue:
		return ViewQueue, nil
	case ViewSolutions:
		return ViewSolutions, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

func (v View) valid() bool { return v == ViewQueue || v == ViewSolutions }

// dirName maps a view to its directory under the data dir.
func (v View) dirName() string {
	if v == ViewSolutions {
		return "extra_screenshots"
	}
	return "screenshots"
}

// SelectorSource supplies the configured monitor selector. It is read once
// per capture.
type SelectorSource interface {
	SelectedMonitor() desktop.Selector
}

// Capturer produces one PNG at outputPath. *capture.Strategy implements it.
type Capturer interface {
	Capture(ctx context.Context, sel desktop.Selector, outputPath string) (capture.Outcome, error)
}

// Hooks hide and restore the caller's UI around a capture. Either may be nil.
type Hooks struct {
	Suspend func()
	Resume  func()
}

// DeleteResult is the structured outcome of Delete.
type DeleteResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Preview pairs a queued path with its data URI.
type Preview struct {
	Path    string `json:"path"`
	Preview string `json:"preview"`
}

// Shot is the result of TakeScreenshot.
type Shot struct {
	Path    string `json:"path"`
	Preview string `json:"preview"`
}

// Options configures a Manager.
type Options struct {
	DataDir  string
	Capturer Capturer
	Selector SelectorSource
	Platform desktop.Platform

	// SettleDelay applies only when Platform.AsyncWindowHide is set.
	// Zero means DefaultSettleDelay; negative disables it.
	SettleDelay time.Duration

	Notify Notifier
	Logger *slog.Logger
}

// Manager owns the "queue" and "solutions" queues. All mutation goes
// through its methods.
type Manager struct {
	capturer Capturer
	selector SelectorSource
	platform desktop.Platform
	settle   time.Duration
	notify   Notifier
	log      *slog.Logger
	dirs     map[View]string

	// captureMu serializes Capture per view.
	captureMu map[View]*sync.Mutex

	mu     sync.Mutex
	queues map[View][]string
	view   View
}

// New creates both view directories and returns an empty Manager.
func New(opts Options) (*Manager, error) {
	if opts.Capturer == nil {
		return nil, errors.New("queue: capturer is required")
	}
	if opts.DataDir == "" {
		return nil, errors.New("queue: data dir is required")
	}

	m := &Manager{
		capturer:  opts.Capturer,
		selector:  opts.Selector,
		platform:  opts.Platform,
		settle:    opts.SettleDelay,
		notify:    opts.Notify,
		log:       opts.Logger,
		dirs:      make(map[View]string, len(Views)),
		captureMu: make(map[View]*sync.Mutex, len(Views)),
		queues:    make(map[View][]string, len(Views)),
		view:      ViewQueue,
	}
	if m.settle == 0 {
		m.settle = DefaultSettleDelay
	}
	if m.log == nil {
		m.log = logging.L("queue")
	}

	for _, v := range Views {
		dir, err := filepath.Abs(filepath.Join(opts.DataDir, v.dirName()))
		if err != nil {
			return nil, fmt.Errorf("%w: resolve %s: %v", ErrFileOperation, v.dirName(), err)
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrFileOperation, dir, err)
		}
		m.dirs[v] = dir
		m.captureMu[v] = &sync.Mutex{}
	}
	return m, nil
}

// Dir returns the directory holding view's files.
func (m *Manager) Dir(view View) string { return m.dirs[view] }

// View returns the current view.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// SetView changes the current view used by Delete.
func (m *Manager) SetView(view View) error {
	if !view.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	m.mu.Lock()
	m.view = view
	m.mu.Unlock()
	return nil
}

// Paths returns a copy of view's queue, oldest first.
func (m *Manager) Paths(view View) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queues[view])
}

// Capture takes one screenshot into view's queue and returns its path.
// suspend runs before the first backend attempt and resume runs on every
// exit path. On failure the queue is left unchanged.
func (m *Manager) Capture(ctx context.Context, view View, suspend, resume func()) (string, error) {
	if !view.valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	log := logging.WithView(m.log, string(view))

	mu := m.captureMu[view]
	mu.Lock()
	defer mu.Unlock()

	if suspend != nil {
		suspend()
	}
	restore := sync.OnceFunc(func() {
		if resume != nil {
			resume()
		}
	})
	defer restore()

	if err := m.waitSettle(ctx); err != nil {
		return "", err
	}

	sel := desktop.None()
	if m.selector != nil {
		sel = m.selector.SelectedMonitor()
	}
	path := filepath.Join(m.dirs[view], uuid.NewString()+".png")

	start := time.Now()
	outcome, err := m.capturer.Capture(ctx, sel, path)
	restore()
	if err != nil {
		log.Error("screenshot failed", logging.KeySelector, sel.String(), logging.Err(err))
		return "", err
	}

	evicted := m.push(view, path)
	for _, old := range evicted {
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error("failed to remove evicted screenshot", logging.KeyPath, old, logging.Err(err))
		}
		m.publish(EventEvicted, view, old)
	}
	m.publish(EventTaken, view, path)

	log.Info("screenshot queued",
		logging.KeyPath, path,
		logging.KeyBackend, string(outcome.Backend),
		logging.KeyStep, outcome.Step,
		logging.KeyDurationMs, time.Since(start).Milliseconds())
	return path, nil
}

// TakeScreenshot captures into view and returns the path with its preview.
// If the capture succeeds but the preview cannot be read, the entry stays
// queued and the returned Shot carries its Path alongside the error.
func (m *Manager) TakeScreenshot(ctx context.Context, view View, hooks Hooks) (Shot, error) {
	path, err := m.Capture(ctx, view, hooks.Suspend, hooks.Resume)
	if err != nil {
		return Shot{}, err
	}
	preview, err := ReadPreview(path)
	if err != nil {
		return Shot{Path: path}, err
	}
	return Shot{Path: path, Preview: preview}, nil
}

func (m *Manager) waitSettle(ctx context.Context) error {
	if !m.platform.AsyncWindowHide || m.settle <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// push appends path and returns the entries evicted to stay within MaxSize.
func (m *Manager) push(view View, path string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := append(m.queues[view], path)
	var evicted []string
	if over := len(q) - MaxSize; over > 0 {
		evicted = slices.Clone(q[:over])
		q = slices.Clone(q[over:])
	}
	m.queues[view] = q
	return evicted
}

// Delete unlinks path and removes it from the current view's queue. Paths
// outside the view directories are refused without touching the file.
func (m *Manager) Delete(path string) DeleteResult {
	if !m.owns(path) {
		err := fmt.Errorf("%w: %s", ErrNotOwned, path)
		m.log.Warn("refusing to delete file outside the screenshot directories", logging.KeyPath, path)
		return DeleteResult{Success: false, Error: err.Error()}
	}
	if err := os.Remove(path); err != nil {
		err = fmt.Errorf("%w: delete %s: %v", ErrFileOperation, path, err)
		m.log.Error("error deleting screenshot", logging.KeyPath, path, logging.Err(err))
		return DeleteResult{Success: false, Error: err.Error()}
	}

	m.mu.Lock()
	view := m.view
	m.queues[view] = slices.DeleteFunc(m.queues[view], func(p string) bool { return p == path })
	m.mu.Unlock()

	m.publish(EventDeleted, view, path)
	return DeleteResult{Success: true}
}

// owns reports whether path is a PNG directly inside a view directory.
func (m *Manager) owns(path string) bool {
	if path == "" || filepath.Ext(path) != ".png" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	parent := filepath.Dir(abs)
	for _, dir := range m.dirs {
		if parent == dir {
			return true
		}
	}
	return false
}

// Clear empties both queues and unlinks their files. Unlink failures are
// logged and otherwise ignored.
func (m *Manager) Clear() {
	m.mu.Lock()
	var paths []string
	for _, v := range Views {
		paths = append(paths, m.queues[v]...)
		m.queues[v] = nil
	}
	m.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			m.log.Error("error deleting screenshot", logging.KeyPath, p,
				logging.Err(fmt.Errorf("%w: %v", ErrFileOperation, err)))
		}
	}
	m.publish(EventReset, "", "")
}

// ListPreviews returns a preview for every entry of view. Any unreadable
// file fails the whole call.
func (m *Manager) ListPreviews(view View) ([]Preview, error) {
	if !view.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	paths := m.Paths(view)
	previews := make([]Preview, 0, len(paths))
	for _, p := range paths {
		data, err := ReadPreview(p)
		if err != nil {
			return nil, err
		}
		previews = append(previews, Preview{Path: p, Preview: data})
	}
	return previews, nil
}

// ReadPreview returns path's contents as a PNG data URI.
func ReadPreview(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrFileOperation, path, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (m *Manager) publish(t EventType, view View, path string) {
	if m.notify == nil {
		return
	}
	m.notify(Event{Type: t, View: view, Path: path, Time: time.Now()})
}
