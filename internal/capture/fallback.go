// Package capture drives one capture request through the ordered,
// degrading chain of desktop backends.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

// Attempt records one backend invocation of the chain.
type Attempt struct {
	Step     int              `json:"step"`
	Backend  desktop.Kind     `json:"backend"`
	Selector desktop.Selector `json:"-"`
	// Note explains how the selector was derived for this step.
	Note     string        `json:"note,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Outcome describes a successful capture.
type Outcome struct {
	Path     string
	Backend  desktop.Kind
	Selector desktop.Selector
	Step     int
	Attempts []Attempt
}

// Degraded reports whether the capture did not come from the first
// attempt with the requested selector.
func (o Outcome) Degraded() bool { return o.Step > 1 }

// ChainError is returned when every attempt failed. Its message is the
// first attempt's error, which is closest to what the user configured.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	if len(e.Attempts) == 0 {
		return "no capture backends configured"
	}
	return e.Attempts[0].Err.Error()
}

func (e *ChainError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[0].Err
}

// Summary lists every attempt's error on one line.
func (e *ChainError) Summary() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("step %d %s: %v", a.Step, a.Backend, a.Err))
	}
	return strings.Join(parts, "; ")
}

// Config wires a Strategy. Backends missing from the map are skipped.
type Config struct {
	Platform desktop.Platform
	Catalog  *desktop.Catalog
	Backends map[desktop.Kind]desktop.Backend
	// GenericOptions are injected into the generic backend when it
	// accepts them.
	GenericOptions desktop.GenericOptions
	Logger         *slog.Logger
}

// Strategy runs the fallback chain. It is stateless between requests and
// safe for concurrent use as long as its backends are.
type Strategy struct {
	platform   desktop.Platform
	catalog    *desktop.Catalog
	generic    desktop.Backend
	geometry   desktop.Backend
	composited desktop.Backend
	log        *slog.Logger
}

type optionsAware interface {
	WithOptions(desktop.GenericOptions) desktop.Backend
}

// NewStrategy creates a strategy from cfg.
func NewStrategy(cfg Config) *Strategy {
	s := &Strategy{
		platform:   cfg.Platform,
		catalog:    cfg.Catalog,
		generic:    cfg.Backends[desktop.KindGeneric],
		geometry:   cfg.Backends[desktop.KindGeometry],
		composited: cfg.Backends[desktop.KindComposited],
		log:        cfg.Logger,
	}
	if s.log == nil {
		s.log = logging.L("capture")
	}
	if s.catalog == nil {
		s.catalog = desktop.NewCatalog(cfg.Platform, enumeratorsOf(cfg.Backends))
	}
	if oa, ok := s.generic.(optionsAware); ok {
		s.generic = oa.WithOptions(cfg.GenericOptions)
	}
	return s
}

func enumeratorsOf(backends map[desktop.Kind]desktop.Backend) map[desktop.Kind]desktop.Enumerator {
	m := make(map[desktop.Kind]desktop.Enumerator)
	for kind, b := range backends {
		if e, ok := b.(desktop.Enumerator); ok {
			m[kind] = e
		}
	}
	return m
}

// step is one planned attempt. prepare derives the selector for the
// backend; an error from prepare counts as the attempt's failure.
type step struct {
	backend desktop.Backend
	prepare func(ctx context.Context) (desktop.Selector, string, error)
}

// plan returns the ordered attempts for sel.
func (s *Strategy) plan(sel desktop.Selector) []step {
	var steps []step
	if s.generic != nil {
		steps = append(steps, step{backend: s.generic, prepare: verbatim(sel)})
	}
	if s.platform.GeometryCapable && s.geometry != nil {
		steps = append(steps, step{backend: s.geometry, prepare: s.forGeometry(sel)})
	}
	if s.composited != nil {
		steps = append(steps, step{backend: s.composited, prepare: s.forComposited(sel)})
	}
	if s.generic != nil && !sel.IsNone() {
		steps = append(steps, step{backend: s.generic, prepare: stripped})
	}
	return steps
}

func verbatim(sel desktop.Selector) func(context.Context) (desktop.Selector, string, error) {
	return func(context.Context) (desktop.Selector, string, error) {
		return sel, "verbatim", nil
	}
}

func stripped(context.Context) (desktop.Selector, string, error) {
	return desktop.None(), "selector stripped", nil
}

// forGeometry resolves name selectors against xrandr outputs. Anything it
// cannot resolve degrades to the whole desktop; failing to enumerate at
// all fails the attempt.
func (s *Strategy) forGeometry(sel desktop.Selector) func(context.Context) (desktop.Selector, string, error) {
	return func(ctx context.Context) (desktop.Selector, string, error) {
		if sel.IsNone() {
			return desktop.None(), "capture all", nil
		}
		if sel.Kind() != desktop.SelectName {
			return desktop.None(), "non-name selector, capture all", nil
		}
		displays, err := s.catalog.ListDisplays(ctx, desktop.KindGeometry)
		if err != nil {
			return desktop.None(), "", err
		}
		res, err := s.catalog.Resolve(sel, desktop.KindGeometry, displays)
		if err != nil {
			s.log.Debug("selector not resolved for geometry backend", logging.KeySelector, sel.String(), logging.Err(err))
			return desktop.None(), "unresolved, capture all", nil
		}
		return res.Native, "resolved by " + string(res.Rule), nil
	}
}

// forComposited coerces the selector to a surface position. Unresolvable
// names degrade to position 0, unresolvable indices to the whole desktop.
func (s *Strategy) forComposited(sel desktop.Selector) func(context.Context) (desktop.Selector, string, error) {
	return func(ctx context.Context) (desktop.Selector, string, error) {
		if sel.IsNone() {
			return desktop.None(), "capture all", nil
		}
		fallback, fallbackNote := desktop.None(), "unresolved index, capture all"
		if sel.Kind() == desktop.SelectName {
			fallback, fallbackNote = desktop.Index(0), "unresolved name, display 0"
		}

		displays, err := s.catalog.ListDisplays(ctx, desktop.KindComposited)
		if err != nil {
			s.log.Debug("composited enumeration failed", logging.Err(err))
			return fallback, fallbackNote, nil
		}
		res, err := s.catalog.Resolve(sel, desktop.KindComposited, displays)
		if err != nil {
			s.log.Debug("selector not resolved for composited backend", logging.KeySelector, sel.String(), logging.Err(err))
			return fallback, fallbackNote, nil
		}
		return res.Native, "resolved by " + string(res.Rule), nil
	}
}

// Capture writes one PNG to outputPath, trying backends in order until one
// succeeds. On exhaustion it returns a *ChainError and removes any partial
// output.
func (s *Strategy) Capture(ctx context.Context, sel desktop.Selector, outputPath string) (Outcome, error) {
	steps := s.plan(sel)
	attempts := make([]Attempt, 0, len(steps))

	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			if len(attempts) == 0 {
				return Outcome{}, err
			}
			break
		}

		a := Attempt{Step: i + 1, Backend: st.backend.Kind()}
		start := time.Now()
		native, note, err := st.prepare(ctx)
		a.Selector, a.Note = native, note
		if err == nil {
			err = invoke(ctx, st.backend, native, outputPath)
		}
		a.Duration = time.Since(start)
		a.Err = err
		attempts = append(attempts, a)

		log := s.log.With(logging.KeyStep, a.Step, logging.KeyBackend, string(a.Backend),
			logging.KeySelector, native.String(), logging.KeyDurationMs, a.Duration.Milliseconds())
		if err == nil {
			if a.Step > 1 {
				log.Info("capture succeeded after fallback", "note", note, "failedAttempts", len(attempts)-1)
			} else {
				log.Debug("capture succeeded")
			}
			return Outcome{Path: outputPath, Backend: a.Backend, Selector: native, Step: a.Step, Attempts: attempts}, nil
		}
		log.Warn("capture attempt failed", "note", note, logging.Err(err))
	}

	if err := os.Remove(outputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("failed to remove partial capture", logging.KeyPath, outputPath, logging.Err(err))
	}
	chainErr := &ChainError{Attempts: attempts}
	s.log.Error("all capture backends failed", "attempts", chainErr.Summary())
	return Outcome{Attempts: attempts}, chainErr
}

func invoke(ctx context.Context, b desktop.Backend, sel desktop.Selector, outputPath string) error {
	if sel.IsNone() {
		return b.CaptureAll(ctx, outputPath)
	}
	return b.CaptureDisplay(ctx, sel, outputPath)
}
