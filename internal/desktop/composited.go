package desktop

import (
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

var compositedLog = logging.L("composited")

// Source is one capturable surface offered by the compositor.
type Source struct {
	ID   string
	Name string
	// DisplayID is the correlation tag compared against Display.ID.
	DisplayID string
	Bounds    image.Rectangle
}

// Surface is the OS desktop compositing capture surface: a display
// enumeration plus the set of capture sources it exposes.
type Surface interface {
	Displays(ctx context.Context) ([]Display, error)
	Sources(ctx context.Context) ([]Source, error)
	Grab(ctx context.Context, src Source) (image.Image, error)
	GrabDesktop(ctx context.Context) (image.Image, error)
}

// SourceMatch names the rule that paired a display with a source.
type SourceMatch string

const (
	MatchTag       SourceMatch = "tag"
	MatchSingleton SourceMatch = "singleton"
	MatchPosition  SourceMatch = "position"
	MatchFirst     SourceMatch = "first-available"
)

// MatchSource picks the capture source for displays[position]:
// (a) correlation tag equality, (b) the only source, (c) the source at the
// same position when source and display counts agree. Failing all three it
// returns the first source with MatchFirst, which callers must treat as a
// degraded capture. Positional correlation assumes both enumerations use
// the same order, which the OS does not guarantee.
func MatchSource(position int, displays []Display, sources []Source) (Source, SourceMatch, error) {
	if len(sources) == 0 {
		return Source{}, "", fmt.Errorf("no screen sources available")
	}
	if position < 0 || position >= len(displays) {
		return Source{}, "", fmt.Errorf("display %d not found (%d enumerated)", position, len(displays))
	}

	target := displays[position]
	for _, src := range sources {
		if src.DisplayID != "" && src.DisplayID == target.ID {
			return src, MatchTag, nil
		}
	}
	if len(sources) == 1 {
		return sources[0], MatchSingleton, nil
	}
	if len(sources) == len(displays) {
		return sources[position], MatchPosition, nil
	}
	return sources[0], MatchFirst, nil
}

// CompositedBackend captures through the desktop compositing surface. Its
// native identifier is Index(position) in the surface's display order.
type CompositedBackend struct {
	surface Surface
}

// NewCompositedBackend creates a composited-surface backend. A nil surface
// uses the platform default.
func NewCompositedBackend(s Surface) *CompositedBackend {
	if s == nil {
		s = newPlatformSurface()
	}
	return &CompositedBackend{surface: s}
}

func (b *CompositedBackend) Kind() Kind { return KindComposited }

func (b *CompositedBackend) ListDisplays(ctx context.Context) ([]Display, error) {
	displays, err := b.surface.Displays(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEnumerationFailed, KindComposited, err)
	}
	if len(displays) == 0 {
		return nil, fmt.Errorf("%w: %s: no displays", ErrEnumerationFailed, KindComposited)
	}
	return displays, nil
}

func (b *CompositedBackend) CaptureDisplay(ctx context.Context, id Selector, outputPath string) error {
	if id.IsNone() {
		return b.CaptureAll(ctx, outputPath)
	}
	position, ok := id.IndexValue()
	if !ok {
		return captureError(KindComposited, "displays are addressed by index, got %s selector", id.Kind())
	}

	displays, err := b.surface.Displays(ctx)
	if err != nil {
		return captureError(KindComposited, "list displays: %v", err)
	}
	sources, err := b.surface.Sources(ctx)
	if err != nil {
		return captureError(KindComposited, "list sources: %v", err)
	}

	src, rule, err := MatchSource(position, displays, sources)
	if err != nil {
		return captureError(KindComposited, "%v", err)
	}
	if rule == MatchFirst {
		compositedLog.Warn("no source matched display, using first available",
			"display", displays[position].ID, "source", src.ID, "sources", len(sources))
	} else {
		compositedLog.Debug("matched capture source", "display", displays[position].ID, "source", src.ID, "rule", string(rule))
	}

	img, err := b.surface.Grab(ctx, src)
	if err != nil {
		return captureError(KindComposited, "grab %s: %v", src.ID, err)
	}
	return b.write(img, outputPath)
}

func (b *CompositedBackend) CaptureAll(ctx context.Context, outputPath string) error {
	if err := contextErr(ctx, KindComposited); err != nil {
		return err
	}
	img, err := b.surface.GrabDesktop(ctx)
	if err != nil {
		return captureError(KindComposited, "grab desktop: %v", err)
	}
	return b.write(img, outputPath)
}

func (b *CompositedBackend) write(img image.Image, outputPath string) error {
	if err := writePNG(outputPath, img, png.DefaultCompression); err != nil {
		return captureError(KindComposited, "%v", err)
	}
	return verifyOutput(KindComposited, outputPath)
}

var (
	_ Backend    = (*CompositedBackend)(nil)
	_ Enumerator = (*CompositedBackend)(nil)
)
