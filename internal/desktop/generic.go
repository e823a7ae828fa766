package desktop

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"github.com/kbinani/screenshot"
)

// Grabber is the general-purpose screen-grab mechanism behind the generic
// backend.
type Grabber interface {
	NumActiveDisplays() int
	GetDisplayBounds(displayIndex int) image.Rectangle
	CaptureRect(rect image.Rectangle) (*image.RGBA, error)
}

// screenGrabber delegates to github.com/kbinani/screenshot.
type screenGrabber struct{}

func (screenGrabber) NumActiveDisplays() int { return screenshot.NumActiveDisplays() }

func (screenGrabber) GetDisplayBounds(i int) image.Rectangle { return screenshot.GetDisplayBounds(i) }

func (screenGrabber) CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(r)
}

// GenericOptions are platform-conditional options applied before a generic
// capture. They never change backend identity.
type GenericOptions struct {
	Compression png.CompressionLevel
}

// PlatformGenericOptions returns the options injected for goos. X11 root
// grabs are large, so Linux trades file size for encode latency.
func PlatformGenericOptions(goos string) GenericOptions {
	if goos == "linux" {
		return GenericOptions{Compression: png.BestSpeed}
	}
	return GenericOptions{Compression: png.DefaultCompression}
}

// GenericBackend is the default, cross-platform backend. Its "screen"
// selector is a display index in kbinani enumeration order.
type GenericBackend struct {
	grabber Grabber
	opts    GenericOptions
}

// NewGenericBackend creates a generic backend. A nil grabber uses
// github.com/kbinani/screenshot.
func NewGenericBackend(g Grabber) *GenericBackend {
	if g == nil {
		g = screenGrabber{}
	}
	return &GenericBackend{grabber: g}
}

func (b *GenericBackend) Kind() Kind { return KindGeneric }

// WithOptions returns a copy of the backend using opts.
func (b *GenericBackend) WithOptions(opts GenericOptions) Backend {
	cp := *b
	cp.opts = opts
	return &cp
}

// ListDisplays enumerates active displays. Display 0 is the primary.
func (b *GenericBackend) ListDisplays(ctx context.Context) ([]Display, error) {
	n := b.grabber.NumActiveDisplays()
	if n <= 0 {
		return nil, fmt.Errorf("%w: %s: no active displays", ErrEnumerationFailed, KindGeneric)
	}
	displays := make([]Display, 0, n)
	for i := 0; i < n; i++ {
		r := b.grabber.GetDisplayBounds(i)
		displays = append(displays, Display{
			Index:   i,
			ID:      strconv.Itoa(i),
			Name:    fmt.Sprintf("Display %d", i+1),
			Width:   r.Dx(),
			Height:  r.Dy(),
			X:       r.Min.X,
			Y:       r.Min.Y,
			Primary: i == 0,
		})
	}
	return displays, nil
}

// CaptureDisplay captures the screen named by id verbatim. Index selectors
// and numeric names address a display index; other names are rejected.
func (b *GenericBackend) CaptureDisplay(ctx context.Context, id Selector, outputPath string) error {
	var screen int
	switch id.Kind() {
	case SelectNone:
		return b.CaptureAll(ctx, outputPath)
	case SelectIndex:
		screen, _ = id.IndexValue()
	case SelectName:
		name, _ := id.NameValue()
		n, err := strconv.Atoi(name)
		if err != nil {
			return captureError(KindGeneric, "screen %q not found: screens are addressed by index", name)
		}
		screen = n
	}

	n := b.grabber.NumActiveDisplays()
	if screen < 0 || screen >= n {
		return captureError(KindGeneric, "screen %d not found (%d active)", screen, n)
	}
	return b.grab(ctx, b.grabber.GetDisplayBounds(screen), outputPath)
}

// CaptureAll captures the union of all active display bounds.
func (b *GenericBackend) CaptureAll(ctx context.Context, outputPath string) error {
	n := b.grabber.NumActiveDisplays()
	if n <= 0 {
		return captureError(KindGeneric, "no active displays")
	}
	var all image.Rectangle
	for i := 0; i < n; i++ {
		all = all.Union(b.grabber.GetDisplayBounds(i))
	}
	return b.grab(ctx, all, outputPath)
}

func (b *GenericBackend) grab(ctx context.Context, rect image.Rectangle, outputPath string) error {
	if err := contextErr(ctx, KindGeneric); err != nil {
		return err
	}
	if rect.Empty() {
		return captureError(KindGeneric, "empty capture region %v", rect)
	}
	img, err := b.grabber.CaptureRect(rect)
	if err != nil {
		return captureError(KindGeneric, "%v", err)
	}
	if err := writePNG(outputPath, img, b.opts.Compression); err != nil {
		return captureError(KindGeneric, "%v", err)
	}
	return verifyOutput(KindGeneric, outputPath)
}

var (
	_ Backend    = (*GenericBackend)(nil)
	_ Enumerator = (*GenericBackend)(nil)
)
