//go:build !linux

package desktop

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/kbinani/screenshot"
)

// nativeSurface exposes each active display as its own capture source
// through the OS capture API wrapped by kbinani/screenshot.
type nativeSurface struct{}

func newPlatformSurface() Surface { return nativeSurface{} }

func (nativeSurface) Displays(ctx context.Context) ([]Display, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, fmt.Errorf("no active displays")
	}
	displays := make([]Display, 0, n)
	for i := 0; i < n; i++ {
		r := screenshot.GetDisplayBounds(i)
		displays = append(displays, Display{
			Index:   i,
			ID:      strconv.Itoa(i),
			Name:    fmt.Sprintf("Display %d (%dx%d)", i+1, r.Dx(), r.Dy()),
			Width:   r.Dx(),
			Height:  r.Dy(),
			X:       r.Min.X,
			Y:       r.Min.Y,
			Primary: i == 0,
		})
	}
	return displays, nil
}

func (nativeSurface) Sources(ctx context.Context) ([]Source, error) {
	n := screenshot.NumActiveDisplays()
	sources := make([]Source, 0, n)
	for i := 0; i < n; i++ {
		sources = append(sources, Source{
			ID:        fmt.Sprintf("screen:%d:0", i),
			Name:      fmt.Sprintf("Screen %d", i+1),
			DisplayID: strconv.Itoa(i),
			Bounds:    screenshot.GetDisplayBounds(i),
		})
	}
	return sources, nil
}

func (nativeSurface) Grab(ctx context.Context, src Source) (image.Image, error) {
	return screenshot.CaptureRect(src.Bounds)
}

func (nativeSurface) GrabDesktop(ctx context.Context) (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, fmt.Errorf("no active displays")
	}
	var all image.Rectangle
	for i := 0; i < n; i++ {
		all = all.Union(screenshot.GetDisplayBounds(i))
	}
	return screenshot.CaptureRect(all)
}
