package desktop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
)

// fakeRunner answers xrandr with canned output and emulates ImageMagick
// `import` by writing a small file to the last argument.
type fakeRunner struct {
	xrandr    string
	xrandrErr error
	importErr error
	skipWrite bool
	calls     [][]string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	switch name {
	case xrandrTool:
		if r.xrandrErr != nil {
			return nil, r.xrandrErr
		}
		return []byte(r.xrandr), nil
	case importTool:
		if r.importErr != nil {
			return nil, r.importErr
		}
		if !r.skipWrite {
			if err := os.WriteFile(args[len(args)-1], []byte("\x89PNG fake"), 0o600); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected command %s", name)
}

func (r *fakeRunner) last() string {
	if len(r.calls) == 0 {
		return ""
	}
	return strings.Join(r.calls[len(r.calls)-1], " ")
}

// fakeGrabber reports fixed display bounds and returns solid images.
type fakeGrabber struct {
	bounds  []image.Rectangle
	err     error
	grabbed []image.Rectangle
}

func (g *fakeGrabber) NumActiveDisplays() int { return len(g.bounds) }

func (g *fakeGrabber) GetDisplayBounds(i int) image.Rectangle {
	if i < 0 || i >= len(g.bounds) {
		return image.Rectangle{}
	}
	return g.bounds[i]
}

func (g *fakeGrabber) CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	g.grabbed = append(g.grabbed, r)
	if g.err != nil {
		return nil, g.err
	}
	return solid(r.Dx(), r.Dy()), nil
}

// fakeSurface is a compositing surface with configurable displays/sources.
type fakeSurface struct {
	displays   []Display
	sources    []Source
	displayErr error
	grabErr    error
	grabbed    []Source
	desktop    int
}

func (s *fakeSurface) Displays(ctx context.Context) ([]Display, error) {
	return s.displays, s.displayErr
}

func (s *fakeSurface) Sources(ctx context.Context) ([]Source, error) { return s.sources, nil }

func (s *fakeSurface) Grab(ctx context.Context, src Source) (image.Image, error) {
	s.grabbed = append(s.grabbed, src)
	if s.grabErr != nil {
		return nil, s.grabErr
	}
	return solid(4, 4), nil
}

func (s *fakeSurface) GrabDesktop(ctx context.Context) (image.Image, error) {
	s.desktop++
	if s.grabErr != nil {
		return nil, s.grabErr
	}
	return solid(8, 4), nil
}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: 90, B: 160, A: 255})
		}
	}
	return img
}

var errBoom = errors.New("boom")

const sampleXrandr = `Screen 0: minimum 320 x 200, current 4480 x 1440, maximum 16384 x 16384
DP-1 disconnected (normal left inverted right x axis y axis)
DP-2 connected primary 2560x1440+0+0 (normal left inverted right x axis y axis) 597mm x 336mm
   2560x1440     59.95*+
HDMI-1 connected 1920x1080+2560+360 (normal left inverted right x axis y axis) 527mm x 296mm
   1920x1080     60.00*+
HDMI-2 connected (normal left inverted right x axis y axis)
`
