package desktop

import (
	"context"
	"fmt"
	"os"

	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

var geometryLog = logging.L("geometry")

const (
	xrandrTool = "xrandr"
	importTool = "import" // ImageMagick
)

// GeometryBackend captures on X11 window systems by cropping the root
// window with ImageMagick at a geometry taken from xrandr. Its native
// identifier is the output name.
type GeometryBackend struct {
	runner Runner
}

// NewGeometryBackend creates a geometry-crop backend. A nil runner uses
// os/exec with DefaultToolTimeout.
func NewGeometryBackend(r Runner) *GeometryBackend {
	if r == nil {
		r = NewExecRunner(DefaultToolTimeout)
	}
	return &GeometryBackend{runner: r}
}

func (b *GeometryBackend) Kind() Kind { return KindGeometry }

// Available reports whether both external tools are on PATH.
func (b *GeometryBackend) Available() bool {
	return HaveTool(xrandrTool) && HaveTool(importTool)
}

// ListDisplays parses `xrandr --query`.
func (b *GeometryBackend) ListDisplays(ctx context.Context) ([]Display, error) {
	out, err := b.runner.Run(ctx, xrandrTool, "--query")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEnumerationFailed, KindGeometry, err)
	}
	displays := ParseXrandr(string(out))
	if len(displays) == 0 {
		return nil, fmt.Errorf("%w: %s: xrandr reported no connected outputs", ErrEnumerationFailed, KindGeometry)
	}
	geometryLog.Debug("xrandr displays", "count", len(displays))
	return displays, nil
}

// CaptureDisplay crops the root window to the geometry of the named output.
func (b *GeometryBackend) CaptureDisplay(ctx context.Context, id Selector, outputPath string) error {
	if id.IsNone() {
		return b.CaptureAll(ctx, outputPath)
	}
	name, ok := id.NameValue()
	if !ok {
		return captureError(KindGeometry, "outputs are addressed by name, got %s selector", id.Kind())
	}

	displays, err := b.ListDisplays(ctx)
	if err != nil {
		return captureError(KindGeometry, "%v", err)
	}
	var target *Display
	for i := range displays {
		if displays[i].Name == name {
			target = &displays[i]
			break
		}
	}
	if target == nil {
		return captureError(KindGeometry, "display %s not found", name)
	}

	geometryLog.Debug("capturing output", "output", name, "geometry", target.Geometry())
	return b.run(ctx, outputPath, "-window", "root", "-crop", target.Geometry(), outputPath)
}

// CaptureAll captures the whole virtual root surface.
func (b *GeometryBackend) CaptureAll(ctx context.Context, outputPath string) error {
	return b.run(ctx, outputPath, "-window", "root", outputPath)
}

func (b *GeometryBackend) run(ctx context.Context, outputPath string, args ...string) error {
	// A stale file from an earlier attempt must not count as success.
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		return captureError(KindGeometry, "remove stale output: %v", err)
	}
	if _, err := b.runner.Run(ctx, importTool, args...); err != nil {
		return captureError(KindGeometry, "%v", err)
	}
	return verifyOutput(KindGeometry, outputPath)
}

var (
	_ Backend    = (*GeometryBackend)(nil)
	_ Enumerator = (*GeometryBackend)(nil)
)
