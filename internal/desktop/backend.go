package desktop

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
)

// Kind names a capture backend.
type Kind string

const (
	KindGeneric    Kind = "generic"
	KindGeometry   Kind = "geometry"
	KindComposited Kind = "composited"
)

// Backend is one screen capture mechanism. Native identifiers are passed as
// Selectors of the shape the backend understands; anything else fails with
// ErrCaptureFailed. Backends never retry internally.
type Backend interface {
	Kind() Kind

	// CaptureDisplay writes a PNG of a single display to outputPath.
	CaptureDisplay(ctx context.Context, id Selector, outputPath string) error

	// CaptureAll writes a PNG of the whole virtual desktop to outputPath.
	CaptureAll(ctx context.Context, outputPath string) error
}

// Enumerator is implemented by backends that can list their displays.
type Enumerator interface {
	ListDisplays(ctx context.Context) ([]Display, error)
}

// captureError wraps cause as an ErrCaptureFailed for backend kind.
func captureError(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrCaptureFailed, kind, fmt.Sprintf(format, args...))
}

// writePNG encodes img and writes it to path in a single write call.
func writePNG(path string, img image.Image, level png.CompressionLevel) error {
	buf := getBuffer()
	defer putBuffer(buf)

	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// verifyOutput checks that a capture actually produced a non-empty file.
func verifyOutput(kind Kind, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return captureError(kind, "screenshot file was not created: %v", err)
	}
	if info.Size() == 0 {
		return captureError(kind, "screenshot file %s is empty", path)
	}
	return nil
}

// contextErr reports a cancelled or expired context as a capture failure.
func contextErr(ctx context.Context, kind Kind) error {
	if err := ctx.Err(); err != nil {
		return captureError(kind, "%v", err)
	}
	return nil
}
