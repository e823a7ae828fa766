package desktop

import (
	"bytes"
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

func surfaceDisplays(ids ...string) []Display {
	displays := make([]Display, len(ids))
	for i, id := range ids {
		displays[i] = Display{Index: i, ID: id, Name: "Display " + id, Width: 4, Height: 4}
	}
	return displays
}

func TestMatchSource(t *testing.T) {
	tests := []struct {
		name     string
		position int
		displays []Display
		sources  []Source
		wantID   string
		wantRule SourceMatch
	}{
		{
			name:     "correlation tag",
			position: 0,
			displays: surfaceDisplays("65", "66"),
			sources:  []Source{{ID: "screen:1:0", DisplayID: "66"}, {ID: "screen:0:0", DisplayID: "65"}},
			wantID:   "screen:0:0",
			wantRule: MatchTag,
		},
		{
			name:     "single source",
			position: 1,
			displays: surfaceDisplays("65", "66"),
			sources:  []Source{{ID: "screen:0:0"}},
			wantID:   "screen:0:0",
			wantRule: MatchSingleton,
		},
		{
			name:     "positional",
			position: 1,
			displays: surfaceDisplays("65", "66"),
			sources:  []Source{{ID: "a"}, {ID: "b"}},
			wantID:   "b",
			wantRule: MatchPosition,
		},
		{
			name:     "first available",
			position: 1,
			displays: surfaceDisplays("65", "66"),
			sources:  []Source{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			wantID:   "a",
			wantRule: MatchFirst,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, rule, err := MatchSource(tt.position, tt.displays, tt.sources)
			if err != nil {
				t.Fatalf("MatchSource: %v", err)
			}
			if src.ID != tt.wantID || rule != tt.wantRule {
				t.Fatalf("got (%s, %s), want (%s, %s)", src.ID, rule, tt.wantID, tt.wantRule)
			}
		})
	}
}

func TestMatchSourceErrors(t *testing.T) {
	if _, _, err := MatchSource(0, surfaceDisplays("0"), nil); err == nil {
		t.Fatal("expected error with no sources")
	}
	if _, _, err := MatchSource(3, surfaceDisplays("0"), []Source{{ID: "a"}}); err == nil {
		t.Fatal("expected error for out-of-range position")
	}
}

func TestCompositedFirstAvailableLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	logging.Init("text", "debug", &buf)
	t.Cleanup(func() { logging.Init("text", "info", nil) })

	s := &fakeSurface{
		displays: surfaceDisplays("0", "1"),
		sources:  []Source{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	}
	out := filepath.Join(t.TempDir(), "shot.png")
	if err := NewCompositedBackend(s).CaptureDisplay(context.Background(), Index(1), out); err != nil {
		t.Fatalf("CaptureDisplay: %v", err)
	}
	if len(s.grabbed) != 1 || s.grabbed[0].ID != "a" {
		t.Fatalf("grabbed %+v, want source a", s.grabbed)
	}
	logs := buf.String()
	if !strings.Contains(logs, "level=WARN") || !strings.Contains(logs, "first available") {
		t.Fatalf("expected degraded-capture warning, got: %s", logs)
	}
}

func TestCompositedCaptureAll(t *testing.T) {
	s := &fakeSurface{displays: surfaceDisplays("0")}
	out := filepath.Join(t.TempDir(), "shot.png")
	if err := NewCompositedBackend(s).CaptureDisplay(context.Background(), None(), out); err != nil {
		t.Fatalf("CaptureDisplay(None): %v", err)
	}
	if s.desktop != 1 {
		t.Fatalf("expected one desktop grab, got %d", s.desktop)
	}
	if got := decodeSize(t, out); got != image.Pt(8, 4) {
		t.Fatalf("desktop image size %v", got)
	}
}

func TestCompositedFailures(t *testing.T) {
	tests := []struct {
		name    string
		surface *fakeSurface
		sel     Selector
	}{
		{"name selector", &fakeSurface{displays: surfaceDisplays("0"), sources: []Source{{ID: "a"}}}, Name("DP-2")},
		{"enumeration", &fakeSurface{displayErr: errBoom}, Index(0)},
		{"no sources", &fakeSurface{displays: surfaceDisplays("0")}, Index(0)},
		{"grab", &fakeSurface{displays: surfaceDisplays("0"), sources: []Source{{ID: "a"}}, grabErr: errBoom}, Index(0)},
		{"out of range", &fakeSurface{displays: surfaceDisplays("0"), sources: []Source{{ID: "a"}}}, Index(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCompositedBackend(tt.surface).CaptureDisplay(context.Background(), tt.sel, filepath.Join(t.TempDir(), "shot.png"))
			if !errors.Is(err, ErrCaptureFailed) {
				t.Fatalf("expected ErrCaptureFailed, got %v", err)
			}
		})
	}
}
