package desktop

import (
	"context"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Platform describes the host's display environment.
type Platform struct {
	OS          string `json:"os" yaml:"os"`
	SessionType string `json:"sessionType,omitempty" yaml:"sessionType,omitempty"`
	Display     string `json:"display,omitempty" yaml:"display,omitempty"`
	Distro      string `json:"distro,omitempty" yaml:"distro,omitempty"`
	Kernel      string `json:"kernel,omitempty" yaml:"kernel,omitempty"`

	// GeometryCapable marks X11-style window systems where xrandr and an
	// ImageMagick root-window crop are the best available capture path.
	GeometryCapable bool `json:"geometryCapable" yaml:"geometryCapable"`

	// AsyncWindowHide marks platforms where hiding a window returns before
	// the compositor has removed it from screen.
	AsyncWindowHide bool `json:"asyncWindowHide" yaml:"asyncWindowHide"`
}

// NewPlatform derives capability flags for goos.
func NewPlatform(goos string) Platform {
	p := Platform{OS: goos}
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		p.GeometryCapable = true
	}
	p.AsyncWindowHide = goos == "linux"
	return p
}

// DetectPlatform inspects the running host. Host facts are best-effort;
// failures leave the descriptive fields empty.
func DetectPlatform(ctx context.Context) Platform {
	p := NewPlatform(runtime.GOOS)
	p.SessionType = strings.ToLower(os.Getenv("XDG_SESSION_TYPE"))
	p.Display = os.Getenv("DISPLAY")

	if info, err := host.InfoWithContext(ctx); err == nil {
		p.Distro = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
		p.Kernel = info.KernelVersion
	}
	return p
}
