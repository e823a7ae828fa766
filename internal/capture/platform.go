package capture

import (
	"time"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
)

// NewPlatformStrategy wires the three real backends for platform. External
// tools run under toolTimeout.
func NewPlatformStrategy(platform desktop.Platform, toolTimeout time.Duration) *Strategy {
	backends := map[desktop.Kind]desktop.Backend{
		desktop.KindGeneric:    desktop.NewGenericBackend(nil),
		desktop.KindComposited: desktop.NewCompositedBackend(nil),
	}
	if platform.GeometryCapable {
		backends[desktop.KindGeometry] = desktop.NewGeometryBackend(desktop.NewExecRunner(toolTimeout))
	}
	return NewStrategy(Config{
		Platform:       platform,
		Backends:       backends,
		GenericOptions: desktop.PlatformGenericOptions(platform.OS),
	})
}

// Catalog returns the display catalog the strategy resolves selectors with.
func (s *Strategy) Catalog() *desktop.Catalog { return s.catalog }
