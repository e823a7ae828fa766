package desktop

import (
	"fmt"
	"strconv"
)

// Display describes one connected output as seen by a particular backend.
// Displays are re-enumerated on every request and never cached.
type Display struct {
	// Index is the position in the backend's enumeration order.
	Index int `json:"index" yaml:"index"`
	// ID is the backend-native identifier rendered as text: an output name
	// ("DP-2") for the geometry backend, a number ("0", "65") elsewhere.
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	X       int    `json:"x" yaml:"x"`
	Y       int    `json:"y" yaml:"y"`
	Primary bool   `json:"isPrimary" yaml:"isPrimary"`
}

// NumericID returns the identifier as an integer when it is one.
func (d Display) NumericID() (int, bool) {
	n, err := strconv.Atoi(d.ID)
	return n, err == nil
}

// Resolution returns "WxH".
func (d Display) Resolution() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Geometry returns the X geometry string "WxH+X+Y".
func (d Display) Geometry() string {
	return fmt.Sprintf("%dx%d+%d+%d", d.Width, d.Height, d.X, d.Y)
}

// Monitor is the unified, backend-independent listing entry. ID is a
// number or a string and is stored in configuration as-is.
type Monitor struct {
	ID          any    `json:"id" yaml:"id"`
	DisplayName string `json:"name" yaml:"name"`
	Index       int    `json:"index" yaml:"index"`
}
