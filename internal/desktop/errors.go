package desktop

import "errors"

// ErrEnumerationFailed is returned when a display-listing mechanism is
// unavailable (missing tool, platform API error).
var ErrEnumerationFailed = errors.New("display enumeration failed")

// ErrUnresolvableSelector is returned when a selector matches no enumerated
// display by identifier, name or position.
var ErrUnresolvableSelector = errors.New("selector does not match any display")

// ErrCaptureFailed is returned when a backend attempt did not produce a
// valid output file.
var ErrCaptureFailed = errors.New("screen capture failed")

// ErrNotSupported is returned when a backend cannot run on this platform.
var ErrNotSupported = errors.New("screen capture backend not supported on this platform")
