package desktop

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SelectorKind tags the variant held by a Selector.
type SelectorKind int

const (
	// SelectNone means "capture everything".
	SelectNone SelectorKind = iota
	// SelectIndex holds a numeric display index or hardware id.
	SelectIndex
	// SelectName holds a string output name such as "DP-2".
	SelectName
)

func (k SelectorKind) String() string {
	switch k {
	case SelectIndex:
		return "index"
	case SelectName:
		return "name"
	default:
		return "none"
	}
}

// Selector is the configured target-monitor value. Its meaning is resolved
// per backend at capture time. The zero value is None.
type Selector struct {
	kind  SelectorKind
	index int
	name  string
}

// None returns the capture-everything selector.
func None() Selector { return Selector{} }

// Index returns a numeric selector.
func Index(i int) Selector { return Selector{kind: SelectIndex, index: i} }

// Name returns a named-output selector.
func Name(s string) Selector { return Selector{kind: SelectName, name: s} }

// Kind reports which variant the selector holds.
func (s Selector) Kind() SelectorKind { return s.kind }

// IsNone reports whether the selector means "capture everything".
func (s Selector) IsNone() bool { return s.kind == SelectNone }

// IndexValue returns the numeric value when the selector is an Index.
func (s Selector) IndexValue() (int, bool) {
	return s.index, s.kind == SelectIndex
}

// NameValue returns the string value when the selector is a Name.
func (s Selector) NameValue() (string, bool) {
	return s.name, s.kind == SelectName
}

// Value returns nil, an int or a string. It is the form persisted in
// configuration and returned by monitor listings, so it must round-trip
// through SelectorFromValue unchanged.
func (s Selector) Value() any {
	switch s.kind {
	case SelectIndex:
		return s.index
	case SelectName:
		return s.name
	default:
		return nil
	}
}

func (s Selector) String() string {
	switch s.kind {
	case SelectIndex:
		return strconv.Itoa(s.index)
	case SelectName:
		return strconv.Quote(s.name)
	default:
		return "none"
	}
}

func fromUint(v uint64) (Selector, error) {
	if v > math.MaxInt {
		return None(), outOfRange(v)
	}
	return Index(int(v)), nil
}

func outOfRange(v any) error {
	return fmt.Errorf("monitor selector %v is out of range", v)
}

// SelectorFromValue converts a decoded configuration value into a Selector.
// Integers (and integral floats, as produced by JSON decoding) become Index;
// strings become Name verbatim, even when they look numeric, so the stored
// type is preserved.
func SelectorFromValue(v any) (Selector, error) {
	switch t := v.(type) {
	case nil:
		return None(), nil
	case Selector:
		return t, nil
	case int:
		return Index(t), nil
	case int32:
		return Index(int(t)), nil
	case int64:
		if t > math.MaxInt || t < math.MinInt {
			return None(), outOfRange(t)
		}
		return Index(int(t)), nil
	case uint:
		return fromUint(uint64(t))
	case uint32:
		return fromUint(uint64(t))
	case uint64:
		return fromUint(t)
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return None(), fmt.Errorf("monitor selector %v is not an integer", t)
		}
		// float64(math.MaxInt) rounds up to 2^63, which int cannot hold.
		if t >= float64(math.MaxInt) || t < float64(math.MinInt) {
			return None(), outOfRange(t)
		}
		return Index(int(t)), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return None(), nil
		}
		return Name(t), nil
	default:
		return None(), fmt.Errorf("unsupported monitor selector type %T", v)
	}
}

// ParseSelector interprets command-line input: "" and "none" mean None,
// decimal integers become Index, anything else becomes Name.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") || strings.EqualFold(s, "all") {
		return None()
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Index(n)
	}
	return Name(s)
}
