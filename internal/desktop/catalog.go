package desktop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/breeze-rmm/snapshot-agent/internal/logging"
)

var catalogLog = logging.L("catalog")

// MatchRule names a selector resolution rule.
type MatchRule string

const (
	RuleExactID   MatchRule = "exact-id"
	RuleExactName MatchRule = "exact-name"
	RulePosition  MatchRule = "position"
)

// Resolution is the result of translating a selector for one backend.
type Resolution struct {
	// Native is the backend-native identifier to pass to CaptureDisplay.
	Native  Selector
	Display Display
	Rule    MatchRule
	// Attempted lists every rule tried, in order, including the one that
	// matched.
	Attempted []MatchRule
}

// nativeKind is the selector shape each backend addresses displays by.
var nativeKind = map[Kind]SelectorKind{
	KindGeneric:    SelectIndex,
	KindGeometry:   SelectName,
	KindComposited: SelectIndex,
}

// Catalog enumerates displays per backend and translates selectors between
// identifier schemes. It holds no display state between calls.
type Catalog struct {
	platform    Platform
	enumerators map[Kind]Enumerator
}

// NewCatalog creates a catalog over the given enumeration sources.
func NewCatalog(platform Platform, enumerators map[Kind]Enumerator) *Catalog {
	m := make(map[Kind]Enumerator, len(enumerators))
	for k, e := range enumerators {
		if e != nil {
			m[k] = e
		}
	}
	return &Catalog{platform: platform, enumerators: m}
}

// ListDisplays enumerates displays as seen by kind. Errors always wrap
// ErrEnumerationFailed and are non-fatal to callers.
func (c *Catalog) ListDisplays(ctx context.Context, kind Kind) ([]Display, error) {
	e, ok := c.enumerators[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s backend does not enumerate displays", ErrEnumerationFailed, kind)
	}
	displays, err := e.ListDisplays(ctx)
	if err != nil {
		if errors.Is(err, ErrEnumerationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrEnumerationFailed, kind, err)
	}
	return displays, nil
}

// Resolve translates sel into kind's native identifier against displays.
// Exact identifier (then name) equality is tried first; when the selector's
// shape differs from the backend's native shape, positional correspondence
// is tried next. None resolves to None.
func (c *Catalog) Resolve(sel Selector, kind Kind, displays []Display) (Resolution, error) {
	if sel.IsNone() {
		return Resolution{Native: None()}, nil
	}

	var attempted []MatchRule
	found := func(d Display, rule MatchRule) Resolution {
		return Resolution{
			Native:    nativeFor(kind, d),
			Display:   d,
			Rule:      rule,
			Attempted: attempted,
		}
	}

	attempted = append(attempted, RuleExactID)
	for _, d := range displays {
		if matchesID(sel, d) {
			return found(d, RuleExactID), nil
		}
	}

	if name, ok := sel.NameValue(); ok {
		attempted = append(attempted, RuleExactName)
		for _, d := range displays {
			if d.Name == name {
				return found(d, RuleExactName), nil
			}
		}
	}

	if sel.Kind() != nativeKind[kind] {
		attempted = append(attempted, RulePosition)
		if pos, ok := position(sel); ok && pos >= 0 && pos < len(displays) {
			return found(displays[pos], RulePosition), nil
		}
	}

	return Resolution{Attempted: attempted}, fmt.Errorf("%w: %s against %d %s displays (tried %s)",
		ErrUnresolvableSelector, sel, len(displays), kind, joinRules(attempted))
}

// ListMonitors builds the unified monitor list. Geometry enumeration is
// preferred where available, then the composited surface, then the
// generic grabber. Total failure yields an empty list.
func (c *Catalog) ListMonitors(ctx context.Context) []Monitor {
	var order []Kind
	if c.platform.GeometryCapable {
		order = append(order, KindGeometry)
	}
	order = append(order, KindComposited, KindGeneric)

	for _, kind := range order {
		displays, err := c.ListDisplays(ctx, kind)
		if err != nil {
			catalogLog.Debug("monitor enumeration source unavailable", logging.KeyBackend, string(kind), logging.Err(err))
			continue
		}
		return monitorsFrom(kind, displays)
	}
	catalogLog.Warn("no display enumeration source succeeded")
	return []Monitor{}
}

func monitorsFrom(kind Kind, displays []Display) []Monitor {
	monitors := make([]Monitor, 0, len(displays))
	for i, d := range displays {
		m := Monitor{Index: i}
		if kind == KindGeometry {
			m.ID = d.Name
			m.DisplayName = fmt.Sprintf("%s (%s)", d.Name, d.Resolution())
			if d.Primary {
				m.DisplayName += " - Primary"
			}
		} else {
			if n, ok := d.NumericID(); ok {
				m.ID = n
			} else {
				m.ID = d.ID
			}
			m.DisplayName = fmt.Sprintf("Display %d (%s)", i+1, d.Resolution())
		}
		monitors = append(monitors, m)
	}
	return monitors
}

func nativeFor(kind Kind, d Display) Selector {
	if nativeKind[kind] == SelectName {
		return Name(d.Name)
	}
	return Index(d.Index)
}

func matchesID(sel Selector, d Display) bool {
	switch sel.Kind() {
	case SelectIndex:
		v, _ := sel.IndexValue()
		n, ok := d.NumericID()
		return ok && n == v
	case SelectName:
		v, _ := sel.NameValue()
		return d.ID == v
	}
	return false
}

func position(sel Selector) (int, bool) {
	if v, ok := sel.IndexValue(); ok {
		return v, true
	}
	if v, ok := sel.NameValue(); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

func joinRules(rules []MatchRule) string {
	s := make([]string, len(rules))
	for i, r := range rules {
		s[i] = string(r)
	}
	return strings.Join(s, ", ")
}
