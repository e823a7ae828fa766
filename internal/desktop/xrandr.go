package desktop

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// connectedOutput matches xrandr lines such as
// "DisplayPort-1 connected primary 2560x1440+0+0 (normal left ...) 597mm x 336mm".
// Connected outputs without an active mode have no geometry and are skipped.
var connectedOutput = regexp.MustCompile(`^(\S+)\s+connected\s+(primary\s+)?(\d+)x(\d+)([+-]\d+)([+-]\d+)`)

// ParseXrandr extracts active outputs from `xrandr --query` output, in the
// order xrandr lists them.
func ParseXrandr(out string) []Display {
	var displays []Display
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		m := connectedOutput.FindStringSubmatch(strings.TrimRight(scanner.Text(), "\r"))
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[3])
		h, _ := strconv.Atoi(m[4])
		x, _ := strconv.Atoi(m[5])
		y, _ := strconv.Atoi(m[6])

		displays = append(displays, Display{
			Index:   len(displays),
			ID:      m[1],
			Name:    m[1],
			Width:   w,
			Height:  h,
			X:       x,
			Y:       y,
			Primary: m[2] != "",
		})
	}
	return displays
}
