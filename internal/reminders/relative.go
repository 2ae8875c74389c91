package reminders

import (
	"strconv"
	"strings"
	"time"
)

// DefaultDelay applies to any time expression ParseRelative does not recognize.
const DefaultDelay = time.Hour

// ParseRelative resolves "in <n> minutes" or "in <n> hours" against now. Any
// other phrasing, including a non-numeric or negative count, resolves to
// now+DefaultDelay and reports ok=false. It never fails.
func ParseRelative(expr string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(strings.ToLower(expr))
	if len(fields) < 3 || fields[0] != "in" {
		return now.Add(DefaultDelay), false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return now.Add(DefaultDelay), false
	}
	var unit time.Duration
	switch fields[2] {
	case "minutes":
		unit = time.Minute
	case "hours":
		unit = time.Hour
	default:
		return now.Add(DefaultDelay), false
	}
	d := time.Duration(n) * unit
	if d/unit != time.Duration(n) {
		// overflow
		return now.Add(DefaultDelay), false
	}
	return now.Add(d), true
}
