package intent

import (
	"fmt"
	"slices"
	"strings"
)

// Devices the simulator knows, in match order.
var deviceOrder = []string{"lights", "thermostat", "music", "security"}

var deviceActions = map[string][]string{
	"lights":     {"on", "off", "dim", "brighten"},
	"thermostat": {"increase", "decrease", "set"},
	"music":      {"play", "pause", "stop", "next", "previous"},
	"security":   {"arm", "disarm", "status"},
}

func findDevice(q string) (string, bool) {
	for _, d := range deviceOrder {
		if strings.Contains(q, d) {
			return d, true
		}
	}
	return "", false
}

// findAction returns the first word of q that is an action of any device.
// Whole-word matching keeps "arm" from matching inside "disarm".
func findAction(q string) (string, bool) {
	for _, f := range strings.Fields(q) {
		f = strings.Trim(f, ".,!?;:'\"")
		for _, d := range deviceOrder {
			if slices.Contains(deviceActions[d], f) {
				return f, true
			}
		}
	}
	return "", false
}

// ControlDevice simulates a smart-home command against the capability table.
func ControlDevice(device, action string) string {
	actions, ok := deviceActions[device]
	if ok && slices.Contains(actions, action) {
		return fmt.Sprintf("Smart home: %s %s command executed", device, action)
	}
	return fmt.Sprintf("Smart home device '%s' not found or action '%s' not supported", device, action)
}
