package session

import (
	"fmt"
	"strings"
	"time"
)

type greetingBand struct {
	from, to int
	phrases  []string
}

var greetingBands = []greetingBand{
	{5, 12, []string{"Good morning", "Morning", "Rise and shine"}},
	{12, 17, []string{"Good afternoon", "Afternoon", "Hope you're having a great day"}},
	{17, 21, []string{"Good evening", "Evening", "Hope your day went well"}},
	{21, 24, []string{"Good night", "It's getting late", "Evening"}},
	{0, 5, []string{"You're up late", "Burning the midnight oil", "Late night session"}},
}

// Greeting builds the opening line for the hour of now. pick(n) must return a
// value in [0, n).
func Greeting(now time.Time, userName, assistantName string, pick func(int) int) string {
	phrase := "Hello"
	hour := now.Hour()
	for _, band := range greetingBands {
		if hour >= band.from && hour < band.to {
			phrase = band.phrases[pick(len(band.phrases))]
			break
		}
	}
	if strings.TrimSpace(assistantName) == "" {
		assistantName = "Aide"
	}
	return fmt.Sprintf("%s, %s! I'm %s, your personal assistant. How can I help you today?", phrase, userName, assistantName)
}
