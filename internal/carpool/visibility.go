package carpool

import (
	"strings"
	"time"
)

// ParseDeparture parses an HH:MM (or HH:MM:SS) time of day into minutes after midnight.
func ParseDeparture(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}

// Visible reports whether a ride departing at hhmm today is still listable at now.
// A ride leaving in the current minute stays visible. Empty times are always
// visible; unparseable ones never are.
func Visible(hhmm string, now time.Time) bool {
	if strings.TrimSpace(hhmm) == "" {
		return true
	}
	mins, ok := ParseDeparture(hhmm)
	if !ok {
		return false
	}
	return mins >= now.Hour()*60+now.Minute()
}
