package locktimer

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ParseDuration parses a duration string like time.ParseDuration and
// additionally accepts days ("d") as a unit, e.g. "1.5d" or "1d12h".
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1024 {
		return 0, fmt.Errorf("parsing duration: input string too long")
	}
	var inNumber bool
	var numStart int
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == 'd' {
			daysStr := s[numStart:i]
			days, err := strconv.ParseFloat(daysStr, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing duration %q: %w", s, err)
			}
			hoursStr := strconv.FormatFloat(days*24.0, 'f', -1, 64)
			s = s[:numStart] + hoursStr + "h" + s[i+1:]
			i--
			continue
		}
		if !inNumber {
			numStart = i
		}
		inNumber = (ch >= '0' && ch <= '9') || ch == '.' || ch == '-' || ch == '+'
	}
	return time.ParseDuration(s)
}

// GetDurationEnvOrDefault returns the duration stored in the environment
// variable key, or defaultValue if it is unset or unparsable.
func GetDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}
