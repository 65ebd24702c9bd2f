package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var timeUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"s", time.Second},
	{"m", time.Minute},
	{"h", time.Hour},
	{"d", 24 * time.Hour},
}

// ParseStringTime parses the duration strings used in config.json: a non-negative
// integer followed by one of ms, s, m, h or d ("10s", "5m", "2d"). Units are case
// insensitive and an empty string or "0" means zero.
func ParseStringTime(timeString string) (time.Duration, error) {
	timeString = strings.ToLower(strings.TrimSpace(timeString))
	if timeString == "" || timeString == "0" {
		return 0, nil
	}
	for _, u := range timeUnits {
		cutString, found := strings.CutSuffix(timeString, u.suffix)
		if !found {
			continue
		}
		number, err := strconv.Atoi(cutString)
		if err != nil || number < 0 {
			return 0, fmt.Errorf("invalid time format: %s", timeString)
		}
		return time.Duration(number) * u.unit, nil
	}
	return 0, fmt.Errorf("invalid time format: %s", timeString)
}

// MustParseStringTime is ParseStringTime for values already checked by config validation.
func MustParseStringTime(timeString string) time.Duration {
	d, err := ParseStringTime(timeString)
	if err != nil {
		return 0
	}
	return d
}
