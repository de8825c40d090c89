package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxHours caps a single order's duration at one year of continuous work.
const MaxHours = 24 * 365

var (
	plainHoursRe   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	hoursMinutesRe = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*h(?:\s*(\d+)\s*(?:m|min)?)?$`)
	minutesRe      = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(?:m|min|mn)$`)
)

// Hours converts an ERP duration field into a number of hours.
// Accepted forms: "4", "4.5", "4,5", "4h", "4h30", "4h30m", "90min".
// Durations above MaxHours are rejected.
func Hours(raw string) (float64, error) {
	h, err := parseHours(raw)
	if err != nil {
		return 0, err
	}
	if h > MaxHours {
		return 0, fmt.Errorf("duration %q exceeds %d hours", raw, MaxHours)
	}
	return h, nil
}

func parseHours(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	// ERP exports use a decimal comma
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if plainHoursRe.MatchString(s) {
		h, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unable to parse duration %q: %w", raw, err)
		}
		return h, nil
	}

	if m := hoursMinutesRe.FindStringSubmatch(s); m != nil {
		h, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("unable to parse duration %q: %w", raw, err)
		}
		if m[2] != "" {
			mins, err := strconv.Atoi(m[2])
			if err != nil || mins >= 60 {
				return 0, fmt.Errorf("unable to parse minutes in duration %q", raw)
			}
			h += float64(mins) / 60
		}
		return h, nil
	}

	if m := minutesRe.FindStringSubmatch(s); m != nil {
		mins, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("unable to parse duration %q: %w", raw, err)
		}
		return mins / 60, nil
	}

	return 0, fmt.Errorf("unable to parse duration %q", raw)
}
