package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// isoDuration matches the ISO-8601 interval subset the upstream cloud
// search API uses for indexer schedules (e.g. "P1D", "PT1H", "PT30M").
var isoDuration = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseInterval accepts either a Go duration string ("1h30m") or an
// ISO-8601 interval ("PT1H30M"), translating the latter to a
// time.Duration at load time. Years and months are
// approximated as 365 and 30 days respectively, matching how the rest of
// the corpus treats coarse calendar units when no real calendar is
// available to resolve them precisely.
func ParseInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	m := isoDuration.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q", s)
	}

	var total time.Duration
	add := func(group string, unit time.Duration) error {
		if group == "" {
			return nil
		}
		n, err := strconv.ParseFloat(group, 64)
		if err != nil {
			return fmt.Errorf("invalid interval component %q in %q: %w", group, s, err)
		}
		total += time.Duration(n * float64(unit))
		return nil
	}

	for i, unit := range []time.Duration{
		365 * 24 * time.Hour, // years
		30 * 24 * time.Hour,  // months
		24 * time.Hour,       // days
		time.Hour,            // hours
		time.Minute,          // minutes
		time.Second,          // seconds
	} {
		if err := add(m[i+1], unit); err != nil {
			return 0, err
		}
	}

	if total <= 0 {
		return 0, fmt.Errorf("interval %q resolves to a non-positive duration", s)
	}
	return total, nil
}
