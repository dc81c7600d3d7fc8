package viewmodel

import (
	"fmt"
	"math"
	"time"
)

const (
	minutesInDay   = 1440
	minutesInMonth = 43200
)

// RelativeTime describes t relative to now in words, e.g. "5 minutes ago" or
// "in about 2 hours". The buckets follow the ones users already see in the
// web client.
func RelativeTime(t, now time.Time) string {
	d := Distance(t, now)
	if t.After(now) {
		return "in " + d
	}
	return d + " ago"
}

// Distance is RelativeTime without the direction.
func Distance(t, now time.Time) string {
	from, to := t, now
	if from.After(to) {
		from, to = to, from
	}
	seconds := to.Sub(from).Seconds()
	minutes := int(math.Round(seconds / 60))

	switch {
	case minutes < 1:
		return "less than a minute"
	case minutes < 2:
		return "1 minute"
	case minutes < 45:
		return fmt.Sprintf("%d minutes", minutes)
	case minutes < 90:
		return "about 1 hour"
	case minutes < minutesInDay:
		return fmt.Sprintf("about %d hours", int(math.Round(float64(minutes)/60)))
	case minutes < 2520:
		return "1 day"
	case minutes < minutesInMonth:
		return fmt.Sprintf("%d days", int(math.Round(float64(minutes)/minutesInDay)))
	case minutes < 2*minutesInMonth:
		months := int(math.Round(float64(minutes) / minutesInMonth))
		return plural("about %d month", months)
	}

	months := monthsBetween(from, to)
	if months < 12 {
		return plural("%d month", int(math.Round(float64(minutes)/minutesInMonth)))
	}
	years, rest := months/12, months%12
	switch {
	case rest < 3:
		return plural("about %d year", years)
	case rest < 9:
		return plural("over %d year", years)
	default:
		return plural("almost %d year", years+1)
	}
}

// monthsBetween counts whole calendar months from a to b, a <= b.
func monthsBetween(a, b time.Time) int {
	b = b.In(a.Location())
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	anchor := a.AddDate(0, months, 0)
	if anchor.After(b) {
		months--
	}
	return months
}

func plural(format string, n int) string {
	s := fmt.Sprintf(format, n)
	if n != 1 {
		s += "s"
	}
	return s
}
