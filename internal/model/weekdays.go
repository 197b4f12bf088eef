package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidWeekday = errors.New("model: invalid weekday")

// Weekdays is a set of weekday indices, 0 = Sunday through 6 = Saturday.
// An empty set means the alarm fires once.
type Weekdays []int

func (w Weekdays) Validate() error {
	seen := make(map[int]bool, len(w))
	for _, d := range w {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, d)
		}
		if seen[d] {
			return fmt.Errorf("%w: duplicate %d", ErrInvalidWeekday, d)
		}
		seen[d] = true
	}
	return nil
}

// Normalize returns a sorted copy with duplicates removed.
func (w Weekdays) Normalize() Weekdays {
	if len(w) == 0 {
		return Weekdays{}
	}
	seen := make(map[int]bool, len(w))
	out := make(Weekdays, 0, len(w))
	for _, d := range w {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == int(day) {
			return true
		}
	}
	return false
}

var weekdayShort = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func (w Weekdays) String() string {
	norm := w.Normalize()
	switch {
	case len(norm) == 0:
		return "once"
	case len(norm) == 7:
		return "daily"
	case len(norm) == 5 && !norm.Contains(time.Saturday) && !norm.Contains(time.Sunday):
		return "weekdays"
	case len(norm) == 2 && norm.Contains(time.Saturday) && norm.Contains(time.Sunday):
		return "weekends"
	}
	parts := make([]string, 0, len(norm))
	for _, d := range norm {
		if d >= 0 && d <= 6 {
			parts = append(parts, weekdayShort[d])
		}
	}
	return strings.Join(parts, ",")
}

// ParseWeekdays accepts comma separated day names or indices plus the
// shorthands once, daily, weekdays and weekends.
func ParseWeekdays(raw string) (Weekdays, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" || normalized == "once" || normalized == "none" {
		return Weekdays{}, nil
	}
	out := make(Weekdays, 0, 7)
	for _, token := range strings.Split(normalized, ",") {
		token = strings.TrimSpace(token)
		switch token {
		case "":
			continue
		case "daily", "everyday", "all":
			out = append(out, 0, 1, 2, 3, 4, 5, 6)
		case "weekdays", "weekday":
			out = append(out, 1, 2, 3, 4, 5)
		case "weekends", "weekend":
			out = append(out, 0, 6)
		case "sun", "sunday":
			out = append(out, 0)
		case "mon", "monday":
			out = append(out, 1)
		case "tue", "tuesday":
			out = append(out, 2)
		case "wed", "wednesday":
			out = append(out, 3)
		case "thu", "thursday":
			out = append(out, 4)
		case "fri", "friday":
			out = append(out, 5)
		case "sat", "saturday":
			out = append(out, 6)
		default:
			n, err := strconv.Atoi(token)
			if err != nil || n < 0 || n > 6 {
				return nil, fmt.Errorf("%w: %q", ErrInvalidWeekday, token)
			}
			out = append(out, n)
		}
	}
	return out.Normalize(), nil
}
