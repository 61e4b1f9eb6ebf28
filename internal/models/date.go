package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with day granularity. Times are truncated to UTC
// midnight on construction.
type Date struct {
	t time.Time
}

// NewDate truncates t to its calendar day
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in the local zone of now
func Today(now time.Time) Date {
	return NewDate(now)
}

// ParseDate accepts "YYYY-MM-DD" or any string starting with it (RFC3339
// timestamps included). Anything else is an error; there is no fallback value.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if len(value) < len(dateLayout) {
		return Date{}, fmt.Errorf("invalid date %q", value)
	}
	t, err := time.Parse(dateLayout, value[:len(dateLayout)])
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return Date{t: t}, nil
}

// ParseDatePtr returns nil for malformed or empty input
func ParseDatePtr(value string) *Date {
	d, err := ParseDate(value)
	if err != nil {
		return nil
	}
	return &d
}

// Time returns the date as a UTC midnight time
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the date is unset
func (d Date) IsZero() bool { return d.t.IsZero() }

// Year returns the calendar year
func (d Date) Year() int { return d.t.Year() }

// Before reports whether d is strictly before o
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly after o
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Equal reports whether both dates are the same day
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// AddDays shifts the date by n days
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysSince returns the number of whole days from d to o
func (d Date) DaysSince(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// MarshalJSON writes the date as "YYYY-MM-DD"
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON reads "YYYY-MM-DD" (or a longer timestamp). Empty strings,
// null and malformed values leave the date zero so one bad field never
// rejects the surrounding document.
func (d *Date) UnmarshalJSON(data []byte) error {
	*d = Date{}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if parsed, err := ParseDate(raw); err == nil {
		*d = parsed
	}
	return nil
}

// MinDate returns the earliest non-nil date, or nil when all are nil
func MinDate(dates ...*Date) *Date {
	var min *Date
	for _, d := range dates {
		if d == nil || d.IsZero() {
			continue
		}
		if min == nil || d.Before(*min) {
			v := *d
			min = &v
		}
	}
	return min
}

// DateWindow is an inclusive range of calendar days
type DateWindow struct {
	Start Date
	End   Date
}

// LastDays returns the window [today-days, today]
func LastDays(today Date, days int) DateWindow {
	return DateWindow{Start: today.AddDays(-days), End: today}
}

// Contains reports whether d lies within the window, bounds included
func (w DateWindow) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}
