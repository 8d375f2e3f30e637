package model

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day with no time zone attached. Reservations and time
// slots are anchored to a Date and expressed as offsets from the venue's
// local midnight on that day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

// At returns the instant offset from midnight of d in loc.
func (d Date) At(loc *time.Location, offset time.Duration) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc).Add(offset)
}

func (d Date) Weekday() time.Weekday { return d.At(time.UTC, 0).Weekday() }

func (d Date) Before(o Date) bool { return d.At(time.UTC, 0).Before(o.At(time.UTC, 0)) }

func (d Date) After(o Date) bool { return o.Before(d) }

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date { return DateOf(d.At(time.UTC, 0).AddDate(0, 0, n)) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeSlot is a half-open interval [Start, End) on Date. Start and End are
// offsets from local midnight. Slots are derived on demand and never stored.
type TimeSlot struct {
	Date  Date
	Start time.Duration
	End   time.Duration
}

func (s TimeSlot) Duration() time.Duration { return s.End - s.Start }

// Overlaps reports whether two slots on the same date share any instant.
// Back-to-back slots (s.End == o.Start) do not overlap.
func (s TimeSlot) Overlaps(o TimeSlot) bool {
	return s.Date == o.Date && s.Start < o.End && o.Start < s.End
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Date, FormatClock(s.Start), FormatClock(s.End))
}

// ParseClock parses "HH:MM" into an offset from midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// FormatClock renders an offset from midnight as "HH:MM".
func FormatClock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}
