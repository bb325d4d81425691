package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// timestampLayouts lists the datetime shapes the API emits. Python's
// isoformat omits the zone, so zone-less values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	DateLayout,
}

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day t falls on in its own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts a plain day or any timestamp layout and keeps the day.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, nil
	}
	if d, err := time.Parse(DateLayout, value); err == nil {
		return DateOf(d), nil
	}
	ts, err := parseTimestamp(value)
	if err != nil {
		return Date{}, fmt.Errorf("content: parse date %q: %w", value, err)
	}
	return DateOf(ts), nil
}

// WeekStart returns the Monday on or before d.
func WeekStart(d Date) Date {
	if d.IsZero() {
		return d
	}
	offset := (int(d.t.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// WeekEnd returns the Sunday closing the week that starts on start.
func WeekEnd(start Date) Date {
	if start.IsZero() {
		return start
	}
	return WeekStart(start).AddDays(6)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return d.t }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date {
	if d.IsZero() {
		return d
	}
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Equal reports whether both values name the same day.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Short renders "Jun 3".
func (d Date) Short() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format("Jan 2")
}

// Long renders "Monday, June 3".
func (d Date) Long() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format("Monday, January 2")
}

// WeekRangeLabel renders a week as "Jun 3 - Jun 9, 2024".
func WeekRangeLabel(start, end Date) string {
	if start.IsZero() {
		return ""
	}
	if end.IsZero() {
		end = WeekEnd(start)
	}
	return fmt.Sprintf("%s - %s, %d", start.Short(), end.Short(), end.t.Year())
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content: decode date: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Timestamp is an instant decoded from the API's loose ISO-8601 strings.
type Timestamp struct {
	time.Time
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339))
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content: decode timestamp: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		ts.Time = time.Time{}
		return nil
	}
	parsed, err := parseTimestamp(raw)
	if err != nil {
		return fmt.Errorf("content: decode timestamp %q: %w", raw, err)
	}
	ts.Time = parsed
	return nil
}

// NewTimestamp wraps t; a zero t yields nil.
func NewTimestamp(t time.Time) *Timestamp {
	if t.IsZero() {
		return nil
	}
	return &Timestamp{Time: t.UTC()}
}

func parseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
