package database

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	// Fixed width keeps stored text in chronological order for SQLite comparisons.
	timestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// FormatDate renders a calendar date for storage. Both drivers accept
// ISO dates as text parameters.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatTimestamp renders an instant for storage in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// NullableTimestamp renders an optional instant, nil when absent.
func NullableTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTimestamp(*t)
}

// NullableDate renders an optional date, nil when absent.
func NullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatDate(*t)
}

// Time scans DATE, TIMESTAMP and TEXT columns from either driver.
// pgx hands over time.Time values; SQLite returns the stored text.
type Time struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	dateLayout,
}

// Scan implements sql.Scanner.
func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v, true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("database: cannot scan %T into Time", src)
	}
}

// Value implements driver.Valuer.
func (t Time) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return FormatTimestamp(t.Time), nil
}

func (t *Time) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed, true
			return nil
		}
	}
	return fmt.Errorf("database: unrecognized time %q", s)
}

// Ptr returns the scanned time or nil when the column was NULL.
func (t Time) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Date returns the scanned value as a UTC calendar date.
func (t Time) Date() time.Time {
	y, m, d := t.Time.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DatePtr is Date for nullable columns.
func (t Time) DatePtr() *time.Time {
	if !t.Valid {
		return nil
	}
	d := t.Date()
	return &d
}
