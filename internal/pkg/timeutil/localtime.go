package timeutil

import (
	"fmt"
	"time"
)

// Layouts the backend uses for zoneless local date-times
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseLocalDateTime parses a backend timestamp that carries no zone.
// Values with a zone offset are accepted as well.
func ParseLocalDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatDate renders a backend timestamp as a date, or returns it unchanged if it cannot be parsed
func FormatDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := ParseLocalDateTime(s, time.Local)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}
