package common

import (
	"fmt"
	"time"
)

// Standard date format constants
const (
	// ISO8601Date is the date format used for catalog search windows and
	// export file names
	ISO8601Date = "2006-01-02"

	// DisplayDate is the human-readable format used for footprint tooltips
	DisplayDate = "Jan 02, 2006"
)

// ParseISO8601 parses a date string in ISO 8601 format (YYYY-MM-DD).
// Full timestamps such as "2024-03-01T05:31:00" are accepted and truncated
// to their date.
func ParseISO8601(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date string is empty")
	}
	if len(dateStr) > len(ISO8601Date) && dateStr[len(ISO8601Date)] == 'T' {
		dateStr = dateStr[:len(ISO8601Date)]
	}
	return time.Parse(ISO8601Date, dateStr)
}

// FormatISO8601 formats a time.Time to ISO 8601 date string (YYYY-MM-DD)
func FormatISO8601(t time.Time) string {
	return t.Format(ISO8601Date)
}

// FormatDisplay formats a time.Time to display format (Jan 02, 2006)
func FormatDisplay(t time.Time) string {
	return t.Format(DisplayDate)
}

// DisplayFromISO converts a catalog acquisition date to display format,
// returning the input unchanged when it cannot be parsed
func DisplayFromISO(dateStr string) string {
	t, err := ParseISO8601(dateStr)
	if err != nil {
		return dateStr
	}
	return FormatDisplay(t)
}

// SearchWindow returns the [now - days, now] date range used for catalog
// searches. Non-positive days default to 30.
func SearchWindow(now time.Time, days int) (start, end string) {
	if days <= 0 {
		days = 30
	}
	return FormatISO8601(now.AddDate(0, 0, -days)), FormatISO8601(now)
}
