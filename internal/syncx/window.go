package syncx

import (
	"fmt"
	"time"
)

// ERPDateTime is the layout the ERP uses for datetime fields and domain values
const ERPDateTime = "2006-01-02 15:04:05"

// DateLayout is the layout accepted for window bounds in configuration
const DateLayout = "2006-01-02"

// Window bounds a sync to records whose date field falls in [Since, Until).
// A zero bound is open.
type Window struct {
	Since time.Time
	Until time.Time
}

// IsZero reports whether the window is unbounded on both sides
func (w Window) IsZero() bool {
	return w.Since.IsZero() && w.Until.IsZero()
}

// Validate rejects inverted windows
func (w Window) Validate() error {
	if !w.Since.IsZero() && !w.Until.IsZero() && !w.Until.After(w.Since) {
		return fmt.Errorf("window until (%s) must be after since (%s)",
			w.Until.Format(DateLayout), w.Since.Format(DateLayout))
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
// Returns zero time and false for empty or malformed input.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DateWindow builds a window from inclusive calendar days.
// until is inclusive, so the upper bound is the following midnight.
func DateWindow(since, until string) (Window, error) {
	var w Window
	if since != "" {
		t, ok := ParseDate(since)
		if !ok {
			return Window{}, fmt.Errorf("invalid since date %q (want %s)", since, DateLayout)
		}
		w.Since = t
	}
	if until != "" {
		t, ok := ParseDate(until)
		if !ok {
			return Window{}, fmt.Errorf("invalid until date %q (want %s)", until, DateLayout)
		}
		w.Until = t.AddDate(0, 0, 1)
	}
	return w, w.Validate()
}

// LookbackWindow returns an open-ended window starting days before now's calendar day
func LookbackWindow(now time.Time, days int) Window {
	if days <= 0 {
		return Window{}
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Since: day.AddDate(0, 0, -days)}
}

// FormatERP formats t as an ERP datetime literal (UTC)
func FormatERP(t time.Time) string {
	return t.UTC().Format(ERPDateTime)
}

// RFC3339 converts Unix milliseconds to RFC3339 timestamp string
func RFC3339(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

// NowMs returns current Unix milliseconds timestamp (UTC)
func NowMs() int64 {
	return time.Now().UTC().UnixMilli()
}
