package core

import (
	"time"
)

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// WindowFunc derives the window that contains a timestamp.
type WindowFunc func(t time.Time) Window

// DayWindow is the UTC calendar day containing t.
func DayWindow(t time.Time) Window {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekWindow is the Monday-start UTC week containing t.
func WeekWindow(t time.Time) Window {
	day := DayWindow(t).Start
	// time.Weekday starts on Sunday; shift so Monday is 0.
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}
