// Package term derives the portal's query coordinates (term string, week
// number, weekday) from the wall clock and configured semester starts.
package term

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// maxWeek caps the computed week number; the portal never schedules past
// week 20.
const maxWeek = 20

// Current returns the portal's term string for the given time, e.g.
// "2024-2025-2". September through December is the fall term of the
// current year, January belongs to the previous year's fall term, and
// February through August is the spring term.
func Current(now time.Time) string {
	y, m := now.Year(), int(now.Month())
	switch {
	case m >= 9:
		return fmt.Sprintf("%d-%d-1", y, y+1)
	case m <= 1:
		return fmt.Sprintf("%d-%d-1", y-1, y)
	default:
		return fmt.Sprintf("%d-%d-2", y-1, y)
	}
}

// WeekAndDay computes the 1-based teaching week and weekday (Monday=1)
// for the given term. startDates maps term strings to the Monday of week
// 1 in "2006-01-02" form.
//
// A start date in the future clamps the week to 1 while keeping the real
// weekday, so a query before term start previews week 1. A missing or
// malformed start date degrades to week 1 with a warning rather than
// failing: a wrong week is recoverable by the caller, a dead query is not.
func WeekAndDay(now time.Time, termStr string, startDates map[string]string) (week, weekday int) {
	weekday = int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	startStr, ok := startDates[termStr]
	if !ok {
		logrus.WithField("term", termStr).Warn("no semester start date configured, assuming week 1")
		return 1, weekday
	}

	start, err := time.ParseInLocation("2006-01-02", startStr, now.Location())
	if err != nil {
		logrus.WithFields(logrus.Fields{"term": termStr, "start": startStr}).
			Warn("invalid semester start date, assuming week 1")
		return 1, weekday
	}

	days := int(now.Sub(start).Hours() / 24)
	if days < 0 {
		return 1, weekday
	}

	week = days/7 + 1
	if week > maxWeek {
		week = maxWeek
	}
	return week, weekday
}
