// Package aggregation holds the pure grouping and summing helpers used to
// build timesheet views. Nothing here touches storage.
package aggregation

import (
	"sort"
	"time"

	"timesheet/internal/db/models"
)

// GroupContiguousDates groups dates into maximal runs of consecutive
// calendar days. Time of day is discarded and duplicates collapse. The
// result is ascending and never nil.
func GroupContiguousDates(dates []time.Time) [][]time.Time {
	groups := [][]time.Time{}
	if len(dates) == 0 {
		return groups
	}

	seen := make(map[time.Time]struct{}, len(dates))
	distinct := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := models.DateOf(d)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		distinct = append(distinct, day)
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i].Before(distinct[j]) })

	current := []time.Time{distinct[0]}
	for _, day := range distinct[1:] {
		last := current[len(current)-1]
		if !last.AddDate(0, 0, 1).Equal(day) {
			groups = append(groups, current)
			current = []time.Time{}
		}
		current = append(current, day)
	}
	return append(groups, current)
}

// GroupTimesheetDates groups the dates of the given entries.
func GroupTimesheetDates(entries []models.Timesheet) [][]time.Time {
	dates := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		dates = append(dates, e.TimesheetDate)
	}
	return GroupContiguousDates(dates)
}

// EachDay calls fn for every calendar day in [start, end].
func EachDay(start, end time.Time, fn func(day time.Time)) {
	last := models.DateOf(end)
	for d := models.DateOf(start); !d.After(last); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}
