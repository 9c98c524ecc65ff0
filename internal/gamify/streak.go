package gamify

import (
	"slices"
	"time"
)

// ComputeStreak derives streak counters from approval timestamps. It is a
// pure function of its inputs: given the same dates and the same today it
// always returns the same pair, so recomputing is always safe.
//
// A streak is a run of consecutive calendar days each containing at least
// one approval. The current streak is the run ending today or yesterday
// (yesterday keeps today's not-yet-completed quest from breaking it); the
// longest streak is the best run anywhere in history.
func ComputeStreak(dates []time.Time, today time.Time) (current, longest int) {
	if len(dates) == 0 {
		return 0, 0
	}

	loc := today.Location()
	seen := make(map[int64]struct{}, len(dates))
	var days []int64
	for _, d := range dates {
		key := dayNumber(d.In(loc))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, key)
	}
	slices.Sort(days)

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i] == days[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	todayNum := dayNumber(startOfDay(today))
	last := days[len(days)-1]
	if last != todayNum && last != todayNum-1 {
		return 0, longest
	}

	current = 1
	for i := len(days) - 2; i >= 0; i-- {
		if days[i] == days[i+1]-1 {
			current++
		} else {
			break
		}
	}
	return current, longest
}

// dayNumber collapses a time to a comparable calendar day ordinal.
func dayNumber(t time.Time) int64 {
	return startOfDay(t).Unix() / 86400
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
