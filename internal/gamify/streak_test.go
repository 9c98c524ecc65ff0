package gamify

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeStreakEmpty(t *testing.T) {
	current, longest := ComputeStreak(nil, day("2026-03-10"))
	if current != 0 || longest != 0 {
		t.Errorf("got (%d, %d), want (0, 0)", current, longest)
	}
}

func TestComputeStreakSingleDayToday(t *testing.T) {
	today := day("2026-03-10")
	current, longest := ComputeStreak([]time.Time{today.Add(9 * time.Hour)}, today)
	if current != 1 {
		t.Errorf("current = %d, want 1", current)
	}
	if longest != 1 {
		t.Errorf("longest = %d, want 1", longest)
	}
}

func TestComputeStreakConsecutiveRun(t *testing.T) {
	today := day("2026-03-10")
	dates := []time.Time{
		day("2026-03-08").Add(10 * time.Hour),
		day("2026-03-09").Add(16 * time.Hour),
		day("2026-03-10").Add(8 * time.Hour),
	}
	current, longest := ComputeStreak(dates, today)
	if current != 3 {
		t.Errorf("current = %d, want 3", current)
	}
	if longest != 3 {
		t.Errorf("longest = %d, want 3", longest)
	}
}

func TestComputeStreakYesterdayKeepsStreakAlive(t *testing.T) {
	today := day("2026-03-10")
	dates := []time.Time{
		day("2026-03-08"),
		day("2026-03-09"),
	}
	current, _ := ComputeStreak(dates, today)
	if current != 2 {
		t.Errorf("current = %d, want 2 (yesterday's streak still alive today)", current)
	}
}

func TestComputeStreakBrokenByGap(t *testing.T) {
	today := day("2026-03-10")
	dates := []time.Time{
		day("2026-03-01"),
		day("2026-03-02"),
		day("2026-03-03"),
		day("2026-03-07"),
	}
	current, longest := ComputeStreak(dates, today)
	if current != 0 {
		t.Errorf("current = %d, want 0 (last approval two days ago)", current)
	}
	if longest != 3 {
		t.Errorf("longest = %d, want 3", longest)
	}
}

func TestComputeStreakMultipleApprovalsSameDay(t *testing.T) {
	today := day("2026-03-10")
	dates := []time.Time{
		day("2026-03-09").Add(8 * time.Hour),
		day("2026-03-09").Add(12 * time.Hour),
		day("2026-03-10").Add(9 * time.Hour),
	}
	current, longest := ComputeStreak(dates, today)
	if current != 2 {
		t.Errorf("current = %d, want 2 (same-day approvals collapse)", current)
	}
	if longest != 2 {
		t.Errorf("longest = %d, want 2", longest)
	}
}

func TestComputeStreakDeterministic(t *testing.T) {
	today := day("2026-03-10")
	dates := []time.Time{
		day("2026-03-05"), day("2026-03-06"), day("2026-03-09"), day("2026-03-10"),
	}
	// Shuffled input, repeated runs: identical output.
	shuffled := []time.Time{dates[2], dates[0], dates[3], dates[1]}

	c1, l1 := ComputeStreak(dates, today)
	for i := 0; i < 5; i++ {
		c2, l2 := ComputeStreak(shuffled, today)
		if c1 != c2 || l1 != l2 {
			t.Fatalf("run %d: got (%d, %d), want (%d, %d)", i, c2, l2, c1, l1)
		}
	}
	if c1 != 2 {
		t.Errorf("current = %d, want 2", c1)
	}
	if l1 != 2 {
		t.Errorf("longest = %d, want 2", l1)
	}
}

func TestComputeStreakUnorderedInput(t *testing.T) {
	today := day("2026-03-10")
	dates := []time.Time{
		day("2026-03-10"),
		day("2026-03-08"),
		day("2026-03-09"),
	}
	current, _ := ComputeStreak(dates, today)
	if current != 3 {
		t.Errorf("current = %d, want 3 regardless of input order", current)
	}
}
