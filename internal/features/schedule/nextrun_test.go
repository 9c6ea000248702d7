package schedule

import (
	"testing"
	"time"
)

func TestNextRunDaily(t *testing.T) {
	sch := &Schedule{Frequency: FrequencyDaily, Schedule: 8}

	// Before the configured hour: today.
	from := time.Date(2026, time.April, 10, 6, 0, 0, 0, time.UTC)
	next, ok := NextRun(sch, from, time.UTC, true)
	if !ok {
		t.Fatal("daily schedule must advance")
	}
	want := time.Date(2026, time.April, 10, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}

	// After the configured hour: tomorrow.
	from = time.Date(2026, time.April, 10, 9, 30, 0, 0, time.UTC)
	next, _ = NextRun(sch, from, time.UTC, true)
	want = time.Date(2026, time.April, 11, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunWeeklySameDay(t *testing.T) {
	// 2026-04-10 is a Friday (weekday 5).
	from := time.Date(2026, time.April, 10, 7, 0, 0, 0, time.UTC)
	sch := &Schedule{Frequency: FrequencyWeekly, Schedule: 5}

	// Manual recompute on the target weekday delivers today at 09:00.
	next, _ := NextRun(sch, from, time.UTC, false)
	want := time.Date(2026, time.April, 10, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("manual next = %v, want %v", next, want)
	}

	// The cron path on the same weekday moves a full week ahead.
	next, _ = NextRun(sch, from, time.UTC, true)
	want = time.Date(2026, time.April, 17, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("cron next = %v, want %v", next, want)
	}
}

func TestNextRunWeeklyOffset(t *testing.T) {
	// From Friday to Monday (weekday 1) is three days.
	from := time.Date(2026, time.April, 10, 7, 0, 0, 0, time.UTC)
	sch := &Schedule{Frequency: FrequencyWeekly, Schedule: 1}

	next, _ := NextRun(sch, from, time.UTC, true)
	want := time.Date(2026, time.April, 13, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunMonthlyClamping(t *testing.T) {
	// Day 31 computed inside April lands on April 30.
	from := time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC)
	sch := &Schedule{Frequency: FrequencyMonthly, Schedule: 31}

	next, _ := NextRun(sch, from, time.UTC, true)
	want := time.Date(2026, time.April, 30, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunMonthlyYearRollover(t *testing.T) {
	from := time.Date(2026, time.December, 20, 12, 0, 0, 0, time.UTC)
	sch := &Schedule{Frequency: FrequencyMonthly, Schedule: 15}

	next, _ := NextRun(sch, from, time.UTC, true)
	want := time.Date(2027, time.January, 15, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	sch := &Schedule{Frequency: FrequencyDaily, Schedule: 8}

	// 05:00 UTC is already 10:00 in the recipient's zone, so the delivery
	// moves to tomorrow 08:00 local, which is 03:00 UTC.
	from := time.Date(2026, time.April, 10, 5, 0, 0, 0, time.UTC)
	next, _ := NextRun(sch, from, loc, true)
	want := time.Date(2026, time.April, 11, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
	if next.Location() != time.UTC {
		t.Fatalf("result location = %v, want server location", next.Location())
	}
}

func TestNextRunOnDemand(t *testing.T) {
	sch := &Schedule{Frequency: FrequencyOnDemand, Schedule: 3}

	if _, ok := NextRun(sch, time.Now(), time.UTC, true); ok {
		t.Fatal("on-demand schedules never advance")
	}
}
