package schedule

import "time"

// Weekly and monthly deliveries go out at this hour; the Schedule field holds
// the weekday or day of month, not an hour.
const deliverHour = 9

// NextRun computes the next delivery time for a schedule. All arithmetic runs
// in loc (the recipient's timezone) and the result is converted back to the
// server's location via from. fromCron distinguishes the cron tick from a
// manual recompute: a weekly schedule recomputed manually on its own weekday
// fires today, while the cron path always moves a full week ahead.
// On-demand schedules never advance; ok is false for them.
func NextRun(sch *Schedule, from time.Time, loc *time.Location, fromCron bool) (next time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := from.In(loc)

	switch sch.Frequency {
	case FrequencyDaily:
		next = dailyNext(local, sch.Schedule)
	case FrequencyWeekly:
		next = weeklyNext(local, sch.Schedule, fromCron)
	case FrequencyMonthly:
		next = monthlyNext(local, sch.Schedule)
	default:
		return time.Time{}, false
	}
	return next.In(from.Location()), true
}

func dailyNext(from time.Time, hour int) time.Time {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	y, m, d := from.Date()
	next := time.Date(y, m, d, hour, 0, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func weeklyNext(from time.Time, weekday int, fromCron bool) time.Time {
	weekday = ((weekday % 7) + 7) % 7
	y, m, d := from.Date()
	days := (weekday - int(from.Weekday()) + 7) % 7
	if days == 0 {
		if fromCron {
			days = 7
		}
		// Manual recompute on the target weekday delivers today.
	}
	return time.Date(y, m, d+days, deliverHour, 0, 0, 0, from.Location())
}

func monthlyNext(from time.Time, day int) time.Time {
	y, m, _ := from.Date()
	next := monthDayClamped(y, m, day, from.Location())
	if next.After(from) {
		return next
	}
	// time.Date normalizes month 13 into January of the next year.
	return monthDayClamped(y, m+1, day, from.Location())
}

// monthDayClamped builds the delivery time for a day of month, pulling
// out-of-range days back to the month's actual last day.
func monthDayClamped(year int, month time.Month, day int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, deliverHour, 0, 0, 0, loc)
}
