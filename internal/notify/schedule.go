package notify

import "time"

// AnnouncementTime computes the default time to announce an event created at
// now and starting at startsAt. Requests made at or after 21:00 local roll
// over to 09:00 the next day; the result is always at least five minutes in
// the future and strictly before the event start. The second return value is
// false when no valid time exists (the event is too near-term or already in
// the past).
func AnnouncementTime(now, startsAt time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	var candidate time.Time
	local := now.In(loc)
	if local.Hour() >= lateHour {
		next := local.AddDate(0, 0, 1)
		candidate = time.Date(next.Year(), next.Month(), next.Day(),
			morningHour, 0, 0, 0, loc)
	} else {
		candidate = now.Truncate(time.Minute)
	}

	minTime := now.Add(minLead)
	if candidate.Before(minTime) {
		candidate = minTime
	}

	if !candidate.Before(startsAt) {
		if minTime.Before(startsAt) {
			return minTime, true
		}
		return time.Time{}, false
	}
	return candidate, true
}

// DefaultReminderTimes computes the default reminder times for an event
// starting at startsAt: one week, three days, and one day before, keeping
// only candidates more than five minutes in the future and strictly before
// the event. The result is ascending and duplicate-free (0–3 entries).
func DefaultReminderTimes(startsAt, now time.Time) []time.Time {
	minTime := now.Add(minLead)

	var out []time.Time
	for _, offset := range reminderOffsets {
		candidate := startsAt.Add(-offset)
		if candidate.After(minTime) && candidate.Before(startsAt) {
			out = append(out, candidate)
		}
	}
	return out
}
