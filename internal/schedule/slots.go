package schedule

import "time"

// Slot is a daily publishing window, [StartHour:00, EndHour:00] local time.
// Each slot takes one publication per day.
type Slot struct {
	Index     int
	StartHour int
	EndHour   int
}

var Slots = [...]Slot{
	{Index: 0, StartHour: 4, EndHour: 12},
	{Index: 1, StartHour: 13, EndHour: 17},
	{Index: 2, StartHour: 18, EndHour: 23},
}

const SlotsPerDay = len(Slots)

// Bounds returns the absolute window of slot on the day dayOffset days after
// the calendar date of now in loc.
func (s Slot) Bounds(now time.Time, dayOffset int, loc *time.Location) (time.Time, time.Time) {
	y, m, d := now.In(loc).Date()
	start := time.Date(y, m, d+dayOffset, s.StartHour, 0, 0, 0, loc)
	end := time.Date(y, m, d+dayOffset, s.EndHour, 0, 0, 0, loc)
	return start, end
}

// position maps the n-th booking (0-based) to its day offset and slot.
func position(n int64) (dayOffset, slotIndex int) {
	return int(n / int64(SlotsPerDay)), int(n % int64(SlotsPerDay))
}
