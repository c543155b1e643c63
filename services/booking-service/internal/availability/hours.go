package availability

import "time"

// SlotMinutes is the booking grid resolution. Services longer than one slot
// occupy ceil(duration/SlotMinutes) contiguous grid positions.
const SlotMinutes = 30

// DayHours is the working envelope for one weekday, in minutes since local
// midnight. Close is exclusive: the last generated slot starts one grid step
// before it.
type DayHours struct {
	OpenMinute  int
	CloseMinute int
	Closed      bool
}

// WeekHours maps time.Weekday (Sunday=0) to that day's envelope. Missing
// entries fall back to the default schedule rather than failing: an
// unconfigured tenant still gets a bookable calendar.
type WeekHours map[time.Weekday]DayHours

// DefaultWeekHours is the envelope used when a tenant has no configured row
// for a weekday: 09:00-18:00 Monday through Saturday, closed Sunday.
func DefaultWeekHours() WeekHours {
	hours := WeekHours{
		time.Sunday: {Closed: true},
	}
	for wd := time.Monday; wd <= time.Saturday; wd++ {
		hours[wd] = DayHours{OpenMinute: 9 * 60, CloseMinute: 18 * 60}
	}
	return hours
}

func (w WeekHours) forDay(day time.Weekday) DayHours {
	if w != nil {
		if h, ok := w[day]; ok {
			return h
		}
	}
	return DefaultWeekHours()[day]
}
