// Package availability computes and classifies bookable time slots for one
// calendar day. It is a pure function of its inputs: recomputing on unchanged
// data yields identical results, and nothing here touches storage or clocks.
//
// All arithmetic happens in the tenant's local wall clock. Slots are defined
// by the business-hours table, which is date-only data; converting through
// UTC would shift slots across day boundaries for tenants away from UTC, so
// no timezone conversion is performed anywhere in this package.
package availability

import (
	"fmt"
	"time"
)

// SlotState classifies one grid position. States are listed in evaluation
// precedence order: the first matching state wins.
type SlotState int

const (
	StateBooked SlotState = iota
	StateBlocked
	StatePast
	StateMultiSlotConflict
	StatePartiallyOccupied
	StateAvailable
)

func (s SlotState) String() string {
	switch s {
	case StateBooked:
		return "booked"
	case StateBlocked:
		return "blocked"
	case StatePast:
		return "past"
	case StateMultiSlotConflict:
		return "multi_slot_conflict"
	case StatePartiallyOccupied:
		return "partially_occupied"
	case StateAvailable:
		return "available"
	default:
		return fmt.Sprintf("slot_state(%d)", int(s))
	}
}

// Booking is the slice of an appointment the engine needs. Cancelled
// appointments must be filtered out by the caller or flagged here; they never
// occupy slots.
type Booking struct {
	StaffID   string
	Start     time.Time
	End       time.Time
	Cancelled bool
}

// Block is an explicit unavailability window, half-open [Start, End).
type Block struct {
	StaffID string
	Start   time.Time
	End     time.Time
}

// Slot is a candidate start instant on the grid with its classification.
type Slot struct {
	Start time.Time
	State SlotState
}

// Selectable reports whether the slot can start a new booking.
func (s Slot) Selectable() bool {
	return s.State == StateAvailable
}

// Label renders the slot as local wall-clock HH:mm with no zone suffix,
// which is the form selections are reported in.
func (s Slot) Label() string {
	return s.Start.Format("15:04")
}

// Input is the snapshot a day's classification is computed from.
type Input struct {
	// Date is any instant on the target day, in the tenant's location.
	Date time.Time
	// Hours is the tenant's configured week; nil or sparse maps fall back to
	// the default schedule per weekday.
	Hours WeekHours
	// Bookings are that day's appointments (any staff; filtering applies the
	// StaffID below).
	Bookings []Booking
	Blocks   []Block
	// StaffID, when non-empty, restricts occupancy to one professional.
	StaffID string
	// ServiceMinutes is the selected service's duration; zero or negative
	// means one grid slot.
	ServiceMinutes int
	// Now is the current instant, used only for past-slot detection on the
	// current day.
	Now time.Time
}

func (in Input) slotFootprint() int {
	if in.ServiceMinutes <= 0 {
		return 1
	}
	return (in.ServiceMinutes + SlotMinutes - 1) / SlotMinutes
}

// matchesStaff reports whether an item scoped to staffID is visible under the
// input's staff filter. An item with no staff id of its own is business-wide:
// it applies to every professional and survives any filter.
func (in Input) matchesStaff(staffID string) bool {
	return in.StaffID == "" || staffID == "" || in.StaffID == staffID
}

// DaySlots generates the day's grid and classifies every slot. A closed day
// returns an empty list.
func DaySlots(in Input) []Slot {
	hours := in.Hours.forDay(in.Date.Weekday())
	if hours.Closed || hours.CloseMinute <= hours.OpenMinute {
		return nil
	}

	y, m, d := in.Date.Date()
	loc := in.Date.Location()

	var slots []Slot
	for minute := hours.OpenMinute; minute < hours.CloseMinute; minute += SlotMinutes {
		start := time.Date(y, m, d, minute/60, minute%60, 0, 0, loc)
		slots = append(slots, Slot{Start: start, State: in.classify(start)})
	}
	return slots
}

// classify evaluates the disabling conditions in precedence order.
func (in Input) classify(start time.Time) SlotState {
	if in.bookedAt(start) {
		return StateBooked
	}
	if in.blockedAt(start) {
		return StateBlocked
	}
	if sameDay(start, in.Now) && start.Before(in.Now) {
		return StatePast
	}
	if n := in.slotFootprint(); n > 1 {
		for k := 1; k < n; k++ {
			follow := start.Add(time.Duration(k*SlotMinutes) * time.Minute)
			if in.bookedAt(follow) {
				return StateMultiSlotConflict
			}
		}
	}
	if in.insideBooking(start) {
		return StatePartiallyOccupied
	}
	return StateAvailable
}

// bookedAt reports whether a live booking for the filtered staff starts at
// this grid instant. Equality is calendar day + hour + minute; stored
// timestamps may carry sub-minute jitter.
func (in Input) bookedAt(start time.Time) bool {
	for _, b := range in.Bookings {
		if b.Cancelled || !in.matchesStaff(b.StaffID) {
			continue
		}
		if sameMinute(b.Start, start) {
			return true
		}
	}
	return false
}

// blockedAt reports whether the instant falls inside a half-open block
// window. Blocks carrying no staff id close the slot for everyone.
func (in Input) blockedAt(start time.Time) bool {
	for _, blk := range in.Blocks {
		if !in.matchesStaff(blk.StaffID) {
			continue
		}
		if !start.Before(blk.Start) && start.Before(blk.End) {
			return true
		}
	}
	return false
}

// insideBooking reports whether the instant falls strictly within a booking's
// span without being its start slot.
func (in Input) insideBooking(start time.Time) bool {
	for _, b := range in.Bookings {
		if b.Cancelled || !in.matchesStaff(b.StaffID) {
			continue
		}
		if sameMinute(b.Start, start) {
			continue
		}
		if start.After(b.Start) && start.Before(b.End) {
			return true
		}
	}
	return false
}

// Select returns the slot with the given HH:mm label when it is selectable.
// Clicking anything else is a no-op for the caller.
func Select(slots []Slot, label string) (Slot, bool) {
	for _, s := range slots {
		if s.Label() == label {
			return s, s.Selectable()
		}
	}
	return Slot{}, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMinute(a, b time.Time) bool {
	return sameDay(a, b) && a.Hour() == b.Hour() && a.Minute() == b.Minute()
}
