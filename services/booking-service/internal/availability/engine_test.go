package availability

import (
	"testing"
	"time"
)

func date(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, time.Local) // a Tuesday
}

func hours(open, close int) WeekHours {
	return WeekHours{
		date(0, 0).Weekday(): {OpenMinute: open, CloseMinute: close},
	}
}

func TestDaySlots_Grid(t *testing.T) {
	in := Input{
		Date:  date(0, 0),
		Hours: hours(9*60, 12*60),
	}
	slots := DaySlots(in)
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, label := range want {
		if slots[i].Label() != label {
			t.Fatalf("slot %d: expected %s, got %s", i, label, slots[i].Label())
		}
		if slots[i].State != StateAvailable {
			t.Fatalf("slot %s: expected available, got %s", label, slots[i].State)
		}
	}
}

func TestDaySlots_ClosedDay(t *testing.T) {
	in := Input{
		Date: date(0, 0),
		Hours: WeekHours{
			date(0, 0).Weekday(): {OpenMinute: 9 * 60, CloseMinute: 18 * 60, Closed: true},
		},
	}
	if slots := DaySlots(in); len(slots) != 0 {
		t.Fatalf("closed day should produce no slots, got %d", len(slots))
	}
}

func TestDaySlots_DefaultHoursFallback(t *testing.T) {
	// No configured hours at all: Tuesday falls back to 09:00-18:00.
	slots := DaySlots(Input{Date: date(0, 0)})
	if len(slots) != 18 {
		t.Fatalf("expected 18 default slots, got %d", len(slots))
	}
	if slots[0].Label() != "09:00" || slots[len(slots)-1].Label() != "17:30" {
		t.Fatalf("unexpected envelope: %s .. %s", slots[0].Label(), slots[len(slots)-1].Label())
	}

	// Sunday is closed by default.
	sunday := time.Date(2026, 3, 8, 0, 0, 0, 0, time.Local)
	if slots := DaySlots(Input{Date: sunday}); len(slots) != 0 {
		t.Fatalf("default Sunday should be closed, got %d slots", len(slots))
	}
}

func TestClassify_BookedPerStaff(t *testing.T) {
	bookings := []Booking{
		{StaffID: "staff-a", Start: date(10, 0), End: date(10, 30)},
	}

	in := Input{Date: date(0, 0), Hours: hours(9*60, 12*60), Bookings: bookings, StaffID: "staff-a"}
	slots := DaySlots(in)
	if s, _ := Select(slots, "10:00"); s.State != StateBooked {
		t.Fatalf("10:00 for staff-a: expected booked, got %s", s.State)
	}

	in.StaffID = "staff-b"
	slots = DaySlots(in)
	s, ok := Select(slots, "10:00")
	if s.State != StateAvailable || !ok {
		t.Fatalf("10:00 for staff-b: expected available/selectable, got %s/%v", s.State, ok)
	}
}

func TestClassify_BookedToleratesJitter(t *testing.T) {
	jittered := date(10, 0).Add(12 * time.Second)
	in := Input{
		Date:     date(0, 0),
		Hours:    hours(9*60, 12*60),
		Bookings: []Booking{{StaffID: "s", Start: jittered, End: jittered.Add(30 * time.Minute)}},
	}
	if s, _ := Select(DaySlots(in), "10:00"); s.State != StateBooked {
		t.Fatalf("expected booked despite sub-minute jitter, got %s", s.State)
	}
}

func TestClassify_CancelledDoesNotBlock(t *testing.T) {
	in := Input{
		Date:     date(0, 0),
		Hours:    hours(9*60, 12*60),
		Bookings: []Booking{{StaffID: "s", Start: date(10, 0), End: date(10, 30), Cancelled: true}},
	}
	if s, _ := Select(DaySlots(in), "10:00"); s.State != StateAvailable {
		t.Fatalf("cancelled booking should not block, got %s", s.State)
	}
}

func TestClassify_Blocked(t *testing.T) {
	in := Input{
		Date:   date(0, 0),
		Hours:  hours(9*60, 12*60),
		Blocks: []Block{{StaffID: "s", Start: date(10, 0), End: date(11, 0)}},
	}
	slots := DaySlots(in)
	for _, label := range []string{"10:00", "10:30"} {
		if s, _ := Select(slots, label); s.State != StateBlocked {
			t.Fatalf("%s: expected blocked, got %s", label, s.State)
		}
	}
	// End is exclusive.
	if s, _ := Select(slots, "11:00"); s.State != StateAvailable {
		t.Fatalf("11:00: expected available at block end, got %s", s.State)
	}
}

func TestClassify_BusinessWideBlockAppliesToEveryStaff(t *testing.T) {
	// A block with no staff id (store closed, holiday) must survive a staff
	// filter instead of being treated as someone else's block.
	in := Input{
		Date:    date(0, 0),
		Hours:   hours(9*60, 12*60),
		Blocks:  []Block{{Start: date(10, 0), End: date(11, 0)}},
		StaffID: "staff-a",
	}
	slots := DaySlots(in)
	for _, label := range []string{"10:00", "10:30"} {
		if s, _ := Select(slots, label); s.State != StateBlocked {
			t.Fatalf("%s under staff filter: expected blocked, got %s", label, s.State)
		}
	}
}

func TestClassify_UnassignedBookingAppliesToEveryStaff(t *testing.T) {
	// A booking without an assigned professional occupies the business as a
	// whole, matching the conflict rule the store enforces on create.
	in := Input{
		Date:     date(0, 0),
		Hours:    hours(9*60, 12*60),
		Bookings: []Booking{{Start: date(10, 0), End: date(10, 30)}},
		StaffID:  "staff-b",
	}
	if s, _ := Select(DaySlots(in), "10:00"); s.State != StateBooked {
		t.Fatalf("10:00 under staff filter: expected booked, got %s", s.State)
	}
}

func TestClassify_PastOnlyToday(t *testing.T) {
	in := Input{
		Date:  date(0, 0),
		Hours: hours(9*60, 12*60),
		Now:   date(10, 15),
	}
	slots := DaySlots(in)
	if s, _ := Select(slots, "10:00"); s.State != StatePast {
		t.Fatalf("10:00 with now=10:15: expected past, got %s", s.State)
	}
	if s, _ := Select(slots, "10:30"); s.State != StateAvailable {
		t.Fatalf("10:30 with now=10:15: expected available, got %s", s.State)
	}

	// A different day is never past, regardless of the clock.
	in.Now = date(10, 15).AddDate(0, 0, 1)
	if s, _ := Select(DaySlots(in), "09:00"); s.State != StateAvailable {
		t.Fatalf("other-day slot should not be past, got %s", s.State)
	}
}

func TestClassify_MultiSlotConflict(t *testing.T) {
	// 60-minute service occupies two grid slots. A booking at 10:30 makes
	// 10:00 unusable as a starting slot.
	in := Input{
		Date:           date(0, 0),
		Hours:          hours(9*60, 12*60),
		Bookings:       []Booking{{StaffID: "s", Start: date(10, 30), End: date(11, 0)}},
		ServiceMinutes: 60,
	}
	slots := DaySlots(in)
	if s, _ := Select(slots, "10:00"); s.State != StateMultiSlotConflict {
		t.Fatalf("10:00: expected multi-slot conflict, got %s", s.State)
	}
	if s, _ := Select(slots, "10:30"); s.State != StateBooked {
		t.Fatalf("10:30: expected booked, got %s", s.State)
	}
	if s, _ := Select(slots, "09:30"); s.State != StateAvailable {
		t.Fatalf("09:30: one-slot lead-in should stay available, got %s", s.State)
	}
}

func TestClassify_FootprintRounding(t *testing.T) {
	// 45 minutes rounds up to two slots; zero duration means one.
	if got := (Input{ServiceMinutes: 45}).slotFootprint(); got != 2 {
		t.Fatalf("45 min: expected footprint 2, got %d", got)
	}
	if got := (Input{}).slotFootprint(); got != 1 {
		t.Fatalf("zero duration: expected footprint 1, got %d", got)
	}
	if got := (Input{ServiceMinutes: 30}).slotFootprint(); got != 1 {
		t.Fatalf("30 min: expected footprint 1, got %d", got)
	}
}

func TestClassify_PartialOccupancy(t *testing.T) {
	// An appointment spanning 10:00-11:00 leaves 10:30 inside it: not the
	// start slot, but not bookable either.
	in := Input{
		Date:     date(0, 0),
		Hours:    hours(9*60, 12*60),
		Bookings: []Booking{{StaffID: "s", Start: date(10, 0), End: date(11, 0)}},
	}
	slots := DaySlots(in)
	if s, _ := Select(slots, "10:30"); s.State != StatePartiallyOccupied {
		t.Fatalf("10:30: expected partially occupied, got %s", s.State)
	}
	if s, _ := Select(slots, "11:00"); s.State != StateAvailable {
		t.Fatalf("11:00: end is exclusive, expected available, got %s", s.State)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	in := Input{
		Date:  date(0, 0),
		Hours: hours(9*60, 12*60),
		Bookings: []Booking{
			{StaffID: "a", Start: date(9, 30), End: date(10, 30)},
			{StaffID: "b", Start: date(11, 0), End: date(11, 30)},
		},
		Blocks:         []Block{{StaffID: "a", Start: date(11, 30), End: date(12, 0)}},
		ServiceMinutes: 60,
		Now:            date(9, 10),
	}
	first := DaySlots(in)
	second := DaySlots(in)
	if len(first) != len(second) {
		t.Fatalf("length changed between computations: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot %d differs between computations: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSelect(t *testing.T) {
	in := Input{
		Date:     date(0, 0),
		Hours:    hours(9*60, 12*60),
		Bookings: []Booking{{StaffID: "s", Start: date(9, 0), End: date(9, 30)}},
	}
	slots := DaySlots(in)

	if _, ok := Select(slots, "09:00"); ok {
		t.Fatal("booked slot must not be selectable")
	}
	s, ok := Select(slots, "09:30")
	if !ok {
		t.Fatal("expected 09:30 to be selectable")
	}
	if s.Label() != "09:30" {
		t.Fatalf("selection reported as %q, want 09:30", s.Label())
	}
	if _, ok := Select(slots, "13:00"); ok {
		t.Fatal("off-grid label must not select")
	}
}
