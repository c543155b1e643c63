package model

import (
	"fmt"
	"time"
)

// Status is the appointment lifecycle state. Transitions are monotonic
// (scheduled -> confirmed -> completed) except cancellation, which is allowed
// from any non-terminal state. New statuses must be added to every switch
// below; the default branches make an unhandled value an error, not a silent
// fallthrough.
type Status int

const (
	StatusScheduled Status = iota
	StatusConfirmed
	StatusCompleted
	StatusCancelled
	StatusNoShow
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusConfirmed:
		return "confirmed"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusNoShow:
		return "no_show"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "scheduled":
		return StatusScheduled, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled":
		return StatusCancelled, nil
	case "no_show":
		return StatusNoShow, nil
	default:
		return 0, fmt.Errorf("unknown appointment status %q", raw)
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	case StatusScheduled, StatusConfirmed:
		return false
	default:
		return true
	}
}

// CanTransitionTo enforces the lifecycle: forward-only through
// scheduled/confirmed/completed, no_show from any active state, cancellation
// from any non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StatusCancelled, StatusNoShow:
		return true
	case StatusConfirmed:
		return s == StatusScheduled
	case StatusCompleted:
		return s == StatusScheduled || s == StatusConfirmed
	case StatusScheduled:
		return false
	default:
		return false
	}
}

// Blocking reports whether an appointment in this status occupies its time
// range for availability purposes. Only cancellation frees the slot.
func (s Status) Blocking() bool {
	return s != StatusCancelled
}

type Appointment struct {
	ID            string
	BusinessID    string
	ServiceID     string
	StaffID       string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartTime     time.Time
	EndTime       time.Time
	Status        Status
	Notes         string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time

	// Joined display names, populated by list queries only.
	ServiceName string
	StaffName   string
}

// TimeBlock is an explicit staff unavailability window (lunch break, day off)
// independent of appointments.
type TimeBlock struct {
	ID         string
	BusinessID string
	StaffID    string
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
}
