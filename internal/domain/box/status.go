// internal/domain/box/status.go
package box

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a Box.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusOpenSomeone   Status = "OPEN_SOMEONE" // accepts partial submissions past the deadline
	StatusOpenResume    Status = "OPEN_RESUME"  // reopened manually by the owner
	StatusClosed        Status = "CLOSED"
	StatusClosedExpired Status = "CLOSED_EXPIRED"
)

// OpenStatuses are the statuses in which submissions and reminders are accepted.
var OpenStatuses = []Status{StatusOpen, StatusOpenSomeone, StatusOpenResume}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusOpenSomeone, StatusOpenResume, StatusClosed, StatusClosedExpired:
		return true
	}
	return false
}

// IsOpen reports whether the box still accepts submissions.
func (s Status) IsOpen() bool {
	return s == StatusOpen || s == StatusOpenSomeone || s == StatusOpenResume
}

// AutoExpires reports whether a box in this status is closed automatically
// once its deadline passes. OPEN_SOMEONE and OPEN_RESUME are owner overrides
// and stay open until the owner acts.
func (s Status) AutoExpires() bool {
	return s == StatusOpen
}

// ShouldExpire reports whether the status engine must close b at now.
func (b *Box) ShouldExpire(now time.Time) bool {
	return b.Status.AutoExpires() && b.Deadline.Before(now)
}

// ErrInvalidTransition is returned for a manual status change that is not allowed.
type ErrInvalidTransition struct {
	From, To Status
	Reason   string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot change box status from %s to %s: %s", e.From, e.To, e.Reason)
}

// ValidateManualTransition checks an owner-initiated status change.
// CLOSED_EXPIRED is reserved for the status engine, and a fresh OPEN cycle
// needs a deadline that has not passed yet.
func ValidateManualTransition(from, to Status, deadline, now time.Time) error {
	if !to.Valid() {
		return &ErrInvalidTransition{From: from, To: to, Reason: "unknown status"}
	}
	if from == to {
		return &ErrInvalidTransition{From: from, To: to, Reason: "status unchanged"}
	}
	if to == StatusClosedExpired {
		return &ErrInvalidTransition{From: from, To: to, Reason: "expiry is set by the scheduler only"}
	}
	if to == StatusOpen && !deadline.After(now) {
		return &ErrInvalidTransition{From: from, To: to, Reason: "deadline has already passed"}
	}
	return nil
}
