package box

import (
	"strings"
	"time"
)

// SubmitterStatus is the submission state of a single submitter.
type SubmitterStatus string

const (
	SubmitterPending   SubmitterStatus = "PENDING"
	SubmitterSubmitted SubmitterStatus = "SUBMITTED"
	SubmitterRejected  SubmitterStatus = "REJECTED"
)

// Submitter is a person expected to submit documents to a box.
type Submitter struct {
	ID        int64
	BoxID     int64
	Name      string
	Email     string
	Phone     string
	Status    SubmitterStatus
	CreatedAt time.Time
}

// Remindable reports whether the submitter should still receive reminders.
func (s *Submitter) Remindable() bool {
	return s.Status == SubmitterPending && strings.TrimSpace(s.Email) != ""
}

// FilterRemindable returns the submitters that are still pending and reachable by email.
func FilterRemindable(submitters []*Submitter) []*Submitter {
	out := make([]*Submitter, 0, len(submitters))
	for _, s := range submitters {
		if s.Remindable() {
			out = append(out, s)
		}
	}
	return out
}
