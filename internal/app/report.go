package app

import (
	"time"
)

// Report keys. Counts are what the manual trigger endpoints return.
const (
	countBoxes       = "boxes"
	countScheduled   = "scheduled"
	countDue         = "due"
	countSent        = "sent"
	countPartial     = "partial"
	countAlreadySent = "alreadySent"
	countSkipped     = "skipped"
	countFailed      = "failed"
	countDeferred    = "deferred"
	countErrors      = "errors"
)

// Detail describes what happened to one schedule or one notification candidate.
type Detail struct {
	BoxID      int64      `json:"boxId"`
	ScheduleID int64      `json:"scheduleId,omitempty"`
	Legacy     bool       `json:"legacy,omitempty"`
	Category   string     `json:"category,omitempty"`
	TriggerKey string     `json:"triggerKey,omitempty"`
	FireAt     *time.Time `json:"fireAt,omitempty"`
	State      string     `json:"state"`
	Outcome    string     `json:"outcome,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Recipients int        `json:"recipients,omitempty"`
}

// Report is the result of one evaluator pass.
type Report struct {
	RunAt   time.Time      `json:"runAt"`
	Counts  map[string]int `json:"counts"`
	Details []Detail       `json:"details"`
}

func newReport(at time.Time) *Report {
	return &Report{
		RunAt:   at,
		Counts:  map[string]int{},
		Details: []Detail{},
	}
}

func (r *Report) add(d Detail, counter string) {
	r.Details = append(r.Details, d)
	if counter != "" {
		r.Counts[counter]++
	}
}

// addOutcome records the dispatch result of a due item.
func (r *Report) addOutcome(o Outcome, dueState, sentState string) {
	d := o.Delivery.detail()
	d.Outcome = string(o.Status)
	d.Recipients = len(o.Accepted)
	if o.Err != nil {
		d.Reason = o.Err.Error()
	}
	switch o.Status {
	case OutcomeSent:
		d.State = sentState
		r.add(d, countSent)
	case OutcomePartial:
		d.State = sentState
		r.add(d, countPartial)
	case OutcomeDuplicate:
		d.State = sentState
		r.add(d, countAlreadySent)
	case OutcomeDeferred:
		d.State = dueState
		r.add(d, countDeferred)
	default:
		d.State = dueState
		r.add(d, countFailed)
	}
}

// TransitionResult is returned by the status transition engine.
type TransitionResult struct {
	RunAt  time.Time `json:"runAt"`
	Count  int       `json:"count"`
	BoxIDs []int64   `json:"boxIds"`
}
