package bank

import (
	"fmt"
)

// Status is the review state of a loan, cheque book or balance request.
type Status string

// Review states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusApproved, StatusRejected, StatusCancelled},
	StatusProcessing: {StatusApproved, StatusRejected, StatusCancelled},
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransition reports whether a review may move from one status to
// another. A record without a status counts as pending.
func CanTransition(from, to Status) bool {
	if from == "" {
		from = StatusPending
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(id string, from, to Status) error {
	if id == "" {
		return fmt.Errorf("%w: record has no id", ErrInvalidTransition)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, displayStatus(from), to)
	}
	return nil
}

func displayStatus(s Status) Status {
	if s == "" {
		return StatusPending
	}
	return s
}
