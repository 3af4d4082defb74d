package models

import "time"

type EventType string

const (
	EventSubmissionCreated  EventType = "submission.created"
	EventSubmissionApproved EventType = "submission.approved"
	EventSubmissionResolved EventType = "submission.resolved"
	EventTermsMatched       EventType = "translation.terms_matched"
)

// Event is published to the notification channel for operator visibility and
// trending analytics. Delivery is at-least-once.
type Event struct {
	Type         EventType        `json:"type"`
	SubmissionID string           `json:"submissionId,omitempty"`
	Term         string           `json:"term,omitempty"`
	Terms        []string         `json:"terms,omitempty"`
	Status       SubmissionStatus `json:"status,omitempty"`
	ApprovalType ApprovalType     `json:"approvalType,omitempty"`
	Direction    Direction        `json:"direction,omitempty"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// Key is the partitioning key for the event.
func (e Event) Key() string {
	if e.SubmissionID != "" {
		return e.SubmissionID
	}
	if e.Term != "" {
		return e.Term
	}
	return string(e.Type)
}
