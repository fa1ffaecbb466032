package domain

import (
	"strconv"
	"time"
)

type State string

const (
	StatePending   State = "pending"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateScheduled State = "scheduled"
	StatePublished State = "published"
)

func (s State) String() string { return string(s) }

// rank orders states along the lifecycle; rejected is terminal next to approved.
func (s State) rank() int {
	switch s {
	case StatePending:
		return 0
	case StateApproved, StateRejected:
		return 1
	case StateScheduled:
		return 2
	case StatePublished:
		return 3
	}
	return -1
}

// CanTransition reports whether a submission may move from s to next.
// Transitions are monotonic: nothing re-enters pending, rejected is final.
func (s State) CanTransition(next State) bool {
	if s == StateRejected || next == StatePending {
		return false
	}
	if s == StatePending {
		return next == StateApproved || next == StateRejected
	}
	if next == StateRejected {
		return false
	}
	return next.rank() == s.rank()+1
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type Originator struct {
	UserID    int64
	Username  string
	ChatID    int64
	MessageID int
}

// DisplayName is what reviewers see in captions.
func (o Originator) DisplayName() string {
	if o.Username != "" {
		return o.Username
	}
	return strconv.FormatInt(o.UserID, 10)
}

type ReviewerCopy struct {
	ReviewerID int64
	MessageRef int
}

type Submission struct {
	ID             int64
	ArtifactRef    string
	Originator     Originator
	ReviewerCopies []ReviewerCopy
	Approvals      map[int64]struct{}
	State          State
	CreatedAt      time.Time
}

// Clone returns a copy that shares nothing mutable with s.
func (s *Submission) Clone() Submission {
	out := *s
	out.ReviewerCopies = append([]ReviewerCopy(nil), s.ReviewerCopies...)
	out.Approvals = make(map[int64]struct{}, len(s.Approvals))
	for id := range s.Approvals {
		out.Approvals[id] = struct{}{}
	}
	return out
}

type ScheduledPublication struct {
	SubmissionID int64
	ScheduledAt  time.Time
	DayOffset    int
	SlotIndex    int
}

type PublicationStatus string

const (
	PublicationScheduled PublicationStatus = "scheduled"
	PublicationPublished PublicationStatus = "published"
	PublicationMissing   PublicationStatus = "missing"
	PublicationFailed    PublicationStatus = "failed"
)
