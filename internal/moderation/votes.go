package moderation

import (
	"fmt"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

const DefaultRequiredApprovals = 2

type VoteOutcome struct {
	Approvals int
	// Finalize is set for the one approval that reached the threshold and
	// now owns finalization. Later approvals see it unset until the owner
	// releases its claim.
	Finalize bool
	// Reject is set for any reject vote.
	Reject bool
}

// VoteTracker does vote bookkeeping only; finalization side effects belong
// to the caller.
type VoteTracker struct {
	reg *Registry
}

func NewVoteTracker(reg *Registry) *VoteTracker {
	return &VoteTracker{reg: reg}
}

func (t *VoteTracker) Required() int {
	return t.reg.required
}

func (t *VoteTracker) CastVote(submissionID, reviewerID int64, d domain.Decision) (VoteOutcome, error) {
	if d != domain.DecisionApprove && d != domain.DecisionReject {
		return VoteOutcome{}, fmt.Errorf("unknown decision %q", d)
	}

	r := t.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, voted := r.votes[submissionID][reviewerID]; voted {
		return VoteOutcome{}, domain.ErrAlreadyVoted
	}
	sub, ok := r.subs[submissionID]
	if !ok || sub.State != domain.StatePending {
		return VoteOutcome{}, domain.ErrNotFound
	}

	r.votes[submissionID][reviewerID] = d

	var out VoteOutcome
	switch d {
	case domain.DecisionApprove:
		sub.Approvals[reviewerID] = struct{}{}
		out.Finalize = r.claimFinalizeLocked(submissionID)
	case domain.DecisionReject:
		out.Reject = true
	}
	out.Approvals = len(sub.Approvals)
	return out, nil
}
