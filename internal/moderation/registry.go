package moderation

import (
	"sync"
	"time"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

// Registry owns every submission under review together with its vote set.
// A single mutex covers both so that counting approvals and changing state
// happen as one step.
type Registry struct {
	mu       sync.Mutex
	ids      *IDAllocator
	required int
	now      func() time.Time

	subs  map[int64]*domain.Submission
	votes map[int64]map[int64]domain.Decision
	// submissions whose approval is being finalized by one caller
	finalizing map[int64]bool
	// terminal state of removed submissions, so late finalize/reject calls
	// can tell who won
	resolved map[int64]domain.State
}

func NewRegistry(ids *IDAllocator, required int) *Registry {
	if required < 1 {
		required = DefaultRequiredApprovals
	}
	return &Registry{
		ids:        ids,
		required:   required,
		now:        time.Now,
		subs:       make(map[int64]*domain.Submission),
		votes:      make(map[int64]map[int64]domain.Decision),
		finalizing: make(map[int64]bool),
		resolved:   make(map[int64]domain.State),
	}
}

// Register creates a pending submission with no copies and no approvals.
func (r *Registry) Register(artifactRef string, origin domain.Originator) domain.Submission {
	id := r.ids.Next()
	sub := &domain.Submission{
		ID:          id,
		ArtifactRef: artifactRef,
		Originator:  origin,
		Approvals:   make(map[int64]struct{}),
		State:       domain.StatePending,
		CreatedAt:   r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[id] = sub
	r.votes[id] = make(map[int64]domain.Decision)
	pendingSubmissions.Inc()
	return sub.Clone()
}

func (r *Registry) Get(id int64) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return domain.Submission{}, domain.ErrNotFound
	}
	return sub.Clone(), nil
}

// AttachCopy records a delivered reviewer copy. It fails with ErrNotFound once
// the submission has left pending; the caller then owns the late copy.
func (r *Registry) AttachCopy(id int64, c domain.ReviewerCopy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.State != domain.StatePending {
		return domain.ErrNotFound
	}
	sub.ReviewerCopies = append(sub.ReviewerCopies, c)
	return nil
}

func (r *Registry) Copies(id int64) ([]domain.ReviewerCopy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.ReviewerCopy(nil), sub.ReviewerCopies...), nil
}

// FinalizeApproved moves a pending submission that reached the threshold to
// approved. Exactly one caller succeeds per submission.
func (r *Registry) FinalizeApproved(id int64) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, err := r.pendingLocked(id, domain.StateApproved)
	if err != nil {
		return domain.Submission{}, err
	}
	if len(sub.Approvals) < r.required {
		return domain.Submission{}, &domain.StateError{SubmissionID: id, State: sub.State, Want: domain.StateApproved}
	}
	sub.State = domain.StateApproved
	return sub.Clone(), nil
}

func (r *Registry) Reject(id int64) (domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, err := r.pendingLocked(id, domain.StateRejected)
	if err != nil {
		return domain.Submission{}, err
	}
	sub.State = domain.StateRejected
	return sub.Clone(), nil
}

func (r *Registry) pendingLocked(id int64, want domain.State) (*domain.Submission, error) {
	sub, ok := r.subs[id]
	if !ok {
		if st, gone := r.resolved[id]; gone {
			return nil, &domain.StateError{SubmissionID: id, State: st, Want: want}
		}
		return nil, domain.ErrNotFound
	}
	if !sub.State.CanTransition(want) {
		return nil, &domain.StateError{SubmissionID: id, State: sub.State, Want: want}
	}
	return sub, nil
}

// claimFinalizeLocked hands the finalization of a pending submission that
// reached the threshold to exactly one caller at a time.
func (r *Registry) claimFinalizeLocked(id int64) bool {
	sub, ok := r.subs[id]
	if !ok || sub.State != domain.StatePending || len(sub.Approvals) < r.required {
		return false
	}
	if r.finalizing[id] {
		return false
	}
	r.finalizing[id] = true
	return true
}

// ReleaseFinalize gives up a claim taken by CastVote so the next approval
// can retry.
func (r *Registry) ReleaseFinalize(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.finalizing, id)
}

// Remove purges a resolved submission and its votes.
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return
	}
	r.resolved[id] = sub.State
	delete(r.subs, id)
	delete(r.votes, id)
	delete(r.finalizing, id)
	pendingSubmissions.Dec()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
