package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maaaruch/tg-suggest-bot/internal/artifact"
	"github.com/maaaruch/tg-suggest-bot/internal/domain"
	"github.com/maaaruch/tg-suggest-bot/internal/session"
)

const approvedNotice = "Ваше фото одобрено!"

// Gateway is the reviewer-facing side of the messenger.
type Gateway interface {
	Relay
	SendForReview(ctx context.Context, reviewerID, submissionID int64, artifactRef, caption string) (int, error)
	DeleteDelivered(ctx context.Context, reviewerID int64, messageRef int) error
	NotifyOriginator(ctx context.Context, origin domain.Originator, text string) error
}

// Fetcher downloads the submitted image behind an artifact ref.
type Fetcher interface {
	Fetch(ctx context.Context, artifactRef string) ([]byte, error)
}

type Booker interface {
	BookNext(submissionID int64, now time.Time) domain.ScheduledPublication
}

// Journal is the audit trail; its failures never block moderation.
type Journal interface {
	RecordSubmission(sub domain.Submission) error
	RecordVote(submissionID, reviewerID int64, d domain.Decision, at time.Time) error
	ResolveSubmission(submissionID int64, state domain.State, at time.Time) error
}

type Config struct {
	Logger            *slog.Logger
	Reviewers         []int64
	RequiredApprovals int
	// LastID seeds the id allocator; ids continue from LastID+1.
	LastID int64
}

type Intake struct {
	ArtifactRef string
	Originator  domain.Originator
}

type Outcome int

const (
	OutcomeRecorded Outcome = iota
	OutcomeApproved
	OutcomeRejected
)

type VoteResult struct {
	Outcome     Outcome
	Approvals   int
	Required    int
	Publication *domain.ScheduledPublication
}

type Service struct {
	logger    *slog.Logger
	reviewers []int64
	allowed   map[int64]bool

	registry    *Registry
	votes       *VoteTracker
	discussions *DiscussionRouter

	gateway   Gateway
	fetcher   Fetcher
	artifacts artifact.Store
	booker    Booker
	journal   Journal

	now func() time.Time
}

// NewService wires the moderation pipeline. journal may be nil.
func NewService(cfg Config, gw Gateway, fetcher Fetcher, artifacts artifact.Store, booker Booker, journal Journal) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "moderation")

	reg := NewRegistry(NewIDAllocator(cfg.LastID), cfg.RequiredApprovals)

	allowed := make(map[int64]bool, len(cfg.Reviewers))
	for _, id := range cfg.Reviewers {
		allowed[id] = true
	}

	return &Service{
		logger:      logger,
		reviewers:   append([]int64(nil), cfg.Reviewers...),
		allowed:     allowed,
		registry:    reg,
		votes:       NewVoteTracker(reg),
		discussions: NewDiscussionRouter(logger, reg, session.NewManager(), gw),
		gateway:     gw,
		fetcher:     fetcher,
		artifacts:   artifacts,
		booker:      booker,
		journal:     journal,
		now:         time.Now,
	}
}

func (s *Service) IsReviewer(userID int64) bool {
	return s.allowed[userID]
}

func (s *Service) Registry() *Registry {
	return s.registry
}

func (s *Service) RequiredApprovals() int {
	return s.votes.Required()
}

// Submit registers a new photo and sends it to every reviewer. Failed
// deliveries are logged; those reviewers simply never see the photo.
func (s *Service) Submit(ctx context.Context, in Intake) (int64, error) {
	if in.ArtifactRef == "" {
		return 0, fmt.Errorf("submit: empty artifact ref")
	}

	sub := s.registry.Register(in.ArtifactRef, in.Originator)
	submissionsReceived.Inc()
	s.logger.Info("new submission", "submission", sub.ID, "from", in.Originator.UserID)
	if s.journal != nil {
		if err := s.journal.RecordSubmission(sub); err != nil {
			s.logger.Error("journal submission", "submission", sub.ID, "err", err)
		}
	}

	caption := fmt.Sprintf(
		"Фото #%d от @%s на модерации.\n\nДля обсуждения нажмите кнопку '💬 Обсудить'.",
		sub.ID, in.Originator.DisplayName(),
	)

	res := fanout(s.reviewers, func(reviewerID int64) error {
		ref, err := s.gateway.SendForReview(ctx, reviewerID, sub.ID, sub.ArtifactRef, caption)
		if err != nil {
			return err
		}
		rc := domain.ReviewerCopy{ReviewerID: reviewerID, MessageRef: ref}
		if err := s.registry.AttachCopy(sub.ID, rc); err != nil {
			// resolved while we were still broadcasting
			if err := s.gateway.DeleteDelivered(ctx, reviewerID, ref); err != nil {
				s.logger.Error("failed to delete late review copy", "submission", sub.ID, "reviewer", reviewerID, "err", err)
			}
		}
		return nil
	})
	for id, err := range res.Failed {
		deliveryFailures.WithLabelValues("broadcast").Inc()
		s.logger.Error("failed to send photo to reviewer", "submission", sub.ID, "reviewer", id, "err", err)
	}

	return sub.ID, nil
}

func (s *Service) Vote(ctx context.Context, reviewerID, submissionID int64, d domain.Decision) (VoteResult, error) {
	if !s.IsReviewer(reviewerID) {
		return VoteResult{}, domain.ErrUnauthorized
	}

	out, err := s.votes.CastVote(submissionID, reviewerID, d)
	if err != nil {
		return VoteResult{}, err
	}
	votesCast.WithLabelValues(string(d)).Inc()
	if s.journal != nil {
		if err := s.journal.RecordVote(submissionID, reviewerID, d, s.now()); err != nil {
			s.logger.Error("journal vote", "submission", submissionID, "reviewer", reviewerID, "err", err)
		}
	}

	switch {
	case out.Reject:
		return s.reject(ctx, submissionID)
	case out.Finalize:
		return s.approve(ctx, submissionID, out.Approvals)
	}

	return VoteResult{
		Outcome:   OutcomeRecorded,
		Approvals: out.Approvals,
		Required:  s.votes.Required(),
	}, nil
}

// approve runs only for the vote that holds the finalize claim.
func (s *Service) approve(ctx context.Context, id int64, approvals int) (VoteResult, error) {
	pending, err := s.registry.Get(id)
	if err != nil {
		s.registry.ReleaseFinalize(id)
		return VoteResult{}, err
	}

	// the artifact must be on disk before the submission becomes approved,
	// otherwise a publish could be armed for nothing
	data, err := s.fetcher.Fetch(ctx, pending.ArtifactRef)
	if err != nil {
		s.registry.ReleaseFinalize(id)
		s.logger.Error("failed to download approved photo", "submission", id, "err", err)
		return VoteResult{}, fmt.Errorf("download photo %d: %w", id, err)
	}
	if _, err := s.artifacts.Persist(ctx, id, data); err != nil {
		s.registry.ReleaseFinalize(id)
		s.logger.Error("failed to store approved photo", "submission", id, "err", err)
		return VoteResult{}, fmt.Errorf("store photo %d: %w", id, err)
	}

	sub, err := s.registry.FinalizeApproved(id)
	if err != nil {
		var se *domain.StateError
		if errors.As(err, &se) {
			if se.State == domain.StateRejected {
				if err := s.artifacts.Delete(ctx, id); err != nil {
					s.logger.Error("failed to drop photo of rejected submission", "submission", id, "err", err)
				}
				return VoteResult{Outcome: OutcomeRejected, Approvals: approvals, Required: s.votes.Required()}, nil
			}
			// another approval finalized it first
			return VoteResult{Outcome: OutcomeApproved, Approvals: approvals, Required: s.votes.Required()}, nil
		}
		s.registry.ReleaseFinalize(id)
		s.logger.Error("finalize approved submission", "submission", id, "err", err)
		return VoteResult{}, err
	}

	if err := s.gateway.NotifyOriginator(ctx, sub.Originator, approvedNotice); err != nil {
		deliveryFailures.WithLabelValues("notify").Inc()
		s.logger.Error("failed to notify sender", "submission", id, "user", sub.Originator.UserID, "err", err)
	}

	s.deleteCopies(ctx, id, sub.ReviewerCopies)
	s.registry.Remove(id)
	s.discussions.ClearAllFor(id)
	submissionsResolved.WithLabelValues(domain.StateApproved.String()).Inc()

	pub := s.booker.BookNext(id, s.now())
	s.logger.Info("submission approved", "submission", id, "approvals", len(sub.Approvals), "scheduled_at", pub.ScheduledAt, "slot", pub.SlotIndex, "day_offset", pub.DayOffset)
	s.resolve(id, domain.StateScheduled)

	return VoteResult{
		Outcome:     OutcomeApproved,
		Approvals:   len(sub.Approvals),
		Required:    s.votes.Required(),
		Publication: &pub,
	}, nil
}

func (s *Service) reject(ctx context.Context, id int64) (VoteResult, error) {
	sub, err := s.registry.Reject(id)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return VoteResult{}, domain.ErrNotFound
		}
		return VoteResult{}, err
	}

	s.deleteCopies(ctx, id, sub.ReviewerCopies)
	s.registry.Remove(id)
	s.discussions.ClearAllFor(id)
	submissionsResolved.WithLabelValues(domain.StateRejected.String()).Inc()
	s.logger.Info("submission rejected", "submission", id)
	s.resolve(id, domain.StateRejected)

	return VoteResult{Outcome: OutcomeRejected, Approvals: len(sub.Approvals), Required: s.votes.Required()}, nil
}

func (s *Service) deleteCopies(ctx context.Context, id int64, copies []domain.ReviewerCopy) FanoutResult {
	refs := make(map[int64][]int, len(copies))
	var reviewers []int64
	for _, c := range copies {
		if _, seen := refs[c.ReviewerID]; !seen {
			reviewers = append(reviewers, c.ReviewerID)
		}
		refs[c.ReviewerID] = append(refs[c.ReviewerID], c.MessageRef)
	}

	res := fanout(reviewers, func(reviewerID int64) error {
		var errs []error
		for _, ref := range refs[reviewerID] {
			if err := s.gateway.DeleteDelivered(ctx, reviewerID, ref); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	for reviewerID, err := range res.Failed {
		deliveryFailures.WithLabelValues("delete").Inc()
		s.logger.Error("failed to delete review copy", "submission", id, "reviewer", reviewerID, "err", err)
	}
	return res
}

func (s *Service) resolve(id int64, state domain.State) {
	if s.journal == nil {
		return
	}
	if err := s.journal.ResolveSubmission(id, state, s.now()); err != nil {
		s.logger.Error("journal resolve", "submission", id, "state", state, "err", err)
	}
}

func (s *Service) OpenDiscussion(reviewerID, submissionID int64) error {
	if !s.IsReviewer(reviewerID) {
		return domain.ErrUnauthorized
	}
	return s.discussions.Open(reviewerID, submissionID)
}

func (s *Service) PostDiscussion(ctx context.Context, reviewerID int64, displayName, text string) (FanoutResult, error) {
	if !s.IsReviewer(reviewerID) {
		return FanoutResult{}, domain.ErrUnauthorized
	}
	return s.discussions.Post(ctx, reviewerID, displayName, text)
}
