package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
	"github.com/maaaruch/tg-suggest-bot/internal/session"
)

type Relay interface {
	SendText(ctx context.Context, reviewerID int64, text string) error
}

// DiscussionRouter relays reviewer notes about a submission to everyone else
// who received it.
type DiscussionRouter struct {
	logger   *slog.Logger
	reg      *Registry
	sessions *session.Manager
	relay    Relay
}

func NewDiscussionRouter(logger *slog.Logger, reg *Registry, sessions *session.Manager, relay Relay) *DiscussionRouter {
	return &DiscussionRouter{
		logger:   logger,
		reg:      reg,
		sessions: sessions,
		relay:    relay,
	}
}

func (d *DiscussionRouter) Open(reviewerID, submissionID int64) error {
	if _, err := d.reg.Get(submissionID); err != nil {
		return err
	}
	d.sessions.Open(reviewerID, submissionID)
	return nil
}

func (d *DiscussionRouter) Post(ctx context.Context, reviewerID int64, displayName, text string) (FanoutResult, error) {
	submissionID, ok := d.sessions.Active(reviewerID)
	if !ok {
		return FanoutResult{}, domain.ErrNoActiveDiscussion
	}

	copies, err := d.reg.Copies(submissionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			d.sessions.Clear(reviewerID, submissionID)
		}
		return FanoutResult{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return FanoutResult{}, domain.ErrEmptyMessage
	}

	var recipients []int64
	for _, c := range copies {
		if c.ReviewerID != reviewerID {
			recipients = append(recipients, c.ReviewerID)
		}
	}

	msg := fmt.Sprintf("%s: %s", displayName, text)
	res := fanout(recipients, func(id int64) error {
		return d.relay.SendText(ctx, id, msg)
	})
	for id, err := range res.Failed {
		deliveryFailures.WithLabelValues("relay").Inc()
		d.logger.Error("failed to relay discussion message", "submission", submissionID, "reviewer", id, "err", err)
	}
	return res, nil
}

// ClearAllFor ends every discussion of a resolved submission.
func (d *DiscussionRouter) ClearAllFor(submissionID int64) int {
	n := d.sessions.ClearAllFor(submissionID)
	if n > 0 {
		d.logger.Debug("discussions closed", "submission", submissionID, "sessions", n)
	}
	return n
}
