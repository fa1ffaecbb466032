package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maaaruch/tg-suggest-bot/internal/artifact"
	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

// Channel is the public feed approved photos end up in.
type Channel interface {
	Publish(ctx context.Context, submissionID int64, data []byte) error
}

type Journal interface {
	MarkPublication(submissionID int64, status domain.PublicationStatus, at time.Time) error
}

// Executor publishes a stored photo and releases its storage. It never
// retries: a photo missing at this point was lost upstream.
type Executor struct {
	logger    *slog.Logger
	artifacts artifact.Store
	channel   Channel
	journal   Journal
	now       func() time.Time
}

// NewExecutor creates an executor. journal may be nil.
func NewExecutor(logger *slog.Logger, artifacts artifact.Store, channel Channel, journal Journal) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		logger:    logger.With("component", "publisher"),
		artifacts: artifacts,
		channel:   channel,
		journal:   journal,
		now:       time.Now,
	}
}

func (e *Executor) Run(ctx context.Context, submissionID int64) error {
	start := time.Now()
	defer func() {
		publishDuration.Observe(time.Since(start).Seconds())
	}()

	ok, err := e.artifacts.Exists(ctx, submissionID)
	if err != nil {
		e.finish(submissionID, domain.PublicationFailed)
		return fmt.Errorf("check photo %d: %w", submissionID, err)
	}
	if !ok {
		e.logger.Error("photo not found for publication", "submission", submissionID)
		e.finish(submissionID, domain.PublicationMissing)
		return domain.ErrArtifactMissing
	}

	data, err := e.artifacts.Load(ctx, submissionID)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactMissing) {
			e.logger.Error("photo vanished before publication", "submission", submissionID)
			e.finish(submissionID, domain.PublicationMissing)
			return err
		}
		e.finish(submissionID, domain.PublicationFailed)
		return fmt.Errorf("load photo %d: %w", submissionID, err)
	}

	if err := e.channel.Publish(ctx, submissionID, data); err != nil {
		// keep the file so it can be posted by hand
		e.finish(submissionID, domain.PublicationFailed)
		return fmt.Errorf("publish photo %d: %w", submissionID, err)
	}
	e.logger.Info("photo published", "submission", submissionID)
	e.finish(submissionID, domain.PublicationPublished)

	if err := e.artifacts.Delete(ctx, submissionID); err != nil {
		e.logger.Error("failed to delete published photo", "submission", submissionID, "err", err)
	}
	return nil
}

func (e *Executor) finish(submissionID int64, status domain.PublicationStatus) {
	publicationsTotal.WithLabelValues(string(status)).Inc()
	if e.journal == nil {
		return
	}
	if err := e.journal.MarkPublication(submissionID, status, e.now()); err != nil {
		e.logger.Error("journal publication", "submission", submissionID, "status", status, "err", err)
	}
}
