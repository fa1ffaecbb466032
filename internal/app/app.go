package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
	"github.com/maaaruch/tg-suggest-bot/internal/moderation"
)

// Bot is the part of *tgbotapi.BotAPI the update loop uses.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Moderator is implemented by *moderation.Service.
type Moderator interface {
	IsReviewer(userID int64) bool
	Submit(ctx context.Context, in moderation.Intake) (int64, error)
	Vote(ctx context.Context, reviewerID, submissionID int64, d domain.Decision) (moderation.VoteResult, error)
	OpenDiscussion(reviewerID, submissionID int64) error
	PostDiscussion(ctx context.Context, reviewerID int64, displayName, text string) (moderation.FanoutResult, error)
}

type App struct {
	logger *slog.Logger
	bot    Bot
	mod    Moderator
}

func New(logger *slog.Logger, bot Bot, mod Moderator) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		logger: logger.With("component", "app"),
		bot:    bot,
		mod:    mod,
	}
}

func (a *App) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return

		case update, ok := <-updates:
			if !ok {
				return
			}
			a.handleUpdate(ctx, update)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		a.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		a.handleCallback(ctx, update.CallbackQuery)
	}
}

func (a *App) reply(chatID int64, text string) {
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		a.logger.Error("send reply", "chat", chatID, "err", err)
	}
}

// ---------- Messages ----------

func (a *App) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	if len(msg.Photo) > 0 {
		a.handlePhoto(ctx, msg)
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			a.reply(msg.Chat.ID, textStart)
		case "chat":
			a.handleChat(ctx, msg)
		default:
			a.reply(msg.Chat.ID, textHint)
		}
		return
	}

	a.reply(msg.Chat.ID, textHint)
}

func (a *App) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	// the last size is the largest one
	photo := msg.Photo[len(msg.Photo)-1]

	id, err := a.mod.Submit(ctx, moderation.Intake{
		ArtifactRef: photo.FileID,
		Originator:  originatorOf(msg),
	})
	if err != nil {
		a.logger.Error("submit photo", "user", msg.From.ID, "err", err)
		a.reply(msg.Chat.ID, textSubmitFailed)
		return
	}
	a.logger.Debug("photo accepted", "submission", id, "user", msg.From.ID)
	a.reply(msg.Chat.ID, textSubmitted)
}

func (a *App) handleChat(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.CommandArguments())
	res, err := a.mod.PostDiscussion(ctx, msg.From.ID, originatorOf(msg).DisplayName(), text)
	if err != nil {
		a.reply(msg.Chat.ID, chatErrorNotice(err))
		if !isExpected(err) {
			a.logger.Error("post discussion", "user", msg.From.ID, "err", err)
		}
		return
	}
	if len(res.Failed) > 0 {
		a.logger.Warn("discussion partially delivered", "user", msg.From.ID, "delivered", res.Delivered, "failed", len(res.Failed))
	}
	a.reply(msg.Chat.ID, textChatSent)
}

func originatorOf(msg *tgbotapi.Message) domain.Originator {
	return domain.Originator{
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	}
}

// ---------- Callbacks ----------

func (a *App) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil {
		return
	}

	action, submissionID, err := parseCallbackData(cq.Data)
	if err != nil {
		a.answer(cq, textBadCallback, true)
		return
	}

	switch action {
	case actionChat:
		a.handleOpenChat(cq, submissionID)
	case actionApprove:
		a.handleVote(ctx, cq, submissionID, domain.DecisionApprove)
	case actionReject:
		a.handleVote(ctx, cq, submissionID, domain.DecisionReject)
	}
}

func (a *App) handleOpenChat(cq *tgbotapi.CallbackQuery, submissionID int64) {
	if err := a.mod.OpenDiscussion(cq.From.ID, submissionID); err != nil {
		text, alert := callbackErrorNotice(err)
		a.answer(cq, text, alert)
		if !isExpected(err) {
			a.logger.Error("open discussion", "submission", submissionID, "reviewer", cq.From.ID, "err", err)
		}
		return
	}

	chatID := cq.From.ID
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
	}
	a.reply(chatID, discussionInstruction(submissionID))
	a.answer(cq, "", false)
}

func (a *App) handleVote(ctx context.Context, cq *tgbotapi.CallbackQuery, submissionID int64, d domain.Decision) {
	res, err := a.mod.Vote(ctx, cq.From.ID, submissionID, d)
	if err != nil {
		text, alert := callbackErrorNotice(err)
		a.answer(cq, text, alert)
		if !isExpected(err) {
			a.logger.Error("vote", "submission", submissionID, "reviewer", cq.From.ID, "decision", d, "err", err)
		}
		return
	}
	a.answer(cq, voteNotice(res), false)
}

func (a *App) answer(cq *tgbotapi.CallbackQuery, text string, alert bool) {
	cb := tgbotapi.NewCallback(cq.ID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(cq.ID, text)
	}
	if _, err := a.bot.Request(cb); err != nil {
		a.logger.Error("answer callback", "user", cq.From.ID, "err", err)
	}
}

// isExpected reports errors that are a normal part of a reviewer's day.
func isExpected(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAlreadyVoted) ||
		errors.Is(err, domain.ErrNoActiveDiscussion) ||
		errors.Is(err, domain.ErrEmptyMessage)
}
