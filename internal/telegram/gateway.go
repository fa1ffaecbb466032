package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

// API is the part of *tgbotapi.BotAPI the gateway needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

const (
	CallbackApprove = "approve_"
	CallbackReject  = "reject_"
	CallbackChat    = "chat_"
)

// maxPhotoSize caps downloads; the Bot API refuses files over 20MB anyway.
const maxPhotoSize = 20 << 20

type Config struct {
	Logger *slog.Logger
	// Channel is the publish target: a numeric chat id or an @username.
	Channel string
	// RateLimit is outgoing Bot API calls per second; 0 disables limiting.
	RateLimit  float64
	HTTPClient *http.Client
}

// Gateway talks to reviewers, senders and the public channel through the Bot API.
type Gateway struct {
	api     API
	channel ChannelRef
	limiter *rate.Limiter
	client  *http.Client
}

func NewGateway(cfg Config, api API) (*Gateway, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var channel ChannelRef
	if cfg.Channel != "" {
		var err error
		channel, err = ParseChannel(cfg.Channel)
		if err != nil {
			return nil, err
		}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = NewDownloadClient(logger)
	}

	return &Gateway{
		api:     api,
		channel: channel,
		limiter: limiter,
		client:  client,
	}, nil
}

// ChannelRef is either a numeric chat id or a public @username.
type ChannelRef struct {
	ID       int64
	Username string
}

func ParseChannel(s string) (ChannelRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ChannelRef{}, fmt.Errorf("empty channel id")
	}
	if strings.HasPrefix(s, "@") {
		if len(s) == 1 {
			return ChannelRef{}, fmt.Errorf("channel username %q is empty", s)
		}
		return ChannelRef{Username: s}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ChannelRef{}, fmt.Errorf("channel id %q: must be a number or @username", s)
	}
	return ChannelRef{ID: id}, nil
}

func (c ChannelRef) String() string {
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// ReviewKeyboard is attached to every copy sent to a reviewer.
func ReviewKeyboard(submissionID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(submissionID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить", CallbackApprove+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", CallbackReject+id),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Обсудить", CallbackChat+id),
		),
	)
}

func (g *Gateway) wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

func (g *Gateway) SendForReview(ctx context.Context, reviewerID, submissionID int64, artifactRef, caption string) (int, error) {
	if err := g.wait(ctx); err != nil {
		return 0, err
	}
	photo := tgbotapi.NewPhoto(reviewerID, tgbotapi.FileID(artifactRef))
	photo.Caption = caption
	photo.ReplyMarkup = ReviewKeyboard(submissionID)

	msg, err := g.api.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("send photo %d to %d: %w", submissionID, reviewerID, err)
	}
	return msg.MessageID, nil
}

func (g *Gateway) DeleteDelivered(ctx context.Context, reviewerID int64, messageRef int) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	if _, err := g.api.Request(tgbotapi.NewDeleteMessage(reviewerID, messageRef)); err != nil {
		return fmt.Errorf("delete message %d in %d: %w", messageRef, reviewerID, err)
	}
	return nil
}

// NotifyOriginator replies to the message the photo came in.
func (g *Gateway) NotifyOriginator(ctx context.Context, origin domain.Originator, text string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	m := tgbotapi.NewMessage(origin.ChatID, text)
	m.ReplyToMessageID = origin.MessageID
	if _, err := g.api.Send(m); err != nil {
		return fmt.Errorf("notify %d: %w", origin.UserID, err)
	}
	return nil
}

func (g *Gateway) SendText(ctx context.Context, chatID int64, text string) error {
	if err := g.wait(ctx); err != nil {
		return err
	}
	if _, err := g.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send text to %d: %w", chatID, err)
	}
	return nil
}

// Publish posts the stored photo bytes to the public channel.
func (g *Gateway) Publish(ctx context.Context, submissionID int64, data []byte) error {
	if g.channel == (ChannelRef{}) {
		return fmt.Errorf("publish %d: no channel configured", submissionID)
	}
	if err := g.wait(ctx); err != nil {
		return err
	}

	file := tgbotapi.FileBytes{Name: fmt.Sprintf("%d.jpg", submissionID), Bytes: data}
	var photo tgbotapi.PhotoConfig
	if g.channel.Username != "" {
		photo = tgbotapi.NewPhotoToChannel(g.channel.Username, file)
	} else {
		photo = tgbotapi.NewPhoto(g.channel.ID, file)
	}

	if _, err := g.api.Send(photo); err != nil {
		return fmt.Errorf("post to %s: %w", g.channel, err)
	}
	return nil
}

// Fetch downloads the photo behind a Telegram file id.
func (g *Gateway) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	fileURL, err := g.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	return g.download(ctx, fileURL)
}

func (g *Gateway) download(ctx context.Context, fileURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, redact(err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		// the url carries the bot token
		return nil, fmt.Errorf("download file: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoSize+1))
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if len(data) > maxPhotoSize {
		return nil, fmt.Errorf("download file: larger than %d bytes", maxPhotoSize)
	}
	return data, nil
}
