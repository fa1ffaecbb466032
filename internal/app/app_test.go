package app

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
	"github.com/maaaruch/tg-suggest-bot/internal/moderation"
)

type fakeBot struct {
	updates  chan tgbotapi.Update
	stopped  bool
	sent     []tgbotapi.MessageConfig
	answered []tgbotapi.CallbackConfig
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() { b.stopped = true }

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		b.answered = append(b.answered, cb)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) lastText() string {
	if len(b.sent) == 0 {
		return ""
	}
	return b.sent[len(b.sent)-1].Text
}

type fakeModerator struct {
	intakes []moderation.Intake
	votes   []domain.Decision
	opened  []int64
	posted  []string

	voteRes  moderation.VoteResult
	voteErr  error
	openErr  error
	postErr  error
	postedBy string
}

func (m *fakeModerator) IsReviewer(int64) bool { return true }

func (m *fakeModerator) Submit(ctx context.Context, in moderation.Intake) (int64, error) {
	m.intakes = append(m.intakes, in)
	return int64(len(m.intakes)), nil
}

func (m *fakeModerator) Vote(ctx context.Context, reviewerID, submissionID int64, d domain.Decision) (moderation.VoteResult, error) {
	m.votes = append(m.votes, d)
	return m.voteRes, m.voteErr
}

func (m *fakeModerator) OpenDiscussion(reviewerID, submissionID int64) error {
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = append(m.opened, submissionID)
	return nil
}

func (m *fakeModerator) PostDiscussion(ctx context.Context, reviewerID int64, displayName, text string) (moderation.FanoutResult, error) {
	if m.postErr != nil {
		return moderation.FanoutResult{}, m.postErr
	}
	m.postedBy = displayName
	m.posted = append(m.posted, text)
	return moderation.FanoutResult{Delivered: 1}, nil
}

func newTestApp() (*App, *fakeBot, *fakeModerator) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 8)}
	mod := &fakeModerator{}
	return New(nil, bot, mod), bot, mod
}

func textMessage(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		MessageID: 5,
		From:      &tgbotapi.User{ID: 100, UserName: "rev"},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		cmdLen := len(text)
		for i, r := range text {
			if r == ' ' {
				cmdLen = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return msg
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 100, UserName: "rev"},
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: 100}},
		Data:    data,
	}
}

func TestHandleMessage_PhotoSubmitsLargestSize(t *testing.T) {
	a, bot, mod := newTestApp()

	msg := textMessage("")
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	a.handleMessage(context.Background(), msg)

	require.Len(t, mod.intakes, 1)
	assert.Equal(t, "large", mod.intakes[0].ArtifactRef)
	assert.Equal(t, domain.Originator{UserID: 100, Username: "rev", ChatID: 100, MessageID: 5}, mod.intakes[0].Originator)
	assert.Equal(t, textSubmitted, bot.lastText())
}

func TestHandleMessage_Commands(t *testing.T) {
	a, bot, mod := newTestApp()
	ctx := context.Background()

	a.handleMessage(ctx, textMessage("/start"))
	assert.Equal(t, textStart, bot.lastText())

	a.handleMessage(ctx, textMessage("hello"))
	assert.Equal(t, textHint, bot.lastText())

	a.handleMessage(ctx, textMessage("/chat check lighting"))
	assert.Equal(t, textChatSent, bot.lastText())
	assert.Equal(t, []string{"check lighting"}, mod.posted)
	assert.Equal(t, "rev", mod.postedBy)

	mod.postErr = domain.ErrNoActiveDiscussion
	a.handleMessage(ctx, textMessage("/chat again"))
	assert.Equal(t, textNoChat, bot.lastText())
}

func TestHandleCallback_Vote(t *testing.T) {
	a, bot, mod := newTestApp()
	ctx := context.Background()

	mod.voteRes = moderation.VoteResult{Outcome: moderation.OutcomeRecorded, Approvals: 1, Required: 2}
	a.handleCallback(ctx, callback("approve_3"))
	require.Len(t, bot.answered, 1)
	assert.Equal(t, "Ваш голос учтен. Нужно еще одобрение.", bot.answered[0].Text)

	mod.voteRes = moderation.VoteResult{Outcome: moderation.OutcomeRejected}
	a.handleCallback(ctx, callback("reject_3"))
	assert.Equal(t, textRejected, bot.answered[1].Text)

	assert.Equal(t, []domain.Decision{domain.DecisionApprove, domain.DecisionReject}, mod.votes)

	mod.voteErr = domain.ErrAlreadyVoted
	a.handleCallback(ctx, callback("approve_3"))
	assert.Equal(t, textAlreadyVoted, bot.answered[2].Text)
	assert.False(t, bot.answered[2].ShowAlert)
}

func TestHandleCallback_BadData(t *testing.T) {
	a, bot, mod := newTestApp()

	a.handleCallback(context.Background(), callback("approve_x"))
	require.Len(t, bot.answered, 1)
	assert.Equal(t, textBadCallback, bot.answered[0].Text)
	assert.True(t, bot.answered[0].ShowAlert)
	assert.Empty(t, mod.votes)
}

func TestHandleCallback_OpenChat(t *testing.T) {
	a, bot, mod := newTestApp()

	a.handleCallback(context.Background(), callback("chat_7"))
	assert.Equal(t, []int64{7}, mod.opened)
	assert.Equal(t, discussionInstruction(7), bot.lastText())

	mod.openErr = domain.ErrUnauthorized
	a.handleCallback(context.Background(), callback("chat_8"))
	assert.Equal(t, textNoRightsButton, bot.answered[len(bot.answered)-1].Text)
}

func TestRun_ReturnsWhenUpdatesClosed(t *testing.T) {
	a, bot, mod := newTestApp()

	msg := textMessage("")
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "f"}}
	bot.updates <- tgbotapi.Update{Message: msg}
	close(bot.updates)

	a.Run(context.Background())
	assert.Len(t, mod.intakes, 1)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, bot, _ := newTestApp()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a.Run(ctx)
	assert.True(t, bot.stopped)
}
