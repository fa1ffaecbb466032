package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

type fakeAPI struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	fileURL   string
	err       error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: 100 + len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.fileURL + "/" + fileID, nil
}

func TestParseChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    ChannelRef
		wantErr bool
	}{
		{in: "-1001234567890", want: ChannelRef{ID: -1001234567890}},
		{in: " 42 ", want: ChannelRef{ID: 42}},
		{in: "@photos", want: ChannelRef{Username: "@photos"}},
		{in: "@", wantErr: true},
		{in: "", wantErr: true},
		{in: "photos", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseChannel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestReviewKeyboard(t *testing.T) {
	kb := ReviewKeyboard(17)
	require.Len(t, kb.InlineKeyboard, 2)
	require.Len(t, kb.InlineKeyboard[0], 2)

	assert.Equal(t, "approve_17", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "reject_17", *kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "chat_17", *kb.InlineKeyboard[1][0].CallbackData)
}

func TestSendForReview(t *testing.T) {
	api := &fakeAPI{}
	g, err := NewGateway(Config{}, api)
	require.NoError(t, err)

	ref, err := g.SendForReview(context.Background(), 555, 3, "file-abc", "caption")
	require.NoError(t, err)
	assert.Equal(t, 101, ref)

	require.Len(t, api.sent, 1)
	photo, ok := api.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, int64(555), photo.ChatID)
	assert.Equal(t, "caption", photo.Caption)
	assert.Equal(t, tgbotapi.FileID("file-abc"), photo.File)
}

func TestNotifyOriginator_RepliesToOriginal(t *testing.T) {
	api := &fakeAPI{}
	g, _ := NewGateway(Config{}, api)

	err := g.NotifyOriginator(context.Background(), domain.Originator{UserID: 1, ChatID: 10, MessageID: 77}, "ok")
	require.NoError(t, err)

	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(10), msg.ChatID)
	assert.Equal(t, 77, msg.ReplyToMessageID)
}

func TestDeleteDelivered(t *testing.T) {
	api := &fakeAPI{}
	g, _ := NewGateway(Config{}, api)

	require.NoError(t, g.DeleteDelivered(context.Background(), 9, 300))
	del, ok := api.requested[0].(tgbotapi.DeleteMessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(9), del.ChatID)
	assert.Equal(t, 300, del.MessageID)

	api.err = errors.New("message to delete not found")
	assert.Error(t, g.DeleteDelivered(context.Background(), 9, 301))
}

func TestPublish(t *testing.T) {
	api := &fakeAPI{}
	g, err := NewGateway(Config{Channel: "@photos"}, api)
	require.NoError(t, err)

	require.NoError(t, g.Publish(context.Background(), 5, []byte("img")))
	photo := api.sent[0].(tgbotapi.PhotoConfig)
	assert.Equal(t, "@photos", photo.ChannelUsername)
	assert.Equal(t, tgbotapi.FileBytes{Name: "5.jpg", Bytes: []byte("img")}, photo.File)

	g, _ = NewGateway(Config{Channel: "-100500"}, api)
	require.NoError(t, g.Publish(context.Background(), 6, []byte("img")))
	photo = api.sent[1].(tgbotapi.PhotoConfig)
	assert.Equal(t, int64(-100500), photo.ChatID)
}

func TestPublish_NoChannel(t *testing.T) {
	g, _ := NewGateway(Config{}, &fakeAPI{})
	assert.Error(t, g.Publish(context.Background(), 1, []byte("img")))
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file-1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	api := &fakeAPI{fileURL: srv.URL}
	g, err := NewGateway(Config{HTTPClient: srv.Client()}, api)
	require.NoError(t, err)

	data, err := g.Fetch(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	_, err = g.Fetch(context.Background(), "missing")
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewDownloadClient(nil)
	g, err := NewGateway(Config{HTTPClient: client}, &fakeAPI{fileURL: srv.URL})
	require.NoError(t, err)

	data, err := g.Fetch(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, 2, calls)
}
