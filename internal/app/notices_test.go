package app

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
	"github.com/maaaruch/tg-suggest-bot/internal/moderation"
)

func TestParseCallbackData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		data       string
		wantAction string
		wantID     int64
		wantErr    bool
	}{
		{"approve", "approve_12", actionApprove, 12, false},
		{"reject", "reject_1", actionReject, 1, false},
		{"chat", "chat_999", actionChat, 999, false},
		{"no_separator", "approve12", "", 0, true},
		{"unknown_action", "delete_3", "", 0, true},
		{"not_a_number", "approve_abc", "", 0, true},
		{"zero", "approve_0", "", 0, true},
		{"negative", "reject_-4", "", 0, true},
		{"empty", "", "", 0, true},
		{"trailing", "approve_5_6", "", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			action, id, err := parseCallbackData(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got action=%q id=%d", tt.data, action, id)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCallbackData(%q): %v", tt.data, err)
			}
			if action != tt.wantAction || id != tt.wantID {
				t.Fatalf("got (%q, %d), want (%q, %d)", action, id, tt.wantAction, tt.wantID)
			}
		})
	}
}

func FuzzParseCallbackData(f *testing.F) {
	for _, s := range []string{"approve_1", "reject_22", "chat_3", "chat_", "_1", "approve__1", "x"} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		action, id, err := parseCallbackData(data)
		if err != nil {
			return
		}
		if id <= 0 {
			t.Fatalf("accepted non-positive id %d from %q", id, data)
		}
		if data != fmt.Sprintf("%s_%d", action, id) && !strings.HasPrefix(data, action+"_") {
			t.Fatalf("action %q does not prefix %q", action, data)
		}
	})
}

func TestVoteNotice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  moderation.VoteResult
		want string
	}{
		{"approved", moderation.VoteResult{Outcome: moderation.OutcomeApproved}, textApproved},
		{"rejected", moderation.VoteResult{Outcome: moderation.OutcomeRejected}, textRejected},
		{"one_left", moderation.VoteResult{Approvals: 1, Required: 2}, "Ваш голос учтен. Нужно еще одобрение."},
		{"two_left", moderation.VoteResult{Approvals: 1, Required: 3}, "Ваш голос учтен. Нужно еще одобрений: 2."},
		{"threshold_reached", moderation.VoteResult{Approvals: 3, Required: 2}, "Ваш голос учтен."},
	}

	for _, tt := range tests {
		if got := voteNotice(tt.res); got != tt.want {
			t.Fatalf("%s: got %q want %q", tt.name, got, tt.want)
		}
	}
}

func TestCallbackErrorNotice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err       error
		want      string
		wantAlert bool
	}{
		{domain.ErrUnauthorized, textNoRightsButton, false},
		{domain.ErrAlreadyVoted, textAlreadyVoted, false},
		{domain.ErrNotFound, textNotFound, true},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), textNotFound, true},
		{errors.New("disk full"), textVoteFailed, true},
	}

	for _, tt := range tests {
		got, alert := callbackErrorNotice(tt.err)
		if got != tt.want || alert != tt.wantAlert {
			t.Fatalf("%v: got (%q, %v) want (%q, %v)", tt.err, got, alert, tt.want, tt.wantAlert)
		}
	}
}

func TestChatErrorNotice(t *testing.T) {
	t.Parallel()

	tests := map[error]string{
		domain.ErrUnauthorized:       textNoRightsChat,
		domain.ErrNoActiveDiscussion: textNoChat,
		domain.ErrNotFound:           textChatGone,
		domain.ErrEmptyMessage:       textChatEmpty,
	}
	for err, want := range tests {
		if got := chatErrorNotice(err); got != want {
			t.Fatalf("%v: got %q want %q", err, got, want)
		}
	}
}
