package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
	"github.com/maaaruch/tg-suggest-bot/internal/moderation"
)

const (
	textStart        = "Привет! Отправь фото для модерации."
	textHint         = "Пожалуйста, отправьте фото или используйте команду /chat."
	textSubmitted    = "Фото отправлено на модерацию."
	textSubmitFailed = "Не удалось отправить фото на модерацию, попробуйте позже."

	textChatSent       = "Ваше сообщение отправлено в чат по модерации."
	textChatEmpty      = "Введите сообщение после команды /chat"
	textNoChat         = "Нет активного чата. Нажмите кнопку '💬 Обсудить' для начала обсуждения."
	textChatGone       = "Ошибка: фото для текущего чата не найдено."
	textNoRightsChat   = "⛔ У вас нет прав для этого действия."
	textNoRightsButton = "⛔ У вас нет прав на это действие."

	textBadCallback  = "Ошибка: неверный формат данных."
	textNotFound     = "Ошибка: фото не найдено."
	textAlreadyVoted = "Вы уже проголосовали за это фото."
	textApproved     = "Фото одобрено и сохранено на сервере."
	textRejected     = "Фото отклонено и удалено."
	textVoteFailed   = "Ошибка при обработке фото, попробуйте еще раз."
)

const (
	actionApprove = "approve"
	actionReject  = "reject"
	actionChat    = "chat"
)

var errBadCallback = errors.New("malformed callback data")

// parseCallbackData splits "<action>_<id>" as produced by the review keyboard.
func parseCallbackData(data string) (string, int64, error) {
	action, rawID, ok := strings.Cut(data, "_")
	if !ok {
		return "", 0, errBadCallback
	}
	switch action {
	case actionApprove, actionReject, actionChat:
	default:
		return "", 0, errBadCallback
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, errBadCallback
	}
	return action, id, nil
}

func discussionInstruction(submissionID int64) string {
	return fmt.Sprintf("Вы начали обсуждение по фото #%d.\nТеперь отправляйте сообщения командой: /chat ваше сообщение", submissionID)
}

func voteNotice(res moderation.VoteResult) string {
	switch res.Outcome {
	case moderation.OutcomeApproved:
		return textApproved
	case moderation.OutcomeRejected:
		return textRejected
	}
	left := res.Required - res.Approvals
	if left <= 0 {
		// another approval is finalizing the photo
		return "Ваш голос учтен."
	}
	if left == 1 {
		return "Ваш голос учтен. Нужно еще одобрение."
	}
	return fmt.Sprintf("Ваш голос учтен. Нужно еще одобрений: %d.", left)
}

// callbackErrorNotice maps a vote or discussion error to the toast text and
// whether it should be shown as an alert.
func callbackErrorNotice(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return textNoRightsButton, false
	case errors.Is(err, domain.ErrAlreadyVoted):
		return textAlreadyVoted, false
	case errors.Is(err, domain.ErrNotFound):
		return textNotFound, true
	}
	return textVoteFailed, true
}

func chatErrorNotice(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return textNoRightsChat
	case errors.Is(err, domain.ErrNoActiveDiscussion):
		return textNoChat
	case errors.Is(err, domain.ErrNotFound):
		return textChatGone
	case errors.Is(err, domain.ErrEmptyMessage):
		return textChatEmpty
	}
	return textVoteFailed
}
