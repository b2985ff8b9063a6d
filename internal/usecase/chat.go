package usecase

import (
	"time"

	"github.com/google/uuid"

	"github.com/totegamma/sketchroom/internal/domain"
)

// ChatLog is a bounded append-only list of chat messages.
type ChatLog struct {
	max      int
	messages []domain.ChatMessage
	now      func() time.Time
}

func NewChatLog(max int, now func() time.Time) *ChatLog {
	if max <= 0 {
		max = domain.DefaultMaxChatMessages
	}
	if now == nil {
		now = time.Now
	}
	return &ChatLog{max: max, now: now}
}

func (c *ChatLog) Append(user domain.User, text string) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		Username: user.Username,
		Text:     text,
		SentAt:   c.now(),
	}
	c.messages = append(c.messages, msg)
	if len(c.messages) > c.max {
		c.messages = append([]domain.ChatMessage(nil), c.messages[len(c.messages)-c.max:]...)
	}
	return msg
}

func (c *ChatLog) History() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *ChatLog) Reset() {
	c.messages = nil
}
