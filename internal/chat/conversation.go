// Package chat keeps the recipe conversation transcript for one user.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/suPer8Hu/pantry-assistant/internal/logger"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrClosed       = errors.New("conversation closed")
)

// Responder produces the assistant reply to one user message.
type Responder interface {
	Reply(ctx context.Context, userID, message string) (string, error)
}

// Conversation is an append-only transcript. Entries are never edited,
// retried or removed; a failed round trip is recorded as an AssistantError
// entry instead of being returned.
type Conversation struct {
	userID    string
	responder Responder
	logger    *slog.Logger

	mu         sync.Mutex
	transcript []Message
	closed     bool
}

func NewConversation(userID string, r Responder, l *slog.Logger) *Conversation {
	return &Conversation{
		userID:    userID,
		responder: r,
		logger:    logger.OrDefault(l).With(slog.String("user_id", userID)),
	}
}

// Send appends the user's text as is, asks the responder and appends the
// reply or the fallback entry. Blank text is a no-op reported as
// ErrEmptyMessage. Responder failures are not returned.
func (c *Conversation) Send(ctx context.Context, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	if !c.append(User(text)) {
		return Message{}, ErrClosed
	}

	reply := AssistantError()
	content, err := c.responder.Reply(ctx, c.userID, text)
	if err != nil {
		c.logger.Warn("chat reply failed", slog.String("error", err.Error()))
	} else {
		reply = Assistant(content)
	}

	if !c.append(reply) {
		return Message{}, ErrClosed
	}
	return reply, nil
}

func (c *Conversation) append(m Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.transcript = append(c.transcript, m)
	return true
}

// Transcript returns a copy in insertion order.
func (c *Conversation) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.transcript...)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transcript)
}

// Close drops the transcript. Replies still in flight are discarded.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.transcript = nil
}
