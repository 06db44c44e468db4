package expiry

import (
	"context"
	"log/slog"

	"github.com/suPer8Hu/pantry-assistant/internal/logger"
)

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// LogNotifier writes alerts to a structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, a Alert) error {
	logger.OrDefault(n.Logger).Warn(a.Message(),
		slog.String("user_id", a.UserID),
		slog.Any("items", a.Names),
	)
	return nil
}

// ChanNotifier hands alerts to a consumer. When the buffer is full the
// alert is dropped rather than blocking the inventory update.
type ChanNotifier struct {
	ch chan Alert
}

func NewChanNotifier(buffer int) *ChanNotifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChanNotifier{ch: make(chan Alert, buffer)}
}

func (n *ChanNotifier) C() <-chan Alert { return n.ch }

func (n *ChanNotifier) Notify(_ context.Context, a Alert) error {
	select {
	case n.ch <- a:
		return nil
	default:
		return ErrDropped
	}
}
