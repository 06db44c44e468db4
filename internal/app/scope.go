package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/chat"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/expiry"
	"github.com/suPer8Hu/pantry-assistant/internal/inventory"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

// gate admits one operation at a time and rejects the rest with ErrBusy.
type gate struct {
	busy atomic.Bool
}

func (g *gate) enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return common.ErrBusy
	}
	return nil
}

func (g *gate) leave()       { g.busy.Store(false) }
func (g *gate) active() bool { return g.busy.Load() }

// scope is everything that lives exactly as long as one logged-in identity.
type scope struct {
	identity     models.Identity
	mirror       *inventory.Mirror
	conversation *chat.Conversation
	monitor      *expiry.Monitor
	alerts       *expiry.ChanNotifier
	gate         gate

	ctx    context.Context
	cancel context.CancelFunc
}

// bind derives the context for one remote call: it ends at the request
// timeout or when the scope is disposed, whichever comes first.
func (s *scope) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *scope) dispose() {
	s.cancel()
	s.mirror.Close()
	s.conversation.Close()
}
