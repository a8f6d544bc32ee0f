package helpers

import (
	"context"

	"github.com/m3rciful/relaybot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	contextKey = "relay_ctx"
	// RIDKey holds the request id computed by the logger middleware.
	RIDKey = "rid"
)

// StoreContext caches ctx on the update so later handlers reuse it.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the cached context, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext derives the per-update context: request id, update/user/chat
// metadata and the tg component logger.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}

	rid, _ := c.Get(RIDKey).(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := context.Background()
	ctx = logger.WithRID(ctx, rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the cached context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
