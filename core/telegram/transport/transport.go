// Package transport implements messaging.Messenger on top of telebot.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/keyboard"
	"github.com/m3rciful/relaybot/internal/messaging"

	tele "gopkg.in/telebot.v4"
)

// API is the subset of *tele.Bot the messenger calls.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// Messenger adapts an API to messaging.Messenger. Every successful outbound
// message is counted on the per-update counters carried by ctx.
type Messenger struct {
	api API
}

// New wraps api, normally a *tele.Bot.
func New(api API) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) SendText(ctx context.Context, chatID int64, text string, opts messaging.SendOptions) (messaging.MessageRef, error) {
	start := time.Now()
	send := &tele.SendOptions{
		ParseMode:   tele.ParseMode(opts.ParseMode),
		ReplyMarkup: keyboard.FromKeyboard(opts.Keyboard),
	}
	if opts.ReplyTo != 0 {
		send.ReplyTo = &tele.Message{ID: opts.ReplyTo, Chat: &tele.Chat{ID: chatID}}
	}
	msg, err := m.api.Send(tele.ChatID(chatID), text, send)
	m.trace(ctx, "send", chatID, start, err)
	if err != nil {
		return messaging.MessageRef{}, classify("send", err)
	}
	tghelpers.CountersFrom(ctx).CountMessage(opts.Keyboard != nil)
	return refOf(msg, chatID), nil
}

func (m *Messenger) CopyContent(ctx context.Context, src messaging.MessageRef, chatID int64, kb *messaging.Keyboard) (messaging.MessageRef, error) {
	start := time.Now()
	var opts []interface{}
	if markup := keyboard.FromKeyboard(kb); markup != nil {
		opts = append(opts, markup)
	}
	msg, err := m.api.Copy(tele.ChatID(chatID), stored(src), opts...)
	m.trace(ctx, "copy", chatID, start, err)
	if err != nil {
		return messaging.MessageRef{}, classify("copy", err)
	}
	tghelpers.CountersFrom(ctx).CountMessage(kb != nil)
	return refOf(msg, chatID), nil
}

func (m *Messenger) EditText(ctx context.Context, ref messaging.MessageRef, text string, kb *messaging.Keyboard) error {
	start := time.Now()
	var opts []interface{}
	if markup := keyboard.FromKeyboard(kb); markup != nil {
		opts = append(opts, markup)
	}
	_, err := m.api.Edit(stored(ref), text, opts...)
	m.trace(ctx, "edit", ref.ChatID, start, err)
	if err != nil {
		return classify("edit", err)
	}
	tghelpers.CountersFrom(ctx).CountMessage(kb != nil)
	return nil
}

func (m *Messenger) DeleteMessage(ctx context.Context, ref messaging.MessageRef) error {
	start := time.Now()
	err := m.api.Delete(stored(ref))
	m.trace(ctx, "delete", ref.ChatID, start, err)
	return classify("delete", err)
}

func (m *Messenger) Acknowledge(ctx context.Context, eventID, notice string, prominent bool) error {
	start := time.Now()
	resp := &tele.CallbackResponse{Text: notice, ShowAlert: prominent && notice != ""}
	err := m.api.Respond(&tele.Callback{ID: eventID}, resp)
	m.trace(ctx, "respond", 0, start, err)
	return classify("respond", err)
}

func (m *Messenger) trace(ctx context.Context, op string, chatID int64, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.Duration("duration", logger.Took(start)),
	}
	if chatID != 0 {
		attrs = append(attrs, slog.Int64("target_chat_id", chatID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("status", "fail"), logger.Err(err))
	} else {
		attrs = append(attrs, slog.String("status", "ok"))
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "tg.api", attrs...)
}

// classify maps telebot errors onto the messaging error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := messaging.KindOther
	switch {
	case errors.Is(err, tele.ErrChatNotFound),
		errors.Is(err, tele.ErrBlockedByUser),
		errors.Is(err, tele.ErrUserIsDeactivated),
		errors.Is(err, tele.ErrNotStartedByUser),
		errors.Is(err, tele.ErrKickedFromGroup):
		kind = messaging.KindRecipientUnreachable
	case errors.Is(err, tele.ErrMessageNotModified),
		errors.Is(err, tele.ErrSameMessageContent):
		kind = messaging.KindNotModified
	}
	return &messaging.Error{Kind: kind, Op: op, Err: err}
}

func stored(ref messaging.MessageRef) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func refOf(msg *tele.Message, chatID int64) messaging.MessageRef {
	if msg == nil {
		return messaging.MessageRef{ChatID: chatID}
	}
	if msg.Chat != nil {
		chatID = msg.Chat.ID
	}
	return messaging.MessageRef{ChatID: chatID, MessageID: msg.ID}
}

var _ messaging.Messenger = (*Messenger)(nil)
