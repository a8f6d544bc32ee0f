package router

import (
	"strings"

	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/internal/messaging"

	tele "gopkg.in/telebot.v4"
)

// ContentKindOf classifies a message by its payload. Animations carry a
// document too and venues carry a location, so they are checked first.
func ContentKindOf(m *tele.Message) messaging.ContentKind {
	if m == nil {
		return messaging.ContentUnsupported
	}
	switch {
	case m.Game != nil, m.Invoice != nil:
		return messaging.ContentUnsupported
	case m.Animation != nil:
		return messaging.ContentAnimation
	case m.Photo != nil:
		return messaging.ContentPhoto
	case m.Video != nil:
		return messaging.ContentVideo
	case m.VideoNote != nil:
		return messaging.ContentVideoNote
	case m.Voice != nil:
		return messaging.ContentVoice
	case m.Audio != nil:
		return messaging.ContentAudio
	case m.Document != nil:
		return messaging.ContentDocument
	case m.Sticker != nil:
		return messaging.ContentSticker
	case m.Contact != nil:
		return messaging.ContentContact
	case m.Venue != nil:
		return messaging.ContentVenue
	case m.Location != nil:
		return messaging.ContentLocation
	case m.Poll != nil:
		return messaging.ContentPoll
	case m.Dice != nil:
		return messaging.ContentDice
	case strings.TrimSpace(m.Text) != "":
		return messaging.ContentText
	default:
		return messaging.ContentUnsupported
	}
}

// ContentEvent converts a message update. Media events carry the caption as Text.
func ContentEvent(c tele.Context) messaging.Event {
	m := c.Message()
	ev := messaging.Event{
		Kind:   messaging.EventContent,
		Sender: tghelpers.SenderFrom(c.Sender()),
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if m == nil {
		ev.Content = messaging.ContentUnsupported
		return ev
	}
	ev.MessageID = m.ID
	ev.Content = ContentKindOf(m)
	if ev.Content.IsText() {
		ev.Text = m.Text
	} else {
		ev.Text = m.Caption
	}
	if m.ReplyTo != nil {
		ev.ReplyTo = m.ReplyTo.ID
	}
	return ev
}

// SelectionEvent converts a callback update.
func SelectionEvent(c tele.Context) messaging.Event {
	cb := c.Callback()
	ev := messaging.Event{
		Kind:   messaging.EventSelection,
		Sender: tghelpers.SenderFrom(c.Sender()),
	}
	if cb == nil {
		return ev
	}
	ev.ID = cb.ID
	ev.Action, ev.Payload = callbacks.ParseCallbackData(cb)
	if cb.Message != nil {
		ev.MessageID = cb.Message.ID
		if cb.Message.Chat != nil {
			ev.ChatID = cb.Message.Chat.ID
		}
	}
	if ev.ChatID == 0 {
		ev.ChatID = ev.Sender.ID
	}
	return ev
}

// CommandEvent converts a command update; name is the canonical command
// without the slash.
func CommandEvent(c tele.Context, name string) messaging.Event {
	ev := messaging.Event{
		Kind:    messaging.EventCommand,
		Command: strings.TrimPrefix(name, "/"),
		Sender:  tghelpers.SenderFrom(c.Sender()),
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if m := c.Message(); m != nil {
		ev.MessageID = m.ID
		ev.Text = m.Payload
	}
	return ev
}
