// Package messaging describes the chat transport the relay core depends on.
// The core never imports the Telegram SDK; core/telegram/transport adapts it.
package messaging

import (
	"context"
	"strings"
)

// EventKind classifies inbound events.
type EventKind int

const (
	// EventUnknown is an update the relay does not understand.
	EventUnknown EventKind = iota
	// EventCommand is a slash command such as /start.
	EventCommand
	// EventSelection is a button press carrying an action name.
	EventSelection
	// EventContent is a user or operator message.
	EventContent
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventSelection:
		return "selection"
	case EventContent:
		return "content"
	default:
		return "unknown"
	}
}

// ContentKind is the coarse payload type of a content event.
type ContentKind string

const (
	ContentText        ContentKind = "text"
	ContentPhoto       ContentKind = "photo"
	ContentVideo       ContentKind = "video"
	ContentDocument    ContentKind = "document"
	ContentAudio       ContentKind = "audio"
	ContentVoice       ContentKind = "voice"
	ContentVideoNote   ContentKind = "video_note"
	ContentAnimation   ContentKind = "animation"
	ContentSticker     ContentKind = "sticker"
	ContentContact     ContentKind = "contact"
	ContentLocation    ContentKind = "location"
	ContentVenue       ContentKind = "venue"
	ContentPoll        ContentKind = "poll"
	ContentDice        ContentKind = "dice"
	ContentUnsupported ContentKind = "unsupported"
)

// IsText reports whether the content is plain text.
func (c ContentKind) IsText() bool { return c == ContentText }

// Supported reports whether the content can be copied to another chat.
// Games, invoices and service messages cannot.
func (c ContentKind) Supported() bool { return c != "" && c != ContentUnsupported }

// Sender identifies the user behind an event.
type Sender struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DisplayName joins first and last name, falling back to the username and then to a dash.
func (s Sender) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
	if name != "" {
		return name
	}
	if s.Username != "" {
		return s.Username
	}
	return "—"
}

// MessageRef points at a message previously sent or received.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the reference is unset.
func (r MessageRef) IsZero() bool { return r.MessageID == 0 }

// Event is a transport-neutral inbound update.
type Event struct {
	Kind EventKind
	// ID identifies the selection for Acknowledge; empty for other kinds.
	ID        string
	ChatID    int64
	MessageID int
	Sender    Sender

	// Command is the command name without the leading slash.
	Command string

	// Action and Payload come from a selection's button data.
	Action  string
	Payload string

	Content ContentKind
	Text    string
	// ReplyTo is the id of the message this one replies to, 0 when none.
	ReplyTo int
}

// Ref returns the reference of the message carried by the event.
func (e Event) Ref() MessageRef {
	return MessageRef{ChatID: e.ChatID, MessageID: e.MessageID}
}

// ParseMode selects the markup dialect of outbound text.
type ParseMode string

const (
	ParsePlain    ParseMode = ""
	ParseMarkdown ParseMode = "Markdown"
)

// Button is one inline button. Action is routed back as Event.Action.
type Button struct {
	Text    string
	Action  string
	Payload string
}

// Keyboard is an inline keyboard laid out as rows of buttons.
type Keyboard struct {
	Rows [][]Button
}

// SendOptions tunes SendText.
type SendOptions struct {
	ParseMode ParseMode
	Keyboard  *Keyboard
	// ReplyTo quotes the given message id in the same chat.
	ReplyTo int
}

// Messenger is the outbound half of the chat transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (MessageRef, error)
	// CopyContent re-posts src into chatID preserving its content and caption.
	CopyContent(ctx context.Context, src MessageRef, chatID int64, kb *Keyboard) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, kb *Keyboard) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	// Acknowledge answers a selection; prominent shows a modal alert instead of a toast.
	Acknowledge(ctx context.Context, eventID, notice string, prominent bool) error
}
