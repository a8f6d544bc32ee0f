// Package messagingtest provides an in-memory messaging.Messenger for tests.
package messagingtest

import (
	"context"
	"sync"

	"github.com/m3rciful/relaybot/internal/messaging"
)

// Sent is a message the fake delivered.
type Sent struct {
	Ref       messaging.MessageRef
	Text      string
	ParseMode messaging.ParseMode
	Keyboard  *messaging.Keyboard
	ReplyTo   int
	// CopyOf is set for CopyContent calls.
	CopyOf messaging.MessageRef
}

// Edit is a recorded EditText call.
type Edit struct {
	Ref      messaging.MessageRef
	Text     string
	Keyboard *messaging.Keyboard
}

// Ack is a recorded Acknowledge call.
type Ack struct {
	EventID   string
	Notice    string
	Prominent bool
}

// Messenger records every call. Fail* hooks inject errors per chat.
type Messenger struct {
	mu     sync.Mutex
	nextID int

	Sent    []Sent
	Edits   []Edit
	Deleted []messaging.MessageRef
	Acks    []Ack

	// FailSend returns an error for SendText and CopyContent targeting chatID.
	FailSend func(chatID int64) error
	// FailCopy returns an error for CopyContent only, after FailSend passed.
	FailCopy func(chatID int64) error
	// FailEdit returns an error for EditText.
	FailEdit func(ref messaging.MessageRef) error
}

// New returns a fake whose message ids start at first.
func New(first int) *Messenger {
	return &Messenger{nextID: first}
}

func (m *Messenger) alloc(chatID int64) messaging.MessageRef {
	m.nextID++
	return messaging.MessageRef{ChatID: chatID, MessageID: m.nextID}
}

func (m *Messenger) SendText(_ context.Context, chatID int64, text string, opts messaging.SendOptions) (messaging.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend != nil {
		if err := m.FailSend(chatID); err != nil {
			return messaging.MessageRef{}, err
		}
	}
	ref := m.alloc(chatID)
	m.Sent = append(m.Sent, Sent{Ref: ref, Text: text, ParseMode: opts.ParseMode, Keyboard: opts.Keyboard, ReplyTo: opts.ReplyTo})
	return ref, nil
}

func (m *Messenger) CopyContent(_ context.Context, src messaging.MessageRef, chatID int64, kb *messaging.Keyboard) (messaging.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend != nil {
		if err := m.FailSend(chatID); err != nil {
			return messaging.MessageRef{}, err
		}
	}
	if m.FailCopy != nil {
		if err := m.FailCopy(chatID); err != nil {
			return messaging.MessageRef{}, err
		}
	}
	ref := m.alloc(chatID)
	m.Sent = append(m.Sent, Sent{Ref: ref, Keyboard: kb, CopyOf: src})
	return ref, nil
}

func (m *Messenger) EditText(_ context.Context, ref messaging.MessageRef, text string, kb *messaging.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailEdit != nil {
		if err := m.FailEdit(ref); err != nil {
			return err
		}
	}
	m.Edits = append(m.Edits, Edit{Ref: ref, Text: text, Keyboard: kb})
	return nil
}

func (m *Messenger) DeleteMessage(_ context.Context, ref messaging.MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, ref)
	return nil
}

func (m *Messenger) Acknowledge(_ context.Context, eventID, notice string, prominent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acks = append(m.Acks, Ack{EventID: eventID, Notice: notice, Prominent: prominent})
	return nil
}

// SentTo returns the messages delivered to chatID in order.
func (m *Messenger) SentTo(chatID int64) []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sent
	for _, s := range m.Sent {
		if s.Ref.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Reset forgets recorded calls but keeps id allocation and hooks.
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent, m.Edits, m.Deleted, m.Acks = nil, nil, nil, nil
}

var _ messaging.Messenger = (*Messenger)(nil)
