// Package dialogue drives the Order, Support and Review conversations.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/internal/messaging"
	"github.com/m3rciful/relaybot/internal/session"
	"github.com/m3rciful/relaybot/internal/submission"
)

// ErrRelayPostFailed is returned when a support request could not be posted to the operator channel.
var ErrRelayPostFailed = errors.New("dialogue: relay post failed")

// Result tells the dispatcher what happened to an event.
type Result int

const (
	// Handled means the event matched a transition and its effects ran.
	Handled Result = iota
	// Stale means the event refers to a prompt that is no longer current.
	Stale
	// Ignored means the event has no meaning in the current state.
	Ignored
)

func (r Result) String() string {
	switch r {
	case Handled:
		return "handled"
	case Stale:
		return "stale"
	default:
		return "ignored"
	}
}

// RouteRecorder stores relay post -> user links.
type RouteRecorder interface {
	Record(relayMessageID int, userID int64)
}

// Config wires an Engine.
type Config struct {
	Messenger      messaging.Messenger
	Sessions       *session.Store
	Routes         RouteRecorder
	Sink           submission.Sink
	OperatorChatID int64
}

// Engine applies the transition table and performs each transition's effects.
// It holds no locks of its own; per-user atomicity comes from the session
// store's compare-and-set operations.
type Engine struct {
	msg      messaging.Messenger
	sessions *session.Store
	routes   RouteRecorder
	sink     submission.Sink
	operator int64
}

// New builds an Engine. A nil Sink discards submissions.
func New(cfg Config) *Engine {
	sink := cfg.Sink
	if sink == nil {
		sink = submission.Nop{}
	}
	return &Engine{
		msg:      cfg.Messenger,
		sessions: cfg.Sessions,
		routes:   cfg.Routes,
		sink:     sink,
		operator: cfg.OperatorChatID,
	}
}

// Handle runs ev through the state machine of its sender.
// The returned error is informational; the user has already been told what they need to know.
func (e *Engine) Handle(ctx context.Context, ev messaging.Event) (Result, error) {
	in, ok := InputFor(ev)
	if !ok {
		return Ignored, nil
	}
	uid := ev.Sender.ID
	sess, _ := e.sessions.Get(uid)
	tr := Lookup(sess.State, in)

	if tr.Action != ActIgnore {
		logger.LogEvent(ctx, logger.Dialogue, slog.LevelDebug, "dialogue.transition",
			slog.String("state", string(sess.State)),
			slog.String("input", string(in)),
			slog.String("next_state", string(tr.Next)),
			slog.String("action", string(tr.Action)),
		)
	}

	switch tr.Action {
	case ActPromptOrder:
		return e.start(ctx, ev, sess, session.KindOrder, tr.Next, textOrderPrompt, CancelKeyboard())
	case ActPromptSupport:
		return e.start(ctx, ev, sess, session.KindSupport, tr.Next, textSupportPrompt, CancelKeyboard())
	case ActPromptReviewType:
		return e.start(ctx, ev, sess, session.KindReview, tr.Next, textReviewTypePrompt, ReviewTypeKeyboard())
	case ActPromptReviewText:
		return e.choosePolarity(ctx, ev, sess, in, tr.Next)
	case ActAcceptOrder:
		return e.acceptOrder(ctx, ev, sess.State)
	case ActRelaySupport:
		return e.relaySupport(ctx, ev)
	case ActSubmitReview:
		return e.submitReview(ctx, ev)
	case ActReprompt:
		return e.reprompt(ctx, ev, sess.State)
	case ActCancel:
		return e.Cancel(ctx, ev)
	case ActStale:
		return Stale, nil
	default:
		return Ignored, nil
	}
}

// start opens a dialogue. The prompt of a dialogue it replaces is deleted
// so its Cancel button cannot end the new one.
func (e *Engine) start(ctx context.Context, ev messaging.Event, prev session.Session, kind session.Kind, next session.State, prompt string, kb *messaging.Keyboard) (Result, error) {
	uid := ev.Sender.ID
	e.sessions.Set(uid, kind, next, nil)
	e.ack(ctx, ev, "")

	if old := prev.Int(ScratchPromptMessageID); old != 0 && old != ev.MessageID {
		if err := e.msg.DeleteMessage(ctx, messaging.MessageRef{ChatID: uid, MessageID: old}); err != nil {
			logger.LogEvent(ctx, logger.Dialogue, slog.LevelDebug, "prompt.delete.skip", logger.Err(err))
		}
	}

	ref, err := e.msg.SendText(ctx, uid, prompt, messaging.SendOptions{Keyboard: kb})
	if err != nil {
		return Handled, fmt.Errorf("dialogue: send %s prompt: %w", kind, err)
	}
	if err := e.sessions.UpdateScratch(uid, ScratchPromptMessageID, ref.MessageID); err != nil {
		// Cancelled between Set and here; nothing to remember.
		logger.LogEvent(ctx, logger.Dialogue, slog.LevelDebug, "dialogue.prompt.orphaned",
			slog.String("dialog", string(kind)),
		)
	}
	return Handled, nil
}

func (e *Engine) choosePolarity(ctx context.Context, ev messaging.Event, sess session.Session, in Input, next session.State) (Result, error) {
	uid := ev.Sender.ID
	polarity := polarityOf(in)
	scratch := sess.Scratch
	if scratch == nil {
		scratch = make(map[string]any, 2)
	}
	scratch[ScratchPolarity] = polarity
	if !e.sessions.CompareAndSet(uid, sess.State, session.Session{Kind: session.KindReview, State: next, Scratch: scratch}) {
		return Stale, nil
	}
	e.ack(ctx, ev, "")

	prompt := reviewAsk(polarity)
	err := e.msg.EditText(ctx, ev.Ref(), prompt, CancelKeyboard())
	if err == nil || errors.Is(err, messaging.ErrNotModified) {
		return Handled, nil
	}
	// The selection message may be gone; ask in a fresh one instead.
	if _, sendErr := e.msg.SendText(ctx, uid, prompt, messaging.SendOptions{Keyboard: CancelKeyboard()}); sendErr != nil {
		return Handled, fmt.Errorf("dialogue: review prompt: %w", errors.Join(err, sendErr))
	}
	return Handled, nil
}

func (e *Engine) acceptOrder(ctx context.Context, ev messaging.Event, from session.State) (Result, error) {
	uid := ev.Sender.ID
	if !e.sessions.CompareAndSet(uid, from, session.Idle) {
		return Stale, nil
	}
	logger.LogEvent(ctx, logger.Dialogue, slog.LevelInfo, "order.received",
		slog.String("status", "ok"),
		slog.String("dialog", string(session.KindOrder)),
		slog.Int("text_len", len([]rune(ev.Text))),
	)
	e.sink.Submitted(ctx, submission.Submission{
		Kind:        submission.KindOrder,
		UserID:      uid,
		Username:    ev.Sender.Username,
		DisplayName: ev.Sender.DisplayName(),
		ContentKind: string(ev.Content),
		Text:        ev.Text,
	})
	if _, err := e.reply(ctx, ev, textOrderAccepted, MenuKeyboard()); err != nil {
		return Handled, fmt.Errorf("dialogue: order ack: %w", err)
	}
	return Handled, nil
}

// relaySupport commits the session transition first, then posts outside any
// lock, then records the route only if the post went through.
func (e *Engine) relaySupport(ctx context.Context, ev messaging.Event) (Result, error) {
	uid := ev.Sender.ID
	if _, ok := e.sessions.CompareAndClear(uid, session.StateSupportAwaitingMessage); !ok {
		return Stale, nil
	}

	relay, err := e.postSupport(ctx, ev)
	if err != nil {
		logger.LogEvent(ctx, logger.Dialogue, slog.LevelError, "support.relay",
			slog.String("status", "fail"),
			slog.String("content_kind", string(ev.Content)),
			slog.String("err_kind", messaging.KindOf(err).String()),
			logger.Err(err),
		)
		if _, notifyErr := e.reply(ctx, ev, textSupportFailed, MenuKeyboard()); notifyErr != nil {
			err = errors.Join(err, notifyErr)
		}
		return Handled, fmt.Errorf("%w: %w", ErrRelayPostFailed, err)
	}

	e.routes.Record(relay.MessageID, uid)
	logger.LogEvent(ctx, logger.Dialogue, slog.LevelInfo, "support.relay",
		slog.String("status", "ok"),
		slog.String("content_kind", string(ev.Content)),
		slog.Int("relay_message_id", relay.MessageID),
	)
	e.sink.Submitted(ctx, submission.Submission{
		Kind:           submission.KindSupport,
		UserID:         uid,
		Username:       ev.Sender.Username,
		DisplayName:    ev.Sender.DisplayName(),
		ContentKind:    string(ev.Content),
		Text:           ev.Text,
		RelayMessageID: relay.MessageID,
	})

	if _, err := e.reply(ctx, ev, textSupportAccepted, MenuKeyboard()); err != nil {
		return Handled, fmt.Errorf("dialogue: support ack: %w", err)
	}
	return Handled, nil
}

// postSupport sends text as one post, anything else as header then copy.
// The returned ref is the post that carries the reply button.
func (e *Engine) postSupport(ctx context.Context, ev messaging.Event) (messaging.MessageRef, error) {
	return e.post(ctx, ev, SupportHeader(ev.Sender), SupportPost(ev.Sender, ev.Text), ReplyKeyboard(ev.Sender.ID))
}

// post relays ev to the operator chat. Text that fits goes out as the
// combined post; longer text and media go out as header then copy, with kb
// on the copy.
func (e *Engine) post(ctx context.Context, ev messaging.Event, header, combined string, kb *messaging.Keyboard) (messaging.MessageRef, error) {
	if ev.Content.IsText() && fitsMessage(combined) {
		return e.msg.SendText(ctx, e.operator, combined,
			messaging.SendOptions{ParseMode: messaging.ParseMarkdown, Keyboard: kb})
	}
	if _, err := e.msg.SendText(ctx, e.operator, header,
		messaging.SendOptions{ParseMode: messaging.ParseMarkdown}); err != nil {
		return messaging.MessageRef{}, err
	}
	return e.msg.CopyContent(ctx, ev.Ref(), e.operator, kb)
}

func (e *Engine) submitReview(ctx context.Context, ev messaging.Event) (Result, error) {
	uid := ev.Sender.ID
	prev, ok := e.sessions.CompareAndClear(uid, session.StateReviewAwaitingText)
	if !ok {
		return Stale, nil
	}
	polarity := prev.String(ScratchPolarity)

	_, postErr := e.post(ctx, ev, ReviewHeader(ev.Sender, polarity), ReviewPost(ev.Sender, polarity, ev.Text), nil)
	if postErr != nil {
		// Reviews are fire-and-forget: the user is thanked regardless.
		logger.LogEvent(ctx, logger.Dialogue, slog.LevelError, "review.relay",
			slog.String("status", "fail"),
			slog.String("polarity", polarity),
			logger.Err(postErr),
		)
	} else {
		logger.LogEvent(ctx, logger.Dialogue, slog.LevelInfo, "review.relay",
			slog.String("status", "ok"),
			slog.String("polarity", polarity),
		)
	}
	e.sink.Submitted(ctx, submission.Submission{
		Kind:        submission.KindReview,
		UserID:      uid,
		Username:    ev.Sender.Username,
		DisplayName: ev.Sender.DisplayName(),
		ContentKind: string(ev.Content),
		Text:        ev.Text,
		Polarity:    polarity,
	})

	if _, err := e.reply(ctx, ev, reviewAccepted(polarity), MenuKeyboard()); err != nil {
		return Handled, fmt.Errorf("dialogue: review ack: %w", err)
	}
	return Handled, nil
}

func (e *Engine) reprompt(ctx context.Context, ev messaging.Event, state session.State) (Result, error) {
	text := textReviewReprompt
	if state == session.StateOrderAwaitingItem {
		text = textOrderReprompt
	}
	if _, err := e.reply(ctx, ev, text, CancelKeyboard()); err != nil {
		return Handled, fmt.Errorf("dialogue: reprompt: %w", err)
	}
	return Handled, nil
}

// Cancel returns the sender to idle from any state. Repeating it is harmless.
func (e *Engine) Cancel(ctx context.Context, ev messaging.Event) (Result, error) {
	uid := ev.Sender.ID
	e.sessions.Clear(uid)
	e.ack(ctx, ev, TextCancelledToast)

	if ev.Kind == messaging.EventSelection && !ev.Ref().IsZero() {
		if err := e.msg.DeleteMessage(ctx, ev.Ref()); err != nil {
			logger.LogEvent(ctx, logger.Dialogue, slog.LevelDebug, "cancel.delete.skip", logger.Err(err))
		}
	}
	if _, err := e.msg.SendText(ctx, uid, TextCancelled, messaging.SendOptions{Keyboard: MenuKeyboard()}); err != nil {
		return Handled, fmt.Errorf("dialogue: cancel: %w", err)
	}
	return Handled, nil
}

// ack answers a selection event; content events have nothing to acknowledge.
func (e *Engine) ack(ctx context.Context, ev messaging.Event, notice string) {
	if ev.Kind != messaging.EventSelection || ev.ID == "" {
		return
	}
	if err := e.msg.Acknowledge(ctx, ev.ID, notice, false); err != nil {
		logger.LogEvent(ctx, logger.Dialogue, slog.LevelDebug, "selection.ack.fail", logger.Err(err))
	}
}

// reply answers a content event in its chat, quoting the user's message.
func (e *Engine) reply(ctx context.Context, ev messaging.Event, text string, kb *messaging.Keyboard) (messaging.MessageRef, error) {
	chatID := ev.ChatID
	if chatID == 0 {
		chatID = ev.Sender.ID
	}
	return e.msg.SendText(ctx, chatID, text, messaging.SendOptions{Keyboard: kb, ReplyTo: ev.MessageID})
}
