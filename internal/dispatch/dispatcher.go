// Package dispatch classifies inbound events and routes them to the dialogue
// engine or the operator reply path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/format"
	"github.com/m3rciful/relaybot/internal/dialogue"
	"github.com/m3rciful/relaybot/internal/messaging"
	"github.com/m3rciful/relaybot/internal/routing"
	"github.com/m3rciful/relaybot/internal/session"
	"github.com/m3rciful/relaybot/internal/submission"
)

// ErrUnrecognizedEvent marks a selection nobody handles. It has already been
// acknowledged with the stale notice when returned.
var ErrUnrecognizedEvent = errors.New("dispatch: unrecognized event")

// Command names understood by Dispatch.
const (
	CommandStart = "start"
	CommandMenu  = "menu"
	CommandStats = "stats"
)

// Routes is the operator reply half of the routing table.
type Routes interface {
	Consume(relayMessageID int) (int64, routing.Status)
	Len() int
}

// JobCounter reports background job totals.
type JobCounter interface {
	DoneCount() uint64
	ErrorCount() uint64
}

// Stats is the /stats snapshot.
type Stats struct {
	Sessions   int
	Routes     int
	JobsDone   uint64
	JobsFailed uint64
}

// Config wires a Dispatcher. Sink and Jobs are optional.
type Config struct {
	Messenger      messaging.Messenger
	Engine         *dialogue.Engine
	Sessions       *session.Store
	Routes         Routes
	Sink           submission.Sink
	Jobs           JobCounter
	OperatorChatID int64
}

// Dispatcher is safe for concurrent use; all shared state lives in the
// session store and the routing table.
type Dispatcher struct {
	msg      messaging.Messenger
	engine   *dialogue.Engine
	sessions *session.Store
	routes   Routes
	sink     submission.Sink
	jobs     JobCounter
	operator int64
}

func New(cfg Config) *Dispatcher {
	sink := cfg.Sink
	if sink == nil {
		sink = submission.Nop{}
	}
	return &Dispatcher{
		msg:      cfg.Messenger,
		engine:   cfg.Engine,
		sessions: cfg.Sessions,
		routes:   cfg.Routes,
		sink:     sink,
		jobs:     cfg.Jobs,
		operator: cfg.OperatorChatID,
	}
}

// Dispatch handles one inbound event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev messaging.Event) error {
	switch ev.Kind {
	case messaging.EventCommand:
		return d.command(ctx, ev)
	case messaging.EventSelection:
		return d.selection(ctx, ev)
	case messaging.EventContent:
		return d.content(ctx, ev)
	default:
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelDebug, "dispatch.skip",
			slog.String("outcome", "ignored"),
			slog.String("kind", ev.Kind.String()),
		)
		return nil
	}
}

// Snapshot gathers the counters reported by /stats.
func (d *Dispatcher) Snapshot() Stats {
	s := Stats{Sessions: d.sessions.Len(), Routes: d.routes.Len()}
	if d.jobs != nil {
		s.JobsDone = d.jobs.DoneCount()
		s.JobsFailed = d.jobs.ErrorCount()
	}
	return s
}

func (d *Dispatcher) command(ctx context.Context, ev messaging.Event) error {
	switch ev.Command {
	case CommandStart, CommandMenu:
		d.sessions.Clear(ev.Sender.ID)
		if _, err := d.msg.SendText(ctx, ev.ChatID, dialogue.TextWelcome,
			messaging.SendOptions{Keyboard: dialogue.MenuKeyboard()}); err != nil {
			return fmt.Errorf("dispatch: welcome: %w", err)
		}
		return nil
	case CommandStats:
		if _, err := d.msg.SendText(ctx, ev.ChatID, statsReport(d.Snapshot()),
			messaging.SendOptions{ReplyTo: ev.MessageID}); err != nil {
			return fmt.Errorf("dispatch: stats: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: command %q", ErrUnrecognizedEvent, ev.Command)
	}
}

func (d *Dispatcher) selection(ctx context.Context, ev messaging.Event) error {
	if ev.Action == dialogue.ActionReply {
		return d.replyButton(ctx, ev)
	}
	if _, known := dialogue.InputFor(ev); !known {
		d.staleAck(ctx, ev)
		return fmt.Errorf("%w: action %q", ErrUnrecognizedEvent, ev.Action)
	}
	res, err := d.engine.Handle(ctx, ev)
	if res != dialogue.Handled {
		d.staleAck(ctx, ev)
	}
	return err
}

// replyButton explains to the pressing operator how replies work.
func (d *Dispatcher) replyButton(ctx context.Context, ev messaging.Event) error {
	if uid, ok := payloadUserID(ev); ok {
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelDebug, "reply_button.pressed",
			slog.Int64("target_user_id", uid),
		)
	}
	if err := d.msg.Acknowledge(ctx, ev.ID, textReplyButtonHint, false); err != nil {
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelDebug, "selection.ack.fail", logger.Err(err))
	}
	if _, err := d.msg.SendText(ctx, ev.Sender.ID, textReplyHowTo, messaging.SendOptions{}); err != nil {
		// Operators who never opened a private chat with the bot cannot be messaged.
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelWarn, "reply_button.howto",
			slog.String("status", "fail"),
			slog.String("err_kind", messaging.KindOf(err).String()),
			logger.Err(err),
		)
	}
	return nil
}

func (d *Dispatcher) staleAck(ctx context.Context, ev messaging.Event) {
	if ev.ID == "" {
		return
	}
	if err := d.msg.Acknowledge(ctx, ev.ID, textStaleSelection, true); err != nil {
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelDebug, "selection.ack.fail", logger.Err(err))
	}
	logger.LogEvent(ctx, logger.Dispatch, slog.LevelInfo, "selection.stale",
		slog.String("outcome", "stale"),
		slog.String("action", ev.Action),
	)
}

func (d *Dispatcher) content(ctx context.Context, ev messaging.Event) error {
	if ev.ChatID == d.operator {
		if ev.ReplyTo == 0 {
			return nil
		}
		return d.operatorReply(ctx, ev)
	}
	// Dialogues run in private chats only; other group chatter is noise.
	if ev.ChatID != 0 && ev.ChatID != ev.Sender.ID {
		return nil
	}
	res, err := d.engine.Handle(ctx, ev)
	if res == dialogue.Stale {
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelInfo, "content.stale",
			slog.String("outcome", "stale"),
			slog.String("content_kind", string(ev.Content)),
		)
	}
	return err
}

// operatorReply delivers an operator's reply to the user behind the relay
// post it quotes. Consume guarantees at most one delivery per post.
func (d *Dispatcher) operatorReply(ctx context.Context, ev messaging.Event) error {
	uid, status := d.routes.Consume(ev.ReplyTo)
	switch status {
	case routing.Unknown:
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelInfo, "operator.reply",
			slog.String("outcome", "ignored"),
			slog.Int("relay_message_id", ev.ReplyTo),
		)
		return nil
	case routing.Stale:
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelInfo, "operator.reply",
			slog.String("outcome", "stale"),
			slog.Int("relay_message_id", ev.ReplyTo),
		)
		if _, err := d.toOperator(ctx, ev, textReplyStale); err != nil {
			return fmt.Errorf("dispatch: stale notice: %w", err)
		}
		return nil
	}

	if err := d.deliver(ctx, ev, uid); err != nil {
		kind := messaging.KindOf(err)
		logger.LogEvent(ctx, logger.Dispatch, slog.LevelError, "operator.reply",
			slog.String("status", "fail"),
			slog.Int64("target_user_id", uid),
			slog.String("err_kind", kind.String()),
			logger.Err(err),
		)
		report := replyFailed(uid, format.Markdown(err.Error()))
		if kind == messaging.KindRecipientUnreachable {
			report = replyUnreachable(uid)
		}
		if _, notifyErr := d.toOperator(ctx, ev, report); notifyErr != nil {
			err = errors.Join(err, notifyErr)
		}
		return fmt.Errorf("dispatch: deliver reply to %d: %w", uid, err)
	}

	logger.LogEvent(ctx, logger.Dispatch, slog.LevelInfo, "operator.reply",
		slog.String("status", "ok"),
		slog.Int64("target_user_id", uid),
		slog.Int("relay_message_id", ev.ReplyTo),
		slog.String("content_kind", string(ev.Content)),
	)
	d.sink.Answered(ctx, submission.Answer{
		RelayMessageID: ev.ReplyTo,
		UserID:         uid,
		OperatorID:     ev.Sender.ID,
	})
	if _, err := d.toOperator(ctx, ev, replyDelivered(uid)); err != nil {
		return fmt.Errorf("dispatch: confirm reply: %w", err)
	}
	return nil
}

// deliver sends the header notice and then a copy of the operator's message.
func (d *Dispatcher) deliver(ctx context.Context, ev messaging.Event, uid int64) error {
	if _, err := d.msg.SendText(ctx, uid, textReplyHeader,
		messaging.SendOptions{ParseMode: messaging.ParseMarkdown}); err != nil {
		return err
	}
	_, err := d.msg.CopyContent(ctx, ev.Ref(), uid, nil)
	return err
}

func (d *Dispatcher) toOperator(ctx context.Context, ev messaging.Event, text string) (messaging.MessageRef, error) {
	return d.msg.SendText(ctx, d.operator, text, messaging.SendOptions{
		ParseMode: messaging.ParseMarkdown,
		ReplyTo:   ev.MessageID,
	})
}

// payloadUserID parses the user id carried by a reply button.
func payloadUserID(ev messaging.Event) (int64, bool) {
	id, err := strconv.ParseInt(ev.Payload, 10, 64)
	return id, err == nil && id != 0
}
