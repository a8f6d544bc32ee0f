package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/internal/messaging"
	"github.com/m3rciful/relaybot/internal/messaging/messagingtest"
	"github.com/m3rciful/relaybot/internal/routing"
	"github.com/m3rciful/relaybot/internal/session"
	"github.com/m3rciful/relaybot/internal/submission"
)

const operatorChat int64 = -100123

type recordingSink struct {
	mu    sync.Mutex
	items []submission.Submission
}

func (s *recordingSink) Submitted(_ context.Context, sub submission.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, sub)
}

func (s *recordingSink) Answered(context.Context, submission.Answer) {}

type harness struct {
	msg      *messagingtest.Messenger
	sessions *session.Store
	routes   *routing.Table
	sink     *recordingSink
	engine   *Engine
}

func newHarness() *harness {
	h := &harness{
		msg:      messagingtest.New(500),
		sessions: session.NewStore(),
		routes:   routing.NewTable(routing.Options{}),
		sink:     &recordingSink{},
	}
	h.engine = New(Config{
		Messenger:      h.msg,
		Sessions:       h.sessions,
		Routes:         h.routes,
		Sink:           h.sink,
		OperatorChatID: operatorChat,
	})
	return h
}

var alice = messaging.Sender{ID: 42, FirstName: "Alice", LastName: "Smith", Username: "alice_s"}

func selection(from messaging.Sender, action string, msgID int) messaging.Event {
	return messaging.Event{
		Kind:      messaging.EventSelection,
		ID:        "cb-" + action,
		ChatID:    from.ID,
		MessageID: msgID,
		Sender:    from,
		Action:    action,
	}
}

func text(from messaging.Sender, body string, msgID int) messaging.Event {
	return messaging.Event{
		Kind:      messaging.EventContent,
		ChatID:    from.ID,
		MessageID: msgID,
		Sender:    from,
		Content:   messaging.ContentText,
		Text:      body,
	}
}

func media(from messaging.Sender, kind messaging.ContentKind, msgID int) messaging.Event {
	ev := text(from, "", msgID)
	ev.Content = kind
	return ev
}

func (h *harness) handle(t *testing.T, ev messaging.Event) Result {
	t.Helper()
	res, err := h.engine.Handle(context.Background(), ev)
	require.NoError(t, err)
	return res
}

func (h *harness) state(uid int64) session.State {
	sess, _ := h.sessions.Get(uid)
	return sess.State
}

func TestSupportTextRelayRecordsRoute(t *testing.T) {
	h := newHarness()
	require.Equal(t, Handled, h.handle(t, selection(alice, ActionStartSupport, 10)))
	require.Equal(t, session.StateSupportAwaitingMessage, h.state(alice.ID))

	require.Equal(t, Handled, h.handle(t, text(alice, "Need refund", 11)))
	require.Equal(t, session.StateIdle, h.state(alice.ID))

	posts := h.msg.SentTo(operatorChat)
	require.Len(t, posts, 1)
	post := posts[0]
	require.Equal(t, messaging.ParseMarkdown, post.ParseMode)
	require.Contains(t, post.Text, "НОВЫЙ ЗАПРОС В ТЕХПОДДЕРЖКУ")
	require.Contains(t, post.Text, "Alice Smith (@alice\\_s)")
	require.Contains(t, post.Text, "`42`")
	require.Contains(t, post.Text, "Need refund")
	require.Equal(t, ReplyKeyboard(alice.ID), post.Keyboard)

	uid, ok := h.routes.Resolve(post.Ref.MessageID)
	require.True(t, ok)
	require.Equal(t, alice.ID, uid)

	toUser := h.msg.SentTo(alice.ID)
	require.Equal(t, textSupportAccepted, toUser[len(toUser)-1].Text)
	require.Equal(t, 11, toUser[len(toUser)-1].ReplyTo)

	require.Len(t, h.sink.items, 1)
	require.Equal(t, submission.KindSupport, h.sink.items[0].Kind)
	require.Equal(t, post.Ref.MessageID, h.sink.items[0].RelayMessageID)
}

func TestSupportMediaRelaySendsHeaderThenCopy(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartSupport, 10))
	h.handle(t, media(alice, messaging.ContentPhoto, 11))

	posts := h.msg.SentTo(operatorChat)
	require.Len(t, posts, 2)
	require.Contains(t, posts[0].Text, "НОВЫЙ ЗАПРОС В ТЕХПОДДЕРЖКУ")
	require.Nil(t, posts[0].Keyboard)
	require.Equal(t, messaging.MessageRef{ChatID: alice.ID, MessageID: 11}, posts[1].CopyOf)
	require.Equal(t, ReplyKeyboard(alice.ID), posts[1].Keyboard)

	_, ok := h.routes.Resolve(posts[0].Ref.MessageID)
	require.False(t, ok, "header must not be routable")
	uid, ok := h.routes.Resolve(posts[1].Ref.MessageID)
	require.True(t, ok)
	require.Equal(t, alice.ID, uid)
}

func TestSupportUnsupportedContentIsIgnored(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartSupport, 10))
	require.Equal(t, Ignored, h.handle(t, media(alice, messaging.ContentUnsupported, 11)))
	require.Equal(t, session.StateSupportAwaitingMessage, h.state(alice.ID))
	require.Empty(t, h.msg.SentTo(operatorChat))
}

func TestSupportRelayFailureLeavesNoRoute(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartSupport, 10))
	h.msg.FailSend = func(chatID int64) error {
		if chatID == operatorChat {
			return &messaging.Error{Kind: messaging.KindOther, Op: "send", Err: errors.New("chat not found")}
		}
		return nil
	}

	res, err := h.engine.Handle(context.Background(), text(alice, "Need refund", 11))
	require.Equal(t, Handled, res)
	require.ErrorIs(t, err, ErrRelayPostFailed)
	require.Equal(t, session.StateIdle, h.state(alice.ID))
	require.Zero(t, h.routes.Len())
	require.Empty(t, h.sink.items)

	toUser := h.msg.SentTo(alice.ID)
	require.Equal(t, textSupportFailed, toUser[len(toUser)-1].Text)
	require.Equal(t, MenuKeyboard(), toUser[len(toUser)-1].Keyboard)
}

func TestSupportMediaCopyFailureAfterHeaderLeavesNoRoute(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartSupport, 10))
	h.msg.FailCopy = func(chatID int64) error {
		if chatID == operatorChat {
			return &messaging.Error{Kind: messaging.KindOther, Op: "copy", Err: errors.New("copy failed")}
		}
		return nil
	}

	res, err := h.engine.Handle(context.Background(), media(alice, messaging.ContentPhoto, 11))
	require.Equal(t, Handled, res)
	require.ErrorIs(t, err, ErrRelayPostFailed)
	require.Zero(t, h.routes.Len())
	require.Equal(t, session.StateIdle, h.state(alice.ID))
	require.Empty(t, h.sink.items)

	posts := h.msg.SentTo(operatorChat)
	require.Len(t, posts, 1)
	require.Contains(t, posts[0].Text, "НОВЫЙ ЗАПРОС В ТЕХПОДДЕРЖКУ")

	toUser := h.msg.SentTo(alice.ID)
	require.Equal(t, textSupportFailed, toUser[len(toUser)-1].Text)
}

func TestSupportLongTextFallsBackToHeaderThenCopy(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartSupport, 10))
	body := strings.Repeat("a_b", 1300)
	require.False(t, fitsMessage(SupportPost(alice, body)))

	require.Equal(t, Handled, h.handle(t, text(alice, body, 11)))

	posts := h.msg.SentTo(operatorChat)
	require.Len(t, posts, 2)
	require.Equal(t, SupportHeader(alice), posts[0].Text)
	require.Nil(t, posts[0].Keyboard)
	require.Equal(t, messaging.MessageRef{ChatID: alice.ID, MessageID: 11}, posts[1].CopyOf)
	require.Equal(t, ReplyKeyboard(alice.ID), posts[1].Keyboard)

	uid, ok := h.routes.Resolve(posts[1].Ref.MessageID)
	require.True(t, ok)
	require.Equal(t, alice.ID, uid)
	require.Equal(t, posts[1].Ref.MessageID, h.sink.items[0].RelayMessageID)
}

func TestReviewLongTextFallsBackToHeaderThenCopy(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartReview, 10))
	prompt := h.msg.SentTo(alice.ID)[0]
	h.handle(t, selection(alice, ActionReviewPositive, prompt.Ref.MessageID))

	body := strings.Repeat("*", 3000)
	require.Equal(t, Handled, h.handle(t, text(alice, body, 20)))

	posts := h.msg.SentTo(operatorChat)
	require.Len(t, posts, 2)
	require.Equal(t, ReviewHeader(alice, PolarityPositive), posts[0].Text)
	require.Equal(t, messaging.MessageRef{ChatID: alice.ID, MessageID: 20}, posts[1].CopyOf)
	require.Nil(t, posts[1].Keyboard)
}

func TestFitsMessageCountsUTF16Units(t *testing.T) {
	require.True(t, fitsMessage(strings.Repeat("a", maxMessageLen)))
	require.False(t, fitsMessage(strings.Repeat("a", maxMessageLen+1)))
	require.True(t, fitsMessage(strings.Repeat("я", maxMessageLen)))
	require.True(t, fitsMessage(strings.Repeat("😀", maxMessageLen/2)))
	require.False(t, fitsMessage(strings.Repeat("😀", maxMessageLen/2+1)))
}

func TestOrderAcceptsTextAndRepromptsOtherwise(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartOrder, 10))
	require.Equal(t, session.StateOrderAwaitingItem, h.state(alice.ID))

	require.Equal(t, Handled, h.handle(t, media(alice, messaging.ContentSticker, 11)))
	require.Equal(t, session.StateOrderAwaitingItem, h.state(alice.ID))
	toUser := h.msg.SentTo(alice.ID)
	require.Equal(t, textOrderReprompt, toUser[len(toUser)-1].Text)

	require.Equal(t, Handled, h.handle(t, text(alice, "Two boxes", 12)))
	require.Equal(t, session.StateIdle, h.state(alice.ID))
	require.Empty(t, h.msg.SentTo(operatorChat), "orders are not posted to operators")
	require.Len(t, h.sink.items, 1)
	require.Equal(t, "Two boxes", h.sink.items[0].Text)
}

func TestNegativeReviewScenario(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartReview, 10))
	require.Equal(t, session.StateReviewAwaitingType, h.state(alice.ID))
	prompt := h.msg.SentTo(alice.ID)[0]
	require.Equal(t, ReviewTypeKeyboard(), prompt.Keyboard)

	sess, _ := h.sessions.Get(alice.ID)
	require.Equal(t, prompt.Ref.MessageID, sess.Int(ScratchPromptMessageID))

	require.Equal(t, Handled, h.handle(t, selection(alice, ActionReviewNegative, prompt.Ref.MessageID)))
	require.Equal(t, session.StateReviewAwaitingText, h.state(alice.ID))
	require.Len(t, h.msg.Edits, 1)
	require.Equal(t, prompt.Ref.MessageID, h.msg.Edits[0].Ref.MessageID)
	require.Equal(t, textReviewNegativeAsk, h.msg.Edits[0].Text)

	require.Equal(t, Handled, h.handle(t, text(alice, "Slow delivery", 20)))
	require.Equal(t, session.StateIdle, h.state(alice.ID))

	posts := h.msg.SentTo(operatorChat)
	require.Len(t, posts, 1)
	require.Contains(t, posts[0].Text, "ОТРИЦАТЕЛЬНЫЙ ОТЗЫВ")
	require.Contains(t, posts[0].Text, "Slow delivery")
	require.Nil(t, posts[0].Keyboard)
	require.Zero(t, h.routes.Len(), "reviews never create routes")

	toUser := h.msg.SentTo(alice.ID)
	require.Equal(t, textReviewNegativeOK, toUser[len(toUser)-1].Text)
	require.Equal(t, "negative", h.sink.items[0].Polarity)
}

func TestReviewPostFailureStillThanksUser(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartReview, 10))
	h.handle(t, selection(alice, ActionReviewPositive, 501))
	h.msg.FailSend = func(chatID int64) error {
		if chatID == operatorChat {
			return errors.New("boom")
		}
		return nil
	}
	require.Equal(t, Handled, h.handle(t, text(alice, "Great", 20)))
	toUser := h.msg.SentTo(alice.ID)
	require.Equal(t, textReviewPositiveOK, toUser[len(toUser)-1].Text)
}

func TestPolarityEditFallsBackToNewMessage(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartReview, 10))
	h.msg.FailEdit = func(messaging.MessageRef) error { return errors.New("message to edit not found") }

	require.Equal(t, Handled, h.handle(t, selection(alice, ActionReviewPositive, 501)))
	toUser := h.msg.SentTo(alice.ID)
	require.Equal(t, textReviewPositiveAsk, toUser[len(toUser)-1].Text)
}

func TestPolarityOutsideReviewIsStale(t *testing.T) {
	h := newHarness()
	require.Equal(t, Stale, h.handle(t, selection(alice, ActionReviewPositive, 9)))
	require.Equal(t, session.StateIdle, h.state(alice.ID))
	require.Empty(t, h.msg.Acks, "stale selections are acknowledged by the dispatcher")

	h.handle(t, selection(alice, ActionStartReview, 10))
	h.handle(t, selection(alice, ActionReviewPositive, 501))
	require.Equal(t, Stale, h.handle(t, selection(alice, ActionReviewNegative, 501)))
	sess, _ := h.sessions.Get(alice.ID)
	require.Equal(t, PolarityPositive, sess.String(ScratchPolarity))
}

func TestCancelFromEveryState(t *testing.T) {
	setups := map[session.State][]messaging.Event{
		session.StateIdle:                   nil,
		session.StateOrderAwaitingItem:      {selection(alice, ActionStartOrder, 1)},
		session.StateSupportAwaitingMessage: {selection(alice, ActionStartSupport, 1)},
		session.StateReviewAwaitingType:     {selection(alice, ActionStartReview, 1)},
		session.StateReviewAwaitingText:     {selection(alice, ActionStartReview, 1), selection(alice, ActionReviewPositive, 501)},
	}
	for st, events := range setups {
		t.Run(string(st), func(t *testing.T) {
			h := newHarness()
			for _, ev := range events {
				h.handle(t, ev)
			}
			require.Equal(t, st, h.state(alice.ID))

			cancel := selection(alice, ActionCancel, 77)
			require.Equal(t, Handled, h.handle(t, cancel))
			require.Equal(t, Handled, h.handle(t, cancel))

			sess, ok := h.sessions.Get(alice.ID)
			require.False(t, ok)
			require.Equal(t, session.StateIdle, sess.State)
			require.Empty(t, sess.Scratch)

			require.Contains(t, h.msg.Deleted, messaging.MessageRef{ChatID: alice.ID, MessageID: 77})
			toUser := h.msg.SentTo(alice.ID)
			require.Equal(t, TextCancelled, toUser[len(toUser)-1].Text)
			require.Equal(t, MenuKeyboard(), toUser[len(toUser)-1].Keyboard)
		})
	}
}

func TestMenuSelectionReplacesActiveDialogue(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartReview, 10))
	h.handle(t, selection(alice, ActionReviewPositive, 501))
	h.handle(t, selection(alice, ActionStartSupport, 12))

	sess, _ := h.sessions.Get(alice.ID)
	require.Equal(t, session.StateSupportAwaitingMessage, sess.State)
	require.Empty(t, sess.String(ScratchPolarity))
	require.Equal(t, []messaging.MessageRef{{ChatID: alice.ID, MessageID: 501}}, h.msg.Deleted)

	supportPrompt := h.msg.SentTo(alice.ID)[1]
	require.Equal(t, supportPrompt.Ref.MessageID, sess.Int(ScratchPromptMessageID))
}

func TestFirstDialogueDeletesNothing(t *testing.T) {
	h := newHarness()
	h.handle(t, selection(alice, ActionStartOrder, 10))
	require.Empty(t, h.msg.Deleted)
}

func TestIdleContentIsIgnored(t *testing.T) {
	h := newHarness()
	require.Equal(t, Ignored, h.handle(t, text(alice, "hello?", 5)))
	require.Empty(t, h.msg.Sent)
}

func TestConcurrentUsersDoNotShareScratch(t *testing.T) {
	h := newHarness()
	users := make([]messaging.Sender, 20)
	for i := range users {
		users[i] = messaging.Sender{ID: int64(1000 + i), FirstName: "U"}
	}
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, u messaging.Sender) {
			defer wg.Done()
			action := ActionReviewPositive
			if i%2 == 1 {
				action = ActionReviewNegative
			}
			_, _ = h.engine.Handle(context.Background(), selection(u, ActionStartReview, 1))
			_, _ = h.engine.Handle(context.Background(), selection(u, action, 2))
		}(i, u)
	}
	wg.Wait()

	for i, u := range users {
		sess, ok := h.sessions.Get(u.ID)
		require.True(t, ok)
		want := PolarityPositive
		if i%2 == 1 {
			want = PolarityNegative
		}
		require.Equal(t, want, sess.String(ScratchPolarity), "user %d", u.ID)
	}
}
