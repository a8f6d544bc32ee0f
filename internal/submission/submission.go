// Package submission records completed dialogues outside the relay core:
// an optional Postgres archive and an optional event stream, both written
// through the outbox so they never delay a user.
package submission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/outbox"
)

// Kind is the dialogue that produced a submission.
type Kind string

const (
	KindOrder   Kind = "order"
	KindSupport Kind = "support"
	KindReview  Kind = "review"
)

// Event types published on the stream.
const (
	EventOrderCreated    = "order.created"
	EventSupportCreated  = "support.created"
	EventSupportAnswered = "support.answered"
	EventReviewCreated   = "review.created"
)

// Submission is one completed dialogue.
type Submission struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Kind        Kind      `json:"kind" db:"kind"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Username    string    `json:"username,omitempty" db:"username"`
	DisplayName string    `json:"display_name" db:"display_name"`
	ContentKind string    `json:"content_kind" db:"content_kind"`
	Text        string    `json:"text,omitempty" db:"body"`
	Polarity    string    `json:"polarity,omitempty" db:"polarity"`
	// RelayMessageID is the operator-channel post, 0 when nothing was relayed.
	RelayMessageID int       `json:"relay_message_id,omitempty" db:"relay_message_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Answer marks a support request as replied to by an operator.
type Answer struct {
	RelayMessageID int       `json:"relay_message_id"`
	UserID         int64     `json:"user_id"`
	OperatorID     int64     `json:"operator_id"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// ErrNotArchived is returned by Archive.MarkAnswered when no archived
// submission carries the relay post.
var ErrNotArchived = errors.New("submission: relay post not archived")

// Sink receives submissions from the dialogue engine and the dispatcher.
// Implementations must not block on I/O.
type Sink interface {
	Submitted(ctx context.Context, s Submission)
	Answered(ctx context.Context, a Answer)
}

// Archive persists submissions.
type Archive interface {
	Save(ctx context.Context, s Submission) error
	MarkAnswered(ctx context.Context, a Answer) error
}

// Publisher emits a typed event with a JSON payload.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Submitted(context.Context, Submission) {}
func (Nop) Answered(context.Context, Answer)      {}

// Recorder fans submissions out to the archive and the publisher via the outbox.
// Either backend may be nil. The answered mark for a relay post is written
// only after the post's submission row has been saved.
type Recorder struct {
	queue     *outbox.Queue
	archive   Archive
	publisher Publisher
	now       func() time.Time

	mu sync.Mutex
	// saving holds relay posts whose Save job has not finished yet, with the
	// answer that arrived in the meantime, if any.
	saving map[int]*Answer
}

// NewRecorder wires the backends. A nil queue makes the recorder a no-op.
func NewRecorder(queue *outbox.Queue, archive Archive, publisher Publisher) *Recorder {
	return &Recorder{
		queue:     queue,
		archive:   archive,
		publisher: publisher,
		now:       time.Now,
		saving:    make(map[int]*Answer),
	}
}

// Submitted stamps the submission with an id and creation time and schedules its writes.
func (r *Recorder) Submitted(ctx context.Context, s Submission) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}
	if r.archive != nil {
		job := outbox.Job{
			Name:   "archive.save",
			Target: "submissions",
			Run: func(ctx context.Context) error {
				return r.archive.Save(ctx, s)
			},
		}
		if relay := s.RelayMessageID; relay != 0 && r.queue != nil {
			r.mu.Lock()
			r.saving[relay] = nil
			r.mu.Unlock()
			job.Done = func(ctx context.Context, err error) {
				r.saved(ctx, relay, err)
			}
		}
		r.submit(ctx, job)
	}
	if r.publisher != nil {
		typ := eventFor(s.Kind)
		r.enqueue(ctx, "events.publish", typ, func(ctx context.Context) error {
			return r.publisher.Publish(ctx, typ, s)
		})
	}
}

// Answered schedules the answered mark and the support.answered event.
func (r *Recorder) Answered(ctx context.Context, a Answer) {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = r.now().UTC()
	}
	if r.archive != nil && !r.deferAnswer(a) {
		r.enqueue(ctx, "archive.mark_answered", "submissions", r.markAnswered(a))
	}
	if r.publisher != nil {
		r.enqueue(ctx, "events.publish", EventSupportAnswered, func(ctx context.Context) error {
			return r.publisher.Publish(ctx, EventSupportAnswered, a)
		})
	}
}

// deferAnswer parks the answer while the Save job for its relay post is in flight.
func (r *Recorder) deferAnswer(a Answer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, pending := r.saving[a.RelayMessageID]; !pending {
		return false
	}
	r.saving[a.RelayMessageID] = &a
	return true
}

// saved releases an answer parked behind the Save job for relay.
func (r *Recorder) saved(ctx context.Context, relay int, saveErr error) {
	r.mu.Lock()
	a := r.saving[relay]
	delete(r.saving, relay)
	r.mu.Unlock()
	if a == nil {
		return
	}
	if saveErr != nil {
		logger.Warn(ctx, "outbox", "archive.answer.dropped",
			slog.Int("relay_message_id", relay),
			logger.Err(saveErr),
		)
		return
	}
	job := outbox.Job{Name: "archive.mark_answered", Target: "submissions", Run: r.markAnswered(*a)}
	if err := r.queue.Enqueue(ctx, job); err != nil {
		// Closed or full queue: write the mark on this worker.
		if err := job.Run(ctx); err != nil {
			logger.Warn(ctx, "outbox", "archive.answer.dropped",
				slog.Int("relay_message_id", relay),
				logger.Err(err),
			)
		}
	}
}

func (r *Recorder) markAnswered(a Answer) func(context.Context) error {
	return func(ctx context.Context) error {
		return r.archive.MarkAnswered(ctx, a)
	}
}

func (r *Recorder) enqueue(ctx context.Context, name, target string, run func(context.Context) error) {
	r.submit(ctx, outbox.Job{Name: name, Target: target, Run: run})
}

func (r *Recorder) submit(ctx context.Context, job outbox.Job) {
	if r.queue == nil {
		return
	}
	if err := r.queue.Enqueue(ctx, job); err != nil {
		if job.Done != nil {
			job.Done(ctx, err)
		}
		logger.Warn(ctx, "outbox", "outbox.enqueue.fail",
			slog.String("job", job.Name),
			logger.Err(err),
		)
	}
}

func eventFor(k Kind) string {
	switch k {
	case KindOrder:
		return EventOrderCreated
	case KindSupport:
		return EventSupportCreated
	default:
		return EventReviewCreated
	}
}
