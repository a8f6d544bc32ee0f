// Package archive stores completed dialogues in Postgres.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/internal/submission"
)

const (
	insertSubmission = `INSERT INTO submissions
	(id, kind, user_id, username, display_name, content_kind, body, polarity, relay_message_id, created_at)
VALUES
	(:id, :kind, :user_id, :username, :display_name, :content_kind, :body, :polarity, NULLIF(:relay_message_id, 0), :created_at)
ON CONFLICT (id) DO NOTHING`

	markAnswered = `UPDATE submissions
SET answered_at = COALESCE(answered_at, $1), operator_id = COALESCE(operator_id, $2)
WHERE relay_message_id = $3`
)

// DB is the part of *sqlx.DB the archive uses.
type DB interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Postgres implements submission.Archive. Both writes are idempotent, so
// outbox retries are safe.
type Postgres struct {
	db DB
}

var _ submission.Archive = (*Postgres)(nil)

func New(db DB) *Postgres {
	return &Postgres{db: db}
}

// Save inserts the submission; a repeated id is ignored.
func (p *Postgres) Save(ctx context.Context, s submission.Submission) error {
	start := time.Now()
	res, err := p.db.NamedExecContext(ctx, insertSubmission, s)
	if err != nil {
		logger.LogEvent(ctx, logger.Archive, slog.LevelWarn, "archive.save",
			slog.String("status", "fail"),
			slog.String("submission_id", s.ID.String()),
			logger.Err(err),
		)
		return fmt.Errorf("archive: save %s: %w", s.ID, err)
	}
	logger.LogEvent(ctx, logger.Archive, slog.LevelDebug, "archive.save",
		slog.String("status", "ok"),
		slog.String("submission_id", s.ID.String()),
		slog.String("kind", string(s.Kind)),
		slog.Int64("rows", rowsAffected(res)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// MarkAnswered stamps the support request behind a relay post. Only the
// first answer is kept. A relay post with no archived row yields
// submission.ErrNotArchived.
func (p *Postgres) MarkAnswered(ctx context.Context, a submission.Answer) error {
	res, err := p.db.ExecContext(ctx, markAnswered, a.AnsweredAt, a.OperatorID, a.RelayMessageID)
	if err != nil {
		logger.LogEvent(ctx, logger.Archive, slog.LevelWarn, "archive.mark_answered",
			slog.String("status", "fail"),
			slog.Int("relay_message_id", a.RelayMessageID),
			logger.Err(err),
		)
		return fmt.Errorf("archive: mark answered %d: %w", a.RelayMessageID, err)
	}
	if rowsAffected(res) == 0 {
		logger.LogEvent(ctx, logger.Archive, slog.LevelWarn, "archive.mark_answered",
			slog.String("status", "miss"),
			slog.Int("relay_message_id", a.RelayMessageID),
		)
		return fmt.Errorf("archive: mark answered %d: %w", a.RelayMessageID, submission.ErrNotArchived)
	}
	logger.LogEvent(ctx, logger.Archive, slog.LevelDebug, "archive.mark_answered",
		slog.String("status", "ok"),
		slog.Int("relay_message_id", a.RelayMessageID),
		slog.Int64("rows", rowsAffected(res)),
	)
	return nil
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}
