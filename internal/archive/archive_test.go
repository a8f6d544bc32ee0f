package archive

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/internal/submission"
)

type fakeDB struct {
	query string
	arg   any
	args  []any
	rows  int64
	err   error
}

func (f *fakeDB) NamedExecContext(_ context.Context, query string, arg interface{}) (sql.Result, error) {
	f.query, f.arg = query, arg
	if f.err != nil {
		return nil, f.err
	}
	return sqlResult(f.rows), nil
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.query, f.args = query, args
	if f.err != nil {
		return nil, f.err
	}
	return sqlResult(f.rows), nil
}

type sqlResult int64

func (r sqlResult) LastInsertId() (int64, error) { return 0, errors.New("unsupported") }
func (r sqlResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestSaveBindsSubmission(t *testing.T) {
	db := &fakeDB{rows: 1}
	s := submission.Submission{
		ID:     uuid.New(),
		Kind:   submission.KindSupport,
		UserID: 42,
		Text:   "help",
	}
	require.NoError(t, New(db).Save(context.Background(), s))

	assert.Contains(t, db.query, "INSERT INTO submissions")
	assert.Contains(t, db.query, "ON CONFLICT (id) DO NOTHING")
	assert.Contains(t, db.query, "NULLIF(:relay_message_id, 0)")
	assert.Equal(t, s, db.arg)
}

func TestSaveWrapsDriverError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	err := New(db).Save(context.Background(), submission.Submission{ID: uuid.New()})
	require.Error(t, err)
	assert.ErrorIs(t, err, db.err)
	assert.Contains(t, err.Error(), "archive: save")
}

func TestMarkAnsweredKeepsFirstAnswer(t *testing.T) {
	db := &fakeDB{rows: 1}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := New(db).MarkAnswered(context.Background(), submission.Answer{
		RelayMessageID: 77,
		UserID:         42,
		OperatorID:     9,
		AnsweredAt:     at,
	})
	require.NoError(t, err)
	assert.Contains(t, db.query, "COALESCE(answered_at, $1)")
	assert.Equal(t, []any{at, int64(9), 77}, db.args)
}

func TestMarkAnsweredReportsMissingRow(t *testing.T) {
	db := &fakeDB{rows: 0}
	err := New(db).MarkAnswered(context.Background(), submission.Answer{RelayMessageID: 501, OperatorID: 9})
	require.ErrorIs(t, err, submission.ErrNotArchived)
	assert.Contains(t, err.Error(), "501")
}

func TestMarkAnsweredWrapsDriverError(t *testing.T) {
	db := &fakeDB{err: errors.New("deadlock")}
	err := New(db).MarkAnswered(context.Background(), submission.Answer{RelayMessageID: 5})
	require.ErrorIs(t, err, db.err)
}
