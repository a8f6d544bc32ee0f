// Package session keeps the in-memory conversation state of each user.
package session

import (
	"errors"
	"maps"
	"sync"
)

// ErrNoActiveSession is returned when a scratch update targets an idle user.
var ErrNoActiveSession = errors.New("session: no active session")

// Kind names the dialogue a session belongs to.
type Kind string

const (
	KindNone    Kind = ""
	KindOrder   Kind = "order"
	KindSupport Kind = "support"
	KindReview  Kind = "review"
)

// State is a position inside a dialogue.
type State string

const (
	StateIdle                   State = "idle"
	StateOrderAwaitingItem      State = "order.awaiting_item"
	StateSupportAwaitingMessage State = "support.awaiting_message"
	StateReviewAwaitingType     State = "review.awaiting_type"
	StateReviewAwaitingText     State = "review.awaiting_text"
)

// Kind returns the dialogue that owns the state.
func (s State) Kind() Kind {
	switch s {
	case StateOrderAwaitingItem:
		return KindOrder
	case StateSupportAwaitingMessage:
		return KindSupport
	case StateReviewAwaitingType, StateReviewAwaitingText:
		return KindReview
	default:
		return KindNone
	}
}

// Session is the active dialogue of one user.
type Session struct {
	Kind    Kind
	State   State
	Scratch map[string]any
}

// Idle is the implicit session of a user without an entry.
var Idle = Session{Kind: KindNone, State: StateIdle}

func (s Session) clone() Session {
	s.Scratch = maps.Clone(s.Scratch)
	return s
}

// String returns a scratch value as string, "" when absent or of another type.
func (s Session) String(key string) string {
	v, _ := s.Scratch[key].(string)
	return v
}

// Int returns a scratch value as int, 0 when absent or of another type.
func (s Session) Int(key string) int {
	v, _ := s.Scratch[key].(int)
	return v
}

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// Store is a sharded map of user id to Session. Operations on one user are
// atomic; unrelated users only contend when they hash to the same shard.
// Returned sessions are copies and may be modified freely.
type Store struct {
	shards [shardCount]shard
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[int64]Session)
	}
	return s
}

func (s *Store) shardFor(userID int64) *shard {
	return &s.shards[uint64(userID)%shardCount]
}

// Get returns the session of userID; ok is false when the user is idle.
func (s *Store) Get(userID int64) (Session, bool) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[userID]
	if !ok {
		return Idle, false
	}
	return sess.clone(), true
}

// Set replaces the session of userID unconditionally.
func (s *Store) Set(userID int64, kind Kind, state State, scratch map[string]any) {
	sess := Session{Kind: kind, State: state, Scratch: maps.Clone(scratch)}
	sh := s.shardFor(userID)
	sh.mu.Lock()
	sh.sessions[userID] = sess
	sh.mu.Unlock()
}

// UpdateScratch sets one scratch key of an active session.
func (s *Store) UpdateScratch(userID int64, key string, value any) error {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[userID]
	if !ok {
		return ErrNoActiveSession
	}
	scratch := maps.Clone(sess.Scratch)
	if scratch == nil {
		scratch = make(map[string]any, 1)
	}
	scratch[key] = value
	sess.Scratch = scratch
	sh.sessions[userID] = sess
	return nil
}

// Clear drops the session of userID. Clearing an idle user is a no-op.
func (s *Store) Clear(userID int64) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	delete(sh.sessions, userID)
	sh.mu.Unlock()
}

// CompareAndSet stores next only if the current state equals expect.
// An idle user matches StateIdle.
func (s *Store) CompareAndSet(userID int64, expect State, next Session) bool {
	next = next.clone()
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if currentState(sh.sessions, userID) != expect {
		return false
	}
	if next.State == StateIdle {
		delete(sh.sessions, userID)
		return true
	}
	sh.sessions[userID] = next
	return true
}

// CompareAndClear drops the session only if its state equals expect and
// returns the removed session.
func (s *Store) CompareAndClear(userID int64, expect State) (Session, bool) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[userID]
	if !ok || sess.State != expect {
		return Idle, false
	}
	delete(sh.sessions, userID)
	return sess, true
}

// Len returns the number of non-idle users.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

func currentState(m map[int64]Session, userID int64) State {
	if sess, ok := m[userID]; ok {
		return sess.State
	}
	return StateIdle
}
