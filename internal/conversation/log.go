package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/store"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Entry is one line of the in-memory history mirror.
type Entry struct {
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
}

// Log records every turn durably and keeps the most recent entries in a
// bounded ring. Store failures are logged and never reach the caller.
type Log struct {
	store     store.Store
	logger    *zap.Logger
	metrics   *observability.Metrics
	sessionID string
	now       func() time.Time

	mu      sync.Mutex
	ring    []Entry
	head    int
	size    int
	nextSeq uint64
}

func NewLog(st store.Store, capacity int, logger *zap.Logger, metrics *observability.Metrics) *Log {
	if capacity <= 0 {
		capacity = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		store:     st,
		logger:    logger,
		metrics:   metrics,
		sessionID: uuid.NewString(),
		now:       func() time.Time { return time.Now().UTC() },
		ring:      make([]Entry, capacity),
	}
}

func (l *Log) SessionID() string { return l.sessionID }

// RecordUser opens a new turn for text.
func (l *Log) RecordUser(ctx context.Context, text string) {
	at := l.append(SpeakerUser, text)
	if l.store == nil {
		return
	}
	_, err := l.store.InsertTurn(ctx, store.Turn{
		SessionID: l.sessionID,
		CreatedAt: at,
		UserInput: text,
	})
	if err != nil {
		l.storeFailed("insert_turn", err)
	}
}

// RecordAssistant attaches text to the newest open turn, or stores a
// standalone assistant row when nothing is open (greetings, reminders).
func (l *Log) RecordAssistant(ctx context.Context, text string) {
	at := l.append(SpeakerAssistant, text)
	if l.store == nil {
		return
	}
	attached, err := l.store.UpdateLastTurnReply(ctx, text)
	if err != nil {
		l.storeFailed("update_turn_reply", err)
		return
	}
	if attached {
		return
	}
	_, err = l.store.InsertTurn(ctx, store.Turn{
		SessionID: l.sessionID,
		CreatedAt: at,
		Reply:     text,
		Replied:   true,
	})
	if err != nil {
		l.storeFailed("insert_turn", err)
	}
}

// RecordNotice stores an announcement (greeting, reminder, prompt) as its own
// replied row so it never closes a user turn still being answered.
func (l *Log) RecordNotice(ctx context.Context, text string) {
	at := l.append(SpeakerAssistant, text)
	if l.store == nil {
		return
	}
	_, err := l.store.InsertTurn(ctx, store.Turn{
		SessionID: l.sessionID,
		CreatedAt: at,
		Reply:     text,
		Replied:   true,
	})
	if err != nil {
		l.storeFailed("insert_turn", err)
	}
}

// RecordUnknown stores a learning record for input no intent understood.
func (l *Log) RecordUnknown(ctx context.Context, text string) {
	if l.store == nil {
		return
	}
	_, err := l.store.InsertTurn(ctx, store.Turn{
		SessionID: l.sessionID,
		CreatedAt: l.now(),
		UserInput: text,
		Reply:     store.UnknownCommandReply,
		Replied:   true,
	})
	if err != nil {
		l.storeFailed("insert_learning_record", err)
	}
}

// Recent returns the mirrored entries oldest first.
func (l *Log) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, l.size)
	start := (l.head - l.size + len(l.ring)) % len(l.ring)
	for i := 0; i < l.size; i++ {
		out = append(out, l.ring[(start+i)%len(l.ring)])
	}
	return out
}

func (l *Log) append(speaker Speaker, text string) time.Time {
	at := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextSeq++
	l.ring[l.head] = Entry{
		Seq:     l.nextSeq,
		At:      at,
		Speaker: speaker,
		Text:    strings.TrimSpace(text),
	}
	l.head = (l.head + 1) % len(l.ring)
	if l.size < len(l.ring) {
		l.size++
	}
	return at
}

func (l *Log) storeFailed(op string, err error) {
	l.metrics.StoreError(op)
	l.logger.Warn("conversation store write failed",
		zap.String("op", op),
		zap.String("session_id", l.sessionID),
		zap.Error(err),
	)
}
