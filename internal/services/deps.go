package services

import (
	"context"
	"time"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/repo"
)

// SessionRepo persists sessions. FindSession returns repo.ErrNotFound when
// no session carries the identifier.
type SessionRepo interface {
	FindSession(ctx context.Context, channel, identifier string) (*domain.Session, error)
	CreateSession(ctx context.Context, channel, identifier string) (*domain.Session, error)
	UpdateSessionContact(ctx context.Context, id, name, email string) error
}

// ConversationRepo persists conversations.
type ConversationRepo interface {
	FindActiveConversation(ctx context.Context, sessionID string) (*domain.Conversation, error)
	CreateConversation(ctx context.Context, sessionID string) (*domain.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	UpdateConversationStage(ctx context.Context, id, stage string) error
	CloseConversation(ctx context.Context, id string) error
}

// MessageRepo appends and reads conversation turns.
type MessageRepo interface {
	AppendMessage(ctx context.Context, in repo.NewMessage) (*domain.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

// LeadRepo persists leads with coalesce-merge updates.
type LeadRepo interface {
	FindLeadByConversation(ctx context.Context, conversationID string) (*domain.Lead, error)
	CreateLead(ctx context.Context, sessionID, conversationID string, p domain.LeadProfile, score int, qualified bool) (*domain.Lead, error)
	MergeLead(ctx context.Context, id string, p domain.LeadProfile, score int, qualified bool) (*domain.Lead, error)
	MarkLeadSynced(ctx context.Context, id string, at time.Time) error
	ListLeads(ctx context.Context, f repo.LeadFilter) ([]domain.Lead, int64, error)
	UpdateLeadStatus(ctx context.Context, id, status string) (*domain.Lead, error)
}

// EventSink receives analytics events. Callers ignore its errors beyond logging.
type EventSink interface {
	Track(ctx context.Context, eventType, sessionID, conversationID string, props map[string]any) error
}

// IdempotencyRepo stores processed-request records.
type IdempotencyRepo interface {
	GetIdempotency(ctx context.Context, scope, subject, key string, now time.Time) (*domain.Idempotency, error)
	CreateIdempotency(ctx context.Context, in repo.IdempotencyRecord, ttl time.Duration) (*domain.Idempotency, error)
	CompleteIdempotency(ctx context.Context, scope, subject, key, messageID string, status int, payload []byte) error
	DeleteIdempotency(ctx context.Context, scope, subject, key string) error
}

// Locker serializes work per key; see package lock.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Recorder receives pipeline metrics. A nil Recorder is allowed.
type Recorder interface {
	MessageProcessed(channel string, score int)
	HandoffRequested(channel string)
	CompletionFailed()
	CRMForward(ok bool)
}

// CRMSink accepts a contact form submission.
type CRMSink interface {
	SubmitLead(ctx context.Context, name, email, phone string) error
}
