package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// Store binds the package functions to one *gorm.DB so the service layer can
// depend on narrow per-entity interfaces instead of a database handle.
type Store struct {
	DB *gorm.DB
}

// NewStore returns a Store over db.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

// FindSession returns the newest session for the identifier or ErrNotFound.
func (s *Store) FindSession(ctx context.Context, channel, identifier string) (*domain.Session, error) {
	return FindSession(ctx, s.DB, channel, identifier)
}

// CreateSession inserts a session keyed by the channel identifier.
func (s *Store) CreateSession(ctx context.Context, channel, identifier string) (*domain.Session, error) {
	return CreateSession(ctx, s.DB, channel, identifier)
}

// UpdateSessionContact records the name and e-mail learned for a session.
func (s *Store) UpdateSessionContact(ctx context.Context, id, name, email string) error {
	return UpdateSessionContact(ctx, s.DB, id, name, email)
}

// FindActiveConversation returns the session's active conversation or ErrNotFound.
func (s *Store) FindActiveConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	return FindActiveConversation(ctx, s.DB, sessionID)
}

// CreateConversation opens an active conversation at the initial stage.
func (s *Store) CreateConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	return CreateConversation(ctx, s.DB, sessionID)
}

// TouchConversation bumps conversation and session activity.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	return TouchConversation(ctx, s.DB, id)
}

// UpdateConversationStage sets the lead stage tag.
func (s *Store) UpdateConversationStage(ctx context.Context, id, stage string) error {
	return UpdateConversationStage(ctx, s.DB, id, stage)
}

// CloseConversation marks an active conversation closed.
func (s *Store) CloseConversation(ctx context.Context, id string) error {
	return CloseConversation(ctx, s.DB, id)
}

// AppendMessage stores one turn.
func (s *Store) AppendMessage(ctx context.Context, in NewMessage) (*domain.Message, error) {
	return AppendMessage(ctx, s.DB, in)
}

// ListMessages returns a conversation's turns, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	return ListMessages(ctx, s.DB, conversationID, limit)
}

// FindLeadByConversation returns the conversation's lead or ErrNotFound.
func (s *Store) FindLeadByConversation(ctx context.Context, conversationID string) (*domain.Lead, error) {
	return FindLeadByConversation(ctx, s.DB, conversationID)
}

// CreateLead inserts a new lead; a concurrent insert yields ErrDuplicate.
func (s *Store) CreateLead(ctx context.Context, sessionID, conversationID string, p domain.LeadProfile, score int, qualified bool) (*domain.Lead, error) {
	return CreateLead(ctx, s.DB, sessionID, conversationID, p, score, qualified)
}

// MergeLead coalesce-merges a profile into an existing lead.
func (s *Store) MergeLead(ctx context.Context, id string, p domain.LeadProfile, score int, qualified bool) (*domain.Lead, error) {
	return MergeLead(ctx, s.DB, id, p, score, qualified)
}

// MarkLeadSynced records a successful CRM forward.
func (s *Store) MarkLeadSynced(ctx context.Context, id string, at time.Time) error {
	return MarkLeadSynced(ctx, s.DB, id, at)
}

// ListLeads returns one filtered page of leads and the total.
func (s *Store) ListLeads(ctx context.Context, f LeadFilter) ([]domain.Lead, int64, error) {
	return ListLeads(ctx, s.DB, f)
}

// UpdateLeadStatus sets a lead's informational status.
func (s *Store) UpdateLeadStatus(ctx context.Context, id, status string) (*domain.Lead, error) {
	return UpdateLeadStatus(ctx, s.DB, id, status)
}

// Track implements the analytics sink on top of chat_events.
func (s *Store) Track(ctx context.Context, eventType, sessionID, conversationID string, props map[string]any) error {
	return InsertEvent(ctx, s.DB, eventType, sessionID, conversationID, props)
}

// GetIdempotency returns an unexpired record for the key or ErrNotFound.
func (s *Store) GetIdempotency(ctx context.Context, scope, subject, key string, now time.Time) (*domain.Idempotency, error) {
	return GetIdempotency(ctx, s.DB, scope, subject, key, now)
}

// CreateIdempotency stores a record; an existing key yields ErrDuplicate.
func (s *Store) CreateIdempotency(ctx context.Context, in IdempotencyRecord, ttl time.Duration) (*domain.Idempotency, error) {
	return CreateIdempotency(ctx, s.DB, in, ttl)
}

// CompleteIdempotency attaches the outcome to a claimed key.
func (s *Store) CompleteIdempotency(ctx context.Context, scope, subject, key, messageID string, status int, payload []byte) error {
	return CompleteIdempotency(ctx, s.DB, scope, subject, key, messageID, status, payload)
}

// DeleteIdempotency drops a key.
func (s *Store) DeleteIdempotency(ctx context.Context, scope, subject, key string) error {
	return DeleteIdempotency(ctx, s.DB, scope, subject, key)
}
