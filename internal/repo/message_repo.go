package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// NewMessage describes a turn to append.
type NewMessage struct {
	ConversationID string
	Role           string
	Content        string
	MessageType    string // defaults to domain.MessageText
	MediaURL       *string
	TokensUsed     *int
}

// AppendMessage inserts an immutable message row. IDs are UUIDv7 so that
// (created_at, id) ordering matches insertion order.
func AppendMessage(ctx context.Context, db *gorm.DB, in NewMessage) (*domain.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	mt := in.MessageType
	if mt == "" {
		mt = domain.MessageText
	}
	m := &domain.Message{
		ID:             id.String(),
		ConversationID: in.ConversationID,
		Role:           in.Role,
		Content:        in.Content,
		MessageType:    mt,
		MediaURL:       in.MediaURL,
		TokensUsed:     in.TokensUsed,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
// A non-positive limit returns the whole conversation.
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

