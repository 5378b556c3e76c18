package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// FindActiveConversation returns the newest active conversation of a session,
// or ErrNotFound.
func FindActiveConversation(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("session_id = ? AND status = ?", sessionID, domain.ConversationActive).
		Order("created_at DESC").
		Limit(1).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts an active conversation at the initial lead stage.
func CreateConversation(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    domain.ConversationActive,
		LeadStage: domain.LeadStageInitial,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// TouchConversation bumps updated_at on the conversation and last_activity_at
// on its session.
func TouchConversation(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c domain.Conversation
		if err := tx.Select("id", "session_id").Where("id = ?", id).First(&c).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Conversation{}).Where("id = ?", id).
			UpdateColumn("updated_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Session{}).Where("id = ?", c.SessionID).
			UpdateColumn("last_activity_at", now).Error
	})
}

// UpdateConversationStage sets the informational lead stage tag.
func UpdateConversationStage(ctx context.Context, db *gorm.DB, id, stage string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"lead_stage": stage, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseConversation marks an active conversation closed. Closing an already
// closed or missing conversation returns ErrNotFound.
func CloseConversation(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND status = ?", id, domain.ConversationActive).
		Updates(map[string]any{"status": domain.ConversationClosed, "closed_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
