package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// InsertEvent stores an analytics event. Empty session or conversation IDs
// are stored as NULL.
func InsertEvent(ctx context.Context, db *gorm.DB, eventType, sessionID, conversationID string, props map[string]any) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	ev := &domain.ChatEvent{
		ID:             uuid.NewString(),
		EventType:      eventType,
		SessionID:      nonEmpty(&sessionID),
		ConversationID: nonEmpty(&conversationID),
		Properties:     datatypes.JSON(raw),
		CreatedAt:      time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(ev).Error
}
