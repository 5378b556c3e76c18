// Package repo implements the data persistence layer for domain entities,
// backed by GORM.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
//
// Error semantics:
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// identityColumn returns the column that carries a channel's identifier.
func identityColumn(channel string) string {
	if channel == domain.ChannelWhatsApp {
		return "phone_number"
	}
	return "session_token"
}

// FindSession returns the most recently created session bound to identifier
// on channel, or ErrNotFound.
func FindSession(ctx context.Context, db *gorm.DB, channel, identifier string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("channel = ? AND "+identityColumn(channel)+" = ?", channel, identifier).
		Order("created_at DESC").
		Limit(1).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a session with identifier stored in the channel's
// key field (phone for WhatsApp, session token for web).
func CreateSession(ctx context.Context, db *gorm.DB, channel, identifier string) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{
		ID:             uuid.NewString(),
		Channel:        channel,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	id := identifier
	if channel == domain.ChannelWhatsApp {
		s.PhoneNumber = &id
	} else {
		s.SessionToken = &id
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSessionContact records the display name / email learned for a session.
// Empty arguments leave the stored value untouched.
func UpdateSessionContact(ctx context.Context, db *gorm.DB, id, name, email string) error {
	updates := map[string]any{}
	if name != "" {
		updates["user_name"] = name
	}
	if email != "" {
		updates["user_email"] = email
	}
	if len(updates) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", id).Updates(updates).Error
}
