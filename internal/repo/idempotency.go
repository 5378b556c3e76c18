package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// ErrDuplicate indicates a unique constraint violation, e.g. an idempotency
// record for the same (scope, subject, key) or a second lead for a conversation.
var ErrDuplicate = errors.New("duplicate")

// IdempotencyRecord is the data stored for a processed request.
type IdempotencyRecord struct {
	Scope     string
	Subject   string
	Key       string
	MessageID string
	Status    int
	Payload   []byte
}

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, scope, subject, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("scope = ? AND subject = ? AND key = ? AND expires_at > ?", scope, subject, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
// Expired rows holding the same key are purged first so keys can be reused.
func CreateIdempotency(ctx context.Context, db *gorm.DB, in IdempotencyRecord, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).
		Where("scope = ? AND subject = ? AND key = ? AND expires_at <= ?", in.Scope, in.Subject, in.Key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}

	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		Scope:     in.Scope,
		Subject:   in.Subject,
		Key:       in.Key,
		MessageID: in.MessageID,
		Status:    in.Status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if len(in.Payload) > 0 {
		rec.Payload = datatypes.JSON(in.Payload)
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// isDuplicate recognizes unique violations across drivers; glebarez/sqlite
// often returns plain-text errors for them.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}

// CompleteIdempotency fills in the outcome of a previously claimed key.
func CompleteIdempotency(ctx context.Context, db *gorm.DB, scope, subject, key, messageID string, status int, payload []byte) error {
	updates := map[string]any{"message_id": messageID, "status": status}
	if len(payload) > 0 {
		updates["payload"] = datatypes.JSON(payload)
	}
	res := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("scope = ? AND subject = ? AND key = ?", scope, subject, key).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteIdempotency drops a claim so the key can be retried.
func DeleteIdempotency(ctx context.Context, db *gorm.DB, scope, subject, key string) error {
	return db.WithContext(ctx).
		Where("scope = ? AND subject = ? AND key = ?", scope, subject, key).
		Delete(&domain.Idempotency{}).Error
}
