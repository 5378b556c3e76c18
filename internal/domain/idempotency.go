package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency scopes.
const (
	ScopeWebChat         = "web_chat"
	ScopeWhatsAppMessage = "whatsapp_message"
)

// Idempotency records the outcome of an inbound message that has already
// been processed, keyed by (scope, subject, key). Web clients supply the key
// in the Idempotency-Key header and the subject is their session token; for
// WhatsApp the key is the provider message id and the subject the phone.
// Payload holds the response that is replayed on retries.
type Idempotency struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	Scope     string         `gorm:"type:varchar(32);not null;uniqueIndex:ux_idem_scope_subject_key,priority:1"`
	Subject   string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_idem_scope_subject_key,priority:2"`
	Key       string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_idem_scope_subject_key,priority:3"`
	MessageID string         `gorm:"type:varchar(36)"`
	Status    int            `gorm:"not null"`
	Payload   datatypes.JSON `gorm:""`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time      `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency_keys" }
