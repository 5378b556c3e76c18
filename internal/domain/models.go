// Package domain defines the persistence models for sessions, conversations,
// messages, leads and analytics events. These types are mapped with GORM and
// form the core data layer of the lead qualification service.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Channels a message can arrive through.
const (
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"
)

// ValidChannel reports whether ch is a supported channel.
func ValidChannel(ch string) bool {
	return ch == ChannelWeb || ch == ChannelWhatsApp
}

// Conversation statuses.
const (
	ConversationActive = "active"
	ConversationClosed = "closed"
)

// Lead stages of a conversation. New conversations start at initial; the
// chat pipeline advances the stage as the profile fills in.
const (
	LeadStageInitial   = "initial"
	LeadStageProfiling = "profiling"
	LeadStageOffered   = "offered"
	LeadStageQualified = "qualified"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message types.
const (
	MessageText  = "text"
	MessageImage = "image"
)

// Lead statuses.
const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
	LeadConverted = "converted"
	LeadLost      = "lost"
)

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s string) bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadConverted, LeadLost:
		return true
	}
	return false
}

// Timeline tags.
const (
	TimelineShort  = "curto"
	TimelineMedium = "médio"
	TimelineLong   = "longo"
)

// Session is one end-user identity on one channel. WhatsApp sessions are
// keyed by PhoneNumber, web sessions by the client-generated SessionToken.
// Lookups take the most recently created row; uniqueness is not enforced.
type Session struct {
	ID             string    `json:"id"                     gorm:"type:varchar(36);primaryKey"`
	Channel        string    `json:"channel"                gorm:"type:varchar(16);not null;check:channel IN ('web','whatsapp');index:idx_session_phone,priority:1;index:idx_session_token,priority:1"`
	PhoneNumber    *string   `json:"phone_number,omitempty" gorm:"type:varchar(32);index:idx_session_phone,priority:2"`
	SessionToken   *string   `json:"session_id,omitempty"   gorm:"type:varchar(128);index:idx_session_token,priority:2"`
	UserName       *string   `json:"user_name,omitempty"    gorm:"type:varchar(255)"`
	UserEmail      *string   `json:"user_email,omitempty"   gorm:"type:varchar(255)"`
	CreatedAt      time.Time `json:"created_at"             gorm:"index"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "chat_sessions" }

// Conversation is a qualification thread owned by one Session. At most one
// conversation per session is active at a time.
type Conversation struct {
	ID        string     `json:"id"                  gorm:"type:varchar(36);primaryKey"`
	SessionID string     `json:"session_id"          gorm:"type:varchar(36);not null;index:idx_conv_session_status,priority:1"`
	Status    string     `json:"status"              gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','closed');index:idx_conv_session_status,priority:2"`
	LeadStage string     `json:"lead_stage"          gorm:"type:varchar(64);not null;default:'initial'"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is an immutable turn in a conversation. IDs are time-ordered so
// rows sharing a timestamp still sort in insertion order.
type Message struct {
	ID             string    `json:"id"                    gorm:"type:varchar(36);primaryKey"`
	ConversationID string    `json:"conversation_id"       gorm:"type:varchar(36);not null;index:idx_conv_msgs,priority:1"`
	Role           string    `json:"role"                  gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content        string    `json:"content"               gorm:"type:text;not null"`
	MessageType    string    `json:"message_type"          gorm:"type:varchar(16);not null;default:'text'"`
	MediaURL       *string   `json:"media_url,omitempty"   gorm:"type:text"`
	TokensUsed     *int      `json:"tokens_used,omitempty"`
	CreatedAt      time.Time `json:"created_at"            gorm:"index:idx_conv_msgs,priority:2"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Lead is the qualification record derived from a conversation transcript.
// Every profile field is independently nullable.
type Lead struct {
	ID                 string     `json:"id"                          gorm:"type:varchar(36);primaryKey"`
	SessionID          string     `json:"session_id"                  gorm:"type:varchar(36);not null;index"`
	ConversationID     string     `json:"conversation_id"             gorm:"type:varchar(36);not null;uniqueIndex:ux_lead_conversation"`
	Name               *string    `json:"name,omitempty"              gorm:"type:varchar(255)"`
	Email              *string    `json:"email,omitempty"             gorm:"type:varchar(255);index"`
	Phone              *string    `json:"phone,omitempty"             gorm:"type:varchar(32)"`
	FamilySituation    *string    `json:"family_situation,omitempty"  gorm:"type:varchar(64)"`
	ImmigrationGoals   *string    `json:"immigration_goals,omitempty" gorm:"type:varchar(64)"`
	BudgetRange        *string    `json:"budget_range,omitempty"      gorm:"type:varchar(64)"`
	Timeline           *string    `json:"timeline,omitempty"          gorm:"type:varchar(16)"`
	QualificationScore int        `json:"qualification_score"         gorm:"not null;default:0;check:qualification_score BETWEEN 0 AND 100"`
	IsQualified        bool       `json:"is_qualified"                gorm:"not null;default:false;index"`
	Status             string     `json:"status"                      gorm:"type:varchar(32);not null;default:'new';index"`
	CRMSyncedAt        *time.Time `json:"crm_synced_at,omitempty"`
	FirstContactAt     time.Time  `json:"first_contact_at"`
	LastContactAt      time.Time  `json:"last_contact_at"             gorm:"index"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Lead.
func (Lead) TableName() string { return "leads" }

// ReadyForCRM reports whether the lead carries the contact triple the CRM
// form requires and has not been forwarded yet.
func (l *Lead) ReadyForCRM() bool {
	return present(l.Name) && present(l.Email) && present(l.Phone) && l.CRMSyncedAt == nil
}

// ChatEvent is an analytics record. Properties is free-form JSON.
type ChatEvent struct {
	ID             string         `json:"id"                        gorm:"type:varchar(36);primaryKey"`
	EventType      string         `json:"event_type"                gorm:"type:varchar(64);not null;index"`
	SessionID      *string        `json:"session_id,omitempty"      gorm:"type:varchar(36);index"`
	ConversationID *string        `json:"conversation_id,omitempty" gorm:"type:varchar(36);index"`
	Properties     datatypes.JSON `json:"properties"`
	CreatedAt      time.Time      `json:"created_at"                gorm:"index"`
}

// TableName returns the database table name for ChatEvent.
func (ChatEvent) TableName() string { return "chat_events" }

func present(s *string) bool { return s != nil && *s != "" }
