package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

// LeadFilter narrows ListLeads. Zero values mean "no filter".
type LeadFilter struct {
	Status    string
	Qualified *bool
	Offset    int
	Limit     int
}

// GetLead fetches a lead by ID.
func GetLead(ctx context.Context, db *gorm.DB, id string) (*domain.Lead, error) {
	var l domain.Lead
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// FindLeadByConversation returns the lead attached to a conversation, or ErrNotFound.
func FindLeadByConversation(ctx context.Context, db *gorm.DB, conversationID string) (*domain.Lead, error) {
	var l domain.Lead
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Limit(1).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLead inserts a new lead with whatever fields p supplies, status
// "new" and both contact timestamps set to now. A concurrent insert for the
// same conversation yields ErrDuplicate.
func CreateLead(ctx context.Context, db *gorm.DB, sessionID, conversationID string, p domain.LeadProfile, score int, qualified bool) (*domain.Lead, error) {
	now := time.Now().UTC()
	l := &domain.Lead{
		ID:                 uuid.NewString(),
		SessionID:          sessionID,
		ConversationID:     conversationID,
		Name:               nonEmpty(p.Name),
		Email:              nonEmpty(p.Email),
		Phone:              nonEmpty(p.Phone),
		FamilySituation:    nonEmpty(p.FamilySituation),
		ImmigrationGoals:   nonEmpty(p.ImmigrationGoals),
		BudgetRange:        nonEmpty(p.BudgetRange),
		Timeline:           nonEmpty(p.Timeline),
		QualificationScore: score,
		IsQualified:        qualified,
		Status:             domain.LeadNew,
		FirstContactAt:     now,
		LastContactAt:      now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return l, nil
}

// MergeLead applies p to an existing lead with coalesce semantics: only
// fields present in p are written. Score, qualification flag and
// last_contact_at are always overwritten. Returns the stored row.
func MergeLead(ctx context.Context, db *gorm.DB, id string, p domain.LeadProfile, score int, qualified bool) (*domain.Lead, error) {
	now := time.Now().UTC()
	updates := map[string]any{
		"qualification_score": score,
		"is_qualified":        qualified,
		"last_contact_at":     now,
		"updated_at":          now,
	}
	for col, v := range map[string]*string{
		"name":              p.Name,
		"email":             p.Email,
		"phone":             p.Phone,
		"family_situation":  p.FamilySituation,
		"immigration_goals": p.ImmigrationGoals,
		"budget_range":      p.BudgetRange,
		"timeline":          p.Timeline,
	} {
		if v != nil && *v != "" {
			updates[col] = *v
		}
	}

	res := db.WithContext(ctx).Model(&domain.Lead{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetLead(ctx, db, id)
}

// MarkLeadSynced records that the lead was forwarded to the CRM.
func MarkLeadSynced(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ?", id).
		UpdateColumn("crm_synced_at", at.UTC()).Error
}

// UpdateLeadStatus sets the informational status of a lead.
func UpdateLeadStatus(ctx context.Context, db *gorm.DB, id, status string) (*domain.Lead, error) {
	res := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetLead(ctx, db, id)
}

// ListLeads returns one page of leads (most recent contact first) and the
// total matching the filter.
func ListLeads(ctx context.Context, db *gorm.DB, f LeadFilter) ([]domain.Lead, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Lead{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Qualified != nil {
		q = q.Where("is_qualified = ?", *f.Qualified)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []domain.Lead
	page := q.Session(&gorm.Session{}).Order("last_contact_at DESC, id ASC").Offset(f.Offset)
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	if err := page.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
