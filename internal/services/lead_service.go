package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/repo"
	"github.com/tbourn/lead-qualifier/internal/utils"
)

// Lead list paging bounds.
const (
	DefaultLeadPageSize = 50
	MaxLeadPageSize     = 100
)

// LeadService upserts qualification records and serves the admin listing.
type LeadService struct {
	Leads LeadRepo
}

// NewLeadService wires a LeadService.
func NewLeadService(r LeadRepo) *LeadService { return &LeadService{Leads: r} }

// Upsert creates the conversation's lead or merges p into the existing one.
// Absent fields never overwrite stored values; score and qualification are
// always replaced. A lost create race falls back to a merge.
func (s *LeadService) Upsert(ctx context.Context, sessionID, conversationID string, p domain.LeadProfile, q Qualification) (*domain.Lead, error) {
	ctx, span := otel.Tracer("services/LeadService").Start(ctx, "Upsert",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("lead.score", q.Score),
		))
	defer span.End()

	existing, err := s.Leads.FindLeadByConversation(ctx, conversationID)
	switch {
	case err == nil:
		return s.Leads.MergeLead(ctx, existing.ID, p, q.Score, q.IsQualified)
	case !errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("find lead: %w", err)
	}

	lead, err := s.Leads.CreateLead(ctx, sessionID, conversationID, p, q.Score, q.IsQualified)
	if errors.Is(err, repo.ErrDuplicate) {
		existing, ferr := s.Leads.FindLeadByConversation(ctx, conversationID)
		if ferr != nil {
			return nil, fmt.Errorf("find lead after duplicate: %w", ferr)
		}
		return s.Leads.MergeLead(ctx, existing.ID, p, q.Score, q.IsQualified)
	}
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	span.SetAttributes(attribute.Bool("lead.created", true))
	return lead, nil
}

// List returns one page of leads and the total count. Limit is clamped to
// [1, MaxLeadPageSize] with DefaultLeadPageSize when unset.
func (s *LeadService) List(ctx context.Context, f repo.LeadFilter) ([]domain.Lead, int64, error) {
	if f.Status != "" && !domain.ValidLeadStatus(f.Status) {
		return nil, 0, ErrInvalidStatus
	}
	f.Limit, f.Offset = utils.Window(f.Limit, f.Offset, DefaultLeadPageSize, MaxLeadPageSize)
	return s.Leads.ListLeads(ctx, f)
}

// UpdateStatus changes the informational status of a lead.
func (s *LeadService) UpdateStatus(ctx context.Context, id, status string) (*domain.Lead, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !domain.ValidLeadStatus(status) {
		return nil, ErrInvalidStatus
	}
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	l, err := s.Leads.UpdateLeadStatus(ctx, id, status)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return l, err
}
