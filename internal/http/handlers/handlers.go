package handlers

import (
	"context"
	"time"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/repo"
	"github.com/tbourn/lead-qualifier/internal/services"
)

// ChatService is the pipeline both channel adapters call into.
type ChatService interface {
	Handle(ctx context.Context, in services.Inbound) (*services.ChatResult, error)
	History(ctx context.Context, channel, identifier string, limit int) ([]domain.Message, string, error)
}

// IdempotencyService replays web retries and drops WhatsApp redeliveries.
type IdempotencyService interface {
	Lookup(ctx context.Context, scope, subject, key string) (*domain.Idempotency, error)
	Remember(ctx context.Context, scope, subject, key, messageID string, status int, body any) error
	Claim(ctx context.Context, scope, subject, key string) error
	Complete(ctx context.Context, scope, subject, key, messageID string, status int, body any) error
	Release(ctx context.Context, scope, subject, key string) error
}

// LeadService backs the admin routes.
type LeadService interface {
	List(ctx context.Context, f repo.LeadFilter) ([]domain.Lead, int64, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.Lead, error)
}

// CRMSink receives landing-page form submissions.
type CRMSink interface {
	SubmitLead(ctx context.Context, name, email, phone string) error
}

// Transport sends WhatsApp messages.
type Transport interface {
	SendText(ctx context.Context, phone, text string) error
	SetPresence(ctx context.Context, phone, presence string) error
}

// Limiter is a keyed token bucket.
type Limiter interface {
	Allow(key string) bool
}

// WebhookRecorder counts webhook outcomes. May be nil.
type WebhookRecorder interface {
	WebhookHandled(status string)
}

// Check is one named health check.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Deps collects what the handlers need. Optional collaborators may be nil;
// the router only mounts routes whose collaborators exist.
type Deps struct {
	Chat        ChatService
	Idempotency IdempotencyService
	Leads       LeadService
	CRM         CRMSink

	WhatsApp         Transport
	WhatsAppInstance string // expected payload instance; empty accepts any
	WhatsAppLimiter  Limiter
	Webhooks         WebhookRecorder

	Checks               []Check
	CompletionConfigured bool

	// RequestTimeout bounds one chat exchange, completion included.
	RequestTimeout time.Duration
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	d Deps
}

// New builds Handlers.
func New(d Deps) *Handlers {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 60 * time.Second
	}
	return &Handlers{d: d}
}

func (h *Handlers) exchangeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.d.RequestTimeout)
}
