// Package services – ChatService
//
// ChatService is the orchestrator behind both channel adapters. One call to
// ProcessMessage persists the user turn, asks the completion service for a
// reply, persists the reply and then derives the lead profile, score and
// handoff signal from the stored transcript.
//
// The reply is durable before any derivation runs. Derivation failures are
// logged and swallowed so they never cost the user an answer.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/llm"
	"github.com/tbourn/lead-qualifier/internal/lock"
	"github.com/tbourn/lead-qualifier/internal/repo"
)

// Analytics event types.
const (
	EventMessageProcessed = "message_processed"
	EventHandoffRequested = "human_handoff_requested"
	EventCRMForwarded     = "crm_forwarded"
)

const (
	defaultMaxMessageRunes = 4000
	defaultCRMTimeout      = 15 * time.Second
)

// Inbound is a message as a channel adapter receives it.
type Inbound struct {
	Channel    string
	Identifier string // phone for WhatsApp, client session token for web
	Text       string
	MediaURL   string // optional, e.g. the image a caption belongs to
}

// ProcessInput is one inbound user message.
type ProcessInput struct {
	SessionID      string
	ConversationID string
	Text           string
	Channel        string
	MediaURL       string
}

// ChatResult is what the channel adapters render.
type ChatResult struct {
	Response                string `json:"response"`
	ConversationID          string `json:"conversationId"`
	MessageID               string `json:"-"`
	ShouldTransferToHuman   bool   `json:"shouldTransferToHuman"`
	ShouldOfferSubscription bool   `json:"shouldOfferSubscription"`
	LeadQualified           bool   `json:"leadQualified"`
	Score                   int    `json:"-"`
	TokensUsed              int    `json:"-"`
}

// ChatService coordinates persistence, completion and lead derivation.
type ChatService struct {
	Sessions      *SessionService
	SessionRepo   SessionRepo
	Conversations ConversationRepo
	Messages      MessageRepo
	Leads         *LeadService
	Events        EventSink
	Completer     llm.Completer
	Extractor     Extractor
	Lock          Locker
	CRM           CRMSink  // optional
	Metrics       Recorder // optional

	// SystemPrompt returns the fixed instruction for a channel.
	SystemPrompt func(channel string) string
	Options      llm.Options

	// HistoryLimit bounds the model context; zero loads the whole history.
	HistoryLimit    int
	MaxMessageRunes int
	CRMTimeout      time.Duration

	wg       sync.WaitGroup
	inflight sync.Map // lead id -> struct{}
}

// Handle resolves the session and active conversation for an inbound
// message and processes it. Both channel adapters go through here.
//
// Resolution is serialized per identity so that simultaneous first messages
// from one user end up in a single active conversation.
func (s *ChatService) Handle(ctx context.Context, in Inbound) (*ChatResult, error) {
	sess, conv, err := s.start(ctx, in.Channel, in.Identifier)
	if err != nil {
		return nil, err
	}
	return s.ProcessMessage(ctx, ProcessInput{
		SessionID:      sess.ID,
		ConversationID: conv.ID,
		Text:           in.Text,
		Channel:        in.Channel,
		MediaURL:       in.MediaURL,
	})
}

func (s *ChatService) start(ctx context.Context, channel, identifier string) (*domain.Session, *domain.Conversation, error) {
	release, err := s.acquire(ctx, "session:"+channel+":"+strings.TrimSpace(identifier))
	if err != nil {
		return nil, nil, err
	}
	defer release()
	return s.Sessions.Start(ctx, channel, identifier)
}

// acquire takes key on Lock. Only a lock held elsewhere past the wait budget
// is ErrConversationBusy; a failing lock backend is an ordinary error.
func (s *ChatService) acquire(ctx context.Context, key string) (func(), error) {
	if s.Lock == nil {
		return func() {}, nil
	}
	release, err := s.Lock.Acquire(ctx, key)
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, lock.ErrNotAcquired):
		return nil, fmt.Errorf("%w: %v", ErrConversationBusy, err)
	default:
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
}

// ProcessMessage runs one exchange on a conversation. Exchanges on the same
// conversation are serialized through Lock; a wait that outlives ctx yields
// ErrConversationBusy.
func (s *ChatService) ProcessMessage(ctx context.Context, in ProcessInput) (*ChatResult, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "ProcessMessage",
		trace.WithAttributes(
			attribute.String("conversation.id", in.ConversationID),
			attribute.String("session.id", in.SessionID),
			attribute.String("channel", in.Channel),
		),
	)
	defer span.End()

	text := strings.TrimSpace(in.Text)
	if text == "" || in.SessionID == "" || in.ConversationID == "" || !domain.ValidChannel(in.Channel) {
		return nil, ErrInvalidInput
	}
	if utf8.RuneCountInString(text) > s.maxRunes() {
		return nil, ErrTooLong
	}

	release, err := s.acquire(ctx, "conversation:"+in.ConversationID)
	if err != nil {
		span.SetStatus(codes.Error, "lock")
		return nil, err
	}
	defer release()

	// 1. user turn
	userMsg := repo.NewMessage{
		ConversationID: in.ConversationID,
		Role:           domain.RoleUser,
		Content:        text,
	}
	if u := strings.TrimSpace(in.MediaURL); u != "" {
		userMsg.MessageType = domain.MessageImage
		userMsg.MediaURL = &u
	}
	if _, err := s.Messages.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	// 2. history, oldest first
	history, err := s.Messages.ListMessages(ctx, in.ConversationID, s.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// 3-4. completion
	comp, err := s.Completer.Complete(ctx, s.modelContext(in.Channel, history), s.Options)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.CompletionFailed()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion")
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	// 5. assistant turn
	tokens := comp.TokensUsed
	reply, err := s.Messages.AppendMessage(ctx, repo.NewMessage{
		ConversationID: in.ConversationID,
		Role:           domain.RoleAssistant,
		Content:        comp.Content,
		TokensUsed:     &tokens,
	})
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	// 6. activity
	if err := s.Conversations.TouchConversation(ctx, in.ConversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	res := &ChatResult{
		Response:       comp.Content,
		ConversationID: in.ConversationID,
		MessageID:      reply.ID,
		TokensUsed:     tokens,
	}

	// 7-11. derivation over durable data
	s.derive(ctx, in, text, history, res)

	span.SetAttributes(
		attribute.Int("lead.score", res.Score),
		attribute.Bool("handoff", res.ShouldTransferToHuman),
	)
	return res, nil
}

// derive fills the lead-related fields of res. It never fails the exchange:
// errors and panics are logged and the already-set fields are kept.
func (s *ChatService) derive(ctx context.Context, in ProcessInput, text string, history []domain.Message, res *ChatResult) {
	lg := loggerFrom(ctx).With().Str("conversation_id", in.ConversationID).Logger()
	defer func() {
		if r := recover(); r != nil {
			lg.Error().Interface("panic", r).Msg("lead derivation panicked")
		}
	}()

	res.ShouldTransferToHuman = NeedsHuman(text)
	if res.ShouldTransferToHuman {
		if s.Metrics != nil {
			s.Metrics.HandoffRequested(in.Channel)
		}
		s.track(ctx, lg, EventHandoffRequested, in, map[string]any{"channel": in.Channel})
	}

	var q Qualification
	profile, err := s.Extractor.Extract(ctx, in.ConversationID, history)
	if err != nil {
		lg.Warn().Err(err).Msg("extract lead profile")
	} else {
		q = Score(profile)
		res.Score = q.Score
		res.ShouldOfferSubscription = q.ShouldOffer
		res.LeadQualified = q.IsQualified

		if profile.HasAny() {
			s.persistLead(ctx, lg, in, profile, q)
		}
	}

	if s.Metrics != nil {
		s.Metrics.MessageProcessed(in.Channel, q.Score)
	}
	s.track(ctx, lg, EventMessageProcessed, in, map[string]any{
		"channel":        in.Channel,
		"message_length": utf8.RuneCountInString(text),
		"tokens_used":    res.TokensUsed,
		"lead_score":     q.Score,
	})
}

func (s *ChatService) persistLead(ctx context.Context, lg zerolog.Logger, in ProcessInput, p domain.LeadProfile, q Qualification) {
	lead, err := s.Leads.Upsert(ctx, in.SessionID, in.ConversationID, p, q)
	if err != nil {
		lg.Warn().Err(err).Msg("upsert lead")
		return
	}

	if s.SessionRepo != nil && (p.Name != nil || p.Email != nil) {
		if err := s.SessionRepo.UpdateSessionContact(ctx, in.SessionID, deref(lead.Name), deref(lead.Email)); err != nil {
			lg.Warn().Err(err).Msg("update session contact")
		}
	}
	if stage := stageFor(q); stage != domain.LeadStageInitial {
		if err := s.Conversations.UpdateConversationStage(ctx, in.ConversationID, stage); err != nil {
			lg.Warn().Err(err).Msg("update lead stage")
		}
	}
	if s.CRM != nil && lead.ReadyForCRM() {
		s.forward(ctx, in, lead)
	}
}

// stageFor maps a qualification to the conversation's lead stage.
func stageFor(q Qualification) string {
	switch {
	case q.IsQualified:
		return domain.LeadStageQualified
	case q.ShouldOffer:
		return domain.LeadStageOffered
	default:
		return domain.LeadStageProfiling
	}
}

// forward submits the lead to the CRM in the background, once per lead.
// The request context is detached so the reply is not held up.
func (s *ChatService) forward(ctx context.Context, in ProcessInput, lead *domain.Lead) {
	if _, busy := s.inflight.LoadOrStore(lead.ID, struct{}{}); busy {
		return
	}
	name, email, phone := *lead.Name, *lead.Email, *lead.Phone
	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inflight.Delete(lead.ID)
		lg := loggerFrom(bg).With().Str("lead_id", lead.ID).Logger()
		defer func() {
			if r := recover(); r != nil {
				lg.Error().Interface("panic", r).Msg("crm forward panicked")
			}
		}()

		fctx, cancel := context.WithTimeout(bg, s.crmTimeout())
		defer cancel()

		err := s.CRM.SubmitLead(fctx, name, email, phone)
		if s.Metrics != nil {
			s.Metrics.CRMForward(err == nil)
		}
		if err != nil {
			lg.Error().Err(err).Msg("crm forward failed")
			return
		}
		if err := s.Leads.Leads.MarkLeadSynced(fctx, lead.ID, time.Now()); err != nil {
			lg.Warn().Err(err).Msg("mark lead synced")
		}
		s.track(fctx, lg, EventCRMForwarded, in, map[string]any{"lead_id": lead.ID})
		lg.Info().Msg("lead forwarded to crm")
	}()
}

// Wait blocks until background CRM forwards finish.
func (s *ChatService) Wait() { s.wg.Wait() }

// History returns the visible turns of the session's active conversation,
// oldest first. An unknown session yields an empty slice and an empty
// conversation id.
func (s *ChatService) History(ctx context.Context, channel, identifier string, limit int) ([]domain.Message, string, error) {
	_, conv, err := s.Sessions.Lookup(ctx, channel, identifier)
	if errors.Is(err, ErrNotFound) {
		return []domain.Message{}, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	msgs, err := s.Messages.ListMessages(ctx, conv.ID, limit)
	if err != nil {
		return nil, "", err
	}
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != domain.RoleSystem {
			out = append(out, m)
		}
	}
	return out, conv.ID, nil
}

func (s *ChatService) modelContext(channel string, history []domain.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	if s.SystemPrompt != nil {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: s.SystemPrompt(channel)})
	}
	for _, m := range history {
		switch m.Role {
		case domain.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case domain.RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return out
}

func (s *ChatService) track(ctx context.Context, lg zerolog.Logger, event string, in ProcessInput, props map[string]any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Track(ctx, event, in.SessionID, in.ConversationID, props); err != nil {
		lg.Warn().Err(err).Str("event", event).Msg("track event")
	}
}

func (s *ChatService) maxRunes() int {
	if s.MaxMessageRunes > 0 {
		return s.MaxMessageRunes
	}
	return defaultMaxMessageRunes
}

func (s *ChatService) crmTimeout() time.Duration {
	if s.CRMTimeout > 0 {
		return s.CRMTimeout
	}
	return defaultCRMTimeout
}

// loggerFrom returns the request logger attached to ctx, or the global one.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
