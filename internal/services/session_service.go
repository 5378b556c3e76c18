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
)

// SessionService maps channel identities to sessions and sessions to their
// single active conversation.
type SessionService struct {
	Sessions      SessionRepo
	Conversations ConversationRepo
}

// NewSessionService wires a SessionService.
func NewSessionService(s SessionRepo, c ConversationRepo) *SessionService {
	return &SessionService{Sessions: s, Conversations: c}
}

// Resolve returns the most recent session for (channel, identifier),
// creating one if none exists. Persistence errors propagate unchanged.
func (s *SessionService) Resolve(ctx context.Context, channel, identifier string) (*domain.Session, error) {
	ctx, span := otel.Tracer("services/SessionService").Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("channel", channel)))
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || !domain.ValidChannel(channel) {
		return nil, ErrInvalidInput
	}

	sess, err := s.Sessions.FindSession(ctx, channel, identifier)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("find session: %w", err)
	}
	sess, err = s.Sessions.CreateSession(ctx, channel, identifier)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	span.SetAttributes(attribute.Bool("session.created", true))
	return sess, nil
}

// ResolveActive returns the session's active conversation, creating one at
// the initial lead stage when none is active.
func (s *SessionService) ResolveActive(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	ctx, span := otel.Tracer("services/SessionService").Start(ctx, "ResolveActive",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	conv, err := s.Conversations.FindActiveConversation(ctx, sessionID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("find active conversation: %w", err)
	}
	conv, err = s.Conversations.CreateConversation(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Start resolves both the session and its active conversation.
func (s *SessionService) Start(ctx context.Context, channel, identifier string) (*domain.Session, *domain.Conversation, error) {
	sess, err := s.Resolve(ctx, channel, identifier)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.ResolveActive(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, conv, nil
}

// Lookup finds an existing session and its active conversation without
// creating anything. Missing rows yield ErrNotFound.
func (s *SessionService) Lookup(ctx context.Context, channel, identifier string) (*domain.Session, *domain.Conversation, error) {
	sess, err := s.Sessions.FindSession(ctx, channel, strings.TrimSpace(identifier))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.Conversations.FindActiveConversation(ctx, sess.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return sess, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return sess, conv, nil
}

// Close ends a conversation. Nothing in the message path calls it; the next
// message from the session opens a fresh conversation.
func (s *SessionService) Close(ctx context.Context, conversationID string) error {
	err := s.Conversations.CloseConversation(ctx, conversationID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
