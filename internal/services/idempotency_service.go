package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/repo"
)

// IdempotencyService records processed requests so retries can be replayed
// (web Idempotency-Key) or dropped (WhatsApp redeliveries).
type IdempotencyService struct {
	Repo IdempotencyRepo
	TTL  time.Duration
	Now  func() time.Time
}

// NewIdempotencyService wires an IdempotencyService.
func NewIdempotencyService(r IdempotencyRepo, ttl time.Duration) *IdempotencyService {
	return &IdempotencyService{Repo: r, TTL: ttl, Now: time.Now}
}

func (s *IdempotencyService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Lookup returns the stored record for a key, or (nil, nil) when there is
// none or it expired.
func (s *IdempotencyService) Lookup(ctx context.Context, scope, subject, key string) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	rec, err := s.Repo.GetIdempotency(ctx, scope, subject, key, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Remember stores a completed response body for key. A concurrent request
// that stored first wins; the duplicate is reported as ErrIdempotencyConflict.
func (s *IdempotencyService) Remember(ctx context.Context, scope, subject, key, messageID string, status int, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	_, err = s.Repo.CreateIdempotency(ctx, repo.IdempotencyRecord{
		Scope:     scope,
		Subject:   subject,
		Key:       key,
		MessageID: messageID,
		Status:    status,
		Payload:   payload,
	}, s.TTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrIdempotencyConflict
	}
	return err
}

// Claim reserves key before processing starts. A second claim on the same
// key fails with ErrIdempotencyConflict until the first one expires or is
// released.
func (s *IdempotencyService) Claim(ctx context.Context, scope, subject, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidInput
	}
	_, err := s.Repo.CreateIdempotency(ctx, repo.IdempotencyRecord{Scope: scope, Subject: subject, Key: key}, s.TTL)
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrIdempotencyConflict
	}
	return err
}

// Complete attaches the outcome to a claimed key.
func (s *IdempotencyService) Complete(ctx context.Context, scope, subject, key, messageID string, status int, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return s.Repo.CompleteIdempotency(ctx, scope, subject, key, messageID, status, payload)
}

// Release drops a claim after a failed attempt so a redelivery is processed.
func (s *IdempotencyService) Release(ctx context.Context, scope, subject, key string) error {
	return s.Repo.DeleteIdempotency(ctx, scope, subject, key)
}
