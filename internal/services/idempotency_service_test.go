package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/lead-qualifier/internal/domain"
)

func TestIdempotencyService_RememberAndLookup(t *testing.T) {
	st := newTestStore(t)
	svc := NewIdempotencyService(st, time.Hour)
	ctx := context.Background()

	rec, err := svc.Lookup(ctx, domain.ScopeWebChat, "sess", "k1")
	if err != nil || rec != nil {
		t.Fatalf("expected miss, got %+v %v", rec, err)
	}
	if rec, err := svc.Lookup(ctx, domain.ScopeWebChat, "sess", ""); rec != nil || err != nil {
		t.Fatalf("blank key must miss: %+v %v", rec, err)
	}

	body := map[string]any{"response": "oi"}
	if err := svc.Remember(ctx, domain.ScopeWebChat, "sess", "k1", "m1", 200, body); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := svc.Remember(ctx, domain.ScopeWebChat, "sess", "k1", "m2", 200, body); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("second remember err = %v; want ErrIdempotencyConflict", err)
	}

	rec, err = svc.Lookup(ctx, domain.ScopeWebChat, "sess", "k1")
	if err != nil || rec == nil {
		t.Fatalf("expected hit: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Payload, &got); err != nil || got["response"] != "oi" || rec.MessageID != "m1" {
		t.Fatalf("unexpected record: %+v (%v)", rec, err)
	}

	// Keys are scoped per subject.
	if rec, _ := svc.Lookup(ctx, domain.ScopeWebChat, "other", "k1"); rec != nil {
		t.Fatalf("key leaked across subjects")
	}

	// Expired records are not returned.
	svc.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if rec, _ := svc.Lookup(ctx, domain.ScopeWebChat, "sess", "k1"); rec != nil {
		t.Fatalf("expired record returned")
	}
}

func TestIdempotencyService_ClaimCompleteRelease(t *testing.T) {
	st := newTestStore(t)
	svc := NewIdempotencyService(st, time.Hour)
	ctx := context.Background()
	scope, phone := domain.ScopeWhatsAppMessage, "5511987654321"

	if err := svc.Claim(ctx, scope, phone, " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank claim err = %v", err)
	}
	if err := svc.Claim(ctx, scope, phone, "WAMID.1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := svc.Claim(ctx, scope, phone, "WAMID.1"); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("duplicate claim err = %v", err)
	}
	if err := svc.Complete(ctx, scope, phone, "WAMID.1", "m1", 200, map[string]string{"status": "processed"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := svc.Claim(ctx, scope, phone, "WAMID.2"); err != nil {
		t.Fatalf("claim 2: %v", err)
	}
	if err := svc.Release(ctx, scope, phone, "WAMID.2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.Claim(ctx, scope, phone, "WAMID.2"); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}
