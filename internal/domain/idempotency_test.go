package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIdempotency_Migration_UniqueKey(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_idem_scope_subject_key") {
		t.Fatalf("expected composite unique index")
	}

	now := time.Now().UTC()
	rec := &Idempotency{
		ID:        "id-1",
		Scope:     ScopeWebChat,
		Subject:   "sess-1",
		Key:       "k1",
		MessageID: "m1",
		Status:    200,
		Payload:   datatypes.JSON(`{"response":"oi"}`),
		ExpiresAt: now.Add(time.Hour),
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert valid: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "id-1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Scope != ScopeWebChat || got.Subject != "sess-1" || got.Key != "k1" || got.Status != 200 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if string(got.Payload) != `{"response":"oi"}` {
		t.Fatalf("payload mismatch: %s", got.Payload)
	}

	dup := &Idempotency{ID: "id-2", Scope: ScopeWebChat, Subject: "sess-1", Key: "k1", Status: 200, ExpiresAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (scope, subject, key)")
	}

	other := &Idempotency{ID: "id-3", Scope: ScopeWhatsAppMessage, Subject: "sess-1", Key: "k1", Status: 200, ExpiresAt: now}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("same key in another scope should be allowed: %v", err)
	}
}
