package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/llm"
	"github.com/tbourn/lead-qualifier/internal/repo"
)

// The sqlite-backed store satisfies every repository port.
var (
	_ SessionRepo      = (*repo.Store)(nil)
	_ ConversationRepo = (*repo.Store)(nil)
	_ MessageRepo      = (*repo.Store)(nil)
	_ LeadRepo         = (*repo.Store)(nil)
	_ EventSink        = (*repo.Store)(nil)
	_ IdempotencyRepo  = (*repo.Store)(nil)
)

func newTestStore(t *testing.T) *repo.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the shared in-memory database free of lock errors
	// when the CRM goroutine writes concurrently.
	sqlDB.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return repo.NewStore(db)
}

func sp(s string) *string { return &s }

func getSession(t *testing.T, st *repo.Store, id string) *domain.Session {
	t.Helper()
	var s domain.Session
	if err := st.DB.Where("id = ?", id).First(&s).Error; err != nil {
		t.Fatalf("get session %s: %v", id, err)
	}
	return &s
}

func getConversation(t *testing.T, st *repo.Store, id string) *domain.Conversation {
	t.Helper()
	var c domain.Conversation
	if err := st.DB.Where("id = ?", id).First(&c).Error; err != nil {
		t.Fatalf("get conversation %s: %v", id, err)
	}
	return &c
}

func countActiveConversations(t *testing.T, st *repo.Store, sessionID string) int64 {
	t.Helper()
	var n int64
	err := st.DB.Model(&domain.Conversation{}).
		Where("session_id = ? AND status = ?", sessionID, domain.ConversationActive).
		Count(&n).Error
	if err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	return n
}

// fakeCompleter returns canned replies and records the contexts it saw.
type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	tokens int
	err    error
	calls  [][]llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []llm.Message, _ llm.Options) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]llm.Message(nil), msgs...)
	f.calls = append(f.calls, cp)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Content: f.reply, TokensUsed: f.tokens, FinishReason: "stop"}, nil
}

type crmCall struct{ name, email, phone string }

type fakeCRM struct {
	mu    sync.Mutex
	err   error
	calls []crmCall
}

func (f *fakeCRM) SubmitLead(_ context.Context, name, email, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, crmCall{name, email, phone})
	return f.err
}

func (f *fakeCRM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecorder struct {
	mu                            sync.Mutex
	processed, handoffs, failures int
	crmOK, crmFailed              int
	lastScore                     int
}

func (r *fakeRecorder) MessageProcessed(_ string, score int) {
	r.mu.Lock()
	r.processed++
	r.lastScore = score
	r.mu.Unlock()
}
func (r *fakeRecorder) HandoffRequested(string) { r.mu.Lock(); r.handoffs++; r.mu.Unlock() }
func (r *fakeRecorder) CompletionFailed()       { r.mu.Lock(); r.failures++; r.mu.Unlock() }
func (r *fakeRecorder) CRMForward(ok bool) {
	r.mu.Lock()
	if ok {
		r.crmOK++
	} else {
		r.crmFailed++
	}
	r.mu.Unlock()
}
