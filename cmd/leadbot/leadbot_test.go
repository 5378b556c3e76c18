package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/lead-qualifier/internal/config"
	"github.com/tbourn/lead-qualifier/internal/domain"
	"github.com/tbourn/lead-qualifier/internal/lock"
)

const mariaTranscript = `user: Olá, meu nome é Maria Santos
assistant: Prazer, Maria! Qual é o seu objetivo?

user: maria@x.com, tenho orçamento de R$ 3000
user: quero ir em médio prazo
`

func TestParseTranscript(t *testing.T) {
	msgs, err := parseTranscript(strings.NewReader("User: oi\r\ncontinua aqui\nassistant:olá\n\nsystem: x\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "oi\ncontinua aqui" {
		t.Fatalf("unexpected first turn: %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Content != "olá" {
		t.Fatalf("unexpected second turn: %+v", msgs[1])
	}

	if _, err := parseTranscript(strings.NewReader("sem prefixo\nuser: oi")); err == nil {
		t.Fatal("expected error for a transcript without a leading role")
	}
}

func TestExtractReport(t *testing.T) {
	msgs, err := parseTranscript(strings.NewReader(mariaTranscript))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := extractReport(context.Background(), msgs, false)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.Profile.Name == nil || *out.Profile.Name != "Maria Santos" {
		t.Fatalf("name = %v", out.Profile.Name)
	}
	if out.Profile.TotalMessages != 3 {
		t.Fatalf("total messages = %d", out.Profile.TotalMessages)
	}
	// budget 30 + timeline 15 + three fields 12 + three user turns 10
	if out.Qualification.Score != 67 || !out.Qualification.ShouldOffer || out.Qualification.IsQualified {
		t.Fatalf("unexpected qualification: %+v", out.Qualification)
	}
}

func TestExtractCommand_Stdin(t *testing.T) {
	var stdout bytes.Buffer
	rootCmd.SetIn(strings.NewReader(mariaTranscript))
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"extract", "--env-file", t.TempDir() + "/missing.env"})
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var got extractOutput
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("json: %v\n%s", err, stdout.String())
	}
	if got.Qualification.Score != 67 {
		t.Fatalf("score = %d", got.Qualification.Score)
	}
}

func newCmdDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:cmd_leadbot?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestBuildServices_OptionalCollaborators(t *testing.T) {
	db := newCmdDB(t)
	cfg := config.Config{
		RequestTimeout:  30e9,
		IdempotencyTTL:  3600e9,
		SubscriptionURL: "https://example.com/subscribe",
		WhatsAppRate:    config.RateConfig{RPS: 1, Burst: 5},
	}

	chat, deps := buildServices(db, cfg, lock.NewLocal(), prometheus.NewRegistry())
	if chat.CRM != nil || deps.CRM != nil || deps.WhatsApp != nil || deps.WhatsAppLimiter != nil {
		t.Fatalf("unconfigured collaborators must stay nil: %+v", deps)
	}
	if deps.CompletionConfigured || len(deps.Checks) != 0 {
		t.Fatalf("unexpected deps: %+v", deps)
	}
	if chat.SystemPrompt == nil || !strings.Contains(chat.SystemPrompt(domain.ChannelWeb), cfg.SubscriptionURL) {
		t.Fatal("system prompt not bound to the subscription url")
	}

	cfg.OpenAI.APIKey = "sk-test"
	cfg.Mautic = config.MauticConfig{URL: "http://mautic.local", FormID: 3, FormName: "f", Timeout: 1e9}
	cfg.Evolution = config.EvolutionConfig{BaseURL: "http://evolution.local", InstanceName: "viva", Timeout: 1e9}
	chat, deps = buildServices(db, cfg, lock.NewLocal(), prometheus.NewRegistry())
	if chat.CRM == nil || deps.CRM == nil || deps.WhatsApp == nil || deps.WhatsAppLimiter == nil {
		t.Fatalf("configured collaborators missing: %+v", deps)
	}
	if deps.WhatsAppInstance != "viva" || !deps.CompletionConfigured {
		t.Fatalf("unexpected deps: %+v", deps)
	}
	if len(deps.Checks) != 1 || deps.Checks[0].Name != "evolutionAPI" {
		t.Fatalf("checks = %+v", deps.Checks)
	}
}
