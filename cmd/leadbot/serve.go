package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/lead-qualifier/internal/config"
	"github.com/tbourn/lead-qualifier/internal/crm"
	httpapi "github.com/tbourn/lead-qualifier/internal/http"
	"github.com/tbourn/lead-qualifier/internal/http/handlers"
	"github.com/tbourn/lead-qualifier/internal/http/middleware"
	"github.com/tbourn/lead-qualifier/internal/llm"
	"github.com/tbourn/lead-qualifier/internal/lock"
	"github.com/tbourn/lead-qualifier/internal/observability"
	"github.com/tbourn/lead-qualifier/internal/prompts"
	"github.com/tbourn/lead-qualifier/internal/repo"
	"github.com/tbourn/lead-qualifier/internal/services"
	"github.com/tbourn/lead-qualifier/internal/sysutil"
	"github.com/tbourn/lead-qualifier/internal/whatsapp"
)

const shutdownTimeout = 20 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config) error {
	gin.SetMode(cfg.GinMode)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.BuildInfo{
		Version:     sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), Version),
		Environment: cfg.Env,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}
	defer sqlDB.Close()
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if cfg.OTEL.Enabled {
		if err := repo.Instrument(db); err != nil {
			return fmt.Errorf("instrument db: %w", err)
		}
	}

	locker, closeLock, err := newLocker(cfg.Lock)
	if err != nil {
		return err
	}
	defer closeLock()

	chatSvc, deps := buildServices(db, cfg, locker, prometheus.DefaultRegisterer)
	deps.Checks = append([]handlers.Check{{
		Name: "database",
		Run:  func(ctx context.Context) error { return repo.Ping(ctx, sqlDB) },
	}}, deps.Checks...)

	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg, httpapi.Options{})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DB.Driver).
			Bool("whatsapp", deps.WhatsApp != nil).
			Bool("crm", deps.CRM != nil).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// let detached CRM forwards finish before the DB closes
	chatSvc.Wait()
	return nil
}

// newLocker picks the Redis lock when REDIS_URL is set.
func newLocker(cfg config.LockConfig) (services.Locker, func(), error) {
	if cfg.RedisURL == "" {
		l := lock.NewLocal()
		l.Wait = cfg.Wait
		return l, func() {}, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return lock.NewRedis(client, cfg.TTL, cfg.Wait), func() { _ = client.Close() }, nil
}

// buildServices wires the pipeline and the handler dependencies. Optional
// collaborators stay nil interfaces when unconfigured.
func buildServices(db *gorm.DB, cfg config.Config, locker services.Locker, reg prometheus.Registerer) (*services.ChatService, handlers.Deps) {
	store := repo.NewStore(db)
	metrics := observability.NewChatMetrics(reg)
	leads := services.NewLeadService(store)

	chatSvc := &services.ChatService{
		Sessions:      services.NewSessionService(store, store),
		SessionRepo:   store,
		Conversations: store,
		Messages:      store,
		Leads:         leads,
		Events:        store,
		Completer: llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
		}),
		Extractor:    services.PatternExtractor{UserTurnsOnly: cfg.ExtractUserTurnsOnly},
		Lock:         locker,
		Metrics:      metrics,
		SystemPrompt: prompts.Source(cfg.SubscriptionURL),
		Options: llm.Options{
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
		},
		CRMTimeout: cfg.Mautic.Timeout,
	}

	deps := handlers.Deps{
		Chat:                 chatSvc,
		Idempotency:          services.NewIdempotencyService(store, cfg.IdempotencyTTL),
		Leads:                leads,
		Webhooks:             metrics,
		CompletionConfigured: cfg.OpenAI.APIKey != "",
		RequestTimeout:       cfg.RequestTimeout,
	}

	if cfg.Mautic.URL != "" {
		m := crm.NewMautic(crm.MauticConfig{
			URL:      cfg.Mautic.URL,
			FormID:   cfg.Mautic.FormID,
			FormName: cfg.Mautic.FormName,
			Timeout:  cfg.Mautic.Timeout,
		})
		chatSvc.CRM = m
		deps.CRM = m
	}

	if cfg.Evolution.Enabled() {
		wa := whatsapp.NewClient(whatsapp.Config{
			BaseURL:      cfg.Evolution.BaseURL,
			APIKey:       cfg.Evolution.APIKey,
			InstanceName: cfg.Evolution.InstanceName,
			Timeout:      cfg.Evolution.Timeout,
		})
		deps.WhatsApp = wa
		deps.WhatsAppInstance = wa.Instance()
		deps.WhatsAppLimiter = middleware.NewRateLimiter(cfg.WhatsAppRate.RPS, cfg.WhatsAppRate.Burst, nil)
		deps.Checks = append(deps.Checks, handlers.Check{Name: "evolutionAPI", Run: wa.Healthy})
	}

	return chatSvc, deps
}
