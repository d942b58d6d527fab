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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/agb-digital/onboarding/internal/onboarding/events"
	"github.com/agb-digital/onboarding/internal/onboarding/handler"
	"github.com/agb-digital/onboarding/internal/onboarding/repository"
	"github.com/agb-digital/onboarding/internal/onboarding/service"
	"github.com/agb-digital/onboarding/internal/persistence"
	"github.com/agb-digital/onboarding/internal/session"
	"github.com/agb-digital/onboarding/internal/submission"
	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/pkg/config"
	"github.com/agb-digital/onboarding/pkg/database"
	"github.com/agb-digital/onboarding/pkg/httputil"
	"github.com/agb-digital/onboarding/pkg/i18n"
	"github.com/agb-digital/onboarding/pkg/logger"
	"github.com/agb-digital/onboarding/pkg/messaging"
)

const serviceName = "wizard-service"

// sweepInterval is how often idle sessions are looked for
const sweepInterval = time.Minute

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Wizard Service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Staging store behind the persistence bridge
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Persistence.Backend).Msg("failed to open persistence store")
	}
	defer store.Close()

	bridge := persistence.NewBridge(store,
		persistence.WithTTL(cfg.Persistence.TTL),
		persistence.WithPayloads(cfg.Persistence.PersistPayloads),
		persistence.WithLogger(log),
	)

	// Validation rules, with an optional phone rule table
	phones := validation.DefaultPhoneTable()
	if path := cfg.Validation.PhoneRulesFile; path != "" {
		if phones, err = validation.LoadPhoneTable(path); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load phone rules")
		}
	}
	rules := validation.NewRules(phones, nil)

	facade := submission.New(submission.Config{
		BaseURL:       cfg.Facade.BaseURL,
		Timeout:       cfg.Facade.Timeout,
		UploadTimeout: cfg.Facade.UploadTimeout,
		MaxRetries:    cfg.Facade.MaxRetries,
	}, submission.WithLogger(log.WithComponent("facade")))

	// Audit database is optional
	var (
		db    *database.DB
		audit *repository.AuditRepository
	)
	if cfg.Database.Enabled() {
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		audit = repository.NewAuditRepository(db)
	}

	// Events go through RabbitMQ when configured, straight to the audit
	// table otherwise
	var (
		rmq     *messaging.RabbitMQ
		emitter *events.Emitter
	)
	switch {
	case cfg.RabbitMQ.URL != "":
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if emitter, err = events.NewRabbitEmitter(rmq, log); err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	case audit != nil:
		emitter = events.NewEmitter(nil, audit, log)
	default:
		emitter = events.NewEmitter(nil, nil, log)
	}

	// Initialize service
	svc, err := service.New(
		rules,
		bridge,
		facade,
		session.NewManager(&cfg.JWT),
		emitter,
		service.Config{
			OTPResend:           time.Duration(cfg.Wizard.OTPResendSeconds) * time.Second,
			MaxUploadBytes:      cfg.Capture.MaxUploadBytes,
			IdleTimeout:         cfg.Persistence.TTL,
			ReviewAllowedEmails: cfg.Wizard.ReviewAllowedEmails,
		},
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build wizard flows")
	}

	wizardHandler := handler.NewWizardHandler(svc, cfg.Capture.MaxUploadBytes, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(i18n.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language", handler.HandoffHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"sessions": svc.SessionCount(),
			"flows":    svc.Flows(),
		}
		if db != nil {
			status["database"] = db.Health(r.Context())
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		wizardHandler.RegisterRoutes(r, 0.2)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Start audit consumer
	if rmq != nil && audit != nil {
		consumer, err := events.NewAuditConsumer(rmq, audit, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create audit consumer")
		}
		if err := consumer.Start(gctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start audit consumer")
		}
	}

	// Start server
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Expire idle sessions
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				svc.Sweep(gctx)
				if p, ok := store.(purger); ok {
					if _, err := p.Purge(gctx); err != nil {
						log.Warn().Err(err).Msg("failed to purge expired staged values")
					}
				}
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server stopped")
}

// purger is implemented by stores without native expiry
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

func openStore(ctx context.Context, cfg *config.Config) (persistence.Store, error) {
	switch cfg.Persistence.Backend {
	case config.BackendRedis:
		client, err := persistence.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return persistence.NewRedisStore(client, "onboarding:"), nil
	case config.BackendSQLite:
		return persistence.OpenSQLite(ctx, cfg.Persistence.SQLitePath)
	default:
		return persistence.NewMemoryStore(time.Minute), nil
	}
}
