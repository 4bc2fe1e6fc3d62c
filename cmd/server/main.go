package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soaringjerry/checkbot/internal/api"
	"github.com/soaringjerry/checkbot/internal/config"
	"github.com/soaringjerry/checkbot/internal/middleware"
	"github.com/soaringjerry/checkbot/internal/observability"
	"github.com/soaringjerry/checkbot/internal/services"
	"github.com/soaringjerry/checkbot/internal/telegram"
	"github.com/soaringjerry/checkbot/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	observability.Init(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.ServiceName, cfg.Commit)
	if err != nil {
		log.Printf("warning: tracing disabled: %v", err)
	}

	be, err := openBackends(ctx, cfg)
	if err != nil {
		config.Exitf("backends: %v", err)
	}

	bot, err := telegram.New(telegram.Options{
		Token:        cfg.Telegram.Token,
		APIEndpoint:  cfg.Telegram.APIEndpoint,
		FileEndpoint: cfg.Telegram.FileEndpoint,
		HTTPClient:   &http.Client{Timeout: cfg.Telegram.HTTPTimeout},
		Retries:      cfg.Telegram.SendRetries,
	})
	if err != nil {
		_ = be.Close()
		config.Exitf("telegram: %v", err)
	}
	log.Printf("telegram bot @%s connected", bot.Username())

	interview := services.NewInterviewService(services.InterviewDeps{
		Resolver:  be.resolver,
		Catalog:   be.catalog,
		Evidence:  be.evidence,
		Sink:      be.sink,
		Messenger: bot,
		Media:     bot,
	}, services.InterviewOptions{
		Slots:        cfg.Slots,
		AnswerLabels: cfg.AnswerLabels,
		Location:     cfg.Location(),
		StagingDir:   cfg.StagingDir,
		CallTimeout:  cfg.CallTimeout,
		SessionTTL:   cfg.SessionTTL,
	})
	dispatcher := telegram.NewDispatcher(interview, cfg.Telegram.Workers, cfg.Telegram.QueueDepth)

	if cfg.SessionTTL > 0 && cfg.SweepInterval > 0 {
		go sweepSessions(ctx, interview, cfg.SweepInterval)
	}

	deps := api.RouterDeps{Commit: cfg.Commit, BuildTime: cfg.BuildTime}
	if store := be.reportStore(cfg); store != nil {
		deps.Export = services.NewExportService(store, cfg.AnswerLabels)
	}
	if cfg.Admin.Username != "" {
		jwtAuth, err := middleware.NewJWTAuth(cfg.Admin.JWTSecret)
		if err != nil {
			config.Exitf("admin: %v", err)
		}
		admins := services.StaticAdmins{cfg.Admin.Username: {
			Username: cfg.Admin.Username,
			PassHash: []byte(cfg.Admin.PasswordHash),
		}}
		deps.JWT = jwtAuth
		deps.Auth = services.NewAuthService(admins, jwtAuth.SignToken, cfg.Admin.TokenTTL)
	}
	if cfg.Telegram.Mode == config.ModeWebhook {
		deps.Webhook = telegram.WebhookHandler(dispatcher, cfg.Telegram.WebhookSecret)
	}

	mux := http.NewServeMux()
	api.NewRouter(deps).Register(mux)
	handler := middleware.RequestLog(middleware.SecureHeaders(
		middleware.CORS(cfg.Admin.CORSOrigins)(middleware.Locale("en")(mux)),
	))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("checkbot listening on %s (mode=%s)", cfg.Addr, cfg.Telegram.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		if cfg.Telegram.WebhookURL != "" {
			if err := bot.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				log.Printf("warning: setWebhook failed: %v", err)
			}
		}
	case config.ModePolling:
		go func() {
			if err := bot.Poll(ctx, dispatcher, cfg.Telegram.PollTimeout); err != nil {
				serveErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Printf("shutting down")
	case err := <-serveErr:
		log.Printf("server error: %v", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown: %v", err)
	}
	dispatcher.Close()
	if err := be.Close(); err != nil {
		log.Printf("warning: closing backends: %v", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("warning: tracing shutdown: %v", err)
		}
	}
}

func sweepSessions(ctx context.Context, svc *services.InterviewService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := svc.Sweep(now); n > 0 {
				observability.Logger().Info("expired idle sessions", "count", n, "active_users", svc.ActiveUsers())
			}
		}
	}
}
