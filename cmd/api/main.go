package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/config"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/oidc"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/router"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/user"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/vision"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/database"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-persona-ai")

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	if err := database.Migrate(sqlDB, sugar); err != nil {
		sugar.Fatalf("db migrate: %v", err)
	}

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	httpClient := &http.Client{Timeout: 30 * time.Second}

	analyzer, err := vision.NewGeminiClient(ctx, cfg.Vision, nil, sugar)
	if err != nil {
		sugar.Fatalf("vision client: %v", err)
	}

	provider, err := oidc.Discover(ctx, httpClient, cfg.OIDC.IssuerURL)
	if err != nil {
		sugar.Fatalf("oidc: %v", err)
	}

	userSvc := user.NewUserService(sqlxDB, nil)
	authSvc := oidc.NewService(sqlxDB, cfg.OIDC, provider, userSvc, sugar, oidc.Options{HTTPClient: httpClient})
	predictionSvc := prediction.NewPredictionService(sqlxDB, nil, analyzer, sugar)
	personalitySvc := personality.NewPersonalityService(sqlxDB, nil, analyzer, sugar)

	pruner, err := oidc.StartPruner(authSvc, cfg.OIDC.PruneInterval, sugar)
	if err != nil {
		sugar.Fatalf("session pruner: %v", err)
	}

	handler := router.RegisterRoutes(sugar, router.Deps{
		Auth:        oidc.NewHandler(authSvc, sugar),
		Guard:       oidc.NewGuard(authSvc, sugar),
		Users:       user.NewHandler(userSvc, sugar),
		Predictions: prediction.NewHandler(predictionSvc, sugar),
		Analyses:    personality.NewHandler(personalitySvc, sugar),
		StaticDir:   cfg.StaticDir,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", cfg.HTTPAddr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// analyses wait on the model, so allow longer than a plain request
	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.Vision.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := pruner.Shutdown(); err != nil {
		sugar.Warnf("scheduler shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
