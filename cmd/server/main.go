package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron"

	config "github.com/maheshrc27/postify/configs"
	"github.com/maheshrc27/postify/internal/api"
	"github.com/maheshrc27/postify/internal/database"
	"github.com/maheshrc27/postify/internal/gateway"
	job "github.com/maheshrc27/postify/internal/jobs"
	"github.com/maheshrc27/postify/internal/logger"
	"github.com/maheshrc27/postify/internal/metrics"
	"github.com/maheshrc27/postify/internal/platform"
	"github.com/maheshrc27/postify/internal/repository"
	"github.com/maheshrc27/postify/internal/service"
	"github.com/maheshrc27/postify/internal/storage"
	"github.com/maheshrc27/postify/internal/workflow"
	"github.com/maheshrc27/postify/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	logger.SetupDefault(os.Stdout, cfg.LogLevel)

	ctx := context.Background()

	if err := database.RunMigrations(cfg.PostgresURI); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db, err := database.Open(ctx, cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	cipher, err := utils.NewCipher(cfg.SecretKey)
	if err != nil {
		log.Fatalf("Failed to set up credential encryption: %v", err)
	}

	media, err := newMediaStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up media storage: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	registry := platform.Default()

	userRepo := repository.NewUserRepository(db)
	credentialRepo := repository.NewCredentialRepository(db, cipher)
	historyRepo := repository.NewPublishHistoryRepository(db)

	services := gateway.New(cfg.Services)
	var verifier workflow.Verifier
	if cfg.Services.VerifyURL != "" {
		verifier = services
	} else {
		slog.Warn("VERIFY_URL is not set, credentials are stored without verification")
	}

	connector := workflow.NewConnector(registry, credentialRepo, verifier,
		workflow.WithConnectorMetrics(collector))
	composer := workflow.NewComposer(connector, media, services, services,
		workflow.WithHistory(historyRepo),
		workflow.WithComposerMetrics(collector))

	sessionService := service.NewSessionService(connector, composer)
	authService := service.NewAuthService(*cfg, db, userRepo, credentialRepo, registry)
	userService := service.NewUserService(userRepo, credentialRepo, connector, sessionService)
	historyService := service.NewHistoryService(historyRepo)

	app := api.NewApp(*cfg, api.Services{
		Auth:     authService,
		User:     userService,
		Sessions: sessionService,
		History:  historyService,
		Registry: registry,
		Gatherer: reg,
	})

	// cron jobs
	sweepJob := job.NewDraftSweepJob(sessionService, cfg.DraftIdleTTL, collector)

	c := cron.New()
	if err := sweepJob.Schedule(c); err != nil {
		log.Fatalf("Failed to schedule draft sweep: %v", err)
	}
	c.Start()
	defer c.Stop()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("server is running", "port", cfg.Port)

	gracefulShutdown(app, db)
}

func newMediaStore(ctx context.Context, cfg *config.Config) (storage.MediaStore, error) {
	if !cfg.R2.Enabled() {
		slog.Warn("R2 is not configured, keeping draft images in memory")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewR2Store(ctx, cfg.R2)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
