package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blackline/internal/auth"
	"blackline/internal/config"
	"blackline/internal/detect"
	"blackline/internal/domain/models"
	"blackline/internal/extract"
	"blackline/internal/filestore"
	"blackline/internal/handler"
	"blackline/internal/middleware"
	"blackline/internal/repository/postgres"
	"blackline/internal/service"
	"blackline/internal/tasks"
	"blackline/internal/training"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
	)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	store, err := filestore.NewLocalStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize file store: %v", err)
	}

	// Repositories
	repoConfig := &postgres.RepositoryConfig{Pool: pool, Logger: logger}
	txManager := postgres.NewTransactionManager(pool, logger)
	caseRepo := postgres.NewCaseRepository(repoConfig)
	docRepo := postgres.NewDocumentRepository(repoConfig)
	redactionRepo := postgres.NewRedactionRepository(repoConfig)
	trainingDocRepo := postgres.NewTrainingDocumentRepository(repoConfig)
	runRepo := postgres.NewTrainingRunRepository(repoConfig)
	modelRepo := postgres.NewModelRepository(repoConfig, runRepo, txManager)

	// Detection stack
	detectCfg, err := detect.LoadConfig(cfg.DetectorConfig)
	if err != nil {
		log.Fatalf("Failed to load detector config: %v", err)
	}
	detector := detect.NewDetector(detectCfg, logger)
	registry := detect.NewRegistry(modelRepo, logger)
	extractor := extract.NewExtractor(logger)

	// Background task queue
	queue := tasks.NewQueue(logger)

	// Services
	caseService := service.NewCaseService(caseRepo, docRepo, store, queue, cfg.RetentionYears, logger)
	docService := service.NewDocumentService(docRepo, caseRepo, redactionRepo, store, queue, txManager, logger)
	redactionService := service.NewRedactionService(redactionRepo, docRepo, queue, logger)
	suggestionService := service.NewSuggestionService(docRepo, redactionRepo, extractor, detector, registry, store, txManager, logger)
	propagationService := service.NewPropagationService(redactionRepo, docRepo, txManager, logger)
	exportService := service.NewExportService(caseRepo, docRepo, redactionRepo, store, logger)
	trainingService := service.NewTrainingService(trainingDocRepo, runRepo, modelRepo, registry, store, queue, logger)

	collector := training.NewCollector(trainingDocRepo, docRepo, redactionRepo, store, detectCfg, logger)
	trainer := training.NewTrainer(collector, modelRepo, runRepo, trainingDocRepo, txManager, cfg.ModelsDir, logger)

	// Task handlers
	queue.Register(tasks.OpDocumentProcess, func(ctx context.Context, args ...string) error {
		if len(args) != 1 {
			return errors.New("document.process expects a document ID")
		}
		return suggestionService.Process(ctx, args[0])
	})
	queue.Register(tasks.OpRedactionPropagate, func(ctx context.Context, args ...string) error {
		if len(args) != 1 {
			return errors.New("redaction.propagate expects a redaction ID")
		}
		return propagationService.Propagate(ctx, args[0])
	})
	queue.Register(tasks.OpCaseExport, func(ctx context.Context, args ...string) error {
		if len(args) != 1 {
			return errors.New("case.export expects a case ID")
		}
		return exportService.Export(ctx, args[0])
	})
	queue.Register(tasks.OpTrainingRun, func(ctx context.Context, args ...string) error {
		if len(args) != 1 {
			return errors.New("training.run expects a source")
		}
		_, err := trainer.Train(ctx, models.TrainingSource(args[0]))
		return err
	})
	queue.Start(cfg.Workers)
	defer queue.Stop()

	// Retention sweep, daily
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@daily", func() {
		deleted, err := caseService.SweepExpired(context.Background())
		if err != nil {
			logger.Error("retention sweep failed", "error", err)
			return
		}
		if deleted > 0 {
			logger.Info("retention sweep finished", "deleted", deleted)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule retention sweep: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Handlers
	caseHandler := handler.NewCaseHandler(caseService, logger)
	docHandler := handler.NewDocumentHandler(docService, logger)
	redactionHandler := handler.NewRedactionHandler(redactionService, logger)
	trainingHandler := handler.NewTrainingHandler(trainingService, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Case routes
	mux.HandleFunc("GET /api/cases", caseHandler.ListCases)
	mux.HandleFunc("POST /api/cases", caseHandler.CreateCase)
	mux.HandleFunc("GET /api/cases/{id}", caseHandler.GetCase)
	mux.HandleFunc("PATCH /api/cases/{id}", caseHandler.UpdateCase)
	mux.HandleFunc("DELETE /api/cases/{id}", caseHandler.DeleteCase)
	mux.HandleFunc("POST /api/cases/{id}/export", caseHandler.StartExport)
	mux.HandleFunc("GET /api/cases/{id}/export", caseHandler.DownloadExport)

	// Document routes
	mux.HandleFunc("POST /api/cases/{id}/documents", docHandler.UploadDocuments)
	mux.HandleFunc("GET /api/cases/{id}/documents", docHandler.ListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", docHandler.GetDocument)
	mux.HandleFunc("POST /api/documents/{id}/resubmit", docHandler.Resubmit)
	mux.HandleFunc("POST /api/documents/{id}/cancel", docHandler.CancelProcessing)
	mux.HandleFunc("PATCH /api/documents/{id}/status", docHandler.SetStatus)
	mux.HandleFunc("DELETE /api/documents/{id}", docHandler.DeleteDocument)

	// Redaction routes
	mux.HandleFunc("GET /api/documents/{id}/redactions", redactionHandler.ListRedactions)
	mux.HandleFunc("POST /api/documents/{id}/redactions", redactionHandler.CreateRedaction)
	mux.HandleFunc("GET /api/redactions/{id}", redactionHandler.GetRedaction)
	mux.HandleFunc("PATCH /api/redactions/{id}", redactionHandler.UpdateRedaction)
	mux.HandleFunc("DELETE /api/redactions/{id}", redactionHandler.DeleteRedaction)
	mux.HandleFunc("PUT /api/redactions/{id}/context", redactionHandler.SetContext)
	mux.HandleFunc("DELETE /api/redactions/{id}/context", redactionHandler.DeleteContext)

	// Model routes
	mux.HandleFunc("GET /api/models", trainingHandler.ListModels)
	mux.HandleFunc("GET /api/models/{id}", trainingHandler.GetModel)
	mux.HandleFunc("POST /api/models/{id}/activate", trainingHandler.ActivateModel)
	mux.HandleFunc("DELETE /api/models/{id}", trainingHandler.DeleteModel)

	// Training routes
	mux.HandleFunc("POST /api/training/documents", trainingHandler.UploadTrainingDocument)
	mux.HandleFunc("GET /api/training/documents", trainingHandler.ListTrainingDocuments)
	mux.HandleFunc("DELETE /api/training/documents/{id}", trainingHandler.DeleteTrainingDocument)
	mux.HandleFunc("POST /api/training/runs", trainingHandler.StartTraining)
	mux.HandleFunc("GET /api/training/runs", trainingHandler.ListTrainingRuns)

	// Middleware chain, applied in reverse order
	// Order: CORS -> Recovery -> Auth -> Routes
	var root http.Handler = mux
	root = middleware.Auth(jwtVerifier)(root)
	root = middleware.Recovery(logger)(root)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}
