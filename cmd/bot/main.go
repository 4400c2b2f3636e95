package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/meetnote-labs/meetnote/pkg/validator"

	"github.com/meetnote-labs/meetnote/internal/adapter/handler"
	"github.com/meetnote-labs/meetnote/internal/adapter/repository"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/bridge"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/cache"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/database"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/storage"
	"github.com/meetnote-labs/meetnote/internal/infrastructure/vectorstore"
	"github.com/meetnote-labs/meetnote/internal/usecase/classify"
	"github.com/meetnote-labs/meetnote/internal/usecase/dispatch"
	"github.com/meetnote-labs/meetnote/internal/usecase/extract"
	"github.com/meetnote-labs/meetnote/internal/usecase/index"
	"github.com/meetnote-labs/meetnote/internal/usecase/ingest"
	"github.com/meetnote-labs/meetnote/internal/usecase/pipeline"
	"github.com/meetnote-labs/meetnote/internal/usecase/query"
	"github.com/meetnote-labs/meetnote/internal/usecase/remind"
	"github.com/meetnote-labs/meetnote/pkg/config"
	"github.com/meetnote-labs/meetnote/pkg/llm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	// Initialize dedup cache. Redis is an optimization; the ledger stays
	// authoritative when it is down.
	log.Println("📦 Connecting to Redis...")
	var deduper cache.Deduper
	redisDeduper, err := cache.NewRedisDeduper(cfg)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, dedup falls back to the ledger: %v", err)
		deduper = cache.NoopDeduper{}
	} else {
		deduper = redisDeduper
		defer redisDeduper.Close()
	}

	// Initialize artifact archive
	var archiver storage.Archiver = storage.NoopArchiver{}
	if cfg.Storage.Enabled {
		log.Println("🪣 Connecting to object storage...")
		minioArchiver, err := storage.NewMinIOArchiver(&cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		archiver = minioArchiver
	}

	// Initialize LLM client
	log.Println("🤖 Initializing LLM client...")
	llmClient := llm.NewClient(cfg.LLM)
	if err := llmClient.Healthy(context.Background()); err != nil {
		log.Printf("⚠️  LLM backend not reachable at startup: %v", err)
	}

	// Initialize vector store
	var store vectorstore.Store
	switch cfg.Vector.Backend {
	case "memory":
		log.Println("🧠 Using in-memory vector store")
		store = vectorstore.NewMemoryStore()
	default:
		log.Println("🧠 Using pgvector store")
		store = vectorstore.NewPgvectorStore(db)
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	meetingRepo := repository.NewMeetingRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	reminderRepo := repository.NewReminderRepository(db)

	// Initialize messaging bridge
	log.Println("📡 Initializing messaging bridge...")
	bridgeClient := bridge.NewSignalClient(cfg.Bridge)

	// Initialize pipeline stages
	log.Println("🧩 Assembling pipeline...")
	indexer := index.NewIndexer(meetingRepo, store, llmClient, cfg.Vector, cfg.Pipeline, logger)
	resolver := extract.NewResolver(cfg.Location(), cfg.Reminder.DefaultHour)
	engine := extract.NewEngine(llmClient, cfg.LLM, cfg.Pipeline.ExtractionRetries, logger)
	pipelineSvc := pipeline.NewService(
		bridgeClient,
		ingest.NewService(ledgerRepo, deduper, cfg.Pipeline, logger),
		classify.NewClassifier(cfg.Pipeline.ClassifyThreshold, engine, logger),
		engine,
		resolver,
		meetingRepo,
		ledgerRepo,
		indexer,
		remind.NewService(reminderRepo, archiver, cfg.Reminder, logger),
		dispatch.NewDispatcher(bridgeClient, ledgerRepo, cfg.Pipeline, logger),
		query.NewAnswerer(indexer, meetingRepo, llmClient, cfg.LLM, logger),
		cfg,
		logger,
	)

	// Initialize Echo instance for the status API
	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())

	log.Println("🛣️  Setting up routes...")
	statusHandler := handler.NewStatusHandler(meetingRepo, ledgerRepo, reminderRepo, logger)
	router := handler.NewRouter(cfg, statusHandler)
	router.Setup(e)

	// Start pipeline
	pipelineCtx, pipelineCancel := context.WithCancel(context.Background())
	defer pipelineCancel()
	if err := pipelineSvc.Start(pipelineCtx); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}
	pipelineSvc.Announce(pipelineCtx)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting status API on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")

	if err := pipelineSvc.Stop(); err != nil {
		log.Printf("⚠️  Pipeline stop: %v", err)
	}
	pipelineCancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Stopped gracefully")
}
