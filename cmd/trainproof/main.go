package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/trainproof/trainproof/internal/ai"
	"github.com/trainproof/trainproof/internal/chunker"
	"github.com/trainproof/trainproof/internal/config"
	"github.com/trainproof/trainproof/internal/db"
	"github.com/trainproof/trainproof/internal/filestore"
	"github.com/trainproof/trainproof/internal/handler"
	appjob "github.com/trainproof/trainproof/internal/job"
	"github.com/trainproof/trainproof/internal/middleware"
	"github.com/trainproof/trainproof/internal/ratelimit"
	"github.com/trainproof/trainproof/internal/repo"
	"github.com/trainproof/trainproof/internal/schedule"
	"github.com/trainproof/trainproof/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "trainproof",
		Short: "compliance training document validation server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run trainproof server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			dbConn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(dbConn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, dbConn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, dbConn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("default_provider", cfg.AI.DefaultProvider),
		zap.String("default_strategy", cfg.AI.DefaultStrategy),
		zap.String("file_store", cfg.FileStore.Type),
	)

	docRepo := repo.NewDocumentRepo(dbConn)
	chunkRepo := repo.NewChunkRepo(dbConn)
	requirementRepo := repo.NewRequirementRepo(dbConn)
	promptRepo := repo.NewPromptRepo(dbConn)
	jobRepo := repo.NewJobRepo(dbConn)
	resultRepo := repo.NewResultRepo(dbConn)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	limiters := ratelimit.NewRegistry(cfg.AI.Providers)
	backends := make(map[string]*service.Backend, len(cfg.AI.Providers))
	runners := make(map[string]*ai.Runner, len(cfg.AI.Providers))
	for name, p := range cfg.AI.Providers {
		provider, err := ai.NewProvider(name, p.Data)
		if err != nil {
			return fmt.Errorf("init ai provider %s: %w", name, err)
		}
		limiter, err := limiters.Get(name)
		if err != nil {
			return err
		}
		runner := ai.NewRunner(provider, p.GenerateModel, p.EmbedModel,
			time.Duration(p.TimeoutSeconds)*time.Second)
		runners[name] = runner
		backends[name] = &service.Backend{Generator: runner, Limiter: limiter}
	}
	// All embeddings come from the deployment's default provider so
	// query vectors share the space of the indexed chunks.
	embedLimiter, err := limiters.Get(cfg.AI.DefaultProvider)
	if err != nil {
		return err
	}
	embedder := ai.NewCachedEmbedder(runners[cfg.AI.DefaultProvider],
		cfg.Indexing.CacheSize, time.Duration(cfg.Indexing.CacheTTLMinutes)*time.Minute)

	splitter, err := chunker.New(cfg.Indexing.ChunkWindow, cfg.Indexing.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("init chunker: %w", err)
	}

	backoffBase := time.Duration(cfg.Validation.BackoffBaseMS) * time.Millisecond
	tracker := service.NewProgressTracker()
	promptService := service.NewPromptService(promptRepo)
	documentService := service.NewDocumentService(docRepo, store)
	requirementService := service.NewRequirementService(requirementRepo)
	indexerService := service.NewIndexerService(docRepo, chunkRepo, splitter,
		embedder, embedLimiter, cfg.Indexing.EmbeddingDim, cfg.Validation.MaxAttempts, backoffBase)
	validationService := service.NewValidationService(service.ValidationDeps{
		Jobs:            jobRepo,
		Results:         resultRepo,
		Documents:       docRepo,
		Chunks:          chunkRepo,
		Requirements:    requirementRepo,
		Prompts:         promptService,
		Backends:        backends,
		Embedder:        embedder,
		EmbedLimiter:    embedLimiter,
		Tracker:         tracker,
		DefaultProvider: cfg.AI.DefaultProvider,
		DefaultStrategy: cfg.AI.DefaultStrategy,
		MaxAttempts:     cfg.Validation.MaxAttempts,
		BackoffBase:     backoffBase,
		TopK:            cfg.Validation.TopK,
		MinSimilarity:   cfg.Validation.MinSimilarity,
	})

	deps := handler.RouterDeps{
		Documents:     handler.NewDocumentHandler(documentService, indexerService),
		Requirements:  handler.NewRequirementHandler(requirementService),
		Prompts:       handler.NewPromptHandler(promptService),
		Jobs:          handler.NewJobHandler(validationService),
		TriggerWindow: time.Duration(cfg.TriggerIntervalMS) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(appjob.NewIndexSweepJob(indexerService, cfg.Schedule.IndexSweepBatch), cfg.Schedule.IndexSweepSpec); err != nil {
		return fmt.Errorf("schedule index sweep: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
