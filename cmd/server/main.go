package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"compasshq.app/compass/common/id"
	"compasshq.app/compass/common/llm"
	"compasshq.app/compass/common/logger"
	"compasshq.app/compass/common/otel"
	"compasshq.app/compass/core/config"
	"compasshq.app/compass/core/db"
	"compasshq.app/compass/internal/advisor"
	"compasshq.app/compass/internal/advisory"
	httprouter "compasshq.app/compass/internal/http/router"
	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/queue"
	"compasshq.app/compass/internal/realtime"
	"compasshq.app/compass/internal/service"
	"compasshq.app/compass/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "compass server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := store.Migrate(ctx, database.Pool()); err != nil {
		slog.ErrorContext(ctx, "failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Tasks.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Tasks.RedisStream)

	llmClient, err := llm.New(llm.Config{
		Provider: cfg.Advisory.Provider,
		APIKey:   cfg.Advisory.APIKey,
		BaseURL:  cfg.Advisory.BaseURL,
		Model:    cfg.Advisory.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize llm client", "error", err)
		os.Exit(1)
	}
	backend := advisory.NewLLMBackend(llmClient, cfg.Advisory.MaxTokens)

	taskProducer := queue.NewRedisProducer(redisClient, cfg.Tasks.RedisStream, nil)
	defer taskProducer.Close()

	feed := realtime.NewRedisFeed(redisClient, cfg.Realtime.ChannelPrefix, nil)

	stores := store.NewStores(database.Pool())
	proposalService := service.NewProposalService(stores.Proposals(), feed)
	assessmentService := service.NewAssessmentService(taskProducer)
	questionService := service.NewQuestionService(stores.Proposals(), assessmentService)

	registry := advisor.NewRegistry(backend)
	defer registry.Shutdown()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Services{
		Proposals:   proposalService,
		Questions:   questionService,
		Assessments: assessmentService,
		Registry:    registry,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	// Idle edit sessions hold coordinators; sweep them periodically.
	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				if n := registry.PurgeIdle(); n > 0 {
					slog.InfoContext(purgeCtx, "purged idle validation sessions", "count", n)
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services httprouter.Services) *gin.Engine {
	router := gin.New()

	// OTel middleware must run first so later middleware logs with trace context.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}

	httprouter.SetupRoutes(router, services, httprouter.Config{
		Advisor: advisor.Config{
			Scope:    model.ValidationScope(cfg.Validator.Scope),
			Debounce: cfg.Validator.Debounce,
		},
	})

	return router
}

const banner = `
 ██████╗ ██████╗ ███╗   ███╗██████╗  █████╗ ███████╗███████╗
██╔════╝██╔═══██╗████╗ ████║██╔══██╗██╔══██╗██╔════╝██╔════╝
██║     ██║   ██║██╔████╔██║██████╔╝███████║███████╗███████╗
██║     ██║   ██║██║╚██╔╝██║██╔═══╝ ██╔══██║╚════██║╚════██║
╚██████╗╚██████╔╝██║ ╚═╝ ██║██║     ██║  ██║███████║███████║
 ╚═════╝ ╚═════╝ ╚═╝     ╚═╝╚═╝     ╚═╝  ╚═╝╚══════╝╚══════╝
`
