package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"compasshq.app/compass/common/id"
	"compasshq.app/compass/common/llm"
	"compasshq.app/compass/common/logger"
	"compasshq.app/compass/common/otel"
	"compasshq.app/compass/core/config"
	"compasshq.app/compass/core/db"
	"compasshq.app/compass/internal/advisory"
	"compasshq.app/compass/internal/queue"
	"compasshq.app/compass/internal/realtime"
	"compasshq.app/compass/internal/store"
	"compasshq.app/compass/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "compass worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Tasks.RedisGroup,
		"consumer_name", cfg.Tasks.RedisConsumer)

	// Different node ID than the server so both can mint IDs concurrently.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
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
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Tasks.RedisStream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Tasks.RedisStream,
		Group:        cfg.Tasks.RedisGroup,
		Consumer:     cfg.Tasks.RedisConsumer,
		DLQStream:    cfg.Tasks.RedisDLQ,
		BatchSize:    1, // Advisory calls are slow; process one task at a time
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Tasks.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

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

	feed := realtime.NewRedisFeed(redisClient, cfg.Realtime.ChannelPrefix, nil)
	stores := store.NewStores(database.Pool())

	processor := worker.NewAdvisoryProcessor(backend, stores.Proposals(), stores.Usage(), feed)

	w := worker.New(consumer, processor, worker.Config{
		MaxAttempts: cfg.Tasks.MaxAttempts,
	})

	reclaimer := worker.NewReclaimer(redisClient, worker.ReclaimerConfig{
		Stream:    cfg.Tasks.RedisStream,
		Group:     cfg.Tasks.RedisGroup,
		Consumer:  cfg.Tasks.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick), then the worker (may be mid-task).
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 ██████╗ ██████╗ ███╗   ███╗██████╗  █████╗ ███████╗███████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔════╝██╔═══██╗████╗ ████║██╔══██╗██╔══██╗██╔════╝██╔════╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██║     ██║   ██║██╔████╔██║██████╔╝███████║███████╗███████╗    ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██║     ██║   ██║██║╚██╔╝██║██╔═══╝ ██╔══██║╚════██║╚════██║    ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
╚██████╗╚██████╔╝██║ ╚═╝ ██║██║     ██║  ██║███████║███████║    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
 ╚═════╝ ╚═════╝ ╚═╝     ╚═╝╚═╝     ╚═╝  ╚═╝╚══════╝╚══════╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
