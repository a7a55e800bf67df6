package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"compasshq.app/compass/common/logger"
	"compasshq.app/compass/internal/queue"
)

type Config struct {
	MaxAttempts int
}

// Worker drains the task stream, one batch at a time. A failed task is
// requeued with an incremented attempt until MaxAttempts, then dead-lettered.
type Worker struct {
	consumer  *queue.RedisConsumer
	processor TaskProcessor
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer *queue.RedisConsumer, processor TaskProcessor, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"task_type", msg.TaskType,
				"project_id", msg.ProjectID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(msg.ProjectID),
		TaskType:  logger.Ptr(string(msg.TaskType)),
		Component: "compass.worker",
	})

	// Link the worker span to the request that enqueued the task.
	span := logger.StartSpanFromTraceID(ctx, msg.TraceID, fmt.Sprintf("worker.%s", msg.TaskType))
	ctx = span.Context()
	defer span.End()

	slog.InfoContext(ctx, "processing task",
		"message_id", msg.ID,
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)

	if err := w.processor.Process(ctx, msg); err != nil {
		span.RecordError(err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Log but don't fail; the task already ran and reprocessing after
		// redelivery only re-persists identical pending records.
		slog.WarnContext(ctx, "failed to ACK message",
			"error", err,
			"message_id", msg.ID)
	}

	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"task_type", msg.TaskType,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
