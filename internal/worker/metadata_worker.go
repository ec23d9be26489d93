package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"bacopilot/internal/logging"
	"bacopilot/internal/metrics"
	"bacopilot/internal/model"
	"bacopilot/internal/platform/rabbitmq"
)

// JobProcessor handles one decoded metadata job.
type JobProcessor interface {
	Process(ctx context.Context, job model.MetadataJob) error
}

type MetadataWorker struct {
	conn      *amqp.Connection
	processor JobProcessor
	queueName string
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMetadataWorker(conn *amqp.Connection, processor JobProcessor, queueName string, logger *slog.Logger) *MetadataWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataWorker{
		conn:      conn,
		processor: processor,
		queueName: queueName,
		logger:    logger.With("component", "metadata_worker", "queue", queueName),
	}
}

func (w *MetadataWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	w.logger.Info("metadata worker started")
	return nil
}

func (w *MetadataWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job model.MetadataJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.logger.Error("decode metadata job failed", "error", err)
		metrics.MetadataJobs.WithLabelValues("invalid").Inc()
		_ = d.Nack(false, false)
		return
	}

	logger := w.logger.With("job", jobKey(job.FileID))
	err := w.processor.Process(logging.WithLogger(ctx, logger), job)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrFileGone):
		logger.Warn("drop metadata job", "error", err)
		_ = d.Ack(false)
	case ctx.Err() != nil:
		// shutting down, let the broker redeliver
		_ = d.Nack(false, true)
	default:
		logger.Error("process metadata job failed", "error", err)
		_ = d.Nack(false, false)
	}
}

func (w *MetadataWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
