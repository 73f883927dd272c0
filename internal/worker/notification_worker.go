package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hanapgigs/escrow-engine/internal/observability"
	"github.com/hanapgigs/escrow-engine/internal/service"
	"go.uber.org/zap"
)

// NotificationWorker drains the notification outbox in the background.
// Safe for concurrent instances thanks to FOR UPDATE SKIP LOCKED.
type NotificationWorker struct {
	svc          *service.NotificationService
	pollInterval time.Duration
	batchSize    int32
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewNotificationWorker(svc *service.NotificationService) *NotificationWorker {
	return &NotificationWorker{
		svc:          svc,
		pollInterval: 5 * time.Second,
		batchSize:    20,
		stopCh:       make(chan struct{}),
	}
}

// WithPollInterval sets the poll interval for the worker.
func (w *NotificationWorker) WithPollInterval(interval time.Duration) *NotificationWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

// WithBatchSize sets the batch size for the worker.
func (w *NotificationWorker) WithBatchSize(size int32) *NotificationWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and drains the outbox at the configured interval.
func (w *NotificationWorker) Start(ctx context.Context) {
	zap.L().Info("notification worker starting",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int32("batch_size", w.batchSize))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("notification worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("notification worker stop signal received")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *NotificationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *NotificationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// ProcessOnce drains a single batch immediately. Useful in tests.
func (w *NotificationWorker) ProcessOnce(ctx context.Context) error {
	_, err := w.svc.DispatchPending(ctx, w.batchSize)
	return err
}

func (w *NotificationWorker) processBatch(ctx context.Context) {
	delivered, err := w.svc.DispatchPending(ctx, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("notification", "failed")
		zap.L().Error("notification batch failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("notification", "success")
	if delivered > 0 {
		zap.L().Debug("notifications dispatched", zap.Int("count", delivered))
	}
}
