package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/events"
)

// NotificationWorker drains the dispatcher queue with a fixed pool of goroutines.
// Each event gets its own timeout, detached from the request that produced it.
type NotificationWorker struct {
	dispatcher *events.InMemoryDispatcher
	logger     *zap.Logger
	workers    int
	timeout    time.Duration
	wg         sync.WaitGroup
}

// NewNotificationWorker builds the pool.
func NewNotificationWorker(dispatcher *events.InMemoryDispatcher, logger *zap.Logger, workers int, timeout time.Duration) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationWorker{dispatcher: dispatcher, logger: logger, workers: workers, timeout: timeout}
}

// Start launches the workers. They exit once the dispatcher is closed and drained.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop closes the queue and waits for in-flight deliveries.
func (w *NotificationWorker) Stop() {
	w.dispatcher.Close()
	w.wg.Wait()
}

func (w *NotificationWorker) run(ctx context.Context, id int) {
	defer w.wg.Done()
	for event := range w.dispatcher.Events() {
		w.deliver(ctx, id, event)
	}
}

func (w *NotificationWorker) deliver(parent context.Context, id int, event events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), w.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("event handler panicked",
				zap.Int("worker", id),
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
		}
	}()

	if err := w.dispatcher.Deliver(ctx, event); err != nil {
		w.logger.Warn("event delivery failed",
			zap.Int("worker", id),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
