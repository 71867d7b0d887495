package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/events"
)

func TestWorkerDeliversAndDrainsOnStop(t *testing.T) {
	d := events.NewInMemoryDispatcher(16)
	var delivered atomic.Int32
	d.Subscribe(events.EventFollowUpCreated, func(ctx context.Context, _ events.Event) error {
		_, hasDeadline := ctx.Deadline()
		if !hasDeadline {
			return errors.New("missing deadline")
		}
		delivered.Add(1)
		return nil
	})

	w := NewNotificationWorker(d, zap.NewNop(), 3, time.Second)
	w.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Publish(context.Background(), events.New(events.EventFollowUpCreated, "PQR000001", nil, nil)))
	}
	w.Stop()

	assert.Equal(t, int32(10), delivered.Load())
}

func TestWorkerSurvivesFailingAndPanickingHandlers(t *testing.T) {
	d := events.NewInMemoryDispatcher(8)
	var after atomic.Int32
	d.Subscribe(events.EventTicketCreated, func(context.Context, events.Event) error {
		return errors.New("webhook down")
	})
	d.Subscribe(events.EventTrainingBooked, func(context.Context, events.Event) error {
		panic("bad handler")
	})
	d.Subscribe(events.EventFollowUpCreated, func(context.Context, events.Event) error {
		after.Add(1)
		return nil
	})

	w := NewNotificationWorker(d, zap.NewNop(), 1, time.Second)
	w.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, events.New(events.EventTicketCreated, "a", nil, nil)))
	require.NoError(t, d.Publish(ctx, events.New(events.EventTrainingBooked, "", nil, nil)))
	require.NoError(t, d.Publish(ctx, events.New(events.EventFollowUpCreated, "b", nil, nil)))
	w.Stop()

	assert.Equal(t, int32(1), after.Load())
}

func TestDeliveryOutlivesCanceledParent(t *testing.T) {
	d := events.NewInMemoryDispatcher(1)
	var sawErr atomic.Value
	d.Subscribe(events.EventFollowUpCreated, func(ctx context.Context, _ events.Event) error {
		sawErr.Store(ctx.Err() == nil)
		return nil
	})

	parent, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewNotificationWorker(d, zap.NewNop(), 1, time.Second)
	w.Start(parent)
	require.NoError(t, d.Publish(context.Background(), events.New(events.EventFollowUpCreated, "c", nil, nil)))
	w.Stop()

	assert.Equal(t, true, sawErr.Load())
}
