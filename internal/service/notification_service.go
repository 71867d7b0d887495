package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/config"
	"github.com/spec-kit/pqr-service/internal/events"
)

// NotificationService forwards domain events to the configured webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventFollowUpCreated, n.handleFollowUpCreated)
	n.dispatcher.Subscribe(events.EventTicketCreated, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.logEvent)
	n.dispatcher.Subscribe(events.EventTrainingBooked, n.logEvent)
}

func (n *NotificationService) handleFollowUpCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("FollowUpCreated", zap.String("ticket_id", event.TicketID))
	return n.sendWebhook(ctx, event)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		n.logger.Debug("webhook disabled", zap.String("event_type", string(event.Type)))
		return nil
	}

	timeout := n.cfg.Timeout()
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(url).JSON(event).Timeout(timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook request: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("webhook returned %d: %s", code, truncate(string(body), 200))
	}
	n.logger.Debug("webhook delivered", zap.String("event_id", event.ID), zap.Int("status", code))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
