package service

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/events"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MediaInput is one uploaded file. Content is read once.
type MediaInput struct {
	FileName string
	MimeType string
	Size     int64
	Content  io.Reader
}

// Page describes 1-based pagination.
type Page struct {
	Page     int
	PageSize int
}

// Normalize applies defaults and bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// canManage is the single ownership rule for ticket reads and writes.
func canManage(caller *domain.User, ticket *domain.Ticket) bool {
	return caller.IsSuperAdmin() || ticket.OwnedBy(caller.ID)
}

func errForbiddenTicket() error {
	return apperrors.NewForbidden("No tiene permisos sobre este caso")
}

func errTicketNotFound() error {
	return apperrors.NewNotFound("Caso no encontrado, verifique el código", nil)
}

func actorID(user *domain.User) *string {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}

// publishEvent hands the event to the async dispatcher. Failures are logged only.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("failed to enqueue event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func missingFields(fields map[string]string, order ...string) []string {
	var missing []string
	for _, name := range order {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
