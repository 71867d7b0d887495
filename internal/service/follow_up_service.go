package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/config"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/events"
	"github.com/spec-kit/pqr-service/internal/repository"
	"github.com/spec-kit/pqr-service/internal/storage"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

// FollowUpInput describes a follow-up submission. Status defaults to EN_SEGUIMIENTO.
type FollowUpInput struct {
	Content   string
	Diagnosis string
	Protocol  string
	BonusInfo string
	Status    string
}

// FollowUpService appends diagnosis entries to tickets.
type FollowUpService struct {
	tickets    repository.TicketRepository
	tx         repository.Transactor
	store      storage.Storage
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.TicketConfig
}

// FollowUpDependencies bundles collaborators for the follow-up service.
type FollowUpDependencies struct {
	TicketRepo repository.TicketRepository
	Transactor repository.Transactor
	Storage    storage.Storage
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Config     config.TicketConfig
}

// NewFollowUpService builds the service.
func NewFollowUpService(deps FollowUpDependencies) *FollowUpService {
	return &FollowUpService{
		tickets:    deps.TicketRepo,
		tx:         deps.Transactor,
		store:      deps.Storage,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		cfg:        deps.Config,
	}
}

// CreateFollowUp records the entry, moves the ticket to its status and, after
// commit, queues the webhook notification.
func (s *FollowUpService) CreateFollowUp(ctx context.Context, caller *domain.User, ticketID string, input FollowUpInput, uploads []MediaInput) (*domain.FollowUp, error) {
	input.Diagnosis = strings.TrimSpace(input.Diagnosis)
	if input.Diagnosis == "" {
		return nil, apperrors.NewValidationError("El diagnóstico es obligatorio", map[string]any{"field": "diagnosis"})
	}
	status := domain.TicketStatusEnSeguimiento
	if strings.TrimSpace(input.Status) != "" {
		parsed, err := parseWritableStatus(input.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	if err := validateUploads(uploads, s.cfg); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errTicketNotFound()
		}
		return nil, err
	}
	if !canManage(caller, ticket) {
		return nil, errForbiddenTicket()
	}

	stored, err := storeUploads(ctx, s.store, s.logger, uploads)
	if err != nil {
		return nil, err
	}

	followUp := &domain.FollowUp{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		AuthorID:  actorID(caller),
		Content:   strings.TrimSpace(input.Content),
		Diagnosis: input.Diagnosis,
		Protocol:  strings.TrimSpace(input.Protocol),
		BonusInfo: strings.TrimSpace(input.BonusInfo),
		Status:    status,
	}
	for i := range stored {
		stored[i].TicketID = ticket.ID
		stored[i].FollowUpID = &followUp.ID
	}

	err = s.tx.WithinTx(ctx, func(repos repository.TxRepositories) error {
		if err := repos.FollowUps.Create(ctx, followUp); err != nil {
			return err
		}
		ticket.Status = status
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		for i := range stored {
			if err := repos.Media.Create(ctx, &stored[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		discardUploads(s.store, s.logger, stored)
		return nil, err
	}
	followUp.Media = stored

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventFollowUpCreated, ticket.ID, actorID(caller), events.FollowUpCreatedPayload{
		FollowUpID:  followUp.ID,
		PatientName: ticket.PatientName,
		City:        ticket.City,
		Diagnosis:   followUp.Diagnosis,
		Protocol:    followUp.Protocol,
		Status:      status,
		MediaCount:  len(stored),
	}))
	return followUp, nil
}
