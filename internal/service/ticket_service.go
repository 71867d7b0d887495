package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/pqr-service/internal/config"
	"github.com/spec-kit/pqr-service/internal/domain"
	"github.com/spec-kit/pqr-service/internal/events"
	"github.com/spec-kit/pqr-service/internal/report"
	"github.com/spec-kit/pqr-service/internal/repository"
	"github.com/spec-kit/pqr-service/internal/storage"
	"github.com/spec-kit/pqr-service/internal/ticketcode"
	apperrors "github.com/spec-kit/pqr-service/pkg/util"
)

const maxCodeAttempts = 5

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	followUps  repository.FollowUpRepository
	media      repository.MediaRepository
	users      repository.UserRepository
	tx         repository.Transactor
	store      storage.Storage
	reports    *report.Generator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.TicketConfig
	newCode    func() (string, error)
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	FollowUpRepo repository.FollowUpRepository
	MediaRepo    repository.MediaRepository
	UserRepo     repository.UserRepository
	Transactor   repository.Transactor
	Storage      storage.Storage
	Reports      *report.Generator
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Config       config.TicketConfig
	// CodeGenerator overrides ticketcode.Generate.
	CodeGenerator func() (string, error)
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	PatientName   string
	ContactMethod string
	City          string
	Phone         string
	Email         string
	Description   string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Status string
	City   string
	Page   Page
}

// PublicFollowUp is the timeline entry shown to patients.
type PublicFollowUp struct {
	CreatedAt time.Time
	Status    domain.TicketStatus
	Content   string
	Diagnosis string
}

// PublicTicket is the privacy projection returned by the public lookup.
type PublicTicket struct {
	Code        string
	Status      domain.TicketStatus
	City        string
	Description string
	HandlerName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FollowUps   []PublicFollowUp
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	gen := deps.CodeGenerator
	if gen == nil {
		gen = ticketcode.Generate
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		followUps:  deps.FollowUpRepo,
		media:      deps.MediaRepo,
		users:      deps.UserRepo,
		tx:         deps.Transactor,
		store:      deps.Storage,
		reports:    deps.Reports,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		cfg:        deps.Config,
		newCode:    gen,
	}
}

// CreateTicket registers a case owned by the caller.
func (s *TicketService) CreateTicket(ctx context.Context, caller *domain.User, input TicketCreateInput, uploads []MediaInput) (*domain.Ticket, error) {
	input = trimTicketInput(input)
	required := map[string]string{
		"patientName": input.PatientName,
		"city":        input.City,
		"phone":       input.Phone,
		"description": input.Description,
	}
	if missing := missingFields(required, "patientName", "city", "phone", "description"); len(missing) > 0 {
		return nil, apperrors.NewValidationError("Faltan campos obligatorios", map[string]any{"fields": missing})
	}
	if err := s.validateUploads(uploads); err != nil {
		return nil, err
	}

	stored, err := s.storeUploads(ctx, uploads)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		PatientName:   input.PatientName,
		ContactMethod: input.ContactMethod,
		City:          input.City,
		Phone:         input.Phone,
		Email:         input.Email,
		Description:   input.Description,
		Status:        domain.TicketStatusInicial,
		Revenue:       s.revenue(),
		AssignedToID:  caller.ID,
	}

	if err := s.insertWithFreshCode(ctx, ticket, stored); err != nil {
		s.discardUploads(stored)
		return nil, err
	}

	ticket.AssignedTo = caller
	ticket.Media = stored
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventTicketCreated, ticket.ID, actorID(caller), events.TicketCreatedPayload{
		PatientName:  ticket.PatientName,
		City:         ticket.City,
		AssignedToID: ticket.AssignedToID,
		MediaCount:   len(stored),
	}))
	return ticket, nil
}

// insertWithFreshCode retries the whole transaction with a new code when the
// generated one already exists.
func (s *TicketService) insertWithFreshCode(ctx context.Context, ticket *domain.Ticket, media []domain.Media) error {
	var lastErr error
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return err
		}
		ticket.ID = code
		for i := range media {
			media[i].TicketID = code
		}

		lastErr = s.tx.WithinTx(ctx, func(repos repository.TxRepositories) error {
			if err := repos.Tickets.Create(ctx, ticket); err != nil {
				return err
			}
			for i := range media {
				if err := repos.Media.Create(ctx, &media[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if lastErr == nil {
			return nil
		}
		if !repository.IsUniqueViolation(lastErr) {
			return lastErr
		}
		s.logger.Warn("ticket code collision", zap.String("code", code), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("ticket code collision after %d attempts: %w", maxCodeAttempts, lastErr)
}

// ListTickets applies the visibility rule: only SUPERADMIN sees every ticket.
func (s *TicketService) ListTickets(ctx context.Context, caller *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	page := filter.Page.Normalize()
	repoFilter := repository.TicketFilter{
		Limit:  page.PageSize,
		Offset: page.Offset(),
	}
	if !caller.IsSuperAdmin() {
		repoFilter.AssignedToID = &caller.ID
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		repoFilter.City = &city
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		status, err := domain.ParseTicketStatus(value)
		if err != nil {
			return nil, errInvalidStatus(value)
		}
		repoFilter.Statuses = []domain.TicketStatus{status}
	}

	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	if err := s.attachAssignees(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// GetTicket returns the ticket with follow-ups and media.
func (s *TicketService) GetTicket(ctx context.Context, caller *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadManaged(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.loadDetail(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// UpdateStatus sets any writable status. There is no transition table.
func (s *TicketService) UpdateStatus(ctx context.Context, caller *domain.User, ticketID, value string) (*domain.Ticket, error) {
	status, err := parseWritableStatus(value)
	if err != nil {
		return nil, err
	}
	ticket, err := s.loadManaged(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}

	old := ticket.Status
	ticket.Status = status
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.attachAssignee(ctx, ticket); err != nil {
		return nil, err
	}

	if old != status {
		publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventTicketStatusChanged, ticket.ID, actorID(caller), events.TicketStatusChangedPayload{
			OldStatus: old,
			NewStatus: status,
		}))
	}
	return ticket, nil
}

// Reassign moves ownership to another user. Only SUPERADMIN may do it.
func (s *TicketService) Reassign(ctx context.Context, caller *domain.User, ticketID, userID string) (*domain.Ticket, error) {
	if !caller.IsSuperAdmin() {
		return nil, apperrors.NewForbidden("Solo un SUPERADMIN puede reasignar casos")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidationError("Debe indicar el usuario destino", map[string]any{"field": "userId"})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errTicketNotFound()
		}
		return nil, err
	}
	assignee, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errUserNotFound()
		}
		return nil, err
	}

	previous := ticket.AssignedToID
	ticket.AssignedToID = assignee.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	ticket.AssignedTo = assignee

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventTicketAssigned, ticket.ID, actorID(caller), events.TicketAssignedPayload{
		PreviousAssigneeID: previous,
		AssigneeID:         assignee.ID,
	}))
	return ticket, nil
}

// PublicLookup finds a ticket by a user-entered code and projects it for patients.
func (s *TicketService) PublicLookup(ctx context.Context, code string) (*PublicTicket, error) {
	candidates := ticketcode.Candidates(code)
	if len(candidates) == 0 {
		return nil, apperrors.NewValidationError("Debe ingresar el código del caso", map[string]any{"field": "code"})
	}

	ticket, err := s.tickets.FindByCodes(ctx, candidates)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, errTicketNotFound()
		}
		return nil, err
	}
	followUps, err := s.followUps.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	public := &PublicTicket{
		Code:        ticket.ID,
		Status:      ticket.Status,
		City:        ticket.City,
		Description: ticket.Description,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
		FollowUps:   make([]PublicFollowUp, 0, len(followUps)),
	}
	if handler, err := s.users.GetByID(ctx, ticket.AssignedToID); err == nil {
		public.HandlerName = handler.DisplayName()
	} else if !repository.IsNotFound(err) {
		return nil, err
	}
	for _, f := range followUps {
		public.FollowUps = append(public.FollowUps, PublicFollowUp{
			CreatedAt: f.CreatedAt,
			Status:    f.Status,
			Content:   f.Content,
			Diagnosis: f.Diagnosis,
		})
	}
	return public, nil
}

// OpenMedia streams a stored attachment the caller may see. The caller closes the reader.
func (s *TicketService) OpenMedia(ctx context.Context, caller *domain.User, mediaID string) (*domain.Media, io.ReadCloser, error) {
	media, err := s.media.GetByID(ctx, mediaID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, errMediaNotFound()
		}
		return nil, nil, err
	}
	if _, err := s.loadManaged(ctx, caller, media.TicketID); err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, media.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, errMediaNotFound()
		}
		return nil, nil, err
	}
	return media, rc, nil
}

// TicketReport renders the ticket detail as a PDF.
func (s *TicketService) TicketReport(ctx context.Context, caller *domain.User, ticketID string) ([]byte, error) {
	ticket, err := s.GetTicket(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}
	return s.reports.Ticket(ticket)
}

func (s *TicketService) loadManaged(ctx context.Context, caller *domain.User, ticketID string) (*domain.Ticket, error) {
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
	return ticket, nil
}

func (s *TicketService) loadDetail(ctx context.Context, ticket *domain.Ticket) error {
	followUps, err := s.followUps.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	media, err := s.media.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}

	byFollowUp := make(map[string][]domain.Media)
	for _, m := range media {
		if m.FollowUpID != nil {
			byFollowUp[*m.FollowUpID] = append(byFollowUp[*m.FollowUpID], m)
		}
	}
	for i := range followUps {
		followUps[i].Media = byFollowUp[followUps[i].ID]
	}
	ticket.FollowUps = followUps
	ticket.Media = media
	return s.attachAssignee(ctx, ticket)
}

func (s *TicketService) attachAssignee(ctx context.Context, ticket *domain.Ticket) error {
	user, err := s.users.GetByID(ctx, ticket.AssignedToID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	ticket.AssignedTo = user
	return nil
}

func (s *TicketService) attachAssignees(ctx context.Context, tickets []domain.Ticket) error {
	cache := make(map[string]*domain.User)
	for i := range tickets {
		id := tickets[i].AssignedToID
		user, seen := cache[id]
		if !seen {
			found, err := s.users.GetByID(ctx, id)
			if err != nil && !repository.IsNotFound(err) {
				return err
			}
			user = found
			cache[id] = user
		}
		tickets[i].AssignedTo = user
	}
	return nil
}

func (s *TicketService) revenue() decimal.Decimal {
	if s.cfg.Revenue.IsZero() {
		return decimal.NewFromInt(70000)
	}
	return s.cfg.Revenue
}

func (s *TicketService) validateUploads(uploads []MediaInput) error {
	return validateUploads(uploads, s.cfg)
}

func (s *TicketService) storeUploads(ctx context.Context, uploads []MediaInput) ([]domain.Media, error) {
	return storeUploads(ctx, s.store, s.logger, uploads)
}

func (s *TicketService) discardUploads(media []domain.Media) {
	discardUploads(s.store, s.logger, media)
}

func validateUploads(uploads []MediaInput, cfg config.TicketConfig) error {
	limit := cfg.MaxMedia
	if limit <= 0 {
		limit = 3
	}
	if len(uploads) > limit {
		return apperrors.NewValidationError(fmt.Sprintf("Se permiten máximo %d archivos", limit), map[string]any{"field": "media", "max": limit})
	}
	for _, u := range uploads {
		if cfg.MaxMediaBytes > 0 && u.Size > cfg.MaxMediaBytes {
			return apperrors.NewValidationError("El archivo excede el tamaño permitido", map[string]any{"file": u.FileName, "maxBytes": cfg.MaxMediaBytes})
		}
		if !allowedMime(u.MimeType) {
			return apperrors.NewValidationError("Tipo de archivo no permitido", map[string]any{"file": u.FileName, "mimeType": u.MimeType})
		}
	}
	return nil
}

func allowedMime(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	return strings.HasPrefix(mime, "image/") || mime == "application/pdf"
}

// storeUploads writes files before the database transaction so a rollback only
// leaves orphans that discardUploads removes.
func storeUploads(ctx context.Context, store storage.Storage, logger *zap.Logger, uploads []MediaInput) ([]domain.Media, error) {
	media := make([]domain.Media, 0, len(uploads))
	for _, u := range uploads {
		id := uuid.NewString()
		key := "media/" + id + strings.ToLower(path.Ext(u.FileName))
		if err := store.Save(ctx, key, u.Content, u.MimeType); err != nil {
			discardUploads(store, logger, media)
			return nil, fmt.Errorf("store %s: %w", u.FileName, err)
		}
		media = append(media, domain.Media{
			ID:         id,
			StorageKey: key,
			FileName:   path.Base(u.FileName),
			MimeType:   u.MimeType,
			SizeBytes:  u.Size,
		})
	}
	return media, nil
}

func discardUploads(store storage.Storage, logger *zap.Logger, media []domain.Media) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, m := range media {
		if err := store.Delete(ctx, m.StorageKey); err != nil {
			logger.Warn("failed to remove orphaned media", zap.String("key", m.StorageKey), zap.Error(err))
		}
	}
}

func trimTicketInput(in TicketCreateInput) TicketCreateInput {
	return TicketCreateInput{
		PatientName:   strings.TrimSpace(in.PatientName),
		ContactMethod: strings.TrimSpace(in.ContactMethod),
		City:          strings.TrimSpace(in.City),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.TrimSpace(in.Email),
		Description:   strings.TrimSpace(in.Description),
	}
}

func parseWritableStatus(value string) (domain.TicketStatus, error) {
	status, err := domain.ParseTicketStatus(value)
	if err != nil || !status.Writable() {
		return "", errInvalidStatus(value)
	}
	return status, nil
}

func errInvalidStatus(value string) error {
	return apperrors.NewValidationError("Estado inválido", map[string]any{
		"status":  strings.TrimSpace(value),
		"allowed": []domain.TicketStatus{domain.TicketStatusInicial, domain.TicketStatusEnSeguimiento, domain.TicketStatusFinalizado},
	})
}

func errMediaNotFound() error {
	return apperrors.NewNotFound("Archivo no encontrado", nil)
}
