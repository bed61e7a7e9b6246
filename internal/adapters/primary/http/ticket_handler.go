package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lorrc/ticket-triage/internal/adapters/primary/validation"
	"github.com/lorrc/ticket-triage/internal/core/domain"
	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

// TicketHandler handles HTTP requests for tickets
type TicketHandler struct {
	ticketService         ports.TicketService
	statsService          ports.StatsService
	classificationService ports.ClassificationService
	classifyLimiter       func(http.Handler) http.Handler
	errorHandler          *ErrorHandler
	logger                *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(
	ticketService ports.TicketService,
	statsService ports.StatsService,
	classificationService ports.ClassificationService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		ticketService:         ticketService,
		statsService:          statsService,
		classificationService: classificationService,
		errorHandler:          errorHandler,
		logger:                logger.With("handler", "ticket"),
	}
}

// WithClassifyLimiter wraps the classify route in the given middleware.
func (h *TicketHandler) WithClassifyLimiter(limiter func(http.Handler) http.Handler) *TicketHandler {
	h.classifyLimiter = limiter
	return h
}

// Router sets up a new chi Router for all ticket-related routes.
func (h *TicketHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all ticket endpoints. Every route
// also answers with a trailing slash.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Use(chimw.StripSlashes)

	r.Get("/", h.HandleListTickets)
	r.Post("/", h.HandleCreateTicket)

	r.Get("/stats", h.HandleStats)
	if h.classifyLimiter != nil {
		r.With(h.classifyLimiter).Post("/classify", h.HandleClassify)
	} else {
		r.Post("/classify", h.HandleClassify)
	}

	r.Route("/{ticketID}", func(r chi.Router) {
		r.Get("/", h.HandleGetTicket)
		r.Patch("/", h.HandleUpdateTicket)
	})
}

// --- Request DTOs ---

// CreateTicketRequest defines the expected JSON body for creating a ticket
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

// Validate validates the create ticket request
func (r *CreateTicketRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)

	v := validation.NewValidator()

	v.Required("title", r.Title).
		MaxLength("title", r.Title, domain.MaxTitleLength)

	v.Required("description", r.Description)

	v.Required("category", r.Category).
		OneOf("category", r.Category, categoryValues())

	v.Required("priority", r.Priority).
		OneOf("priority", r.Priority, priorityValues())

	v.OneOf("status", r.Status, statusValues())

	return v.Err()
}

// UpdateTicketRequest is a partial update; absent fields are left untouched.
type UpdateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
}

// Validate validates the fields that are present
func (r *UpdateTicketRequest) Validate() error {
	v := validation.NewValidator()

	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		r.Title = &trimmed
		v.Required("title", trimmed).
			MaxLength("title", trimmed, domain.MaxTitleLength)
	}
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		r.Description = &trimmed
		v.Required("description", trimmed)
	}
	if r.Category != nil {
		v.Required("category", *r.Category).
			OneOf("category", *r.Category, categoryValues())
	}
	if r.Priority != nil {
		v.Required("priority", *r.Priority).
			OneOf("priority", *r.Priority, priorityValues())
	}
	if r.Status != nil {
		v.Required("status", *r.Status).
			OneOf("status", *r.Status, statusValues())
	}

	return v.Err()
}

func (r *UpdateTicketRequest) toUpdate() domain.TicketUpdate {
	update := domain.TicketUpdate{
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Category != nil {
		c := domain.Category(*r.Category)
		update.Category = &c
	}
	if r.Priority != nil {
		p := domain.Priority(*r.Priority)
		update.Priority = &p
	}
	if r.Status != nil {
		s := domain.Status(*r.Status)
		update.Status = &s
	}
	return update
}

// ClassifyRequest defines the expected JSON body for classification
type ClassifyRequest struct {
	Description string `json:"description"`
}

// Validate validates the classify request
func (r *ClassifyRequest) Validate() error {
	r.Description = strings.TrimSpace(r.Description)
	return validation.NewValidator().
		Required("description", r.Description).
		Err()
}

func toTicketSnapshots(tickets []*domain.Ticket) []domain.TicketSnapshot {
	response := make([]domain.TicketSnapshot, 0, len(tickets))
	for _, ticket := range tickets {
		response = append(response, domain.NewTicketSnapshot(ticket))
	}
	return response
}

// --- Handlers ---

// HandleListTickets handles GET /tickets
func (h *TicketHandler) HandleListTickets(w http.ResponseWriter, r *http.Request) {
	filter := ports.TicketFilter{
		Category: validation.QueryParamOrEmpty(r, "category"),
		Priority: validation.QueryParamOrEmpty(r, "priority"),
		Status:   validation.QueryParamOrEmpty(r, "status"),
		Search:   validation.QueryParamOrEmpty(r, "search"),
		Ordering: validation.QueryParamOrEmpty(r, "ordering"),
	}

	tickets, err := h.ticketService.ListTickets(r.Context(), filter)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, toTicketSnapshots(tickets))
}

// HandleCreateTicket handles POST /tickets
func (h *TicketHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[CreateTicketRequest](r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}

	ticket, err := h.ticketService.CreateTicket(r.Context(), ports.CreateTicketParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    domain.Category(req.Category),
		Priority:    domain.Priority(req.Priority),
		Status:      domain.Status(req.Status),
	})
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "ticket created",
		"ticket_id", ticket.ID,
		"category", ticket.Category,
		"priority", ticket.Priority,
	)

	WriteCreated(w, domain.NewTicketSnapshot(ticket))
}

// HandleGetTicket handles GET /tickets/{ticketID}
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	ticket, err := h.ticketService.GetTicket(r.Context(), ticketID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, domain.NewTicketSnapshot(ticket))
}

// HandleUpdateTicket handles PATCH /tickets/{ticketID}
func (h *TicketHandler) HandleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	req, err := validation.DecodeAndValidate[UpdateTicketRequest](r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}

	ticket, err := h.ticketService.UpdateTicket(r.Context(), ticketID, req.toUpdate())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "ticket updated",
		"ticket_id", ticket.ID,
		"status", ticket.Status,
	)

	WriteJSON(w, http.StatusOK, domain.NewTicketSnapshot(ticket))
}

// HandleStats handles GET /tickets/stats
func (h *TicketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.ComputeStats(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// HandleClassify handles POST /tickets/classify. Once the body validates the
// answer is always 200; the service substitutes defaults on any failure.
func (h *TicketHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[ClassifyRequest](r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}

	result := h.classificationService.Classify(r.Context(), req.Description)

	WriteJSON(w, http.StatusOK, result)
}

// parseTicketID reads the {ticketID} URL parameter. Anything that is not a
// positive integer cannot name a ticket.
func parseTicketID(r *http.Request) (int64, error) {
	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil || ticketID <= 0 {
		return 0, apperrors.ErrTicketNotFound
	}
	return ticketID, nil
}

func categoryValues() []string {
	values := make([]string, 0, len(domain.AllCategories()))
	for _, c := range domain.AllCategories() {
		values = append(values, string(c))
	}
	return values
}

func priorityValues() []string {
	values := make([]string, 0, len(domain.AllPriorities()))
	for _, p := range domain.AllPriorities() {
		values = append(values, string(p))
	}
	return values
}

func statusValues() []string {
	values := make([]string, 0, len(domain.AllStatuses()))
	for _, s := range domain.AllStatuses() {
		values = append(values, string(s))
	}
	return values
}
