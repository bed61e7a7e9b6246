package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
)

const (
	// MaxTitleLength is the maximum number of characters allowed in a title.
	MaxTitleLength = 200
)

// Category is the functional area a ticket belongs to.
type Category string

const (
	CategoryBilling   Category = "billing"
	CategoryTechnical Category = "technical"
	CategoryAccount   Category = "account"
	CategoryGeneral   Category = "general"
)

// AllCategories returns every category in display order.
func AllCategories() []Category {
	return []Category{CategoryBilling, CategoryTechnical, CategoryAccount, CategoryGeneral}
}

// IsValid checks if the category is a known value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryBilling, CategoryTechnical, CategoryAccount, CategoryGeneral:
		return true
	}
	return false
}

// Priority represents the urgency of a ticket.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AllPriorities returns every priority from least to most urgent.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// IsValid checks if the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status represents the lifecycle state of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}
}

// IsValid checks if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Ticket is the core domain entity.
type Ticket struct {
	ID          int64
	Title       string
	Description string
	Category    Category
	Priority    Priority
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// TicketParams holds the fields required to open a ticket.
type TicketParams struct {
	Title       string
	Description string
	Category    Category
	Priority    Priority
	Status      Status // optional, defaults to open
}

// TicketUpdate is a partial update. Nil fields are left untouched.
type TicketUpdate struct {
	Title       *string
	Description *string
	Category    *Category
	Priority    *Priority
	Status      *Status
}

// IsEmpty reports whether the update changes nothing.
func (u TicketUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil &&
		u.Priority == nil && u.Status == nil
}

// NewTicket is a factory function to create a valid new ticket.
// CreatedAt is left zero; the store assigns it.
func NewTicket(params TicketParams) (*Ticket, error) {
	status := params.Status
	if status == "" {
		status = StatusOpen
	}

	ticket := &Ticket{
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		Priority:    params.Priority,
		Status:      status,
	}

	if errs := ticket.validate(); errs.HasErrors() {
		return nil, errs
	}
	return ticket, nil
}

// ApplyUpdate validates and applies a partial update. On error the ticket
// is left unchanged.
func (t *Ticket) ApplyUpdate(update TicketUpdate) error {
	next := *t
	if update.Title != nil {
		next.Title = *update.Title
	}
	if update.Description != nil {
		next.Description = *update.Description
	}
	if update.Category != nil {
		next.Category = *update.Category
	}
	if update.Priority != nil {
		next.Priority = *update.Priority
	}
	if update.Status != nil {
		next.Status = *update.Status
	}

	if errs := next.validate(); errs.HasErrors() {
		return errs
	}

	if !update.IsEmpty() {
		now := time.Now().UTC()
		next.UpdatedAt = &now
	}
	*t = next
	return nil
}

func (t *Ticket) validate() *apperrors.ValidationErrors {
	errs := apperrors.NewValidationErrors()

	if strings.TrimSpace(t.Title) == "" {
		errs.Add("title", apperrors.ErrTitleRequired.Error())
	} else if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		errs.Add("title", apperrors.ErrTitleTooLong.Error())
	}

	if strings.TrimSpace(t.Description) == "" {
		errs.Add("description", apperrors.ErrDescriptionRequired.Error())
	}

	if !t.Category.IsValid() {
		errs.Add("category", apperrors.ErrInvalidCategory.Error())
	}

	if !t.Priority.IsValid() {
		errs.Add("priority", apperrors.ErrInvalidPriority.Error())
	}

	if !t.Status.IsValid() {
		errs.Add("status", apperrors.ErrInvalidStatus.Error())
	}

	return errs
}
