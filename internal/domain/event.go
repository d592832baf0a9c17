package domain

import (
	"errors"
	"fmt"
	"time"
)

// EventType represents the type of an event.
type EventType string

// Event types.
const (
	EventTypeIncident    EventType = "incident"
	EventTypeMaintenance EventType = "maintenance"
)

// EventStatus represents the current status of an event.
type EventStatus string

// Event statuses.
const (
	EventStatusInvestigating EventStatus = "investigating"
	EventStatusIdentified    EventStatus = "identified"
	EventStatusMonitoring    EventStatus = "monitoring"
	EventStatusResolved      EventStatus = "resolved"
	EventStatusScheduled     EventStatus = "scheduled"
	EventStatusInProgress    EventStatus = "in_progress"
	EventStatusCompleted     EventStatus = "completed"
)

// Severity represents the severity level of an incident.
type Severity string

// Severity levels.
const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Event validation errors.
var (
	ErrInvalidEventType        = errors.New("invalid event type")
	ErrInvalidEventStatus      = errors.New("invalid status for event type")
	ErrInvalidSeverity         = errors.New("invalid severity")
	ErrSeverityNotAllowed      = errors.New("severity is only allowed for incidents")
	ErrMaintenanceWindowMissed = errors.New("maintenance window end is before start")
)

// Event represents an incident or maintenance event.
type Event struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Type              EventType   `json:"type"`
	Status            EventStatus `json:"status"`
	Severity          *Severity   `json:"severity"`
	Description       string      `json:"description"`
	StartedAt         *time.Time  `json:"started_at"`
	ResolvedAt        *time.Time  `json:"resolved_at"`
	ScheduledStartAt  *time.Time  `json:"scheduled_start_at"`
	ScheduledEndAt    *time.Time  `json:"scheduled_end_at"`
	NotifySubscribers bool        `json:"notify_subscribers"`
	CreatedBy         string      `json:"created_by"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	ServiceIDs        []string    `json:"service_ids"`
	GroupIDs          []string    `json:"group_ids"`
}

// EventDetails holds the type-specific part of an event.
// It is implemented by IncidentDetails and MaintenanceDetails only.
type EventDetails interface {
	EventType() EventType
}

// IncidentDetails is the incident-only part of an event.
type IncidentDetails struct {
	Severity Severity
}

// EventType implements EventDetails.
func (IncidentDetails) EventType() EventType { return EventTypeIncident }

// MaintenanceDetails is the maintenance-only part of an event.
type MaintenanceDetails struct {
	ScheduledStartAt *time.Time
	ScheduledEndAt   *time.Time
}

// EventType implements EventDetails.
func (MaintenanceDetails) EventType() EventType { return EventTypeMaintenance }

// Validate checks the type/status/severity combination of the event.
func (e *Event) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidEventType, e.Type)
	}
	if !e.Status.IsValidForType(e.Type) {
		return fmt.Errorf("%w: %s for %s", ErrInvalidEventStatus, e.Status, e.Type)
	}

	switch e.Type {
	case EventTypeIncident:
		if e.Severity != nil && !e.Severity.IsValid() {
			return fmt.Errorf("%w: %s", ErrInvalidSeverity, *e.Severity)
		}
	case EventTypeMaintenance:
		if e.Severity != nil {
			return ErrSeverityNotAllowed
		}
		if e.ScheduledStartAt != nil && e.ScheduledEndAt != nil && e.ScheduledEndAt.Before(*e.ScheduledStartAt) {
			return ErrMaintenanceWindowMissed
		}
	}
	return nil
}

// Details returns the type-specific part of the event.
// Incidents without a stored severity are reported as minor.
func (e *Event) Details() (EventDetails, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.Type == EventTypeMaintenance {
		return MaintenanceDetails{
			ScheduledStartAt: e.ScheduledStartAt,
			ScheduledEndAt:   e.ScheduledEndAt,
		}, nil
	}
	severity := SeverityMinor
	if e.Severity != nil {
		severity = *e.Severity
	}
	return IncidentDetails{Severity: severity}, nil
}

// IsActive reports whether the event currently contributes to effective status.
func (e *Event) IsActive() bool {
	return e.Status.IsActive()
}

// EventUpdate represents a status update for an event.
type EventUpdate struct {
	ID                string      `json:"id"`
	EventID           string      `json:"event_id"`
	Status            EventStatus `json:"status"`
	Message           string      `json:"message"`
	NotifySubscribers bool        `json:"notify_subscribers"`
	CreatedBy         string      `json:"created_by"`
	CreatedAt         time.Time   `json:"created_at"`
}

// IsValidForType checks if the status is valid for the given event type.
func (s EventStatus) IsValidForType(eventType EventType) bool {
	switch eventType {
	case EventTypeIncident:
		return s == EventStatusInvestigating ||
			s == EventStatusIdentified ||
			s == EventStatusMonitoring ||
			s == EventStatusResolved
	case EventTypeMaintenance:
		return s == EventStatusScheduled ||
			s == EventStatusInProgress ||
			s == EventStatusCompleted
	}
	return false
}

// IsValid checks if the event type is valid.
func (t EventType) IsValid() bool {
	return t == EventTypeIncident || t == EventTypeMaintenance
}

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	return s == SeverityMinor || s == SeverityMajor || s == SeverityCritical
}

// IsResolved checks if the status represents a resolved/completed state.
func (s EventStatus) IsResolved() bool {
	return s == EventStatusResolved || s == EventStatusCompleted
}

// IsActive checks if the event status affects service effective_status.
// Scheduled maintenance is NOT active until it transitions to in_progress.
func (s EventStatus) IsActive() bool {
	return s != EventStatusResolved &&
		s != EventStatusCompleted &&
		s != EventStatusScheduled
}

// ChangeAction represents the type of change to event services.
type ChangeAction string

// Change actions.
const (
	ChangeActionAdded   ChangeAction = "added"
	ChangeActionRemoved ChangeAction = "removed"
)

// EventServiceChange represents a change to event's affected services.
// Rows are append-only: later changes supersede earlier ones.
type EventServiceChange struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	BatchID   *string      `json:"batch_id,omitempty"`
	Action    ChangeAction `json:"action"`
	ServiceID *string      `json:"service_id,omitempty"`
	GroupID   *string      `json:"group_id,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	CreatedBy string       `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
}

// EventService represents a service associated with an event and its status in that context.
type EventService struct {
	EventID   string        `json:"event_id"`
	ServiceID string        `json:"service_id"`
	Status    ServiceStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// AffectedService represents a service to be associated with an event and its status.
type AffectedService struct {
	ServiceID string        `json:"service_id" validate:"required"`
	Status    ServiceStatus `json:"status" validate:"required,oneof=operational degraded partial_outage major_outage maintenance"`
}

// AffectedGroup represents a group whose services will be associated with an event.
// All services in the group will receive the specified status.
type AffectedGroup struct {
	GroupID string        `json:"group_id" validate:"required"`
	Status  ServiceStatus `json:"status" validate:"required,oneof=operational degraded partial_outage major_outage maintenance"`
}
