package events

import (
	"fmt"
	"strings"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// UpdatePayload is the body of the backend's "add event update" request.
// Construct it with NewUpdatePayload or ToPayload so that the reason rule holds.
type UpdatePayload struct {
	Status            domain.EventStatus       `json:"status" validate:"required,oneof=investigating identified monitoring resolved scheduled in_progress completed"`
	Message           string                   `json:"message" validate:"required"`
	NotifySubscribers bool                     `json:"notify_subscribers"`
	ServiceUpdates    []domain.AffectedService `json:"service_updates,omitempty" validate:"omitempty,dive"`
	AddServices       []domain.AffectedService `json:"add_services,omitempty" validate:"omitempty,dive"`
	AddGroups         []domain.AffectedGroup   `json:"add_groups,omitempty" validate:"omitempty,dive"`
	RemoveServiceIDs  []string                 `json:"remove_service_ids,omitempty" validate:"omitempty,dive,required"`
	Reason            string                   `json:"reason,omitempty"`
}

// NewUpdatePayload builds and validates a payload. A non-empty reason is only
// accepted together with added or removed services or groups.
func NewUpdatePayload(st domain.EventStatus, message string, notify bool, cs ChangeSet, reason string) (*UpdatePayload, error) {
	reason = strings.TrimSpace(reason)
	if reason != "" && !cs.HasMembershipChanges() {
		return nil, ErrReasonNotAllowed
	}

	p := &UpdatePayload{
		Status:            st,
		Message:           message,
		NotifySubscribers: notify,
		ServiceUpdates:    cs.ServiceUpdates,
		AddServices:       cs.AddServices,
		AddGroups:         cs.AddGroups,
		RemoveServiceIDs:  cs.RemoveServiceIDs,
		Reason:            reason,
	}
	if err := validate.Struct(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ToPayload projects an edit state and its change set into a payload. The
// reason kept in the state is dropped when the membership edits that
// justified it were undone.
func ToPayload(state EditState, cs ChangeSet, st domain.EventStatus, message string, notify bool) (*UpdatePayload, error) {
	reason := state.Reason()
	if !cs.HasMembershipChanges() {
		reason = ""
	}
	p, err := NewUpdatePayload(st, message, notify, cs, reason)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	return p, nil
}

// Draft is the declarative form of an update used by the HTTP API and CLI.
type Draft struct {
	Status            domain.EventStatus       `json:"status" validate:"required"`
	Message           string                   `json:"message" validate:"required"`
	NotifySubscribers bool                     `json:"notify_subscribers"`
	SetStatuses       []domain.AffectedService `json:"set_statuses" validate:"omitempty,dive"`
	RemoveServiceIDs  []string                 `json:"remove_service_ids" validate:"omitempty,dive,required"`
	AddServices       []domain.AffectedService `json:"add_services" validate:"omitempty,dive"`
	AddGroups         []domain.AffectedGroup   `json:"add_groups" validate:"omitempty,dive"`
	Reason            string                   `json:"reason"`
	Edits             []Edit                   `json:"edits" validate:"omitempty,dive"`
}

// ToEdits lists the reducer edits that reproduce the draft: declarative
// fields first, then the raw edits in order.
func (d Draft) ToEdits() []Edit {
	edits := make([]Edit, 0, len(d.SetStatuses)+len(d.RemoveServiceIDs)+len(d.AddServices)+len(d.AddGroups)+len(d.Edits)+1)
	for _, s := range d.SetStatuses {
		edits = append(edits, SetStatus(s.ServiceID, s.Status))
	}
	for _, id := range d.RemoveServiceIDs {
		edits = append(edits, MarkRemoved(id))
	}
	for _, s := range d.AddServices {
		edits = append(edits, AddService(s.ServiceID, s.Status))
	}
	for _, g := range d.AddGroups {
		edits = append(edits, AddGroup(g.GroupID, g.Status))
	}
	if d.Reason != "" {
		edits = append(edits, SetReason(d.Reason))
	}
	return append(edits, d.Edits...)
}
