package events

import (
	"fmt"
	"slices"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/status"
)

// CurrentService is a service already attached to an event together with the
// status the operator sees for it.
type CurrentService struct {
	ServiceID string
	Status    domain.ServiceStatus
}

// EditState is the operator's pending change to an event's affected services.
// It is a value: Apply returns a new state and never modifies its input.
type EditState struct {
	current   []CurrentService
	overrides []domain.AffectedService
	removed   []string
	added     []domain.AffectedService
	groups    []domain.AffectedGroup
	reason    string
}

// NewEditState starts an edit session from the event's current services.
// Duplicate service ids keep their first occurrence.
func NewEditState(current []CurrentService) EditState {
	seen := make(map[string]bool, len(current))
	cs := make([]CurrentService, 0, len(current))
	for _, c := range current {
		if seen[c.ServiceID] {
			continue
		}
		seen[c.ServiceID] = true
		cs = append(cs, c)
	}
	return EditState{current: cs}
}

// Current returns the services the event had when editing started.
func (s EditState) Current() []CurrentService { return slices.Clone(s.current) }

// Removed returns the ids flagged for removal, in flag order.
func (s EditState) Removed() []string { return slices.Clone(s.removed) }

// AddedServices returns explicit additions, in insertion order.
func (s EditState) AddedServices() []domain.AffectedService { return slices.Clone(s.added) }

// AddedGroups returns group additions, in insertion order.
func (s EditState) AddedGroups() []domain.AffectedGroup { return slices.Clone(s.groups) }

// Reason returns the audit reason typed by the operator.
func (s EditState) Reason() string { return s.reason }

// StatusOf returns the status the service will have after the edit, and whether
// it is a current service.
func (s EditState) StatusOf(serviceID string) (domain.ServiceStatus, bool) {
	c, ok := s.find(serviceID)
	if !ok {
		return "", false
	}
	if i := indexOfService(s.overrides, serviceID); i >= 0 {
		return s.overrides[i].Status, true
	}
	return c.Status, true
}

func (s EditState) find(serviceID string) (CurrentService, bool) {
	for _, c := range s.current {
		if c.ServiceID == serviceID {
			return c, true
		}
	}
	return CurrentService{}, false
}

func (s EditState) clone() EditState {
	return EditState{
		current:   s.current,
		overrides: slices.Clone(s.overrides),
		removed:   slices.Clone(s.removed),
		added:     slices.Clone(s.added),
		groups:    slices.Clone(s.groups),
		reason:    s.reason,
	}
}

// EditKind identifies a single operator action.
type EditKind string

// Edit kinds.
const (
	EditSetStatus        EditKind = "set_status"
	EditMarkRemoved      EditKind = "mark_removed"
	EditUnmarkRemoved    EditKind = "unmark_removed"
	EditAddService       EditKind = "add_service"
	EditDropAddedService EditKind = "drop_added_service"
	EditAddGroup         EditKind = "add_group"
	EditDropAddedGroup   EditKind = "drop_added_group"
	EditSetReason        EditKind = "set_reason"
)

// Edit is one operator action on an EditState.
type Edit struct {
	Kind      EditKind             `json:"kind" validate:"required"`
	ServiceID string               `json:"service_id,omitempty"`
	GroupID   string               `json:"group_id,omitempty"`
	Status    domain.ServiceStatus `json:"status,omitempty"`
	Reason    string               `json:"reason,omitempty"`
}

// SetStatus changes the status of a current service.
func SetStatus(serviceID string, st domain.ServiceStatus) Edit {
	return Edit{Kind: EditSetStatus, ServiceID: serviceID, Status: st}
}

// MarkRemoved flags a current service for removal.
func MarkRemoved(serviceID string) Edit {
	return Edit{Kind: EditMarkRemoved, ServiceID: serviceID}
}

// UnmarkRemoved clears a removal flag.
func UnmarkRemoved(serviceID string) Edit {
	return Edit{Kind: EditUnmarkRemoved, ServiceID: serviceID}
}

// AddService adds a service with the given status.
func AddService(serviceID string, st domain.ServiceStatus) Edit {
	return Edit{Kind: EditAddService, ServiceID: serviceID, Status: st}
}

// DropAddedService undoes AddService.
func DropAddedService(serviceID string) Edit {
	return Edit{Kind: EditDropAddedService, ServiceID: serviceID}
}

// AddGroup adds every member of a group with the given status.
func AddGroup(groupID string, st domain.ServiceStatus) Edit {
	return Edit{Kind: EditAddGroup, GroupID: groupID, Status: st}
}

// DropAddedGroup undoes AddGroup.
func DropAddedGroup(groupID string) Edit {
	return Edit{Kind: EditDropAddedGroup, GroupID: groupID}
}

// SetReason sets the audit reason.
func SetReason(reason string) Edit {
	return Edit{Kind: EditSetReason, Reason: reason}
}

// Apply returns the state after edit. Repeating an edit replaces the earlier
// value for the same id, keeping its position.
func Apply(state EditState, edit Edit) (EditState, error) {
	next := state.clone()

	switch edit.Kind {
	case EditSetStatus:
		c, ok := state.find(edit.ServiceID)
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrServiceNotInEvent, edit.ServiceID)
		}
		if _, err := status.Rank(edit.Status); err != nil {
			return state, err
		}
		i := indexOfService(next.overrides, edit.ServiceID)
		switch {
		case edit.Status == c.Status && i >= 0:
			next.overrides = slices.Delete(next.overrides, i, i+1)
		case edit.Status == c.Status:
		case i >= 0:
			next.overrides[i].Status = edit.Status
		default:
			next.overrides = append(next.overrides, domain.AffectedService{ServiceID: edit.ServiceID, Status: edit.Status})
		}

	case EditMarkRemoved:
		if _, ok := state.find(edit.ServiceID); !ok {
			return state, fmt.Errorf("%w: %s", ErrServiceNotInEvent, edit.ServiceID)
		}
		if !slices.Contains(next.removed, edit.ServiceID) {
			next.removed = append(next.removed, edit.ServiceID)
		}

	case EditUnmarkRemoved:
		next.removed = slices.DeleteFunc(next.removed, func(id string) bool { return id == edit.ServiceID })

	case EditAddService:
		if _, err := status.Rank(edit.Status); err != nil {
			return state, err
		}
		if i := indexOfService(next.added, edit.ServiceID); i >= 0 {
			next.added[i].Status = edit.Status
		} else {
			next.added = append(next.added, domain.AffectedService{ServiceID: edit.ServiceID, Status: edit.Status})
		}

	case EditDropAddedService:
		if i := indexOfService(next.added, edit.ServiceID); i >= 0 {
			next.added = slices.Delete(next.added, i, i+1)
		}

	case EditAddGroup:
		if _, err := status.Rank(edit.Status); err != nil {
			return state, err
		}
		if i := indexOfGroup(next.groups, edit.GroupID); i >= 0 {
			next.groups[i].Status = edit.Status
		} else {
			next.groups = append(next.groups, domain.AffectedGroup{GroupID: edit.GroupID, Status: edit.Status})
		}

	case EditDropAddedGroup:
		if i := indexOfGroup(next.groups, edit.GroupID); i >= 0 {
			next.groups = slices.Delete(next.groups, i, i+1)
		}

	case EditSetReason:
		next.reason = edit.Reason

	default:
		return state, fmt.Errorf("%w: %q", ErrUnknownEdit, edit.Kind)
	}

	return next, nil
}

// ApplyAll applies edits in order and stops at the first failing one.
func ApplyAll(state EditState, edits []Edit) (EditState, error) {
	for i, e := range edits {
		next, err := Apply(state, e)
		if err != nil {
			return state, fmt.Errorf("edit %d (%s): %w", i, e.Kind, err)
		}
		state = next
	}
	return state, nil
}

// ChangeSet is the minimal mutation derived from an EditState.
// ServiceUpdates, RemoveServiceIDs and AddServices never share a service id.
type ChangeSet struct {
	ServiceUpdates   []domain.AffectedService
	RemoveServiceIDs []string
	AddServices      []domain.AffectedService
	AddGroups        []domain.AffectedGroup
}

// HasMembershipChanges reports whether the change set adds or removes anything.
// Only such changes produce audit rows and may carry a reason.
func (c ChangeSet) HasMembershipChanges() bool {
	return len(c.AddServices) > 0 || len(c.AddGroups) > 0 || len(c.RemoveServiceIDs) > 0
}

// IsEmpty reports whether the change set touches no service at all.
func (c ChangeSet) IsEmpty() bool {
	return len(c.ServiceUpdates) == 0 && !c.HasMembershipChanges()
}

// Reconcile turns an edit state into a ChangeSet.
//
// groupMembers maps a group id to its member service ids; unknown groups expand
// to nothing. Explicit additions win over group-derived ones for the same
// service. Services already on the event are never re-added. An explicit
// addition of a service that is flagged for removal is ErrConflictingOperation.
func Reconcile(state EditState, groupMembers map[string][]string) (ChangeSet, error) {
	var cs ChangeSet

	for _, id := range state.removed {
		for _, a := range state.added {
			if a.ServiceID == id {
				return ChangeSet{}, fmt.Errorf("%w: %s", ErrConflictingOperation, id)
			}
		}
	}

	for _, c := range state.current {
		if slices.Contains(state.removed, c.ServiceID) {
			cs.RemoveServiceIDs = append(cs.RemoveServiceIDs, c.ServiceID)
			continue
		}
		if i := indexOfService(state.overrides, c.ServiceID); i >= 0 && state.overrides[i].Status != c.Status {
			cs.ServiceUpdates = append(cs.ServiceUpdates, state.overrides[i])
		}
	}

	for _, a := range ExpandAffected(state.added, state.groups, groupMembers) {
		if _, ok := state.find(a.ServiceID); ok {
			continue
		}
		cs.AddServices = append(cs.AddServices, a)
	}
	cs.AddGroups = slices.Clone(state.groups)

	return cs, nil
}

// ExpandAffected resolves explicit services and groups into one service list.
// Group members come first in group order; an explicit entry replaces the
// group-derived status of the same service in place, and explicit services not
// covered by any group follow in their own order.
func ExpandAffected(
	services []domain.AffectedService,
	groups []domain.AffectedGroup,
	groupMembers map[string][]string,
) []domain.AffectedService {
	explicit := make(map[string]domain.ServiceStatus, len(services))
	for _, s := range services {
		explicit[s.ServiceID] = s.Status
	}

	result := make([]domain.AffectedService, 0, len(services))
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, sid := range groupMembers[g.GroupID] {
			if seen[sid] {
				continue
			}
			seen[sid] = true
			st := g.Status
			if e, ok := explicit[sid]; ok {
				st = e
			}
			result = append(result, domain.AffectedService{ServiceID: sid, Status: st})
		}
	}
	for _, s := range services {
		if seen[s.ServiceID] {
			continue
		}
		seen[s.ServiceID] = true
		result = append(result, domain.AffectedService{ServiceID: s.ServiceID, Status: explicit[s.ServiceID]})
	}
	return result
}

func indexOfService(list []domain.AffectedService, id string) int {
	return slices.IndexFunc(list, func(a domain.AffectedService) bool { return a.ServiceID == id })
}

func indexOfGroup(list []domain.AffectedGroup, id string) int {
	return slices.IndexFunc(list, func(a domain.AffectedGroup) bool { return a.GroupID == id })
}
