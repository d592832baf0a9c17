package status

import (
	"fmt"

	"github.com/bissquit/garden-console/internal/domain"
)

// Assignment is a status that an event assigns either to a single service or
// to every member of a group. Exactly one of ServiceID and GroupID is set.
type Assignment struct {
	EventID   string
	ServiceID string
	GroupID   string
	Status    domain.ServiceStatus
}

// FromEventServices converts stored event_services rows into direct assignments.
// The backend expands group membership when it writes those rows, so the
// result never carries a GroupID.
func FromEventServices(rows []domain.EventService) []Assignment {
	out := make([]Assignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, Assignment{EventID: r.EventID, ServiceID: r.ServiceID, Status: r.Status})
	}
	return out
}

// Resolve computes effective status and has_active_events for every service.
//
// Only active events contribute. Within one event a direct assignment replaces
// the group-derived one regardless of severity; across events the worst case
// wins. A service with no contributing event keeps its stored status.
// Assignments naming unknown events, services or groups are ignored.
//
// The catalog feeds only FromEventServices rows. Group assignments are for
// callers that hold a status per group.
func Resolve(
	services []domain.Service,
	events []domain.Event,
	assignments []Assignment,
) ([]domain.ServiceWithEffectiveStatus, error) {
	active := make(map[string]bool, len(events))
	for i := range events {
		if events[i].IsActive() {
			active[events[i].ID] = true
		}
	}

	membersByGroup := make(map[string][]string)
	known := make(map[string]bool, len(services))
	for _, svc := range services {
		known[svc.ID] = true
		for _, gid := range svc.GroupIDs {
			membersByGroup[gid] = append(membersByGroup[gid], svc.ID)
		}
	}

	// per event: service id -> status, group pass first so direct rows override
	perEvent := make(map[string]map[string]domain.ServiceStatus)
	eventOrder := make([]string, 0)
	slot := func(eventID string) map[string]domain.ServiceStatus {
		m, ok := perEvent[eventID]
		if !ok {
			m = make(map[string]domain.ServiceStatus)
			perEvent[eventID] = m
			eventOrder = append(eventOrder, eventID)
		}
		return m
	}

	for _, a := range assignments {
		if !active[a.EventID] || a.GroupID == "" {
			continue
		}
		m := slot(a.EventID)
		for _, sid := range membersByGroup[a.GroupID] {
			if _, exists := m[sid]; !exists {
				m[sid] = a.Status
			}
		}
	}
	for _, a := range assignments {
		if !active[a.EventID] || a.ServiceID == "" || !known[a.ServiceID] {
			continue
		}
		slot(a.EventID)[a.ServiceID] = a.Status
	}

	contributions := make(map[string][]domain.ServiceStatus, len(services))
	for _, eventID := range eventOrder {
		for sid, st := range perEvent[eventID] {
			contributions[sid] = append(contributions[sid], st)
		}
	}

	result := make([]domain.ServiceWithEffectiveStatus, 0, len(services))
	for _, svc := range services {
		item := domain.ServiceWithEffectiveStatus{Service: svc}
		statuses := contributions[svc.ID]
		if len(statuses) == 0 {
			if _, err := Rank(svc.Status); err != nil {
				return nil, fmt.Errorf("service %s: %w", svc.ID, err)
			}
			item.EffectiveStatus = svc.Status
		} else {
			worst, err := WorstCase(statuses)
			if err != nil {
				return nil, fmt.Errorf("service %s: %w", svc.ID, err)
			}
			item.EffectiveStatus = worst
			item.HasActiveEvents = true
		}
		result = append(result, item)
	}
	return result, nil
}

// ResolveGroups computes each group's effective status as the worst case of its
// members' effective statuses. A group without members is operational.
func ResolveGroups(
	groups []domain.ServiceGroup,
	services []domain.ServiceWithEffectiveStatus,
) ([]domain.GroupWithEffectiveStatus, error) {
	byGroup := make(map[string][]domain.ServiceStatus)
	for _, svc := range services {
		for _, gid := range svc.GroupIDs {
			byGroup[gid] = append(byGroup[gid], svc.EffectiveStatus)
		}
	}

	result := make([]domain.GroupWithEffectiveStatus, 0, len(groups))
	for _, g := range groups {
		worst, err := WorstCase(byGroup[g.ID])
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.ID, err)
		}
		result = append(result, domain.GroupWithEffectiveStatus{ServiceGroup: g, EffectiveStatus: worst})
	}
	return result, nil
}
