// Package catalog resolves services and groups into status listings.
package catalog

import (
	"context"
	"fmt"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/pkg/ctxlog"
	"github.com/bissquit/garden-console/internal/pkg/metrics"
	"github.com/bissquit/garden-console/internal/status"
)

// Service implements catalog read logic over a snapshot source.
type Service struct {
	source Source
}

// NewService creates a new catalog service.
func NewService(source Source) *Service {
	return &Service{source: source}
}

// ListOptions narrows a service listing after effective statuses are resolved.
type ListOptions struct {
	GroupID         string
	Status          *domain.ServiceStatus
	IncludeArchived bool
}

// Overview is the public status page: banner, grouped services and groups.
type Overview struct {
	Summary      status.Summary                    `json:"summary"`
	Listing      []ServiceGroupListing             `json:"listing"`
	Groups       []domain.GroupWithEffectiveStatus `json:"groups"`
	ActiveEvents []domain.Event                    `json:"active_events"`
}

type snapshot struct {
	services []domain.ServiceWithEffectiveStatus
	groups   []domain.ServiceGroup
	events   []domain.Event
}

func (s *Service) load(ctx context.Context, includeArchived bool) (*snapshot, error) {
	services, err := s.source.ListServices(ctx, ServiceFilter{IncludeArchived: includeArchived})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	groups, err := s.source.ListGroups(ctx, GroupFilter{IncludeArchived: includeArchived})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	events, err := s.source.ListActiveEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}

	var assignments []status.Assignment
	for i := range events {
		rows, err := s.source.ListEventServices(ctx, events[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list services of event %s: %w", events[i].ID, err)
		}
		assignments = append(assignments, status.FromEventServices(rows)...)
	}

	resolved, err := status.Resolve(services, events, assignments)
	metrics.ObserveComputation("effective_status", err)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("resolved effective statuses",
		"services", len(resolved),
		"groups", len(groups),
		"active_events", len(events),
	)

	return &snapshot{services: resolved, groups: groups, events: events}, nil
}

// ListServicesWithEffectiveStatus returns services with resolved effective status.
func (s *Service) ListServicesWithEffectiveStatus(ctx context.Context, opts ListOptions) ([]domain.ServiceWithEffectiveStatus, error) {
	if opts.Status != nil && !opts.Status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *opts.Status)
	}

	snap, err := s.load(ctx, opts.IncludeArchived)
	if err != nil {
		return nil, err
	}

	result := make([]domain.ServiceWithEffectiveStatus, 0, len(snap.services))
	for _, svc := range snap.services {
		if opts.GroupID != "" && !containsID(svc.GroupIDs, opts.GroupID) {
			continue
		}
		if opts.Status != nil && svc.EffectiveStatus != *opts.Status {
			continue
		}
		result = append(result, svc)
	}
	return result, nil
}

// ListGroupsWithEffectiveStatus returns groups with the worst status of their members.
func (s *Service) ListGroupsWithEffectiveStatus(ctx context.Context, filter GroupFilter) ([]domain.GroupWithEffectiveStatus, error) {
	snap, err := s.load(ctx, filter.IncludeArchived)
	if err != nil {
		return nil, err
	}
	return status.ResolveGroups(snap.groups, snap.services)
}

// GetGroupListing returns the services of a single group.
func (s *Service) GetGroupListing(ctx context.Context, groupID string) (*ServiceGroupListing, error) {
	snap, err := s.load(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, listing := range GroupServices(snap.services, snap.groups) {
		if listing.Group != nil && listing.Group.ID == groupID {
			return &listing, nil
		}
	}
	for i := range snap.groups {
		if snap.groups[i].ID == groupID {
			return &ServiceGroupListing{Group: &snap.groups[i], Services: []domain.ServiceWithEffectiveStatus{}}, nil
		}
	}
	return nil, ErrGroupNotFound
}

// Overview builds the full status page from one snapshot.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	snap, err := s.load(ctx, false)
	if err != nil {
		return nil, err
	}

	summary, err := status.Summarize(snap.services, len(snap.events))
	if err != nil {
		return nil, err
	}

	groups, err := status.ResolveGroups(snap.groups, snap.services)
	if err != nil {
		return nil, err
	}

	listing := GroupServices(snap.services, snap.groups)
	metrics.ObserveComputation("grouping", nil)

	return &Overview{
		Summary:      summary,
		Listing:      listing,
		Groups:       groups,
		ActiveEvents: snap.events,
	}, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
