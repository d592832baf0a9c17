// Package events builds event timelines and reconciles operator edits into update requests.
package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/bissquit/garden-console/internal/catalog"
	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/pkg/ctxlog"
	"github.com/bissquit/garden-console/internal/pkg/metrics"
)

// Service implements event read and update-preparation logic.
type Service struct {
	source    Source
	catalog   CatalogReader
	submitter UpdateSubmitter
}

// NewService creates a new event service. submitter may be nil, in which case
// Submit fails with ErrNoUpstream.
func NewService(source Source, catalog CatalogReader, submitter UpdateSubmitter) *Service {
	return &Service{
		source:    source,
		catalog:   catalog,
		submitter: submitter,
	}
}

// Timeline is an event with its merged history.
type Timeline struct {
	Event   *domain.Event   `json:"event"`
	Entries []TimelineEntry `json:"entries"`
}

// Preview is the outcome of reconciling a draft without submitting it.
type Preview struct {
	Payload *UpdatePayload `json:"payload"`
	Changes bool           `json:"has_service_changes"`
}

// GetEvent retrieves an event by ID.
func (s *Service) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return s.source.GetEvent(ctx, id)
}

// GetTimeline builds the merged timeline of an event.
func (s *Service) GetTimeline(ctx context.Context, eventID string) (*Timeline, error) {
	event, err := s.source.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	updates, err := s.source.ListEventUpdates(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}

	changes, err := s.source.ListServiceChanges(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list service changes: %w", err)
	}

	services, groups, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	entries := MergeTimeline(event, updates, changes, NamesFrom(services, groups))
	metrics.ObserveComputation("timeline", nil)

	return &Timeline{Event: event, Entries: entries}, nil
}

// Preview reconciles a draft against the event's current services.
func (s *Service) Preview(ctx context.Context, eventID string, draft Draft) (*Preview, error) {
	payload, err := s.buildPayload(ctx, eventID, draft)
	if err != nil {
		return nil, err
	}
	return &Preview{Payload: payload, Changes: hasServiceChanges(payload)}, nil
}

// Submit reconciles a draft and forwards the payload to the backend using the caller's token.
func (s *Service) Submit(ctx context.Context, eventID string, draft Draft, token string) (*domain.EventUpdate, error) {
	if s.submitter == nil {
		return nil, ErrNoUpstream
	}

	payload, err := s.buildPayload(ctx, eventID, draft)
	if err != nil {
		return nil, err
	}

	update, err := s.submitter.SubmitUpdate(ctx, eventID, payload, token)
	if err != nil {
		return nil, fmt.Errorf("submit update: %w", err)
	}

	ctxlog.FromContext(ctx).Info("event update submitted",
		"event_id", eventID,
		"status", payload.Status,
		"service_updates", len(payload.ServiceUpdates),
		"add_services", len(payload.AddServices),
		"add_groups", len(payload.AddGroups),
		"remove_services", len(payload.RemoveServiceIDs),
	)
	return update, nil
}

func (s *Service) buildPayload(ctx context.Context, eventID string, draft Draft) (*UpdatePayload, error) {
	if err := validate.Struct(draft); err != nil {
		return nil, err
	}

	event, err := s.source.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if !draft.Status.IsValidForType(event.Type) {
		return nil, fmt.Errorf("%w: %s for %s", ErrInvalidStatus, draft.Status, event.Type)
	}
	if event.Status.IsResolved() {
		return nil, ErrEventAlreadyResolved
	}

	services, groups, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.currentServices(ctx, event, services)
	if err != nil {
		return nil, err
	}

	state, err := ApplyAll(NewEditState(current), draft.ToEdits())
	if err != nil {
		return nil, err
	}

	live := make([]domain.Service, 0, len(services))
	for _, svc := range services {
		if !svc.IsArchived() {
			live = append(live, svc)
		}
	}
	members := GroupMembers(live)
	known := make(map[string]bool, len(groups))
	for _, g := range groups {
		known[g.ID] = true
	}
	for _, g := range state.AddedGroups() {
		if !known[g.GroupID] {
			ctxlog.FromContext(ctx).Warn("added group not in catalog snapshot", "event_id", eventID, "group_id", g.GroupID)
		}
	}

	cs, err := Reconcile(state, members)
	metrics.ObserveComputation("reconcile", err)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(draft.Reason) != "" && !cs.HasMembershipChanges() {
		return nil, ErrReasonNotAllowed
	}
	return ToPayload(state, cs, draft.Status, draft.Message, draft.NotifySubscribers)
}

// currentServices lists the event's services with their status within the
// event. Services without an event row fall back to their stored status.
// Effective status is not consulted: the backend diffs service_updates against
// the event's own rows, and another event's outage must not leak into them.
func (s *Service) currentServices(ctx context.Context, event *domain.Event, services []domain.Service) ([]CurrentService, error) {
	rows, err := s.source.ListEventServices(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list event services: %w", err)
	}

	byRow := make(map[string]domain.ServiceStatus, len(rows))
	for _, r := range rows {
		byRow[r.ServiceID] = r.Status
	}
	stored := make(map[string]domain.ServiceStatus, len(services))
	for _, svc := range services {
		stored[svc.ID] = svc.Status
	}

	current := make([]CurrentService, 0, len(rows)+len(event.ServiceIDs))
	seen := make(map[string]bool)
	for _, id := range event.ServiceIDs {
		st, ok := byRow[id]
		if !ok {
			st = stored[id]
		}
		if st == "" {
			st = domain.ServiceStatusOperational
		}
		current = append(current, CurrentService{ServiceID: id, Status: st})
		seen[id] = true
	}
	for _, r := range rows {
		if !seen[r.ServiceID] {
			current = append(current, CurrentService{ServiceID: r.ServiceID, Status: r.Status})
			seen[r.ServiceID] = true
		}
	}
	return current, nil
}

func (s *Service) loadCatalog(ctx context.Context) ([]domain.Service, []domain.ServiceGroup, error) {
	services, err := s.catalog.ListServices(ctx, catalog.ServiceFilter{IncludeArchived: true})
	if err != nil {
		return nil, nil, fmt.Errorf("list services: %w", err)
	}
	groups, err := s.catalog.ListGroups(ctx, catalog.GroupFilter{IncludeArchived: true})
	if err != nil {
		return nil, nil, fmt.Errorf("list groups: %w", err)
	}
	return services, groups, nil
}

func hasServiceChanges(p *UpdatePayload) bool {
	return len(p.ServiceUpdates) > 0 || len(p.AddServices) > 0 ||
		len(p.AddGroups) > 0 || len(p.RemoveServiceIDs) > 0
}
