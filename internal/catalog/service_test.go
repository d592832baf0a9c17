package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	services      []domain.Service
	groups        []domain.ServiceGroup
	events        []domain.Event
	eventServices map[string][]domain.EventService
	err           error
}

func (f *fakeSource) ListServices(_ context.Context, filter ServiceFilter) ([]domain.Service, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Service, 0, len(f.services))
	for _, s := range f.services {
		if !filter.IncludeArchived && s.IsArchived() {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSource) ListGroups(_ context.Context, _ GroupFilter) ([]domain.ServiceGroup, error) {
	return f.groups, nil
}

func (f *fakeSource) ListActiveEvents(_ context.Context) ([]domain.Event, error) {
	return f.events, nil
}

func (f *fakeSource) ListEventServices(_ context.Context, eventID string) ([]domain.EventService, error) {
	return f.eventServices[eventID], nil
}

func coreFixture() *fakeSource {
	return &fakeSource{
		services: []domain.Service{
			{ID: "api", Name: "API", Status: domain.ServiceStatusOperational, GroupIDs: []string{"core"}},
			{ID: "db", Name: "Database", Status: domain.ServiceStatusOperational, GroupIDs: []string{"core"}},
			{ID: "docs", Name: "Docs", Status: domain.ServiceStatusOperational, GroupIDs: []string{}},
		},
		groups: []domain.ServiceGroup{{ID: "core", Name: "Core", Order: 0}},
		events: []domain.Event{
			{ID: "inc-1", Type: domain.EventTypeIncident, Status: domain.EventStatusInvestigating},
		},
		eventServices: map[string][]domain.EventService{
			"inc-1": {
				{EventID: "inc-1", ServiceID: "api", Status: domain.ServiceStatusDegraded},
				{EventID: "inc-1", ServiceID: "db", Status: domain.ServiceStatusMajorOutage},
			},
		},
	}
}

func TestService_Overview(t *testing.T) {
	svc := NewService(coreFixture())

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.ServiceStatusMajorOutage, overview.Summary.Status)
	assert.Equal(t, 3, overview.Summary.Total)
	assert.Equal(t, 1, overview.Summary.ActiveEvents)

	require.Len(t, overview.Listing, 2)
	assert.Equal(t, "core", overview.Listing[0].Group.ID)
	assert.Nil(t, overview.Listing[1].Group)

	require.Len(t, overview.Groups, 1)
	assert.Equal(t, domain.ServiceStatusMajorOutage, overview.Groups[0].EffectiveStatus)
}

func TestService_ListServicesFilters(t *testing.T) {
	svc := NewService(coreFixture())
	degraded := domain.ServiceStatusDegraded

	got, err := svc.ListServicesWithEffectiveStatus(context.Background(), ListOptions{Status: &degraded})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "api", got[0].ID)

	got, err = svc.ListServicesWithEffectiveStatus(context.Background(), ListOptions{GroupID: "core"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	bad := domain.ServiceStatus("on_fire")
	_, err = svc.ListServicesWithEffectiveStatus(context.Background(), ListOptions{Status: &bad})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestService_GetGroupListing(t *testing.T) {
	src := coreFixture()
	src.groups = append(src.groups, domain.ServiceGroup{ID: "empty", Name: "Empty", Order: 3})
	svc := NewService(src)

	listing, err := svc.GetGroupListing(context.Background(), "core")
	require.NoError(t, err)
	assert.Len(t, listing.Services, 2)

	listing, err = svc.GetGroupListing(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, listing.Services)

	_, err = svc.GetGroupListing(context.Background(), "nope")
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestService_UnknownStatusFromSource(t *testing.T) {
	src := coreFixture()
	src.eventServices["inc-1"][0].Status = "melting"

	_, err := NewService(src).Overview(context.Background())
	require.ErrorIs(t, err, status.ErrUnknownStatus)
}

func TestService_SourceError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := NewService(&fakeSource{err: boom}).Overview(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "list services")
}
