package catalog

import (
	"testing"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func svc(id string, groupIDs ...string) domain.ServiceWithEffectiveStatus {
	return domain.ServiceWithEffectiveStatus{
		Service: domain.Service{
			ID:       id,
			Name:     id,
			Status:   domain.ServiceStatusOperational,
			GroupIDs: groupIDs,
		},
		EffectiveStatus: domain.ServiceStatusOperational,
	}
}

func listingIDs(listing ServiceGroupListing) []string {
	ids := make([]string, 0, len(listing.Services))
	for _, s := range listing.Services {
		ids = append(ids, s.ID)
	}
	return ids
}

func groupID(listing ServiceGroupListing) string {
	if listing.Group == nil {
		return ""
	}
	return listing.Group.ID
}

func TestGroupServices_ManyToMany(t *testing.T) {
	services := []domain.ServiceWithEffectiveStatus{
		svc("api", "g1", "g2"),
		svc("db", "g1"),
		svc("cdn"),
	}
	groups := []domain.ServiceGroup{
		{ID: "g2", Name: "Edge", Order: 1},
		{ID: "g1", Name: "Core", Order: 0},
	}

	got := GroupServices(services, groups)
	require.Len(t, got, 3)

	assert.Equal(t, "g1", groupID(got[0]))
	assert.Equal(t, []string{"api", "db"}, listingIDs(got[0]))

	assert.Equal(t, "g2", groupID(got[1]))
	assert.Equal(t, []string{"api"}, listingIDs(got[1]))

	assert.Nil(t, got[2].Group)
	assert.Equal(t, []string{"cdn"}, listingIDs(got[2]))
}

func TestGroupServices_SkipsEmptyBuckets(t *testing.T) {
	services := []domain.ServiceWithEffectiveStatus{svc("api", "g1")}
	groups := []domain.ServiceGroup{
		{ID: "g1", Order: 5},
		{ID: "empty", Order: 0},
	}

	got := GroupServices(services, groups)
	require.Len(t, got, 1)
	assert.Equal(t, "g1", groupID(got[0]))
}

func TestGroupServices_NoUngroupedBucketWhenAllGrouped(t *testing.T) {
	got := GroupServices([]domain.ServiceWithEffectiveStatus{svc("api", "g1")}, []domain.ServiceGroup{{ID: "g1"}})
	require.Len(t, got, 1)
	assert.NotNil(t, got[0].Group)
}

func TestGroupServices_UnknownGroupIDsContributeNothing(t *testing.T) {
	services := []domain.ServiceWithEffectiveStatus{
		svc("api", "deleted-group"),
		svc("db", "g1", "deleted-group"),
	}
	groups := []domain.ServiceGroup{{ID: "g1", Name: "Core"}}

	got := GroupServices(services, groups)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"db"}, listingIDs(got[0]))
}

func TestGroupServices_TiesAreDeterministic(t *testing.T) {
	services := []domain.ServiceWithEffectiveStatus{
		svc("a", "g-b"),
		svc("b", "g-a"),
		svc("c", "g-c"),
	}
	groups := []domain.ServiceGroup{
		{ID: "g-c", Name: "Same", Order: 1},
		{ID: "g-b", Name: "Same", Order: 1},
		{ID: "g-a", Name: "Alpha", Order: 1},
	}

	first := GroupServices(services, groups)
	require.Len(t, first, 3)
	assert.Equal(t, "g-a", groupID(first[0]))
	assert.Equal(t, "g-b", groupID(first[1]))
	assert.Equal(t, "g-c", groupID(first[2]))

	for i := 0; i < 20; i++ {
		assert.Equal(t, first, GroupServices(services, groups))
	}
}

func TestGroupServices_DuplicateGroupIDOnService(t *testing.T) {
	got := GroupServices([]domain.ServiceWithEffectiveStatus{svc("api", "g1", "g1")}, []domain.ServiceGroup{{ID: "g1"}})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"api"}, listingIDs(got[0]))
}

func TestGroupServices_DoesNotReorderInput(t *testing.T) {
	groups := []domain.ServiceGroup{{ID: "g2", Order: 2}, {ID: "g1", Order: 1}}
	GroupServices(nil, groups)
	assert.Equal(t, "g2", groups[0].ID)
}

func TestGroupServices_Empty(t *testing.T) {
	assert.Empty(t, GroupServices(nil, nil))
}
