package catalog

import (
	"sort"

	"github.com/bissquit/garden-console/internal/domain"
)

// ServiceGroupListing is one bucket of the grouped service listing.
// Group is nil, and omitted from JSON, for the ungrouped bucket.
type ServiceGroupListing struct {
	Group    *domain.ServiceGroup                `json:"group,omitempty"`
	Services []domain.ServiceWithEffectiveStatus `json:"services"`
}

// GroupServices buckets services by group membership.
//
// A service is listed under every group it belongs to and never as ungrouped;
// a service without groups is listed only as ungrouped. Group ids that match no
// group are ignored. Buckets are emitted by ascending group order (ties broken
// by name, then id), empty buckets are skipped and the ungrouped bucket comes
// last. Services keep their input order inside a bucket.
func GroupServices(services []domain.ServiceWithEffectiveStatus, groups []domain.ServiceGroup) []ServiceGroupListing {
	ordered := make([]domain.ServiceGroup, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	buckets := make(map[string][]domain.ServiceWithEffectiveStatus, len(ordered))
	for _, g := range ordered {
		buckets[g.ID] = nil
	}

	var ungrouped []domain.ServiceWithEffectiveStatus
	for _, svc := range services {
		if len(svc.GroupIDs) == 0 {
			ungrouped = append(ungrouped, svc)
			continue
		}
		seen := make(map[string]bool, len(svc.GroupIDs))
		for _, gid := range svc.GroupIDs {
			if seen[gid] {
				continue
			}
			seen[gid] = true
			if _, ok := buckets[gid]; ok {
				buckets[gid] = append(buckets[gid], svc)
			}
		}
	}

	result := make([]ServiceGroupListing, 0, len(ordered)+1)
	emitted := make(map[string]bool, len(ordered))
	for i := range ordered {
		g := ordered[i]
		if emitted[g.ID] || len(buckets[g.ID]) == 0 {
			continue
		}
		emitted[g.ID] = true
		result = append(result, ServiceGroupListing{Group: &g, Services: buckets[g.ID]})
	}
	if len(ungrouped) > 0 {
		result = append(result, ServiceGroupListing{Services: ungrouped})
	}
	return result
}
