package events

import "github.com/bissquit/garden-console/internal/domain"

// GroupMembers maps each group id to the ids of its member services, in
// service order. Membership comes from Service.GroupIDs.
func GroupMembers(services []domain.Service) map[string][]string {
	members := make(map[string][]string)
	for _, svc := range services {
		for _, gid := range svc.GroupIDs {
			ids := members[gid]
			if len(ids) > 0 && ids[len(ids)-1] == svc.ID {
				continue
			}
			members[gid] = append(ids, svc.ID)
		}
	}
	return members
}

// Names holds display names used when rendering ids.
type Names struct {
	Services map[string]string
	Groups   map[string]string
}

// NamesFrom builds lookup tables from catalog snapshots.
func NamesFrom(services []domain.Service, groups []domain.ServiceGroup) Names {
	n := Names{
		Services: make(map[string]string, len(services)),
		Groups:   make(map[string]string, len(groups)),
	}
	for _, s := range services {
		n.Services[s.ID] = s.Name
	}
	for _, g := range groups {
		n.Groups[g.ID] = g.Name
	}
	return n
}

// Service returns the display name of a service, or the id itself when unknown.
func (n Names) Service(id string) string {
	if name, ok := n.Services[id]; ok && name != "" {
		return name
	}
	return id
}

// Group returns the display name of a group, or the id itself when unknown.
func (n Names) Group(id string) string {
	if name, ok := n.Groups[id]; ok && name != "" {
		return name
	}
	return id
}
