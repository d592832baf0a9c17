package domain

import "time"

// ServiceStatus represents the operational status of a service.
type ServiceStatus string

// Service statuses.
const (
	ServiceStatusOperational   ServiceStatus = "operational"
	ServiceStatusDegraded      ServiceStatus = "degraded"
	ServiceStatusPartialOutage ServiceStatus = "partial_outage"
	ServiceStatusMajorOutage   ServiceStatus = "major_outage"
	ServiceStatusMaintenance   ServiceStatus = "maintenance"
)

// ServiceStatuses lists every service status in ascending severity.
var ServiceStatuses = []ServiceStatus{
	ServiceStatusOperational,
	ServiceStatusMaintenance,
	ServiceStatusDegraded,
	ServiceStatusPartialOutage,
	ServiceStatusMajorOutage,
}

// IsValid checks if the service status is valid.
func (s ServiceStatus) IsValid() bool {
	switch s {
	case ServiceStatusOperational, ServiceStatusDegraded,
		ServiceStatusPartialOutage, ServiceStatusMajorOutage,
		ServiceStatusMaintenance:
		return true
	}
	return false
}

// Service represents a monitored service as exposed by the backend.
type Service struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	Status      ServiceStatus `json:"status"`
	GroupIDs    []string      `json:"group_ids"`
	Order       int           `json:"order"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ArchivedAt  *time.Time    `json:"archived_at,omitempty"`
}

// IsArchived returns true if the service is archived.
func (s *Service) IsArchived() bool {
	return s.ArchivedAt != nil
}

// ServiceGroup represents a group of related services.
// Membership is derived from Service.GroupIDs; ServiceIDs is informational.
type ServiceGroup struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	ServiceIDs  []string   `json:"service_ids"`
	Order       int        `json:"order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// IsArchived returns true if the group is archived.
func (g *ServiceGroup) IsArchived() bool {
	return g.ArchivedAt != nil
}

// ServiceWithEffectiveStatus extends Service with computed effective status.
type ServiceWithEffectiveStatus struct {
	Service
	EffectiveStatus ServiceStatus `json:"effective_status"`
	HasActiveEvents bool          `json:"has_active_events"`
}

// GroupWithEffectiveStatus extends ServiceGroup with the worst status of its members.
type GroupWithEffectiveStatus struct {
	ServiceGroup
	EffectiveStatus ServiceStatus `json:"effective_status"`
}
