package catalog

import (
	"context"

	"github.com/bissquit/garden-console/internal/domain"
)

// Source defines the read-only snapshot operations the catalog needs.
type Source interface {
	ListServices(ctx context.Context, filter ServiceFilter) ([]domain.Service, error)
	ListGroups(ctx context.Context, filter GroupFilter) ([]domain.ServiceGroup, error)

	// Active events and their per-service statuses
	ListActiveEvents(ctx context.Context) ([]domain.Event, error)
	ListEventServices(ctx context.Context, eventID string) ([]domain.EventService, error)
}

// ServiceFilter represents filter criteria for listing services.
type ServiceFilter struct {
	IncludeArchived bool
}

// GroupFilter represents filter criteria for listing groups.
type GroupFilter struct {
	IncludeArchived bool
}
