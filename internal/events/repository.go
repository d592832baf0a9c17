package events

import (
	"context"

	"github.com/bissquit/garden-console/internal/catalog"
	"github.com/bissquit/garden-console/internal/domain"
)

// Source defines the read-only snapshot operations for a single event.
type Source interface {
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEventUpdates(ctx context.Context, eventID string) ([]domain.EventUpdate, error)
	ListServiceChanges(ctx context.Context, eventID string) ([]domain.EventServiceChange, error)
	ListEventServices(ctx context.Context, eventID string) ([]domain.EventService, error)
}

// CatalogReader lists services and groups for name lookup and group expansion.
type CatalogReader interface {
	ListServices(ctx context.Context, filter catalog.ServiceFilter) ([]domain.Service, error)
	ListGroups(ctx context.Context, filter catalog.GroupFilter) ([]domain.ServiceGroup, error)
}

// UpdateSubmitter forwards a reconciled payload to the backend on behalf of the caller.
type UpdateSubmitter interface {
	SubmitUpdate(ctx context.Context, eventID string, payload *UpdatePayload, token string) (*domain.EventUpdate, error)
}
