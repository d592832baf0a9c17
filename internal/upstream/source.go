package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bissquit/garden-console/internal/catalog"
	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/events"
)

// ListServices implements catalog.Source.
func (c *Client) ListServices(ctx context.Context, filter catalog.ServiceFilter) ([]domain.Service, error) {
	key := "services"
	query := url.Values{}
	if filter.IncludeArchived {
		key += ":archived"
		query.Set("include_archived", "true")
	}

	return cached(ctx, c.cache, "services", key, func(ctx context.Context) ([]domain.Service, error) {
		services, err := get[[]domain.Service](ctx, c, request{
			path:     "/api/v1/services",
			endpoint: "/api/v1/services",
			query:    query,
		})
		if err != nil {
			return nil, fmt.Errorf("list services: %w", err)
		}
		return services, nil
	})
}

// ListGroups implements catalog.Source.
func (c *Client) ListGroups(ctx context.Context, filter catalog.GroupFilter) ([]domain.ServiceGroup, error) {
	key := "groups"
	query := url.Values{}
	if filter.IncludeArchived {
		key += ":archived"
		query.Set("include_archived", "true")
	}

	return cached(ctx, c.cache, "groups", key, func(ctx context.Context) ([]domain.ServiceGroup, error) {
		groups, err := get[[]domain.ServiceGroup](ctx, c, request{
			path:     "/api/v1/groups",
			endpoint: "/api/v1/groups",
			query:    query,
		})
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		return groups, nil
	})
}

// ListActiveEvents implements catalog.Source. The backend returns every
// event, so inactive ones are filtered here.
func (c *Client) ListActiveEvents(ctx context.Context) ([]domain.Event, error) {
	return cached(ctx, c.cache, "events", "events:active", func(ctx context.Context) ([]domain.Event, error) {
		all, err := get[[]domain.Event](ctx, c, request{
			path:     "/api/v1/events",
			endpoint: "/api/v1/events",
		})
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}

		active := make([]domain.Event, 0, len(all))
		for _, e := range all {
			if e.IsActive() {
				active = append(active, e)
			}
		}
		return active, nil
	})
}

// ListEventServices implements catalog.Source and events.Source.
func (c *Client) ListEventServices(ctx context.Context, eventID string) ([]domain.EventService, error) {
	return cached(ctx, c.cache, "event_services", "event_services:"+eventID, func(ctx context.Context) ([]domain.EventService, error) {
		rows, err := get[[]domain.EventService](ctx, c, request{
			path:     eventPath(eventID, "/services"),
			endpoint: "/api/v1/events/{id}/services",
		})
		if err != nil {
			return nil, eventError("list event services", err)
		}
		return rows, nil
	})
}

// GetEvent implements events.Source.
func (c *Client) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	event, err := get[*domain.Event](ctx, c, request{
		path:     eventPath(id, ""),
		endpoint: "/api/v1/events/{id}",
	})
	if err != nil {
		return nil, eventError("get event", err)
	}
	if event == nil {
		return nil, fmt.Errorf("get event: %w", events.ErrEventNotFound)
	}
	return event, nil
}

// ListEventUpdates implements events.Source.
func (c *Client) ListEventUpdates(ctx context.Context, eventID string) ([]domain.EventUpdate, error) {
	updates, err := get[[]domain.EventUpdate](ctx, c, request{
		path:     eventPath(eventID, "/updates"),
		endpoint: "/api/v1/events/{id}/updates",
	})
	if err != nil {
		return nil, eventError("list event updates", err)
	}
	return updates, nil
}

// ListServiceChanges implements events.Source.
func (c *Client) ListServiceChanges(ctx context.Context, eventID string) ([]domain.EventServiceChange, error) {
	changes, err := get[[]domain.EventServiceChange](ctx, c, request{
		path:     eventPath(eventID, "/changes"),
		endpoint: "/api/v1/events/{id}/changes",
	})
	if err != nil {
		return nil, eventError("list service changes", err)
	}
	return changes, nil
}

// SubmitUpdate implements events.UpdateSubmitter. The caller's token is
// forwarded as is; cached snapshots are dropped on success.
func (c *Client) SubmitUpdate(ctx context.Context, eventID string, payload *events.UpdatePayload, token string) (*domain.EventUpdate, error) {
	var env envelope[*domain.EventUpdate]
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     eventPath(eventID, "/updates"),
		endpoint: "/api/v1/events/{id}/updates",
		body:     payload,
		token:    token,
	}, &env)
	if err != nil {
		return nil, eventError("submit update", err)
	}

	c.cache.purge()
	return env.Data, nil
}

// Ping checks that the backend is ready.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/readyz",
		endpoint: "/readyz",
	}, nil)
}

// eventPath returns the escaped path of an event resource. The id stays one
// path segment whatever it contains.
func eventPath(id, suffix string) string {
	return "/api/v1/events/" + url.PathEscape(id) + suffix
}

func eventError(op string, err error) error {
	if IsNotFound(err) {
		return fmt.Errorf("%s: %w", op, events.ErrEventNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
