// Package postgres reads catalog and event snapshots straight from the
// backend's PostgreSQL database. It never writes.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/garden-console/internal/catalog"
	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements catalog.Source and events.Source over the backend schema.
type Repository struct {
	db querier
}

// NewRepository creates a new PostgreSQL repository. db is normally a
// *pgxpool.Pool opened read-only.
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

// ListServices returns services with their group ids ordered like the groups.
func (r *Repository) ListServices(ctx context.Context, filter catalog.ServiceFilter) ([]domain.Service, error) {
	query := `
		SELECT
			s.id, s.name, s.slug, s.description, s.status, s."order",
			s.created_at, s.updated_at, s.archived_at,
			COALESCE(
				array_agg(m.group_id::text ORDER BY g."order", g.name) FILTER (WHERE m.group_id IS NOT NULL),
				'{}'
			)::text[]
		FROM services s
		LEFT JOIN service_group_members m ON m.service_id = s.id
		LEFT JOIN service_groups g ON g.id = m.group_id
	`
	if !filter.IncludeArchived {
		query += " WHERE s.archived_at IS NULL"
	}
	query += ` GROUP BY s.id ORDER BY s."order", s.name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		var s domain.Service
		err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.Slug,
			&s.Description,
			&s.Status,
			&s.Order,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.ArchivedAt,
			&s.GroupIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}

	return services, nil
}

// ListGroups returns groups with their member ids.
func (r *Repository) ListGroups(ctx context.Context, filter catalog.GroupFilter) ([]domain.ServiceGroup, error) {
	query := `
		SELECT
			g.id, g.name, g.slug, g.description, g."order",
			g.created_at, g.updated_at, g.archived_at,
			COALESCE(
				array_agg(m.service_id::text ORDER BY m.service_id) FILTER (WHERE m.service_id IS NOT NULL),
				'{}'
			)::text[]
		FROM service_groups g
		LEFT JOIN service_group_members m ON m.group_id = g.id
	`
	if !filter.IncludeArchived {
		query += " WHERE g.archived_at IS NULL"
	}
	query += ` GROUP BY g.id ORDER BY g."order", g.name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list service groups: %w", err)
	}
	defer rows.Close()

	groups := make([]domain.ServiceGroup, 0)
	for rows.Next() {
		var g domain.ServiceGroup
		err := rows.Scan(
			&g.ID,
			&g.Name,
			&g.Slug,
			&g.Description,
			&g.Order,
			&g.CreatedAt,
			&g.UpdatedAt,
			&g.ArchivedAt,
			&g.ServiceIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan service group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service groups: %w", err)
	}

	return groups, nil
}

const eventColumns = `
	e.id, e.title, e.type, e.status, e.severity, e.description,
	e.started_at, e.resolved_at, e.scheduled_start_at, e.scheduled_end_at,
	e.notify_subscribers, e.created_by, e.created_at, e.updated_at,
	COALESCE((SELECT array_agg(es.service_id::text ORDER BY es.service_id)
		FROM event_services es WHERE es.event_id = e.id), '{}')::text[],
	COALESCE((SELECT array_agg(eg.group_id::text ORDER BY eg.group_id)
		FROM event_groups eg WHERE eg.event_id = e.id), '{}')::text[]
`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Type,
		&e.Status,
		&e.Severity,
		&e.Description,
		&e.StartedAt,
		&e.ResolvedAt,
		&e.ScheduledStartAt,
		&e.ScheduledEndAt,
		&e.NotifySubscribers,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.ServiceIDs,
		&e.GroupIDs,
	)
	return e, err
}

// ListActiveEvents returns events that currently affect effective status.
// Scheduled maintenance is not active yet.
func (r *Repository) ListActiveEvents(ctx context.Context) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events e
		WHERE e.status NOT IN ('resolved', 'completed', 'scheduled')
		ORDER BY e.created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return result, nil
}

// GetEvent retrieves an event by id.
func (r *Repository) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	if !isEventID(id) {
		return nil, events.ErrEventNotFound
	}
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1`

	e, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// ListEventServices returns the per-event status of each affected service.
func (r *Repository) ListEventServices(ctx context.Context, eventID string) ([]domain.EventService, error) {
	if !isEventID(eventID) {
		return nil, events.ErrEventNotFound
	}
	query := `
		SELECT event_id, service_id, status, updated_at
		FROM event_services
		WHERE event_id = $1
		ORDER BY service_id
	`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event services: %w", err)
	}
	defer rows.Close()

	result := make([]domain.EventService, 0)
	for rows.Next() {
		var es domain.EventService
		if err := rows.Scan(&es.EventID, &es.ServiceID, &es.Status, &es.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event service: %w", err)
		}
		result = append(result, es)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event services: %w", err)
	}

	return result, nil
}

// ListEventUpdates returns updates newest first.
func (r *Repository) ListEventUpdates(ctx context.Context, eventID string) ([]domain.EventUpdate, error) {
	if !isEventID(eventID) {
		return nil, events.ErrEventNotFound
	}
	query := `
		SELECT id, event_id, status, message, notify_subscribers, created_by, created_at
		FROM event_updates
		WHERE event_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event updates: %w", err)
	}
	defer rows.Close()

	updates := make([]domain.EventUpdate, 0)
	for rows.Next() {
		var u domain.EventUpdate
		err := rows.Scan(
			&u.ID,
			&u.EventID,
			&u.Status,
			&u.Message,
			&u.NotifySubscribers,
			&u.CreatedBy,
			&u.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event update: %w", err)
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event updates: %w", err)
	}

	return updates, nil
}

// ListServiceChanges returns the append-only change log oldest first.
func (r *Repository) ListServiceChanges(ctx context.Context, eventID string) ([]domain.EventServiceChange, error) {
	if !isEventID(eventID) {
		return nil, events.ErrEventNotFound
	}
	query := `
		SELECT id, event_id, batch_id, action, service_id, group_id, reason, created_by, created_at
		FROM event_service_changes
		WHERE event_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list service changes: %w", err)
	}
	defer rows.Close()

	changes := make([]domain.EventServiceChange, 0)
	for rows.Next() {
		var c domain.EventServiceChange
		err := rows.Scan(
			&c.ID,
			&c.EventID,
			&c.BatchID,
			&c.Action,
			&c.ServiceID,
			&c.GroupID,
			&c.Reason,
			&c.CreatedBy,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan service change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service changes: %w", err)
	}

	return changes, nil
}

// isEventID reports whether id can name a row; event ids are UUIDs.
func isEventID(id string) bool {
	return uuid.Validate(id) == nil
}
