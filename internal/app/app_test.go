package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/garden-console/internal/config"
	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/events"
	"github.com/bissquit/garden-console/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPISpecPath = "../../api/openapi/openapi.yaml"

func ptr[T any](v T) *T { return &v }

func fixture() testutil.BackendFixture {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return testutil.BackendFixture{
		Services: []domain.Service{
			{ID: "api", Name: "API", Slug: "api", Status: domain.ServiceStatusOperational, GroupIDs: []string{"core"}},
			{ID: "db", Name: "Database", Slug: "db", Status: domain.ServiceStatusOperational, GroupIDs: []string{"core"}, Order: 1},
			{ID: "cdn", Name: "CDN", Slug: "cdn", Status: domain.ServiceStatusOperational, Order: 2},
		},
		Groups: []domain.ServiceGroup{
			{ID: "core", Name: "Core", Slug: "core", ServiceIDs: []string{"api", "db"}},
		},
		Events: []domain.Event{
			{
				ID:         "e1",
				Title:      "API outage",
				Type:       domain.EventTypeIncident,
				Status:     domain.EventStatusIdentified,
				Severity:   ptr(domain.SeverityMajor),
				StartedAt:  &created,
				CreatedAt:  created,
				UpdatedAt:  created,
				ServiceIDs: []string{"api", "db"},
				GroupIDs:   []string{},
			},
		},
		EventServices: map[string][]domain.EventService{
			"e1": {
				{EventID: "e1", ServiceID: "api", Status: domain.ServiceStatusMajorOutage},
				{EventID: "e1", ServiceID: "db", Status: domain.ServiceStatusDegraded},
			},
		},
		Updates: map[string][]domain.EventUpdate{
			"e1": {
				{ID: "u2", EventID: "e1", Status: domain.EventStatusIdentified, Message: "root cause found", CreatedAt: created.Add(10 * time.Minute)},
				{ID: "u1", EventID: "e1", Status: domain.EventStatusInvestigating, Message: "looking", CreatedAt: created.Add(time.Minute)},
			},
		},
		Changes: map[string][]domain.EventServiceChange{
			"e1": {
				{ID: "c1", EventID: "e1", BatchID: ptr("b1"), Action: domain.ChangeActionAdded, ServiceID: ptr("db"), Reason: "replication lag", CreatedAt: created.Add(5 * time.Minute)},
			},
		},
	}
}

type testEnv struct {
	backend *testutil.FakeBackend
	client  *testutil.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := testutil.NewFakeBackend(t, fixture())

	cfg := config.Default()
	cfg.Source = config.SourceAPI
	cfg.Backend.URL = backend.URL
	cfg.Backend.CacheTTL = 0
	cfg.Log = config.LogConfig{Level: "error", Format: "text"}
	require.NoError(t, cfg.Validate())

	application, err := New(&cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Router())
	t.Cleanup(server.Close)

	validator := testutil.MustLoadOpenAPIValidator(t, openAPISpecPath)
	return &testEnv{
		backend: backend,
		client:  testutil.NewClient(t, server.URL, validator),
	}
}

func TestNew_RejectsAPISourceWithoutBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Log = config.LogConfig{Level: "error", Format: "text"}

	_, err := New(&cfg)
	assert.Error(t, err)
}

func TestSystemEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.client.GET("/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", testutil.ReadBody(t, resp))

	assert.Equal(t, http.StatusOK, env.client.GET("/readyz").StatusCode)
	assert.Equal(t, 1, env.backend.Requests("/readyz"))

	resp = env.client.GET("/version")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusOverview(t *testing.T) {
	env := newTestEnv(t)

	resp := env.client.GET("/api/v1/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	overview := testutil.DecodeData[struct {
		Summary struct {
			Status       domain.ServiceStatus `json:"status"`
			Total        int                  `json:"total"`
			ActiveEvents int                  `json:"active_events"`
		} `json:"summary"`
		Listing []struct {
			Group    *domain.ServiceGroup                `json:"group"`
			Services []domain.ServiceWithEffectiveStatus `json:"services"`
		} `json:"listing"`
	}](t, resp)

	assert.Equal(t, domain.ServiceStatusMajorOutage, overview.Summary.Status)
	assert.Equal(t, 3, overview.Summary.Total)
	assert.Equal(t, 1, overview.Summary.ActiveEvents)

	require.Len(t, overview.Listing, 2)
	require.NotNil(t, overview.Listing[0].Group)
	assert.Equal(t, "core", overview.Listing[0].Group.ID)
	require.Len(t, overview.Listing[0].Services, 2)
	assert.Equal(t, domain.ServiceStatusMajorOutage, overview.Listing[0].Services[0].EffectiveStatus)
	assert.Equal(t, domain.ServiceStatusDegraded, overview.Listing[0].Services[1].EffectiveStatus)

	assert.Nil(t, overview.Listing[1].Group, "ungrouped bucket comes last")
	require.Len(t, overview.Listing[1].Services, 1)
	assert.Equal(t, "cdn", overview.Listing[1].Services[0].ID)
	assert.False(t, overview.Listing[1].Services[0].HasActiveEvents)
}

func TestListServices_StatusFilter(t *testing.T) {
	env := newTestEnv(t)

	resp := env.client.GET("/api/v1/services?status=degraded")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	services := testutil.DecodeData[[]domain.ServiceWithEffectiveStatus](t, resp)
	require.Len(t, services, 1)
	assert.Equal(t, "db", services[0].ID)
	assert.True(t, services[0].HasActiveEvents)
}

func TestListGroups(t *testing.T) {
	env := newTestEnv(t)

	resp := env.client.GET("/api/v1/groups")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	groups := testutil.DecodeData[[]domain.GroupWithEffectiveStatus](t, resp)
	require.Len(t, groups, 1)
	assert.Equal(t, domain.ServiceStatusMajorOutage, groups[0].EffectiveStatus)

	resp = env.client.GET("/api/v1/groups/missing/services")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventTimeline(t *testing.T) {
	env := newTestEnv(t)

	resp := env.client.GET("/api/v1/events/e1/timeline")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	timeline := testutil.DecodeData[events.Timeline](t, resp)
	require.Len(t, timeline.Entries, 4)

	assert.Equal(t, events.TimelineUpdate, timeline.Entries[0].Kind)
	assert.Equal(t, "root cause found", timeline.Entries[0].Message)

	change := timeline.Entries[1]
	assert.Equal(t, events.TimelineServiceChange, change.Kind)
	assert.Equal(t, "service", change.TypeLabel)
	require.Len(t, change.Services, 1)
	assert.Equal(t, "Database", change.Services[0].Name)
	assert.Equal(t, "replication lag", change.Reason)

	created := timeline.Entries[3]
	assert.Equal(t, events.TimelineCreated, created.Kind)
	assert.Equal(t, domain.EventStatusInvestigating, created.Status)
}

func TestEvent_NotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.client.GET("/api/v1/events/missing")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, testutil.DecodeErrorMessage(t, resp), "event not found")

	resp = env.client.GET("/api/v1/events/missing/timeline")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewUpdate(t *testing.T) {
	env := newTestEnv(t)

	resp := env.client.POST("/api/v1/events/e1/updates/preview", map[string]any{
		"status":  "monitoring",
		"message": "fix deployed",
		"set_statuses": []map[string]string{
			{"service_id": "db", "status": "operational"},
		},
		"add_services": []map[string]string{
			{"service_id": "cdn", "status": "degraded"},
		},
		"reason": "edge cache misses",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	preview := testutil.DecodeData[events.Preview](t, resp)
	assert.True(t, preview.Changes)
	require.NotNil(t, preview.Payload)
	assert.Equal(t, []domain.AffectedService{{ServiceID: "db", Status: domain.ServiceStatusOperational}}, preview.Payload.ServiceUpdates)
	assert.Equal(t, []domain.AffectedService{{ServiceID: "cdn", Status: domain.ServiceStatusDegraded}}, preview.Payload.AddServices)
	assert.Equal(t, "edge cache misses", preview.Payload.Reason)

	assert.Empty(t, env.backend.Submitted(), "preview never submits")
}

func TestPreviewUpdate_Errors(t *testing.T) {
	env := newTestEnv(t)
	client := env.client.WithoutValidation()

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "status of the wrong event type",
			body:       map[string]any{"status": "in_progress", "message": "x"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "reason without membership change",
			body: map[string]any{
				"status":  "monitoring",
				"message": "x",
				"reason":  "why not",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing message",
			body:       map[string]any{"status": "monitoring"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := client.POST("/api/v1/events/e1/updates/preview", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestSubmitUpdate(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{
		"status":             "monitoring",
		"message":            "db recovered",
		"notify_subscribers": true,
		"remove_service_ids": []string{"db"},
		"reason":             "replication caught up",
	}

	resp := env.client.WithoutValidation().POST("/api/v1/events/e1/updates", body)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, env.backend.Submitted())

	resp = env.client.WithToken("operator-token").POST("/api/v1/events/e1/updates", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	update := testutil.DecodeData[domain.EventUpdate](t, resp)
	assert.Equal(t, "e1", update.EventID)
	assert.Equal(t, domain.EventStatusMonitoring, update.Status)

	submitted := env.backend.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, "Bearer operator-token", submitted[0].Authorization)
	assert.Equal(t, []any{"db"}, submitted[0].Body["remove_service_ids"])
	assert.Equal(t, "replication caught up", submitted[0].Body["reason"])
	assert.Equal(t, true, submitted[0].Body["notify_subscribers"])
	assert.NotContains(t, submitted[0].Body, "service_updates")
}
