package events

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/garden-console/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(httputil.BearerTokenMiddleware)
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, h http.Handler, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_GetTimeline(t *testing.T) {
	src, cat := newFixture()
	h := newTestRouter(NewService(src, cat, nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/evt-1/timeline", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Entries []struct {
				Kind string `json:"kind"`
			} `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data.Entries, 3)
	assert.Equal(t, "created", body.Data.Entries[2].Kind)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/missing/timeline", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_PreviewUpdate(t *testing.T) {
	src, cat := newFixture()
	h := newTestRouter(NewService(src, cat, nil))

	rec := postJSON(t, h, "/events/evt-1/updates/preview", map[string]any{
		"status":             "identified",
		"message":            "Conflict",
		"remove_service_ids": []string{"api"},
		"add_services":       []map[string]string{{"service_id": "api", "status": "degraded"}},
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/events/evt-1/updates/preview", map[string]any{
		"status":       "identified",
		"message":      "Escalating",
		"set_statuses": []map[string]string{{"service_id": "api", "status": "major_outage"}},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Payload struct {
				ServiceUpdates []map[string]string `json:"service_updates"`
			} `json:"payload"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []map[string]string{{"service_id": "api", "status": "major_outage"}}, body.Data.Payload.ServiceUpdates)
}

func TestHandler_PreviewUpdate_InvalidBody(t *testing.T) {
	src, cat := newFixture()
	h := newTestRouter(NewService(src, cat, nil))

	req := httptest.NewRequest(http.MethodPost, "/events/evt-1/updates/preview", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/events/evt-1/updates/preview", map[string]any{"status": "identified"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation error")
}

func TestHandler_SubmitUpdate(t *testing.T) {
	src, cat := newFixture()
	sub := &recordingSubmitter{}
	h := newTestRouter(NewService(src, cat, sub))

	draft := map[string]any{"status": "monitoring", "message": "Fix deployed"}

	rec := postJSON(t, h, "/events/evt-1/updates", draft, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, sub.payload)

	rec = postJSON(t, h, "/events/evt-1/updates", draft, "operator-token")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "operator-token", sub.token)
	assert.Equal(t, "Fix deployed", sub.payload.Message)
}
