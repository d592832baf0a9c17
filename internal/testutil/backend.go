package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// BackendFixture is the data served by FakeBackend.
type BackendFixture struct {
	Services      []domain.Service
	Groups        []domain.ServiceGroup
	Events        []domain.Event
	EventServices map[string][]domain.EventService
	Updates       map[string][]domain.EventUpdate
	Changes       map[string][]domain.EventServiceChange
}

// SubmittedUpdate is a POST /events/{id}/updates call seen by FakeBackend.
type SubmittedUpdate struct {
	EventID       string
	Authorization string
	Body          map[string]any
}

// FakeBackend serves the read endpoints of the incident-garden API from a
// fixture and records submitted updates.
type FakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	fixture   BackendFixture
	submitted []SubmittedUpdate
	requests  map[string]int
}

// NewFakeBackend starts a fake backend that is closed with the test.
func NewFakeBackend(t *testing.T, fixture BackendFixture) *FakeBackend {
	t.Helper()

	b := &FakeBackend{fixture: fixture, requests: make(map[string]int)}

	r := chi.NewRouter()
	r.Use(b.count)
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/services", func(w http.ResponseWriter, _ *http.Request) {
			writeData(w, http.StatusOK, b.fixture.Services)
		})
		r.Get("/groups", func(w http.ResponseWriter, _ *http.Request) {
			writeData(w, http.StatusOK, b.fixture.Groups)
		})
		r.Get("/events", func(w http.ResponseWriter, _ *http.Request) {
			writeData(w, http.StatusOK, b.fixture.Events)
		})
		r.Route("/events/{id}", func(r chi.Router) {
			r.Use(b.requireEvent)
			r.Get("/", b.getEvent)
			r.Get("/services", func(w http.ResponseWriter, r *http.Request) {
				writeData(w, http.StatusOK, nonNil(b.fixture.EventServices[chi.URLParam(r, "id")]))
			})
			r.Get("/updates", func(w http.ResponseWriter, r *http.Request) {
				writeData(w, http.StatusOK, nonNil(b.fixture.Updates[chi.URLParam(r, "id")]))
			})
			r.Get("/changes", func(w http.ResponseWriter, r *http.Request) {
				writeData(w, http.StatusOK, nonNil(b.fixture.Changes[chi.URLParam(r, "id")]))
			})
			r.Post("/updates", b.postUpdate)
		})
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Close)
	return b
}

// Submitted returns the updates received so far.
func (b *FakeBackend) Submitted() []SubmittedUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SubmittedUpdate(nil), b.submitted...)
}

// Requests returns how many times path was requested.
func (b *FakeBackend) Requests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[path]
}

func (b *FakeBackend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests[r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) findEvent(id string) *domain.Event {
	for i := range b.fixture.Events {
		if b.fixture.Events[i].ID == id {
			return &b.fixture.Events[i]
		}
	}
	return nil
}

func (b *FakeBackend) requireEvent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.findEvent(chi.URLParam(r, "id")) == nil {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) getEvent(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, b.findEvent(chi.URLParam(r, "id")))
}

func (b *FakeBackend) postUpdate(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	eventID := chi.URLParam(r, "id")
	b.mu.Lock()
	b.submitted = append(b.submitted, SubmittedUpdate{EventID: eventID, Authorization: auth, Body: body})
	b.mu.Unlock()

	status, _ := body["status"].(string)
	message, _ := body["message"].(string)
	notify, _ := body["notify_subscribers"].(bool)
	writeData(w, http.StatusCreated, domain.EventUpdate{
		ID:                uuid.NewString(),
		EventID:           eventID,
		Status:            domain.EventStatus(status),
		Message:           message,
		NotifySubscribers: notify,
		CreatedBy:         "operator",
		CreatedAt:         time.Now().UTC(),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": message}})
}
