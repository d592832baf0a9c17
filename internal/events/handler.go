package events

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bissquit/garden-console/internal/pkg/ctxlog"
	"github.com/bissquit/garden-console/internal/pkg/httputil"
	"github.com/bissquit/garden-console/internal/status"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the events module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new events handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers event routes. Submitting requires a bearer token,
// which is forwarded to the backend.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events/{id}", func(r chi.Router) {
		r.Get("/", h.GetEvent)
		r.Get("/timeline", h.GetTimeline)
		r.Post("/updates/preview", h.PreviewUpdate)
		r.With(httputil.RequireBearer).Post("/updates", h.SubmitUpdate)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEventNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrEventAlreadyResolved, Status: http.StatusConflict},
	{Error: ErrConflictingOperation, Status: http.StatusBadRequest},
	{Error: ErrReasonNotAllowed, Status: http.StatusBadRequest},
	{Error: ErrServiceNotInEvent, Status: http.StatusBadRequest},
	{Error: ErrUnknownEdit, Status: http.StatusBadRequest},
	{Error: status.ErrUnknownStatus, Status: http.StatusBadRequest},
	{Error: ErrNoUpstream, Status: http.StatusServiceUnavailable},
}

// GetEvent handles GET /events/{id} request.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, event)
}

// GetTimeline handles GET /events/{id}/timeline request.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.service.GetTimeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, timeline)
}

// PreviewUpdate handles POST /events/{id}/updates/preview request.
func (h *Handler) PreviewUpdate(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	preview, err := h.service.Preview(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, preview)
}

// SubmitUpdate handles POST /events/{id}/updates request.
func (h *Handler) SubmitUpdate(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "id")
	ctx := ctxlog.With(r.Context(), "event_id", eventID)

	update, err := h.service.Submit(ctx, eventID, draft, httputil.GetBearerToken(ctx))
	if err != nil {
		h.handleError(w, r.WithContext(ctx), err)
		return
	}

	httputil.Success(w, http.StatusCreated, update)
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (Draft, bool) {
	var draft Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return Draft{}, false
	}

	if err := h.validator.Struct(draft); err != nil {
		httputil.ValidationError(w, err)
		return Draft{}, false
	}
	return draft, true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		httputil.ValidationError(w, verrs)
		return
	}
	httputil.HandleError(r.Context(), w, err, errorMappings)
}
