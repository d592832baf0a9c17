package catalog

import (
	"net/http"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/pkg/httputil"
	"github.com/bissquit/garden-console/internal/status"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service *Service
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers public read routes for the catalog module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.GetStatus)
	r.Get("/services", h.ListServices)
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.ListGroups)
		r.Get("/{id}/services", h.GetGroupServices)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrGroupNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: status.ErrUnknownStatus, Status: http.StatusBadRequest},
}

// GetStatus handles GET /status request.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, overview)
}

// ListServices handles GET /services request.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	opts := ListOptions{
		GroupID:         r.URL.Query().Get("group_id"),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}

	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.ServiceStatus(s)
		opts.Status = &st
	}

	services, err := h.service.ListServicesWithEffectiveStatus(r.Context(), opts)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, services)
}

// ListGroups handles GET /groups request.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	filter := GroupFilter{}

	if r.URL.Query().Get("include_archived") == "true" {
		filter.IncludeArchived = true
	}

	groups, err := h.service.ListGroupsWithEffectiveStatus(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, groups)
}

// GetGroupServices handles GET /groups/{id}/services request.
func (h *Handler) GetGroupServices(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.GetGroupListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, listing)
}
