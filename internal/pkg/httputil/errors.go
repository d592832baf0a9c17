package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/garden-console/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// UpstreamError is implemented by errors carrying the status code returned by the backend.
type UpstreamError interface {
	error
	UpstreamStatus() int
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// Backend client errors are passed through, other backend failures become 502 Bad Gateway.
// If nothing matches, logs the error and returns 500 Internal Server Error.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			Error(w, m.Status, msg)
			return
		}
	}

	var upstream UpstreamError
	if errors.As(err, &upstream) {
		code := upstream.UpstreamStatus()
		if code >= 400 && code < 500 {
			Error(w, code, upstream.Error())
			return
		}
		ctxlog.FromContext(ctx).Warn("upstream failure", "error", err, "upstream_status", code)
		Error(w, http.StatusBadGateway, "upstream unavailable")
		return
	}

	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
