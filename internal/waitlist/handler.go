package waitlist

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/httputil"
	"clocklayer/pkg/platform/middleware/request"
)

// Source is what the handler needs from the counter.
type Source interface {
	State() State
	Watch(ctx context.Context) <-chan State
}

type Handler struct {
	source Source
	logger *slog.Logger
}

func NewHandler(source Source, logger *slog.Logger) *Handler {
	return &Handler{source: source, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/waitlist", h.HandleState)
	r.Get("/waitlist/stream", h.HandleStream)
}

func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.source.State())
}

func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := httputil.StreamSSE(w, r, "waitlist", h.source.Watch(ctx))
	if errors.Is(err, httputil.ErrStreamingUnsupported) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "streaming unavailable"))
		return
	}
	if err != nil {
		h.logger.WarnContext(ctx, "waitlist stream ended with error",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
}
